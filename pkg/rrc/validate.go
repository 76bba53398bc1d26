package rrc

import "tarun-kavipurapu/rrc-dialogue/pkg/protocol"

// Validate classifies a decoded connection request. A request is Invalid
// when its identity is absent, is not a random value, carries an empty
// random value, or when the establishment cause lies outside [0,7].
func Validate(req *protocol.ConnectionRequest) protocol.Validity {
	if req == nil || req.Identity == nil {
		return protocol.Invalid
	}
	if req.Identity.Kind != protocol.IdentityRandomValue || len(req.Identity.RandomValue) == 0 {
		return protocol.Invalid
	}
	if !req.Cause.InRange() {
		return protocol.Invalid
	}
	return protocol.Valid
}
