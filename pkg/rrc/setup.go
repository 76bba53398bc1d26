package rrc

import "tarun-kavipurapu/rrc-dialogue/pkg/protocol"

// Diagnostic payloads carried in lateNonCriticalExtension.
const (
	PayloadRequestGood = "REQUEST_GOOD"
	PayloadRequestBad  = "REQUEST_BAD"
)

const (
	transactionIDValid   uint8 = 0
	transactionIDInvalid uint8 = 1
)

// BuildSetup returns the connection setup for a validity verdict. The
// result depends on nothing else; anything other than Valid is answered as
// Invalid.
func BuildSetup(v protocol.Validity) *protocol.ConnectionSetup {
	if v == protocol.Valid {
		return &protocol.ConnectionSetup{
			TransactionID:            transactionIDValid,
			LateNonCriticalExtension: []byte(PayloadRequestGood),
		}
	}
	return &protocol.ConnectionSetup{
		TransactionID:            transactionIDInvalid,
		LateNonCriticalExtension: []byte(PayloadRequestBad),
	}
}
