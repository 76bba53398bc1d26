// Package codec implements the DER transfer syntax for the three RRC
// connection-establishment messages.
//
//	RRCConnectionRequest ::= SEQUENCE {
//	    ue-Identity        [0] EXPLICIT InitialUE-Identity OPTIONAL,
//	    establishmentCause ENUMERATED }
//
//	InitialUE-Identity ::= CHOICE {
//	    randomValue [0] IMPLICIT OCTET STRING,
//	    s-TMSI      [1] IMPLICIT SEQUENCE { mmec INTEGER, m-TMSI INTEGER } }
//
//	RRCConnectionSetup ::= SEQUENCE {
//	    rrc-TransactionIdentifier INTEGER (0..3),
//	    lateNonCriticalExtension  [0] IMPLICIT OCTET STRING OPTIONAL }
//
//	RRCConnectionSetupComplete ::= SEQUENCE {
//	    rrc-TransactionIdentifier INTEGER (0..3),
//	    selectedPLMN-Identity     INTEGER (1..6),
//	    dedicatedInfoNAS          OCTET STRING }
package codec

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"

	"tarun-kavipurapu/rrc-dialogue/pkg/protocol"
)

var (
	ErrMalformed   = errors.New("codec: malformed message")
	ErrUnencodable = errors.New("codec: message cannot be encoded")
)

var (
	tagUEIdentity  = asn1.Tag(0).ContextSpecific().Constructed()
	tagRandomValue = asn1.Tag(0).ContextSpecific()
	tagSTMSI       = asn1.Tag(1).ContextSpecific().Constructed()
	tagLateNonCrit = asn1.Tag(0).ContextSpecific()
)

// DER is the codec collaborator. The zero value is ready to use.
type DER struct{}

func malformed(msg, field string) error {
	return fmt.Errorf("%w: %s: bad %s", ErrMalformed, msg, field)
}

// readSequence unwraps the outer SEQUENCE and rejects trailing bytes.
func readSequence(buf []byte, msg string) (cryptobyte.String, error) {
	in := cryptobyte.String(buf)
	var seq cryptobyte.String
	if !in.ReadASN1(&seq, asn1.SEQUENCE) {
		return nil, malformed(msg, "outer sequence")
	}
	if !in.Empty() {
		return nil, fmt.Errorf("%w: %s: %d trailing bytes", ErrMalformed, msg, len(in))
	}
	return seq, nil
}

func (DER) EncodeConnectionRequest(req *protocol.ConnectionRequest) ([]byte, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil RRCConnectionRequest", ErrUnencodable)
	}
	b := cryptobyte.NewBuilder(nil)
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		if id := req.Identity; id != nil {
			b.AddASN1(tagUEIdentity, func(b *cryptobyte.Builder) {
				switch id.Kind {
				case protocol.IdentityRandomValue:
					b.AddASN1(tagRandomValue, func(b *cryptobyte.Builder) {
						b.AddBytes(id.RandomValue)
					})
				case protocol.IdentitySTMSI:
					b.AddASN1(tagSTMSI, func(b *cryptobyte.Builder) {
						b.AddASN1Uint64(uint64(id.STMSI.MMEC))
						b.AddASN1Uint64(uint64(id.STMSI.MTMSI))
					})
				default:
					b.SetError(fmt.Errorf("%w: ue-Identity variant %s", ErrUnencodable, id.Kind))
				}
			})
		}
		b.AddASN1Enum(int64(req.Cause))
	})
	out, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode RRCConnectionRequest: %w", err)
	}
	return out, nil
}

func (DER) DecodeConnectionRequest(buf []byte) (*protocol.ConnectionRequest, error) {
	const msg = "RRCConnectionRequest"
	seq, err := readSequence(buf, msg)
	if err != nil {
		return nil, err
	}

	req := &protocol.ConnectionRequest{}
	var idField cryptobyte.String
	var hasID bool
	if !seq.ReadOptionalASN1(&idField, &hasID, tagUEIdentity) {
		return nil, malformed(msg, "ue-Identity")
	}
	if hasID {
		id, err := decodeIdentity(idField)
		if err != nil {
			return nil, err
		}
		req.Identity = id
	}

	var cause int
	if !seq.ReadASN1Enum(&cause) {
		return nil, malformed(msg, "establishmentCause")
	}
	if !seq.Empty() {
		return nil, malformed(msg, "extension fields")
	}
	req.Cause = protocol.EstablishmentCause(cause)
	return req, nil
}

func decodeIdentity(field cryptobyte.String) (*protocol.UEIdentity, error) {
	const msg = "InitialUE-Identity"
	var body cryptobyte.String
	var tag asn1.Tag
	if !field.ReadAnyASN1(&body, &tag) || !field.Empty() {
		return nil, malformed(msg, "choice")
	}

	switch tag {
	case tagRandomValue:
		return &protocol.UEIdentity{
			Kind:        protocol.IdentityRandomValue,
			RandomValue: append([]byte(nil), body...),
		}, nil
	case tagSTMSI:
		var tmsi protocol.STMSI
		if !body.ReadASN1Integer(&tmsi.MMEC) {
			return nil, malformed(msg, "mmec")
		}
		if !body.ReadASN1Integer(&tmsi.MTMSI) || !body.Empty() {
			return nil, malformed(msg, "m-TMSI")
		}
		return &protocol.UEIdentity{Kind: protocol.IdentitySTMSI, STMSI: tmsi}, nil
	default:
		return nil, fmt.Errorf("%w: %s: unknown variant tag 0x%02x", ErrMalformed, msg, uint8(tag))
	}
}

func (DER) EncodeConnectionSetup(setup *protocol.ConnectionSetup) ([]byte, error) {
	if setup == nil {
		return nil, fmt.Errorf("%w: nil RRCConnectionSetup", ErrUnencodable)
	}
	if setup.TransactionID > protocol.MaxTransactionID {
		return nil, fmt.Errorf("%w: rrc-TransactionIdentifier %d out of range", ErrUnencodable, setup.TransactionID)
	}
	b := cryptobyte.NewBuilder(nil)
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Uint64(uint64(setup.TransactionID))
		if setup.LateNonCriticalExtension != nil {
			b.AddASN1(tagLateNonCrit, func(b *cryptobyte.Builder) {
				b.AddBytes(setup.LateNonCriticalExtension)
			})
		}
	})
	out, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode RRCConnectionSetup: %w", err)
	}
	return out, nil
}

func (DER) DecodeConnectionSetup(buf []byte) (*protocol.ConnectionSetup, error) {
	const msg = "RRCConnectionSetup"
	seq, err := readSequence(buf, msg)
	if err != nil {
		return nil, err
	}

	setup := &protocol.ConnectionSetup{}
	if !seq.ReadASN1Integer(&setup.TransactionID) || setup.TransactionID > protocol.MaxTransactionID {
		return nil, malformed(msg, "rrc-TransactionIdentifier")
	}
	var ext cryptobyte.String
	var hasExt bool
	if !seq.ReadOptionalASN1(&ext, &hasExt, tagLateNonCrit) || !seq.Empty() {
		return nil, malformed(msg, "lateNonCriticalExtension")
	}
	if hasExt {
		setup.LateNonCriticalExtension = append([]byte{}, ext...)
	}
	return setup, nil
}

func (DER) EncodeConnectionSetupComplete(c *protocol.ConnectionSetupComplete) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil RRCConnectionSetupComplete", ErrUnencodable)
	}
	if c.TransactionID > protocol.MaxTransactionID {
		return nil, fmt.Errorf("%w: rrc-TransactionIdentifier %d out of range", ErrUnencodable, c.TransactionID)
	}
	if c.SelectedPLMNIdentity < protocol.MinPLMNIdentity || c.SelectedPLMNIdentity > protocol.MaxPLMNIdentity {
		return nil, fmt.Errorf("%w: selectedPLMN-Identity %d out of range", ErrUnencodable, c.SelectedPLMNIdentity)
	}
	b := cryptobyte.NewBuilder(nil)
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Uint64(uint64(c.TransactionID))
		b.AddASN1Int64(c.SelectedPLMNIdentity)
		b.AddASN1OctetString(c.DedicatedInfoNAS)
	})
	out, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode RRCConnectionSetupComplete: %w", err)
	}
	return out, nil
}

func (DER) DecodeConnectionSetupComplete(buf []byte) (*protocol.ConnectionSetupComplete, error) {
	const msg = "RRCConnectionSetupComplete"
	seq, err := readSequence(buf, msg)
	if err != nil {
		return nil, err
	}

	c := &protocol.ConnectionSetupComplete{}
	if !seq.ReadASN1Integer(&c.TransactionID) || c.TransactionID > protocol.MaxTransactionID {
		return nil, malformed(msg, "rrc-TransactionIdentifier")
	}
	if !seq.ReadASN1Integer(&c.SelectedPLMNIdentity) ||
		c.SelectedPLMNIdentity < protocol.MinPLMNIdentity || c.SelectedPLMNIdentity > protocol.MaxPLMNIdentity {
		return nil, malformed(msg, "selectedPLMN-Identity")
	}
	var nas cryptobyte.String
	if !seq.ReadASN1(&nas, asn1.OCTET_STRING) || !seq.Empty() {
		return nil, malformed(msg, "dedicatedInfoNAS")
	}
	c.DedicatedInfoNAS = append([]byte{}, nas...)
	return c, nil
}
