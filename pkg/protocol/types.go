package protocol

import (
	"encoding/hex"
	"fmt"

	"go.uber.org/zap/zapcore"
)

// IdentityKind selects the InitialUE-Identity variant.
type IdentityKind uint8

const (
	IdentityRandomValue IdentityKind = iota
	IdentitySTMSI
)

func (k IdentityKind) String() string {
	switch k {
	case IdentityRandomValue:
		return "randomValue"
	case IdentitySTMSI:
		return "s-TMSI"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// RandomValueLen is the LTE random value size in bytes (40 bits). It is
// what the UE generates; the decoder accepts any length.
const RandomValueLen = 5

// STMSI is the SAE temporary mobile subscriber identity.
type STMSI struct {
	MMEC  uint8
	MTMSI uint32
}

// UEIdentity is the identity a UE presents in its connection request.
// Exactly one of RandomValue / STMSI is meaningful, selected by Kind.
type UEIdentity struct {
	Kind        IdentityKind
	RandomValue []byte
	STMSI       STMSI
}

func (id *UEIdentity) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("variant", id.Kind.String())
	switch id.Kind {
	case IdentityRandomValue:
		enc.AddString("randomValue", hex.EncodeToString(id.RandomValue))
		enc.AddInt("size", len(id.RandomValue))
	case IdentitySTMSI:
		enc.AddUint8("mmec", id.STMSI.MMEC)
		enc.AddUint32("m-TMSI", id.STMSI.MTMSI)
	}
	return nil
}

// EstablishmentCause is the reason code carried by a connection request.
type EstablishmentCause int64

const (
	CauseEmergency EstablishmentCause = iota
	CauseHighPriorityAccess
	CauseMTAccess
	CauseMOSignalling
	CauseMOData
	CauseDelayTolerantAccess
	CauseMOVoiceCall
	CauseSpare1
)

const (
	MinEstablishmentCause = CauseEmergency
	MaxEstablishmentCause = CauseSpare1
)

var causeNames = [...]string{
	"emergency",
	"highPriorityAccess",
	"mt-Access",
	"mo-Signalling",
	"mo-Data",
	"delayTolerantAccess",
	"mo-VoiceCall",
	"spare1",
}

// InRange reports whether c lies in the closed range of defined causes.
func (c EstablishmentCause) InRange() bool {
	return c >= MinEstablishmentCause && c <= MaxEstablishmentCause
}

func (c EstablishmentCause) String() string {
	if c.InRange() {
		return causeNames[c]
	}
	return fmt.Sprintf("out-of-range(%d)", int64(c))
}

// ConnectionRequest is RRCConnectionRequest as received from the UE.
// A nil Identity means the field was absent on the wire.
type ConnectionRequest struct {
	Identity *UEIdentity
	Cause    EstablishmentCause
}

func (r *ConnectionRequest) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	if r.Identity == nil {
		enc.AddString("ue-Identity", "absent")
	} else if err := enc.AddObject("ue-Identity", r.Identity); err != nil {
		return err
	}
	enc.AddInt64("establishmentCause", int64(r.Cause))
	enc.AddString("establishmentCauseName", r.Cause.String())
	return nil
}

// MaxTransactionID is the largest rrc-TransactionIdentifier (2 bits).
const MaxTransactionID = 3

// ConnectionSetup is RRCConnectionSetup sent back to the UE.
type ConnectionSetup struct {
	TransactionID            uint8
	LateNonCriticalExtension []byte
}

func (s *ConnectionSetup) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint8("rrc-TransactionIdentifier", s.TransactionID)
	enc.AddByteString("lateNonCriticalExtension", s.LateNonCriticalExtension)
	return nil
}

// PLMN identity index bounds for selectedPLMN-Identity.
const (
	MinPLMNIdentity = 1
	MaxPLMNIdentity = 6
)

// ConnectionSetupComplete is RRCConnectionSetupComplete from the UE. The
// handshake only needs it to decode; no field drives protocol logic.
type ConnectionSetupComplete struct {
	TransactionID        uint8
	SelectedPLMNIdentity int64
	DedicatedInfoNAS     []byte
}

func (c *ConnectionSetupComplete) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint8("rrc-TransactionIdentifier", c.TransactionID)
	enc.AddInt64("selectedPLMN-Identity", c.SelectedPLMNIdentity)
	enc.AddString("dedicatedInfoNAS", hex.EncodeToString(c.DedicatedInfoNAS))
	return nil
}

// Validity is the validator's verdict on a connection request.
type Validity int

const (
	Valid Validity = iota
	Invalid
)

func (v Validity) String() string {
	switch v {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("validity(%d)", int(v))
	}
}
