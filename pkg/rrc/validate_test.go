package rrc

import (
	"testing"

	"tarun-kavipurapu/rrc-dialogue/pkg/protocol"
)

func randomValue(b []byte) *protocol.UEIdentity {
	return &protocol.UEIdentity{Kind: protocol.IdentityRandomValue, RandomValue: b}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  *protocol.ConnectionRequest
		want protocol.Validity
	}{
		{"12 byte random value", &protocol.ConnectionRequest{Identity: randomValue([]byte("0123456789ab")), Cause: 3}, protocol.Valid},
		{"lower bound cause", &protocol.ConnectionRequest{Identity: randomValue([]byte{1}), Cause: 0}, protocol.Valid},
		{"upper bound cause", &protocol.ConnectionRequest{Identity: randomValue([]byte{1}), Cause: 7}, protocol.Valid},
		{"empty random value", &protocol.ConnectionRequest{Identity: randomValue(nil), Cause: 3}, protocol.Invalid},
		{"zero length non-nil random value", &protocol.ConnectionRequest{Identity: randomValue([]byte{}), Cause: 3}, protocol.Invalid},
		{"absent identity", &protocol.ConnectionRequest{Cause: 3}, protocol.Invalid},
		{"s-TMSI identity", &protocol.ConnectionRequest{
			Identity: &protocol.UEIdentity{Kind: protocol.IdentitySTMSI, STMSI: protocol.STMSI{MMEC: 1, MTMSI: 2}},
			Cause:    3,
		}, protocol.Invalid},
		{"cause above range", &protocol.ConnectionRequest{Identity: randomValue([]byte{1}), Cause: 8}, protocol.Invalid},
		{"cause far above range", &protocol.ConnectionRequest{Identity: randomValue([]byte{1}), Cause: 9}, protocol.Invalid},
		{"negative cause", &protocol.ConnectionRequest{Identity: randomValue([]byte{1}), Cause: -1}, protocol.Invalid},
		{"nil request", nil, protocol.Invalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.req)
			if got != tt.want {
				t.Fatalf("Validate() = %s, want %s", got, tt.want)
			}
			if again := Validate(tt.req); again != got {
				t.Fatalf("Validate() not stable: %s then %s", got, again)
			}
		})
	}
}

func TestValidateAllDefinedCauses(t *testing.T) {
	for c := protocol.MinEstablishmentCause; c <= protocol.MaxEstablishmentCause; c++ {
		req := &protocol.ConnectionRequest{Identity: randomValue([]byte{0xa5}), Cause: c}
		if got := Validate(req); got != protocol.Valid {
			t.Errorf("cause %s: got %s", c, got)
		}
	}
}

func TestBuildSetup(t *testing.T) {
	tests := []struct {
		validity protocol.Validity
		wantTID  uint8
		wantBody string
	}{
		{protocol.Valid, 0, PayloadRequestGood},
		{protocol.Invalid, 1, PayloadRequestBad},
		{protocol.Validity(42), 1, PayloadRequestBad},
	}

	for _, tt := range tests {
		t.Run(tt.validity.String(), func(t *testing.T) {
			first := BuildSetup(tt.validity)
			second := BuildSetup(tt.validity)
			for _, got := range []*protocol.ConnectionSetup{first, second} {
				if got.TransactionID != tt.wantTID {
					t.Errorf("transaction id: got %d, want %d", got.TransactionID, tt.wantTID)
				}
				if string(got.LateNonCriticalExtension) != tt.wantBody {
					t.Errorf("payload: got %q, want %q", got.LateNonCriticalExtension, tt.wantBody)
				}
			}
			if first == second {
				t.Error("BuildSetup returned a shared message")
			}
		})
	}
}
