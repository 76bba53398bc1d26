package rrcserver

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"tarun-kavipurapu/rrc-dialogue/pkg/config"
	"tarun-kavipurapu/rrc-dialogue/pkg/protocol"
	"tarun-kavipurapu/rrc-dialogue/pkg/rrc"
	"tarun-kavipurapu/rrc-dialogue/ue"
)

func testConfig(transportKind string) config.Config {
	cfg := config.Default()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.Transport = transportKind
	return cfg
}

func startServer(t *testing.T, cfg config.Config) (*Server, <-chan rrc.Outcome) {
	t.Helper()
	s, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	outcomes := make(chan rrc.Outcome, 64)
	s.NotifyOutcomes(outcomes)
	if err := s.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	return s, outcomes
}

func newUE(t *testing.T, transportKind string, mutate func(*ue.Config)) *ue.UE {
	t.Helper()
	cfg := ue.DefaultConfig()
	cfg.Transport = transportKind
	if mutate != nil {
		mutate(&cfg)
	}
	u, err := ue.New(cfg)
	if err != nil {
		t.Fatalf("new ue: %v", err)
	}
	t.Cleanup(func() { _ = u.Close() })
	return u
}

func waitOutcome(t *testing.T, ch <-chan rrc.Outcome) rrc.Outcome {
	t.Helper()
	select {
	case out := <-ch:
		return out
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for handshake outcome")
		return rrc.Outcome{}
	}
}

func TestServerEndToEnd(t *testing.T) {
	for _, kind := range []string{config.TransportTCP, config.TransportQUIC} {
		t.Run(kind, func(t *testing.T) {
			s, outcomes := startServer(t, testConfig(kind))
			addr := s.Transport.Addr()

			good := newUE(t, kind, nil)
			setup, err := good.Attach(context.Background(), addr)
			if err != nil {
				t.Fatalf("attach: %v", err)
			}
			if setup.TransactionID != 0 || string(setup.LateNonCriticalExtension) != rrc.PayloadRequestGood {
				t.Fatalf("unexpected setup %+v", setup)
			}
			out := waitOutcome(t, outcomes)
			if out.State != rrc.StateDone || out.Validity != protocol.Valid || out.Sends != 1 {
				t.Fatalf("unexpected outcome %+v", out)
			}

			bad := newUE(t, kind, func(c *ue.Config) { c.Cause = 8 })
			setup, err = bad.Attach(context.Background(), addr)
			if err != nil {
				t.Fatalf("attach: %v", err)
			}
			if setup.TransactionID != 1 || string(setup.LateNonCriticalExtension) != rrc.PayloadRequestBad {
				t.Fatalf("unexpected setup %+v", setup)
			}
			out = waitOutcome(t, outcomes)
			if out.State != rrc.StateDone || out.Validity != protocol.Invalid {
				t.Fatalf("unexpected outcome %+v", out)
			}
			if out.Complete == nil || out.Complete.TransactionID != 1 {
				t.Fatalf("complete should echo transaction id 1, got %+v", out.Complete)
			}

			status := s.GetStatus()
			if !strings.Contains(status, "Handshakes served: 2") {
				t.Errorf("status: %q", status)
			}
		})
	}
}

func TestServerConcurrentUEs(t *testing.T) {
	s, outcomes := startServer(t, testConfig(config.TransportTCP))
	addr := s.Transport.Addr()

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cause := protocol.CauseMOData
			if i%2 == 1 {
				cause = -1
			}
			cfg := ue.DefaultConfig()
			cfg.Cause = cause
			u, err := ue.New(cfg)
			if err != nil {
				errs <- err
				return
			}
			defer u.Close()
			setup, err := u.Attach(context.Background(), addr)
			if err != nil {
				errs <- err
				return
			}
			want := rrc.BuildSetup(protocol.Valid)
			if i%2 == 1 {
				want = rrc.BuildSetup(protocol.Invalid)
			}
			if setup.TransactionID != want.TransactionID {
				errs <- fmt.Errorf("ue %d: transaction id %d, want %d", i, setup.TransactionID, want.TransactionID)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	valid, invalid := 0, 0
	for i := 0; i < n; i++ {
		out := waitOutcome(t, outcomes)
		if out.State != rrc.StateDone {
			t.Errorf("handshake %d: state %s", i, out.State)
		}
		if out.Validity == protocol.Valid {
			valid++
		} else {
			invalid++
		}
	}
	if valid != n/2 || invalid != n/2 {
		t.Fatalf("valid=%d invalid=%d", valid, invalid)
	}
}

func TestServerOnce(t *testing.T) {
	cfg := testConfig(config.TransportTCP)
	cfg.Once = true
	s, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := s.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := s.Transport.Addr()

	done := make(chan struct{})
	go func() {
		// Start would listen again; wait on the quit channel directly.
		<-s.quitCh
		close(done)
	}()

	if _, err := newUE(t, config.TransportTCP, nil).Attach(context.Background(), addr); err != nil {
		t.Fatalf("attach: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after the first handshake")
	}

	if _, err := net.DialTimeout("tcp", addr, time.Second); err == nil {
		t.Fatal("listener still accepting after once-mode stop")
	}
}

func TestServerStopCancelsInFlight(t *testing.T) {
	s, outcomes := startServer(t, testConfig(config.TransportTCP))

	conn, err := net.Dial("tcp", s.Transport.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for len(s.GetSessionsList()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("session never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := s.GetSessionsList()[0]; !strings.Contains(got, rrc.StateAwaitingRequest.String()) {
		t.Errorf("session entry: %q", got)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	out := waitOutcome(t, outcomes)
	if out.State != rrc.StateFailed || out.Reason != rrc.ReasonTransport || out.Sends != 0 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if n := len(s.GetSessionsList()); n != 0 {
		t.Fatalf("sessions left after stop: %d", n)
	}
	// Stop is idempotent.
	if err := s.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestNewServerRejectsBadConfig(t *testing.T) {
	cfg := testConfig("sctp")
	if _, err := NewServer(cfg); err == nil {
		t.Fatal("expected error for unknown transport")
	}
	cfg = testConfig(config.TransportTCP)
	cfg.MaxMessageSize = 0
	if _, err := NewServer(cfg); err == nil {
		t.Fatal("expected error for zero message size")
	}
}
