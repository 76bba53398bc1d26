package tcp

import (
	"testing"
	"time"

	"tarun-kavipurapu/rrc-dialogue/pkg/transport"
)

func TestTCPTransportEcho(t *testing.T) {
	server := NewTCPTransport("127.0.0.1:0", transport.DefaultOptions())
	server.SetOnStream(func(s transport.Stream) {
		defer s.Close()
		msg, err := s.Recv()
		if err != nil {
			return
		}
		_ = s.Send(append([]byte("echo:"), msg...))
	})
	if err := server.ListenAndAccept(); err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer server.Close()

	client := NewTCPTransport("", transport.DefaultOptions())
	stream, err := client.Dial(server.Addr())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer stream.Close()

	if err := stream.Send([]byte("ping")); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	got, err := stream.Recv()
	if err != nil {
		t.Fatalf("recv failed: %v", err)
	}
	if string(got) != "echo:ping" {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestTCPTransportConcurrentStreams(t *testing.T) {
	server := NewTCPTransport("127.0.0.1:0", transport.DefaultOptions())
	server.SetOnStream(func(s transport.Stream) {
		defer s.Close()
		msg, err := s.Recv()
		if err != nil {
			return
		}
		_ = s.Send(msg)
	})
	if err := server.ListenAndAccept(); err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer server.Close()

	const n = 8
	errCh := make(chan error, n)
	client := NewTCPTransport("", transport.DefaultOptions())
	for i := 0; i < n; i++ {
		go func(i byte) {
			stream, err := client.Dial(server.Addr())
			if err != nil {
				errCh <- err
				return
			}
			defer stream.Close()
			if err := stream.Send([]byte{i}); err != nil {
				errCh <- err
				return
			}
			got, err := stream.Recv()
			if err == nil && (len(got) != 1 || got[0] != i) {
				t.Errorf("stream %d got %x", i, got)
			}
			errCh <- err
		}(byte(i))
	}

	for i := 0; i < n; i++ {
		select {
		case err := <-errCh:
			if err != nil {
				t.Fatalf("stream failed: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for streams")
		}
	}
}

func TestTCPTransportCloseIsIdempotent(t *testing.T) {
	server := NewTCPTransport("127.0.0.1:0", transport.DefaultOptions())
	if err := server.ListenAndAccept(); err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	if err := server.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := server.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
