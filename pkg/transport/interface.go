package transport

import "time"

// Stream is one ordered, reliable message conversation with a remote UE.
// Each Recv returns one whole frame payload; each Send writes one frame.
type Stream interface {
	Recv() ([]byte, error)
	Send(payload []byte) error
	Close() error
	Addr() string
}

// Transport handles the network layer
type Transport interface {
	ListenAndAccept() error
	Dial(addr string) (Stream, error)
	// SetOnStream installs the handler run, on its own goroutine, for every
	// accepted stream. The handler owns the stream and must close it.
	SetOnStream(func(Stream))
	Close() error
	Addr() string
}

const DefaultMaxMessageSize = 1024

// Options are shared by every Transport implementation.
type Options struct {
	// MaxMessageSize bounds the payload of a single frame.
	MaxMessageSize uint32
	// Zero timeouts block indefinitely.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{MaxMessageSize: DefaultMaxMessageSize}
}

func (o Options) maxMessageSize() uint32 {
	if o.MaxMessageSize == 0 {
		return DefaultMaxMessageSize
	}
	return o.MaxMessageSize
}
