package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"
)

// Frame Types
const (
	FrameTypeRRC = 0x01
)

// Header is the fixed-size frame header
// [Type (1 byte)] + [Length (4 bytes)]
const HeaderSize = 5

var (
	ErrFrameTooLarge = errors.New("transport: frame exceeds max message size")
	ErrUnknownFrame  = errors.New("transport: unknown frame type")
	ErrShortFrame    = errors.New("transport: short frame")
)

// WriteFrame writes header and payload in a single Write call.
func WriteFrame(w io.Writer, msgType uint8, payload []byte) error {
	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = msgType
	binary.BigEndian.PutUint32(buf[1:HeaderSize], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)

	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one frame. The declared length is checked against max
// before any payload is read, so an oversized frame is never truncated
// silently.
func ReadFrame(r io.Reader, max uint32) (uint8, []byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, nil, ErrShortFrame
		}
		return 0, nil, err
	}

	msgType := header[0]
	length := binary.BigEndian.Uint32(header[1:])
	if length > max {
		return msgType, nil, fmt.Errorf("%w: length=%d max=%d", ErrFrameTooLarge, length, max)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return msgType, nil, ErrShortFrame
		}
		return msgType, nil, err
	}
	return msgType, payload, nil
}

// IsTimeout reports whether err came from an expired read or write deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Conn is the byte stream a FramedStream runs on. net.Conn and QUIC streams
// both satisfy it.
type Conn interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// FramedStream implements Stream on top of a Conn using the frame format.
type FramedStream struct {
	conn Conn
	addr string
	opts Options

	lock sync.Mutex
}

func NewFramedStream(conn Conn, addr string, opts Options) *FramedStream {
	return &FramedStream{
		conn: conn,
		addr: addr,
		opts: opts,
	}
}

func (s *FramedStream) Recv() ([]byte, error) {
	if s.opts.ReadTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout)); err != nil {
			return nil, err
		}
	}

	msgType, payload, err := ReadFrame(s.conn, s.opts.maxMessageSize())
	if err != nil {
		return nil, err
	}
	if msgType != FrameTypeRRC {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFrame, msgType)
	}
	return payload, nil
}

func (s *FramedStream) Send(payload []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if uint32(len(payload)) > s.opts.maxMessageSize() {
		return fmt.Errorf("%w: length=%d max=%d", ErrFrameTooLarge, len(payload), s.opts.maxMessageSize())
	}
	if s.opts.WriteTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout)); err != nil {
			return err
		}
	}
	return WriteFrame(s.conn, FrameTypeRRC, payload)
}

func (s *FramedStream) Close() error {
	return s.conn.Close()
}

func (s *FramedStream) Addr() string {
	return s.addr
}
