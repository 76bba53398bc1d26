package tcp

import (
	"errors"
	"net"
	"sync"

	"tarun-kavipurapu/rrc-dialogue/pkg/logger"
	"tarun-kavipurapu/rrc-dialogue/pkg/transport"
)

// TCPTransport implements transport.Transport
type TCPTransport struct {
	listenAddr string
	opts       transport.Options
	listener   net.Listener
	onStream   func(transport.Stream)

	mu     sync.Mutex
	closed bool
}

func NewTCPTransport(addr string, opts transport.Options) *TCPTransport {
	return &TCPTransport{
		listenAddr: addr,
		opts:       opts,
	}
}

func (t *TCPTransport) SetOnStream(f func(transport.Stream)) {
	t.onStream = f
}

func (t *TCPTransport) ListenAndAccept() error {
	ln, err := net.Listen("tcp", t.listenAddr)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.listener = ln
	t.mu.Unlock()

	go t.acceptLoop(ln)
	return nil
}

func (t *TCPTransport) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Sugar.Errorf("[TCPTransport] accept error: listen=%s err=%v", t.Addr(), err)
			continue
		}
		go t.handleConn(conn)
	}
}

func (t *TCPTransport) handleConn(conn net.Conn) {
	stream := transport.NewFramedStream(conn, conn.RemoteAddr().String(), t.opts)
	if t.onStream == nil {
		logger.Sugar.Warnf("[TCPTransport] no stream handler set, dropping remote=%s", stream.Addr())
		_ = stream.Close()
		return
	}
	t.onStream(stream)
}

func (t *TCPTransport) Dial(addr string) (transport.Stream, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return transport.NewFramedStream(conn, conn.RemoteAddr().String(), t.opts), nil
}

func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.listener == nil {
		return nil
	}
	t.closed = true
	return t.listener.Close()
}

// Addr returns the bound address once listening, so ":0" resolves to the
// chosen port.
func (t *TCPTransport) Addr() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener != nil {
		return t.listener.Addr().String()
	}
	return t.listenAddr
}
