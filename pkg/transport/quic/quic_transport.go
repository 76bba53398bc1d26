package quic

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"math/big"
	"net"
	"sync"
	"time"

	quicgo "github.com/quic-go/quic-go"

	"tarun-kavipurapu/rrc-dialogue/pkg/logger"
	"tarun-kavipurapu/rrc-dialogue/pkg/transport"
)

const (
	ALPN = "rrc-dialogue"

	// closeDrainTimeout bounds how long Close waits for the peer's FIN
	// before tearing the connection down.
	closeDrainTimeout = 2 * time.Second
)

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

// devTLSCert derives a fixed self-signed certificate so both ends can pin
// it without any key distribution.
func devTLSCert() (tls.Certificate, []byte, error) {
	seed := sha256.Sum256([]byte("rrc-dialogue-quic-dev-key"))
	priv := ed25519.NewKeyFromSeed(seed[:])
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Date(2099, time.December, 31, 0, 0, 0, 0, time.UTC),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(zeroReader{}, &template, &template, priv.Public(), priv)
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	cert := tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
	}
	return cert, der, nil
}

func serverTLSConfig() (*tls.Config, error) {
	cert, _, err := devTLSCert()
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{ALPN},
	}, nil
}

func clientTLSConfig() (*tls.Config, error) {
	_, der, err := devTLSCert()
	if err != nil {
		return nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	pool.AddCert(cert)
	return &tls.Config{
		RootCAs:    pool,
		ServerName: "localhost",
		NextProtos: []string{ALPN},
	}, nil
}

// QUICTransport implements transport.Transport with one bidirectional QUIC
// stream per connection.
type QUICTransport struct {
	listenAddr string
	opts       transport.Options
	onStream   func(transport.Stream)

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener *quicgo.Listener
}

func NewQUICTransport(addr string, opts transport.Options) *QUICTransport {
	ctx, cancel := context.WithCancel(context.Background())
	return &QUICTransport{
		listenAddr: addr,
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (t *QUICTransport) SetOnStream(f func(transport.Stream)) {
	t.onStream = f
}

func (t *QUICTransport) ListenAndAccept() error {
	tlsConf, err := serverTLSConfig()
	if err != nil {
		return err
	}
	ln, err := quicgo.ListenAddr(t.listenAddr, tlsConf, nil)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.listener = ln
	t.mu.Unlock()

	go t.acceptLoop(ln)
	return nil
}

func (t *QUICTransport) acceptLoop(ln *quicgo.Listener) {
	for {
		conn, err := ln.Accept(t.ctx)
		if err != nil {
			if t.ctx.Err() != nil || errors.Is(err, quicgo.ErrServerClosed) {
				return
			}
			logger.Sugar.Errorf("[QUICTransport] accept error: listen=%s err=%v", t.Addr(), err)
			continue
		}
		go t.handleConn(conn)
	}
}

func (t *QUICTransport) handleConn(conn *quicgo.Conn) {
	stream, err := conn.AcceptStream(t.ctx)
	if err != nil {
		logger.Sugar.Errorf("[QUICTransport] accept stream error: remote=%s err=%v", conn.RemoteAddr(), err)
		_ = conn.CloseWithError(0, "")
		return
	}
	s := transport.NewFramedStream(&streamConn{conn: conn, Stream: stream}, conn.RemoteAddr().String(), t.opts)
	if t.onStream == nil {
		logger.Sugar.Warnf("[QUICTransport] no stream handler set, dropping remote=%s", s.Addr())
		_ = s.Close()
		return
	}
	t.onStream(s)
}

func (t *QUICTransport) Dial(addr string) (transport.Stream, error) {
	tlsConf, err := clientTLSConfig()
	if err != nil {
		return nil, err
	}
	conn, err := quicgo.DialAddr(t.ctx, addr, tlsConf, nil)
	if err != nil {
		return nil, err
	}
	stream, err := conn.OpenStreamSync(t.ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "")
		return nil, err
	}
	return transport.NewFramedStream(&streamConn{conn: conn, Stream: stream}, conn.RemoteAddr().String(), t.opts), nil
}

func (t *QUICTransport) Close() error {
	t.cancel()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	ln := t.listener
	t.listener = nil
	return ln.Close()
}

func (t *QUICTransport) Addr() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener != nil {
		return t.listener.Addr().String()
	}
	return t.listenAddr
}

// streamConn owns both the stream and its connection so closing the
// transport.Stream releases the whole QUIC connection.
type streamConn struct {
	conn *quicgo.Conn
	*quicgo.Stream

	once sync.Once
}

func (s *streamConn) Close() error {
	var err error
	s.once.Do(func() {
		err = s.Stream.Close()
		// Wait for the peer's FIN so data we already wrote is delivered
		// before CONNECTION_CLOSE.
		_ = s.Stream.SetReadDeadline(time.Now().Add(closeDrainTimeout))
		_, _ = io.Copy(io.Discard, s.Stream)
		if cerr := s.conn.CloseWithError(0, ""); err == nil {
			err = cerr
		}
	})
	return err
}
