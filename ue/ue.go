package ue

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tarun-kavipurapu/rrc-dialogue/pkg/codec"
	"tarun-kavipurapu/rrc-dialogue/pkg/config"
	"tarun-kavipurapu/rrc-dialogue/pkg/logger"
	"tarun-kavipurapu/rrc-dialogue/pkg/protocol"
	"tarun-kavipurapu/rrc-dialogue/pkg/transport"
	"tarun-kavipurapu/rrc-dialogue/pkg/transport/quic"
	"tarun-kavipurapu/rrc-dialogue/pkg/transport/tcp"
)

// Config describes what the UE puts on the wire.
type Config struct {
	Transport string
	Options   transport.Options

	// Identity is the ue-Identity sent in the request. Nil means a fresh
	// 5-byte random value per attach.
	Identity *protocol.UEIdentity
	// OmitIdentity sends a request without ue-Identity.
	OmitIdentity bool
	Cause        protocol.EstablishmentCause

	SelectedPLMNIdentity int64
	DedicatedInfoNAS     []byte
}

func DefaultConfig() Config {
	return Config{
		Transport:            config.TransportTCP,
		Options:              transport.DefaultOptions(),
		Cause:                protocol.CauseMOSignalling,
		SelectedPLMNIdentity: protocol.MinPLMNIdentity,
	}
}

// UE is the peer side of the connection-establishment handshake.
type UE struct {
	cfg       Config
	Transport transport.Transport
	codec     codec.DER
}

func New(cfg Config) (*UE, error) {
	var trans transport.Transport
	switch cfg.Transport {
	case "", config.TransportTCP:
		trans = tcp.NewTCPTransport("", cfg.Options)
	case config.TransportQUIC:
		trans = quic.NewQUICTransport("", cfg.Options)
	default:
		return nil, fmt.Errorf("ue: unknown transport %q", cfg.Transport)
	}
	if cfg.SelectedPLMNIdentity == 0 {
		cfg.SelectedPLMNIdentity = protocol.MinPLMNIdentity
	}
	return &UE{cfg: cfg, Transport: trans}, nil
}

// NewRandomIdentity returns a random-value identity of RandomValueLen bytes.
func NewRandomIdentity() (*protocol.UEIdentity, error) {
	buf := make([]byte, protocol.RandomValueLen)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate random value: %w", err)
	}
	return &protocol.UEIdentity{Kind: protocol.IdentityRandomValue, RandomValue: buf}, nil
}

func (u *UE) request() (*protocol.ConnectionRequest, error) {
	req := &protocol.ConnectionRequest{Cause: u.cfg.Cause}
	switch {
	case u.cfg.OmitIdentity:
	case u.cfg.Identity != nil:
		req.Identity = u.cfg.Identity
	default:
		id, err := NewRandomIdentity()
		if err != nil {
			return nil, err
		}
		req.Identity = id
	}
	return req, nil
}

// Attach runs one handshake against the eNB at addr and returns the setup
// it answered with. A REQUEST_BAD setup is a successful attach from the
// transport's point of view; callers inspect the payload.
func (u *UE) Attach(ctx context.Context, addr string) (setup *protocol.ConnectionSetup, err error) {
	req, err := u.request()
	if err != nil {
		return nil, err
	}
	reqBuf, err := u.codec.EncodeConnectionRequest(req)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stream, err := u.Transport.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = stream.Close()
	})
	defer func() {
		stop()
		if cerr := stream.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = multierr.Append(err, fmt.Errorf("close stream: %w", cerr))
		}
		if err != nil && ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
	}()

	if err := stream.Send(reqBuf); err != nil {
		return nil, fmt.Errorf("send RRCConnectionRequest: %w", err)
	}
	logger.Log.Debug("[UE] RRC Connection Request sent", zap.String("enb", addr), zap.Object("request", req))

	buf, err := stream.Recv()
	if err != nil {
		return nil, fmt.Errorf("receive RRCConnectionSetup: %w", err)
	}
	setup, err = u.codec.DecodeConnectionSetup(buf)
	if err != nil {
		return nil, err
	}
	logger.Log.Debug("[UE] RRC Connection Setup received", zap.String("enb", addr), zap.Object("setup", setup))

	complete := &protocol.ConnectionSetupComplete{
		TransactionID:        setup.TransactionID,
		SelectedPLMNIdentity: u.cfg.SelectedPLMNIdentity,
		DedicatedInfoNAS:     u.cfg.DedicatedInfoNAS,
	}
	compBuf, err := u.codec.EncodeConnectionSetupComplete(complete)
	if err != nil {
		return setup, err
	}
	if err := stream.Send(compBuf); err != nil {
		return setup, fmt.Errorf("send RRCConnectionSetupComplete: %w", err)
	}
	logger.Log.Debug("[UE] RRC Connection Setup Complete sent", zap.String("enb", addr), zap.Object("complete", complete))
	return setup, nil
}

// Close releases the UE's transport.
func (u *UE) Close() error {
	return u.Transport.Close()
}
