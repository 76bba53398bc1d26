package rrc

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tarun-kavipurapu/rrc-dialogue/pkg/logger"
	"tarun-kavipurapu/rrc-dialogue/pkg/protocol"
	"tarun-kavipurapu/rrc-dialogue/pkg/transport"
)

// Codec is what the controller needs from the transfer syntax.
type Codec interface {
	DecodeConnectionRequest(buf []byte) (*protocol.ConnectionRequest, error)
	EncodeConnectionSetup(setup *protocol.ConnectionSetup) ([]byte, error)
	DecodeConnectionSetupComplete(buf []byte) (*protocol.ConnectionSetupComplete, error)
}

// Outcome summarises one finished handshake.
type Outcome struct {
	State    State
	Reason   Reason
	Validity protocol.Validity
	// Setup is the response that was handed to the transport, nil if none.
	Setup    *protocol.ConnectionSetup
	Complete *protocol.ConnectionSetupComplete
	// Sends counts Send calls that returned without error. It is 0 or 1.
	Sends int
}

type Option func(*Controller)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithObserver installs a hook called on every state change, on the
// goroutine running the handshake.
func WithObserver(f func(from, to State)) Option {
	return func(c *Controller) {
		c.observer = f
	}
}

// Controller runs the eNB side of one connection-establishment handshake
// over a single stream. It is single use.
type Controller struct {
	stream   transport.Stream
	codec    Codec
	log      *zap.SugaredLogger
	observer func(from, to State)

	state State
	sends int
}

func NewController(stream transport.Stream, codec Codec, opts ...Option) *Controller {
	c := &Controller{
		stream: stream,
		codec:  codec,
		log:    logger.Sugar,
		state:  StateAwaitingRequest,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run drives the handshake to Done or Failed. The stream is closed before
// Run returns, on every path. Cancelling ctx closes the stream, which
// unblocks a pending receive or send.
func (c *Controller) Run(ctx context.Context) (out Outcome, err error) {
	stop := context.AfterFunc(ctx, func() {
		_ = c.stream.Close()
	})
	defer func() {
		stop()
		if he, ok := AsHandshakeError(err); ok {
			out.Reason = he.Reason
		}
		if cerr := c.stream.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			if err != nil {
				err = multierr.Append(err, fmt.Errorf("close stream: %w", cerr))
			} else {
				c.log.Warnf("[Handshake] close stream failed: remote=%s err=%v", c.stream.Addr(), cerr)
			}
		}
		out.State = c.state
		out.Sends = c.sends
	}()

	// AwaitingRequest
	buf, err := c.recv()
	if err != nil {
		return out, c.failRecv(ctx, err)
	}
	req, err := c.codec.DecodeConnectionRequest(buf)
	if err != nil {
		c.log.Errorf("[Handshake] error decoding RRCConnectionRequest: remote=%s err=%v", c.stream.Addr(), err)
		return out, c.fail(ctx, ReasonDecode, err)
	}
	c.log.Infow("[Handshake] RRC Connection Request, from client", "remote", c.stream.Addr(), zap.Object("request", req))
	c.transition(StateValidating)

	// Validating
	out.Validity = Validate(req)
	setup := BuildSetup(out.Validity)
	buf, err = c.codec.EncodeConnectionSetup(setup)
	if err != nil {
		c.log.Errorf("[Handshake] could not encode RRCConnectionSetup: remote=%s err=%v", c.stream.Addr(), err)
		return out, c.fail(ctx, ReasonEncode, err)
	}
	if err := c.stream.Send(buf); err != nil {
		c.log.Errorf("[Handshake] send RRCConnectionSetup failed: remote=%s err=%v", c.stream.Addr(), err)
		return out, c.fail(ctx, ReasonTransport, err)
	}
	c.sends++
	out.Setup = setup
	c.log.Infow("[Handshake] RRC Connection Setup sent",
		"remote", c.stream.Addr(), "validity", out.Validity.String(), zap.Object("setup", setup))
	c.transition(StateAwaitingComplete)

	// AwaitingComplete
	buf, err = c.recv()
	if err != nil {
		return out, c.failRecv(ctx, err)
	}
	complete, err := c.codec.DecodeConnectionSetupComplete(buf)
	if err != nil {
		c.log.Errorf("[Handshake] error decoding RRCConnectionSetupComplete: remote=%s err=%v", c.stream.Addr(), err)
		return out, c.fail(ctx, ReasonDecode, err)
	}
	out.Complete = complete
	c.log.Infow("[Handshake] RRC Connection Setup Complete, from client", "remote", c.stream.Addr(), zap.Object("complete", complete))
	c.transition(StateDone)
	return out, nil
}

func (c *Controller) recv() ([]byte, error) {
	buf, err := c.stream.Recv()
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		return nil, ErrEmptyMessage
	}
	return buf, nil
}

// failRecv classifies a receive error. An oversized frame is a decode
// failure; everything else is transport.
func (c *Controller) failRecv(ctx context.Context, err error) error {
	reason := ReasonTransport
	if errors.Is(err, transport.ErrFrameTooLarge) {
		reason = ReasonDecode
	}
	c.log.Errorf("[Handshake] read error: remote=%s state=%s err=%v", c.stream.Addr(), c.state, err)
	return c.fail(ctx, reason, err)
}

func (c *Controller) fail(ctx context.Context, reason Reason, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && reason == ReasonTransport {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	herr := &HandshakeError{State: c.state, Reason: reason, Err: err}
	c.transition(StateFailed)
	return herr
}

func (c *Controller) transition(to State) {
	from := c.state
	c.state = to
	c.log.Debugf("[Handshake] state %s -> %s: remote=%s", from, to, c.stream.Addr())
	if c.observer != nil {
		c.observer(from, to)
	}
}
