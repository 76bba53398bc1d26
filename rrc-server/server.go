package rrcserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/multierr"

	"tarun-kavipurapu/rrc-dialogue/pkg/codec"
	"tarun-kavipurapu/rrc-dialogue/pkg/config"
	"tarun-kavipurapu/rrc-dialogue/pkg/discovery"
	"tarun-kavipurapu/rrc-dialogue/pkg/logger"
	"tarun-kavipurapu/rrc-dialogue/pkg/monitor"
	"tarun-kavipurapu/rrc-dialogue/pkg/rrc"
	"tarun-kavipurapu/rrc-dialogue/pkg/transport"
	"tarun-kavipurapu/rrc-dialogue/pkg/transport/quic"
	"tarun-kavipurapu/rrc-dialogue/pkg/transport/tcp"
)

const metricsLogInterval = 30 * time.Second

// Server is the eNB endpoint. Each accepted stream gets its own
// handshake controller; sessions only share the registry below.
type Server struct {
	mu       sync.Mutex
	sessions map[string]*sessionInfo // remote addr -> in-flight handshake
	served   int
	closing  bool

	cfg        config.Config
	Transport  transport.Transport
	codec      rrc.Codec
	advertiser *discovery.Advertiser
	metricsSrv *http.Server

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	quitCh  chan struct{}
	stopped sync.Once
	// outcomes receives every finished handshake when non-nil.
	outcomes chan<- rrc.Outcome
}

type sessionInfo struct {
	RemoteAddr string
	State      rrc.State
	Started    time.Time
}

func NewServer(cfg config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var trans transport.Transport
	switch cfg.Transport {
	case config.TransportQUIC:
		trans = quic.NewQUICTransport(cfg.ListenAddr, cfg.TransportOptions())
	default:
		trans = tcp.NewTCPTransport(cfg.ListenAddr, cfg.TransportOptions())
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		sessions:   make(map[string]*sessionInfo),
		cfg:        cfg,
		Transport:  trans,
		codec:      codec.DER{},
		advertiser: discovery.NewAdvertiser(),
		ctx:        ctx,
		cancel:     cancel,
		quitCh:     make(chan struct{}),
	}
	trans.SetOnStream(s.OnStream)
	return s, nil
}

// NotifyOutcomes makes the server publish each finished handshake on ch.
// Sends block, so ch should be buffered or drained. Must be called before
// Start.
func (s *Server) NotifyOutcomes(ch chan<- rrc.Outcome) {
	s.outcomes = ch
}

// Listen binds the transport and starts accepting without blocking.
func (s *Server) Listen() error {
	logger.Sugar.Infof("[RRCServer] [%s] starting eNB endpoint: transport=%s max_message_size=%d",
		s.cfg.ListenAddr, s.cfg.Transport, s.cfg.MaxMessageSize)

	if err := s.Transport.ListenAndAccept(); err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}
	logger.Sugar.Infof("[RRCServer] listening on %s", s.Transport.Addr())

	if s.cfg.Advertise {
		s.advertise()
	}
	if s.cfg.MetricsAddr != "" {
		s.metricsSrv = monitor.Serve(s.cfg.MetricsAddr)
	}
	go monitor.LogPeriodic(metricsLogInterval, s.quitCh)
	return nil
}

// Start listens and blocks until Stop is called.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	<-s.quitCh
	logger.Sugar.Info("[RRCServer] stopped")
	return nil
}

func (s *Server) advertise() {
	_, portStr, err := net.SplitHostPort(s.Transport.Addr())
	if err != nil {
		logger.Sugar.Errorf("[RRCServer] Failed to parse address: %v", err)
		return
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return
	}
	meta := map[string]string{
		discovery.MetaVersion:   "1",
		discovery.MetaTransport: s.cfg.Transport,
	}
	if err := s.advertiser.Start(s.cfg.InstanceName, port, meta); err != nil {
		logger.Sugar.Errorf("[RRCServer] Failed to start mDNS advertisement: %v", err)
		return
	}
	logger.Sugar.Infof("[RRCServer] mDNS advertisement started: instance=%s port=%d", s.cfg.InstanceName, port)
}

// OnStream runs one handshake on an accepted stream. It is the transport's
// stream handler and returns when the handshake is terminal.
func (s *Server) OnStream(stream transport.Stream) {
	remote := stream.Addr()
	started := time.Now()
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		logger.Sugar.Warnf("[RRCServer] shutting down, dropping remote=%s", remote)
		_ = stream.Close()
		return
	}
	s.wg.Add(1)
	s.sessions[remote] = &sessionInfo{RemoteAddr: remote, State: rrc.StateAwaitingRequest, Started: started}
	s.mu.Unlock()
	defer s.wg.Done()
	monitor.StartHandshake()
	logger.Sugar.Infof("[RRCServer] UE connected: remote=%s", remote)

	ctrl := rrc.NewController(stream, s.codec,
		rrc.WithLogger(logger.Sugar.With("transport", s.cfg.Transport)),
		rrc.WithObserver(func(_, to rrc.State) {
			s.mu.Lock()
			if si, ok := s.sessions[remote]; ok {
				si.State = to
			}
			s.mu.Unlock()
		}),
	)
	out, err := ctrl.Run(s.ctx)
	elapsed := time.Since(started)

	s.mu.Lock()
	delete(s.sessions, remote)
	s.served++
	s.mu.Unlock()
	monitor.RecordHandshake(out, elapsed)

	if err != nil {
		logger.Sugar.Errorf("[RRCServer] handshake failed: remote=%s state=%s reason=%s err=%v", remote, out.State, out.Reason, err)
	} else {
		logger.Sugar.Infof("[RRCServer] handshake done: remote=%s validity=%s elapsed=%s", remote, out.Validity, elapsed)
	}

	if s.outcomes != nil {
		s.outcomes <- out
	}
	if s.cfg.Once {
		go s.Stop()
	}
}

func (s *Server) GetStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := fmt.Sprintf("eNB endpoint running on: %s (%s)\n", s.Transport.Addr(), s.cfg.Transport)
	status += fmt.Sprintf("Handshakes in progress: %d\n", len(s.sessions))
	status += fmt.Sprintf("Handshakes served: %d\n", s.served)
	status += monitor.Global.Snapshot().String() + "\n"
	return status
}

// GetSessionsList lists in-flight handshakes as "remote state age".
func (s *Server) GetSessionsList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]string, 0, len(s.sessions))
	for addr, si := range s.sessions {
		list = append(list, fmt.Sprintf("%s %s %s", addr, si.State, time.Since(si.Started).Truncate(time.Millisecond)))
	}
	sort.Strings(list)
	return list
}

// Stop closes the listener, cancels in-flight handshakes and waits for
// them to finish. It is safe to call more than once.
func (s *Server) Stop() error {
	var err error
	s.stopped.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()

		s.advertiser.Stop()
		err = multierr.Append(err, s.Transport.Close())
		s.cancel()
		s.wg.Wait()
		if s.metricsSrv != nil {
			err = multierr.Append(err, s.metricsSrv.Close())
		}
		close(s.quitCh)
	})
	return err
}
