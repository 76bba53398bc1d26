package monitor

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tarun-kavipurapu/rrc-dialogue/pkg/logger"
	"tarun-kavipurapu/rrc-dialogue/pkg/protocol"
	"tarun-kavipurapu/rrc-dialogue/pkg/rrc"
)

// Metrics holds handshake counters for the endpoint
type Metrics struct {
	Active          int64
	Completed       int64
	Failed          int64
	Rejected        int64 // completed, answered with REQUEST_BAD
	TransportErrors int64
	DecodeErrors    int64
	EncodeErrors    int64
	ServerStart     time.Time
}

// Global metrics instance
var Global = &Metrics{
	ServerStart: time.Now(),
}

// Snapshot is a consistent-enough copy of the counters for display.
type Snapshot struct {
	Active, Completed, Failed, Rejected         int64
	TransportErrors, DecodeErrors, EncodeErrors int64
	Uptime                                      time.Duration
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Active:          atomic.LoadInt64(&m.Active),
		Completed:       atomic.LoadInt64(&m.Completed),
		Failed:          atomic.LoadInt64(&m.Failed),
		Rejected:        atomic.LoadInt64(&m.Rejected),
		TransportErrors: atomic.LoadInt64(&m.TransportErrors),
		DecodeErrors:    atomic.LoadInt64(&m.DecodeErrors),
		EncodeErrors:    atomic.LoadInt64(&m.EncodeErrors),
		Uptime:          time.Since(m.ServerStart),
	}
}

func (s Snapshot) String() string {
	return fmt.Sprintf("Active=%d | Completed=%d | Rejected=%d | Failed=%d (transport=%d decode=%d encode=%d) | Uptime=%s",
		s.Active, s.Completed, s.Rejected, s.Failed,
		s.TransportErrors, s.DecodeErrors, s.EncodeErrors, s.Uptime.Truncate(time.Second))
}

var (
	registerOnce sync.Once

	handshakes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rrc",
			Subsystem: "handshake",
			Name:      "total",
			Help:      "Finished RRC connection-establishment handshakes.",
		},
		[]string{"state", "reason", "validity"},
	)
	handshakeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rrc",
			Subsystem: "handshake",
			Name:      "duration_seconds",
			Help:      "Time from accept to terminal state.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"state"},
	)
	activeHandshakes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rrc",
			Subsystem: "handshake",
			Name:      "active",
			Help:      "Handshakes currently in progress.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(handshakes, handshakeDuration, activeHandshakes)
	})
}

// StartHandshake records an accepted stream.
func StartHandshake() {
	RegisterMetrics()
	atomic.AddInt64(&Global.Active, 1)
	activeHandshakes.Inc()
}

// RecordHandshake records a handshake that reached a terminal state.
func RecordHandshake(out rrc.Outcome, duration time.Duration) {
	RegisterMetrics()
	atomic.AddInt64(&Global.Active, -1)
	activeHandshakes.Dec()

	validity := "none"
	if out.Setup != nil {
		validity = out.Validity.String()
	}

	switch out.State {
	case rrc.StateDone:
		atomic.AddInt64(&Global.Completed, 1)
		if out.Validity == protocol.Invalid {
			atomic.AddInt64(&Global.Rejected, 1)
		}
	default:
		atomic.AddInt64(&Global.Failed, 1)
		switch out.Reason {
		case rrc.ReasonTransport:
			atomic.AddInt64(&Global.TransportErrors, 1)
		case rrc.ReasonDecode:
			atomic.AddInt64(&Global.DecodeErrors, 1)
		case rrc.ReasonEncode:
			atomic.AddInt64(&Global.EncodeErrors, 1)
		}
	}

	handshakes.WithLabelValues(out.State.String(), string(out.Reason), validity).Inc()
	handshakeDuration.WithLabelValues(out.State.String()).Observe(duration.Seconds())
}

// LogPeriodic logs runtime and handshake metrics at the specified interval
// until quit is closed.
func LogPeriodic(interval time.Duration, quit <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			logger.Sugar.Infof("[Metrics] Goroutines=%d | HeapAlloc=%dMB | %s",
				runtime.NumGoroutine(),
				m.HeapAlloc/1024/1024,
				Global.Snapshot(),
			)
		}
	}
}

// Serve exposes /metrics on addr until the returned server is shut down.
func Serve(addr string) *http.Server {
	RegisterMetrics()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Sugar.Errorf("[Metrics] metrics endpoint failed: addr=%s err=%v", addr, err)
		}
	}()
	logger.Sugar.Infof("[Metrics] serving prometheus metrics on %s/metrics", addr)
	return srv
}
