package telemetry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	apperrors "codeberg.org/mutker/sensorctl/internal/errors"
	"codeberg.org/mutker/sensorctl/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

type service struct {
	cfg      Config
	logger   logger.Logger
	registry *prometheus.Registry

	transitions *prometheus.CounterVec
	clamps      *prometheus.CounterVec
	guardSkips  *prometheus.CounterVec
	busRetries  *prometheus.CounterVec

	mu     sync.Mutex
	server *http.Server
	closed bool
}

// NewService registers the sensorctl counters on a private registry.
func NewService(cfg Config, log logger.Logger) (Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, apperrors.New().Wrap(ErrRegisterFailed, err)
	}

	factory := promauto.With(registry)

	s := &service{
		cfg:      cfg,
		logger:   log,
		registry: registry,
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "transitions_total",
			Help:      "Mode transitions by direction and outcome.",
		}, []string{"direction", "outcome"}),
		clamps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "clamp_events_total",
			Help:      "Capture operating points limited by a hardware or policy bound.",
		}, []string{"kind"}),
		guardSkips: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "guard_skips_total",
			Help:      "Capture transitions that skipped exposure synchronization.",
		}, []string{"reason"}),
		busRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "bus_retries_total",
			Help:      "Retried register transactions by operation.",
		}, []string{"op"}),
	}

	return s, nil
}

func (s *service) Transition(direction, outcome string) {
	s.transitions.WithLabelValues(direction, outcome).Inc()
}

func (s *service) Clamp(kind string) {
	s.clamps.WithLabelValues(kind).Inc()
}

func (s *service) GuardSkip(reason string) {
	s.guardSkips.WithLabelValues(reason).Inc()
}

func (s *service) BusRetry(op string) {
	s.busRetries.WithLabelValues(op).Inc()
}

func (s *service) Gatherer() prometheus.Gatherer {
	return s.registry
}

func (s *service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

// Serve exposes the registry until ctx is done. Without a listen address, or
// once Close has run, it returns immediately.
func (s *service) Serve(ctx context.Context) error {
	if s.cfg.Listen == "" {
		return nil
	}

	errFactory := apperrors.New()

	mux := http.NewServeMux()
	mux.Handle(s.cfg.Path, s.Handler())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		s.mu.Unlock()
		return errFactory.Wrap(ErrServeFailed, err)
	}

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.server = server
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		if err := s.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to stop metrics endpoint")
		}
	}()

	s.logger.Info().
		Str("listen", ln.Addr().String()).
		Str("path", s.cfg.Path).
		Msg("Serving metrics")

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errFactory.Wrap(ErrServeFailed, err)
	}

	return nil
}

func (s *service) Close() error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.closed = true
	s.mu.Unlock()

	if server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return apperrors.New().Wrap(ErrServiceShutdown, err)
	}

	return nil
}
