package simulator

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/balancer-core/internal/backend"
	"github.com/angeloszaimis/balancer-core/internal/loadbalancer"
)

type Config struct {
	Requests    int
	Concurrency int
	MinDuration time.Duration
	MaxDuration time.Duration
	// Spacing is the pause between two dispatches.
	Spacing time.Duration
}

// Report summarizes a run. On a clean run every Final count is zero.
type Report struct {
	Dispatched map[backend.ServerID]int
	Completed  int
	Final      []backend.Load
	Elapsed    time.Duration
}

// Simulator drives a load balancer with synthetic requests that each hold
// a server for a random duration.
type Simulator struct {
	lb       *loadbalancer.LoadBalancer
	cfg      Config
	logger   *slog.Logger
	duration func() time.Duration
}

type Option func(*Simulator)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) {
		s.logger = logger
	}
}

// WithDurationFunc replaces the random request duration.
func WithDurationFunc(f func() time.Duration) Option {
	return func(s *Simulator) {
		s.duration = f
	}
}

func New(lb *loadbalancer.LoadBalancer, cfg Config, opts ...Option) (*Simulator, error) {
	if cfg.Requests < 0 {
		return nil, errors.Newf("requests must not be negative, got %d", cfg.Requests)
	}
	if cfg.Concurrency < 1 {
		return nil, errors.Newf("concurrency must be at least 1, got %d", cfg.Concurrency)
	}
	if cfg.MinDuration < 0 || cfg.MaxDuration < cfg.MinDuration {
		return nil, errors.Newf("invalid duration range [%s, %s)", cfg.MinDuration, cfg.MaxDuration)
	}

	s := &Simulator{
		lb:     lb,
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	s.duration = s.randomDuration

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Run dispatches the configured number of requests and waits for all of
// them to finish. Cancelling ctx stops dispatching and cuts in-flight
// requests short; their reservations are still released.
func (s *Simulator) Run(ctx context.Context) (Report, error) {
	start := time.Now()

	var (
		mu         sync.Mutex
		dispatched = make(map[backend.ServerID]int)
		completed  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for i := 0; i < s.cfg.Requests; i++ {
		if gctx.Err() != nil {
			break
		}

		hold := s.duration()
		g.Go(func() error {
			res, err := s.lb.Acquire()
			if err != nil {
				return errors.Wrap(err, "acquire")
			}

			mu.Lock()
			dispatched[res.Server()]++
			mu.Unlock()

			requestID := uuid.NewString()
			s.logger.Info("Request started",
				slog.String("request_id", requestID),
				slog.String("server", res.Server().String()),
				slog.Duration("hold", hold))

			s.wait(gctx, hold)

			if err := res.Release(); err != nil {
				return errors.Wrapf(err, "release request %s", requestID)
			}

			mu.Lock()
			completed++
			mu.Unlock()

			s.logger.Info("Request completed",
				slog.String("request_id", requestID),
				slog.String("server", res.Server().String()))
			return nil
		})

		s.logLoads()

		if i < s.cfg.Requests-1 {
			s.wait(gctx, s.cfg.Spacing)
		}
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	report := Report{
		Dispatched: dispatched,
		Completed:  completed,
		Elapsed:    time.Since(start),
	}
	if loads, ok := s.lb.Loads(); ok {
		report.Final = loads
	}

	s.logger.Info("All requests completed",
		slog.Int("completed", completed),
		slog.Duration("elapsed", report.Elapsed))

	return report, err
}

func (s *Simulator) logLoads() {
	loads, ok := s.lb.Loads()
	if !ok {
		return
	}

	attrs := make([]any, 0, len(loads))
	for _, l := range loads {
		attrs = append(attrs, slog.Int(l.ID.String(), l.Connections))
	}
	s.logger.Debug("Current connections", slog.Group("connections", attrs...))
}

func (s *Simulator) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (s *Simulator) randomDuration() time.Duration {
	span := s.cfg.MaxDuration - s.cfg.MinDuration
	if span <= 0 {
		return s.cfg.MinDuration
	}
	return s.cfg.MinDuration + rand.N(span)
}
