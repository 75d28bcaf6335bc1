package loadbalancer

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/angeloszaimis/balancer-core/internal/backend"
	"github.com/angeloszaimis/balancer-core/internal/metrics"
	"github.com/angeloszaimis/balancer-core/internal/strategy"
)

// LoadBalancer is the routing-layer entry point to a strategy. It serializes
// calls into strategies that are not internally synchronized and pairs
// selection with connection accounting for those that track load.
type LoadBalancer struct {
	strategy  strategy.Strategy
	tracker   strategy.LoadTracker
	serialize bool
	mutex     sync.Mutex
	logger    *slog.Logger
	collector *metrics.Collector
}

type Option func(*LoadBalancer)

func WithLogger(logger *slog.Logger) Option {
	return func(lb *LoadBalancer) {
		lb.logger = logger
	}
}

func WithCollector(collector *metrics.Collector) Option {
	return func(lb *LoadBalancer) {
		lb.collector = collector
	}
}

func NewLoadBalancer(strat strategy.Strategy, opts ...Option) *LoadBalancer {
	lb := &LoadBalancer{
		strategy:  strat,
		serialize: !strategy.Synchronized(strat),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	if tracker, ok := strat.(strategy.LoadTracker); ok {
		lb.tracker = tracker
	}

	for _, opt := range opts {
		opt(lb)
	}

	return lb
}

// Next selects a server without reserving it.
func (lb *LoadBalancer) Next() backend.ServerID {
	if lb.serialize {
		lb.mutex.Lock()
		defer lb.mutex.Unlock()
	}

	id := lb.strategy.SelectNext()
	lb.emit(metrics.EventServerSelected, id)
	return id
}

// Acquire selects a server and, for load-tracking strategies, records the
// request as started. Selection and start happen under one lock, so two
// concurrent acquisitions never both see the same minimum.
// The caller must Release the reservation when the request completes.
func (lb *LoadBalancer) Acquire() (*Reservation, error) {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	id := lb.strategy.SelectNext()
	lb.emit(metrics.EventServerSelected, id)

	if lb.tracker != nil {
		if err := lb.tracker.NotifyStart(id); err != nil {
			return nil, errors.Wrapf(err, "reserve %s", id)
		}
		lb.emit(metrics.EventRequestStarted, id)
	}

	lb.logger.Debug("Reserved server",
		slog.String("strategy", lb.strategy.Name()),
		slog.String("server", id.String()))

	return &Reservation{lb: lb, server: id}, nil
}

// Start reports a request dispatched to id outside of Acquire. It is a
// no-op for strategies that do not track load.
func (lb *LoadBalancer) Start(id backend.ServerID) error {
	if lb.tracker == nil {
		return nil
	}

	if err := lb.tracker.NotifyStart(id); err != nil {
		lb.reject(id, "start", err)
		return errors.Wrapf(err, "start %s", id)
	}

	lb.emit(metrics.EventRequestStarted, id)
	return nil
}

// Finish reports a completed request on id. It is a no-op for strategies
// that do not track load.
func (lb *LoadBalancer) Finish(id backend.ServerID) error {
	if lb.tracker == nil {
		return nil
	}

	if err := lb.tracker.NotifyFinish(id); err != nil {
		lb.reject(id, "finish", err)
		return errors.Wrapf(err, "finish %s", id)
	}

	lb.emit(metrics.EventRequestFinished, id)
	return nil
}

// Loads returns the strategy's current connection counts in pool order.
// ok is false for strategies that do not track load.
func (lb *LoadBalancer) Loads() (loads []backend.Load, ok bool) {
	snapshotter, ok := lb.strategy.(interface{ Snapshot() []backend.Load })
	if !ok {
		return nil, false
	}
	return snapshotter.Snapshot(), true
}

// Tracks reports whether the underlying strategy accounts for load.
func (lb *LoadBalancer) Tracks() bool {
	return lb.tracker != nil
}

func (lb *LoadBalancer) LoadBalancerStrategy() strategy.Strategy {
	return lb.strategy
}

func (lb *LoadBalancer) reject(id backend.ServerID, op string, err error) {
	lb.logger.Warn("Rejected accounting call",
		slog.String("op", op),
		slog.String("server", id.String()),
		slog.Any("err", err))
	lb.emit(metrics.EventServerRejected, id)
}

func (lb *LoadBalancer) emit(eventType metrics.EventType, id backend.ServerID) {
	if lb.collector == nil {
		return
	}

	lb.collector.Emit(metrics.MetricEvent{
		Type:      eventType,
		Timestamp: time.Now(),
		Server:    id.String(),
	})
}
