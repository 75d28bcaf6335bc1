package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type EventType string

const (
	EventServerSelected  EventType = "server_selected"
	EventRequestStarted  EventType = "request_started"
	EventRequestFinished EventType = "request_finished"
	EventServerRejected  EventType = "server_rejected"
)

type MetricEvent struct {
	Type      EventType
	Timestamp time.Time
	Server    string
}

type Collector struct {
	eventCh  chan MetricEvent
	metrics  *Metrics
	exporter *Exporter
	logger   *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh:  make(chan MetricEvent, bufferSize),
		metrics:  NewMetrics(),
		exporter: NewExporter(),
		logger:   logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Emit queues event without blocking. Events are dropped when the buffer
// is full so the selection path never waits on metrics.
func (c *Collector) Emit(event MetricEvent) bool {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case c.eventCh <- event:
		return true
	default:
		return false
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventServerSelected:
		c.metrics.RecordSelection(event.Server)
	case EventRequestStarted:
		c.metrics.RecordStart(event.Server)
	case EventRequestFinished:
		c.metrics.RecordFinish(event.Server)
	case EventServerRejected:
		c.metrics.RecordRejection()
		c.exporter.Observe(event, 0)
		return
	default:
		c.logger.Debug("Ignoring unknown metric event", slog.String("type", string(event.Type)))
		return
	}

	c.exporter.Observe(event, c.metrics.InFlight(event.Server))
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot(algorithm string) Snapshot {
	return c.metrics.Snapshot(algorithm)
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.exporter.Registry()
}
