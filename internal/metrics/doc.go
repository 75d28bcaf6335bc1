// Package metrics collects selection and connection-accounting metrics for
// the load balancer.
//
// Events flow through a buffered channel into a dedicated goroutine, so the
// selection path never blocks on bookkeeping:
//   - Selections per server
//   - Requests started and finished per server
//   - In-flight requests per server
//   - Accounting calls rejected for unknown servers
//
// Every processed event is mirrored into a private Prometheus registry.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:   metrics.EventServerSelected,
//		Server: "server1",
//	})
//
//	snapshot := collector.Snapshot("least-conn")
//
// On context cancellation the collector drains queued events before exiting.
package metrics
