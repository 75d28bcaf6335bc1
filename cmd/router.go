package main

import (
	"net/http"

	"github.com/angeloszaimis/balancer-core/internal/metrics"
)

func setupRouter(metricsCollector *metrics.Collector, strategy string) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/stats", metricsCollector.Handler(strategy))
	mux.Handle("/metrics", metricsCollector.PrometheusHandler())

	return mux
}
