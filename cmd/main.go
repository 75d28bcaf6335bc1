package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/balancer-core/config"
	"github.com/angeloszaimis/balancer-core/internal/backend"
	"github.com/angeloszaimis/balancer-core/internal/httpserver"
	"github.com/angeloszaimis/balancer-core/internal/loadbalancer"
	"github.com/angeloszaimis/balancer-core/internal/metrics"
	"github.com/angeloszaimis/balancer-core/internal/simulator"
	"github.com/angeloszaimis/balancer-core/internal/strategy"
	"github.com/angeloszaimis/balancer-core/pkg/logger"
)

func main() {
	flags := newFlagSet()
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	opts := []config.Option{config.WithFlags(flags)}
	if path, _ := flags.GetString("config"); path != "" {
		opts = append(opts, config.WithFile(path))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.AddSource, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Balancer exited with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("balancer", pflag.ContinueOnError)
	flags.String("config", "", "path to a YAML config file")
	flags.String("strategy.type", string(strategy.KindRoundRobin),
		"selection strategy: round-robin, weighted-round-robin or least-conn")
	flags.Int("simulation.requests", 16, "number of simulated requests")
	flags.Int("simulation.concurrency", 16, "maximum requests in flight")
	flags.String("metrics.address", "", "host:port for the metrics endpoints, empty disables them")
	return flags
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	collector := metrics.NewCollector(cfg.Metrics.BufferSize, log)
	collector.Start(ctx)

	strat, err := createStrategy(log, cfg.Strategy.Type, cfg.WeightedServers())
	if err != nil {
		return errors.Wrapf(err, "create strategy %q", cfg.Strategy.Type)
	}

	lb := loadbalancer.NewLoadBalancer(strat,
		loadbalancer.WithLogger(log),
		loadbalancer.WithCollector(collector))

	sim, err := buildSimulator(lb, cfg.Simulation, log)
	if err != nil {
		return err
	}

	var srv *httpserver.Server
	if cfg.Metrics.Address != "" {
		srv, err = httpserver.New(cfg.Metrics.Address, setupRouter(collector, strat.Name()), log)
		if err != nil {
			return errors.Wrap(err, "create metrics server")
		}
	}

	log.Info("Starting simulation",
		slog.String("strategy", strat.Name()),
		slog.Int("servers", len(cfg.Servers)),
		slog.Int("requests", cfg.Simulation.Requests))

	g, gctx := errgroup.WithContext(ctx)

	if srv != nil {
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	g.Go(func() error {
		report, err := sim.Run(gctx)
		logReport(log, report)
		if err != nil && !errors.Is(err, context.Canceled) {
			return errors.Wrap(err, "simulation")
		}
		if srv != nil && err == nil {
			log.Info("Simulation finished, serving metrics until interrupted",
				slog.String("addr", cfg.Metrics.Address))
		}
		return nil
	})

	return g.Wait()
}

// createStrategy falls back to round robin for unknown strategy names.
func createStrategy(logger *slog.Logger, strategyType string, servers []backend.Weighted) (strategy.Strategy, error) {
	kind, err := strategy.ParseKind(strategyType)
	if err != nil {
		logger.Warn("Unknown strategy, defaulting to round-robin", slog.String("requested", strategyType))
		kind = strategy.KindRoundRobin
	}

	return strategy.New(kind, servers)
}

func buildSimulator(lb *loadbalancer.LoadBalancer, sc config.SimulationConfig, log *slog.Logger) (*simulator.Simulator, error) {
	minDuration, maxDuration, spacing, err := sc.Durations()
	if err != nil {
		return nil, errors.Wrap(err, "simulation durations")
	}

	sim, err := simulator.New(lb, simulator.Config{
		Requests:    sc.Requests,
		Concurrency: sc.Concurrency,
		MinDuration: minDuration,
		MaxDuration: maxDuration,
		Spacing:     spacing,
	}, simulator.WithLogger(log))
	if err != nil {
		return nil, errors.Wrap(err, "create simulator")
	}

	return sim, nil
}

func logReport(log *slog.Logger, report simulator.Report) {
	ids := make([]string, 0, len(report.Dispatched))
	for id := range report.Dispatched {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)

	for _, id := range ids {
		log.Info("Requests dispatched",
			slog.String("server", id),
			slog.Int("count", report.Dispatched[backend.ServerID(id)]))
	}

	for _, load := range report.Final {
		log.Info("Final connections",
			slog.String("server", load.ID.String()),
			slog.Int("connections", load.Connections))
	}

	log.Info("Simulation report",
		slog.Int("completed", report.Completed),
		slog.Duration("elapsed", report.Elapsed))
}
