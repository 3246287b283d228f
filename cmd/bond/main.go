// Command bond runs one scheduling pass of the reconciliation engine:
// it computes the wake plan for the rest of the day, fires each wake in
// order, then exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xraph/bond"
	audithook "github.com/xraph/bond/audit_hook"
	"github.com/xraph/bond/config"
	"github.com/xraph/bond/observability"
	"github.com/xraph/bond/schedule"
	"github.com/xraph/bond/telemetry"
)

func main() {
	path := flag.String("config", "bond.yaml", "path to the YAML configuration")
	once := flag.String("once", "", "run a single cycle now instead of the wake plan: all or hourly")
	flag.Parse()

	if err := run(*path, *once); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(path, once string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	log := cfg.Logger(os.Stderr)

	items, closers, err := cfg.BuildItems(log)
	if err != nil {
		return err
	}
	defer closeAll(log, closers)

	reg := prometheus.NewRegistry()
	opts := []bond.Option{
		bond.WithLogger(log),
		bond.WithStore(cfg.BuildStore(log)),
		bond.WithRemote(cfg.BuildRemote(log)),
		bond.WithRetryPolicy(cfg.RetryPolicy()),
		bond.WithItems(items...),
		bond.WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))),
		bond.WithPlugin(audithook.New(audithook.SlogRecorder(log.With("component", "audit")),
			audithook.WithLogger(log),
			audithook.WithDisabledActions(audithook.ActionReadingAppended),
		)),
	}
	if len(cfg.Telemetry.Brokers) > 0 {
		opts = append(opts, bond.WithPlugin(telemetry.NewKafka(cfg.Telemetry.Brokers, cfg.Telemetry.Topic,
			telemetry.WithLogger(log),
		)))
	}

	engine := bond.New(opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, reg, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx) //nolint:errcheck // best-effort on exit
		}()
	}

	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := engine.Stop(); err != nil {
			log.Error("engine stop failed", "error", err)
		}
	}()

	switch once {
	case "":
		err = schedule.New(engine.WakePlan(time.Now()), schedule.WithLogger(log)).Run(ctx)
	case "all":
		engine.RunCycle(ctx)
	case string(bond.Hourly):
		engine.RunCycle(ctx, bond.Hourly)
	default:
		return fmt.Errorf("bond: unknown -once value %q", once)
	}

	if errors.Is(err, context.Canceled) {
		log.Info("interrupted")
		return nil
	}
	return err
}

func serveMetrics(addr string, reg *prometheus.Registry, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", "error", err)
		}
	}()
	log.Info("metrics listening", "addr", addr)
	return srv
}

func closeAll(log *slog.Logger, closers []io.Closer) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			log.Warn("close failed", "error", err)
		}
	}
}
