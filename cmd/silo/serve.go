package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"

	"github.com/hupe1980/silo"
	"github.com/hupe1980/silo/config"
	"github.com/hupe1980/silo/server"
)

func newServeCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the query server",
		Flags: []cli.Flag{confFlag()},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, c.String("conf"))
		},
	}
}

func serve(ctx context.Context, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	logger, err := cfg.Log.Logger(os.Stderr)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := server.NewPrometheusCollector(reg)

	store, err := cfg.Storage.OpenStore(ctx)
	if err != nil {
		return err
	}

	opts := append(cfg.Options(),
		silo.WithLogger(logger),
		silo.WithMetricsCollector(metrics),
		silo.WithResourceController(cfg.Controller()),
	)
	db, err := silo.Open(ctx, store, opts...)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.InfoContext(ctx, "silo started",
		"version", VERSION,
		"storage", cfg.Storage.Type,
		"dataVersion", db.DataVersion(),
	)

	srv := server.New(db, cfg.Server(),
		server.WithLogger(logger),
		server.WithMetrics(metrics, reg),
	)
	return srv.Run(ctx)
}
