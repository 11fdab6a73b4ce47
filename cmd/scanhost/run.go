package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/waftester/scanhost/pkg/cli"
	"github.com/waftester/scanhost/pkg/config"
	"github.com/waftester/scanhost/pkg/duration"
	"github.com/waftester/scanhost/pkg/kb"
	"github.com/waftester/scanhost/pkg/metrics"
	"github.com/waftester/scanhost/pkg/netclient"
	"github.com/waftester/scanhost/pkg/output"
	"github.com/waftester/scanhost/pkg/plugin"
	"github.com/waftester/scanhost/pkg/report"
	"github.com/waftester/scanhost/pkg/tasks"
	"github.com/waftester/scanhost/pkg/telemetry"
	"github.com/waftester/scanhost/pkg/workerpool"
)

// runScan runs one round of every enabled plugin against the target.
// Findings go to the configured sink; logs and the summary go to stderr.
func runScan(parent context.Context, args []string, stderr io.Writer) (err error) {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: scanhost run [flags] <target>")
		fs.PrintDefaults()
	}

	cfg, err := config.Parse(fs, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(stderr, cfg.LogLevel())
	ctx, stop := cli.SignalContext(parent, duration.ShutdownGrace, logger)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		srv, err := metrics.Serve(m, cfg.Metrics.Addr, cfg.Metrics.Path)
		if err != nil {
			return err
		}
		logger.Info("serving metrics", slog.String("addr", srv.Addr()))
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), duration.ShutdownGrace)
			defer cancel()
			_ = srv.Close(sctx)
		}()
	}

	if cfg.Tracing.Endpoint != "" {
		tp, err := telemetry.Setup(ctx, cfg.TelemetryOptions())
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), duration.TelemetryShutdown)
			defer cancel()
			if err := tp.Shutdown(sctx); err != nil {
				logger.Warn("trace shutdown", slog.String("error", err.Error()))
			}
		}()
	}

	sink, err := output.Open(cfg.OutputOptions())
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, output.Close(sink))
	}()

	pool := workerpool.New(cfg.Concurrency, workerpool.WithPanicHandler(func(r any) {
		logger.Error("worker panic", slog.Any("panic", r))
	}))
	defer pool.Close()

	store := kb.New()
	env := plugin.Env{
		Client:   netclient.NewHTTP(cfg.HTTPConfig()),
		Tracker:  tasks.New(pool, tasks.WithLogger(logger), tasks.WithMetrics(m)),
		Store:    store,
		Reporter: report.New(sink, report.WithLogger(logger), report.WithMetrics(m)),
		Logger:   logger,
		Metrics:  m,
	}

	host, err := newHost(env, cfg.Plugins.Enabled, cfg.Plugins.Dir)
	if err != nil {
		return err
	}
	if err := host.Configure(cfg.PluginOptions()); err != nil {
		return err
	}
	if err := host.CheckDependencies(); err != nil {
		return err
	}

	req := plugin.NewRequest(cfg.Target)
	logger.Info("scan started",
		slog.String("target", req.Target),
		slog.String("scan_id", req.ScanID.String()),
		slog.Any("plugins", host.List()),
	)

	outcomes := host.RunAll(ctx, req)
	endErr := host.End()

	printSummary(stderr, outcomes, store, cfg.Output.NoColor)

	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	var failed int
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		endErr = errors.Join(endErr, fmt.Errorf("%d of %d plugins failed", failed, len(outcomes)))
	}
	return endErr
}
