// Package cli holds process-level helpers for the scanhost command.
package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// ErrInterrupted is the cancellation cause when the operator stops a scan.
var ErrInterrupted = errors.New("cli: scan interrupted")

// SignalContext returns a child of parent that is cancelled on SIGINT or
// SIGTERM with cause ErrInterrupted. Running plugins observe the stop as
// context.Canceled. A second signal within grace exits the process with
// status 130.
//
// Usage:
//
//	ctx, stop := cli.SignalContext(context.Background(), duration.ShutdownGrace, logger)
//	defer stop()
func SignalContext(parent context.Context, grace time.Duration, logger *slog.Logger) (context.Context, context.CancelFunc) {
	return notifyContext(parent, grace, logger, nil, nil)
}

// notifyContext lets tests inject the signal channel and exit function.
func notifyContext(
	parent context.Context,
	grace time.Duration,
	logger *slog.Logger,
	sigs chan os.Signal,
	exit func(int),
) (context.Context, context.CancelFunc) {
	if logger == nil {
		logger = slog.Default()
	}
	if exit == nil {
		exit = os.Exit
	}
	ctx, cancel := context.WithCancelCause(parent)

	own := sigs == nil
	if own {
		sigs = make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	}

	go func() {
		defer func() {
			if own {
				signal.Stop(sigs)
			}
		}()

		select {
		case sig := <-sigs:
			logger.Warn("stopping scan", slog.String("signal", sig.String()), slog.Duration("grace", grace))
			cancel(ErrInterrupted)

			select {
			case <-sigs:
				logger.Error("second signal, exiting now")
				exit(130)
			case <-time.After(grace):
			}
		case <-ctx.Done():
		}
	}()

	return ctx, func() { cancel(context.Canceled) }
}
