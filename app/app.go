// Copyright (c) 2025-present deep.rent GmbH (https://deep.rent)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package app runs long-lived processes such as the manifest watcher until
// they finish or the process receives a termination signal.
//
// # Usage
//
//	err := app.Run(app.All(
//		watcher.Run,
//		app.Serve(&http.Server{Addr: ":9090", Handler: promhttp.Handler()}),
//	), app.WithLogger(logger))
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds the time a Runnable may take to return after its
// context is cancelled.
const DefaultTimeout = 10 * time.Second

// Runnable is a unit of work that stops when ctx is cancelled.
type Runnable func(ctx context.Context) error

type config struct {
	logger  *slog.Logger
	timeout time.Duration
	signals []os.Signal
	ctx     context.Context
}

// Option configures Run.
type Option func(*config)

// WithLogger sets the logger for lifecycle events. A nil value is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout sets the shutdown timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSignals replaces the signals that trigger a shutdown (SIGINT and
// SIGTERM by default).
func WithSignals(signals ...os.Signal) Option {
	return func(c *config) {
		if len(signals) > 0 {
			c.signals = signals
		}
	}
}

// WithContext sets the parent context.
func WithContext(ctx context.Context) Option {
	return func(c *config) {
		if ctx != nil {
			c.ctx = ctx
		}
	}
}

// Run executes fn and blocks until it returns. On a shutdown signal the
// context passed to fn is cancelled and fn gets the configured timeout to
// return. A panic in fn is reported as an error.
func Run(fn Runnable, opts ...Option) error {
	c := config{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
		signals: []os.Signal{syscall.SIGTERM, syscall.SIGINT},
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(&c)
	}

	ctx, stop := signal.NotifyContext(c.ctx, c.signals...)
	defer stop()

	done := make(chan error, 1)
	go func() { done <- guard(ctx, fn) }()

	c.logger.Info("Process started")

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("process failed: %w", err)
		}
		c.logger.Info("Process finished")
		return nil
	case <-ctx.Done():
	}

	c.logger.Info("Shutting down")
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		// Returning ctx.Err() after cancellation is a clean exit.
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		c.logger.Info("Shutdown complete")
		return nil
	case <-timer.C:
		return fmt.Errorf("shutdown timed out after %v", c.timeout)
	}
}

func guard(ctx context.Context, fn Runnable) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v\n%s", rec, debug.Stack())
		}
	}()
	return fn(ctx)
}

// All combines runnables into one that runs them concurrently. The first
// error cancels the others and is returned once all have stopped.
func All(fns ...Runnable) Runnable {
	return func(ctx context.Context) error {
		g, ctx := errgroup.WithContext(ctx)
		for _, fn := range fns {
			g.Go(func() error { return guard(ctx, fn) })
		}
		return g.Wait()
	}
}

// Serve returns a Runnable that serves HTTP with srv until the context is
// cancelled, then shuts srv down gracefully.
func Serve(srv *http.Server) Runnable {
	return func(ctx context.Context) error {
		errc := make(chan error, 1)
		go func() { errc <- srv.ListenAndServe() }()

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}

		// The parent context is already done; shutdown needs its own.
		sctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
