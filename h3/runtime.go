// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package h3

import (
	"context"
	"errors"
	"log/slog"

	"github.com/z5labs/h3bridge/internal/try"
	"github.com/z5labs/h3bridge/pkg/app"
	"github.com/z5labs/h3bridge/pkg/health"
	"github.com/z5labs/h3bridge/pkg/slogfield"
)

// ErrDrainTimeout is the cause given to in-flight work which is cancelled
// because a [Runtime] ran out of time to drain.
var ErrDrainTimeout = errors.New("h3: drain timeout elapsed")

// Runtime runs a [Server] as an h3bridge.App.
type Runtime struct {
	log  *slog.Logger
	acc  Acceptor
	svc  Service
	opts runtimeOptions

	started health.Binary
	ready   health.Binary
}

// NewRuntime returns a Runtime serving svc over the connections
// yielded by acc. If acc implements [io.Closer] it is closed once
// the Runtime has finished draining.
func NewRuntime(acc Acceptor, svc Service, opts ...RuntimeOption) *Runtime {
	ro := runtimeOptions{
		commonOptions: defaultCommonOptions(),
	}
	for _, opt := range opts {
		opt.applyRuntime(&ro)
	}

	rt := &Runtime{
		log:  slog.New(ro.logHandler),
		acc:  acc,
		svc:  svc,
		opts: ro,
	}
	rt.started.Set(false)
	rt.ready.Set(false)
	return rt
}

// Started reports healthy once the Runtime has begun accepting connections.
func (rt *Runtime) Started() health.Metric {
	return &rt.started
}

// Readiness reports healthy while the Runtime is accepting connections.
func (rt *Runtime) Readiness() health.Metric {
	return health.And(&rt.started, &rt.ready)
}

// Run implements the h3bridge.App interface.
//
// Connections are accepted until ctx is cancelled. The Runtime then stops
// being ready and waits for in-flight requests to complete. Waiting ends
// early, cancelling whatever is left, once the drain timeout elapses or the
// app is forced to stop, see [app.ForceDone].
func (rt *Runtime) Run(ctx context.Context) (err error) {
	defer try.Close(&err, rt.acc)

	srv := NewServer(rt.svc, rt.opts.server...)

	rt.started.Set(true)
	rt.ready.Set(true)
	serveErr := srv.Serve(ctx, rt.acc)
	rt.ready.Set(false)

	rt.log.InfoContext(ctx, "draining in-flight requests", slogfield.Duration("drain_timeout", rt.opts.drainTimeout))

	drainCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	defer cancel(nil)
	if rt.opts.drainTimeout > 0 {
		var stop context.CancelFunc
		drainCtx, stop = context.WithTimeoutCause(drainCtx, rt.opts.drainTimeout, ErrDrainTimeout)
		defer stop()
	}

	force := app.ForceDone(ctx)
	go func() {
		select {
		case <-drainCtx.Done():
		case <-force:
			cancel(app.ErrForced)
		}
	}()

	shutdownErr := srv.Shutdown(drainCtx)
	if shutdownErr != nil {
		rt.log.WarnContext(ctx, "cancelled in-flight requests", slogfield.Error(shutdownErr))
	} else {
		rt.log.InfoContext(ctx, "drained in-flight requests")
	}
	return serveErr
}
