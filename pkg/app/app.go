// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app provides helpers for common h3bridge.App implementation patterns.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/z5labs/h3bridge"
	"github.com/z5labs/h3bridge/internal/try"
)

type runFunc func(context.Context) error

func (f runFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Recover will wrap the given [h3bridge.App] with panic recovery.
// A recovered panic is returned as a [try.PanicError].
func Recover(app h3bridge.App) h3bridge.App {
	return runFunc(func(ctx context.Context) (err error) {
		defer try.Recover(&err)

		return app.Run(ctx)
	})
}

// ErrForced is the cause of the context returned by [ForceDone] being
// done because a second signal was received.
var ErrForced = errors.New("app: forced to stop")

type forceKey struct{}

// WithSignalNotifications wraps a given [h3bridge.App] in an implementation
// that stops it in two stages.
//
// The first of signals received cancels the [context.Context] passed to
// app.Run, asking the app to stop gracefully. A second one closes the
// channel returned by [ForceDone] for that context, telling the app to
// stop waiting on anything still in flight.
func WithSignalNotifications(app h3bridge.App, signals ...os.Signal) h3bridge.App {
	return runFunc(func(ctx context.Context) error {
		forceCtx, force := context.WithCancelCause(context.Background())
		defer force(nil)

		runCtx, cancel := context.WithCancel(context.WithValue(ctx, forceKey{}, forceCtx))
		defer cancel()

		sigCh := make(chan os.Signal, 2)
		signal.Notify(sigCh, signals...)
		defer signal.Stop(sigCh)

		done := make(chan struct{})
		defer close(done)
		go func() {
			received := 0
			for {
				select {
				case <-done:
					return
				case <-sigCh:
					received++
					if received == 1 {
						cancel()
						continue
					}
					force(ErrForced)
					return
				}
			}
		}()

		return app.Run(runCtx)
	})
}

// ForceDone returns a channel which is closed once the app running with
// ctx has been forced to stop by [WithSignalNotifications]. The channel is
// nil, and so never ready, if ctx did not come from it.
func ForceDone(ctx context.Context) <-chan struct{} {
	forceCtx, ok := ctx.Value(forceKey{}).(context.Context)
	if !ok {
		return nil
	}
	return forceCtx.Done()
}

// LifecycleHook represents functionality that needs to be performed
// at a specific "time" relative to the execution of [h3bridge.App.Run].
type LifecycleHook interface {
	Run(context.Context) error
}

// LifecycleHookFunc is a convenient helper type for implementing a [LifecycleHook]
// from just a regular func.
type LifecycleHookFunc func(context.Context) error

// Run implements the [LifecycleHook] interface.
func (f LifecycleHookFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Lifecycle
type Lifecycle struct {
	// PostRun is always executed regardless if the underlying [h3bridge.App]
	// returns an error or panics. It receives a context which is no longer
	// cancelled with the one given to Run so it can flush telemetry.
	PostRun LifecycleHook
}

// WithLifecycleHooks wraps a given [h3bridge.App] in an implementation
// that runs [LifecycleHook]s around the execution of app.Run.
func WithLifecycleHooks(app h3bridge.App, lifecycle Lifecycle) h3bridge.App {
	return runFunc(func(ctx context.Context) (err error) {
		defer runPostRunHook(context.WithoutCancel(ctx), lifecycle.PostRun, &err)
		defer try.Recover(&err)

		return app.Run(ctx)
	})
}

func runPostRunHook(ctx context.Context, hook LifecycleHook, err *error) {
	if hook == nil {
		return
	}

	hookErr := hook.Run(ctx)

	// errors.Join will not return an error if both
	// *err and hookErr are nil.
	*err = errors.Join(*err, hookErr)
}
