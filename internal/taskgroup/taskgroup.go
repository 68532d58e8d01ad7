// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package taskgroup provides a set of goroutines which can be joined
// and, if joining takes too long, cancelled as a whole.
package taskgroup

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/z5labs/h3bridge/internal/try"
	"github.com/z5labs/h3bridge/pkg/slogfield"
)

// ErrCancelled is the cancellation cause given to tasks when a
// [Group] is cancelled without an explicit cause.
var ErrCancelled = errors.New("taskgroup: cancelled")

// Task is a unit of work run by a [Group].
type Task func(context.Context) error

// Group tracks goroutines started with [Group.Go].
//
// Tasks are detached from the cancellation of the context they are started
// with. They are only cancelled by [Group.Cancel] or by [Group.Join] giving up.
type Group struct {
	log *slog.Logger

	ctx    context.Context
	cancel context.CancelCauseFunc

	wg sync.WaitGroup
}

// New returns an empty Group. A nil logger discards all records.
func New(log *slog.Logger) *Group {
	if log == nil {
		log = slog.New(noopLogHandler{})
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	return &Group{
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Go runs t in a new goroutine.
//
// The context given to t carries the values of parent but is only cancelled
// once the Group is. A panic in t is recovered and logged, as is any
// error t returns.
func (g *Group) Go(parent context.Context, t Task) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		ctx, cancel := context.WithCancelCause(context.WithoutCancel(parent))
		defer cancel(nil)

		stop := context.AfterFunc(g.ctx, func() {
			cancel(context.Cause(g.ctx))
		})
		defer stop()

		err := try.Call(ctx, t)
		if err == nil {
			return
		}

		var perr try.PanicError
		if errors.As(err, &perr) {
			g.log.ErrorContext(ctx, "recovered from panic in task", slogfield.Error(err))
			return
		}
		g.log.ErrorContext(ctx, "task failed", slogfield.Error(err))
	}()
}

// Cancel cancels every running and future task with cause. A nil cause
// is replaced with [ErrCancelled].
func (g *Group) Cancel(cause error) {
	if cause == nil {
		cause = ErrCancelled
	}
	g.cancel(cause)
}

// Wait blocks until every task has returned.
func (g *Group) Wait() {
	g.wg.Wait()
}

// Join waits for every task to return. If ctx is done first, the Group is
// cancelled with the cause of ctx and Join keeps waiting for the tasks to
// exit before returning that cause.
func (g *Group) Join(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.wg.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	cause := context.Cause(ctx)
	g.Cancel(cause)
	<-done
	return cause
}

type noopLogHandler struct{}

func (noopLogHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (noopLogHandler) Handle(context.Context, slog.Record) error { return nil }
func (h noopLogHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h noopLogHandler) WithGroup(string) slog.Handler           { return h }
