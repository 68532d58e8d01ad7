// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package h3

import (
	"context"
	"log/slog"
	"time"

	"github.com/z5labs/h3bridge/pkg/otelslog"
)

type commonOptions struct {
	logHandler slog.Handler
}

func defaultCommonOptions() commonOptions {
	return commonOptions{
		logHandler: noopLogHandler{},
	}
}

// CommonOption configures every component of this package.
type CommonOption interface {
	AcceptorOption
	ServerOption
	RuntimeOption
}

type commonOptionFunc func(*commonOptions)

func (f commonOptionFunc) applyAcceptor(ao *acceptorOptions) {
	f(&ao.commonOptions)
}

func (f commonOptionFunc) applyServer(so *serverOptions) {
	f(&so.commonOptions)
}

func (f commonOptionFunc) applyRuntime(ro *runtimeOptions) {
	f(&ro.commonOptions)
	ro.server = append(ro.server, f)
}

// LogHandler sets the handler all log records are written to. Records are
// correlated with the active span, if any.
func LogHandler(h slog.Handler) CommonOption {
	return commonOptionFunc(func(co *commonOptions) {
		co.logHandler = otelslog.NewHandler(h)
	})
}

type acceptorOptions struct {
	commonOptions

	handshakeTimeout time.Duration
}

// AcceptorOption configures a [HandshakeAcceptor].
type AcceptorOption interface {
	applyAcceptor(*acceptorOptions)
}

type acceptorOptionFunc func(*acceptorOptions)

func (f acceptorOptionFunc) applyAcceptor(ao *acceptorOptions) {
	f(ao)
}

// HandshakeTimeout bounds how long a single handshake may take. A zero
// or negative duration means handshakes are only bounded by the listener.
func HandshakeTimeout(d time.Duration) AcceptorOption {
	return acceptorOptionFunc(func(ao *acceptorOptions) {
		ao.handshakeTimeout = d
	})
}

type serverOptions struct {
	commonOptions
}

// ServerOption configures a [Server].
type ServerOption interface {
	applyServer(*serverOptions)
}

type runtimeOptions struct {
	commonOptions

	server       []ServerOption
	drainTimeout time.Duration
}

// RuntimeOption configures a [Runtime].
type RuntimeOption interface {
	applyRuntime(*runtimeOptions)
}

type runtimeOptionFunc func(*runtimeOptions)

func (f runtimeOptionFunc) applyRuntime(ro *runtimeOptions) {
	f(ro)
}

// DrainTimeout bounds how long a [Runtime] waits for in-flight
// connections and requests to complete once it has been asked to stop.
// Once it elapses they are cancelled. A zero or negative duration means
// the Runtime waits until it is forced to stop.
func DrainTimeout(d time.Duration) RuntimeOption {
	return runtimeOptionFunc(func(ro *runtimeOptions) {
		ro.drainTimeout = d
	})
}

// WithServerOptions passes opts to the [Server] created by a [Runtime].
func WithServerOptions(opts ...ServerOption) RuntimeOption {
	return runtimeOptionFunc(func(ro *runtimeOptions) {
		ro.server = append(ro.server, opts...)
	})
}

type noopLogHandler struct{}

func (noopLogHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (noopLogHandler) Handle(context.Context, slog.Record) error { return nil }
func (h noopLogHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h noopLogHandler) WithGroup(string) slog.Handler           { return h }
