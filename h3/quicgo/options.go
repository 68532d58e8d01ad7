// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package quicgo

import (
	"context"
	"log/slog"
	"time"

	"github.com/z5labs/h3bridge/pkg/otelslog"

	"github.com/quic-go/quic-go"
)

type options struct {
	logHandler       slog.Handler
	quicConfig       *quic.Config
	handshakeTimeout time.Duration
	idleTimeout      time.Duration
	maxHeaderBytes   int
}

// Option configures a [Listener] and the connections it accepts.
type Option func(*options)

// LogHandler sets the handler log records from the HTTP/3 layer are
// written to.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = otelslog.NewHandler(h)
	}
}

// QUICConfig sets the base QUIC transport parameters. The config is
// cloned before any other option modifies it.
func QUICConfig(cfg *quic.Config) Option {
	return func(o *options) {
		if cfg == nil {
			o.quicConfig = nil
			return
		}
		o.quicConfig = cfg.Clone()
	}
}

// HandshakeTimeout bounds how long the QUIC handshake of a single
// connection may stay idle before it fails.
func HandshakeTimeout(d time.Duration) Option {
	return func(o *options) {
		o.handshakeTimeout = d
	}
}

// IdleTimeout closes connections which have had no open request
// streams for the given duration. Zero means no timeout.
func IdleTimeout(d time.Duration) Option {
	return func(o *options) {
		o.idleTimeout = d
	}
}

// MaxHeaderBytes limits the size of a decoded request header block.
// Zero means [net/http.DefaultMaxHeaderBytes].
func MaxHeaderBytes(n int) Option {
	return func(o *options) {
		o.maxHeaderBytes = n
	}
}

func newOptions(opts ...Option) options {
	o := options{
		logHandler: noopLogHandler{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.quicConfig == nil {
		o.quicConfig = &quic.Config{}
	}
	if o.handshakeTimeout > 0 {
		o.quicConfig.HandshakeIdleTimeout = o.handshakeTimeout
	}
	return o
}

type noopLogHandler struct{}

func (noopLogHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (noopLogHandler) Handle(context.Context, slog.Record) error { return nil }
func (h noopLogHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h noopLogHandler) WithGroup(string) slog.Handler           { return h }
