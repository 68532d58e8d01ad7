// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package h2 provides an HTTP/2 over TLS server, which implements the
// h3bridge.App interface, for clients which can not reach the HTTP/3
// endpoint. Responses advertise the HTTP/3 endpoint with Alt-Svc.
package h2

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/z5labs/h3bridge/pkg/health"
	"github.com/z5labs/h3bridge/pkg/otelslog"
	"github.com/z5labs/h3bridge/pkg/slogfield"

	"golang.org/x/sync/errgroup"
)

type options struct {
	logHandler      slog.Handler
	listener        net.Listener
	altSvc          string
	readTimeout     time.Duration
	shutdownTimeout time.Duration
}

// Option configures a [Server].
type Option func(*options)

// LogHandler sets the handler all log records are written to.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = otelslog.NewHandler(h)
	}
}

// Listener makes the Server accept connections from ln instead of
// listening on its address. ln is wrapped with TLS by the Server.
func Listener(ln net.Listener) Option {
	return func(o *options) {
		o.listener = ln
	}
}

// AdvertiseHTTP3 adds an Alt-Svc header to every response telling
// clients HTTP/3 is served on the given UDP port for maxAge.
func AdvertiseHTTP3(port int, maxAge time.Duration) Option {
	return func(o *options) {
		o.altSvc = fmt.Sprintf(`h3=":%d"; ma=%d`, port, int64(maxAge/time.Second))
	}
}

// ReadHeaderTimeout bounds how long reading a request header may take.
func ReadHeaderTimeout(d time.Duration) Option {
	return func(o *options) {
		o.readTimeout = d
	}
}

// ShutdownTimeout bounds how long the Server waits for active requests
// once it is asked to stop. Zero or negative durations keep the
// default of 10 seconds.
func ShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// Server serves an [http.Handler] over HTTP/2 and TLS.
type Server struct {
	addr            string
	listen          func(string, string) (net.Listener, error)
	ln              net.Listener
	log             *slog.Logger
	tlsConfig       *tls.Config
	altSvc          string
	readTimeout     time.Duration
	shutdownTimeout time.Duration
	h               http.Handler

	ready health.Binary
}

// NewServer returns a Server which serves h on the TCP address addr.
// The Server does not instrument h so it should already be wrapped with
// otelhttp if request telemetry is wanted.
func NewServer(addr string, tlsConfig *tls.Config, h http.Handler, opts ...Option) *Server {
	o := &options{
		logHandler:      noopLogHandler{},
		shutdownTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}

	s := &Server{
		addr:            addr,
		listen:          net.Listen,
		ln:              o.listener,
		log:             slog.New(o.logHandler),
		tlsConfig:       tlsConfig.Clone(),
		altSvc:          o.altSvc,
		readTimeout:     o.readTimeout,
		shutdownTimeout: o.shutdownTimeout,
		h:               h,
	}
	s.ready.Set(false)
	return s
}

// Readiness reports healthy while the Server is accepting connections.
func (s *Server) Readiness() health.Metric {
	return &s.ready
}

// Run implements the h3bridge.App interface. It serves until ctx is
// cancelled and then gracefully shuts down.
func (s *Server) Run(ctx context.Context) error {
	ls := s.ln
	if ls == nil {
		var err error
		ls, err = s.listen("tcp", s.addr)
		if err != nil {
			s.log.ErrorContext(ctx, "failed to listen for connections", slogfield.Error(err))
			return err
		}
	}

	tlsConfig := s.tlsConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{}
	}
	tlsConfig.NextProtos = []string{"h2", "http/1.1"}
	ls = tls.NewListener(ls, tlsConfig)

	srv := &http.Server{
		Handler:           http.HandlerFunc(s.serveHTTP),
		ReadHeaderTimeout: s.readTimeout,
		ErrorLog:          slog.NewLogLogger(s.log.Handler(), slog.LevelWarn),
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		s.ready.Set(false)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()

		s.log.InfoContext(ctx, "shutting down http/2 server")
		defer s.log.InfoContext(ctx, "shut down http/2 server")
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		s.ready.Set(true)
		s.log.InfoContext(ctx, "started http/2 server", slogfield.ListenAddr(ls.Addr()))
		return srv.Serve(ls)
	})

	err := g.Wait()
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	s.log.ErrorContext(ctx, "http/2 server encountered unexpected error", slogfield.Error(err))
	return err
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if s.altSvc != "" {
		w.Header().Set("Alt-Svc", s.altSvc)
	}
	s.h.ServeHTTP(w, r)
}

type noopLogHandler struct{}

func (noopLogHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (noopLogHandler) Handle(context.Context, slog.Record) error { return nil }
func (h noopLogHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h noopLogHandler) WithGroup(string) slog.Handler           { return h }
