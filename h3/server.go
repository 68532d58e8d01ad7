// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package h3

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/z5labs/h3bridge/internal/taskgroup"
	"github.com/z5labs/h3bridge/pkg/slogfield"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Server drives a [Service] over the connections yielded by an [Acceptor].
type Server struct {
	log     *slog.Logger
	svc     Service
	tracer  trace.Tracer
	metrics *serverMetrics
	tasks   *taskgroup.Group

	// cancelled once Shutdown begins
	drainCtx context.Context
	drain    context.CancelFunc
}

// NewServer returns a Server which hands every request to svc.
func NewServer(svc Service, opts ...ServerOption) *Server {
	so := &serverOptions{
		commonOptions: defaultCommonOptions(),
	}
	for _, opt := range opts {
		opt.applyServer(so)
	}

	log := slog.New(so.logHandler)
	metrics, err := newServerMetrics()
	if err != nil {
		log.Warn("failed to create server metrics", slogfield.Error(err))
		metrics = noopServerMetrics()
	}

	drainCtx, drain := context.WithCancel(context.Background())
	return &Server{
		log:      log,
		svc:      svc,
		tracer:   otel.Tracer("h3"),
		metrics:  metrics,
		tasks:    taskgroup.New(log),
		drainCtx: drainCtx,
		drain:    drain,
	}
}

// Serve accepts connections from acc until ctx is cancelled or acc
// reports [io.EOF], in both of which cases nil is returned. Any other
// failure of acc is returned as an [AcceptError].
//
// Every connection is served in its own goroutine and every request
// stream of a connection in yet another one. These goroutines are not
// stopped when Serve returns; use [Server.Shutdown] to wait for them.
func (s *Server) Serve(ctx context.Context, acc Acceptor) error {
	s.log.InfoContext(ctx, "accepting connections")
	for {
		conn, info, err := acc.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.log.InfoContext(ctx, "stopped accepting connections")
				return nil
			}
			if errors.Is(err, io.EOF) {
				s.log.InfoContext(ctx, "no more connections to accept")
				return nil
			}
			s.log.ErrorContext(ctx, "failed to accept connection", slogfield.Error(err))
			return AcceptError{Cause: err}
		}

		s.metrics.connections.Add(ctx, 1)
		s.tasks.Go(ctx, func(ctx context.Context) error {
			s.serveConn(ctx, conn, info)
			return nil
		})
	}
}

func (s *Server) serveConn(ctx context.Context, conn Conn, info ConnectInfo) {
	ctx = WithConnectInfo(ctx, info)
	ctx, span := s.tracer.Start(ctx, "h3.Server.serveConn", trace.WithAttributes(
		attribute.String("network.peer.address", addrString(info.RemoteAddr)),
		attribute.String("tls.server_name", info.ServerName),
	))
	defer span.End()

	s.metrics.activeConnections.Add(ctx, 1)
	defer s.metrics.activeConnections.Add(ctx, -1)

	log := s.log.With(slogfield.RemoteAddr(info.RemoteAddr))
	defer func() {
		if err := conn.Close(); err != nil {
			log.DebugContext(ctx, "failed to close connection", slogfield.Error(err))
		}
	}()

	sess, err := conn.OpenSession(ctx)
	if err != nil {
		span.RecordError(err)
		log.WarnContext(ctx, "failed to open http3 session", slogfield.Error(err))
		return
	}

	// new streams are no longer accepted once the server starts draining
	acceptCtx, stopAccepting := context.WithCancel(ctx)
	defer stopAccepting()
	stop := context.AfterFunc(s.drainCtx, stopAccepting)
	defer stop()

	var inflight sync.WaitGroup
	for {
		head, stream, err := sess.AcceptRequest(acceptCtx)
		if errors.Is(err, io.EOF) {
			log.DebugContext(ctx, "peer will not open any more streams")
			break
		}
		if err != nil && acceptCtx.Err() != nil {
			log.DebugContext(ctx, "stopped accepting streams", slogfield.Error(context.Cause(acceptCtx)))
			break
		}
		if err != nil {
			span.RecordError(err)
			log.WarnContext(ctx, "failed to accept request stream", slogfield.Error(err))
			break
		}

		inflight.Add(1)
		s.tasks.Go(ctx, func(ctx context.Context) error {
			defer inflight.Done()
			s.serveRequest(ctx, info, head, stream)
			return nil
		})
	}

	inflight.Wait()
	if err := sess.Close(); err != nil {
		log.DebugContext(ctx, "failed to close http3 session", slogfield.Error(err))
	}
}

// Shutdown stops every connection from accepting new request streams and
// waits for the connection and request goroutines started by Serve to
// return. If ctx is done first, they are cancelled, their streams are
// aborted and Shutdown waits for them to exit before returning the cause
// of ctx.
//
// Shutdown does not stop Serve; cancel the context given to Serve first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.drain()
	return s.tasks.Join(ctx)
}

// Serve is a convenience for running a [Server] until ctx is cancelled
// and then waiting for all of its requests to complete.
func Serve(ctx context.Context, acc Acceptor, svc Service, opts ...ServerOption) error {
	s := NewServer(svc, opts...)
	err := s.Serve(ctx, acc)
	return errors.Join(err, s.Shutdown(context.WithoutCancel(ctx)))
}
