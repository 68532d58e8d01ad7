// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package h3

import (
	"context"
	"io"
	"net"
	"net/http"

	"github.com/z5labs/h3bridge/body"
	"github.com/z5labs/h3bridge/internal/try"
	"github.com/z5labs/h3bridge/pkg/slogfield"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// serveRequest runs a single request exchange to completion.
//
// The send half is aborted whenever the exchange did not finish, which
// covers every error as well as panics raised by the Service.
func (s *Server) serveRequest(ctx context.Context, info ConnectInfo, head *http.Request, stream RequestStream) (err error) {
	ctx, span := s.tracer.Start(ctx, "h3.Server.serveRequest", trace.WithAttributes(
		attribute.String("http.request.method", head.Method),
		attribute.String("url.path", head.URL.Path),
	))
	defer span.End()

	s.metrics.requests.Add(ctx, 1)
	s.metrics.activeRequests.Add(ctx, 1)
	defer s.metrics.activeRequests.Add(ctx, -1)

	send, recv := stream.Split()

	finished := false
	defer func() {
		if finished {
			return
		}
		send.Abort(err)

		stg := stage(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, stg)
		s.metrics.requestErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stg)))
		s.log.ErrorContext(
			ctx,
			"failed to serve request",
			slogfield.Stage(stg),
			slogfield.Method(head.Method),
			slogfield.Path(head.URL.Path),
			slogfield.Error(err),
		)
	}()
	defer try.Recover(&err)

	req := &Request{
		Head:        prepareHead(ctx, head, info),
		Body:        body.NewIncoming(recv),
		ConnectInfo: info,
	}

	resp, err := s.svc.Serve(ctx, req)
	if err != nil {
		return ServiceError{Cause: err}
	}
	if resp == nil {
		return ServiceError{Cause: ErrNilResponse}
	}
	defer closeBody(resp.Body)

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	span.SetAttributes(attribute.Int("http.response.status_code", status))

	err = send.SendResponse(ctx, status, resp.Header)
	if err != nil {
		return WriteHeadError{Cause: err}
	}

	err = body.Send(ctx, send, resp.Body)
	if err != nil {
		return WriteBodyError{Cause: err}
	}

	finished = true
	return nil
}

func prepareHead(ctx context.Context, head *http.Request, info ConnectInfo) *http.Request {
	r := head.WithContext(ctx)
	r.Body = http.NoBody
	if r.RemoteAddr == "" {
		r.RemoteAddr = addrString(info.RemoteAddr)
	}
	if r.Host == "" && r.URL != nil {
		r.Host = r.URL.Host
	}
	return r
}

func closeBody(b body.Body) {
	if c, ok := b.(io.Closer); ok {
		c.Close()
	}
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}
