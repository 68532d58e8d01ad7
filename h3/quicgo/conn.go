// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package quicgo

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/z5labs/h3bridge/h3"
	"github.com/z5labs/h3bridge/pkg/slogfield"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
)

// Conn is an established QUIC connection.
type Conn struct {
	qc   *quic.Conn
	opts options
	log  *slog.Logger
}

// OpenSession implements the [h3.Conn] interface.
//
// The HTTP/3 control streams, framing and QPACK are handled by quic-go.
// Every request stream it decodes is handed to [h3.Session.AcceptRequest]
// and kept open until the caller finishes or aborts it.
func (c *Conn) OpenSession(ctx context.Context) (h3.Session, error) {
	s := &session{
		log:       c.log,
		exchanges: make(chan *exchange),
		closed:    make(chan struct{}),
		done:      make(chan struct{}),
	}

	srv := &http3.Server{
		Handler:        http.HandlerFunc(s.handle),
		IdleTimeout:    c.opts.idleTimeout,
		MaxHeaderBytes: c.opts.maxHeaderBytes,
		Logger:         c.log,
	}
	go func() {
		defer close(s.done)

		s.err = srv.ServeQUICConn(c.qc)
		c.log.DebugContext(
			ctx,
			"http/3 connection ended",
			slogfield.RemoteAddr(c.qc.RemoteAddr()),
			slogfield.Error(s.err),
		)
	}()
	return s, nil
}

// Close implements the [h3.Conn] interface.
func (c *Conn) Close() error {
	return c.qc.CloseWithError(quic.ApplicationErrorCode(http3.ErrCodeNoError), "")
}

type session struct {
	log       *slog.Logger
	exchanges chan *exchange

	closeOnce sync.Once
	closed    chan struct{}

	// err is only read once done is closed
	done chan struct{}
	err  error
}

// AcceptRequest implements the [h3.Session] interface.
func (s *session) AcceptRequest(ctx context.Context) (*http.Request, h3.RequestStream, error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case <-s.closed:
		return nil, nil, net.ErrClosed
	case <-s.done:
		if s.err != nil {
			return nil, nil, s.err
		}
		return nil, nil, io.EOF
	case ex := <-s.exchanges:
		return ex.head, ex, nil
	}
}

// Close implements the [h3.Session] interface. Requests decoded after
// Close are refused.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	return nil
}

func (s *session) handle(w http.ResponseWriter, r *http.Request) {
	ex := newExchange(w, r)

	select {
	case <-r.Context().Done():
		return
	case <-s.closed:
		s.refuse(w, r)
		return
	case <-s.done:
		return
	case s.exchanges <- ex:
	}

	ex.serve()
}

func (s *session) refuse(w http.ResponseWriter, r *http.Request) {
	s.log.DebugContext(
		r.Context(),
		"refusing request on closed session",
		slogfield.Method(r.Method),
		slogfield.Path(r.URL.Path),
	)
	w.WriteHeader(http.StatusServiceUnavailable)
}
