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
	"net"
	"sync"
	"time"

	"github.com/z5labs/h3bridge/pkg/slogfield"

	"go.opentelemetry.io/otel/metric"
)

type handshakeResult struct {
	conn Conn
	info ConnectInfo
	err  error
}

// HandshakeAcceptor turns a [Listener] into an [Acceptor].
//
// Every incoming connection is handshaken in its own goroutine so a slow
// peer never delays the acceptance of others. Connections whose handshake
// fails are logged and discarded.
//
// Accept must not be called concurrently.
type HandshakeAcceptor struct {
	log              *slog.Logger
	ln               Listener
	handshakeTimeout time.Duration
	failures         metric.Int64Counter

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	incoming  chan Incoming
	listenEnd chan struct{}
	listenErr error
	done      chan handshakeResult

	closeOnce sync.Once
	closeErr  error

	// only touched by Accept
	listenEnded bool
	inflight    int
}

// NewHandshakeAcceptor returns an Acceptor for connections arriving on ln.
func NewHandshakeAcceptor(ln Listener, opts ...AcceptorOption) *HandshakeAcceptor {
	ao := &acceptorOptions{
		commonOptions: defaultCommonOptions(),
	}
	for _, opt := range opts {
		opt.applyAcceptor(ao)
	}

	log := slog.New(ao.logHandler)
	failures, err := newHandshakeFailures()
	if err != nil {
		log.Warn("failed to create handshake failure counter", slogfield.Error(err))
		failures = noopHandshakeFailures()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &HandshakeAcceptor{
		log:              log,
		ln:               ln,
		handshakeTimeout: ao.handshakeTimeout,
		failures:         failures,
		ctx:              ctx,
		cancel:           cancel,
		incoming:         make(chan Incoming),
		listenEnd:        make(chan struct{}),
		done:             make(chan handshakeResult),
	}
}

func (a *HandshakeAcceptor) start() {
	a.startOnce.Do(func() {
		go a.pump()
	})
}

func (a *HandshakeAcceptor) pump() {
	defer close(a.listenEnd)

	for {
		in, err := a.ln.Accept(a.ctx)
		if err != nil && a.ctx.Err() != nil {
			a.listenErr = net.ErrClosed
			return
		}
		if err != nil {
			a.listenErr = err
			return
		}

		select {
		case <-a.ctx.Done():
			in.Reject()
			a.listenErr = net.ErrClosed
			return
		case a.incoming <- in:
		}
	}
}

// Accept implements the [Acceptor] interface.
//
// It waits for whichever happens first: the listener producing a new
// incoming connection, which is then handshaken in the background, or an
// in-flight handshake completing. [io.EOF] is returned once the listener
// has been exhausted and no handshakes remain in flight.
func (a *HandshakeAcceptor) Accept(ctx context.Context) (Conn, ConnectInfo, error) {
	a.start()

	for {
		if a.listenEnded && a.inflight == 0 {
			return nil, ConnectInfo{}, a.endOfInput()
		}

		var (
			incoming  <-chan Incoming
			listenEnd <-chan struct{}
		)
		if !a.listenEnded {
			incoming = a.incoming
			listenEnd = a.listenEnd
		}

		select {
		case <-ctx.Done():
			return nil, ConnectInfo{}, ctx.Err()
		case <-a.ctx.Done():
			return nil, ConnectInfo{}, io.EOF
		case in := <-incoming:
			a.inflight++
			go a.handshake(in)
		case <-listenEnd:
			a.listenEnded = true
			if err := a.endOfInput(); !errors.Is(err, io.EOF) {
				return nil, ConnectInfo{}, err
			}
			a.log.DebugContext(ctx, "listener exhausted", slogfield.Int("inflight_handshakes", a.inflight))
		case res := <-a.done:
			a.inflight--
			if res.err != nil {
				a.failures.Add(ctx, 1)
				a.log.WarnContext(
					ctx,
					"discarding connection after failed handshake",
					slogfield.RemoteAddr(res.info.RemoteAddr),
					slogfield.Error(res.err),
				)
				continue
			}
			return res.conn, res.info, nil
		}
	}
}

func (a *HandshakeAcceptor) endOfInput() error {
	err := a.listenErr
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return io.EOF
	}
	return ListenError{Cause: err}
}

func (a *HandshakeAcceptor) handshake(in Incoming) {
	ctx := a.ctx
	if a.handshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.handshakeTimeout)
		defer cancel()
	}

	conn, info, err := in.Handshake(ctx)
	if err != nil {
		in.Reject()
		err = HandshakeError{RemoteAddr: info.RemoteAddr, Cause: err}
	}

	select {
	case <-a.ctx.Done():
		if conn != nil {
			conn.Close()
		}
	case a.done <- handshakeResult{conn: conn, info: info, err: err}:
	}
}

// Close stops accepting new connections and closes the underlying
// [Listener]. Connections still handshaking are discarded.
func (a *HandshakeAcceptor) Close() error {
	a.closeOnce.Do(func() {
		a.cancel()
		a.closeErr = a.ln.Close()
	})
	return a.closeErr
}
