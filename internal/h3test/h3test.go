// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package h3test provides an in-memory implementation of the h3 engine
// interfaces for use in tests.
package h3test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/z5labs/h3bridge/h3"
)

// Addr is a fake [net.Addr].
type Addr string

// Network implements the [net.Addr] interface.
func (Addr) Network() string { return "memory" }

func (a Addr) String() string { return string(a) }

// Listener is an in-memory [h3.Listener].
type Listener struct {
	incoming chan h3.Incoming

	closeOnce sync.Once
	closed    chan struct{}
}

// NewListener returns a Listener which can queue up to n incoming
// connections before [Listener.Push] blocks.
func NewListener(n int) *Listener {
	return &Listener{
		incoming: make(chan h3.Incoming, n),
		closed:   make(chan struct{}),
	}
}

// Push hands in to the next call of Accept.
func (l *Listener) Push(ctx context.Context, in h3.Incoming) error {
	select {
	case <-l.closed:
		return net.ErrClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.closed:
		return net.ErrClosed
	case l.incoming <- in:
		return nil
	}
}

// Accept implements the [h3.Listener] interface. Once the Listener is
// closed, queued connections are still returned before [io.EOF].
func (l *Listener) Accept(ctx context.Context) (h3.Incoming, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case in := <-l.incoming:
		return in, nil
	case <-l.closed:
	}

	select {
	case in := <-l.incoming:
		return in, nil
	default:
		return nil, io.EOF
	}
}

// Close implements the [h3.Listener] interface.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		close(l.closed)
	})
	return nil
}

// ErrorListener is an [h3.Listener] whose Accept always fails.
type ErrorListener struct {
	Err error
}

// Accept implements the [h3.Listener] interface.
func (l ErrorListener) Accept(context.Context) (h3.Incoming, error) {
	return nil, l.Err
}

// Close implements the [h3.Listener] interface.
func (ErrorListener) Close() error { return nil }

// Incoming is an in-memory [h3.Incoming].
type Incoming struct {
	Conn *Conn
	Info h3.ConnectInfo

	// HandshakeFunc, if set, runs before the handshake completes. A non-nil
	// error fails the handshake.
	HandshakeFunc func(context.Context) error

	mu       sync.Mutex
	rejected bool
}

// Handshake implements the [h3.Incoming] interface.
func (in *Incoming) Handshake(ctx context.Context) (h3.Conn, h3.ConnectInfo, error) {
	if in.HandshakeFunc != nil {
		if err := in.HandshakeFunc(ctx); err != nil {
			return nil, in.Info, err
		}
	}
	return in.Conn, in.Info, nil
}

// Reject implements the [h3.Incoming] interface.
func (in *Incoming) Reject() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.rejected = true
	return nil
}

// Rejected reports whether Reject was called.
func (in *Incoming) Rejected() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.rejected
}

type pendingRequest struct {
	head   *http.Request
	stream *Stream
}

// Conn is an in-memory [h3.Conn] along with the client side of its
// single HTTP/3 session.
type Conn struct {
	// OpenSessionErr, if set, is returned by OpenSession.
	OpenSessionErr error

	requests chan pendingRequest

	endOnce sync.Once
	end     chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

// NewConn returns a Conn with no open streams.
func NewConn() *Conn {
	return &Conn{
		requests: make(chan pendingRequest),
		end:      make(chan struct{}),
		closed:   make(chan struct{}),
	}
}

// OpenSession implements the [h3.Conn] interface.
func (c *Conn) OpenSession(context.Context) (h3.Session, error) {
	if c.OpenSessionErr != nil {
		return nil, c.OpenSessionErr
	}
	return session{c: c}, nil
}

// Close implements the [h3.Conn] interface.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	return nil
}

// Closed is closed once the server side has closed the Conn.
func (c *Conn) Closed() <-chan struct{} {
	return c.closed
}

// Open starts a new request stream. It blocks until the server accepts it.
func (c *Conn) Open(ctx context.Context, head *http.Request) (*Stream, error) {
	s := newStream()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, net.ErrClosed
	case <-c.end:
		return nil, net.ErrClosed
	case c.requests <- pendingRequest{head: head, stream: s}:
		return s, nil
	}
}

// Do opens a request stream, sends reqBody followed by trailers and
// waits for the response.
func (c *Conn) Do(ctx context.Context, head *http.Request, reqBody [][]byte, trailers http.Header) (*Result, error) {
	s, err := c.Open(ctx, head)
	if err != nil {
		return nil, err
	}
	for _, p := range reqBody {
		if err := s.Write(ctx, p); err != nil {
			return nil, err
		}
	}
	s.CloseSend(trailers)
	return s.Wait(ctx)
}

// End tells the server no more request streams will be opened.
func (c *Conn) End() {
	c.endOnce.Do(func() {
		close(c.end)
	})
}

type session struct {
	c *Conn
}

func (s session) AcceptRequest(ctx context.Context) (*http.Request, h3.RequestStream, error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case <-s.c.closed:
		return nil, nil, net.ErrClosed
	case req := <-s.c.requests:
		return req.head, req.stream, nil
	case <-s.c.end:
		return nil, nil, io.EOF
	}
}

func (s session) Close() error {
	return nil
}

// EventKind identifies what the server did on a [Stream].
type EventKind string

const (
	EventResponse EventKind = "response"
	EventData     EventKind = "data"
	EventTrailers EventKind = "trailers"
	EventFinish   EventKind = "finish"
	EventAbort    EventKind = "abort"
)

// Event is something the server did on the send half of a [Stream].
type Event struct {
	Kind   EventKind
	Status int
	Header http.Header
	Data   []byte
	Err    error
}

// Stream is an in-memory [h3.RequestStream]. The client writes the
// request content to it and reads back what the server sent.
type Stream struct {
	data     chan []byte
	trailers chan http.Header

	resetOnce sync.Once
	reset     chan struct{}
	resetErr  error

	mu      sync.Mutex
	events  []Event
	sendErr map[EventKind]error

	doneOnce sync.Once
	done     chan struct{}
}

func newStream() *Stream {
	return &Stream{
		data:     make(chan []byte),
		trailers: make(chan http.Header, 1),
		reset:    make(chan struct{}),
		sendErr:  make(map[EventKind]error),
		done:     make(chan struct{}),
	}
}

// Split implements the [h3.RequestStream] interface.
func (s *Stream) Split() (h3.SendStream, h3.RecvStream) {
	return sendHalf{s}, recvHalf{s}
}

// Write sends p as request content. It blocks until the server reads it.
func (s *Stream) Write(ctx context.Context, p []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return net.ErrClosed
	case s.data <- p:
		return nil
	}
}

// CloseSend ends the request content. A nil trailers means the request
// has none.
func (s *Stream) CloseSend(trailers http.Header) {
	close(s.data)
	s.trailers <- trailers
}

// Reset makes every pending and future receive on the stream fail with err.
func (s *Stream) Reset(err error) {
	s.resetOnce.Do(func() {
		s.resetErr = err
		close(s.reset)
	})
}

// FailSend makes the send primitive for kind fail with err.
func (s *Stream) FailSend(kind EventKind, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendErr[kind] = err
}

// Done is closed once the server has finished or aborted the stream.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Events returns everything the server has done on the stream so far.
func (s *Stream) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Result is the response read back from a [Stream].
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Chunks     [][]byte
	Trailers   http.Header
	Finished   bool
	AbortErr   error
	Events     []Event
}

// Wait blocks until the server is done with the stream and collects the
// response it sent.
func (s *Stream) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
	}

	res := &Result{Events: s.Events()}
	for _, ev := range res.Events {
		switch ev.Kind {
		case EventResponse:
			res.StatusCode = ev.Status
			res.Header = ev.Header
		case EventData:
			res.Body = append(res.Body, ev.Data...)
			res.Chunks = append(res.Chunks, ev.Data)
		case EventTrailers:
			res.Trailers = ev.Header
		case EventFinish:
			res.Finished = true
		case EventAbort:
			res.AbortErr = ev.Err
		}
	}
	return res, nil
}

func (s *Stream) record(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return errors.New("h3test: stream already closed")
	default:
	}
	if err := s.sendErr[ev.Kind]; err != nil {
		return err
	}
	s.events = append(s.events, ev)
	if ev.Kind == EventFinish || ev.Kind == EventAbort {
		s.doneOnce.Do(func() {
			close(s.done)
		})
	}
	return nil
}

type recvHalf struct {
	s *Stream
}

func (r recvHalf) RecvData(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.s.reset:
		return nil, r.s.resetErr
	case p, ok := <-r.s.data:
		if !ok {
			return nil, io.EOF
		}
		return p, nil
	}
}

func (r recvHalf) RecvTrailers(ctx context.Context) (http.Header, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.s.reset:
		return nil, r.s.resetErr
	case h := <-r.s.trailers:
		return h, nil
	}
}

type sendHalf struct {
	s *Stream
}

func (w sendHalf) SendResponse(_ context.Context, status int, h http.Header) error {
	return w.s.record(Event{Kind: EventResponse, Status: status, Header: h.Clone()})
}

func (w sendHalf) SendData(_ context.Context, b []byte) error {
	return w.s.record(Event{Kind: EventData, Data: append([]byte(nil), b...)})
}

func (w sendHalf) SendTrailers(_ context.Context, h http.Header) error {
	return w.s.record(Event{Kind: EventTrailers, Header: h.Clone()})
}

func (w sendHalf) Finish(context.Context) error {
	return w.s.record(Event{Kind: EventFinish})
}

func (w sendHalf) Abort(err error) {
	w.s.record(Event{Kind: EventAbort, Err: err})
}
