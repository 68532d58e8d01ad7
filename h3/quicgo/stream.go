// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package quicgo

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/z5labs/h3bridge/body"
	"github.com/z5labs/h3bridge/h3"
)

// exchange turns a single http3 handler invocation into a [h3.RequestStream].
//
// The ResponseWriter is only ever touched by the handler goroutine. The
// send half hands it operations through ops and waits for their result,
// which keeps the handler alive until the stream is finished or aborted.
type exchange struct {
	w    http.ResponseWriter
	rc   *http.ResponseController
	r    *http.Request
	head *http.Request

	ops  chan op
	done chan struct{}

	abortOnce sync.Once
	aborted   chan struct{}

	// only used by the receive half
	buf     []byte
	readErr error
}

type op struct {
	do   func() error
	last bool
	res  chan error
}

func newExchange(w http.ResponseWriter, r *http.Request) *exchange {
	head := r.WithContext(context.Background())
	head.Body = http.NoBody
	head.Trailer = nil

	return &exchange{
		w:       w,
		rc:      http.NewResponseController(w),
		r:       r,
		head:    head,
		ops:     make(chan op),
		done:    make(chan struct{}),
		aborted: make(chan struct{}),
		buf:     make([]byte, body.DefaultChunkSize),
	}
}

// serve runs in the handler goroutine until the stream is finished,
// aborted or reset by the peer.
func (ex *exchange) serve() {
	defer close(ex.done)

	for {
		select {
		case <-ex.r.Context().Done():
			return
		case <-ex.aborted:
			// http3 resets the stream when the handler panics with it
			panic(http.ErrAbortHandler)
		case o := <-ex.ops:
			err := o.do()
			o.res <- err
			if o.last && err == nil {
				return
			}
		}
	}
}

func (ex *exchange) closedErr() error {
	if err := context.Cause(ex.r.Context()); err != nil {
		return err
	}
	return net.ErrClosed
}

func (ex *exchange) submit(ctx context.Context, do func() error, last bool) error {
	o := op{do: do, last: last, res: make(chan error, 1)}

	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-ex.aborted:
		return net.ErrClosed
	case <-ex.done:
		return ex.closedErr()
	case ex.ops <- o:
	}

	select {
	case err := <-o.res:
		return err
	case <-ctx.Done():
		// unblock a write stuck on flow control and wait for it to
		// let go of the caller's buffer
		ex.rc.SetWriteDeadline(time.Now())
		<-o.res
		return context.Cause(ctx)
	case <-ex.done:
		select {
		case err := <-o.res:
			return err
		default:
			return ex.closedErr()
		}
	}
}

// Split implements the [h3.RequestStream] interface.
func (ex *exchange) Split() (h3.SendStream, h3.RecvStream) {
	return sendHalf{ex}, recvHalf{ex}
}

type recvHalf struct {
	ex *exchange
}

// RecvData implements the [body.Receiver] interface. The returned slice
// is reused by the next call.
func (rh recvHalf) RecvData(ctx context.Context) ([]byte, error) {
	ex := rh.ex
	if ex.readErr != nil {
		return nil, ex.readErr
	}

	// closing the body cancels any pending read
	stop := context.AfterFunc(ctx, func() {
		ex.r.Body.Close()
	})
	defer stop()

	for {
		n, err := ex.r.Body.Read(ex.buf)
		if n > 0 {
			ex.readErr = err
			return ex.buf[:n], nil
		}
		if err != nil {
			if ctx.Err() != nil {
				err = context.Cause(ctx)
			}
			ex.readErr = err
			return nil, err
		}
	}
}

// RecvTrailers implements the [body.Receiver] interface.
func (rh recvHalf) RecvTrailers(ctx context.Context) (http.Header, error) {
	if err := ctx.Err(); err != nil {
		return nil, context.Cause(ctx)
	}

	var h http.Header
	for k, vs := range rh.ex.r.Trailer {
		// announced trailers which never arrived have no values
		if len(vs) == 0 {
			continue
		}
		if h == nil {
			h = make(http.Header)
		}
		h[k] = append([]string(nil), vs...)
	}
	return h, nil
}

type sendHalf struct {
	ex *exchange
}

// SendResponse implements the [h3.SendStream] interface.
func (sh sendHalf) SendResponse(ctx context.Context, status int, h http.Header) error {
	ex := sh.ex
	return ex.submit(ctx, func() error {
		hdr := ex.w.Header()
		for k, vs := range h {
			hdr[k] = vs
		}
		ex.w.WriteHeader(status)
		return ex.rc.Flush()
	}, false)
}

// SendData implements the [body.Sender] interface.
func (sh sendHalf) SendData(ctx context.Context, p []byte) error {
	ex := sh.ex
	return ex.submit(ctx, func() error {
		_, err := ex.w.Write(p)
		if err != nil {
			return err
		}
		return ex.rc.Flush()
	}, false)
}

// SendTrailers implements the [body.Sender] interface. The trailers are
// written once the stream is finished.
func (sh sendHalf) SendTrailers(ctx context.Context, h http.Header) error {
	ex := sh.ex
	return ex.submit(ctx, func() error {
		hdr := ex.w.Header()
		for k, vs := range h {
			hdr[http.TrailerPrefix+k] = vs
		}
		return nil
	}, false)
}

// Finish implements the [body.Sender] interface.
func (sh sendHalf) Finish(ctx context.Context) error {
	return sh.ex.submit(ctx, func() error { return nil }, true)
}

// Abort implements the [h3.SendStream] interface.
func (sh sendHalf) Abort(error) {
	ex := sh.ex
	select {
	case <-ex.done:
		return
	default:
	}

	ex.abortOnce.Do(func() {
		close(ex.aborted)
		ex.rc.SetWriteDeadline(time.Now())
	})
}
