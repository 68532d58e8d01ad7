// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package body

import (
	"context"
	"errors"
	"io"
	"net/http"
)

// ErrReaderClosed is returned by reads on a closed [Reader].
var ErrReaderClosed = errors.New("body: read on closed body")

// Reader adapts a Body into an [io.ReadCloser].
type Reader struct {
	ctx        context.Context
	b          Body
	onTrailers func(http.Header)

	buf    []byte
	err    error
	closed bool
}

// NewReader returns an [io.ReadCloser] which reads the data frames of b.
// Every Frame is pulled with ctx. If onTrailers is not nil it is called
// with the trailers of b, if any, before Read reports [io.EOF].
func NewReader(ctx context.Context, b Body, onTrailers func(http.Header)) *Reader {
	return &Reader{
		ctx:        ctx,
		b:          b,
		onTrailers: onTrailers,
	}
}

// Read implements the [io.Reader] interface.
func (r *Reader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, ErrReaderClosed
	}
	for len(r.buf) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		r.fill()
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *Reader) fill() {
	f, err := r.b.Frame(r.ctx)
	if err != nil {
		r.err = err
		return
	}
	if p, ok := f.Data(); ok {
		r.buf = p
		return
	}
	if h, ok := f.Trailers(); ok && r.onTrailers != nil {
		r.onTrailers(h)
	}
}

// Close implements the [io.Closer] interface. If the underlying Body
// implements [io.Closer] it is closed as well.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.buf = nil
	if c, ok := r.b.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
