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

type emptyBody struct{}

func (emptyBody) Frame(context.Context) (Frame, error) { return Frame{}, io.EOF }
func (emptyBody) Size() int64                          { return 0 }
func (emptyBody) IsEndStream() bool                    { return true }

// Empty returns a Body which yields no frames.
func Empty() Body {
	return emptyBody{}
}

type bytesBody struct {
	b    []byte
	done bool
}

// Bytes returns a Body which yields b as a single data frame.
func Bytes(b []byte) Body {
	if len(b) == 0 {
		return Empty()
	}
	return &bytesBody{b: b}
}

// String returns a Body which yields s as a single data frame.
func String(s string) Body {
	return Bytes([]byte(s))
}

func (b *bytesBody) Frame(_ context.Context) (Frame, error) {
	if b.done {
		return Frame{}, io.EOF
	}
	b.done = true
	return Data(b.b), nil
}

func (b *bytesBody) Size() int64 {
	if b.done {
		return 0
	}
	return int64(len(b.b))
}

func (b *bytesBody) IsEndStream() bool {
	return b.done
}

// DefaultChunkSize is used by [FromReader] when no chunk size is given.
const DefaultChunkSize = 16 * 1024

type readerBody struct {
	r     io.Reader
	chunk int
	err   error
}

// FromReader returns a Body which yields the contents of r as data
// frames of at most chunk bytes. If r implements [io.Closer] it is
// closed once it has been drained or has failed.
func FromReader(r io.Reader, chunk int) Body {
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	return &readerBody{r: r, chunk: chunk}
}

func (b *readerBody) Frame(ctx context.Context) (Frame, error) {
	if b.err != nil {
		return Frame{}, b.err
	}
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	p := make([]byte, b.chunk)
	for {
		n, err := b.r.Read(p)
		if n > 0 {
			if err != nil {
				b.finish(err)
			}
			return Data(p[:n]), nil
		}
		if err != nil {
			b.finish(err)
			return Frame{}, b.err
		}
	}
}

func (b *readerBody) finish(err error) {
	b.err = err
	if c, ok := b.r.(io.Closer); ok {
		cerr := c.Close()
		if errors.Is(err, io.EOF) && cerr != nil {
			b.err = cerr
		}
	}
}

type trailersBody struct {
	Body

	h    http.Header
	done bool
}

// WithTrailers returns a Body which yields the frames of b followed by a
// trailers frame for h. If b yields its own trailers frame, h is merged
// into it instead.
func WithTrailers(b Body, h http.Header) Body {
	return &trailersBody{Body: b, h: h}
}

func (b *trailersBody) Frame(ctx context.Context) (Frame, error) {
	if b.done {
		return Frame{}, io.EOF
	}

	f, err := b.Body.Frame(ctx)
	if errors.Is(err, io.EOF) {
		b.done = true
		if len(b.h) == 0 {
			return Frame{}, io.EOF
		}
		return Trailers(b.h), nil
	}
	if err != nil {
		return Frame{}, err
	}
	if t, ok := f.Trailers(); ok {
		b.done = true
		merged := t.Clone()
		for k, vs := range b.h {
			merged[k] = append(merged[k], vs...)
		}
		return Trailers(merged), nil
	}
	return f, nil
}

// Collect drains b and returns the concatenation of its data frames
// along with its trailers, if any.
func Collect(ctx context.Context, b Body) ([]byte, http.Header, error) {
	var (
		data     []byte
		trailers http.Header
	)
	for {
		f, err := b.Frame(ctx)
		if errors.Is(err, io.EOF) {
			return data, trailers, nil
		}
		if err != nil {
			return data, trailers, err
		}
		if p, ok := f.Data(); ok {
			data = append(data, p...)
			continue
		}
		if h, ok := f.Trailers(); ok {
			trailers = h
		}
	}
}
