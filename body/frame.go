// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package body provides a frame oriented abstraction for streamed
// HTTP message bodies along with adapters between it and HTTP/3 streams.
package body

import (
	"context"
	"net/http"
)

// Kind identifies what a Frame carries.
type Kind uint8

const (
	kindInvalid Kind = iota

	// KindData marks a Frame carrying a chunk of body bytes.
	KindData

	// KindTrailers marks a Frame carrying trailing header fields.
	KindTrailers
)

// String implements the [fmt.Stringer] interface.
func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindTrailers:
		return "trailers"
	default:
		return "invalid"
	}
}

// Frame is one unit of streamed body content. It is either a chunk
// of bytes or a block of trailing headers. The zero value is not a
// valid Frame.
type Frame struct {
	kind     Kind
	data     []byte
	trailers http.Header
}

// Data returns a data Frame for b. The Frame takes ownership of b.
func Data(b []byte) Frame {
	return Frame{kind: KindData, data: b}
}

// Trailers returns a trailers Frame for h. The Frame takes ownership of h.
func Trailers(h http.Header) Frame {
	return Frame{kind: KindTrailers, trailers: h}
}

// Kind reports what the Frame carries.
func (f Frame) Kind() Kind {
	return f.kind
}

// IsData reports whether f is a data Frame.
func (f Frame) IsData() bool {
	return f.kind == KindData
}

// IsTrailers reports whether f is a trailers Frame.
func (f Frame) IsTrailers() bool {
	return f.kind == KindTrailers
}

// Data returns the bytes of a data Frame. The second return value is
// false if f does not carry data.
func (f Frame) Data() ([]byte, bool) {
	if f.kind != KindData {
		return nil, false
	}
	return f.data, true
}

// Trailers returns the header block of a trailers Frame. The second
// return value is false if f does not carry trailers.
func (f Frame) Trailers() (http.Header, bool) {
	if f.kind != KindTrailers {
		return nil, false
	}
	return f.trailers, true
}

// Body is a lazy, finite sequence of Frames.
//
// Frame blocks until the next Frame is available or ctx is done. Once the
// sequence is exhausted Frame returns [io.EOF]. A Body yields zero or more
// data Frames followed by at most one trailers Frame.
type Body interface {
	Frame(ctx context.Context) (Frame, error)
}

// Sizer is implemented by a Body which knows its remaining length
// ahead of time. A negative size means the length is unknown.
type Sizer interface {
	Size() int64
}

// EndStreamer is implemented by a Body which can report that it
// will not yield any more Frames.
type EndStreamer interface {
	IsEndStream() bool
}

// SizeOf returns the size hint for b or -1 if b does not provide one.
func SizeOf(b Body) int64 {
	s, ok := b.(Sizer)
	if !ok {
		return -1
	}
	return s.Size()
}
