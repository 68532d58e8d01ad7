// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package body

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Sender is the send half of a request stream.
type Sender interface {
	// SendData writes b onto the stream. It blocks until the transport
	// accepts the bytes. Implementations must not retain b after returning.
	SendData(ctx context.Context, b []byte) error

	// SendTrailers writes the trailing header block onto the stream.
	SendTrailers(ctx context.Context, h http.Header) error

	// Finish gracefully closes the stream.
	Finish(ctx context.Context) error
}

// UnknownFrameError is the panic value used by [Send] when a Body
// yields a Frame which is neither data nor trailers.
type UnknownFrameError struct {
	Kind Kind
}

// Error implements the [error] interface.
func (e UnknownFrameError) Error() string {
	return fmt.Sprintf("body yielded frame of unknown kind: %s", e.Kind)
}

// Send drains b onto w and then finishes w.
//
// Frames are forwarded one at a time and in order; the next Frame is not
// pulled from b until the current one has been accepted by w. Data bytes
// are handed to w exactly as b produced them. w is finished once b is
// exhausted, even if b yielded no frames at all.
//
// If pulling a Frame or forwarding it fails, Send returns the error without
// finishing w. Cleaning up the stream is then up to the caller.
func Send(ctx context.Context, w Sender, b Body) error {
	if b == nil {
		b = Empty()
	}
	for {
		f, err := b.Frame(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		switch f.Kind() {
		case KindData:
			err = w.SendData(ctx, f.data)
		case KindTrailers:
			err = w.SendTrailers(ctx, f.trailers)
		default:
			panic(UnknownFrameError{Kind: f.Kind()})
		}
		if err != nil {
			return err
		}
	}

	return w.Finish(ctx)
}
