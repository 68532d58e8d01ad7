// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package body

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
)

// Receiver is the receive half of a request stream.
type Receiver interface {
	// RecvData blocks until the next chunk of body data is available.
	// It returns [io.EOF] once the data portion of the stream is exhausted.
	// The returned slice is only valid until the next call to RecvData.
	RecvData(ctx context.Context) ([]byte, error)

	// RecvTrailers blocks until the trailing headers of the stream are
	// known. It must only be called after RecvData returned [io.EOF] and
	// returns a nil header if the peer sent no trailers.
	RecvTrailers(ctx context.Context) (http.Header, error)
}

// Incoming adapts the receive half of a request stream into a Body.
type Incoming struct {
	r Receiver

	dataDone     bool
	trailersDone bool
	err          error
}

// NewIncoming returns a Body which yields the frames received on r.
func NewIncoming(r Receiver) *Incoming {
	return &Incoming{r: r}
}

// Frame implements the [Body] interface.
//
// Data frames are yielded in the order they were received and each one
// owns a copy of the received bytes. When the data portion of the stream
// is exhausted, Frame goes on to retrieve the trailers instead of ending
// the sequence, so trailers which arrive right after the last data chunk
// are never dropped.
func (b *Incoming) Frame(ctx context.Context) (Frame, error) {
	if b.err != nil {
		return Frame{}, b.err
	}
	if b.trailersDone {
		return Frame{}, io.EOF
	}

	if !b.dataDone {
		p, err := b.r.RecvData(ctx)
		if err == nil {
			return Data(bytes.Clone(p)), nil
		}
		if !errors.Is(err, io.EOF) {
			b.err = err
			return Frame{}, err
		}
		b.dataDone = true
	}

	h, err := b.r.RecvTrailers(ctx)
	if err != nil {
		b.err = err
		return Frame{}, err
	}
	b.trailersDone = true
	if h == nil {
		return Frame{}, io.EOF
	}
	return Trailers(h), nil
}

// IsEndStream implements the [EndStreamer] interface. It only reports true
// once both the data and the trailers of the stream have been consumed.
func (b *Incoming) IsEndStream() bool {
	return b.dataDone && b.trailersDone
}

// Size implements the [Sizer] interface. The length of an incoming
// stream is never known ahead of time.
func (b *Incoming) Size() int64 {
	return -1
}
