// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package body

import (
	"context"
	"io"
	"sync"
)

type pipe struct {
	frames chan Frame

	wonce sync.Once
	wdone chan struct{}
	werr  error

	ronce sync.Once
	rdone chan struct{}
}

// PipeReader is the read half of a frame pipe. It implements [Body].
type PipeReader struct {
	p *pipe
}

// PipeWriter is the write half of a frame pipe.
type PipeWriter struct {
	p *pipe
}

// Pipe creates a synchronous in-memory frame pipe.
//
// Each call to [PipeWriter.WriteFrame] blocks until the Frame has been
// taken by a call to [PipeReader.Frame]. There is no internal buffering.
func Pipe() (*PipeReader, *PipeWriter) {
	p := &pipe{
		frames: make(chan Frame),
		wdone:  make(chan struct{}),
		rdone:  make(chan struct{}),
	}
	return &PipeReader{p: p}, &PipeWriter{p: p}
}

// Frame implements the [Body] interface. Once the writer has been closed
// it returns the error given to [PipeWriter.CloseWithError], or [io.EOF].
func (r *PipeReader) Frame(ctx context.Context) (Frame, error) {
	select {
	case <-r.p.rdone:
		return Frame{}, io.ErrClosedPipe
	default:
	}

	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case f := <-r.p.frames:
		return f, nil
	case <-r.p.wdone:
		return Frame{}, r.p.werr
	}
}

// Close closes the reader. Subsequent and blocked writes return
// [io.ErrClosedPipe].
func (r *PipeReader) Close() error {
	r.p.ronce.Do(func() {
		close(r.p.rdone)
	})
	return nil
}

// WriteFrame hands f to the reader.
func (w *PipeWriter) WriteFrame(ctx context.Context, f Frame) error {
	select {
	case <-w.p.wdone:
		return io.ErrClosedPipe
	case <-w.p.rdone:
		return io.ErrClosedPipe
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.p.rdone:
		return io.ErrClosedPipe
	case w.p.frames <- f:
		return nil
	}
}

// Close closes the writer. The reader will observe [io.EOF].
func (w *PipeWriter) Close() error {
	return w.CloseWithError(nil)
}

// CloseWithError closes the writer. The reader will observe err, or
// [io.EOF] if err is nil. Only the first close has any effect.
func (w *PipeWriter) CloseWithError(err error) error {
	if err == nil {
		err = io.EOF
	}
	w.p.wonce.Do(func() {
		w.p.werr = err
		close(w.p.wdone)
	})
	return nil
}
