// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package quicgo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockedWriter is a ResponseWriter whose writes block, as if stuck on
// flow control, until a write deadline is set.
type blockedWriter struct {
	header  http.Header
	writing chan struct{}

	deadlineOnce sync.Once
	deadline     chan struct{}

	mu      sync.Mutex
	inWrite bool
}

func newBlockedWriter() *blockedWriter {
	return &blockedWriter{
		header:   make(http.Header),
		writing:  make(chan struct{}),
		deadline: make(chan struct{}),
	}
}

func (w *blockedWriter) Header() http.Header { return w.header }

func (w *blockedWriter) WriteHeader(int) {}

func (w *blockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	w.inWrite = true
	w.mu.Unlock()
	close(w.writing)

	<-w.deadline
	// the write takes a moment to unwind after the deadline
	time.Sleep(50 * time.Millisecond)

	w.mu.Lock()
	w.inWrite = false
	w.mu.Unlock()
	return len(p), nil
}

func (w *blockedWriter) Flush() {}

func (w *blockedWriter) SetWriteDeadline(time.Time) error {
	w.deadlineOnce.Do(func() {
		close(w.deadline)
	})
	return nil
}

func (w *blockedWriter) writeInProgress() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inWrite
}

func TestSendHalf_SendData(t *testing.T) {
	t.Run("will not return before the write lets go of the buffer", func(t *testing.T) {
		t.Run("if the context is cancelled mid write", func(t *testing.T) {
			w := newBlockedWriter()
			ex := newExchange(w, httptest.NewRequest(http.MethodPost, "/", nil))
			go ex.serve()

			send, _ := ex.Split()

			ctx, cancel := context.WithCancel(context.Background())
			errCh := make(chan error, 1)
			go func() {
				errCh <- send.SendData(ctx, []byte("ab"))
			}()

			<-w.writing
			cancel()

			select {
			case <-time.After(5 * time.Second):
				t.Fatal("SendData did not return after the context was cancelled")
			case err := <-errCh:
				assert.ErrorIs(t, err, context.Canceled)
			}
			assert.False(t, w.writeInProgress())

			require.NoError(t, send.Finish(context.Background()))
		})
	})
}
