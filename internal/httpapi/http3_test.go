// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/z5labs/h3bridge/h3"
	"github.com/z5labs/h3bridge/internal/h3test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveHTTP3 serves h over a single in-memory HTTP/3 connection.
func serveHTTP3(t *testing.T, h http.Handler) *h3test.Conn {
	t.Helper()

	ln := h3test.NewListener(1)
	acc := h3.NewHandshakeAcceptor(ln)

	ctx, cancel := context.WithCancel(context.Background())
	go h3.NewServer(h3.HandlerService(h)).Serve(ctx, acc)
	t.Cleanup(func() {
		cancel()
		acc.Close()
	})

	conn := h3test.NewConn()
	require.NoError(t, ln.Push(ctx, &h3test.Incoming{Conn: conn}))
	return conn
}

func h3Head(method, target string) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	r.Body = http.NoBody
	r.RemoteAddr = ""
	return r
}

func TestNewHandler_HTTP3(t *testing.T) {
	testCases := []struct {
		Name string
		Opts []Option
	}{
		{Name: "with no middleware"},
		{Name: "behind the api middleware", Opts: []Option{
			RequestID(),
			MaxBody(1024),
			Timeout(time.Minute),
			MaxConcurrentRequests(4),
			Compression(),
		}},
	}

	for _, testCase := range testCases {
		t.Run("will echo the request trailers "+testCase.Name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			conn := serveHTTP3(t, NewHandler(testCase.Opts...))

			res, err := conn.Do(
				ctx,
				h3Head(http.MethodPost, "https://example.com/echo"),
				[][]byte{[]byte("ab")},
				http.Header{"X-Checksum": {"abc"}},
			)
			require.NoError(t, err)

			assert.Equal(t, http.StatusOK, res.StatusCode)
			assert.True(t, res.Finished)
			assert.Equal(t, "ab", string(res.Body))
			require.NotNil(t, res.Trailers)
			assert.Equal(t, "abc", res.Trailers.Get("X-Checksum"))
		})
	}

	t.Run("will reset the echo stream", func(t *testing.T) {
		t.Run("if the client stalls past the api timeout", func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			conn := serveHTTP3(t, NewHandler(Timeout(100*time.Millisecond)))

			s, err := conn.Open(ctx, h3Head(http.MethodPost, "https://example.com/echo"))
			require.NoError(t, err)
			require.NoError(t, s.Write(ctx, []byte("ab")))

			// the client never ends the request body
			res, err := s.Wait(ctx)
			require.NoError(t, err)

			assert.Equal(t, http.StatusOK, res.StatusCode)
			assert.Equal(t, "ab", string(res.Body))
			assert.False(t, res.Finished)
			assert.ErrorIs(t, res.AbortErr, http.ErrAbortHandler)
		})
	})

	t.Run("will tag the response with a request id", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		conn := serveHTTP3(t, NewHandler(RequestID()))

		head := h3Head(http.MethodGet, "https://example.com/")
		head.Header.Set("X-Request-Id", "req-1")
		res, err := conn.Do(ctx, head, nil, nil)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, "req-1", res.Header.Get("X-Request-Id"))
	})
}
