// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/z5labs/h3bridge/body"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzip"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

const requestIDHeader = "X-Request-Id"

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("http.request.id", id))

		next.ServeHTTP(w, r)
	})
}

// cors answers preflight requests itself. Allowed methods are filled in
// by [mux.CORSMethodMiddleware].
func cors(origins []string) mux.MiddlewareFunc {
	anyOrigin := slices.Contains(origins, "*")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := origin != "" && (anyOrigin || slices.Contains(origins, origin))

			h := w.Header()
			if origin != "" && !anyOrigin {
				h.Add("Vary", "Origin")
			}
			if allowed {
				if anyOrigin {
					h.Set("Access-Control-Allow-Origin", "*")
				} else {
					h.Set("Access-Control-Allow-Origin", origin)
				}
				h.Set("Access-Control-Expose-Headers", requestIDHeader)
			}

			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if allowed {
				if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
					h.Set("Access-Control-Allow-Headers", reqHeaders)
				}
				h.Set("Access-Control-Max-Age", "600")
			} else {
				h.Del("Access-Control-Allow-Methods")
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func countInFlight(c metric.Int64UpDownCounter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithoutCancel(r.Context())
			c.Add(ctx, 1)
			defer c.Add(ctx, -1)

			next.ServeHTTP(w, r)
		})
	}
}

func concurrencyLimit(n int64) mux.MiddlewareFunc {
	sem := semaphore.NewWeighted(n)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := sem.Acquire(r.Context(), 1)
			if err != nil {
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
			defer sem.Release(1)

			next.ServeHTTP(w, r)
		})
	}
}

func maxBody(n int64) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > n {
				http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}

func timeout(d time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			r = r.WithContext(ctx)
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = &timeoutBody{
					ctx:   ctx,
					rc:    r.Body,
					reads: make(chan readResult),
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

type readResult struct {
	p   []byte
	err error
}

// timeoutBody fails reads once ctx is done, even if the underlying
// body is still blocked waiting on the client.
type timeoutBody struct {
	ctx   context.Context
	rc    io.ReadCloser
	reads chan readResult
	start sync.Once

	buf []byte
	err error
}

func (b *timeoutBody) Read(p []byte) (int, error) {
	for len(b.buf) == 0 {
		if b.err != nil {
			return 0, b.err
		}
		b.start.Do(func() {
			go b.pump()
		})

		select {
		case <-b.ctx.Done():
			b.err = b.ctx.Err()
		case res := <-b.reads:
			b.buf, b.err = res.p, res.err
		}
	}

	n := copy(p, b.buf)
	b.buf = b.buf[n:]
	return n, nil
}

func (b *timeoutBody) pump() {
	for {
		buf := make([]byte, body.DefaultChunkSize)
		n, err := b.rc.Read(buf)
		select {
		case <-b.ctx.Done():
			return
		case b.reads <- readResult{p: buf[:n], err: err}:
		}
		if err != nil {
			return
		}
	}
}

// Close only closes the underlying body if it was never read from.
// Otherwise the server closes it once the pending read is released.
func (b *timeoutBody) Close() error {
	started := true
	b.start.Do(func() {
		started = false
	})
	if started {
		return nil
	}
	return b.rc.Close()
}

func decompress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		r.Header.Del("Content-Encoding")
		r.Header.Del("Content-Length")
		r.ContentLength = -1
		r.Body = gzipBody{Reader: zr, body: r.Body}

		next.ServeHTTP(w, r)
	})
}

type gzipBody struct {
	*gzip.Reader
	body io.Closer
}

func (b gzipBody) Close() error {
	return errors.Join(b.Reader.Close(), b.body.Close())
}
