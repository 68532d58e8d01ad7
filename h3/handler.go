// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package h3

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/z5labs/h3bridge/body"
	"github.com/z5labs/h3bridge/internal/try"
)

// HandlerService returns a [Service] which runs h for every request.
//
// The handler reads the request content through [http.Request.Body] and
// finds any request trailers in [http.Request.Trailer] once the body has
// been read to the end. Response content is streamed: every Write is
// handed to the stream before it returns. The response head is committed
// on the first call to WriteHeader, Write or Flush, or when the handler
// returns. Response trailers are declared the same way as with
// [net/http], either through the "Trailer" header or by prefixing the
// header key with [http.TrailerPrefix].
//
// If the handler panics before committing the head, Serve returns the
// panic as an error. Afterwards, the response body ends with it instead.
func HandlerService(h http.Handler) Service {
	return handlerService{h: h}
}

type handlerService struct {
	h http.Handler
}

type headResult struct {
	resp *Response
	err  error
}

// Serve implements the [Service] interface.
func (hs handlerService) Serve(ctx context.Context, req *Request) (*Response, error) {
	pr, pw := body.Pipe()

	// reads of the request content stop once the handler returns
	bodyCtx, stopBody := context.WithCancel(ctx)

	// middleware hands copies of r to the handler so trailers must be
	// added to a map they all share
	r := req.Head.WithContext(ctx)
	r.Trailer = make(http.Header, len(req.Head.Trailer))
	for k := range req.Head.Trailer {
		r.Trailer[k] = nil
	}
	r.Body = body.NewReader(bodyCtx, req.Body, func(h http.Header) {
		for k, vs := range h {
			r.Trailer[k] = vs
		}
	})

	rw := &responseWriter{
		ctx:    ctx,
		header: make(http.Header),
		pr:     pr,
		pw:     pw,
		head:   make(chan headResult, 1),
	}
	go func() {
		defer stopBody()
		rw.run(hs.h, r)
	}()

	select {
	case <-ctx.Done():
		pr.Close()
		return nil, ctx.Err()
	case res := <-rw.head:
		return res.resp, res.err
	}
}

type responseWriter struct {
	ctx    context.Context
	header http.Header
	pr     *body.PipeReader
	pw     *body.PipeWriter
	head   chan headResult

	mu        sync.Mutex
	committed bool
	announced []string
}

func (rw *responseWriter) run(h http.Handler, r *http.Request) {
	var err error
	defer func() {
		if err == nil {
			rw.finish()
			return
		}
		if rw.commit(http.StatusOK, false) {
			rw.pw.CloseWithError(err)
			return
		}
		rw.head <- headResult{err: err}
	}()
	defer try.Recover(&err)

	h.ServeHTTP(rw, r)
}

// Header implements the [http.ResponseWriter] interface.
func (rw *responseWriter) Header() http.Header {
	return rw.header
}

// WriteHeader implements the [http.ResponseWriter] interface.
func (rw *responseWriter) WriteHeader(statusCode int) {
	// informational responses are not forwarded
	if statusCode >= 100 && statusCode < 200 && statusCode != http.StatusSwitchingProtocols {
		return
	}
	rw.commit(statusCode, true)
}

// Write implements the [http.ResponseWriter] interface.
func (rw *responseWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		rw.commit(http.StatusOK, true)
		return 0, nil
	}
	rw.mu.Lock()
	if !rw.committed && rw.header.Get("Content-Type") == "" {
		rw.header.Set("Content-Type", http.DetectContentType(p))
	}
	rw.mu.Unlock()
	rw.commit(http.StatusOK, true)

	err := rw.pw.WriteFrame(rw.ctx, body.Data(bytes.Clone(p)))
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush implements the [http.Flusher] interface. Every Write is already
// flushed so this only commits the response head.
func (rw *responseWriter) Flush() {
	rw.commit(http.StatusOK, true)
}

// FlushError is used by [http.ResponseController].
func (rw *responseWriter) FlushError() error {
	rw.commit(http.StatusOK, true)
	return nil
}

// commit publishes the response head if it has not been already and
// reports whether it was already committed. When send is false the head
// is only marked as committed.
func (rw *responseWriter) commit(statusCode int, send bool) (already bool) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.committed {
		return true
	}
	rw.committed = true
	if !send {
		return false
	}

	header := make(http.Header, len(rw.header))
	for k, vs := range rw.header {
		if strings.HasPrefix(k, http.TrailerPrefix) {
			continue
		}
		if k == "Trailer" {
			for _, v := range vs {
				for _, name := range strings.Split(v, ",") {
					name = http.CanonicalHeaderKey(strings.TrimSpace(name))
					if name != "" {
						rw.announced = append(rw.announced, name)
					}
				}
			}
		}
		header[k] = append([]string(nil), vs...)
	}

	rw.head <- headResult{
		resp: &Response{
			StatusCode: statusCode,
			Header:     header,
			Body:       rw.pr,
		},
	}
	return false
}

func (rw *responseWriter) finish() {
	rw.commit(http.StatusOK, true)

	trailers := rw.trailers()
	if len(trailers) > 0 {
		err := rw.pw.WriteFrame(rw.ctx, body.Trailers(trailers))
		if err != nil {
			rw.pw.CloseWithError(err)
			return
		}
	}
	rw.pw.Close()
}

func (rw *responseWriter) trailers() http.Header {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	var trailers http.Header
	add := func(k string, vs []string) {
		if len(vs) == 0 {
			return
		}
		if trailers == nil {
			trailers = make(http.Header)
		}
		trailers[k] = append(trailers[k], vs...)
	}
	for _, k := range rw.announced {
		add(k, rw.header[k])
	}
	for k, vs := range rw.header {
		if name, ok := strings.CutPrefix(k, http.TrailerPrefix); ok {
			add(http.CanonicalHeaderKey(name), vs)
		}
	}
	return trailers
}
