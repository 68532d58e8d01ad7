// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/z5labs/h3bridge/body"
	"github.com/z5labs/h3bridge/h3"
	"github.com/z5labs/h3bridge/pkg/slogfield"
)

// IndexResponse describes the connection a request arrived on.
type IndexResponse struct {
	Message    string `json:"message"`
	Proto      string `json:"proto"`
	RemoteAddr string `json:"remote_addr"`
	ServerName string `json:"server_name,omitempty"`
}

type index struct{}

func (index) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := IndexResponse{
		Message:    "hello from h3bridge",
		Proto:      r.Proto,
		RemoteAddr: r.RemoteAddr,
	}
	if r.TLS != nil {
		resp.ServerName = r.TLS.ServerName
	}
	if info, ok := h3.ConnectInfoFromContext(r.Context()); ok && info.ServerName != "" {
		resp.ServerName = info.ServerName
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// echo streams the request body back as it arrives, followed by the
// request trailers.
type echo struct {
	log *slog.Logger
}

func (h echo) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	buf := make([]byte, body.DefaultChunkSize)
	for {
		n, err := r.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				h.log.WarnContext(
					r.Context(),
					"failed to echo request body",
					slogfield.RequestID(r.Header.Get(requestIDHeader)),
					slogfield.Error(werr),
				)
				return
			}
			rc.Flush()
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			reqID := slogfield.RequestID(r.Header.Get(requestIDHeader))
			var maxErr *http.MaxBytesError
			switch {
			case errors.As(err, &maxErr):
				h.log.WarnContext(r.Context(), "request body too large", reqID, slogfield.Int64("limit", maxErr.Limit))
			case errors.Is(err, context.DeadlineExceeded):
				h.log.WarnContext(r.Context(), "request timed out", reqID)
			default:
				h.log.WarnContext(r.Context(), "failed to read request body", reqID, slogfield.Error(err))
			}
			// the status has already been sent so the stream can only be reset
			panic(http.ErrAbortHandler)
		}
	}

	for k, vs := range r.Trailer {
		if len(vs) == 0 {
			continue
		}
		w.Header()[http.TrailerPrefix+k] = vs
	}
}
