// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package h3

import (
	"context"
	"net/http"

	"github.com/z5labs/h3bridge/body"
)

// Request is a single HTTP/3 request handed to a [Service].
type Request struct {
	// Head holds the method, URL and header fields. Its Body is always
	// [http.NoBody]; the request content is read through Body instead.
	Head *http.Request

	Body body.Body

	ConnectInfo ConnectInfo
}

// Response is what a [Service] produces for a [Request].
type Response struct {
	// StatusCode defaults to 200 if left unset.
	StatusCode int

	Header http.Header

	// Body may be nil, in which case the response has no content.
	Body body.Body
}

// Service handles HTTP/3 requests.
//
// Serve is called concurrently, once per request stream. The returned
// Response body is drained by the caller after Serve returns.
type Service interface {
	Serve(ctx context.Context, req *Request) (*Response, error)
}

// ServiceFunc is an adapter to allow the use of ordinary functions as a [Service].
type ServiceFunc func(context.Context, *Request) (*Response, error)

// Serve implements the [Service] interface.
func (f ServiceFunc) Serve(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
