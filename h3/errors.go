// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package h3

import (
	"errors"
	"fmt"
	"net"

	"github.com/z5labs/h3bridge/internal/try"
)

// ErrNilResponse is reported when a [Service] returns neither a
// response nor an error.
var ErrNilResponse = errors.New("h3: service returned a nil response")

// AcceptError is returned by [Server.Serve] when its [Acceptor] fails.
type AcceptError struct {
	Cause error
}

// Error implements the [error] interface.
func (e AcceptError) Error() string {
	return fmt.Sprintf("failed to accept connection: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e AcceptError) Unwrap() error {
	return e.Cause
}

// ListenError is returned by [HandshakeAcceptor.Accept] when its
// [Listener] fails for any reason other than being closed.
type ListenError struct {
	Cause error
}

// Error implements the [error] interface.
func (e ListenError) Error() string {
	return fmt.Sprintf("listener failed: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ListenError) Unwrap() error {
	return e.Cause
}

// HandshakeError describes a failed connection handshake.
type HandshakeError struct {
	RemoteAddr net.Addr
	Cause      error
}

// Error implements the [error] interface.
func (e HandshakeError) Error() string {
	return fmt.Sprintf("handshake with %v failed: %s", e.RemoteAddr, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e HandshakeError) Unwrap() error {
	return e.Cause
}

// ServiceError wraps an error returned by a [Service].
type ServiceError struct {
	Cause error
}

// Error implements the [error] interface.
func (e ServiceError) Error() string {
	return fmt.Sprintf("service failed: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ServiceError) Unwrap() error {
	return e.Cause
}

// WriteHeadError is reported when the response header block could
// not be sent.
type WriteHeadError struct {
	Cause error
}

// Error implements the [error] interface.
func (e WriteHeadError) Error() string {
	return fmt.Sprintf("failed to send response head: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e WriteHeadError) Unwrap() error {
	return e.Cause
}

// WriteBodyError is reported when the response body could not be sent.
type WriteBodyError struct {
	Cause error
}

// Error implements the [error] interface.
func (e WriteBodyError) Error() string {
	return fmt.Sprintf("failed to send response body: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e WriteBodyError) Unwrap() error {
	return e.Cause
}

// stage names the step of a request exchange which err came from.
func stage(err error) string {
	var (
		serr ServiceError
		herr WriteHeadError
		berr WriteBodyError
		perr try.PanicError
	)
	switch {
	case errors.As(err, &serr):
		return "service"
	case errors.As(err, &herr):
		return "write_head"
	case errors.As(err, &berr):
		return "write_body"
	case errors.As(err, &perr):
		return "panic"
	default:
		return "unknown"
	}
}
