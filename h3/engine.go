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

// Listener produces raw incoming connections which have not yet
// completed their handshake.
type Listener interface {
	// Accept blocks until the next incoming connection arrives. It returns
	// [io.EOF] or [net.ErrClosed] once no more connections will arrive.
	Accept(ctx context.Context) (Incoming, error)

	Close() error
}

// Incoming is a connection whose handshake is still pending.
type Incoming interface {
	// Handshake blocks until the handshake has completed.
	Handshake(ctx context.Context) (Conn, ConnectInfo, error)

	// Reject refuses the connection without completing the handshake.
	Reject() error
}

// Conn is an established transport connection.
type Conn interface {
	// OpenSession starts HTTP/3 on the connection.
	OpenSession(ctx context.Context) (Session, error)

	Close() error
}

// Session demultiplexes the request streams of a single connection.
type Session interface {
	// AcceptRequest blocks until the peer opens a new request stream and
	// its header block has been decoded. It returns [io.EOF] once the peer
	// will not open any more streams. The returned request has no body.
	AcceptRequest(ctx context.Context) (*http.Request, RequestStream, error)

	Close() error
}

// RequestStream is a single bidirectional HTTP/3 request stream.
type RequestStream interface {
	// Split separates the stream into its two halves. It must only be
	// called once.
	Split() (SendStream, RecvStream)
}

// RecvStream is the receive half of a [RequestStream].
type RecvStream interface {
	body.Receiver
}

// SendStream is the send half of a [RequestStream].
type SendStream interface {
	body.Sender

	// SendResponse writes the response header block. It must be called
	// exactly once and before any body content is sent.
	SendResponse(ctx context.Context, status int, h http.Header) error

	// Abort resets the stream. It is safe to call at any point, even after
	// the stream has been finished, in which case it does nothing.
	Abort(err error)
}

// Acceptor yields established connections.
type Acceptor interface {
	// Accept returns [io.EOF] once no more connections will be produced.
	// Any other error is considered fatal to the caller.
	Accept(ctx context.Context) (Conn, ConnectInfo, error)
}
