// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package h3 bridges HTTP/3 request streams to a generic [Service].
//
// The QUIC transport and HTTP/3 framing are provided by an engine which
// implements [Listener] and the interfaces it yields. A [HandshakeAcceptor]
// turns the engine's incoming connections into established ones without
// letting slow handshakes hold up others. A [Server] then serves every
// connection and every request stream on it concurrently:
//
//	Acceptor -> connection goroutine -> request goroutine
//	                                    [body.Incoming -> Service -> body.Send]
//
// [Runtime] wraps all of this for use with h3bridge.Run, including a
// bounded, two stage graceful shutdown.
package h3
