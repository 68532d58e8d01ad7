// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package quicgo

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/z5labs/h3bridge/h3"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
)

// ConfigureTLS returns a copy of tlsConf which negotiates HTTP/3
// through ALPN.
func ConfigureTLS(tlsConf *tls.Config) *tls.Config {
	return http3.ConfigureTLSConfig(tlsConf)
}

// Listener is a [h3.Listener] backed by a quic-go early listener. The
// connections it yields have only started their handshake.
type Listener struct {
	ln   *quic.EarlyListener
	opts options
}

// Listen announces on the UDP address addr. tlsConf is passed
// through [ConfigureTLS] so callers only need to provide certificates.
func Listen(addr string, tlsConf *tls.Config, opts ...Option) (*Listener, error) {
	o := newOptions(opts...)

	ln, err := quic.ListenAddrEarly(addr, ConfigureTLS(tlsConf), o.quicConfig)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln, opts: o}, nil
}

// Addr returns the local address the Listener is bound to.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Accept implements the [h3.Listener] interface.
func (l *Listener) Accept(ctx context.Context) (h3.Incoming, error) {
	conn, err := l.ln.Accept(ctx)
	if errors.Is(err, quic.ErrServerClosed) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	return &incoming{conn: conn, opts: l.opts}, nil
}

// Close implements the [h3.Listener] interface.
func (l *Listener) Close() error {
	return l.ln.Close()
}

type incoming struct {
	conn *quic.Conn
	opts options
}

// Handshake implements the [h3.Incoming] interface.
func (in *incoming) Handshake(ctx context.Context) (h3.Conn, h3.ConnectInfo, error) {
	info := h3.ConnectInfo{
		RemoteAddr: in.conn.RemoteAddr(),
		LocalAddr:  in.conn.LocalAddr(),
	}

	select {
	case <-ctx.Done():
		return nil, info, ctx.Err()
	case <-in.conn.Context().Done():
		return nil, info, context.Cause(in.conn.Context())
	case <-in.conn.HandshakeComplete():
	}

	info.ServerName = in.conn.ConnectionState().TLS.ServerName
	return &Conn{
		qc:   in.conn,
		opts: in.opts,
		log:  slog.New(in.opts.logHandler),
	}, info, nil
}

// Reject implements the [h3.Incoming] interface.
func (in *incoming) Reject() error {
	return in.conn.CloseWithError(quic.ApplicationErrorCode(http3.ErrCodeConnectError), "handshake rejected")
}
