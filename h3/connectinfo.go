// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package h3

import (
	"context"
	"net"
)

// ConnectInfo describes the connection a request arrived on.
type ConnectInfo struct {
	RemoteAddr net.Addr
	LocalAddr  net.Addr

	// ServerName is the SNI value negotiated during the handshake.
	ServerName string
}

type connectInfoKey struct{}

// WithConnectInfo returns a copy of ctx which carries info.
func WithConnectInfo(ctx context.Context, info ConnectInfo) context.Context {
	return context.WithValue(ctx, connectInfoKey{}, info)
}

// ConnectInfoFromContext returns the ConnectInfo carried by ctx, if any.
func ConnectInfoFromContext(ctx context.Context) (ConnectInfo, bool) {
	info, ok := ctx.Value(connectInfoKey{}).(ConnectInfo)
	return info, ok
}
