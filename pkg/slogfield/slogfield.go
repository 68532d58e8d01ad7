// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package slogfield provides typed helpers for building slog attributes.
//
// Attributes which describe connections and requests share their keys
// across every package so log records can be filtered and masked by key.
package slogfield

import (
	"log/slog"
	"net"
	"time"
)

// Keys of the connection and request attributes.
const (
	RemoteAddrKey = "remote_addr"
	ListenAddrKey = "addr"
	MethodKey     = "method"
	PathKey       = "path"
	StageKey      = "stage"
	RequestIDKey  = "request_id"
)

// Bool returns an slog.Attr for a bool.
func Bool(key string, value bool) slog.Attr {
	return slog.Bool(key, value)
}

// Duration returns an slog.Attr for a time.Duration.
func Duration(key string, d time.Duration) slog.Attr {
	return slog.Duration(key, d)
}

// Error returns an slog.Attr for a error.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// String returns an slog.Attr for a string.
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// Int returns an slog.Attr for a int.
func Int(key string, n int) slog.Attr {
	return slog.Int(key, n)
}

// Int64 returns an slog.Attr for a int64.
func Int64(key string, n int64) slog.Attr {
	return slog.Int64(key, n)
}

// RemoteAddr returns the address of the peer of a connection.
func RemoteAddr(addr net.Addr) slog.Attr {
	return addrAttr(RemoteAddrKey, addr)
}

// ListenAddr returns the address a server accepts connections on.
func ListenAddr(addr net.Addr) slog.Attr {
	return addrAttr(ListenAddrKey, addr)
}

// nil addresses are logged as an empty string
func addrAttr(key string, addr net.Addr) slog.Attr {
	if addr == nil {
		return slog.String(key, "")
	}
	return slog.String(key, addr.String())
}

// Method returns the method of a request.
func Method(method string) slog.Attr {
	return slog.String(MethodKey, method)
}

// Path returns the path of a request.
func Path(path string) slog.Attr {
	return slog.String(PathKey, path)
}

// Stage returns the stage of a request exchange which failed.
func Stage(stage string) slog.Attr {
	return slog.String(StageKey, stage)
}

// RequestID returns the id a request was tagged with. An empty id is
// logged as is so records of untagged requests keep the same shape.
func RequestID(id string) slog.Attr {
	return slog.String(RequestIDKey, id)
}
