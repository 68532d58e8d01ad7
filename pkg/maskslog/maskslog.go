// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package maskslog provides a [slog.Handler] which rewrites sensitive
// attributes, such as client addresses, before they are logged.
package maskslog

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
)

type options struct {
	masks map[string]func(slog.Attr) slog.Attr
}

// Option configures a [Handler].
type Option func(*options)

// Attr masks every attribute with the given key using f. This includes
// attributes added through [slog.Logger.With] and attributes nested
// in groups.
func Attr(key string, f func(slog.Attr) slog.Attr) Option {
	return func(o *options) {
		o.masks[key] = f
	}
}

// Redact replaces the value of a with "****".
func Redact(a slog.Attr) slog.Attr {
	return slog.String(a.Key, "****")
}

// TruncateIP keeps only the network part of the IP address in a. IPv4
// addresses keep 24 bits and IPv6 addresses keep 48. A port, if present,
// is kept. Empty values are left alone and values which are not
// addresses are redacted.
func TruncateIP(a slog.Attr) slog.Attr {
	s := a.Value.Resolve().String()
	if s == "" {
		return a
	}

	host, port, err := net.SplitHostPort(s)
	if err != nil {
		host, port = s, ""
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return Redact(a)
	}

	bits := 48
	if ip.Is4() || ip.Is4In6() {
		ip = ip.Unmap()
		bits = 24
	}
	prefix, err := ip.Prefix(bits)
	if err != nil {
		return Redact(a)
	}

	masked := prefix.Addr().String()
	if port != "" {
		masked = net.JoinHostPort(masked, port)
	}
	return slog.String(a.Key, masked)
}

// Handler masks attributes before passing records to another handler.
type Handler struct {
	next  slog.Handler
	masks map[string]func(slog.Attr) slog.Attr
}

// NewHandler returns a Handler which writes masked records to h.
func NewHandler(h slog.Handler, opts ...Option) *Handler {
	o := &options{
		masks: make(map[string]func(slog.Attr) slog.Attr),
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Handler{
		next:  h,
		masks: o.masks,
	}
}

// Enabled implements the [slog.Handler] interface.
func (h *Handler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

// Handle implements the [slog.Handler] interface.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if len(h.masks) == 0 || r.NumAttrs() == 0 {
		return h.next.Handle(ctx, r)
	}

	attrs := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, h.mask(a))
		return true
	})

	nr := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	nr.AddAttrs(attrs...)
	return h.next.Handle(ctx, nr)
}

// WithAttrs implements the [slog.Handler] interface.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.mask(a)
	}
	return &Handler{
		next:  h.next.WithAttrs(masked),
		masks: h.masks,
	}
}

// WithGroup implements the [slog.Handler] interface.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{
		next:  h.next.WithGroup(name),
		masks: h.masks,
	}
}

func (h *Handler) mask(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		masked := make([]any, len(group))
		for i, ga := range group {
			masked[i] = h.mask(ga)
		}
		return slog.Group(a.Key, masked...)
	}

	f, ok := h.masks[a.Key]
	if !ok {
		return a
	}
	return f(a)
}
