// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/z5labs/h3bridge"
	"github.com/z5labs/h3bridge/h2"
	"github.com/z5labs/h3bridge/h3"
	"github.com/z5labs/h3bridge/h3/quicgo"
	"github.com/z5labs/h3bridge/internal/httpapi"
	"github.com/z5labs/h3bridge/pkg/app"
	"github.com/z5labs/h3bridge/pkg/health"
)

const altSvcMaxAge = 24 * time.Hour

// build returns the app serving the API over HTTP/3 on the configured UDP
// address and over HTTP/2 on the TCP port of the same number.
func build(ctx context.Context, cfg Config) (h3bridge.App, error) {
	b, err := newBridge(cfg, os.Stderr)
	if err != nil {
		return nil, err
	}
	return b.app, nil
}

type bridge struct {
	app h3bridge.App

	// addr is the UDP address HTTP/3 is served on. HTTP/2 is served on
	// the TCP address with the same host and port.
	addr *net.UDPAddr
}

func newBridge(cfg Config, w io.Writer) (*bridge, error) {
	logHandler, err := cfg.logHandler(w)
	if err != nil {
		return nil, err
	}

	cert, err := tls.LoadX509KeyPair(cfg.Server.CertFile, cfg.Server.KeyFile)
	if err != nil {
		return nil, err
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	ln, err := quicgo.Listen(
		cfg.Server.Addr,
		tlsConfig,
		quicgo.LogHandler(logHandler),
		quicgo.HandshakeTimeout(cfg.H3.HandshakeTimeout),
		quicgo.IdleTimeout(cfg.H3.IdleTimeout),
		quicgo.MaxHeaderBytes(cfg.H3.MaxHeaderBytes),
	)
	if err != nil {
		return nil, err
	}

	udpAddr, ok := ln.Addr().(*net.UDPAddr)
	if !ok {
		return nil, errors.Join(errors.New("listener is not bound to a udp address"), ln.Close())
	}
	host, _, err := net.SplitHostPort(cfg.Server.Addr)
	if err != nil {
		return nil, errors.Join(err, ln.Close())
	}
	tcpAddr := net.JoinHostPort(host, strconv.Itoa(udpAddr.Port))

	var (
		rt    *h3.Runtime
		h2srv *h2.Server
	)
	readiness := health.MetricFunc(func(ctx context.Context) bool {
		return health.And(rt.Readiness(), h2srv.Readiness()).Healthy(ctx)
	})

	handler := httpapi.NewHandler(cfg.apiOptions(logHandler, readiness)...)

	rt = h3.NewRuntime(
		h3.NewHandshakeAcceptor(
			ln,
			h3.LogHandler(logHandler),
			h3.HandshakeTimeout(cfg.H3.HandshakeTimeout),
		),
		h3.HandlerService(handler),
		h3.LogHandler(logHandler),
		h3.DrainTimeout(cfg.H3.DrainTimeout),
	)

	h2srv = h2.NewServer(
		tcpAddr,
		tlsConfig,
		handler,
		h2.LogHandler(logHandler),
		h2.AdvertiseHTTP3(udpAddr.Port, altSvcMaxAge),
		h2.ReadHeaderTimeout(cfg.HTTP.ReadHeaderTimeout),
		h2.ShutdownTimeout(cfg.HTTP.ShutdownTimeout),
	)

	a := app.Recover(h3bridge.Concurrent(rt, h2srv))
	b := &bridge{
		app:  app.WithSignalNotifications(a, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP),
		addr: udpAddr,
	}
	return b, nil
}
