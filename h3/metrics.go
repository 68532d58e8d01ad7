// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package h3

import (
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/z5labs/h3bridge/h3"

type serverMetrics struct {
	connections       metric.Int64Counter
	activeConnections metric.Int64UpDownCounter
	requests          metric.Int64Counter
	activeRequests    metric.Int64UpDownCounter
	requestErrors     metric.Int64Counter
}

func newServerMetrics() (*serverMetrics, error) {
	meter := otel.Meter(instrumentationName)

	connections, err1 := meter.Int64Counter(
		"h3.server.connections",
		metric.WithDescription("Number of connections accepted."),
		metric.WithUnit("{connection}"),
	)
	activeConnections, err2 := meter.Int64UpDownCounter(
		"h3.server.active_connections",
		metric.WithDescription("Number of connections currently being served."),
		metric.WithUnit("{connection}"),
	)
	requests, err3 := meter.Int64Counter(
		"h3.server.requests",
		metric.WithDescription("Number of request streams accepted."),
		metric.WithUnit("{request}"),
	)
	activeRequests, err4 := meter.Int64UpDownCounter(
		"h3.server.active_requests",
		metric.WithDescription("Number of request streams currently being served."),
		metric.WithUnit("{request}"),
	)
	requestErrors, err5 := meter.Int64Counter(
		"h3.server.request_errors",
		metric.WithDescription("Number of request streams which failed, by stage."),
		metric.WithUnit("{request}"),
	)

	err := errors.Join(err1, err2, err3, err4, err5)
	if err != nil {
		return nil, err
	}
	return &serverMetrics{
		connections:       connections,
		activeConnections: activeConnections,
		requests:          requests,
		activeRequests:    activeRequests,
		requestErrors:     requestErrors,
	}, nil
}

func noopServerMetrics() *serverMetrics {
	meter := noop.NewMeterProvider().Meter(instrumentationName)

	connections, _ := meter.Int64Counter("h3.server.connections")
	activeConnections, _ := meter.Int64UpDownCounter("h3.server.active_connections")
	requests, _ := meter.Int64Counter("h3.server.requests")
	activeRequests, _ := meter.Int64UpDownCounter("h3.server.active_requests")
	requestErrors, _ := meter.Int64Counter("h3.server.request_errors")
	return &serverMetrics{
		connections:       connections,
		activeConnections: activeConnections,
		requests:          requests,
		activeRequests:    activeRequests,
		requestErrors:     requestErrors,
	}
}

func newHandshakeFailures() (metric.Int64Counter, error) {
	return otel.Meter(instrumentationName).Int64Counter(
		"h3.acceptor.handshake_failures",
		metric.WithDescription("Number of connections discarded because their handshake failed."),
		metric.WithUnit("{connection}"),
	)
}

func noopHandshakeFailures() metric.Int64Counter {
	c, _ := noop.NewMeterProvider().Meter(instrumentationName).Int64Counter("h3.acceptor.handshake_failures")
	return c
}
