// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package httpapi implements the HTTP API served by the h3bridge command
// over both HTTP/3 and HTTP/2.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/z5labs/h3bridge/pkg/health"
	"github.com/z5labs/h3bridge/pkg/otelslog"
	"github.com/z5labs/h3bridge/pkg/slogfield"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/z5labs/h3bridge/internal/httpapi"

type options struct {
	logHandler    slog.Handler
	meterProvider metric.MeterProvider
	readiness     health.Metric
	metrics       http.Handler
	limiter       *Limiter
	maxBody       int64
	timeout       time.Duration
	requestID     bool
	corsOrigins   []string
	maxConcurrent int64
	compress      bool
}

// Option configures the handler returned by [NewHandler].
type Option func(*options)

// LogHandler sets the handler all log records are written to.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = otelslog.NewHandler(h)
	}
}

// MeterProvider sets where the API records its own metrics.
// The global provider is used by default.
func MeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// Readiness serves m on /health/readiness.
func Readiness(m health.Metric) Option {
	return func(o *options) {
		o.readiness = m
	}
}

// Metrics serves h on /metrics.
func Metrics(h http.Handler) Option {
	return func(o *options) {
		o.metrics = h
	}
}

// RateLimit limits how often each client may call the API.
func RateLimit(l *Limiter) Option {
	return func(o *options) {
		o.limiter = l
	}
}

// MaxBody limits the size of request bodies. Zero means unlimited.
func MaxBody(n int64) Option {
	return func(o *options) {
		o.maxBody = n
	}
}

// Timeout bounds how long a single API request may take.
// Zero means no timeout.
func Timeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// RequestID tags every request and its response with an X-Request-Id
// header. An id sent by the client is kept, otherwise a random UUID is
// generated.
func RequestID() Option {
	return func(o *options) {
		o.requestID = true
	}
}

// CORS allows cross origin calls to the API from the given origins.
// The origin "*" allows any origin.
func CORS(origins ...string) Option {
	return func(o *options) {
		o.corsOrigins = append(o.corsOrigins, origins...)
	}
}

// MaxConcurrentRequests bounds how many API requests are served at once.
// Further requests wait for a slot until their context is done.
// Zero means unlimited.
func MaxConcurrentRequests(n int64) Option {
	return func(o *options) {
		o.maxConcurrent = n
	}
}

// Compression gzips API responses for clients which accept it and
// decompresses gzipped request bodies.
func Compression() Option {
	return func(o *options) {
		o.compress = true
	}
}

// NewHandler returns the instrumented router for the API.
//
// Health and metrics endpoints are exempt from the rate limit,
// body limit and timeout applied to the rest of the API.
func NewHandler(opts ...Option) http.Handler {
	o := &options{
		logHandler:    noopLogHandler{},
		meterProvider: otel.GetMeterProvider(),
		readiness:     health.And(),
		metrics:       http.NotFoundHandler(),
	}
	for _, opt := range opts {
		opt(o)
	}

	log := slog.New(o.logHandler)

	r := mux.NewRouter()
	r.Use(routeTag)
	if o.requestID {
		r.Use(requestID)
	}
	r.Handle("/health/readiness", health.Handler(o.readiness)).Methods(http.MethodGet)
	r.Handle("/metrics", o.metrics).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	methods := func(ms ...string) []string { return ms }
	if len(o.corsOrigins) > 0 {
		api.Use(mux.CORSMethodMiddleware(api))
		api.Use(cors(o.corsOrigins))
		methods = func(ms ...string) []string {
			return append(ms, http.MethodOptions)
		}
	}
	if o.limiter != nil {
		api.Use(o.limiter.Middleware)
	}
	api.Use(countInFlight(newInFlightCounter(o.meterProvider, log)))
	if o.maxConcurrent > 0 {
		api.Use(concurrencyLimit(o.maxConcurrent))
	}
	if o.maxBody > 0 {
		api.Use(maxBody(o.maxBody))
	}
	if o.timeout > 0 {
		api.Use(timeout(o.timeout))
	}
	if o.compress {
		api.Use(func(h http.Handler) http.Handler {
			return gzhttp.GzipHandler(h)
		})
		api.Use(decompress)
	}
	api.Handle("/", index{}).Methods(methods(http.MethodGet)...)
	api.Handle("/echo", echo{log: log}).Methods(methods(http.MethodPost)...)

	return otelhttp.NewHandler(
		r,
		"h3bridge",
		otelhttp.WithMeterProvider(o.meterProvider),
		otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
	)
}

func newInFlightCounter(mp metric.MeterProvider, log *slog.Logger) metric.Int64UpDownCounter {
	c, err := mp.Meter(instrumentationName).Int64UpDownCounter(
		"h3bridge.http.in_flight_requests",
		metric.WithDescription("Number of API requests currently being served."),
		metric.WithUnit("{request}"),
	)
	if err == nil {
		return c
	}
	log.Warn("failed to create in flight request counter", slogfield.Error(err))
	c, _ = noop.NewMeterProvider().Meter(instrumentationName).Int64UpDownCounter("h3bridge.http.in_flight_requests")
	return c
}

// routeTag names the request span after the matched route and labels
// the request metrics with it.
func routeTag(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tmpl, err := mux.CurrentRoute(r).GetPathTemplate()
		if err == nil {
			trace.SpanFromContext(r.Context()).SetName(r.Method + " " + tmpl)
			if labeler, ok := otelhttp.LabelerFromContext(r.Context()); ok {
				labeler.Add(attribute.String("http.route", tmpl))
			}
		}
		next.ServeHTTP(w, r)
	})
}

type noopLogHandler struct{}

func (noopLogHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (noopLogHandler) Handle(context.Context, slog.Record) error { return nil }
func (h noopLogHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h noopLogHandler) WithGroup(string) slog.Handler           { return h }
