// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/z5labs/h3bridge/internal/httpapi"
	"github.com/z5labs/h3bridge/pkg/health"
	"github.com/z5labs/h3bridge/pkg/maskslog"
	"github.com/z5labs/h3bridge/pkg/slogfield"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config is read from the embedded defaults, an optional config file and
// H3BRIDGE_ prefixed environment variables, in that order.
type Config struct {
	Logging struct {
		Level  slog.Level `config:"level"`
		Format string     `config:"format"`

		// MaskRemoteAddr truncates client addresses in log records.
		MaskRemoteAddr bool `config:"mask_remote_addr"`
	} `config:"logging"`

	Server struct {
		Addr     string `config:"addr"`
		CertFile string `config:"cert_file"`
		KeyFile  string `config:"key_file"`
	} `config:"server"`

	HTTP struct {
		Timeout           time.Duration `config:"timeout"`
		ReadHeaderTimeout time.Duration `config:"read_header_timeout"`
		ShutdownTimeout   time.Duration `config:"shutdown_timeout"`
		MaxBody           int64         `config:"max_body"`

		// MaxConns bounds how many API requests are served at once.
		MaxConns    int64 `config:"max_conns"`
		RequestID   bool  `config:"request_id"`
		Compression bool  `config:"compression"`

		Limiter struct {
			RPS   float64 `config:"rps"`
			Burst int     `config:"burst"`
		} `config:"limiter"`

		CORS struct {
			Origins []string `config:"origins"`
		} `config:"cors"`
	} `config:"http"`

	H3 struct {
		HandshakeTimeout time.Duration `config:"handshake_timeout"`
		IdleTimeout      time.Duration `config:"idle_timeout"`
		DrainTimeout     time.Duration `config:"drain_timeout"`
		MaxHeaderBytes   int           `config:"max_header_bytes"`
	} `config:"h3"`

	Telemetry struct {
		ServiceName string `config:"service_name"`
		Traces      struct {
			Exporter string  `config:"exporter"`
			Endpoint string  `config:"endpoint"`
			Insecure bool    `config:"insecure"`
			Ratio    float64 `config:"ratio"`
		} `config:"traces"`
		Metrics struct {
			Enabled bool `config:"enabled"`
		} `config:"metrics"`
	} `config:"telemetry"`
}

// UnknownExporterError occurs when the configured trace exporter
// is not one of none, stdout or otlp.
type UnknownExporterError struct {
	Name string
}

// Error implements the [builtin.error] interface.
func (e UnknownExporterError) Error() string {
	return fmt.Sprintf("unknown trace exporter: %s", e.Name)
}

// UnknownLogFormatError occurs when the configured log format
// is neither json nor text.
type UnknownLogFormatError struct {
	Format string
}

// Error implements the [builtin.error] interface.
func (e UnknownLogFormatError) Error() string {
	return fmt.Sprintf("unknown log format: %s", e.Format)
}

func (cfg Config) logHandler(w io.Writer) (slog.Handler, error) {
	opts := &slog.HandlerOptions{
		AddSource: true,
		Level:     cfg.Logging.Level,
	}

	var h slog.Handler
	switch cfg.Logging.Format {
	case "", "json":
		h = slog.NewJSONHandler(w, opts)
	case "text":
		h = slog.NewTextHandler(w, opts)
	default:
		return nil, UnknownLogFormatError{Format: cfg.Logging.Format}
	}
	if cfg.Logging.MaskRemoteAddr {
		h = maskslog.NewHandler(h, maskslog.Attr(slogfield.RemoteAddrKey, maskslog.TruncateIP))
	}
	return h, nil
}

func (cfg Config) apiOptions(logHandler slog.Handler, readiness health.Metric) []httpapi.Option {
	opts := []httpapi.Option{
		httpapi.LogHandler(logHandler),
		httpapi.Readiness(readiness),
		httpapi.Metrics(promhttp.Handler()),
		httpapi.RateLimit(httpapi.NewLimiter(cfg.HTTP.Limiter.RPS, cfg.HTTP.Limiter.Burst)),
		httpapi.MaxBody(cfg.HTTP.MaxBody),
		httpapi.Timeout(cfg.HTTP.Timeout),
		httpapi.MaxConcurrentRequests(cfg.HTTP.MaxConns),
	}
	if cfg.HTTP.RequestID {
		opts = append(opts, httpapi.RequestID())
	}
	if cfg.HTTP.Compression {
		opts = append(opts, httpapi.Compression())
	}
	if origins := cfg.corsOrigins(); len(origins) > 0 {
		opts = append(opts, httpapi.CORS(origins...))
	}
	return opts
}

// corsOrigins also accepts a comma separated list since that is the only
// way to set a list from the environment.
func (cfg Config) corsOrigins() []string {
	var origins []string
	for _, o := range cfg.HTTP.CORS.Origins {
		for _, origin := range strings.Split(o, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				origins = append(origins, origin)
			}
		}
	}
	return origins
}

func (cfg Config) resource() (*resource.Resource, error) {
	name := cfg.Telemetry.ServiceName
	if name == "" {
		name = "h3bridge"
	}
	return resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", name)),
	)
}

// InitTextMapPropagator implements the appbuilder.TextMapPropagatorInitializer interface.
func (cfg Config) InitTextMapPropagator(ctx context.Context) (propagation.TextMapPropagator, error) {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	), nil
}

// InitTracerProvider implements the appbuilder.TracerProviderInitializer interface.
func (cfg Config) InitTracerProvider(ctx context.Context) (trace.TracerProvider, error) {
	traces := cfg.Telemetry.Traces

	var exp sdktrace.SpanExporter
	var err error
	switch traces.Exporter {
	case "", "none":
		return nil, nil
	case "stdout":
		exp, err = stdouttrace.New()
	case "otlp":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(traces.Endpoint)}
		if traces.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exp, err = otlptracegrpc.New(ctx, opts...)
	default:
		return nil, UnknownExporterError{Name: traces.Exporter}
	}
	if err != nil {
		return nil, err
	}

	r, err := cfg.resource()
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(r),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(traces.Ratio))),
	)
	return tp, nil
}

// InitMeterProvider implements the appbuilder.MeterProviderInitializer interface.
// Metrics are exported through the default Prometheus registry which is
// served on /metrics.
func (cfg Config) InitMeterProvider(ctx context.Context) (metric.MeterProvider, error) {
	if !cfg.Telemetry.Metrics.Enabled {
		return nil, nil
	}
	mp, err := cfg.meterProvider(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}
	return mp, nil
}

func (cfg Config) meterProvider(reg prometheus.Registerer) (*sdkmetric.MeterProvider, error) {
	exp, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}

	r, err := cfg.resource()
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exp),
		sdkmetric.WithResource(r),
	)
	return mp, nil
}
