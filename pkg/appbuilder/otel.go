// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package appbuilder

import (
	"context"
	"errors"

	"github.com/z5labs/h3bridge"
	"github.com/z5labs/h3bridge/pkg/app"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TextMapPropagatorInitializer creates the propagator used for
// carrying trace context across process boundaries.
type TextMapPropagatorInitializer interface {
	InitTextMapPropagator(context.Context) (propagation.TextMapPropagator, error)
}

// TracerProviderInitializer creates the global [trace.TracerProvider].
type TracerProviderInitializer interface {
	InitTracerProvider(context.Context) (trace.TracerProvider, error)
}

// MeterProviderInitializer creates the global [metric.MeterProvider].
type MeterProviderInitializer interface {
	InitMeterProvider(context.Context) (metric.MeterProvider, error)
}

// OTelInitializer is implemented by config types which know how to
// set up OpenTelemetry.
type OTelInitializer interface {
	TextMapPropagatorInitializer
	TracerProviderInitializer
	MeterProviderInitializer
}

type shutdowner interface {
	Shutdown(context.Context) error
}

// OTel wraps builder so the OpenTelemetry globals are installed from
// the config before the [h3bridge.App] is built. A nil propagator or
// provider leaves the corresponding global untouched.
//
// Providers with a Shutdown method are shut down once the built app
// returns, flushing any telemetry still buffered.
func OTel[T OTelInitializer](builder h3bridge.AppBuilder[T]) h3bridge.AppBuilder[T] {
	return h3bridge.AppBuilderFunc[T](func(ctx context.Context, cfg T) (h3bridge.App, error) {
		var providers []shutdowner
		register := func(v any) {
			if s, ok := v.(shutdowner); ok {
				providers = append(providers, s)
			}
		}

		tmp, err := cfg.InitTextMapPropagator(ctx)
		if err != nil {
			return nil, err
		}
		if tmp != nil {
			otel.SetTextMapPropagator(tmp)
		}

		tp, err := cfg.InitTracerProvider(ctx)
		if err != nil {
			return nil, err
		}
		if tp != nil {
			otel.SetTracerProvider(tp)
			register(tp)
		}

		mp, err := cfg.InitMeterProvider(ctx)
		if err != nil {
			return nil, errors.Join(err, shutdown(ctx, providers))
		}
		if mp != nil {
			otel.SetMeterProvider(mp)
			register(mp)
		}

		a, err := builder.Build(ctx, cfg)
		if err != nil {
			return nil, errors.Join(err, shutdown(ctx, providers))
		}

		return app.WithLifecycleHooks(a, app.Lifecycle{
			PostRun: app.LifecycleHookFunc(func(ctx context.Context) error {
				return shutdown(ctx, providers)
			}),
		}), nil
	})
}

func shutdown(ctx context.Context, providers []shutdowner) error {
	var errs []error
	for _, p := range providers {
		errs = append(errs, p.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
