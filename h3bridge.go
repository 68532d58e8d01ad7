// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package h3bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/z5labs/h3bridge/config"
)

// App is a long running part of the bridge, e.g. the HTTP/3 runtime or
// the HTTP/2 fallback server. Run blocks until ctx is cancelled or the
// App can no longer serve.
type App interface {
	Run(context.Context) error
}

// AppFunc lets a plain function be used as an [App].
type AppFunc func(context.Context) error

// Run implements the [App] interface.
func (f AppFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// AppBuilder sets up an [App] from the config type T, which is read
// by [Run].
type AppBuilder[T any] interface {
	Build(ctx context.Context, cfg T) (App, error)
}

// AppBuilderFunc lets a plain function be used as an [AppBuilder].
type AppBuilderFunc[T any] func(context.Context, T) (App, error)

// Build implements the [AppBuilder] interface.
func (f AppBuilderFunc[T]) Build(ctx context.Context, cfg T) (App, error) {
	return f(ctx, cfg)
}

// Stage is a step [Run] goes through to start the bridge.
type Stage string

const (
	StageReadConfig      Stage = "read_config"
	StageUnmarshalConfig Stage = "unmarshal_config"
	StageBuild           Stage = "build"
	StageRun             Stage = "run"
)

// StageOf reports which Stage of [Run] err came from.
func StageOf(err error) (Stage, bool) {
	var se interface{ Stage() Stage }
	if !errors.As(err, &se) {
		return "", false
	}
	return se.Stage(), true
}

// Run starts the bridge. The sources are merged in order, later ones
// overriding earlier ones, and unmarshalled into T. The [App] built from
// it is then run until it returns.
//
// Every error returned by Run carries the [Stage] it failed at.
func Run[T any](ctx context.Context, builder AppBuilder[T], srcs ...config.Source) error {
	m, err := config.Read(srcs...)
	if err != nil {
		rerr := ConfigReadError{Source: -1, Cause: err}
		var serr config.SourceError
		if errors.As(err, &serr) {
			rerr.Source = serr.Index
		}
		return rerr
	}

	var cfg T
	err = m.Unmarshal(&cfg)
	if err != nil {
		return ConfigUnmarshalError{Type: fmt.Sprintf("%T", cfg), Cause: err}
	}

	app, err := builder.Build(ctx, cfg)
	if err != nil {
		return AppBuildError{Cause: err}
	}

	err = app.Run(ctx)
	if err != nil {
		return AppRunError{Cause: err}
	}
	return nil
}

// ConfigReadError occurs when a config source can not be applied.
type ConfigReadError struct {
	// Source is the index of the failing source in the list given to
	// [Run] or -1 if it is not known.
	Source int
	Cause  error
}

// Error implements the [builtin.error] interface.
func (e ConfigReadError) Error() string {
	return fmt.Sprintf("failed to read config: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ConfigReadError) Unwrap() error {
	return e.Cause
}

// Stage returns [StageReadConfig].
func (ConfigReadError) Stage() Stage { return StageReadConfig }

// ConfigUnmarshalError occurs when the merged config does not fit the
// config type.
type ConfigUnmarshalError struct {
	// Type is the name of the config type.
	Type  string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ConfigUnmarshalError) Error() string {
	return fmt.Sprintf("failed to unmarshal config into %s: %s", e.Type, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ConfigUnmarshalError) Unwrap() error {
	return e.Cause
}

// Stage returns [StageUnmarshalConfig].
func (ConfigUnmarshalError) Stage() Stage { return StageUnmarshalConfig }

// AppBuildError occurs when the bridge can not be set up, e.g. its
// certificate can not be loaded or its address can not be bound.
type AppBuildError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e AppBuildError) Error() string {
	return fmt.Sprintf("failed to build bridge: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e AppBuildError) Unwrap() error {
	return e.Cause
}

// Stage returns [StageBuild].
func (AppBuildError) Stage() Stage { return StageBuild }

// AppRunError occurs when the bridge stops serving with an error.
type AppRunError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e AppRunError) Error() string {
	return fmt.Sprintf("bridge stopped: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e AppRunError) Unwrap() error {
	return e.Cause
}

// Stage returns [StageRun].
func (AppRunError) Stage() Stage { return StageRun }
