// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package appbuilder provides helpers for common h3bridge.AppBuilder
// implementation patterns.
package appbuilder

import (
	"context"

	"github.com/z5labs/h3bridge"
	"github.com/z5labs/h3bridge/internal/try"
)

// Recover will wrap the given [h3bridge.AppBuilder] with panic recovery.
// A recovered panic is returned as a [try.PanicError].
func Recover[T any](builder h3bridge.AppBuilder[T]) h3bridge.AppBuilder[T] {
	return h3bridge.AppBuilderFunc[T](func(ctx context.Context, cfg T) (_ h3bridge.App, err error) {
		defer try.Recover(&err)

		return builder.Build(ctx, cfg)
	})
}
