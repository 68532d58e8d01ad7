// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package h3bridge

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Concurrent returns an [App] which runs every one of apps at the same
// time, in the spirit of [io.MultiWriter]. The first app to fail cancels
// the context of the others. Run returns once all of them have returned.
func Concurrent(apps ...App) App {
	return AppFunc(func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		for _, app := range apps {
			g.Go(func() error {
				return app.Run(gctx)
			})
		}
		return g.Wait()
	})
}
