// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package taskgroup

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroup_Go(t *testing.T) {
	t.Run("will not cancel the task", func(t *testing.T) {
		t.Run("if the parent context is cancelled", func(t *testing.T) {
			g := New(nil)

			parent, cancel := context.WithCancel(context.Background())

			started := make(chan struct{})
			release := make(chan struct{})
			errCh := make(chan error, 1)
			g.Go(parent, func(ctx context.Context) error {
				close(started)
				<-release
				errCh <- ctx.Err()
				return nil
			})

			<-started
			cancel()
			close(release)
			g.Wait()

			assert.NoError(t, <-errCh)
		})
	})

	t.Run("will keep the values of the parent context", func(t *testing.T) {
		type key struct{}

		g := New(nil)
		parent := context.WithValue(context.Background(), key{}, "v")

		var got any
		g.Go(parent, func(ctx context.Context) error {
			got = ctx.Value(key{})
			return nil
		})
		g.Wait()

		assert.Equal(t, "v", got)
	})

	t.Run("will recover from a panicking task", func(t *testing.T) {
		g := New(nil)

		var ran atomic.Bool
		g.Go(context.Background(), func(context.Context) error {
			panic("boom")
		})
		g.Go(context.Background(), func(context.Context) error {
			ran.Store(true)
			return nil
		})
		g.Wait()

		assert.True(t, ran.Load())
	})
}

func TestGroup_Cancel(t *testing.T) {
	t.Run("will cancel running tasks with the cause", func(t *testing.T) {
		g := New(nil)

		causeCh := make(chan error, 1)
		g.Go(context.Background(), func(ctx context.Context) error {
			<-ctx.Done()
			causeCh <- context.Cause(ctx)
			return nil
		})

		forced := errors.New("forced")
		g.Cancel(forced)
		g.Wait()

		assert.ErrorIs(t, <-causeCh, forced)
	})

	t.Run("will cancel tasks started after it", func(t *testing.T) {
		g := New(nil)
		g.Cancel(nil)

		causeCh := make(chan error, 1)
		g.Go(context.Background(), func(ctx context.Context) error {
			<-ctx.Done()
			causeCh <- context.Cause(ctx)
			return nil
		})
		g.Wait()

		assert.ErrorIs(t, <-causeCh, ErrCancelled)
	})
}

func TestGroup_Join(t *testing.T) {
	t.Run("will return nil", func(t *testing.T) {
		t.Run("if every task returns before the context is done", func(t *testing.T) {
			g := New(nil)

			var count atomic.Int32
			for i := 0; i < 5; i++ {
				g.Go(context.Background(), func(context.Context) error {
					count.Add(1)
					return nil
				})
			}

			err := g.Join(context.Background())
			require.NoError(t, err)
			assert.Equal(t, int32(5), count.Load())
		})

		t.Run("if there are no tasks", func(t *testing.T) {
			g := New(nil)
			assert.NoError(t, g.Join(context.Background()))
		})
	})

	t.Run("will cancel tasks and wait for them", func(t *testing.T) {
		t.Run("if the context is done first", func(t *testing.T) {
			g := New(nil)

			var exited atomic.Bool
			g.Go(context.Background(), func(ctx context.Context) error {
				<-ctx.Done()
				time.Sleep(10 * time.Millisecond)
				exited.Store(true)
				return ctx.Err()
			})

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()

			err := g.Join(ctx)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
			assert.True(t, exited.Load())
		})
	})
}
