// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package app

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/z5labs/h3bridge/internal/try"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecover(t *testing.T) {
	t.Run("will return a PanicError", func(t *testing.T) {
		t.Run("if the app panics", func(t *testing.T) {
			app := Recover(runFunc(func(ctx context.Context) error {
				panic("hello world")
			}))

			err := app.Run(context.Background())

			var perr try.PanicError
			if !assert.ErrorAs(t, err, &perr) {
				return
			}
			assert.Equal(t, "hello world", perr.Value)
		})
	})
}

func TestWithSignalNotifications(t *testing.T) {
	t.Run("will propogate context cancellation", func(t *testing.T) {
		t.Run("if the parent context is cancelled", func(t *testing.T) {
			app := WithSignalNotifications(runFunc(func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			}), syscall.SIGUSR1)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			err := app.Run(ctx)
			assert.ErrorIs(t, err, context.Canceled)
		})
	})

	t.Run("will cancel the context and then force", func(t *testing.T) {
		t.Run("if two signals are received", func(t *testing.T) {
			stages := make(chan string, 2)
			app := WithSignalNotifications(runFunc(func(ctx context.Context) error {
				force := ForceDone(ctx)
				if force == nil {
					return errors.New("expected a force channel")
				}

				err := syscall.Kill(syscall.Getpid(), syscall.SIGUSR1)
				if err != nil {
					return err
				}

				<-ctx.Done()
				stages <- "graceful"

				err = syscall.Kill(syscall.Getpid(), syscall.SIGUSR1)
				if err != nil {
					return err
				}

				select {
				case <-force:
					stages <- "forced"
					return nil
				case <-time.After(5 * time.Second):
					return errors.New("never forced")
				}
			}), syscall.SIGUSR1)

			err := app.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "graceful", <-stages)
			assert.Equal(t, "forced", <-stages)
		})
	})
}

func TestForceDone(t *testing.T) {
	t.Run("will return a nil channel", func(t *testing.T) {
		t.Run("if the context does not come from WithSignalNotifications", func(t *testing.T) {
			assert.Nil(t, ForceDone(context.Background()))
		})
	})
}

func TestWithLifecycleHooks(t *testing.T) {
	t.Run("will return error", func(t *testing.T) {
		t.Run("if the underlying app fails", func(t *testing.T) {
			baseErr := errors.New("failed to run app")
			base := runFunc(func(ctx context.Context) error {
				return baseErr
			})

			app := WithLifecycleHooks(base, Lifecycle{})

			err := app.Run(context.Background())
			assert.ErrorIs(t, err, baseErr)
		})

		t.Run("if the Lifecycle.PostRun fails", func(t *testing.T) {
			base := runFunc(func(ctx context.Context) error {
				return nil
			})

			postRunErr := errors.New("failed to post run")
			app := WithLifecycleHooks(base, Lifecycle{
				PostRun: LifecycleHookFunc(func(ctx context.Context) error {
					return postRunErr
				}),
			})

			err := app.Run(context.Background())
			assert.ErrorIs(t, err, postRunErr)
		})
	})

	t.Run("will run the PostRun hook", func(t *testing.T) {
		t.Run("if the underlying app panics", func(t *testing.T) {
			base := runFunc(func(ctx context.Context) error {
				panic("boom")
			})

			ran := false
			app := WithLifecycleHooks(base, Lifecycle{
				PostRun: LifecycleHookFunc(func(ctx context.Context) error {
					ran = true
					return nil
				}),
			})

			err := app.Run(context.Background())

			var perr try.PanicError
			assert.ErrorAs(t, err, &perr)
			assert.True(t, ran)
		})

		t.Run("with a context which is not cancelled", func(t *testing.T) {
			base := runFunc(func(ctx context.Context) error {
				return nil
			})

			var hookErr error
			app := WithLifecycleHooks(base, Lifecycle{
				PostRun: LifecycleHookFunc(func(ctx context.Context) error {
					hookErr = ctx.Err()
					return nil
				}),
			})

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			err := app.Run(ctx)
			require.NoError(t, err)
			assert.NoError(t, hookErr)
		})
	})
}
