package player

import (
	"context"

	"github.com/hashicorp/go-multierror"
)

// Task is a cold unit of playback work: building one does nothing until
// it is run, and it runs at most once. Composition happens with Sequence
// and Join before anything starts ticking.
type Task func(ctx context.Context) error

// Noop returns a task that completes immediately.
func Noop() Task {
	return func(context.Context) error { return nil }
}

// Sequence chains tasks strictly in order: a task never starts before the
// previous one finished. The first error, or a cancelled context, stops
// the chain.
func Sequence(tasks ...Task) Task {
	return func(ctx context.Context) error {
		for _, t := range tasks {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := t(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// Join runs all tasks at once and completes only when every one of them
// has finished, whatever order they finish in. Errors are collected, not
// raced.
func Join(tasks ...Task) Task {
	return func(ctx context.Context) error {
		errs := make(chan error, len(tasks))
		for _, t := range tasks {
			go func(t Task) { errs <- t(ctx) }(t)
		}

		var result *multierror.Error
		for range tasks {
			if err := <-errs; err != nil {
				result = multierror.Append(result, err)
			}
		}
		return result.ErrorOrNil()
	}
}
