// Package poll implements a bounded-retry polling loop for long-running
// cloud operations, such as EC2 snapshot imports or Azure server-side blob
// copies. The provider's asynchronous APIs only expose a status query, so
// the loop blocks for a fixed interval between queries until the operation
// reaches a terminal state or a retry budget runs out.
package poll

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Status is the observed state of a long-running operation.
type Status int

const (
	// StatusActive means the operation has not reached a terminal state.
	StatusActive Status = iota
	// StatusCompleted means the operation finished successfully.
	StatusCompleted
	// StatusError means the operation reached a terminal error state.
	StatusError
)

// Update describes the outcome of a single status query.
type Update struct {
	Status Status
	// Progress is a provider-reported completion indicator, usually a
	// percentage. Informational only.
	Progress string
	// Message is the provider's status message. For StatusError it becomes
	// the OperationError message.
	Message string
}

// CheckFunc performs one status query. A non-nil error aborts the loop and
// propagates unchanged; it is reserved for query failures, not for the
// operation's own terminal error state.
type CheckFunc[T any] func(ctx context.Context) (T, Update, error)

// Options bound a polling loop. Zero MaxElapsed means no elapsed-time
// bound; MaxAttempts must be positive.
type Options struct {
	// Name identifies the operation in log lines.
	Name        string
	Interval    time.Duration
	MaxAttempts int
	MaxElapsed  time.Duration
}

// OperationError is returned when the operation reached a terminal error
// state. It carries the provider's status message.
type OperationError struct {
	Op      string
	Message string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
}

// TimeoutError is returned when the attempt or elapsed-time budget was
// exhausted before a terminal state was observed. It is distinct from
// OperationError: the operation may still be running on the provider side.
type TimeoutError struct {
	Op       string
	Attempts int
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for %s after %d attempts (%s)", e.Op, e.Attempts, e.Elapsed)
}

// Wait polls check until it reports a terminal state. Each iteration blocks
// for the full interval before querying; there is no busy-polling and no
// query before the first interval has elapsed. Progress is logged on every
// poll.
func Wait[T any](ctx context.Context, opts Options, check CheckFunc[T]) (T, error) {
	var zero T

	if opts.MaxAttempts <= 0 {
		return zero, fmt.Errorf("poll: MaxAttempts must be positive, got %d", opts.MaxAttempts)
	}
	if opts.Interval <= 0 {
		return zero, fmt.Errorf("poll: Interval must be positive, got %s", opts.Interval)
	}

	start := time.Now()

	for attempt := 1; ; attempt++ {
		if attempt > opts.MaxAttempts {
			return zero, &TimeoutError{Op: opts.Name, Attempts: attempt - 1, Elapsed: time.Since(start)}
		}
		if opts.MaxElapsed > 0 && time.Since(start) >= opts.MaxElapsed {
			return zero, &TimeoutError{Op: opts.Name, Attempts: attempt - 1, Elapsed: time.Since(start)}
		}

		if err := sleep(ctx, opts.Interval); err != nil {
			return zero, err
		}

		result, update, err := check(ctx)
		if err != nil {
			return zero, err
		}

		logrus.Infof("%s progress: %s - %s", opts.Name, orNA(update.Progress), orNA(update.Message))

		switch update.Status {
		case StatusCompleted:
			return result, nil
		case StatusError:
			return zero, &OperationError{Op: opts.Name, Message: update.Message}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
