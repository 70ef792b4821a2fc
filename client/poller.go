package client

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultPollInterval is the delay between consecutive status requests.
const DefaultPollInterval = 2 * time.Second

// maxConsecutiveFailures bounds how many transport failures in a row the
// poller tolerates before giving up. Any successful poll resets the count.
const maxConsecutiveFailures = 10

// ErrStatusUnavailable is returned when the poller gives up on ever
// learning the task's outcome: either the id is unknown to the server or
// transport failures exhausted the retry budget.
var ErrStatusUnavailable = errors.New("could not retrieve task status")

// TaskGetter is the part of TaskClient the poller needs.
type TaskGetter interface {
	GetTask(ctx context.Context, taskID string) (*TaskSnapshot, error)
}

// Poller repeatedly fetches a task's status until it reaches a terminal
// state.
type Poller struct {
	client   TaskGetter
	interval time.Duration
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithPollInterval overrides the delay between status requests.
func WithPollInterval(interval time.Duration) PollerOption {
	return func(p *Poller) {
		p.interval = interval
	}
}

// NewPoller creates a Poller backed by the given client.
func NewPoller(client TaskGetter, opts ...PollerOption) *Poller {
	p := &Poller{
		client:   client,
		interval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait polls until the task is terminal and returns the final snapshot.
// The first request fires immediately; terminality is checked before any
// further wait is scheduled, so a task that is already terminal costs
// exactly one request.
//
// Wait returns ErrStatusUnavailable (wrapped) when the server does not know
// the id or when maxConsecutiveFailures transport failures occur in a row,
// and ctx.Err() when the context is cancelled between polls.
func (p *Poller) Wait(ctx context.Context, taskID string) (*TaskSnapshot, error) {
	failures := 0

	for {
		snapshot, err := p.client.GetTask(ctx, taskID)
		switch {
		case err == nil:
			if snapshot.IsTerminal() {
				return snapshot, nil
			}
			failures = 0

		case errors.Is(err, ErrTaskNotFound):
			// The server will never learn about this id; retrying is
			// pointless.
			return nil, fmt.Errorf("%w: %v", ErrStatusUnavailable, err)

		case ctx.Err() != nil:
			return nil, ctx.Err()

		default:
			failures++
			if failures >= maxConsecutiveFailures {
				return nil, fmt.Errorf("%w: %d consecutive failures, last: %v",
					ErrStatusUnavailable, failures, err)
			}
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
