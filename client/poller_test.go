package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedGetter returns canned responses in order, repeating the last one.
type scriptedGetter struct {
	calls     int
	snapshots []*TaskSnapshot
	errs      []error
}

func (g *scriptedGetter) GetTask(_ context.Context, _ string) (*TaskSnapshot, error) {
	i := g.calls
	g.calls++
	if i >= len(g.snapshots) {
		i = len(g.snapshots) - 1
	}
	return g.snapshots[i], g.errs[i]
}

func inProgress() *TaskSnapshot {
	return &TaskSnapshot{ID: "msgbatch_abc", ProcessingStatus: StatusInProgress}
}

func completed() *TaskSnapshot {
	return &TaskSnapshot{ID: "msgbatch_abc", ProcessingStatus: StatusCompleted}
}

func fastPoller(g TaskGetter) *Poller {
	return NewPoller(g, WithPollInterval(time.Millisecond))
}

func TestWait_StopsExactlyAtTerminal(t *testing.T) {
	// Two in_progress observations, then completed: exactly three requests.
	getter := &scriptedGetter{
		snapshots: []*TaskSnapshot{inProgress(), inProgress(), completed()},
		errs:      []error{nil, nil, nil},
	}

	snapshot, err := fastPoller(getter).Wait(context.Background(), "msgbatch_abc")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, snapshot.ProcessingStatus)
	assert.Equal(t, 3, getter.calls)
}

func TestWait_AlreadyTerminalCostsOneRequest(t *testing.T) {
	getter := &scriptedGetter{
		snapshots: []*TaskSnapshot{{ID: "msgbatch_abc", ProcessingStatus: StatusError, Error: "boom"}},
		errs:      []error{nil},
	}

	snapshot, err := fastPoller(getter).Wait(context.Background(), "msgbatch_abc")
	require.NoError(t, err)
	assert.Equal(t, StatusError, snapshot.ProcessingStatus)
	assert.Equal(t, 1, getter.calls)
}

func TestWait_GivesUpAfterTenConsecutiveFailures(t *testing.T) {
	getter := &scriptedGetter{
		snapshots: []*TaskSnapshot{nil},
		errs:      []error{errors.New("connection refused")},
	}

	_, err := fastPoller(getter).Wait(context.Background(), "msgbatch_abc")
	require.ErrorIs(t, err, ErrStatusUnavailable)
	assert.Equal(t, 10, getter.calls)
}

func TestWait_FailureCountResetsOnSuccess(t *testing.T) {
	// Nine failures, one success, then failures again: the poller should
	// survive past the tenth request because the streak was broken.
	transportErr := errors.New("connection refused")
	snapshots := make([]*TaskSnapshot, 0, 20)
	errs := make([]error, 0, 20)
	for i := 0; i < 9; i++ {
		snapshots, errs = append(snapshots, nil), append(errs, transportErr)
	}
	snapshots, errs = append(snapshots, inProgress()), append(errs, nil)
	for i := 0; i < 10; i++ {
		snapshots, errs = append(snapshots, nil), append(errs, transportErr)
	}

	getter := &scriptedGetter{snapshots: snapshots, errs: errs}

	_, err := fastPoller(getter).Wait(context.Background(), "msgbatch_abc")
	require.ErrorIs(t, err, ErrStatusUnavailable)
	assert.Equal(t, 20, getter.calls)
}

func TestWait_NotFoundIsTerminal(t *testing.T) {
	getter := &scriptedGetter{
		snapshots: []*TaskSnapshot{nil},
		errs:      []error{ErrTaskNotFound},
	}

	_, err := fastPoller(getter).Wait(context.Background(), "msgbatch_abc")
	require.ErrorIs(t, err, ErrStatusUnavailable)
	assert.Equal(t, 1, getter.calls)
}

func TestWait_ContextCancellation(t *testing.T) {
	getter := &scriptedGetter{
		snapshots: []*TaskSnapshot{inProgress()},
		errs:      []error{nil},
	}

	ctx, cancel := context.WithCancel(context.Background())
	poller := NewPoller(getter, WithPollInterval(time.Hour))

	done := make(chan error, 1)
	go func() {
		_, err := poller.Wait(ctx, "msgbatch_abc")
		done <- err
	}()

	// Give the first poll a moment to land, then cancel mid-wait.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, getter.calls)
	case <-time.After(time.Second):
		t.Fatal("poller did not observe cancellation")
	}
}
