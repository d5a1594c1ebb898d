package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fast(n uint) Policy {
	return Policy{MaxAttempts: n, Delay: time.Millisecond}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	var notified []int
	got, err := Do(context.Background(), fast(3), func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("not yet")
		}
		return 42, nil
	}, func(attempt int, err error) { notified = append(notified, attempt) })

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, notified)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	sentinel := errors.New("connection lost")
	calls := 0
	_, err := Do(context.Background(), fast(5), func(ctx context.Context) (int, error) {
		calls++
		return 0, Stop(sentinel)
	}, nil)

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fast(3), func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("still failing")
	}, nil)

	assert.EqualError(t, err, "still failing")
	assert.Equal(t, 3, calls)
}

func TestUntil(t *testing.T) {
	n := 0
	err := Until(context.Background(), fast(4), func(ctx context.Context) (bool, error) {
		n++
		return n == 2, nil
	}, nil)
	require.NoError(t, err)

	err = Until(context.Background(), fast(2), func(ctx context.Context) (bool, error) {
		return false, nil
	}, nil)
	assert.ErrorIs(t, err, ErrNotSatisfied)

	boom := errors.New("parse failure")
	err = Until(context.Background(), fast(4), func(ctx context.Context) (bool, error) {
		return false, boom
	}, nil)
	assert.ErrorIs(t, err, boom)
}

func TestWindow(t *testing.T) {
	p := Window(2*time.Second, 500*time.Millisecond)
	assert.Equal(t, uint(5), p.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, p.Delay)
}
