package testutil

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoll_BecomesTrue(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	err := Poll(context.Background(), func() bool {
		return calls.Add(1) >= 3
	}, 5*time.Second, time.Millisecond)
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestPoll_ImmediateSuccessChecksOnce(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	require.NoError(t, Poll(context.Background(), func() bool {
		calls.Add(1)
		return true
	}, 0, time.Hour))
	assert.EqualValues(t, 1, calls.Load())
}

func TestPoll_Timeout(t *testing.T) {
	t.Parallel()
	err := Poll(context.Background(), func() bool { return false }, 20*time.Millisecond, time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestPoll_ContextCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	checked := make(chan struct{})
	go func() {
		<-checked
		cancel()
	}()

	var once atomic.Bool
	err := Poll(ctx, func() bool {
		if once.CompareAndSwap(false, true) {
			close(checked)
		}
		return false
	}, time.Minute, time.Millisecond)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWaitForState(t *testing.T) {
	t.Parallel()
	var n atomic.Int64
	go func() {
		for i := 0; i < 10; i++ {
			n.Add(1)
			time.Sleep(time.Millisecond)
		}
	}()

	v, err := WaitForState(context.Background(), n.Load, func(v int64) bool { return v >= 5 }, 5*time.Second, time.Millisecond)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, v, int64(5))
}

func TestWaitForState_TimeoutReturnsZero(t *testing.T) {
	t.Parallel()
	v, err := WaitForState(context.Background(), func() string { return "nope" },
		func(s string) bool { return s == "yes" }, 10*time.Millisecond, time.Millisecond)
	require.Error(t, err)
	assert.Empty(t, v)
}
