package loop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	l := New(8)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Run(ctx) }()
	t.Cleanup(cancel)
	return l, cancel
}

func TestLoop_RunsTasksInOrder(t *testing.T) {
	l, _ := runLoop(t)

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	require.NoError(t, l.Do(context.Background(), func() {}))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestLoop_AfterFuncRunsOnLoop(t *testing.T) {
	l, _ := runLoop(t)

	fired := make(chan struct{})
	l.AfterFunc(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
}

func TestLoop_StoppedTimerDoesNotRun(t *testing.T) {
	l, _ := runLoop(t)

	var ran atomic.Bool
	timer := l.AfterFunc(20*time.Millisecond, func() { ran.Store(true) })
	assert.True(t, timer.Stop())

	time.Sleep(60 * time.Millisecond)
	require.NoError(t, l.Do(context.Background(), func() {}))
	assert.False(t, ran.Load())
}

func TestLoop_PostAfterStop(t *testing.T) {
	l, cancel := runLoop(t)
	require.NoError(t, l.Do(context.Background(), func() {}))
	cancel()

	assert.Eventually(t, func() bool { return !l.Post(func() {}) }, time.Second, 5*time.Millisecond)
}
