package eventloop_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/tapestry/internal/eventloop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func start(t *testing.T, l *eventloop.Loop) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return cancel
}

func TestLoop_RunsInOrder(t *testing.T) {
	l := eventloop.New()
	start(t, l)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	require.NoError(t, l.Do(context.Background(), func() error { return nil }))

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoop_DoReturnsError(t *testing.T) {
	l := eventloop.New()
	start(t, l)

	boom := errors.New("boom")
	assert.ErrorIs(t, l.Do(context.Background(), func() error { return boom }), boom)
}

func TestLoop_SurvivesPanic(t *testing.T) {
	l := eventloop.New()
	start(t, l)

	l.Post(func() { panic("bad handler") })
	ran := false
	require.NoError(t, l.Do(context.Background(), func() error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}

func TestLoop_Timers(t *testing.T) {
	l := eventloop.New()
	var ticks atomic.Int32
	l.Every("tick", 5*time.Millisecond, func() { ticks.Add(1) })
	l.Every("disabled", 0, func() { t.Error("disabled timer fired") })
	start(t, l)

	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestLoop_Stopped(t *testing.T) {
	l := eventloop.New()
	cancel := start(t, l)
	cancel()
	<-l.Done()

	assert.False(t, l.Post(func() {}))
	assert.ErrorIs(t, l.Do(context.Background(), func() error { return nil }), eventloop.ErrStopped)
}

func TestLoop_DoHonoursContext(t *testing.T) {
	l := eventloop.New()
	start(t, l)

	release := make(chan struct{})
	l.Post(func() { <-release })
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Do(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
