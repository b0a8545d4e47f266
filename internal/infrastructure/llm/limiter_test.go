package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWindow struct {
	answers []bool
	err     error
	calls   int
}

func (w *stubWindow) Allow(context.Context, string, int, time.Duration) (bool, error) {
	w.calls++
	if w.err != nil {
		return false, w.err
	}
	i := w.calls - 1
	if i >= len(w.answers) {
		return true, nil
	}
	return w.answers[i], nil
}

func TestRequestLimiter_Unlimited(t *testing.T) {
	l := NewRequestLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
}

func TestRequestLimiter_PauseHonoursContext(t *testing.T) {
	l := NewRequestLimiter(0, 0)
	l.Pause(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)
}

func TestRequestLimiter_SharedWindow(t *testing.T) {
	w := &stubWindow{answers: []bool{false, true}}
	l := NewRequestLimiter(600, 10).WithWindow(w, "ratelimit:llm:openai")
	l.pollEvery = time.Millisecond

	require.NoError(t, l.Wait(context.Background()))
	assert.Equal(t, 2, w.calls)
	assert.Equal(t, 600, l.windowLimit)
}

func TestRequestLimiter_SharedWindowUnavailable(t *testing.T) {
	w := &stubWindow{err: errors.New("redis down")}
	l := NewRequestLimiter(600, 10).WithWindow(w, "k")
	require.NoError(t, l.Wait(context.Background()))
}
