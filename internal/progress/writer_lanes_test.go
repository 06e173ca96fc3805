package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (w *Writer) laneCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.lanes)
}

func TestWriterDropsIdleLanes(t *testing.T) {
	w := NewWriter(WriterConfig{
		Debounce: 10 * time.Millisecond,
		Retry:    RetryConfig{MaxAttempts: 1, InitialWait: time.Millisecond},
	})
	ok := func(context.Context) error { return nil }

	for _, key := range []string{"srs:u1:q1", "srs:u1:q2", "practice:u1:B:SEQUENTIAL"} {
		require.NoError(t, <-w.SaveNow(key, ok))
	}
	assert.Eventually(t, func() bool { return w.laneCount() == 0 }, time.Second, time.Millisecond)

	w.SaveDebounced("k", ok)
	assert.Equal(t, 1, w.laneCount())
	require.NoError(t, w.Flush(context.Background(), "k"))
	assert.Eventually(t, func() bool { return w.laneCount() == 0 }, time.Second, time.Millisecond)

	assert.Error(t, <-w.SaveNow("bad", func(context.Context) error { return ErrNotFound }))
	assert.ErrorIs(t, w.Flush(context.Background(), "bad"), ErrNotFound)
	assert.Equal(t, 1, w.laneCount())

	require.NoError(t, <-w.SaveNow("bad", ok))
	assert.Eventually(t, func() bool { return w.laneCount() == 0 }, time.Second, time.Millisecond)
	require.NoError(t, w.Close(context.Background()))
}
