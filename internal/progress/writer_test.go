package progress_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-practice/internal/progress"
)

type recorder struct {
	mu  sync.Mutex
	got []string
}

func (r *recorder) save(v string, delay time.Duration) progress.SaveFunc {
	return func(context.Context) error {
		time.Sleep(delay)
		r.mu.Lock()
		r.got = append(r.got, v)
		r.mu.Unlock()
		return nil
	}
}

func (r *recorder) values() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func fastRetry() progress.RetryConfig {
	return progress.RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond, Multiplier: 2}
}

func TestWriterKeepsIssueOrderPerKey(t *testing.T) {
	w := progress.NewWriter(progress.WriterConfig{Retry: fastRetry()})
	rec := &recorder{}

	// the first write is slow; later ones must still land after it
	first := w.SaveNow("k", rec.save("1", 30*time.Millisecond))
	second := w.SaveNow("k", rec.save("2", 0))
	third := w.SaveNow("k", rec.save("3", 0))
	require.NoError(t, <-first)
	require.NoError(t, <-second)
	require.NoError(t, <-third)

	assert.Equal(t, []string{"1", "2", "3"}, rec.values())
	require.NoError(t, w.Close(context.Background()))
}

func TestWriterDebounceCollapses(t *testing.T) {
	w := progress.NewWriter(progress.WriterConfig{Debounce: 20 * time.Millisecond, Retry: fastRetry()})
	rec := &recorder{}

	for _, v := range []string{"a", "b", "c"} {
		w.SaveDebounced("k", rec.save(v, 0))
	}
	assert.True(t, w.Pending("k"))
	assert.Eventually(t, func() bool { return len(rec.values()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Flush(context.Background(), "k"))
	assert.Equal(t, []string{"c"}, rec.values())
	assert.Eventually(t, func() bool { return !w.Pending("k") }, time.Second, 5*time.Millisecond)
}

func TestWriterFlushIssuesPendingWrite(t *testing.T) {
	w := progress.NewWriter(progress.WriterConfig{Debounce: time.Hour, Retry: fastRetry()})
	rec := &recorder{}

	w.SaveDebounced("k", rec.save("late", 0))
	require.NoError(t, w.Flush(context.Background(), "k"))
	assert.Equal(t, []string{"late"}, rec.values())

	assert.NoError(t, w.Flush(context.Background(), "unknown"))
}

func TestWriterSaveNowSupersedesPending(t *testing.T) {
	w := progress.NewWriter(progress.WriterConfig{Debounce: time.Hour, Retry: fastRetry()})
	rec := &recorder{}

	w.SaveDebounced("k", rec.save("stale", 0))
	require.NoError(t, <-w.SaveNow("k", rec.save("fresh", 0)))
	require.NoError(t, w.Close(context.Background()))
	assert.Equal(t, []string{"fresh"}, rec.values())
}

func TestWriterRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	var results []error
	var mu sync.Mutex
	w := progress.NewWriter(progress.WriterConfig{
		Retry: fastRetry(),
		OnResult: func(_ string, err error) {
			mu.Lock()
			results = append(results, err)
			mu.Unlock()
		},
	})

	err := <-w.SaveNow("k", func(context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())

	require.NoError(t, w.Close(context.Background()))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []error{nil}, results)
}

func TestWriterReportsExhaustion(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("disk full")
	w := progress.NewWriter(progress.WriterConfig{Retry: fastRetry()})

	err := <-w.SaveNow("k", func(context.Context) error {
		calls.Add(1)
		return boom
	})
	assert.ErrorIs(t, err, progress.ErrRetriesExhausted)
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 3, calls.Load())
	assert.ErrorIs(t, w.Flush(context.Background(), "k"), boom)
}

func TestWriterDoesNotRetryOwnershipErrors(t *testing.T) {
	var calls atomic.Int32
	w := progress.NewWriter(progress.WriterConfig{Retry: fastRetry()})

	err := <-w.SaveNow("k", func(context.Context) error {
		calls.Add(1)
		return progress.ErrAttemptFinished
	})
	assert.ErrorIs(t, err, progress.ErrAttemptFinished)
	assert.NotErrorIs(t, err, progress.ErrRetriesExhausted)
	assert.EqualValues(t, 1, calls.Load())
}

func TestWriterRejectsAfterClose(t *testing.T) {
	w := progress.NewWriter(progress.WriterConfig{})
	require.NoError(t, w.Close(context.Background()))
	assert.ErrorIs(t, <-w.SaveNow("k", func(context.Context) error { return nil }), progress.ErrWriterClosed)
}
