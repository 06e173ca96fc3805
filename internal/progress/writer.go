package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

var (
	ErrRetriesExhausted = errors.New("progress: save failed after retries")
	ErrWriterClosed     = errors.New("progress: writer closed")
)

// SaveFunc performs one durable write. It must write a complete snapshot so
// that a later call supersedes every earlier one.
type SaveFunc func(ctx context.Context) error

type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 4, InitialWait: 100 * time.Millisecond, MaxWait: 2 * time.Second, Multiplier: 2}
}

type WriterConfig struct {
	Debounce       time.Duration
	AttemptTimeout time.Duration
	Retry          RetryConfig
	// OnResult observes the outcome of every write, after retries.
	OnResult func(key string, err error)
	Logger   *slog.Logger
}

// Writer applies saves for the same key strictly in the order they were
// issued, one at a time. Different keys proceed independently.
type Writer struct {
	cfg WriterConfig
	log *slog.Logger

	mu     sync.Mutex
	lanes  map[string]*lane
	closed bool
	wg     sync.WaitGroup
}

type job struct {
	fn   SaveFunc // nil for a barrier
	done chan error
}

type lane struct {
	jobs    []job
	running bool
	lastErr error

	pending SaveFunc
	timer   *time.Timer
	gen     uint64
}

func NewWriter(cfg WriterConfig) *Writer {
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.Retry.Multiplier < 1 {
		cfg.Retry.Multiplier = 1
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 10 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Writer{cfg: cfg, log: log, lanes: map[string]*lane{}}
}

// SaveNow queues fn behind any in-flight write for key and drops a pending
// debounced write, which fn supersedes. The returned channel yields the
// write's final error once.
func (w *Writer) SaveNow(key string, fn SaveFunc) <-chan error {
	done := make(chan error, 1)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		done <- ErrWriterClosed
		return done
	}
	l := w.lane(key)
	l.cancelPending()
	w.enqueue(key, l, job{fn: fn, done: done})
	return done
}

// SaveDebounced collapses rapid calls for key into a single write of the last
// fn, issued once the key has been quiet for the debounce window.
func (w *Writer) SaveDebounced(key string, fn SaveFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.cfg.Debounce <= 0 {
		w.enqueue(key, w.lane(key), job{fn: fn})
		return
	}
	l := w.lane(key)
	l.cancelPending()
	l.pending = fn
	gen := l.gen
	l.timer = time.AfterFunc(w.cfg.Debounce, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if l.gen != gen || l.pending == nil {
			return
		}
		fn := l.pending
		l.pending, l.timer = nil, nil
		w.enqueue(key, l, job{fn: fn})
	})
}

// Flush issues any pending debounced write for key and waits until every
// write queued before the call has finished. It returns the error of the
// last write. Writes keep running if ctx ends first.
func (w *Writer) Flush(ctx context.Context, key string) error {
	done := make(chan error, 1)
	w.mu.Lock()
	l, ok := w.lanes[key]
	if !ok {
		w.mu.Unlock()
		return nil
	}
	w.promotePending(key, l)
	w.enqueue(key, l, job{done: done})
	w.mu.Unlock()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes every key and rejects further saves.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for key, l := range w.lanes {
		w.promotePending(key, l)
	}
	w.mu.Unlock()

	idle := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending reports whether key has queued or debounced writes.
func (w *Writer) Pending(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	l, ok := w.lanes[key]
	return ok && (l.running || l.pending != nil || len(l.jobs) > 0)
}

// caller holds w.mu
func (w *Writer) lane(key string) *lane {
	l, ok := w.lanes[key]
	if !ok {
		l = &lane{}
		w.lanes[key] = l
	}
	return l
}

// caller holds w.mu
func (w *Writer) promotePending(key string, l *lane) {
	if l.pending == nil {
		return
	}
	fn := l.pending
	l.cancelPending()
	w.enqueue(key, l, job{fn: fn})
}

// caller holds w.mu
func (w *Writer) enqueue(key string, l *lane, j job) {
	l.jobs = append(l.jobs, j)
	if l.running {
		return
	}
	l.running = true
	w.wg.Add(1)
	go w.drain(key, l)
}

func (l *lane) cancelPending() {
	l.gen++
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.pending = nil
}

func (w *Writer) drain(key string, l *lane) {
	defer w.wg.Done()
	for {
		w.mu.Lock()
		if len(l.jobs) == 0 {
			l.running = false
			// idle lanes go away unless Flush still has a failure to report
			if l.pending == nil && l.lastErr == nil && w.lanes[key] == l {
				delete(w.lanes, key)
			}
			w.mu.Unlock()
			return
		}
		j := l.jobs[0]
		l.jobs = l.jobs[1:]
		if j.fn == nil {
			err := l.lastErr
			w.mu.Unlock()
			j.done <- err
			continue
		}
		w.mu.Unlock()

		err := w.run(key, j.fn)

		w.mu.Lock()
		l.lastErr = err
		w.mu.Unlock()
		if j.done != nil {
			j.done <- err
		}
		if w.cfg.OnResult != nil {
			w.cfg.OnResult(key, err)
		}
	}
}

// run retries fn with exponential backoff and jitter. Each attempt gets its
// own deadline and is detached from the caller so that leaving a session
// never cancels a save.
func (w *Writer) run(key string, fn SaveFunc) error {
	var lastErr error
	for attempt := range w.cfg.Retry.MaxAttempts {
		ctx, cancel := context.WithTimeout(context.Background(), w.cfg.AttemptTimeout)
		err := fn(ctx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return err
		}
		if attempt == w.cfg.Retry.MaxAttempts-1 {
			break
		}
		wait := w.backoff(attempt)
		w.log.Warn("save failed; retrying", "key", key, "attempt", attempt+1, "wait", wait, "error", err)
		time.Sleep(wait)
	}
	w.log.Error("save failed", "key", key, "attempts", w.cfg.Retry.MaxAttempts, "error", lastErr)
	return fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr)
}

func (w *Writer) backoff(attempt int) time.Duration {
	c := w.cfg.Retry
	wait := float64(c.InitialWait) * math.Pow(c.Multiplier, float64(attempt))
	if c.MaxWait > 0 && wait > float64(c.MaxWait) {
		wait = float64(c.MaxWait)
	}
	// ±20% jitter
	wait += wait * 0.2 * (2*rand.Float64() - 1)
	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}

// retryable reports whether err is a transient storage failure. Ownership and
// state conflicts never heal by retrying.
func retryable(err error) bool {
	switch {
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrAttemptFinished), errors.Is(err, ErrNotFound):
		return false
	case errors.Is(err, context.Canceled):
		return false
	}
	return true
}
