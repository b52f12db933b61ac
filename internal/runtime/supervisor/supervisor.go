package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"crmintctl/pkg/logx"
)

// Supervisor runs named goroutines under a shared context with panic
// recovery and a graceful, deadline-aware Wait.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    logx.Logger
	wg     sync.WaitGroup

	mu       sync.Mutex
	firstErr error
	tasks    map[string]*TaskStats
}

// TaskStats is a best-effort view of one named goroutine.
type TaskStats struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	Restarts  int       `json:"restarts"`
	Panics    int       `json:"panics"`
	StartedAt time.Time `json:"started_at"`
	LastErr   string    `json:"last_err,omitempty"`
}

func New(parent context.Context, log logx.Logger) *Supervisor {
	if log.IsZero() {
		log = logx.Nop()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Supervisor{ctx: ctx, cancel: cancel, log: log, tasks: map[string]*TaskStats{}}
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Cancel cancels the shared context without waiting.
func (s *Supervisor) Cancel() { s.cancel() }

// Err returns the first error a goroutine exited with.
func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstErr
}

// Tasks returns stats sorted by name.
func (s *Supervisor) Tasks() []TaskStats {
	s.mu.Lock()
	out := make([]TaskStats, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Supervisor) note(name string, fn func(t *TaskStats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tasks[name]
	if t == nil {
		t = &TaskStats{Name: name}
		s.tasks[name] = t
	}
	fn(t)
}

func (s *Supervisor) fail(name string, err error) {
	s.note(name, func(t *TaskStats) { t.LastErr = err.Error() })
	s.mu.Lock()
	if s.firstErr == nil {
		s.firstErr = err
	}
	s.mu.Unlock()
}

// runSafe calls fn and turns a panic into an error.
func (s *Supervisor) runSafe(name string, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.note(name, func(t *TaskStats) { t.Panics++ })
			s.log.Error("goroutine panicked",
				logx.String("name", name),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(s.ctx)
}

// Go runs fn once. A non-nil, non-cancellation error is recorded.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.note(name, func(t *TaskStats) { t.Running = true; t.StartedAt = time.Now() })
		defer s.note(name, func(t *TaskStats) { t.Running = false })

		s.log.Debug("goroutine started", logx.String("name", name))
		err := s.runSafe(name, fn)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.fail(name, fmt.Errorf("%s: %w", name, err))
		}
		s.log.Debug("goroutine stopped", logx.String("name", name))
	}()
}

// GoRestart runs fn and restarts it after errors or panics with jittered
// exponential backoff (min..max) until the context is cancelled. A nil
// return stops the loop.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, min, max time.Duration) {
	if min <= 0 {
		min = 250 * time.Millisecond
	}
	if max < min {
		max = min
	}
	s.Go(name, func(ctx context.Context) error {
		backoff := min
		for {
			started := time.Now()
			err := s.runSafe(name, fn)
			if ctx.Err() != nil || err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			s.fail(name, fmt.Errorf("%s: %w", name, err))
			s.note(name, func(t *TaskStats) { t.Restarts++ })

			if time.Since(started) >= 30*time.Second {
				backoff = min
			}
			wait := backoff + time.Duration(time.Now().UnixNano()%int64(backoff/4+1))
			s.log.Warn("goroutine failed; restarting",
				logx.String("name", name),
				logx.Err(err),
				logx.Duration("backoff", wait),
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			if backoff *= 2; backoff > max {
				backoff = max
			}
		}
	})
}

// Wait blocks until every goroutine returned or ctx is done.
func (s *Supervisor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels the context and waits.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.cancel()
	return s.Wait(ctx)
}
