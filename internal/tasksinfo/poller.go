// Package tasksinfo polls the backend task queue on a fixed interval and
// keeps a display-ready snapshot of it.
package tasksinfo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"crmintctl/internal/eventbus"
	"crmintctl/internal/model"
	"crmintctl/pkg/logx"
	"crmintctl/pkg/timefmt"
)

const DefaultInterval = 30 * time.Second

var (
	// ErrInFlight is returned by Refresh while another fetch runs.
	ErrInFlight = errors.New("tasks info fetch already in flight")
	ErrStopped  = errors.New("tasks info poller not running")
)

// Fetcher is the backend call the poller drives.
type Fetcher interface {
	GetTasksInfo(ctx context.Context) (model.TasksInfo, error)
}

type Config struct {
	Interval time.Duration
	// TimeZone is the IANA zone used for the zone label ("Local" by default).
	TimeZone string
}

func (c Config) normalized() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.TimeZone == "" {
		c.TimeZone = "Local"
	}
	return c
}

// Snapshot is the last poll result. The zero value is the "none" state:
// no oldest task, no labels, zero running tasks.
type Snapshot struct {
	OldestTaskTime    *time.Time `json:"oldest_task_time"`
	TimeZone          string     `json:"time_zone,omitempty"`
	TimeSinceOldest   string     `json:"time_since_oldest_task,omitempty"`
	RunningTasksCount int        `json:"running_tasks_count"`
	UpdatedAt         time.Time  `json:"updated_at"`
	LastError         string     `json:"last_error,omitempty"`
}

// Age returns how long the oldest task has been waiting at now.
func (s Snapshot) Age(now time.Time) (time.Duration, bool) {
	if s.OldestTaskTime == nil {
		return 0, false
	}
	d := now.Sub(*s.OldestTaskTime)
	if d < 0 {
		d = 0
	}
	return d, true
}

// BuildSnapshot turns a fetch result into a Snapshot. A failed fetch yields
// the "none" state with LastError set.
func BuildSnapshot(info model.TasksInfo, err error, zone string, now time.Time) Snapshot {
	snap := Snapshot{UpdatedAt: now}
	if err != nil {
		snap.LastError = err.Error()
		return snap
	}
	if oldest, ok := info.Oldest(); ok {
		snap.OldestTaskTime = &oldest
		snap.TimeZone = timefmt.ShortTimeZoneLabel(zone, now)
		snap.TimeSinceOldest = timefmt.Elapsed(oldest, now)
	}
	snap.RunningTasksCount = info.RunningTasksCount
	return snap
}

type Options struct {
	Bus eventbus.Bus
	Log logx.Logger
	Now func() time.Time
}

type Service struct {
	fetch Fetcher
	bus   eventbus.Bus
	log   logx.Logger
	now   func() time.Time

	inflight atomic.Bool

	mu      sync.Mutex
	cfg     Config
	snap    Snapshot
	running bool
	gen     uint64
	sched   *cron.Cron
	runCtx  context.Context
	cancel  context.CancelFunc
	first   chan struct{}
}

func New(fetch Fetcher, cfg Config, opt Options) *Service {
	if opt.Log.IsZero() {
		opt.Log = logx.Nop()
	}
	if opt.Bus == nil {
		opt.Bus = eventbus.Nop{}
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	return &Service{
		fetch: fetch,
		bus:   opt.Bus,
		log:   opt.Log.With(logx.String("comp", "tasksinfo")),
		now:   opt.Now,
		cfg:   cfg.normalized(),
	}
}

// Start runs one fetch immediately and then one per interval until Stop or
// until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.gen++
	s.running = true

	sched, err := s.newScheduleLocked()
	if err != nil {
		s.cancel()
		s.running = false
		return err
	}
	s.sched = sched
	sched.Start()

	gen := s.gen
	runCtx := s.runCtx
	s.first = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		_ = s.poll(runCtx, gen)
	}(s.first)

	s.log.Info("tasks info poller started", logx.Duration("interval", s.cfg.Interval))
	return nil
}

func (s *Service) newScheduleLocked() (*cron.Cron, error) {
	cl := logx.CronLogger(s.log)
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	gen, runCtx := s.gen, s.runCtx
	spec := "@every " + s.cfg.Interval.String()
	if _, err := c.AddFunc(spec, func() { _ = s.poll(runCtx, gen) }); err != nil {
		return nil, fmt.Errorf("tasks info schedule %q: %w", spec, err)
	}
	return c, nil
}

// Stop cancels the in-flight fetch and stops ticking. No snapshot update or
// event happens after Stop returns.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.gen++
	s.cancel()
	sched, first := s.sched, s.first
	s.sched, s.first = nil, nil
	s.mu.Unlock()

	stopped := sched.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-first:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Info("tasks info poller stopped")
	return nil
}

// Refresh fetches now. It returns ErrInFlight instead of queueing behind a
// running fetch.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrStopped
	}
	gen, runCtx := s.gen, s.runCtx
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(runCtx, cancel)
	defer stop()
	return s.poll(ctx, gen)
}

// Apply updates the configuration. A changed interval reschedules the
// ticker without an extra immediate fetch.
func (s *Service) Apply(cfg Config) error {
	cfg = cfg.normalized()
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.cfg
	s.cfg = cfg
	if !s.running || old.Interval == cfg.Interval {
		return nil
	}
	sched, err := s.newScheduleLocked()
	if err != nil {
		s.cfg = old
		return err
	}
	prev := s.sched
	s.sched = sched
	sched.Start()
	// Jobs still running on the old scheduler are guarded by inflight.
	prev.Stop()
	s.log.Info("tasks info interval changed",
		logx.Duration("from", old.Interval),
		logx.Duration("to", cfg.Interval),
	)
	return nil
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *Service) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Interval
}

func (s *Service) poll(ctx context.Context, gen uint64) error {
	if !s.inflight.CompareAndSwap(false, true) {
		s.log.Debug("tasks info fetch skipped, previous still in flight")
		return ErrInFlight
	}
	defer s.inflight.Store(false)

	info, err := s.fetch.GetTasksInfo(ctx)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.gen != gen {
		return ErrStopped
	}
	s.snap = BuildSnapshot(info, err, s.cfg.TimeZone, now)
	if err != nil {
		s.log.Warn("fetch tasks info failed", logx.Err(err))
		s.bus.Publish(eventbus.Event{Type: eventbus.TasksInfoFailed, Time: now, Err: err, Data: s.snap})
		return err
	}
	s.log.Debug("tasks info updated",
		logx.Int("running", s.snap.RunningTasksCount),
		logx.String("since_oldest", s.snap.TimeSinceOldest),
	)
	s.bus.Publish(eventbus.Event{Type: eventbus.TasksInfoUpdated, Time: now, Data: s.snap})
	return nil
}
