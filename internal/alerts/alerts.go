// Package alerts notifies operators when the oldest pending backend task
// has been waiting too long.
package alerts

import (
	"context"
	"fmt"
	"html"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"crmintctl/internal/eventbus"
	"crmintctl/internal/tasksinfo"
	"crmintctl/pkg/logx"
)

const (
	DefaultStaleAfter = time.Hour
	DefaultCooldown   = 30 * time.Minute
)

type Config struct {
	StaleAfter time.Duration
	Cooldown   time.Duration
	RatePerSec int
}

func (c Config) normalized() Config {
	if c.StaleAfter <= 0 {
		c.StaleAfter = DefaultStaleAfter
	}
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 1
	}
	return c
}

type Options struct {
	Log logx.Logger
	Now func() time.Time
}

// Alerter turns tasks info snapshots into stale-queue alerts. It sends at
// most one alert per cooldown while the queue stays stale, and one recovery
// message when it clears.
type Alerter struct {
	sender Sender
	log    logx.Logger
	now    func() time.Time

	mu       sync.Mutex
	cfg      Config
	limiter  *rate.Limiter
	firing   bool
	lastSent time.Time
}

func New(sender Sender, cfg Config, opt Options) *Alerter {
	if opt.Log.IsZero() {
		opt.Log = logx.Nop()
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	cfg = cfg.normalized()
	return &Alerter{
		sender:  sender,
		log:     opt.Log.With(logx.String("comp", "alerts")),
		now:     opt.Now,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

func (a *Alerter) Apply(cfg Config) {
	cfg = cfg.normalized()
	a.mu.Lock()
	defer a.mu.Unlock()
	if cfg.RatePerSec != a.cfg.RatePerSec {
		a.limiter.SetLimit(rate.Limit(cfg.RatePerSec))
		a.limiter.SetBurst(cfg.RatePerSec)
	}
	a.cfg = cfg
}

// Run consumes tasks info updates from bus until ctx is done.
func (a *Alerter) Run(ctx context.Context, bus eventbus.Bus) error {
	ch, unsub := bus.Subscribe(16, eventbus.TasksInfoUpdated)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			snap, ok := e.Data.(tasksinfo.Snapshot)
			if !ok {
				continue
			}
			if _, err := a.Handle(ctx, snap); err != nil {
				a.log.Warn("stale task alert failed", logx.Err(err))
			}
		}
	}
}

// Handle evaluates one snapshot and reports whether a message was sent.
func (a *Alerter) Handle(ctx context.Context, snap tasksinfo.Snapshot) (bool, error) {
	now := a.now()

	a.mu.Lock()
	cfg := a.cfg
	age, has := snap.Age(now)
	stale := has && age >= cfg.StaleAfter
	var text string
	switch {
	case stale && (!a.firing || now.Sub(a.lastSent) >= cfg.Cooldown):
		text = staleMessage(snap, age, cfg.StaleAfter)
	case !stale && a.firing:
		text = "✅ Backend task queue is back to normal."
	default:
		a.mu.Unlock()
		return false, nil
	}
	a.mu.Unlock()

	if err := a.limiter.Wait(ctx); err != nil {
		return false, err
	}
	if err := a.sender.Send(ctx, text); err != nil {
		return false, err
	}

	a.mu.Lock()
	a.firing = stale
	a.lastSent = now
	a.mu.Unlock()
	a.log.Info("stale task alert sent", logx.Bool("stale", stale), logx.Duration("age", age))
	return true, nil
}

func staleMessage(snap tasksinfo.Snapshot, age, threshold time.Duration) string {
	since := snap.TimeSinceOldest
	if since == "" {
		since = age.Round(time.Second).String()
	}
	oldest := ""
	if snap.OldestTaskTime != nil {
		oldest = humanize.Time(*snap.OldestTaskTime)
	}
	return fmt.Sprintf(
		"⚠️ <b>Backend tasks are stale</b>\nOldest task has waited <b>%s</b> (queued %s, threshold %s).\nRunning tasks: %s",
		html.EscapeString(since),
		html.EscapeString(oldest),
		threshold,
		humanize.Comma(int64(snap.RunningTasksCount)),
	)
}
