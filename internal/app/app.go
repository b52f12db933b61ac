package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"crmintctl/internal/alerts"
	"crmintctl/internal/backend"
	"crmintctl/internal/config"
	"crmintctl/internal/debugsrv"
	"crmintctl/internal/eventbus"
	"crmintctl/internal/runtime/supervisor"
	"crmintctl/internal/schedule"
	"crmintctl/internal/settings"
	"crmintctl/internal/storage"
	"crmintctl/internal/tasksinfo"
	"crmintctl/pkg/logx"
)

// Version is stamped at build time with -ldflags "-X crmintctl/internal/app.Version=...".
var Version = "dev"

// App owns every long-lived component. One-shot CLI commands use the
// accessors and Close; the watch daemon also calls Start and Stop.
type App struct {
	cfgm *config.Manager
	log  logx.Logger
	logs *logx.Service

	bus     eventbus.Bus
	store   storage.Store
	client  *backend.Client
	session *settings.Session
	eval    *schedule.Evaluator
	poller  *tasksinfo.Service
	debug   *debugsrv.Server

	sup *supervisor.Supervisor

	alertMu     sync.Mutex
	alerter     *alerts.Alerter
	alertCancel context.CancelFunc
}

// NewApp loads the config at cfgPath and wires components. Nothing runs in
// the background until Start.
func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", cfgPath, err)
	}

	logs, root := logx.New(mapLogging(cfg))
	log := root.With(logx.String("comp", "app"))
	cfgm.SetLogger(root.With(logx.String("comp", "config")))

	bc, err := mapBackend(cfg)
	if err != nil {
		return nil, err
	}
	client, err := backend.New(bc, root.With(logx.String("comp", "backend")))
	if err != nil {
		return nil, err
	}

	sc, err := mapStorage(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, root.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	pc, err := mapPoller(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	dc, err := mapDebug(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	bus := eventbus.New()
	a := &App{
		cfgm:   cfgm,
		log:    log,
		logs:   logs,
		bus:    bus,
		store:  store,
		client: client,
		eval:   schedule.New(root.With(logx.String("comp", "schedule"))),
		session: settings.New(client, settings.Options{
			Actor: cfg.Backend.Actor,
			Bus:   bus,
			Audit: store,
			Log:   root,
		}),
		poller: tasksinfo.New(client, pc, tasksinfo.Options{Bus: bus, Log: root}),
	}
	a.debug = debugsrv.New(dc, debugsrv.Sources{
		Tasks:      a.poller.Snapshot,
		Goroutines: a.goroutines,
		Audit:      store,
	}, root)
	return a, nil
}

func (a *App) Config() *config.Config         { return a.cfgm.Get() }
func (a *App) Logger() logx.Logger            { return a.log }
func (a *App) Bus() eventbus.Bus              { return a.bus }
func (a *App) Backend() *backend.Client       { return a.client }
func (a *App) Session() *settings.Session     { return a.session }
func (a *App) Evaluator() *schedule.Evaluator { return a.eval }
func (a *App) Poller() *tasksinfo.Service     { return a.poller }
func (a *App) Store() storage.Store           { return a.store }

// Location is the display zone for labels.
func (a *App) Location() *time.Location { return a.cfgm.Get().Location() }

// Actor names the operator in audit entries.
func (a *App) Actor() string { return a.cfgm.Get().Backend.Actor }

func (a *App) goroutines() []supervisor.TaskStats {
	if a.sup == nil {
		return nil
	}
	return a.sup.Tasks()
}

// Done is closed when the app context is cancelled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start runs the poller, alerts, the debug server and config hot reload.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, a.log)
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapPoller(cfg); err != nil {
			return err
		}
		if _, err := mapAlerts(cfg); err != nil {
			return err
		}
		_, err := mapDebug(cfg)
		return err
	})

	if err := a.poller.Start(a.sup.Context()); err != nil {
		return err
	}
	if err := a.debug.Start(a.sup.Context()); err != nil {
		return fmt.Errorf("debug server: %w", err)
	}
	if err := a.applyAlerts(a.cfgm.Get()); err != nil {
		return err
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				fields := []logx.Field{logx.String("type", e.Type), logx.Time("time", e.Time)}
				if e.Err != nil {
					fields = append(fields, logx.Err(e.Err))
				}
				a.log.Debug("event", fields...)
			}
		}
	})

	sub := a.cfgm.Subscribe(4)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case cfg, ok := <-sub:
				if !ok {
					return nil
				}
				// Keep only the newest of a burst.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							cfg = newer
						}
					default:
						drained = true
					}
				}
				a.reload(c, last, cfg)
				last = cfg
			}
		}
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch, 500*time.Millisecond, 10*time.Second)

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}
	a.log.Info("app started", logx.String("version", Version), logx.String("config", a.cfgm.Path()))
	return nil
}

func (a *App) reload(ctx context.Context, prev, cfg *config.Config) {
	sections := config.ChangedSections(prev, cfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	a.bus.Publish(eventbus.Event{Type: eventbus.ConfigReloaded, Data: sections})

	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(mapLogging(cfg))
		case "poller", "display":
			pc, err := mapPoller(cfg)
			if err != nil {
				a.log.Warn("invalid poller config; keeping previous", logx.Err(err))
				continue
			}
			if err := a.poller.Apply(pc); err != nil {
				a.log.Warn("poller reconfigure failed", logx.Err(err))
			}
		case "alerts":
			if err := a.applyAlerts(cfg); err != nil {
				a.log.Warn("alerts reconfigure failed", logx.Err(err))
			}
		case "debug":
			dc, err := mapDebug(cfg)
			if err != nil {
				a.log.Warn("invalid debug config; keeping previous", logx.Err(err))
				continue
			}
			if err := a.debug.Reconfigure(ctx, dc); err != nil {
				a.log.Warn("debug server reconfigure failed", logx.Err(err))
			}
		case "backend", "storage":
			a.log.Warn(s + " config changed; restart required for changes to take effect")
		}
	}
	a.log.Info("config reloaded", logx.String("changed", strings.Join(sections, ",")))
}

// applyAlerts starts, retunes or stops the stale-task alerter.
func (a *App) applyAlerts(cfg *config.Config) error {
	ac, err := mapAlerts(cfg)
	if err != nil {
		return err
	}
	a.alertMu.Lock()
	defer a.alertMu.Unlock()

	if !cfg.Alerts.Enabled {
		if a.alertCancel != nil {
			a.alertCancel()
			a.alertCancel, a.alerter = nil, nil
			a.log.Info("stale task alerts disabled")
		}
		return nil
	}
	if a.alerter != nil {
		a.alerter.Apply(ac)
		return nil
	}

	sender, err := alerts.NewTelegram(cfg.Alerts.Token, cfg.Alerts.ChatID, cfg.Alerts.ThreadID)
	if err != nil {
		return fmt.Errorf("alerts: %w", err)
	}
	al := alerts.New(sender, ac, alerts.Options{Log: a.log})
	runCtx, cancel := context.WithCancel(a.sup.Context())
	a.alerter, a.alertCancel = al, cancel
	a.sup.Go("alerts", func(context.Context) error { return al.Run(runCtx, a.bus) })
	a.log.Info("stale task alerts enabled", logx.Duration("stale_after", ac.StaleAfter))
	return nil
}

// Stop shuts components down in order, bounding each step.
func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return a.Close()
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	a.log.Info("stopping")
	a.sup.Cancel()

	a.step(ctx, "poller", 3*time.Second, a.poller.Stop)
	a.step(ctx, "debug", 2*time.Second, a.debug.Stop)
	a.step(ctx, "supervisor", 3*time.Second, a.sup.Wait)
	a.log.Info("stopped")
	return a.Close()
}

func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < max {
		max = time.Until(dl)
	}
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()
	if err := fn(stepCtx); err != nil {
		a.log.Warn("stop step error", logx.String("name", name), logx.Err(err), logx.Duration("took", time.Since(start)))
		return
	}
	a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
}

// Close releases the store and log file. Safe after Stop.
func (a *App) Close() error {
	err := a.store.Close()
	_ = a.logs.Close()
	return err
}
