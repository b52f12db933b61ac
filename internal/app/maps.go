package app

import (
	"strings"
	"time"

	"crmintctl/internal/alerts"
	"crmintctl/internal/backend"
	"crmintctl/internal/config"
	"crmintctl/internal/debugsrv"
	"crmintctl/internal/storage"
	"crmintctl/internal/tasksinfo"
	"crmintctl/pkg/logx"
)

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapBackend(cfg *config.Config) (backend.Config, error) {
	timeout, err := config.ParseDurationOrDefault("backend.timeout", cfg.Backend.Timeout, 15*time.Second)
	if err != nil {
		return backend.Config{}, err
	}
	return backend.Config{
		BaseURL:    cfg.Backend.BaseURL,
		Token:      cfg.Backend.Token,
		Timeout:    timeout,
		RatePerSec: cfg.Backend.RatePerSec,
		UserAgent:  "crmintctl/" + Version,
	}, nil
}

func mapPoller(cfg *config.Config) (tasksinfo.Config, error) {
	interval, err := config.ParseDurationOrDefault("poller.interval", cfg.Poller.Interval, tasksinfo.DefaultInterval)
	if err != nil {
		return tasksinfo.Config{}, err
	}
	return tasksinfo.Config{Interval: interval, TimeZone: displayZone(cfg)}, nil
}

func displayZone(cfg *config.Config) string {
	if tz := strings.TrimSpace(cfg.Display.Timezone); tz != "" {
		return tz
	}
	return "Local"
}

func mapStorage(cfg *config.Config) (storage.Config, error) {
	if cfg.Storage == nil {
		return storage.Config{}, nil
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		DSN:         cfg.Storage.DSN,
		BusyTimeout: busy,
	}, nil
}

func mapAlerts(cfg *config.Config) (alerts.Config, error) {
	stale, err := config.ParseDurationOrDefault("alerts.stale_after", cfg.Alerts.StaleAfter, alerts.DefaultStaleAfter)
	if err != nil {
		return alerts.Config{}, err
	}
	cooldown, err := config.ParseDurationOrDefault("alerts.cooldown", cfg.Alerts.Cooldown, alerts.DefaultCooldown)
	if err != nil {
		return alerts.Config{}, err
	}
	return alerts.Config{StaleAfter: stale, Cooldown: cooldown, RatePerSec: cfg.Alerts.RatePerSec}, nil
}

func mapDebug(cfg *config.Config) (debugsrv.Config, error) {
	d := cfg.Debug
	read, err := config.ParseDurationField("debug.read_timeout", d.ReadTimeout)
	if err != nil {
		return debugsrv.Config{}, err
	}
	write, err := config.ParseDurationField("debug.write_timeout", d.WriteTimeout)
	if err != nil {
		return debugsrv.Config{}, err
	}
	idle, err := config.ParseDurationOrDefault("debug.idle_timeout", d.IdleTimeout, time.Minute)
	if err != nil {
		return debugsrv.Config{}, err
	}
	return debugsrv.Config{
		Enabled:       d.Enabled,
		Addr:          d.Addr,
		Token:         d.Token,
		AllowInsecure: d.AllowInsecure,
		ReadTimeout:   read,
		WriteTimeout:  write,
		IdleTimeout:   idle,
	}, nil
}
