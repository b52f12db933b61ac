package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"crmintctl/internal/storage"
	"crmintctl/pkg/logx"
)

// Validate checks the whole config and returns every problem found.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	raw := strings.TrimSpace(c.Backend.BaseURL)
	if raw == "" {
		add(errors.New("backend.base_url is required"))
	} else if u, err := url.Parse(raw); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add(fmt.Errorf("backend.base_url: %q is not an http(s) URL", raw))
	}
	_, err := ParseDurationField("backend.timeout", c.Backend.Timeout)
	add(err)
	if c.Backend.RatePerSec < 0 {
		add(errors.New("backend.rate_per_sec must be >= 0"))
	}

	if c.Logging.Level != "" && !logx.ValidLevel(c.Logging.Level) {
		add(fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}

	if d, err := ParseDurationField("poller.interval", c.Poller.Interval); err != nil {
		add(err)
	} else if d > 0 && d < time.Second {
		add(fmt.Errorf("poller.interval must be at least 1s, got %s", d))
	}

	if tz := strings.TrimSpace(c.Display.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add(fmt.Errorf("display.timezone: %w", err))
		}
	}

	if c.Storage != nil {
		if !storage.ValidDriver(c.Storage.Driver) {
			add(fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
		}
		_, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout)
		add(err)
	}

	if c.Alerts.Enabled {
		if strings.TrimSpace(c.Alerts.Token) == "" {
			add(errors.New("alerts.token is required when alerts are enabled"))
		}
		if c.Alerts.ChatID == 0 {
			add(errors.New("alerts.chat_id is required when alerts are enabled"))
		}
	}
	_, err = ParseDurationField("alerts.stale_after", c.Alerts.StaleAfter)
	add(err)
	_, err = ParseDurationField("alerts.cooldown", c.Alerts.Cooldown)
	add(err)

	for _, f := range []struct{ path, raw string }{
		{"debug.read_timeout", c.Debug.ReadTimeout},
		{"debug.write_timeout", c.Debug.WriteTimeout},
		{"debug.idle_timeout", c.Debug.IdleTimeout},
	} {
		_, err := ParseDurationField(f.path, f.raw)
		add(err)
	}

	return errors.Join(errs...)
}

// Location resolves display.timezone; empty means time.Local.
func (c *Config) Location() *time.Location {
	tz := strings.TrimSpace(c.Display.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Local
	}
	return loc
}
