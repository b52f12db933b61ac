package config

// Config is the crmintctl configuration file (JSON, or YAML by extension).
// Durations are Go duration strings ("500ms", "30s", "1h").
type Config struct {
	Backend BackendConfig  `json:"backend"`
	Logging LoggingConfig  `json:"logging"`
	Poller  PollerConfig   `json:"poller"`
	Display DisplayConfig  `json:"display"`
	Storage *StorageConfig `json:"storage,omitempty"`
	Alerts  AlertsConfig   `json:"alerts"`
	Debug   DebugConfig    `json:"debug"`
}

type BackendConfig struct {
	BaseURL string `json:"base_url"`
	// Token is sent as a bearer token (do not log).
	Token      string `json:"token,omitempty"`
	Timeout    string `json:"timeout,omitempty"` // default "15s"
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	// Actor names the operator in audit entries.
	Actor string `json:"actor,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type PollerConfig struct {
	// Interval between tasks info fetches; default "30s", minimum "1s".
	Interval string `json:"interval,omitempty"`
}

type DisplayConfig struct {
	// Timezone (IANA name) used for schedule labels and the tasks zone label.
	// Empty means the host's local zone.
	Timezone string `json:"timezone,omitempty"`
}

// StorageConfig controls the audit store.
//
//	"storage": { "driver": "sqlite", "path": "./crmintctl.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"` // postgres (do not log)
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// AlertsConfig controls the Telegram stale-task alert.
type AlertsConfig struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token,omitempty"` // do not log
	ChatID     int64  `json:"chat_id,omitempty"`
	ThreadID   int    `json:"thread_id,omitempty"`
	StaleAfter string `json:"stale_after,omitempty"` // default "1h"
	Cooldown   string `json:"cooldown,omitempty"`    // default "30m"
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// DebugConfig controls the optional status/pprof HTTP server.
//
// Prefer a loopback address. A non-loopback address needs a token or an
// explicit allow_insecure.
type DebugConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default "127.0.0.1:6060"
	Token         string `json:"token,omitempty"` // do not log
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}
