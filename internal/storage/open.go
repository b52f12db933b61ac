package storage

import (
	"fmt"
	"strings"

	"crmintctl/pkg/logx"
)

// Open initializes the configured store. A disabled store is returned,
// never nil, when the driver is empty or "none".
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver {
	case "", "none":
		return disabled{}, nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "postgres", "postgresql":
		return openPostgres(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", driver)
	}
}

// ValidDriver reports whether Open understands driver.
func ValidDriver(driver string) bool {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "none", "file", "sqlite", "sqlite3", "postgres", "postgresql":
		return true
	}
	return false
}
