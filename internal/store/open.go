package store

import (
	"fmt"
	"strings"
	"time"
)

// Config selects and tunes the persistence driver.
type Config struct {
	Driver      string // "sqlite" | "memory"
	Path        string // sqlite file path
	BusyTimeout time.Duration
}

// Open constructs the configured driver.
func Open(cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite":
		path := strings.TrimSpace(cfg.Path)
		if path == "" {
			path = "./smmaster.db"
		}
		return OpenSQLite(path, cfg.BusyTimeout)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
