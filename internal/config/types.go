// Package config loads and watches the smmaster configuration file.
//
// The file is YAML (or plain JSON); YAML is coerced to JSON and decoded
// strictly, so typos in section or field names fail loudly at startup
// instead of silently running with defaults. All durations are Go duration
// strings ("10s", "1m", "24h").
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	VK        VKConfig        `json:"vk"`
	Storage   StorageConfig   `json:"storage"`
	Logging   LoggingConfig   `json:"logging"`
	Publisher PublisherConfig `json:"publisher"`
	Session   SessionConfig   `json:"session,omitempty"`
	Display   DisplayConfig   `json:"display,omitempty"`
}

type TelegramConfig struct {
	// Token may be left empty in the file and provided via
	// SMMASTER_TELEGRAM_TOKEN instead.
	Token string `json:"token"`

	// ChannelID is the broadcast channel (usually a -100... id).
	ChannelID int64 `json:"channel_id"`

	PollTimeout string `json:"poll_timeout,omitempty"` // default "10s"
}

type VKConfig struct {
	// Token may come from SMMASTER_VK_TOKEN instead.
	Token      string  `json:"token"`
	GroupID    int64   `json:"group_id"`
	AlbumTitle string  `json:"album_title,omitempty"`
	RatePerSec float64 `json:"rate_per_sec,omitempty"` // default 1
}

type StorageConfig struct {
	Driver      string `json:"driver"` // "sqlite" | "memory"
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type LoggingConfig struct {
	Level   string         `json:"level,omitempty"` // default "info"
	Console bool           `json:"console"`
	File    FileSinkConfig `json:"file,omitempty"`
}

type FileSinkConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type PublisherConfig struct {
	Interval    string `json:"interval,omitempty"`     // default "10s"
	CallTimeout string `json:"call_timeout,omitempty"` // default "30s"
}

type SessionConfig struct {
	TTL       string `json:"ttl,omitempty"`        // default "24h"
	SweepSpec string `json:"sweep_spec,omitempty"` // cron spec, default "0 4 * * *"
}

type DisplayConfig struct {
	// UTCOffsetHours is the fixed offset timestamps are shown in
	// (and publish dates parsed in). Default +3.
	UTCOffsetHours *int `json:"utc_offset_hours,omitempty"`
}

// ApplyEnv fills secrets from the environment when the file leaves them
// empty.
func (c *Config) ApplyEnv() {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		c.Telegram.Token = os.Getenv("SMMASTER_TELEGRAM_TOKEN")
	}
	if strings.TrimSpace(c.VK.Token) == "" {
		c.VK.Token = os.Getenv("SMMASTER_VK_TOKEN")
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required (or SMMASTER_TELEGRAM_TOKEN)")
	}
	if c.Telegram.ChannelID == 0 {
		return fmt.Errorf("telegram.channel_id is required")
	}
	if strings.TrimSpace(c.VK.Token) == "" {
		return fmt.Errorf("vk.token is required (or SMMASTER_VK_TOKEN)")
	}
	if c.VK.GroupID <= 0 {
		return fmt.Errorf("vk.group_id must be a positive group id")
	}
	for _, d := range []struct{ path, raw string }{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"storage.busy_timeout", c.Storage.BusyTimeout},
		{"publisher.interval", c.Publisher.Interval},
		{"publisher.call_timeout", c.Publisher.CallTimeout},
		{"session.ttl", c.Session.TTL},
	} {
		if err := checkDuration(d.path, d.raw); err != nil {
			return err
		}
	}
	return nil
}

// checkDuration rejects malformed or negative duration fields; empty means
// "use the default".
func checkDuration(path, raw string) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return fmt.Errorf("%s: duration must be >= 0", path)
	}
	return nil
}

// durationOr resolves a validated duration field to its effective value.
func durationOr(raw string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// ---- resolved accessors (defaults applied) ----

func (c *Config) PollTimeout() time.Duration {
	return durationOr(c.Telegram.PollTimeout, 10*time.Second)
}

func (c *Config) BusyTimeout() time.Duration {
	return durationOr(c.Storage.BusyTimeout, 5*time.Second)
}

func (c *Config) PublishInterval() time.Duration {
	return durationOr(c.Publisher.Interval, 10*time.Second)
}

func (c *Config) PublishCallTimeout() time.Duration {
	return durationOr(c.Publisher.CallTimeout, 30*time.Second)
}

func (c *Config) SessionTTL() time.Duration {
	return durationOr(c.Session.TTL, 24*time.Hour)
}

func (c *Config) SessionSweepSpec() string {
	if s := strings.TrimSpace(c.Session.SweepSpec); s != "" {
		return s
	}
	return "0 4 * * *"
}

// DisplayLocation is the fixed-offset zone timestamps are rendered in.
func (c *Config) DisplayLocation() *time.Location {
	offset := 3
	if c.Display.UTCOffsetHours != nil {
		offset = *c.Display.UTCOffsetHours
	}
	return time.FixedZone(fmt.Sprintf("UTC%+d", offset), offset*3600)
}

func (c *Config) VKRatePerSec() float64 {
	if c.VK.RatePerSec > 0 {
		return c.VK.RatePerSec
	}
	return 1
}
