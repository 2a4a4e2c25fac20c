package app

import (
	"fmt"
	"strings"
	"time"

	"schedbot/internal/config"
	"schedbot/internal/dispatch"
	"schedbot/internal/storage"
	"schedbot/pkg/logx"
)

// The mapXxxConfig helpers translate the file-level config into component
// configs, validating durations and bounds on the way. The config validator
// runs them all, so a bad hot-reload is rejected before commit.

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	switch driver {
	case "", "sqlite", "sqlite3":
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
	path := strings.TrimSpace(sc.Path)
	if path == "" {
		return storage.Config{}, fmt.Errorf("storage.path is required")
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
}

func mapDispatchConfig(cfg *config.Config) (dispatch.Config, error) {
	dc := cfg.Dispatch
	sendTimeout, err := config.ParseDurationField("dispatch.send_timeout", dc.SendTimeout)
	if err != nil {
		return dispatch.Config{}, err
	}
	if dc.RatePerSec < 0 {
		return dispatch.Config{}, fmt.Errorf("dispatch.rate_per_sec must be >= 0")
	}
	if tz := strings.TrimSpace(dc.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return dispatch.Config{}, fmt.Errorf("dispatch.timezone: invalid %q: %w", tz, err)
		}
	}
	return dispatch.Config{
		Spec:        dc.Spec,
		SendTimeout: sendTimeout,
		RatePerSec:  dc.RatePerSec,
		Timezone:    dc.Timezone,
	}, nil
}

func mapSessionConfig(cfg *config.Config) (ttl, sweep time.Duration, err error) {
	ttl, err = config.ParseDurationField("session.ttl", cfg.Session.TTL)
	if err != nil {
		return 0, 0, err
	}
	sweep, err = config.ParseDurationField("session.sweep_interval", cfg.Session.SweepInterval)
	if err != nil {
		return 0, 0, err
	}
	return ttl, sweep, nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

// validateConfig is the transactional reload gate: a config that fails here
// is never committed or published.
func validateConfig(cfg *config.Config) error {
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if _, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapDispatchConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapSessionConfig(cfg); err != nil {
		return err
	}
	return nil
}
