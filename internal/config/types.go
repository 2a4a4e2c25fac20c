package config

// Config is the full application configuration. Files may be JSON or YAML;
// both go through the same strict decoder (unknown fields are rejected).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "15m").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Dispatch DispatchConfig `json:"dispatch"`
	Session  SessionConfig  `json:"session"`
}

type TelegramConfig struct {
	Token string `json:"token"`

	// OwnerUserIDs optionally restricts schedule commands to these users.
	// Empty means everyone.
	OwnerUserIDs []int64 `json:"owner_user_ids,omitempty"`

	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/schedbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// DispatchConfig controls the recurring-dispatch engine.
//
// Defaults (when fields are omitted/zero):
//   - spec: "* * * * *" (every minute)
//   - send_timeout: "10s"
//   - rate_per_sec: 10
type DispatchConfig struct {
	Spec        string `json:"spec,omitempty"`
	SendTimeout string `json:"send_timeout,omitempty"`
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
}

// SessionConfig controls wizard session lifetime.
//
// Defaults: ttl "15m", sweep_interval "1m".
type SessionConfig struct {
	TTL           string `json:"ttl,omitempty"`
	SweepInterval string `json:"sweep_interval,omitempty"`
}
