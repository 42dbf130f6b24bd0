// Package config loads Tilepad's configuration from the environment via
// viper. All knobs are the ones spec.md §6 enumerates, plus the server-level
// settings the teacher's main.go exposed as flags (port, document size cap,
// broadcast buffering, websocket timeouts, document expiry/cleanup cadence).
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable the server reads at startup.
type Config struct {
	Port            string
	FrontendOrigin  string
	SQLiteURI       string
	ExpiryDays      int
	CleanupInterval time.Duration
	MaxDocumentSize int

	PingInterval time.Duration
	PingTimeout  time.Duration

	MaxEventLog   int
	SessionIdleMS int64
	PathLockTTLMS int64

	BroadcastBufferSize int
	WSReadTimeout       time.Duration
	WSWriteTimeout      time.Duration
}

// Load reads configuration from the environment (with TILEPAD_ prefix support
// as well as the bare spec-named variables for §6 compatibility) and applies
// the spec-mandated defaults for anything unset.
func Load() *Config {
	v := viper.New()
	v.SetEnvPrefix("TILEPAD")
	v.AutomaticEnv()

	// Spec §6 names these bare (no TILEPAD_ prefix); bind them explicitly so
	// both forms work.
	for _, name := range []string{
		"FRONTEND_ORIGIN", "PING_INTERVAL_MS", "PING_TIMEOUT_MS",
		"MAX_EVENT_LOG", "SESSION_IDLE_MS", "PATH_LOCK_TTL_MS",
		"PORT", "SQLITE_URI", "EXPIRY_DAYS", "CLEANUP_INTERVAL_HOURS",
		"MAX_DOCUMENT_SIZE_KB", "WS_READ_TIMEOUT_MINUTES",
		"WS_WRITE_TIMEOUT_SECONDS", "BROADCAST_BUFFER_SIZE",
	} {
		v.BindEnv(name, name)
	}

	v.SetDefault("PORT", "3030")
	v.SetDefault("FRONTEND_ORIGIN", "*")
	v.SetDefault("SQLITE_URI", "")
	v.SetDefault("EXPIRY_DAYS", 7)
	v.SetDefault("CLEANUP_INTERVAL_HOURS", 1)
	v.SetDefault("MAX_DOCUMENT_SIZE_KB", 256)
	v.SetDefault("WS_READ_TIMEOUT_MINUTES", 30)
	v.SetDefault("WS_WRITE_TIMEOUT_SECONDS", 10)
	v.SetDefault("BROADCAST_BUFFER_SIZE", 16)
	v.SetDefault("PING_INTERVAL_MS", 25_000)
	v.SetDefault("PING_TIMEOUT_MS", 60_000)
	v.SetDefault("MAX_EVENT_LOG", 1_000)
	v.SetDefault("SESSION_IDLE_MS", 30_000)
	v.SetDefault("PATH_LOCK_TTL_MS", 60_000)

	return &Config{
		Port:            v.GetString("PORT"),
		FrontendOrigin:  v.GetString("FRONTEND_ORIGIN"),
		SQLiteURI:       v.GetString("SQLITE_URI"),
		ExpiryDays:      v.GetInt("EXPIRY_DAYS"),
		CleanupInterval: time.Duration(v.GetInt("CLEANUP_INTERVAL_HOURS")) * time.Hour,
		MaxDocumentSize: v.GetInt("MAX_DOCUMENT_SIZE_KB") * 1024,

		PingInterval: time.Duration(v.GetInt64("PING_INTERVAL_MS")) * time.Millisecond,
		PingTimeout:  time.Duration(v.GetInt64("PING_TIMEOUT_MS")) * time.Millisecond,

		MaxEventLog:   v.GetInt("MAX_EVENT_LOG"),
		SessionIdleMS: v.GetInt64("SESSION_IDLE_MS"),
		PathLockTTLMS: v.GetInt64("PATH_LOCK_TTL_MS"),

		BroadcastBufferSize: v.GetInt("BROADCAST_BUFFER_SIZE"),
		WSReadTimeout:       time.Duration(v.GetInt("WS_READ_TIMEOUT_MINUTES")) * time.Minute,
		WSWriteTimeout:      time.Duration(v.GetInt("WS_WRITE_TIMEOUT_SECONDS")) * time.Second,
	}
}
