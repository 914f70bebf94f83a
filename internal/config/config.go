// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"time"

	"github.com/spf13/pflag"
)

// StructuredConfig is the merged configuration of the sync client. It is
// filled from a config file, environment variables and command-line flags.
//
// Struct tags:
//   - envPrefix: prefix applied to nested env lookups (caarlos0/env).
//   - env: variable name for scalar fields.
type StructuredConfig struct {
	// App holds account credentials.
	App App `envPrefix:"APP_"`

	// Adapter holds the remote API endpoint settings.
	Adapter Adapter `envPrefix:"ADAPTER_"`

	// Storage holds the local database settings.
	Storage Storage `envPrefix:"STORAGE_"`

	// Workers holds sync engine and background job settings.
	Workers Workers `envPrefix:"WORKERS_"`

	// Logging holds log destination and rotation settings.
	Logging Logging `envPrefix:"LOG_"`

	// ConfigFilePath points to an optional JSON or TOML file.
	// Env: CONFIG, flag: -c / --config
	ConfigFilePath string `env:"CONFIG"`
}

// App holds the credentials stamped on outgoing requests.
type App struct {
	// UserID is the numeric library owner id.
	// Env: APP_USER_ID
	UserID string `env:"USER_ID"`

	// APIKey authorizes requests against the library.
	// Env: APP_API_KEY
	APIKey string `env:"API_KEY"`
}

// Adapter configures the outbound HTTP transport.
type Adapter struct {
	// HTTPAddress is the API base URL, e.g. "https://api.zotero.org".
	// Env: ADAPTER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// RequestTimeout bounds a single request. A timeout surfaces as a
	// transport failure.
	// Env: ADAPTER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// Storage groups persistence settings.
type Storage struct {
	DB DB `envPrefix:"DB_"`
}

// DB holds the SQLite database location.
type DB struct {
	// DSN is the SQLite file path or file: URI.
	// Env: STORAGE_DB_DSN
	DSN string `env:"DSN"`
}

// Workers configures the sync engine.
type Workers struct {
	// SyncInterval is the period of the background sync job.
	// Env: WORKERS_SYNC_INTERVAL
	SyncInterval time.Duration `env:"SYNC_INTERVAL"`

	// MaxRequestsPerCycle stops a runaway cycle.
	// Env: WORKERS_MAX_REQUESTS_PER_CYCLE
	MaxRequestsPerCycle int `env:"MAX_REQUESTS_PER_CYCLE"`

	// RerequestCutoff is the key-diff coverage ratio below which a whole
	// scope is fetched again instead of only the missing keys.
	// Env: WORKERS_REREQUEST_CUTOFF
	RerequestCutoff float64 `env:"REREQUEST_CUTOFF"`

	// SyncStaleCollections adds key-list refreshes of stale collections to
	// each local-changes batch.
	// Env: WORKERS_SYNC_STALE_COLLECTIONS
	SyncStaleCollections *bool `env:"SYNC_STALE_COLLECTIONS"`
}

// Logging configures the client log file.
type Logging struct {
	// Env: LOG_FILE
	File string `env:"FILE"`
	// Env: LOG_LEVEL
	Level string `env:"LEVEL"`
	// Env: LOG_MAX_SIZE_MB
	MaxSizeMB int `env:"MAX_SIZE_MB"`
	// Env: LOG_MAX_BACKUPS
	MaxBackups int `env:"MAX_BACKUPS"`
	// Env: LOG_MAX_AGE_DAYS
	MaxAgeDays int `env:"MAX_AGE_DAYS"`
}

// Defaults used for every field no source sets.
const (
	DefaultHTTPAddress         = "https://api.zotero.org"
	DefaultRequestTimeout      = 30 * time.Second
	DefaultDSN                 = "refsync.db"
	DefaultSyncInterval        = 5 * time.Minute
	DefaultMaxRequestsPerCycle = 500
	DefaultRerequestCutoff     = 0.7
	DefaultLogMaxSizeMB        = 10
	DefaultLogMaxBackups       = 3
	DefaultLogMaxAgeDays       = 28
)

func defaults() *StructuredConfig {
	syncStale := true
	return &StructuredConfig{
		Adapter: Adapter{HTTPAddress: DefaultHTTPAddress, RequestTimeout: DefaultRequestTimeout},
		Storage: Storage{DB: DB{DSN: DefaultDSN}},
		Workers: Workers{
			SyncInterval:         DefaultSyncInterval,
			MaxRequestsPerCycle:  DefaultMaxRequestsPerCycle,
			RerequestCutoff:      DefaultRerequestCutoff,
			SyncStaleCollections: &syncStale,
		},
		Logging: Logging{
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
		},
	}
}

// GetStructuredConfig loads and merges all sources. Precedence, lowest
// first: defaults, config file, environment, flags. The config file path
// is taken from the environment or the flags.
func GetStructuredConfig(fs *pflag.FlagSet) (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags(fs).
		withFile().
		build()
}
