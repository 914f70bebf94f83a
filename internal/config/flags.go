package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Flag names shared by every command.
const (
	FlagConfig          = "config"
	FlagAddress         = "address"
	FlagUserID          = "user-id"
	FlagAPIKey          = "api-key"
	FlagDSN             = "db"
	FlagRequestTimeout  = "request-timeout"
	FlagSyncInterval    = "sync-interval"
	FlagMaxRequests     = "max-requests"
	FlagRerequestCutoff = "rerequest-cutoff"
	FlagSyncStale       = "sync-stale-collections"
	FlagLogFile         = "log-file"
	FlagLogLevel        = "log-level"
)

// RegisterFlags declares the configuration flags on fs.
//
// Flags:
//
//	-c/--config            JSON or TOML config file
//	-a/--address           API base URL
//	--user-id, --api-key   credentials
//	-d/--db                SQLite database path
//	--request-timeout      per-request timeout (e.g. "30s")
//	--sync-interval        background sync period (e.g. "5m")
//	--max-requests         request limit per sync cycle
//	--rerequest-cutoff     key-diff coverage ratio
//	--sync-stale-collections
//	--log-file, --log-level
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP(FlagConfig, "c", "", "JSON or TOML config file path")
	fs.StringP(FlagAddress, "a", "", "API base URL")
	fs.String(FlagUserID, "", "library user id")
	fs.String(FlagAPIKey, "", "API key")
	fs.StringP(FlagDSN, "d", "", "SQLite database path")
	fs.Duration(FlagRequestTimeout, 0, "request timeout (e.g. 30s)")
	fs.Duration(FlagSyncInterval, 0, "background sync interval (e.g. 5m)")
	fs.Int(FlagMaxRequests, 0, "maximum requests sent per sync cycle")
	fs.Float64(FlagRerequestCutoff, 0, "key-diff coverage ratio below which a scope is fetched again")
	fs.Bool(FlagSyncStale, true, "refresh stale collections with every local-changes batch")
	fs.String(FlagLogFile, "", "log file path (stderr when empty)")
	fs.String(FlagLogLevel, "", "log level")
}

// parseFlags reads flags registered by RegisterFlags. Flags that were not
// declared on fs are skipped; booleans only count when set explicitly.
func parseFlags(fs *pflag.FlagSet) (*StructuredConfig, error) {
	cfg := &StructuredConfig{}

	strs := map[string]*string{
		FlagConfig:   &cfg.ConfigFilePath,
		FlagAddress:  &cfg.Adapter.HTTPAddress,
		FlagUserID:   &cfg.App.UserID,
		FlagAPIKey:   &cfg.App.APIKey,
		FlagDSN:      &cfg.Storage.DB.DSN,
		FlagLogFile:  &cfg.Logging.File,
		FlagLogLevel: &cfg.Logging.Level,
	}
	for name, dst := range strs {
		if fs.Lookup(name) == nil {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			return nil, fmt.Errorf("error reading flag %s: %w", name, err)
		}
		*dst = v
	}

	var err error
	if fs.Lookup(FlagRequestTimeout) != nil {
		if cfg.Adapter.RequestTimeout, err = fs.GetDuration(FlagRequestTimeout); err != nil {
			return nil, fmt.Errorf("error reading flag %s: %w", FlagRequestTimeout, err)
		}
	}
	if fs.Lookup(FlagSyncInterval) != nil {
		if cfg.Workers.SyncInterval, err = fs.GetDuration(FlagSyncInterval); err != nil {
			return nil, fmt.Errorf("error reading flag %s: %w", FlagSyncInterval, err)
		}
	}
	if fs.Lookup(FlagMaxRequests) != nil {
		if cfg.Workers.MaxRequestsPerCycle, err = fs.GetInt(FlagMaxRequests); err != nil {
			return nil, fmt.Errorf("error reading flag %s: %w", FlagMaxRequests, err)
		}
	}
	if fs.Lookup(FlagRerequestCutoff) != nil {
		if cfg.Workers.RerequestCutoff, err = fs.GetFloat64(FlagRerequestCutoff); err != nil {
			return nil, fmt.Errorf("error reading flag %s: %w", FlagRerequestCutoff, err)
		}
	}
	if fs.Changed(FlagSyncStale) {
		v, err := fs.GetBool(FlagSyncStale)
		if err != nil {
			return nil, fmt.Errorf("error reading flag %s: %w", FlagSyncStale, err)
		}
		cfg.Workers.SyncStaleCollections = &v
	}

	return cfg, nil
}
