package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// fileConfig mirrors [StructuredConfig] for JSON and TOML files.
type fileConfig struct {
	App struct {
		UserID string `json:"user_id" toml:"user_id"`
		APIKey string `json:"api_key" toml:"api_key"`
	} `json:"app" toml:"app"`

	Adapter struct {
		HTTPAddress    string   `json:"http_address" toml:"http_address"`
		RequestTimeout Duration `json:"request_timeout" toml:"request_timeout"`
	} `json:"adapter" toml:"adapter"`

	Storage struct {
		DB struct {
			DSN string `json:"dsn" toml:"dsn"`
		} `json:"db" toml:"db"`
	} `json:"storage" toml:"storage"`

	Workers struct {
		SyncInterval         Duration `json:"sync_interval" toml:"sync_interval"`
		MaxRequestsPerCycle  int      `json:"max_requests_per_cycle" toml:"max_requests_per_cycle"`
		RerequestCutoff      float64  `json:"rerequest_cutoff" toml:"rerequest_cutoff"`
		SyncStaleCollections *bool    `json:"sync_stale_collections" toml:"sync_stale_collections"`
	} `json:"workers" toml:"workers"`

	Logging struct {
		File       string `json:"file" toml:"file"`
		Level      string `json:"level" toml:"level"`
		MaxSizeMB  int    `json:"max_size_mb" toml:"max_size_mb"`
		MaxBackups int    `json:"max_backups" toml:"max_backups"`
		MaxAgeDays int    `json:"max_age_days" toml:"max_age_days"`
	} `json:"logging" toml:"logging"`
}

// parseFile decodes path as TOML when it has a .toml extension and as JSON otherwise.
func parseFile(path string) (*StructuredConfig, error) {
	var fc fileConfig

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			return nil, fmt.Errorf("error decoding toml configs: %w", err)
		}
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("error reading a json file: %w", err)
		}
		defer f.Close()

		if err = json.NewDecoder(f).Decode(&fc); err != nil {
			return nil, fmt.Errorf("error decoding json configs: %w", err)
		}
	}

	return &StructuredConfig{
		App: App{UserID: fc.App.UserID, APIKey: fc.App.APIKey},
		Adapter: Adapter{
			HTTPAddress:    fc.Adapter.HTTPAddress,
			RequestTimeout: time.Duration(fc.Adapter.RequestTimeout),
		},
		Storage: Storage{DB: DB{DSN: fc.Storage.DB.DSN}},
		Workers: Workers{
			SyncInterval:         time.Duration(fc.Workers.SyncInterval),
			MaxRequestsPerCycle:  fc.Workers.MaxRequestsPerCycle,
			RerequestCutoff:      fc.Workers.RerequestCutoff,
			SyncStaleCollections: fc.Workers.SyncStaleCollections,
		},
		Logging: Logging{
			File:       fc.Logging.File,
			Level:      fc.Logging.Level,
			MaxSizeMB:  fc.Logging.MaxSizeMB,
			MaxBackups: fc.Logging.MaxBackups,
			MaxAgeDays: fc.Logging.MaxAgeDays,
		},
	}, nil
}

// Duration accepts "30s"-style strings or integer nanoseconds in JSON and TOML.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		return d.UnmarshalText([]byte(value))
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
}

func (d *Duration) UnmarshalText(text []byte) error {
	tmp, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(tmp)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
