package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/MKhiriev/go-ref-sync/models"
)

// ClientAdapter holds outbound transport settings.
type ClientAdapter struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// ClientDB contains the local database location.
type ClientDB struct {
	DSN string
}

// ClientStorage groups client storage settings.
type ClientStorage struct {
	DB ClientDB
}

// ClientWorkers contains sync engine and background job settings.
type ClientWorkers struct {
	SyncInterval         time.Duration
	MaxRequestsPerCycle  int
	RerequestCutoff      float64
	SyncStaleCollections bool
}

// ClientLogging contains log destination and rotation settings.
type ClientLogging struct {
	File       string
	Level      string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ClientConfig is the validated runtime view of [StructuredConfig].
type ClientConfig struct {
	// Credentials may be empty; commands that talk to the API fail later
	// with a missing-credentials error.
	Credentials models.Credentials
	Adapter     ClientAdapter
	Storage     ClientStorage
	Workers     ClientWorkers
	Logging     ClientLogging
}

// GetClientConfig loads the structured config from all sources and maps it
// into a validated [ClientConfig].
func GetClientConfig(fs *pflag.FlagSet) (*ClientConfig, error) {
	cfg, err := GetStructuredConfig(fs)
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	clientCfg := newClientConfig(cfg)
	return clientCfg, clientCfg.validate()
}

func newClientConfig(cfg *StructuredConfig) *ClientConfig {
	syncStale := cfg.Workers.SyncStaleCollections != nil && *cfg.Workers.SyncStaleCollections

	return &ClientConfig{
		Credentials: models.Credentials{UserID: cfg.App.UserID, APIKey: cfg.App.APIKey},
		Adapter: ClientAdapter{
			BaseURL:        cfg.Adapter.HTTPAddress,
			RequestTimeout: cfg.Adapter.RequestTimeout,
		},
		Storage: ClientStorage{DB: ClientDB{DSN: cfg.Storage.DB.DSN}},
		Workers: ClientWorkers{
			SyncInterval:         cfg.Workers.SyncInterval,
			MaxRequestsPerCycle:  cfg.Workers.MaxRequestsPerCycle,
			RerequestCutoff:      cfg.Workers.RerequestCutoff,
			SyncStaleCollections: syncStale,
		},
		Logging: ClientLogging{
			File:       cfg.Logging.File,
			Level:      cfg.Logging.Level,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
		},
	}
}
