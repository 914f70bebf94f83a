package service

import (
	"github.com/MKhiriev/go-ref-sync/internal/adapter"
	"github.com/MKhiriev/go-ref-sync/internal/config"
	"github.com/MKhiriev/go-ref-sync/internal/logger"
	"github.com/MKhiriev/go-ref-sync/internal/store"
	"github.com/MKhiriev/go-ref-sync/models"
)

// StaticCredentials serves credentials fixed at start-up.
type StaticCredentials models.Credentials

// CurrentCredentials implements [CredentialProvider]. It reports false
// until both the user id and the API key are set.
func (c StaticCredentials) CurrentCredentials() (models.Credentials, bool) {
	creds := models.Credentials(c)
	return creds, creds.UserID != "" && creds.APIKey != ""
}

type ClientServices struct {
	Engine  SyncEngine
	SyncJob *SyncJob
}

func NewClientServices(localStore store.LocalStore, transport adapter.Transport, cfg *config.ClientConfig, logger *logger.Logger) *ClientServices {
	engine := NewEngine(localStore, transport, StaticCredentials(cfg.Credentials), EngineOptions{
		MaxRequestsPerCycle:  cfg.Workers.MaxRequestsPerCycle,
		RerequestCutoff:      cfg.Workers.RerequestCutoff,
		SyncStaleCollections: cfg.Workers.SyncStaleCollections,
	}, logger)

	return &ClientServices{
		Engine:  engine,
		SyncJob: NewSyncJob(engine, cfg.Workers.SyncInterval, logger),
	}
}
