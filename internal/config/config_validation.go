// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// validate rejects merged configs that cannot be used at all.
func (cfg *StructuredConfig) validate() error {
	if cfg.Workers.RerequestCutoff < 0 || cfg.Workers.RerequestCutoff > 1 {
		return fmt.Errorf("%w: rerequest cutoff %v is outside [0, 1]", ErrInvalidWorkerConfigs, cfg.Workers.RerequestCutoff)
	}

	return nil
}

func (cfg *ClientConfig) validate() error {
	// the queue must survive restarts, so in-memory databases are refused
	if cfg.Storage.DB.DSN == "" || strings.Contains(cfg.Storage.DB.DSN, "memory") {
		return ErrInvalidStorageConfigs
	}

	if cfg.Adapter.RequestTimeout <= 0 {
		return ErrInvalidAdapterConfigs
	}
	u, err := url.Parse(cfg.Adapter.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base url %q", ErrInvalidAdapterConfigs, cfg.Adapter.BaseURL)
	}

	if cfg.Workers.SyncInterval <= 0 || cfg.Workers.MaxRequestsPerCycle <= 0 {
		return ErrInvalidWorkerConfigs
	}
	if cfg.Workers.RerequestCutoff <= 0 || cfg.Workers.RerequestCutoff > 1 {
		return fmt.Errorf("%w: rerequest cutoff %v", ErrInvalidWorkerConfigs, cfg.Workers.RerequestCutoff)
	}

	return nil
}
