package config

import "errors"

// Validation errors returned when a configuration group is incomplete or invalid.
var (
	// ErrInvalidAdapterConfigs indicates a missing or malformed base URL or timeout.
	ErrInvalidAdapterConfigs = errors.New("invalid adapter configuration")
	// ErrInvalidStorageConfigs indicates an empty or in-memory DSN.
	ErrInvalidStorageConfigs = errors.New("invalid storage configuration")
	// ErrInvalidWorkerConfigs indicates a bad sync interval, request limit or cutoff.
	ErrInvalidWorkerConfigs = errors.New("invalid worker configuration")
)
