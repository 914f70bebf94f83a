// Package utils holds small helpers shared by the client packages.
package utils

import (
	"github.com/google/uuid"

	"github.com/MKhiriev/go-ref-sync/models"
)

// UUIDGenerator produces time-ordered identifiers for queued requests and
// placeholder keys.
type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// Generate returns a UUIDv7, falling back to a random UUID.
func (g *UUIDGenerator) Generate() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return v7.String()
}

// PlaceholderKey returns a fresh local key for an entity the server has not seen.
func (g *UUIDGenerator) PlaceholderKey() string {
	return models.PlaceholderPrefix + g.Generate()
}
