// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package client

import (
	"context"

	"github.com/MKhiriev/go-ref-sync/models"
)

// Client is what the commands need from a running client.
type Client interface {
	// Sync runs one sync cycle and reports what it did.
	Sync(ctx context.Context) (models.SyncResult, error)
	// Refresh queues a full listing of the library and syncs.
	Refresh(ctx context.Context) (models.SyncResult, error)
	// Watch syncs in the background, printing events, until ctx is done.
	Watch(ctx context.Context) error
	// PrintQueue writes the request queue as a table.
	PrintQueue(ctx context.Context) error

	CreateItem(ctx context.Context, itemType, title string) (string, error)
	RetitleItem(ctx context.Context, key, title string) error
	Delete(ctx context.Context, ref models.EntityRef) error
	AddToCollection(ctx context.Context, collectionKey, itemKey string) error
	RemoveFromCollection(ctx context.Context, collectionKey, itemKey string) error
	// Resolve settles a conflict on ref by keeping or discarding the local edit.
	Resolve(ctx context.Context, ref models.EntityRef, discard bool) error

	// Close releases the local store.
	Close() error
}
