package store

import (
	"context"
	"time"

	"github.com/MKhiriev/go-ref-sync/models"
)

// EntityReader is the read side of the entity tables.
type EntityReader interface {
	// Get returns ErrEntityNotFound when key is unknown.
	Get(ctx context.Context, t models.EntityType, key string) (models.Entity, error)
	ListByState(ctx context.Context, t models.EntityType, states ...models.SyncState) ([]models.Entity, error)
	// ListDirty returns the Dirty and New entities of type t.
	ListDirty(ctx context.Context, t models.EntityType) ([]models.Entity, error)
	CollectionMembers(ctx context.Context, collectionKey string) ([]string, error)
	ItemCollections(ctx context.Context, itemKey string) ([]string, error)
	ChildAttachments(ctx context.Context, itemKey string) ([]*models.Attachment, error)
}

// EntityWriter mutates cached entities and their relationships.
type EntityWriter interface {
	Upsert(ctx context.Context, e models.Entity) error
	// Delete removes the entity with its memberships; deleting an item also
	// removes its attachments.
	Delete(ctx context.Context, t models.EntityType, key string) error
	// RenameKey moves an entity to newKey and rewrites every reference to
	// oldKey: memberships, parent links, deletion records and queued requests.
	RenameKey(ctx context.Context, t models.EntityType, oldKey, newKey string) error
	AddMembership(ctx context.Context, collectionKey, itemKey string) error
	RemoveMembership(ctx context.Context, collectionKey, itemKey string) error
}

// DeletionStore tracks local deletions awaiting server confirmation.
type DeletionStore interface {
	RecordDeletion(ctx context.Context, d models.Deletion) error
	ListDeletions(ctx context.Context) ([]models.Deletion, error)
	ClearDeletion(ctx context.Context, t models.EntityType, key string) error
}

// RequestQueue persists sync requests in creation order.
type RequestQueue interface {
	Enqueue(ctx context.Context, reqs ...*models.SyncRequest) error
	// Dequeue returns the oldest request that is not succeeded, not waiting
	// on conflict resolution and not in skip. It does not remove it.
	Dequeue(ctx context.Context, skip ...string) (*models.SyncRequest, error)
	ListQueued(ctx context.Context) ([]*models.SyncRequest, error)
	MarkRequestResult(ctx context.Context, id string, status models.RequestStatus, at time.Time) error
	RemoveRequest(ctx context.Context, id string) error
}

// LocalStore is the durable state of the client.
type LocalStore interface {
	EntityReader
	EntityWriter
	DeletionStore
	RequestQueue

	// InTx runs fn against a store bound to one transaction; fn's error
	// rolls everything back. Nested calls join the outer transaction.
	InTx(ctx context.Context, fn func(tx LocalStore) error) error
}
