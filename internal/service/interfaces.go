package service

import (
	"context"

	"github.com/MKhiriev/go-ref-sync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/service_mock.go -package=mock

// CredentialProvider supplies the credentials used to stamp outgoing
// requests. The second return value is false while the user has not
// configured an API key.
type CredentialProvider interface {
	CurrentCredentials() (models.Credentials, bool)
}

// SyncEngine is the client-facing contract of the synchronization engine.
// Every mutating call applies the change to the local store first and then
// queues the matching server request; nothing is sent until RunSyncCycle.
type SyncEngine interface {
	// EnqueueUserEdit saves a locally edited item or attachment and queues
	// the request that uploads it. An entity without a key is treated as a
	// creation and receives a placeholder key, which is written back into e.
	// An edit to an entity whose previous upload is waiting on conflict
	// resolution is only saved locally.
	EnqueueUserEdit(ctx context.Context, e models.Entity) error

	// EnqueueDeletion removes the entity locally. Entities the server has
	// never seen are simply dropped; others leave a deletion record and a
	// queued delete request guarded by the last known entity tag.
	EnqueueDeletion(ctx context.Context, ref models.EntityRef) error

	// AddToCollection records the membership locally and queues it for the
	// server. Memberships of items still awaiting creation are sent once the
	// server has assigned the item its key.
	AddToCollection(ctx context.Context, collectionKey, itemKey string) error

	// RemoveFromCollection is the inverse of AddToCollection.
	RemoveFromCollection(ctx context.Context, collectionKey, itemKey string) error

	// RequestFullSync queues a listing of all collections and of the
	// library's item keys.
	RequestFullSync(ctx context.Context) error

	// ReconfirmEdit resolves a conflict in favour of the local copy: the
	// conflicted request is dropped and the entity is re-fetched to learn
	// the current entity tag, after which the local content is uploaded again.
	ReconfirmEdit(ctx context.Context, ref models.EntityRef) error

	// DiscardLocalEdit resolves a conflict in favour of the server copy,
	// which overwrites the local entity once fetched.
	DiscardLocalEdit(ctx context.Context, ref models.EntityRef) error

	// RunSyncCycle drains the queue once. See [Dispatcher.RunCycle].
	RunSyncCycle(ctx context.Context) (models.SyncResult, error)

	// QueuedRequests lists every request still held in the queue, oldest first.
	QueuedRequests(ctx context.Context) ([]*models.SyncRequest, error)

	// Stop makes a running cycle return after the in-flight request; Resume
	// allows cycles again.
	Stop()
	Resume()

	// Events delivers engine notifications. Slow readers lose events rather
	// than blocking the engine.
	Events() <-chan models.Event

	// Wake fires after local changes were queued.
	Wake() <-chan struct{}
}
