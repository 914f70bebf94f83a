package store

import "errors"

// Sentinel errors returned by the local store. Callers match them with [errors.Is].
var (
	// ErrEntityNotFound is returned when no row exists for the requested key.
	ErrEntityNotFound = errors.New("entity was not found")

	// ErrUnknownEntityType is returned for entity types without a table.
	ErrUnknownEntityType = errors.New("unknown entity type")

	// ErrQueueEmpty is returned by Dequeue when no request is eligible.
	ErrQueueEmpty = errors.New("sync queue is empty")

	// ErrRequestNotFound is returned when a request id is not queued.
	ErrRequestNotFound = errors.New("sync request was not found")

	// ErrInvalidEntity is returned when an upsert would break the key/tag invariants.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrInvalidRequest is returned when an enqueued request fails validation.
	ErrInvalidRequest = errors.New("invalid sync request")

	// ErrKeyTaken is returned when a rename targets a key that already exists.
	ErrKeyTaken = errors.New("target key already exists")
)

// Low-level database errors wrapped around driver failures.
var (
	ErrBuildingSQLQuery     = errors.New("error building sql query")
	ErrExecutingQuery       = errors.New("error executing sql query")
	ErrBeginningTransaction = errors.New("failed to begin transaction")
	ErrCommitingTransaction = errors.New("failed to commit transaction")
	ErrExecutingStatement   = errors.New("failed to executing statement")
	ErrScanningRow          = errors.New("failed to scan row")
	ErrScanningRows         = errors.New("failed to scan rows")
)
