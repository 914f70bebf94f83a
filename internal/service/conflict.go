package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/MKhiriev/go-ref-sync/internal/logger"
	"github.com/MKhiriev/go-ref-sync/internal/store"
	"github.com/MKhiriev/go-ref-sync/models"
)

// conflictResolver handles failed preconditions. It never retries on its
// own and never touches the entity's tag or state; the user decides.
type conflictResolver struct {
	store    store.LocalStore
	requests *requestBuilder
	events   *eventBus
	logger   *logger.Logger
}

func newConflictResolver(st store.LocalStore, requests *requestBuilder, events *eventBus, logger *logger.Logger) *conflictResolver {
	return &conflictResolver{store: st, requests: requests, events: events, logger: logger}
}

// Handle is called after req was recorded as failed with the conflict code.
// The *ConflictError travels on the conflict event; the cycle goes on.
func (c *conflictResolver) Handle(req *models.SyncRequest) {
	c.logger.Warn().
		Str("func", "conflictResolver.Handle").
		Str("request_id", req.ID).
		Str("entity", req.Target.String()).
		Msg("entity tag conflict, waiting for user decision")

	err := &ConflictError{RequestID: req.ID, Entity: req.Target}
	c.events.publish(models.Event{
		Type:      models.EventConflict,
		Entity:    req.Target,
		ErrorKind: models.ErrorKindConflict,
		RequestID: req.ID,
		Err:       err,
	})
}

// Reconfirm keeps the local edit. The entity waits as
// AttemptedNotConfirmed until a fetch delivers the current tag; a pending
// deletion simply has its tag refreshed by that fetch.
func (c *conflictResolver) Reconfirm(ctx context.Context, ref models.EntityRef) error {
	return c.resolve(ctx, ref, true)
}

// Discard drops the local edit; the fetched server copy overwrites it.
func (c *conflictResolver) Discard(ctx context.Context, ref models.EntityRef) error {
	return c.resolve(ctx, ref, false)
}

func (c *conflictResolver) resolve(ctx context.Context, ref models.EntityRef, keepLocal bool) error {
	return c.store.InTx(ctx, func(tx store.LocalStore) error {
		queued, err := tx.ListQueued(ctx)
		if err != nil {
			return err
		}
		dropped := 0
		for _, q := range queued {
			if q.Target == ref && q.Status.AwaitsResolution() {
				if err = tx.RemoveRequest(ctx, q.ID); err != nil {
					return err
				}
				dropped++
			}
		}
		if dropped == 0 {
			return fmt.Errorf("%w: %s", ErrNoConflict, ref)
		}

		deletions, err := pendingDeletions(ctx, tx)
		if err != nil {
			return err
		}
		if _, deleted := deletions[ref]; deleted && !keepLocal {
			if err = tx.ClearDeletion(ctx, ref.Type, ref.Key); err != nil {
				return err
			}
		}

		e, err := tx.Get(ctx, ref.Type, ref.Key)
		switch {
		case errors.Is(err, store.ErrEntityNotFound):
		case err != nil:
			return err
		default:
			state := models.StateStale
			if keepLocal {
				state = models.StateAttemptedNotConfirmed
			}
			e.Meta().SyncState = state
			if err = tx.Upsert(ctx, e); err != nil {
				return err
			}
		}

		c.logger.Info().
			Str("func", "conflictResolver.resolve").
			Str("entity", ref.String()).
			Bool("keep_local", keepLocal).
			Msg("conflict resolved, re-fetching entity")

		return tx.Enqueue(ctx, c.requests.fetch(ref))
	})
}
