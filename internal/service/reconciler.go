package service

import (
	"context"
	"errors"

	"github.com/MKhiriev/go-ref-sync/internal/logger"
	"github.com/MKhiriev/go-ref-sync/internal/store"
	"github.com/MKhiriev/go-ref-sync/models"
)

// keyReconciler replaces a placeholder key with the key the server assigned
// on creation.
type keyReconciler struct {
	requests *requestBuilder
	logger   *logger.Logger
}

func newKeyReconciler(requests *requestBuilder, logger *logger.Logger) *keyReconciler {
	return &keyReconciler{requests: requests, logger: logger}
}

// Reconcile must run inside the transaction that commits the result of the
// creation req. It renames the placeholder and every reference to it,
// stores the server copy as Clean and returns the uploads that could not be
// sent while the entity had no server key. An entity edited while req was
// in flight keeps its local fields and becomes Dirty under the new key and
// tag; one deleted meanwhile gets its DELETE queued. Applying the same
// result twice finds no placeholder and leaves local work alone.
func (r *keyReconciler) Reconcile(ctx context.Context, tx store.LocalStore, req *models.SyncRequest, created models.Entity) ([]*models.SyncRequest, error) {
	rw := req.KeyRewrite
	newKey := created.Meta().Key

	if err := dropCreations(ctx, tx, req); err != nil {
		return nil, err
	}

	local, err := tx.Get(ctx, rw.EntityType, rw.PlaceholderKey)
	if errors.Is(err, store.ErrEntityNotFound) {
		return r.reconciled(ctx, tx, rw, created)
	}
	if err != nil {
		return nil, err
	}

	edited, err := editedSince(req, local)
	if err != nil {
		return nil, err
	}

	if rw.PlaceholderKey != newKey {
		// a listing may have cached the created entity already
		if _, err = tx.Get(ctx, rw.EntityType, newKey); err == nil {
			if err = tx.Delete(ctx, rw.EntityType, newKey); err != nil {
				return nil, err
			}
		} else if !errors.Is(err, store.ErrEntityNotFound) {
			return nil, err
		}

		if err = tx.RenameKey(ctx, rw.EntityType, rw.PlaceholderKey, newKey); err != nil {
			return nil, err
		}
	}

	if edited {
		if err = keepLocalEdit(ctx, tx, rw.EntityType, created); err != nil {
			return nil, err
		}
	} else {
		if att, ok := created.(*models.Attachment); ok && att.ParentKey == "" {
			parent := local.(*models.Attachment).ParentKey
			if models.IsPlaceholderKey(parent) {
				parent = ""
			}
			att.ParentKey = parent
		}
		created.Meta().SyncState = models.StateClean
		if err = tx.Upsert(ctx, created); err != nil {
			return nil, err
		}
	}

	r.logger.Info().
		Str("func", "keyReconciler.Reconcile").
		Str("type", string(rw.EntityType)).
		Str("placeholder", rw.PlaceholderKey).
		Str("key", newKey).
		Bool("edited", edited).
		Msg("placeholder key replaced")

	if rw.EntityType != models.EntityItem {
		return nil, nil
	}
	collections, err := tx.ItemCollections(ctx, newKey)
	if err != nil {
		return nil, err
	}
	followUps := make([]*models.SyncRequest, 0, len(collections))
	for _, c := range collections {
		if models.IsPlaceholderKey(c) {
			continue
		}
		followUps = append(followUps, r.requests.addMembership(c, newKey))
	}
	return followUps, nil
}

// reconciled handles a creation result whose placeholder is gone: either
// the entity was deleted while the creation was in flight, or the result
// was applied before.
func (r *keyReconciler) reconciled(ctx context.Context, tx store.LocalStore, rw *models.KeyRewrite, created models.Entity) ([]*models.SyncRequest, error) {
	in := created.Meta()

	deletions, err := tx.ListDeletions(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range deletions {
		if d.EntityType != rw.EntityType || d.Key != rw.PlaceholderKey {
			continue
		}
		if err = tx.ClearDeletion(ctx, d.EntityType, d.Key); err != nil {
			return nil, err
		}
		d.Key, d.EntityTag = in.Key, in.EntityTag
		if err = tx.RecordDeletion(ctx, d); err != nil {
			return nil, err
		}
		del, err := r.requests.delete(d)
		if err != nil {
			return nil, err
		}
		r.logger.Info().
			Str("func", "keyReconciler.reconciled").
			Str("placeholder", rw.PlaceholderKey).
			Str("key", in.Key).
			Msg("created entity was deleted meanwhile")
		return []*models.SyncRequest{del}, nil
	}

	existing, err := tx.Get(ctx, rw.EntityType, in.Key)
	switch {
	case errors.Is(err, store.ErrEntityNotFound):
	case err != nil:
		return nil, err
	case existing.Meta().SyncState == models.StateDirty:
		return nil, nil
	}

	r.logger.Debug().
		Str("func", "keyReconciler.reconciled").
		Str("placeholder", rw.PlaceholderKey).
		Str("key", in.Key).
		Msg("placeholder already reconciled")
	return nil, tx.Upsert(ctx, created)
}

// keepLocalEdit gives the cached entity the server's key, tag and timestamp
// from confirmed and marks it Dirty so its newer fields are uploaded next.
func keepLocalEdit(ctx context.Context, tx store.LocalStore, t models.EntityType, confirmed models.Entity) error {
	in := confirmed.Meta()
	local, err := tx.Get(ctx, t, in.Key)
	if err != nil {
		return err
	}
	m := local.Meta()
	m.EntityTag, m.Timestamp, m.SyncState = in.EntityTag, in.Timestamp, models.StateDirty
	return tx.Upsert(ctx, local)
}

// dropCreations removes queued creations of the same placeholder other than
// req. Once the placeholder is renamed they would create a second copy.
func dropCreations(ctx context.Context, tx store.LocalStore, req *models.SyncRequest) error {
	queued, err := tx.ListQueued(ctx)
	if err != nil {
		return err
	}
	for _, q := range queued {
		if q.ID == req.ID || q.KeyRewrite == nil || *q.KeyRewrite != *req.KeyRewrite {
			continue
		}
		if err = tx.RemoveRequest(ctx, q.ID); err != nil {
			return err
		}
	}
	return nil
}
