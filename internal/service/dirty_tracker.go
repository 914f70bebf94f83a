package service

import (
	"context"
	"errors"

	"github.com/MKhiriev/go-ref-sync/internal/logger"
	"github.com/MKhiriev/go-ref-sync/internal/store"
	"github.com/MKhiriev/go-ref-sync/models"
)

// dirtyTracker collects local changes that have no queued request yet.
type dirtyTracker struct {
	store            store.LocalStore
	requests         *requestBuilder
	refreshStaleColl bool
	logger           *logger.Logger
}

func newDirtyTracker(st store.LocalStore, requests *requestBuilder, refreshStale bool, logger *logger.Logger) *dirtyTracker {
	return &dirtyTracker{store: st, requests: requests, refreshStaleColl: refreshStale, logger: logger}
}

// Batch returns, in order: updates of Dirty items and attachments,
// creations of New items then New attachments, deletions awaiting the
// server and, when enabled, key list refreshes of Stale or Missing
// collections. Entities already targeted by a queued request are skipped.
func (t *dirtyTracker) Batch(ctx context.Context) ([]*models.SyncRequest, error) {
	queued, err := t.store.ListQueued(ctx)
	if err != nil {
		return nil, err
	}
	targeted := make(map[models.EntityRef]struct{}, len(queued))
	signatures := make(map[string]struct{}, len(queued))
	for _, q := range queued {
		signatures[q.Signature()] = struct{}{}
		if q.Mutates() || q.Kind == models.KindFetchItemByKey {
			targeted[q.Target] = struct{}{}
		}
	}

	batch := make([]*models.SyncRequest, 0)
	add := func(req *models.SyncRequest, err error) error {
		if errors.Is(err, ErrNoEntityTag) {
			t.logger.Warn().Err(err).Str("func", "dirtyTracker.Batch").Msg("skipping entity without tag")
			return nil
		}
		if err != nil {
			return err
		}
		targeted[req.Target] = struct{}{}
		batch = append(batch, req)
		return nil
	}

	dirty := make(map[models.SyncState][]models.Entity)
	for _, typ := range []models.EntityType{models.EntityItem, models.EntityAttachment} {
		list, err := t.store.ListDirty(ctx, typ)
		if err != nil {
			return nil, err
		}
		for _, e := range list {
			dirty[e.Meta().SyncState] = append(dirty[e.Meta().SyncState], e)
		}
	}

	for _, e := range dirty[models.StateDirty] {
		if _, ok := targeted[models.RefOf(e)]; ok {
			continue
		}
		if err = add(t.requests.update(e)); err != nil {
			return nil, err
		}
	}
	for _, e := range dirty[models.StateNew] {
		if _, ok := targeted[models.RefOf(e)]; ok {
			continue
		}
		if err = add(t.requests.create(e)); err != nil {
			return nil, err
		}
	}

	deletions, err := t.store.ListDeletions(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range deletions {
		if _, ok := targeted[models.EntityRef{Type: d.EntityType, Key: d.Key}]; ok {
			continue
		}
		if err = add(t.requests.delete(d)); err != nil {
			return nil, err
		}
	}

	if t.refreshStaleColl {
		colls, err := t.store.ListByState(ctx, models.EntityCollection, models.StateStale, models.StateMissing)
		if err != nil {
			return nil, err
		}
		for _, c := range colls {
			req := t.requests.listCollectionItems(c.Meta().Key, true)
			if _, ok := signatures[req.Signature()]; ok {
				continue
			}
			batch = append(batch, req)
		}
	}

	return batch, nil
}
