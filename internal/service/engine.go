package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-ref-sync/internal/adapter"
	"github.com/MKhiriev/go-ref-sync/internal/logger"
	"github.com/MKhiriev/go-ref-sync/internal/store"
	"github.com/MKhiriev/go-ref-sync/internal/utils"
	"github.com/MKhiriev/go-ref-sync/models"
)

// EngineOptions tune an [Engine]. Zero values select the defaults.
type EngineOptions struct {
	MaxRequestsPerCycle  int
	RerequestCutoff      float64
	SyncStaleCollections bool
	IDs                  IDGenerator
	Now                  func() time.Time
}

// Engine implements [SyncEngine] on top of a [Dispatcher].
type Engine struct {
	store      store.LocalStore
	requests   *requestBuilder
	dispatcher *Dispatcher
	conflicts  *conflictResolver
	events     *eventBus
	wake       chan struct{}
	logger     *logger.Logger
}

// NewEngine wires the engine components around st and transport.
func NewEngine(st store.LocalStore, transport adapter.Transport, credentials CredentialProvider, opts EngineOptions, logger *logger.Logger) *Engine {
	if opts.MaxRequestsPerCycle <= 0 {
		opts.MaxRequestsPerCycle = DefaultMaxRequestsPerCycle
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.IDs == nil {
		opts.IDs = utils.NewUUIDGenerator()
	}

	requests := newRequestBuilder(opts.IDs, opts.Now)
	events := newEventBus(eventBufferSize, logger)
	conflicts := newConflictResolver(st, requests, events, logger)
	reconciler := newKeyReconciler(requests, logger)

	return &Engine{
		store:     st,
		requests:  requests,
		conflicts: conflicts,
		events:    events,
		wake:      make(chan struct{}, 1),
		logger:    logger,
		dispatcher: &Dispatcher{
			store:       st,
			transport:   transport,
			credentials: credentials,
			interpreter: newResponseInterpreter(requests, reconciler, opts.RerequestCutoff, logger),
			conflicts:   conflicts,
			tracker:     newDirtyTracker(st, requests, opts.SyncStaleCollections, logger),
			events:      events,
			now:         opts.Now,
			maxRequests: opts.MaxRequestsPerCycle,
			logger:      logger,
		},
	}
}

func (e *Engine) notify() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// EnqueueUserEdit implements [SyncEngine].
func (e *Engine) EnqueueUserEdit(ctx context.Context, ent models.Entity) error {
	switch ent.Type() {
	case models.EntityItem, models.EntityAttachment:
	default:
		return fmt.Errorf("%w: edit %s", ErrUnsupportedType, ent.Type())
	}

	m := ent.Meta()
	if m.Key == "" {
		m.Key = e.requests.ids.PlaceholderKey()
	}
	ref := models.RefOf(ent)

	err := e.dispatcher.holdQueue(func(inFlight *models.SyncRequest) error {
		return e.store.InTx(ctx, func(tx store.LocalStore) error {
			return e.saveEdit(ctx, tx, ent, inFlight)
		})
	})
	if err != nil {
		e.logger.Err(err).Str("func", "Engine.EnqueueUserEdit").Str("entity", ref.String()).Msg("cannot queue edit")
		return err
	}

	e.notify()
	return nil
}

// saveEdit stores ent and queues its upload. While an upload of ent is in
// flight or waits on a conflict only the local copy changes; the response
// of the in-flight upload marks it Dirty again.
func (e *Engine) saveEdit(ctx context.Context, tx store.LocalStore, ent models.Entity, inFlight *models.SyncRequest) error {
	m := ent.Meta()
	ref := models.RefOf(ent)

	existing, err := tx.Get(ctx, ref.Type, ref.Key)
	switch {
	case errors.Is(err, store.ErrEntityNotFound):
		if !models.IsPlaceholderKey(ref.Key) {
			return fmt.Errorf("%w: %s", ErrUnknownEntityKey, ref)
		}
		m.SyncState, m.EntityTag = models.StateNew, ""
	case err != nil:
		return err
	default:
		cur := existing.Meta()
		switch cur.SyncState {
		case models.StateNew:
			m.SyncState, m.EntityTag = models.StateNew, ""
		case models.StateAttemptedNotConfirmed:
			// still waiting for the tag the next upload must carry
			m.SyncState, m.EntityTag = cur.SyncState, cur.EntityTag
		default:
			m.SyncState = models.StateDirty
			if m.EntityTag == "" {
				m.EntityTag = cur.EntityTag
			}
		}
		if m.Timestamp == "" {
			m.Timestamp = cur.Timestamp
		}
	}

	if err = tx.Upsert(ctx, ent); err != nil {
		return err
	}
	if m.SyncState == models.StateAttemptedNotConfirmed {
		return nil
	}

	waiting, flying, err := dropSuperseded(ctx, tx, ref, inFlight)
	if err != nil || waiting || flying {
		return err
	}

	var req *models.SyncRequest
	if m.SyncState == models.StateNew {
		req, err = e.requests.create(ent)
	} else {
		req, err = e.requests.update(ent)
	}
	if err != nil {
		return err
	}
	return tx.Enqueue(ctx, req)
}

// dropSuperseded removes queued uploads of ref that a newer edit replaces.
// Two kinds are kept: an upload waiting on conflict resolution (waiting) and
// the upload currently in flight (flying). Either way the new edit must not
// be queued.
func dropSuperseded(ctx context.Context, tx store.LocalStore, ref models.EntityRef, inFlight *models.SyncRequest) (waiting, flying bool, err error) {
	queued, err := tx.ListQueued(ctx)
	if err != nil {
		return false, false, err
	}

	for _, q := range queued {
		if q.Target != ref {
			continue
		}
		switch q.Kind {
		case models.KindCreateItems, models.KindCreateAttachments, models.KindUpdateItem, models.KindUpdateAttachment:
		default:
			continue
		}
		switch {
		case inFlight != nil && q.ID == inFlight.ID:
			flying = true
		case q.Status.AwaitsResolution():
			waiting = true
		default:
			if err = tx.RemoveRequest(ctx, q.ID); err != nil {
				return false, false, err
			}
		}
	}
	return waiting, flying, nil
}

// EnqueueDeletion implements [SyncEngine].
func (e *Engine) EnqueueDeletion(ctx context.Context, ref models.EntityRef) error {
	err := e.dispatcher.holdQueue(func(inFlight *models.SyncRequest) error {
		return e.store.InTx(ctx, func(tx store.LocalStore) error {
			return e.saveDeletion(ctx, tx, ref, inFlight)
		})
	})
	if err != nil {
		e.logger.Err(err).Str("func", "Engine.EnqueueDeletion").Str("entity", ref.String()).Msg("cannot queue deletion")
		return err
	}

	e.notify()
	return nil
}

// saveDeletion removes ref locally and queues its deletion. While an upload
// of ref is in flight only the deletion record is written; the upload's
// response fills in the key and tag the DELETE needs.
func (e *Engine) saveDeletion(ctx context.Context, tx store.LocalStore, ref models.EntityRef, inFlight *models.SyncRequest) error {
	ent, err := tx.Get(ctx, ref.Type, ref.Key)
	if err != nil {
		return err
	}
	m := ent.Meta()

	_, flying, err := dropSuperseded(ctx, tx, ref, inFlight)
	if err != nil {
		return err
	}
	if err = tx.Delete(ctx, ref.Type, ref.Key); err != nil {
		return err
	}

	if m.SyncState == models.StateNew {
		if !flying {
			return nil
		}
		// the server key is not known yet; the creation result replaces it
		return tx.RecordDeletion(ctx, models.Deletion{EntityType: ref.Type, Key: ref.Key})
	}

	d := models.Deletion{EntityType: ref.Type, Key: ref.Key, EntityTag: m.EntityTag}
	if err = tx.RecordDeletion(ctx, d); err != nil {
		return err
	}
	if flying {
		return nil
	}
	req, err := e.requests.delete(d)
	if err != nil {
		return err
	}
	return tx.Enqueue(ctx, req)
}

// AddToCollection implements [SyncEngine].
func (e *Engine) AddToCollection(ctx context.Context, collectionKey, itemKey string) error {
	return e.changeMembership(ctx, collectionKey, itemKey, true)
}

// RemoveFromCollection implements [SyncEngine].
func (e *Engine) RemoveFromCollection(ctx context.Context, collectionKey, itemKey string) error {
	return e.changeMembership(ctx, collectionKey, itemKey, false)
}

func (e *Engine) changeMembership(ctx context.Context, collectionKey, itemKey string, add bool) error {
	err := e.store.InTx(ctx, func(tx store.LocalStore) error {
		if _, err := tx.Get(ctx, models.EntityItem, itemKey); err != nil {
			return err
		}
		if _, err := tx.Get(ctx, models.EntityCollection, collectionKey); err != nil {
			return err
		}

		if add {
			if err := tx.AddMembership(ctx, collectionKey, itemKey); err != nil {
				return err
			}
		} else if err := tx.RemoveMembership(ctx, collectionKey, itemKey); err != nil {
			return err
		}

		// sent by the key reconciler once the item exists on the server
		if models.IsPlaceholderKey(itemKey) {
			return nil
		}
		if add {
			return tx.Enqueue(ctx, e.requests.addMembership(collectionKey, itemKey))
		}
		return tx.Enqueue(ctx, e.requests.removeMembership(collectionKey, itemKey))
	})
	if err != nil {
		e.logger.Err(err).
			Str("func", "Engine.changeMembership").
			Str("collection", collectionKey).
			Str("item", itemKey).
			Bool("add", add).
			Msg("cannot change membership")
		return err
	}

	e.notify()
	return nil
}

// RequestFullSync implements [SyncEngine].
func (e *Engine) RequestFullSync(ctx context.Context) error {
	err := e.store.InTx(ctx, func(tx store.LocalStore) error {
		reqs, err := dropQueued(ctx, tx, "", []*models.SyncRequest{
			e.requests.listCollections(),
			e.requests.listAllItems(true),
		})
		if err != nil {
			return err
		}
		return tx.Enqueue(ctx, reqs...)
	})
	if err != nil {
		e.logger.Err(err).Str("func", "Engine.RequestFullSync").Msg("cannot queue full sync")
		return err
	}

	e.notify()
	return nil
}

// ReconfirmEdit implements [SyncEngine].
func (e *Engine) ReconfirmEdit(ctx context.Context, ref models.EntityRef) error {
	if err := e.conflicts.Reconfirm(ctx, ref); err != nil {
		return err
	}
	e.notify()
	return nil
}

// DiscardLocalEdit implements [SyncEngine].
func (e *Engine) DiscardLocalEdit(ctx context.Context, ref models.EntityRef) error {
	if err := e.conflicts.Discard(ctx, ref); err != nil {
		return err
	}
	e.notify()
	return nil
}

// RunSyncCycle implements [SyncEngine].
func (e *Engine) RunSyncCycle(ctx context.Context) (models.SyncResult, error) {
	res, err := e.dispatcher.RunCycle(ctx)

	ev := e.logger.Info()
	if err != nil {
		ev = e.logger.Warn().Err(err)
	}
	ev.Str("func", "Engine.RunSyncCycle").
		Int("sent", res.Sent).
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Int("conflicts", res.Conflicts).
		Int("follow_ups", res.FollowUps).
		Int("batched", res.Batched).
		Bool("up_to_date", res.UpToDate).
		Bool("stopped", res.Stopped).
		Msg("sync cycle finished")

	return res, err
}

// QueuedRequests implements [SyncEngine].
func (e *Engine) QueuedRequests(ctx context.Context) ([]*models.SyncRequest, error) {
	return e.store.ListQueued(ctx)
}

// Stop implements [SyncEngine].
func (e *Engine) Stop() { e.dispatcher.Stop() }

// Resume implements [SyncEngine].
func (e *Engine) Resume() { e.dispatcher.Resume() }

// Events implements [SyncEngine].
func (e *Engine) Events() <-chan models.Event { return e.events.events() }

// Wake implements [SyncEngine].
func (e *Engine) Wake() <-chan struct{} { return e.wake }
