package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/MKhiriev/go-ref-sync/internal/feed"
	"github.com/MKhiriev/go-ref-sync/internal/logger"
	"github.com/MKhiriev/go-ref-sync/internal/store"
	"github.com/MKhiriev/go-ref-sync/models"
)

// applyResult is what a successful response changed.
type applyResult struct {
	followUps []*models.SyncRequest
	updated   []models.EntityRef
}

func (r *applyResult) follow(reqs ...*models.SyncRequest) {
	r.followUps = append(r.followUps, reqs...)
}

func (r *applyResult) touch(ref models.EntityRef) {
	r.updated = append(r.updated, ref)
}

// responseInterpreter turns a successful response into store mutations and
// follow-up requests. All writes go through the transaction it is given.
type responseInterpreter struct {
	requests   *requestBuilder
	reconciler *keyReconciler
	cutoff     float64
	logger     *logger.Logger
}

func newResponseInterpreter(requests *requestBuilder, reconciler *keyReconciler, cutoff float64, logger *logger.Logger) *responseInterpreter {
	if cutoff <= 0 || cutoff > 1 {
		cutoff = DefaultRerequestCutoff
	}
	return &responseInterpreter{requests: requests, reconciler: reconciler, cutoff: cutoff, logger: logger}
}

// Apply interprets body according to req.ResponseShape. Parse failures are
// returned as *MalformedResponseError.
func (i *responseInterpreter) Apply(ctx context.Context, tx store.LocalStore, req *models.SyncRequest, body []byte, cycle *cycleState) (*applyResult, error) {
	deletions, err := pendingDeletions(ctx, tx)
	if err != nil {
		return nil, err
	}
	a := &applier{interpreter: i, tx: tx, req: req, cycle: cycle, deletions: deletions, result: &applyResult{}}

	switch req.ResponseShape {
	case models.ShapeStructuredFeed:
		err = a.feed(ctx, body)
	case models.ShapeStructuredEntry:
		err = a.entry(ctx, body)
	case models.ShapeKeyList:
		err = a.keys(ctx, body)
	case models.ShapeNone:
		err = a.none(ctx)
	default:
		err = malformed(req, fmt.Errorf("%w: %q", ErrUnknownShape, req.ResponseShape))
	}
	if err != nil {
		return nil, err
	}

	return a.result, nil
}

func pendingDeletions(ctx context.Context, tx store.LocalStore) (map[models.EntityRef]models.Deletion, error) {
	list, err := tx.ListDeletions(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[models.EntityRef]models.Deletion, len(list))
	for _, d := range list {
		out[models.EntityRef{Type: d.EntityType, Key: d.Key}] = d
	}
	return out, nil
}

// applier holds the state of one Apply call.
type applier struct {
	interpreter *responseInterpreter
	tx          store.LocalStore
	req         *models.SyncRequest
	cycle       *cycleState
	deletions   map[models.EntityRef]models.Deletion
	result      *applyResult
}

func (a *applier) feed(ctx context.Context, body []byte) error {
	f, err := feed.Parse(bytes.NewReader(body))
	if err != nil {
		return malformed(a.req, err)
	}

	for idx := range f.Entries {
		e, err := f.Entries[idx].Entity()
		if err != nil {
			return malformed(a.req, err)
		}
		if att, ok := e.(*models.Attachment); ok && att.ParentKey == "" && a.req.Kind == models.KindListItemChildren {
			att.ParentKey = a.req.Target.Key
		}

		changed, err := a.merge(ctx, e)
		if err != nil {
			return err
		}

		key := e.Meta().Key
		if a.req.Kind == models.KindListCollectionItems && e.Type() == models.EntityItem {
			if err = a.tx.AddMembership(ctx, a.req.Target.Key, key); err != nil {
				return err
			}
		}
		if it, ok := e.(*models.Item); ok && changed && it.NumChildren > 0 {
			a.result.follow(a.interpreter.requests.listItemChildren(key, false))
		}
	}

	if next := f.Link(feed.RelNext); next != "" {
		a.result.follow(a.req.Continuation(a.interpreter.requests.ids.Generate(), next, a.interpreter.requests.now().UTC()))
		return nil
	}
	if a.req.Kind == models.KindListCollectionItems {
		return a.markCollectionClean(ctx, a.req.Target.Key)
	}
	return nil
}

func (a *applier) entry(ctx context.Context, body []byte) error {
	f, err := feed.Parse(bytes.NewReader(body))
	if err != nil {
		return malformed(a.req, err)
	}
	if len(f.Entries) != 1 {
		return malformed(a.req, fmt.Errorf("%w: got %d", ErrNotSingleEntry, len(f.Entries)))
	}
	e, err := f.Entries[0].Entity()
	if err != nil {
		return malformed(a.req, err)
	}

	if a.req.KeyRewrite != nil {
		if e.Type() != a.req.KeyRewrite.EntityType {
			return malformed(a.req, fmt.Errorf("%w: created %s, got %s", ErrKeyMismatch, a.req.KeyRewrite.EntityType, e.Type()))
		}
		followUps, err := a.interpreter.reconciler.Reconcile(ctx, a.tx, a.req, e)
		if err != nil {
			return err
		}
		a.result.follow(followUps...)
		a.result.touch(models.RefOf(e))
		return nil
	}

	if !a.req.Target.IsZero() && e.Meta().Key != a.req.Target.Key {
		return malformed(a.req, fmt.Errorf("%w: requested %s, got %s", ErrKeyMismatch, a.req.Target.Key, e.Meta().Key))
	}

	switch a.req.Kind {
	case models.KindUpdateItem, models.KindUpdateAttachment:
		return a.uploaded(ctx, e)
	}

	changed, err := a.merge(ctx, e)
	if err != nil {
		return err
	}
	if it, ok := e.(*models.Item); ok && changed && it.NumChildren > 0 {
		a.result.follow(a.interpreter.requests.listItemChildren(it.Key, false))
	}
	return nil
}

// uploaded stores the server copy returned for an update. Local changes
// made while the update was in flight survive: a newer edit stays Dirty
// under the returned tag, a deletion keeps waiting with that tag.
func (a *applier) uploaded(ctx context.Context, confirmed models.Entity) error {
	ref := models.RefOf(confirmed)
	in := confirmed.Meta()

	if d, ok := a.deletions[ref]; ok {
		d.EntityTag = in.EntityTag
		a.deletions[ref] = d
		return a.tx.RecordDeletion(ctx, d)
	}

	local, err := a.tx.Get(ctx, ref.Type, ref.Key)
	switch {
	case errors.Is(err, store.ErrEntityNotFound):
	case err != nil:
		return err
	default:
		edited, err := editedSince(a.req, local)
		if err != nil {
			return err
		}
		if edited {
			if err = keepLocalEdit(ctx, a.tx, ref.Type, confirmed); err != nil {
				return err
			}
			a.result.touch(ref)
			return nil
		}
	}

	// the server now holds our edit
	if err = a.tx.Upsert(ctx, confirmed); err != nil {
		return err
	}
	a.result.touch(ref)
	return nil
}

func (a *applier) keys(ctx context.Context, body []byte) error {
	keys, err := feed.ParseKeys(bytes.NewReader(body))
	if err != nil {
		return malformed(a.req, err)
	}

	listed := models.EntityItem
	if a.req.Kind == models.KindListItemChildren {
		listed = models.EntityAttachment
	}

	cached := make(map[string]bool, len(keys))
	for _, k := range keys {
		e, err := a.tx.Get(ctx, listed, k)
		switch {
		case errors.Is(err, store.ErrEntityNotFound):
			cached[k] = false
		case err != nil:
			return err
		default:
			cached[k] = e.Meta().HasContent()
		}
	}

	if a.req.Kind == models.KindListCollectionItems {
		if err = a.syncMemberships(ctx, keys, cached); err != nil {
			return err
		}
	}

	plan := PlanKeyDiff(keys, func(k string) bool { return cached[k] }, a.interpreter.cutoff, a.cycle.fetchedKeys())
	switch {
	case plan.Complete:
		if a.req.Kind == models.KindListCollectionItems {
			return a.markCollectionClean(ctx, a.req.Target.Key)
		}
	case plan.FullRefetch:
		a.result.follow(a.interpreter.requests.scopeRequest(a.req, false))
	default:
		for _, k := range plan.Fetch {
			a.result.follow(a.interpreter.requests.fetch(models.EntityRef{Type: listed, Key: k}))
		}
		if plan.Rerequest && a.req.Kind == models.KindListCollectionItems {
			a.result.follow(a.interpreter.requests.scopeRequest(a.req, true))
		}
	}
	return nil
}

// syncMemberships makes the cached membership of the scoped collection
// match the listing for every item already cached.
func (a *applier) syncMemberships(ctx context.Context, keys []string, cached map[string]bool) error {
	coll := a.req.Target.Key
	members, err := a.tx.CollectionMembers(ctx, coll)
	if err != nil {
		return err
	}

	listed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		listed[k] = struct{}{}
		if cached[k] {
			if err = a.tx.AddMembership(ctx, coll, k); err != nil {
				return err
			}
		}
	}
	for _, m := range members {
		if _, ok := listed[m]; ok || models.IsPlaceholderKey(m) {
			continue
		}
		if err = a.tx.RemoveMembership(ctx, coll, m); err != nil {
			return err
		}
		a.result.touch(models.EntityRef{Type: models.EntityItem, Key: m})
	}
	return nil
}

func (a *applier) none(ctx context.Context) error {
	switch a.req.Kind {
	case models.KindDeleteItem, models.KindDeleteAttachment:
		if err := a.tx.ClearDeletion(ctx, a.req.Target.Type, a.req.Target.Key); err != nil {
			return err
		}
	}
	if !a.req.Target.IsZero() {
		a.result.touch(a.req.Target)
	}
	return nil
}

// merge stores a server representation without clobbering local work and
// reports whether the server copy changed since it was last cached.
func (a *applier) merge(ctx context.Context, incoming models.Entity) (bool, error) {
	ref := models.RefOf(incoming)
	in := incoming.Meta()

	// a deleted entity only refreshes the tag its pending delete will use
	if d, ok := a.deletions[ref]; ok {
		if d.EntityTag == in.EntityTag {
			return false, nil
		}
		d.EntityTag = in.EntityTag
		a.deletions[ref] = d
		return false, a.tx.RecordDeletion(ctx, d)
	}

	existing, err := a.tx.Get(ctx, ref.Type, ref.Key)
	if errors.Is(err, store.ErrEntityNotFound) {
		if ref.Type == models.EntityCollection {
			in.SyncState = models.StateMissing
		}
		if err = a.tx.Upsert(ctx, incoming); err != nil {
			return false, err
		}
		a.result.touch(ref)
		return true, nil
	}
	if err != nil {
		return false, err
	}

	cur := existing.Meta()
	changed := cur.Timestamp != in.Timestamp

	switch cur.SyncState {
	case models.StateDirty, models.StateNew:
		return changed, nil
	case models.StateAttemptedNotConfirmed:
		cur.EntityTag, cur.Timestamp, cur.SyncState = in.EntityTag, in.Timestamp, models.StateDirty
		if err = a.tx.Upsert(ctx, existing); err != nil {
			return false, err
		}
		a.result.touch(ref)
		return changed, nil
	}

	if ref.Type == models.EntityCollection {
		switch {
		case changed:
			in.SyncState = models.StateStale
		case cur.SyncState == models.StateStale || cur.SyncState == models.StateMissing:
			// members still need a refresh
			in.SyncState = cur.SyncState
		}
	}
	if !changed && cur.SyncState == in.SyncState && cur.EntityTag == in.EntityTag {
		return false, nil
	}

	if err = a.tx.Upsert(ctx, incoming); err != nil {
		return false, err
	}
	a.result.touch(ref)
	return changed, nil
}

func (a *applier) markCollectionClean(ctx context.Context, key string) error {
	e, err := a.tx.Get(ctx, models.EntityCollection, key)
	if errors.Is(err, store.ErrEntityNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	m := e.Meta()
	if m.SyncState != models.StateStale && m.SyncState != models.StateMissing {
		return nil
	}
	if m.EntityTag == "" || models.IsPlaceholderKey(m.Key) {
		return nil
	}
	m.SyncState = models.StateClean
	if err = a.tx.Upsert(ctx, e); err != nil {
		return err
	}
	a.result.touch(models.RefOf(e))
	return nil
}
