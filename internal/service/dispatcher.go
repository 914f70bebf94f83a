package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MKhiriev/go-ref-sync/internal/adapter"
	"github.com/MKhiriev/go-ref-sync/internal/logger"
	"github.com/MKhiriev/go-ref-sync/internal/store"
	"github.com/MKhiriev/go-ref-sync/models"
)

// DefaultMaxRequestsPerCycle bounds the sends of one cycle.
const DefaultMaxRequestsPerCycle = 500

const maxErrorBody = 512

// cycleState is what one RunCycle remembers between requests.
type cycleState struct {
	attempted []string
	fetched   map[string]struct{}
}

func newCycleState() *cycleState {
	return &cycleState{fetched: make(map[string]struct{})}
}

func (c *cycleState) fetchedKeys() map[string]struct{} {
	if c == nil {
		return nil
	}
	return c.fetched
}

func (c *cycleState) recordFetches(reqs []*models.SyncRequest) {
	for _, r := range reqs {
		if r.Kind == models.KindFetchItemByKey {
			c.fetched[r.Target.Key] = struct{}{}
		}
	}
}

// inFlight is the request between its dequeue and the commit of its
// result. Local edits take the same lock, so an edit either lands before a
// request is claimed or sees that request as in flight.
type inFlight struct {
	mu     sync.Mutex
	req    models.SyncRequest
	active bool
}

// Dispatcher drains the request queue one request at a time.
type Dispatcher struct {
	store       store.LocalStore
	transport   adapter.Transport
	credentials CredentialProvider
	interpreter *responseInterpreter
	conflicts   *conflictResolver
	tracker     *dirtyTracker
	events      *eventBus
	now         func() time.Time
	maxRequests int

	running sync.Mutex
	flight  inFlight
	stopped atomic.Bool
	logger  *logger.Logger
}

// RunCycle sends queued requests oldest first until the queue has nothing
// eligible left. A request is eligible once per cycle unless it waits on a
// conflict. When the queue runs dry the local changes are batched in once;
// after that batch drains an [models.EventBatchComplete] is emitted.
//
// A transport failure ends the cycle with a *TransportError. Error statuses,
// conflicts and unreadable responses are recorded on their request and the
// cycle moves on. Stop ends the cycle after the in-flight request, whose
// result is still committed.
func (d *Dispatcher) RunCycle(ctx context.Context) (models.SyncResult, error) {
	d.running.Lock()
	defer d.running.Unlock()

	var (
		res   models.SyncResult
		cycle = newCycleState()
		auto  bool
	)

	for {
		if d.stopped.Load() {
			res.Stopped = true
			return res, nil
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		req, err := d.claim(ctx, cycle.attempted)
		if errors.Is(err, store.ErrQueueEmpty) {
			if auto {
				d.events.publish(models.Event{Type: models.EventBatchComplete})
				return res, nil
			}
			n, err := d.batchLocalChanges(ctx)
			if err != nil {
				return res, err
			}
			if n == 0 {
				res.UpToDate = true
				return res, nil
			}
			res.Batched += n
			auto = true
			continue
		}
		if err != nil {
			return res, fmt.Errorf("dequeue: %w", err)
		}

		if res.Sent >= d.maxRequests {
			d.land()
			return res, ErrCycleLimitReached
		}
		creds, ok := d.credentials.CurrentCredentials()
		if !ok {
			d.land()
			return res, ErrNoCredentials
		}

		cycle.attempted = append(cycle.attempted, req.ID)
		err = d.dispatch(ctx, req, creds, cycle, &res)
		d.land()
		if err != nil {
			return res, err
		}
	}
}

// claim dequeues the next eligible request and marks it in flight.
func (d *Dispatcher) claim(ctx context.Context, skip []string) (*models.SyncRequest, error) {
	d.flight.mu.Lock()
	defer d.flight.mu.Unlock()

	req, err := d.store.Dequeue(ctx, skip...)
	if err != nil {
		return nil, err
	}
	d.flight.req, d.flight.active = *req, true
	return req, nil
}

// land clears the in-flight request once its result is committed.
func (d *Dispatcher) land() {
	d.flight.mu.Lock()
	d.flight.req, d.flight.active = models.SyncRequest{}, false
	d.flight.mu.Unlock()
}

// holdQueue runs fn while no request can be claimed. fn gets a copy of the
// request in flight, or nil.
func (d *Dispatcher) holdQueue(fn func(inFlight *models.SyncRequest) error) error {
	d.flight.mu.Lock()
	defer d.flight.mu.Unlock()

	if !d.flight.active {
		return fn(nil)
	}
	cur := d.flight.req
	return fn(&cur)
}

// batchLocalChanges queues the uploads, deletions and refreshes the
// DirtyTracker finds and reports how many it queued.
func (d *Dispatcher) batchLocalChanges(ctx context.Context) (int, error) {
	var n int
	err := d.holdQueue(func(*models.SyncRequest) error {
		batch, err := d.tracker.Batch(ctx)
		if err != nil {
			return fmt.Errorf("collect local changes: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}
		if err = d.store.Enqueue(ctx, batch...); err != nil {
			return fmt.Errorf("enqueue local changes: %w", err)
		}
		n = len(batch)
		return nil
	})
	return n, err
}

// dispatch sends req and records its outcome. Only errors that must end
// the cycle are returned.
func (d *Dispatcher) dispatch(ctx context.Context, req *models.SyncRequest, creds models.Credentials, cycle *cycleState, res *models.SyncResult) error {
	// the in-flight request and its bookkeeping outlive a cancellation
	ctx = context.WithoutCancel(ctx)
	log := d.logger.With().Str("request_id", req.ID).Str("kind", string(req.Kind)).Logger()

	resp, err := d.transport.Send(ctx, req, creds)
	res.Sent++
	at := d.now().UTC()

	if err != nil {
		terr := &TransportError{RequestID: req.ID, Err: err}
		log.Err(err).Str("func", "Dispatcher.dispatch").Msg("transport failure, ending cycle")
		res.Failed++
		if markErr := d.mark(ctx, req, models.PhaseFailed, 0, at); markErr != nil {
			return errors.Join(terr, markErr)
		}
		d.events.failed(req, terr)
		return terr
	}

	if !resp.IsSuccess() {
		if err = d.mark(ctx, req, models.PhaseFailed, resp.StatusCode, at); err != nil {
			return err
		}
		if resp.StatusCode == models.ConflictStatusCode && req.Mutates() {
			res.Conflicts++
			d.conflicts.Handle(req)
			return nil
		}
		herr := &HTTPError{RequestID: req.ID, Code: resp.StatusCode, Body: snippet(resp.Body)}
		log.Warn().Err(herr).Str("func", "Dispatcher.dispatch").Msg("request failed")
		res.Failed++
		d.events.failed(req, herr)
		return nil
	}

	var out *applyResult
	err = d.store.InTx(ctx, func(tx store.LocalStore) error {
		out, err = d.interpreter.Apply(ctx, tx, req, resp.Body, cycle)
		if err != nil {
			return err
		}
		out.followUps, err = dropQueued(ctx, tx, req.ID, out.followUps)
		if err != nil {
			return err
		}
		if err = tx.Enqueue(ctx, out.followUps...); err != nil {
			return err
		}
		return tx.RemoveRequest(ctx, req.ID)
	})
	if err != nil {
		log.Err(err).Str("func", "Dispatcher.dispatch").Msg("cannot apply response")
		res.Failed++
		if markErr := d.mark(ctx, req, models.PhaseFailed, resp.StatusCode, at); markErr != nil {
			return errors.Join(err, markErr)
		}
		d.events.failed(req, err)
		return nil
	}

	res.Succeeded++
	res.FollowUps += len(out.followUps)
	cycle.recordFetches(out.followUps)
	for _, ref := range out.updated {
		d.events.updated(ref)
	}
	log.Debug().
		Str("func", "Dispatcher.dispatch").
		Int("follow_ups", len(out.followUps)).
		Int("updated", len(out.updated)).
		Msg("response applied")
	return nil
}

func (d *Dispatcher) mark(ctx context.Context, req *models.SyncRequest, phase models.RequestPhase, code int, at time.Time) error {
	status := models.RequestStatus{Phase: phase, HTTPCode: code}
	if err := d.store.MarkRequestResult(ctx, req.ID, status, at); err != nil {
		d.logger.Err(err).Str("func", "Dispatcher.mark").Str("request_id", req.ID).Msg("cannot record request result")
		return fmt.Errorf("record result of %s: %w", req.ID, err)
	}
	req.Status, req.LastAttemptAt = status, &at
	return nil
}

// Stop makes RunCycle return before its next request.
func (d *Dispatcher) Stop() { d.stopped.Store(true) }

// Resume clears a previous Stop.
func (d *Dispatcher) Resume() { d.stopped.Store(false) }

// dropQueued removes follow-ups that duplicate a queued request other than
// the one being answered, or each other.
func dropQueued(ctx context.Context, tx store.LocalStore, answered string, reqs []*models.SyncRequest) ([]*models.SyncRequest, error) {
	if len(reqs) == 0 {
		return reqs, nil
	}
	queued, err := tx.ListQueued(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(queued)+len(reqs))
	for _, q := range queued {
		if q.ID == answered {
			continue
		}
		seen[dedupeKey(q)] = struct{}{}
	}

	out := reqs[:0]
	for _, r := range reqs {
		sig := dedupeKey(r)
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}
		out = append(out, r)
	}
	return out, nil
}

// dedupeKey extends the signature with the body for requests whose path
// alone does not say what they change.
func dedupeKey(r *models.SyncRequest) string {
	if r.Mutates() {
		return r.Signature() + " " + string(r.Body)
	}
	return r.Signature()
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody]
	}
	return s
}
