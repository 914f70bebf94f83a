package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-ref-sync/internal/adapter"
	"github.com/MKhiriev/go-ref-sync/internal/store"
	"github.com/MKhiriev/go-ref-sync/models"
)

// recorder keeps the calls seen by a fake API.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, req.Method+" "+req.URL.Path)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestEngine_PaginatedListingDrainsInOneCycle(t *testing.T) {
	rec := &recorder{}
	var srvURL string
	e, st, srv := newHTTPEngine(t, func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		assert.Equal(t, "/users/u1/collections/COLL0001/items", r.URL.Path)
		assert.Equal(t, "k", r.URL.Query().Get("key"))

		page := r.URL.Query().Get("start")
		switch page {
		case "":
			writeAtom(w, http.StatusOK, atomFeed(srvURL+r.URL.Path+"?content=json&start=1&key=k", itemEntry("ITEM0001", "e1", "one")))
		case "1":
			writeAtom(w, http.StatusOK, atomFeed(srvURL+r.URL.Path+"?content=json&start=2&key=k", itemEntry("ITEM0002", "e2", "two")))
		default:
			writeAtom(w, http.StatusOK, atomFeed("", itemEntry("ITEM0003", "e3", "three")))
		}
	}, EngineOptions{})
	srvURL = srv.URL

	ctx := context.Background()
	seed(t, st, collection("COLL0001", "c1", models.StateMissing, ""))
	require.NoError(t, st.Enqueue(ctx, e.requests.listCollectionItems("COLL0001", false)))

	res, err := e.RunSyncCycle(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Sent)
	assert.Equal(t, 3, res.Succeeded)
	assert.Equal(t, 2, res.FollowUps)
	assert.True(t, res.UpToDate)
	assert.Len(t, rec.all(), 3)

	members, err := st.CollectionMembers(ctx, "COLL0001")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ITEM0001", "ITEM0002", "ITEM0003"}, members)
	assert.Equal(t, models.StateClean, getEntity(t, st, models.EntityCollection, "COLL0001").Meta().SyncState)

	queued, err := e.QueuedRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, queued)
}

func TestEngine_NewItemGetsServerKey(t *testing.T) {
	rec := &recorder{}
	var membershipBody atomic.Value
	e, st, _ := newHTTPEngine(t, func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		switch r.Method + " " + r.URL.Path {
		case "POST /users/u1/items":
			assert.NotEmpty(t, r.Header.Get(adapter.HeaderWriteToken))
			assert.Empty(t, r.Header.Get(adapter.HeaderIfMatch))
			writeAtom(w, http.StatusOK, itemEntry("ABCD1234", "e1", "Draft").xml())
		case "POST /users/u1/items/ABCD1234/children":
			writeAtom(w, http.StatusOK, entryFixture{
				Key: "ATTA0001", Title: "PDF", ItemType: "attachment", ETag: "a1",
				Up: "https://api.example.org/users/u1/items/ABCD1234",
			}.xml())
		case "POST /users/u1/collections/COLL0001/items":
			b, _ := io.ReadAll(r.Body)
			membershipBody.Store(string(b))
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}, EngineOptions{})

	ctx := context.Background()
	seed(t, st, collection("COLL0001", "c1", models.StateClean, ""))

	draft := &models.Item{Title: "Draft", ItemType: "book"}
	require.NoError(t, e.EnqueueUserEdit(ctx, draft))
	placeholder := draft.Key
	require.True(t, models.IsPlaceholderKey(placeholder))

	require.NoError(t, e.AddToCollection(ctx, "COLL0001", placeholder))
	require.NoError(t, e.EnqueueUserEdit(ctx, &models.Attachment{ParentKey: placeholder, Title: "PDF", URL: "https://example.org/p.pdf"}))

	queued, err := e.QueuedRequests(ctx)
	require.NoError(t, err)
	require.Len(t, queued, 2, "membership of a placeholder waits for the server key")

	res, err := e.RunSyncCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Sent)
	assert.Equal(t, 3, res.Succeeded)
	assert.True(t, res.UpToDate)

	assert.Equal(t, []string{
		"POST /users/u1/items",
		"POST /users/u1/items/ABCD1234/children",
		"POST /users/u1/collections/COLL0001/items",
	}, rec.all())
	assert.Equal(t, "ABCD1234", membershipBody.Load())

	item := getEntity(t, st, models.EntityItem, "ABCD1234")
	assert.Equal(t, models.StateClean, item.Meta().SyncState)
	assert.Equal(t, "e1", item.Meta().EntityTag)

	_, err = st.Get(ctx, models.EntityItem, placeholder)
	assert.ErrorIs(t, err, store.ErrEntityNotFound)

	att := getEntity(t, st, models.EntityAttachment, "ATTA0001").(*models.Attachment)
	assert.Equal(t, "ABCD1234", att.ParentKey)
	assert.Equal(t, models.StateClean, att.SyncState)

	members, err := st.CollectionMembers(ctx, "COLL0001")
	require.NoError(t, err)
	assert.Equal(t, []string{"ABCD1234"}, members)
}

func TestEngine_HTTPErrorDoesNotStopCycle(t *testing.T) {
	e, st, _ := newHTTPEngine(t, func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path[len("/users/u1/items/"):]
		if key == "ITEM0002" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		writeAtom(w, http.StatusOK, itemEntry(key, "e-"+key, key).xml())
	}, EngineOptions{})

	ctx := context.Background()
	for n := 1; n <= 5; n++ {
		ref := models.EntityRef{Type: models.EntityItem, Key: fmt.Sprintf("ITEM%04d", n)}
		require.NoError(t, st.Enqueue(ctx, e.requests.fetch(ref)))
	}

	res, err := e.RunSyncCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Sent)
	assert.Equal(t, 4, res.Succeeded)
	assert.Equal(t, 1, res.Failed)

	for _, key := range []string{"ITEM0001", "ITEM0003", "ITEM0004", "ITEM0005"} {
		assert.Equal(t, models.StateClean, getEntity(t, st, models.EntityItem, key).Meta().SyncState)
	}

	queued, err := e.QueuedRequests(ctx)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, "ITEM0002", queued[0].Target.Key)
	assert.Equal(t, models.RequestStatus{Phase: models.PhaseFailed, HTTPCode: http.StatusInternalServerError}, queued[0].Status)
	assert.NotNil(t, queued[0].LastAttemptAt)

	events := drainEvents(e)
	assert.Equal(t, 4, countEvents(events, models.EventUpdated))
	require.Equal(t, 1, countEvents(events, models.EventError))
	for _, ev := range events {
		if ev.Type != models.EventError {
			continue
		}
		assert.Equal(t, models.ErrorKindHTTP, ev.ErrorKind)
		var herr *HTTPError
		require.ErrorAs(t, ev.Err, &herr)
		assert.Equal(t, http.StatusInternalServerError, herr.Code)
		assert.Equal(t, "boom", herr.Body)
	}
}

// conflictServer answers PUTs with 412 until the client presents the
// tag it serves on GET.
type conflictServer struct {
	mu       sync.Mutex
	ifMatch  []string
	puts     int
	current  string
	title    string
	accepted string
}

func (s *conflictServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		writeAtom(w, http.StatusOK, itemEntry("ABCD1234", s.current, s.title).xml())
	case http.MethodPut:
		s.puts++
		tag := r.Header.Get(adapter.HeaderIfMatch)
		s.ifMatch = append(s.ifMatch, tag)
		if tag != s.current {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		s.current = s.accepted
		writeAtom(w, http.StatusOK, itemEntry("ABCD1234", s.current, "Mine").xml())
	}
}

func (s *conflictServer) seen() (puts int, ifMatch []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts, append([]string(nil), s.ifMatch...)
}

func setupConflict(t *testing.T) (*Engine, store.LocalStore, *conflictServer) {
	t.Helper()
	srv := &conflictServer{current: "e2", title: "Theirs", accepted: "e3"}
	e, st, _ := newHTTPEngine(t, srv.handle, EngineOptions{})

	ctx := context.Background()
	seed(t, st, cleanItem("ABCD1234", "e1", "Old"))
	require.NoError(t, e.EnqueueUserEdit(ctx, &models.Item{
		EntityMeta: models.EntityMeta{Key: "ABCD1234"},
		Title:      "Mine",
		ItemType:   "book",
	}))

	res, err := e.RunSyncCycle(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Conflicts)
	return e, st, srv
}

func TestEngine_ConflictLeavesEntityUntouched(t *testing.T) {
	e, st, srv := setupConflict(t)
	ctx := context.Background()

	item := getEntity(t, st, models.EntityItem, "ABCD1234").(*models.Item)
	assert.Equal(t, models.StateDirty, item.SyncState)
	assert.Equal(t, "e1", item.EntityTag)
	assert.Equal(t, "Mine", item.Title)

	queued, err := e.QueuedRequests(ctx)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.True(t, queued[0].Status.AwaitsResolution())

	events := drainEvents(e)
	require.Equal(t, 1, countEvents(events, models.EventConflict))
	var cerr *ConflictError
	require.ErrorAs(t, events[0].Err, &cerr)
	assert.Equal(t, models.EntityRef{Type: models.EntityItem, Key: "ABCD1234"}, cerr.Entity)

	// nothing is retried until the user decides
	res, err := e.RunSyncCycle(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Sent)
	assert.True(t, res.UpToDate)
	puts, _ := srv.seen()
	assert.Equal(t, 1, puts)

	// further edits are saved but not queued
	require.NoError(t, e.EnqueueUserEdit(ctx, &models.Item{
		EntityMeta: models.EntityMeta{Key: "ABCD1234"},
		Title:      "Mine again",
		ItemType:   "book",
	}))
	queued, err = e.QueuedRequests(ctx)
	require.NoError(t, err)
	assert.Len(t, queued, 1)
}

func TestEngine_ReconfirmEditUploadsWithFreshTag(t *testing.T) {
	e, st, srv := setupConflict(t)
	ctx := context.Background()

	require.NoError(t, e.ReconfirmEdit(ctx, models.EntityRef{Type: models.EntityItem, Key: "ABCD1234"}))
	assert.Equal(t, models.StateAttemptedNotConfirmed, getEntity(t, st, models.EntityItem, "ABCD1234").Meta().SyncState)
	drainEvents(e)

	res, err := e.RunSyncCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 1, res.Batched)
	assert.False(t, res.UpToDate)

	item := getEntity(t, st, models.EntityItem, "ABCD1234").(*models.Item)
	assert.Equal(t, models.StateClean, item.SyncState)
	assert.Equal(t, "e3", item.EntityTag)
	assert.Equal(t, "Mine", item.Title)

	_, ifMatch := srv.seen()
	assert.Equal(t, []string{"e1", "e2"}, ifMatch)
	assert.Equal(t, 1, countEvents(drainEvents(e), models.EventBatchComplete))
}

func TestEngine_DiscardLocalEditTakesServerCopy(t *testing.T) {
	e, st, srv := setupConflict(t)
	ctx := context.Background()

	require.NoError(t, e.DiscardLocalEdit(ctx, models.EntityRef{Type: models.EntityItem, Key: "ABCD1234"}))

	res, err := e.RunSyncCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.True(t, res.UpToDate)

	item := getEntity(t, st, models.EntityItem, "ABCD1234").(*models.Item)
	assert.Equal(t, models.StateClean, item.SyncState)
	assert.Equal(t, "e2", item.EntityTag)
	assert.Equal(t, "Theirs", item.Title)
	puts, _ := srv.seen()
	assert.Equal(t, 1, puts)
}

func TestEngine_ResolveWithoutConflict(t *testing.T) {
	e, st := newTestEngine(t, nil, testCreds, EngineOptions{})
	seed(t, st, cleanItem("ABCD1234", "e1", "Old"))

	err := e.ReconfirmEdit(context.Background(), models.EntityRef{Type: models.EntityItem, Key: "ABCD1234"})
	assert.ErrorIs(t, err, ErrNoConflict)
}

func TestEngine_DeletionRoundTrip(t *testing.T) {
	var ifMatch atomic.Value
	e, st, _ := newHTTPEngine(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/users/u1/items/ITEM0001", r.URL.Path)
		ifMatch.Store(r.Header.Get(adapter.HeaderIfMatch))
		w.WriteHeader(http.StatusNoContent)
	}, EngineOptions{})

	ctx := context.Background()
	seed(t, st, cleanItem("ITEM0001", "e1", "gone"))
	ref := models.EntityRef{Type: models.EntityItem, Key: "ITEM0001"}
	require.NoError(t, e.EnqueueDeletion(ctx, ref))

	_, err := st.Get(ctx, ref.Type, ref.Key)
	assert.ErrorIs(t, err, store.ErrEntityNotFound)

	res, err := e.RunSyncCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, "e1", ifMatch.Load())

	deletions, err := st.ListDeletions(ctx)
	require.NoError(t, err)
	assert.Empty(t, deletions)
}

func TestEngine_DeletingNewEntityStaysLocal(t *testing.T) {
	e, st := newTestEngine(t, nil, testCreds, EngineOptions{})
	ctx := context.Background()

	draft := &models.Item{Title: "Draft"}
	require.NoError(t, e.EnqueueUserEdit(ctx, draft))
	require.NoError(t, e.EnqueueDeletion(ctx, models.RefOf(draft)))

	queued, err := e.QueuedRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, queued)

	deletions, err := st.ListDeletions(ctx)
	require.NoError(t, err)
	assert.Empty(t, deletions)
}

func TestEngine_EditDuringCreationIsUploaded(t *testing.T) {
	var (
		e           *Engine
		placeholder string
		posts, puts atomic.Int32
		ifMatch     atomic.Value
		putBody     atomic.Value
	)
	e, st, _ := newHTTPEngine(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "POST /users/u1/items":
			posts.Add(1)
			// the user keeps typing while the creation is on the wire
			assert.NoError(t, e.EnqueueUserEdit(context.Background(), &models.Item{
				EntityMeta: models.EntityMeta{Key: placeholder},
				Title:      "Draft v2",
				ItemType:   "book",
			}))
			writeAtom(w, http.StatusOK, itemEntry("ABCD1234", "e1", "Draft").xml())
		case "PUT /users/u1/items/ABCD1234":
			puts.Add(1)
			ifMatch.Store(r.Header.Get(adapter.HeaderIfMatch))
			b, _ := io.ReadAll(r.Body)
			putBody.Store(string(b))
			writeAtom(w, http.StatusOK, itemEntry("ABCD1234", "e2", "Draft v2").xml())
		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}, EngineOptions{})

	ctx := context.Background()
	draft := &models.Item{Title: "Draft", ItemType: "book"}
	require.NoError(t, e.EnqueueUserEdit(ctx, draft))
	placeholder = draft.Key

	res, err := e.RunSyncCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 1, res.Batched)

	assert.Equal(t, int32(1), posts.Load(), "the edit must not create a second item")
	assert.Equal(t, int32(1), puts.Load())
	assert.Equal(t, "e1", ifMatch.Load())
	assert.Contains(t, putBody.Load(), "Draft v2")

	item := getEntity(t, st, models.EntityItem, "ABCD1234").(*models.Item)
	assert.Equal(t, models.StateClean, item.SyncState)
	assert.Equal(t, "e2", item.EntityTag)
	assert.Equal(t, "Draft v2", item.Title)

	_, err = st.Get(ctx, models.EntityItem, placeholder)
	assert.ErrorIs(t, err, store.ErrEntityNotFound)
	queued, err := e.QueuedRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, queued)
}

func TestEngine_EditDuringUpdateIsUploaded(t *testing.T) {
	var (
		e       *Engine
		puts    atomic.Int32
		mu      sync.Mutex
		ifMatch []string
		bodies  []string
	)
	e, st, _ := newHTTPEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if !assert.Equal(t, "PUT /users/u1/items/ITEM0001", r.Method+" "+r.URL.Path) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		ifMatch = append(ifMatch, r.Header.Get(adapter.HeaderIfMatch))
		bodies = append(bodies, string(b))
		mu.Unlock()

		if puts.Add(1) == 1 {
			assert.NoError(t, e.EnqueueUserEdit(context.Background(), &models.Item{
				EntityMeta: models.EntityMeta{Key: "ITEM0001"},
				Title:      "edit v2",
				ItemType:   "book",
			}))
			writeAtom(w, http.StatusOK, itemEntry("ITEM0001", "e2", "edit v1").xml())
			return
		}
		writeAtom(w, http.StatusOK, itemEntry("ITEM0001", "e3", "edit v2").xml())
	}, EngineOptions{})

	ctx := context.Background()
	seed(t, st, cleanItem("ITEM0001", "e1", "v0"))
	require.NoError(t, e.EnqueueUserEdit(ctx, &models.Item{EntityMeta: models.EntityMeta{Key: "ITEM0001"}, Title: "edit v1", ItemType: "book"}))

	res, err := e.RunSyncCycle(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Conflicts)
	assert.Equal(t, 2, res.Succeeded)

	mu.Lock()
	assert.Equal(t, []string{"e1", "e2"}, ifMatch)
	require.Len(t, bodies, 2)
	assert.Contains(t, bodies[0], "edit v1")
	assert.Contains(t, bodies[1], "edit v2")
	mu.Unlock()

	item := getEntity(t, st, models.EntityItem, "ITEM0001").(*models.Item)
	assert.Equal(t, models.StateClean, item.SyncState)
	assert.Equal(t, "e3", item.EntityTag)
	assert.Equal(t, "edit v2", item.Title)
}

func TestEngine_DeleteDuringCreationReachesServer(t *testing.T) {
	var (
		e           *Engine
		placeholder string
	)
	rec := &recorder{}
	var ifMatch atomic.Value
	e, st, _ := newHTTPEngine(t, func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		switch r.Method + " " + r.URL.Path {
		case "POST /users/u1/items":
			assert.NoError(t, e.EnqueueDeletion(context.Background(), models.EntityRef{Type: models.EntityItem, Key: placeholder}))
			writeAtom(w, http.StatusOK, itemEntry("ABCD1234", "e1", "Draft").xml())
		case "DELETE /users/u1/items/ABCD1234":
			ifMatch.Store(r.Header.Get(adapter.HeaderIfMatch))
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}, EngineOptions{})

	ctx := context.Background()
	draft := &models.Item{Title: "Draft"}
	require.NoError(t, e.EnqueueUserEdit(ctx, draft))
	placeholder = draft.Key

	res, err := e.RunSyncCycle(ctx)
	require.NoError(t, err)
	assert.True(t, res.UpToDate)
	assert.Equal(t, []string{"POST /users/u1/items", "DELETE /users/u1/items/ABCD1234"}, rec.all())
	assert.Equal(t, "e1", ifMatch.Load())

	for _, key := range []string{placeholder, "ABCD1234"} {
		_, err = st.Get(ctx, models.EntityItem, key)
		assert.ErrorIs(t, err, store.ErrEntityNotFound)
	}
	deletions, err := st.ListDeletions(ctx)
	require.NoError(t, err)
	assert.Empty(t, deletions)
}

// fakeItemServer keeps one item and answers uploads the way the API does:
// a stale If-Match gets 412, anything else bumps the version.
type fakeItemServer struct {
	mu        sync.Mutex
	version   int
	title     string
	conflicts int
}

func (s *fakeItemServer) tag() string { return fmt.Sprintf("e%d", s.version) }

func (s *fakeItemServer) put(t *testing.T, w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Header.Get(adapter.HeaderIfMatch) != s.tag() {
		s.conflicts++
		w.WriteHeader(http.StatusPreconditionFailed)
		return
	}
	var fields struct {
		Title string `json:"title"`
	}
	assert.NoError(t, json.NewDecoder(r.Body).Decode(&fields))
	s.version++
	s.title = fields.Title
	writeAtom(w, http.StatusOK, itemEntry("ITEM0001", s.tag(), s.title).xml())
}

func TestEngine_ConcurrentEditsConvergeOnNewest(t *testing.T) {
	srv := &fakeItemServer{version: 1, title: "v0"}
	e, st, _ := newHTTPEngine(t, func(w http.ResponseWriter, r *http.Request) {
		srv.put(t, w, r)
	}, EngineOptions{})

	ctx := context.Background()
	seed(t, st, cleanItem("ITEM0001", "e1", "v0"))

	const edits = 25
	done := make(chan struct{})
	go func() {
		defer close(done)
		for n := 1; n <= edits; n++ {
			err := e.EnqueueUserEdit(ctx, &models.Item{
				EntityMeta: models.EntityMeta{Key: "ITEM0001"},
				Title:      fmt.Sprintf("v%d", n),
				ItemType:   "book",
			})
			assert.NoError(t, err)
		}
	}()

	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		_, err := e.RunSyncCycle(ctx)
		require.NoError(t, err)
	}
	res, err := e.RunSyncCycle(ctx)
	require.NoError(t, err)
	assert.True(t, res.UpToDate)

	srv.mu.Lock()
	assert.Zero(t, srv.conflicts)
	assert.Equal(t, "v25", srv.title)
	serverTag := srv.tag()
	srv.mu.Unlock()

	item := getEntity(t, st, models.EntityItem, "ITEM0001").(*models.Item)
	assert.Equal(t, models.StateClean, item.SyncState)
	assert.Equal(t, serverTag, item.EntityTag)
	assert.Equal(t, "v25", item.Title)
}

func TestEngine_EnqueueUserEdit(t *testing.T) {
	ctx := context.Background()

	t.Run("collections are read only", func(t *testing.T) {
		e, _ := newTestEngine(t, nil, testCreds, EngineOptions{})
		err := e.EnqueueUserEdit(ctx, &models.Collection{Title: "x"})
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})

	t.Run("unknown server key", func(t *testing.T) {
		e, _ := newTestEngine(t, nil, testCreds, EngineOptions{})
		err := e.EnqueueUserEdit(ctx, &models.Item{EntityMeta: models.EntityMeta{Key: "ZZZZ9999"}, Title: "x"})
		assert.ErrorIs(t, err, ErrUnknownEntityKey)
	})

	t.Run("repeated edits keep one upload", func(t *testing.T) {
		e, st := newTestEngine(t, nil, testCreds, EngineOptions{})
		seed(t, st, cleanItem("ITEM0001", "e1", "v0"))

		for _, title := range []string{"v1", "v2", "v3"} {
			require.NoError(t, e.EnqueueUserEdit(ctx, &models.Item{EntityMeta: models.EntityMeta{Key: "ITEM0001"}, Title: title}))
		}

		queued, err := e.QueuedRequests(ctx)
		require.NoError(t, err)
		require.Len(t, queued, 1)
		assert.Equal(t, models.KindUpdateItem, queued[0].Kind)
		assert.Equal(t, "e1", queued[0].Precondition)
		assert.Contains(t, string(queued[0].Body), "v3")

		select {
		case <-e.Wake():
		default:
			t.Fatal("edit did not wake the sync job")
		}
	})

	t.Run("edits of a new item stay creations", func(t *testing.T) {
		e, st := newTestEngine(t, nil, testCreds, EngineOptions{})
		draft := &models.Item{Title: "a"}
		require.NoError(t, e.EnqueueUserEdit(ctx, draft))
		require.NoError(t, e.EnqueueUserEdit(ctx, &models.Item{EntityMeta: models.EntityMeta{Key: draft.Key}, Title: "b"}))

		queued, err := e.QueuedRequests(ctx)
		require.NoError(t, err)
		require.Len(t, queued, 1)
		assert.Equal(t, models.KindCreateItems, queued[0].Kind)
		assert.Equal(t, models.StateNew, getEntity(t, st, models.EntityItem, draft.Key).Meta().SyncState)
	})
}

func TestEngine_MembershipChanges(t *testing.T) {
	ctx := context.Background()
	e, st := newTestEngine(t, nil, testCreds, EngineOptions{})
	seed(t, st, collection("COLL0001", "c1", models.StateClean, ""), cleanItem("ITEM0001", "e1", "one"))

	require.NoError(t, e.AddToCollection(ctx, "COLL0001", "ITEM0001"))
	require.NoError(t, e.RemoveFromCollection(ctx, "COLL0001", "ITEM0001"))

	queued, err := e.QueuedRequests(ctx)
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.Equal(t, models.KindAddCollectionMembership, queued[0].Kind)
	assert.Equal(t, models.KindRemoveCollectionMembership, queued[1].Kind)
	assert.Equal(t, "/users/{userID}/collections/COLL0001/items/ITEM0001", queued[1].PathAndQuery)

	err = e.AddToCollection(ctx, "COLL0009", "ITEM0001")
	assert.ErrorIs(t, err, store.ErrEntityNotFound)
}

func TestEngine_RequestFullSyncDeduplicates(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, nil, testCreds, EngineOptions{})

	require.NoError(t, e.RequestFullSync(ctx))
	require.NoError(t, e.RequestFullSync(ctx))

	queued, err := e.QueuedRequests(ctx)
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.Equal(t, models.KindListCollections, queued[0].Kind)
	assert.Equal(t, models.KindListAllItems, queued[1].Kind)
	assert.Equal(t, models.ShapeKeyList, queued[1].ResponseShape)
}
