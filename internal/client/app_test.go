package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-ref-sync/internal/config"
	"github.com/MKhiriev/go-ref-sync/internal/logger"
	"github.com/MKhiriev/go-ref-sync/internal/service"
	"github.com/MKhiriev/go-ref-sync/models"
)

// syncBuffer is a bytes.Buffer safe for the event printer goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

const createdEntry = `<entry xmlns="http://www.w3.org/2005/Atom" xmlns:zapi="http://zotero.org/ns/api">
<title>Draft</title><updated>2026-02-01T00:00:00Z</updated>
<zapi:key>ABCD1234</zapi:key><zapi:itemType>book</zapi:itemType><zapi:numChildren>0</zapi:numChildren>
<content type="application/json" zapi:etag="e1">{"itemType":"book","title":"Draft"}</content>
</entry>`

func newTestApp(t *testing.T, handler http.HandlerFunc) (*App, *syncBuffer) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.ClientConfig{
		Credentials: models.Credentials{UserID: "u1", APIKey: "k"},
		Adapter:     config.ClientAdapter{BaseURL: srv.URL, RequestTimeout: 5 * time.Second},
		Storage:     config.ClientStorage{DB: config.ClientDB{DSN: filepath.Join(t.TempDir(), "client.db")}},
		Workers:     config.ClientWorkers{SyncInterval: time.Hour},
	}
	out := &syncBuffer{}
	app, err := NewApp(context.Background(), cfg, out, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app, out
}

func TestApp_CreateAndSync(t *testing.T) {
	app, out := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/users/u1/items" {
			w.Header().Set("Content-Type", "application/atom+xml")
			_, _ = w.Write([]byte(createdEntry))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	ctx := context.Background()

	key, err := app.CreateItem(ctx, "book", "Draft")
	require.NoError(t, err)
	assert.True(t, models.IsPlaceholderKey(key))

	require.NoError(t, app.PrintQueue(ctx))
	assert.Contains(t, out.String(), string(models.KindCreateItems))
	assert.Contains(t, out.String(), "not_yet_sent")

	res, err := app.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Contains(t, out.String(), "sent 1: 1 succeeded")

	require.NoError(t, app.RetitleItem(ctx, "ABCD1234", "Final"))
	queued, err := app.services.Engine.QueuedRequests(ctx)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, models.KindUpdateItem, queued[0].Kind)
	assert.JSONEq(t, `{"itemType":"book","title":"Final"}`, string(queued[0].Body))
}

func TestApp_SyncWithNothingQueued(t *testing.T) {
	app, out := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call %s %s", r.Method, r.URL)
	})

	res, err := app.Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, res.UpToDate)
	assert.Equal(t, "up to date\n", out.String())
}

func TestApp_EmptyQueue(t *testing.T) {
	app, out := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {})

	require.NoError(t, app.PrintQueue(context.Background()))
	assert.Equal(t, "queue is empty\n", out.String())
}

func TestApp_ResolveWithoutConflict(t *testing.T) {
	app, _ := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {})
	ctx := context.Background()

	key, err := app.CreateItem(ctx, "book", "x")
	require.NoError(t, err)

	err = app.Resolve(ctx, models.EntityRef{Type: models.EntityItem, Key: key}, true)
	assert.True(t, errors.Is(err, service.ErrNoConflict))
}

func TestApp_WatchUntilCancelled(t *testing.T) {
	app, out := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(createdEntry))
	})
	ctx, cancel := context.WithCancel(context.Background())

	_, err := app.CreateItem(ctx, "book", "Draft")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.Watch(ctx) }()

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("local changes uploaded")) ||
			bytes.Contains([]byte(out.String()), []byte("updated item/ABCD1234"))
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err = <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
}

func TestWithTitle(t *testing.T) {
	got, err := withTitle([]byte(`{"title":"old","itemType":"book"}`), "new")
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"new","itemType":"book"}`, string(got))

	got, err = withTitle(nil, "new")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = withTitle([]byte("{"), "new")
	assert.Error(t, err)
}

func TestFormatEvent(t *testing.T) {
	ref := models.EntityRef{Type: models.EntityItem, Key: "ABCD1234"}
	tests := []struct {
		ev   models.Event
		want string
	}{
		{models.Event{Type: models.EventUpdated, Entity: ref}, "updated item/ABCD1234"},
		{models.Event{Type: models.EventBatchComplete}, "local changes uploaded"},
		{models.Event{Type: models.EventConflict, Entity: ref}, "conflict on item/ABCD1234: run `resolve item ABCD1234` to keep your edit or add --discard"},
		{models.Event{Type: models.EventError, ErrorKind: models.ErrorKindHTTP, RequestID: "r1", Err: errors.New("http 500")}, "error (http) on request r1: http 500"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatEvent(tt.ev))
	}
}

func TestEventPrinter(t *testing.T) {
	events := make(chan models.Event, 1)
	out := &syncBuffer{}
	p := newEventPrinter(events, out)

	p.Stop()

	p.Start(context.Background())
	events <- models.Event{Type: models.EventBatchComplete}
	require.Eventually(t, func() bool { return out.String() != "" }, time.Second, 5*time.Millisecond)
	p.Stop()

	assert.Equal(t, "local changes uploaded\n", out.String())
}
