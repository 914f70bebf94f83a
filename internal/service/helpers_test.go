package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MKhiriev/go-ref-sync/internal/adapter"
	"github.com/MKhiriev/go-ref-sync/internal/config"
	"github.com/MKhiriev/go-ref-sync/internal/logger"
	"github.com/MKhiriev/go-ref-sync/internal/store"
	"github.com/MKhiriev/go-ref-sync/models"
)

var testCreds = StaticCredentials{UserID: "u1", APIKey: "k"}

type seqIDs struct {
	mu     sync.Mutex
	ids    int
	locals int
}

func (s *seqIDs) Generate() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids++
	return fmt.Sprintf("req-%04d", s.ids)
}

func (s *seqIDs) PlaceholderKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locals++
	return fmt.Sprintf("%s%04d", models.PlaceholderPrefix, s.locals)
}

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func newTestStore(t *testing.T) store.LocalStore {
	t.Helper()
	cfg := config.ClientStorage{DB: config.ClientDB{DSN: filepath.Join(t.TempDir(), "sync.db")}}
	st, err := store.NewClientStorages(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st.LocalStore
}

func testOptions(opts EngineOptions) EngineOptions {
	if opts.IDs == nil {
		opts.IDs = &seqIDs{}
	}
	if opts.Now == nil {
		opts.Now = newStepClock().Now
	}
	return opts
}

func newTestEngine(t *testing.T, transport adapter.Transport, creds CredentialProvider, opts EngineOptions) (*Engine, store.LocalStore) {
	t.Helper()
	st := newTestStore(t)
	return NewEngine(st, transport, creds, testOptions(opts), logger.Nop()), st
}

// newHTTPEngine runs the engine against a fake API served by handler.
func newHTTPEngine(t *testing.T, handler http.HandlerFunc, opts EngineOptions) (*Engine, store.LocalStore, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tr, err := adapter.NewHTTPTransport(config.ClientAdapter{BaseURL: srv.URL, RequestTimeout: 5 * time.Second}, logger.Nop())
	require.NoError(t, err)

	e, st := newTestEngine(t, tr, testCreds, opts)
	return e, st, srv
}

func seed(t *testing.T, st store.LocalStore, entities ...models.Entity) {
	t.Helper()
	err := st.InTx(context.Background(), func(tx store.LocalStore) error {
		for _, e := range entities {
			if err := tx.Upsert(context.Background(), e); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func cleanItem(key, etag, title string) *models.Item {
	return &models.Item{
		EntityMeta: models.EntityMeta{Key: key, EntityTag: etag, SyncState: models.StateClean, Timestamp: "2026-01-01T00:00:00Z"},
		Title:      title,
		ItemType:   "book",
	}
}

func collection(key, etag string, state models.SyncState, updated string) *models.Collection {
	return &models.Collection{
		EntityMeta: models.EntityMeta{Key: key, EntityTag: etag, SyncState: state, Timestamp: updated},
		Title:      "Reading list",
	}
}

// entryFixture renders one Atom entry as served by the API.
type entryFixture struct {
	Key         string
	Title       string
	ItemType    string
	ETag        string
	Updated     string
	NumChildren int
	Up          string
	Content     string
}

func (f entryFixture) xml() string {
	var b strings.Builder
	b.WriteString(`<entry xmlns="http://www.w3.org/2005/Atom" xmlns:zapi="http://zotero.org/ns/api">`)
	fmt.Fprintf(&b, "<title>%s</title>", f.Title)
	updated := f.Updated
	if updated == "" {
		updated = "2026-02-01T00:00:00Z"
	}
	fmt.Fprintf(&b, "<updated>%s</updated>", updated)
	fmt.Fprintf(&b, "<zapi:key>%s</zapi:key>", f.Key)
	if f.ItemType != "" {
		fmt.Fprintf(&b, "<zapi:itemType>%s</zapi:itemType>", f.ItemType)
		fmt.Fprintf(&b, "<zapi:numChildren>%d</zapi:numChildren>", f.NumChildren)
	}
	if f.Up != "" {
		fmt.Fprintf(&b, `<link rel="up" type="application/atom+xml" href="%s"/>`, f.Up)
	}
	content := f.Content
	if content == "" {
		content = fmt.Sprintf(`{"title":"%s"}`, f.Title)
	}
	fmt.Fprintf(&b, `<content type="application/json" zapi:etag="%s">%s</content>`, f.ETag, content)
	b.WriteString("</entry>")
	return b.String()
}

func itemEntry(key, etag, title string) entryFixture {
	return entryFixture{Key: key, Title: title, ItemType: "book", ETag: etag}
}

func atomFeed(next string, entries ...entryFixture) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<feed xmlns="http://www.w3.org/2005/Atom" xmlns:zapi="http://zotero.org/ns/api"><title>Items</title>`)
	if next != "" {
		fmt.Fprintf(&b, `<link rel="next" type="application/atom+xml" href="%s"/>`, next)
	}
	for _, e := range entries {
		b.WriteString(e.xml())
	}
	b.WriteString("</feed>")
	return b.String()
}

func writeAtom(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/atom+xml")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// drainEvents returns the events published so far.
func drainEvents(e *Engine) []models.Event {
	var out []models.Event
	for {
		select {
		case ev := <-e.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func countEvents(events []models.Event, typ models.EventType) int {
	n := 0
	for _, ev := range events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}
