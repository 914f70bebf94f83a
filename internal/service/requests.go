package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MKhiriev/go-ref-sync/internal/adapter"
	"github.com/MKhiriev/go-ref-sync/models"
)

const (
	contentJSON = "content=json"
	formatKeys  = "format=keys"

	contentTypeJSON = "application/json"
	contentTypeText = "text/plain"
)

// IDGenerator issues request ids and placeholder keys; *utils.UUIDGenerator
// satisfies it.
type IDGenerator interface {
	Generate() string
	PlaceholderKey() string
}

// requestBuilder turns engine intents into queued requests.
type requestBuilder struct {
	ids IDGenerator
	now func() time.Time
}

func newRequestBuilder(ids IDGenerator, now func() time.Time) *requestBuilder {
	return &requestBuilder{ids: ids, now: now}
}

func (b *requestBuilder) newRequest(kind models.RequestKind, method models.Method, path string, shape models.ResponseShape, target models.EntityRef) *models.SyncRequest {
	return &models.SyncRequest{
		ID:            b.ids.Generate(),
		Kind:          kind,
		Method:        method,
		PathAndQuery:  path,
		ResponseShape: shape,
		Target:        target,
		Status:        models.RequestStatus{Phase: models.PhaseNotYetSent},
		CreatedAt:     b.now().UTC(),
	}
}

func userPath(format string, args ...any) string {
	return "/users/" + adapter.UserIDToken + fmt.Sprintf(format, args...)
}

func esc(key string) string {
	return url.PathEscape(key)
}

func listing(path string, keys bool) (string, models.ResponseShape) {
	if keys {
		return path + "?" + formatKeys, models.ShapeKeyList
	}
	return path + "?" + contentJSON, models.ShapeStructuredFeed
}

func (b *requestBuilder) listAllItems(keys bool) *models.SyncRequest {
	path, shape := listing(userPath("/items/top"), keys)
	return b.newRequest(models.KindListAllItems, models.MethodGet, path, shape, models.EntityRef{})
}

func (b *requestBuilder) listCollectionItems(collectionKey string, keys bool) *models.SyncRequest {
	path, shape := listing(userPath("/collections/%s/items", esc(collectionKey)), keys)
	return b.newRequest(models.KindListCollectionItems, models.MethodGet, path, shape,
		models.EntityRef{Type: models.EntityCollection, Key: collectionKey})
}

func (b *requestBuilder) listItemChildren(itemKey string, keys bool) *models.SyncRequest {
	path, shape := listing(userPath("/items/%s/children", esc(itemKey)), keys)
	return b.newRequest(models.KindListItemChildren, models.MethodGet, path, shape,
		models.EntityRef{Type: models.EntityItem, Key: itemKey})
}

func (b *requestBuilder) listCollections() *models.SyncRequest {
	path, shape := listing(userPath("/collections"), false)
	return b.newRequest(models.KindListCollections, models.MethodGet, path, shape, models.EntityRef{})
}

// fetch reads one entity. Items and attachments share the items endpoint.
func (b *requestBuilder) fetch(ref models.EntityRef) *models.SyncRequest {
	segment := "items"
	if ref.Type == models.EntityCollection {
		segment = "collections"
	}
	path := userPath("/%s/%s?%s", segment, esc(ref.Key), contentJSON)
	return b.newRequest(models.KindFetchItemByKey, models.MethodGet, path, models.ShapeStructuredEntry, ref)
}

// scopeRequest repeats the listing of req's scope in the requested form.
func (b *requestBuilder) scopeRequest(req *models.SyncRequest, keys bool) *models.SyncRequest {
	switch req.Kind {
	case models.KindListCollectionItems:
		return b.listCollectionItems(req.Target.Key, keys)
	case models.KindListItemChildren:
		return b.listItemChildren(req.Target.Key, keys)
	default:
		return b.listAllItems(keys)
	}
}

// create builds the upload of a New item or attachment. The placeholder key
// is replaced once the response arrives.
func (b *requestBuilder) create(e models.Entity) (*models.SyncRequest, error) {
	body, err := creationBody(e)
	if err != nil {
		return nil, err
	}

	var (
		kind models.RequestKind
		path string
	)
	switch v := e.(type) {
	case *models.Item:
		kind, path = models.KindCreateItems, userPath("/items?%s", contentJSON)
	case *models.Attachment:
		kind, path = models.KindCreateAttachments, userPath("/items/%s/children?%s", esc(v.ParentKey), contentJSON)
	default:
		return nil, fmt.Errorf("%w: create %s", ErrUnsupportedType, e.Type())
	}

	req := b.newRequest(kind, models.MethodPost, path, models.ShapeStructuredEntry, models.RefOf(e))
	req.Body, req.ContentType = body, contentTypeJSON
	req.KeyRewrite = &models.KeyRewrite{PlaceholderKey: e.Meta().Key, EntityType: e.Type()}
	return req, nil
}

// update uploads a Dirty entity guarded by its entity tag.
func (b *requestBuilder) update(e models.Entity) (*models.SyncRequest, error) {
	kind := models.KindUpdateItem
	switch e.Type() {
	case models.EntityItem:
	case models.EntityAttachment:
		kind = models.KindUpdateAttachment
	default:
		return nil, fmt.Errorf("%w: update %s", ErrUnsupportedType, e.Type())
	}
	if e.Meta().EntityTag == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoEntityTag, models.RefOf(e))
	}

	body, err := entityPayload(e)
	if err != nil {
		return nil, err
	}

	req := b.newRequest(kind, models.MethodPut, userPath("/items/%s?%s", esc(e.Meta().Key), contentJSON),
		models.ShapeStructuredEntry, models.RefOf(e))
	req.Body, req.ContentType = body, contentTypeJSON
	req.Precondition = e.Meta().EntityTag
	return req, nil
}

func (b *requestBuilder) delete(d models.Deletion) (*models.SyncRequest, error) {
	kind := models.KindDeleteItem
	switch d.EntityType {
	case models.EntityItem:
	case models.EntityAttachment:
		kind = models.KindDeleteAttachment
	default:
		return nil, fmt.Errorf("%w: delete %s", ErrUnsupportedType, d.EntityType)
	}
	if d.EntityTag == "" {
		return nil, fmt.Errorf("%w: %s/%s", ErrNoEntityTag, d.EntityType, d.Key)
	}

	req := b.newRequest(kind, models.MethodDelete, userPath("/items/%s", esc(d.Key)), models.ShapeNone,
		models.EntityRef{Type: d.EntityType, Key: d.Key})
	req.Precondition = d.EntityTag
	return req, nil
}

func (b *requestBuilder) addMembership(collectionKey, itemKey string) *models.SyncRequest {
	req := b.newRequest(models.KindAddCollectionMembership, models.MethodPost,
		userPath("/collections/%s/items", esc(collectionKey)), models.ShapeNone,
		models.EntityRef{Type: models.EntityItem, Key: itemKey})
	req.Body, req.ContentType = []byte(itemKey), contentTypeText
	return req
}

func (b *requestBuilder) removeMembership(collectionKey, itemKey string) *models.SyncRequest {
	return b.newRequest(models.KindRemoveCollectionMembership, models.MethodDelete,
		userPath("/collections/%s/items/%s", esc(collectionKey), esc(itemKey)), models.ShapeNone,
		models.EntityRef{Type: models.EntityItem, Key: itemKey})
}

// entityPayload is the JSON representation sent for e. Cached raw content
// wins; otherwise a minimal object is built from the typed fields.
func entityPayload(e models.Entity) (json.RawMessage, error) {
	return payload(e, true)
}

// payload builds the body of an upload. Creations of attachments name
// their parent in the path, so withParent is false for them.
func payload(e models.Entity, withParent bool) (json.RawMessage, error) {
	switch v := e.(type) {
	case *models.Item:
		if len(v.Content) > 0 {
			return v.Content, nil
		}
		return json.Marshal(map[string]any{"itemType": orDefault(v.ItemType, "document"), "title": v.Title})
	case *models.Attachment:
		if len(v.Content) > 0 {
			return v.Content, nil
		}
		fields := map[string]any{"itemType": "attachment", "linkMode": "linked_url", "title": v.Title, "url": v.URL}
		if withParent && !models.IsPlaceholderKey(v.ParentKey) && v.ParentKey != "" {
			fields["parentItem"] = v.ParentKey
		}
		return json.Marshal(fields)
	}
	return nil, fmt.Errorf("%w: payload %s", ErrUnsupportedType, e.Type())
}

func creationBody(e models.Entity) ([]byte, error) {
	p, err := payload(e, false)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Items []json.RawMessage `json:"items"`
	}{Items: []json.RawMessage{p}})
}

// editedSince reports whether the local copy e no longer matches what the
// upload req sent, i.e. whether e was edited after req was built.
func editedSince(req *models.SyncRequest, e models.Entity) (bool, error) {
	var (
		body []byte
		err  error
	)
	if req.KeyRewrite != nil {
		body, err = creationBody(e)
	} else {
		body, err = entityPayload(e)
	}
	if err != nil {
		return false, err
	}
	return !sameJSON(body, req.Body), nil
}

func sameJSON(a, b []byte) bool {
	var ca, cb bytes.Buffer
	if json.Compact(&ca, a) != nil || json.Compact(&cb, b) != nil {
		return bytes.Equal(a, b)
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
