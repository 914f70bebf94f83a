// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EntityType identifies one of the locally cached record kinds.
type EntityType string

const (
	EntityItem       EntityType = "item"
	EntityCollection EntityType = "collection"
	EntityAttachment EntityType = "attachment"
)

// ParseEntityType converts a stored or user-supplied name into an [EntityType].
func ParseEntityType(s string) (EntityType, error) {
	switch t := EntityType(strings.ToLower(strings.TrimSpace(s))); t {
	case EntityItem, EntityCollection, EntityAttachment:
		return t, nil
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// SyncState describes how a cached entity relates to the server copy.
type SyncState string

const (
	// StateClean means the local copy matches the server.
	StateClean SyncState = "clean"
	// StateDirty means the entity is known to the server and has local edits pending upload.
	StateDirty SyncState = "dirty"
	// StateNew means the entity was created locally and never confirmed by the server.
	StateNew SyncState = "new"
	// StateMissing means the key was observed in a listing but the content was never fetched.
	StateMissing SyncState = "missing"
	// StateStale means the server lists a different timestamp than the cached copy.
	StateStale SyncState = "stale"
	// StateAttemptedNotConfirmed marks a re-confirmed edit waiting for a fresh entity tag.
	StateAttemptedNotConfirmed SyncState = "attempted"
)

const (
	// PlaceholderPrefix starts every locally generated key.
	PlaceholderPrefix = "local:"
	// CanonicalKeyLength is the length of server-assigned keys.
	CanonicalKeyLength = 8

	placeholderMinLength = 10
)

// IsPlaceholderKey reports whether key was generated locally.
func IsPlaceholderKey(key string) bool {
	return strings.HasPrefix(key, PlaceholderPrefix) || len(key) > placeholderMinLength
}

// EntityMeta holds the sync bookkeeping shared by every cached record.
type EntityMeta struct {
	Key       string    `json:"key"`
	EntityTag string    `json:"etag,omitempty"`
	SyncState SyncState `json:"sync_state"`
	Timestamp string    `json:"updated,omitempty"`
}

// Meta exposes the bookkeeping fields of any entity embedding [EntityMeta].
func (m *EntityMeta) Meta() *EntityMeta {
	return m
}

// HasContent reports whether the full representation has been fetched.
func (m *EntityMeta) HasContent() bool {
	return m.SyncState != StateMissing
}

// Entity is implemented by [Item], [Collection] and [Attachment].
type Entity interface {
	Type() EntityType
	Meta() *EntityMeta
}

// Item is a bibliographic reference.
type Item struct {
	EntityMeta
	Title          string          `json:"title"`
	ItemType       string          `json:"item_type"`
	Year           string          `json:"year,omitempty"`
	CreatorSummary string          `json:"creator_summary,omitempty"`
	NumChildren    int             `json:"num_children"`
	Content        json.RawMessage `json:"content,omitempty"`
}

func (*Item) Type() EntityType { return EntityItem }

// Collection groups items; ParentKey is empty for top-level collections.
type Collection struct {
	EntityMeta
	Title     string          `json:"title"`
	ParentKey string          `json:"parent_key,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
}

func (*Collection) Type() EntityType { return EntityCollection }

// Attachment is a child record (file, link or note) of an item.
type Attachment struct {
	EntityMeta
	ParentKey string          `json:"parent_key"`
	Title     string          `json:"title"`
	URL       string          `json:"url,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
}

func (*Attachment) Type() EntityType { return EntityAttachment }

// NewEntity returns an empty record of the given type.
func NewEntity(t EntityType) (Entity, error) {
	switch t {
	case EntityItem:
		return &Item{}, nil
	case EntityCollection:
		return &Collection{}, nil
	case EntityAttachment:
		return &Attachment{}, nil
	}
	return nil, fmt.Errorf("unknown entity type %q", t)
}

// EntityRef points at one cached record.
type EntityRef struct {
	Type EntityType `json:"type,omitempty"`
	Key  string     `json:"key,omitempty"`
}

// RefOf builds the reference of e.
func RefOf(e Entity) EntityRef {
	return EntityRef{Type: e.Type(), Key: e.Meta().Key}
}

func (r EntityRef) String() string {
	return string(r.Type) + "/" + r.Key
}

// IsZero reports whether the reference points nowhere.
func (r EntityRef) IsZero() bool {
	return r.Key == ""
}

// Membership links an item to a collection.
type Membership struct {
	CollectionKey string `json:"collection_key"`
	ItemKey       string `json:"item_key"`
}

// Deletion is a locally deleted entity whose removal has not been confirmed by the server.
type Deletion struct {
	EntityType EntityType `json:"entity_type"`
	Key        string     `json:"key"`
	EntityTag  string     `json:"etag"`
}

// ValidateEntity checks the key/tag invariants that depend on the sync state.
func ValidateEntity(e Entity) error {
	m := e.Meta()
	if m.Key == "" {
		return fmt.Errorf("%s without key", e.Type())
	}

	switch m.SyncState {
	case StateClean, StateDirty:
		if IsPlaceholderKey(m.Key) {
			return fmt.Errorf("%s %s is %s but has a placeholder key", e.Type(), m.Key, m.SyncState)
		}
		if m.EntityTag == "" {
			return fmt.Errorf("%s %s is %s but has no entity tag", e.Type(), m.Key, m.SyncState)
		}
	case StateNew:
		if !IsPlaceholderKey(m.Key) {
			return fmt.Errorf("new %s %s must carry a placeholder key", e.Type(), m.Key)
		}
		if m.EntityTag != "" {
			return fmt.Errorf("new %s %s must not carry an entity tag", e.Type(), m.Key)
		}
	case StateMissing, StateStale, StateAttemptedNotConfirmed:
	default:
		return fmt.Errorf("%s %s has unknown sync state %q", e.Type(), m.Key, m.SyncState)
	}

	return nil
}
