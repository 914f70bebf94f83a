// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"errors"
	"fmt"
	"time"
)

// RequestKind is the purpose of a [SyncRequest]. It drives response
// interpretation, not just the HTTP verb.
type RequestKind string

const (
	KindListAllItems               RequestKind = "list_all_items"
	KindListCollectionItems        RequestKind = "list_collection_items"
	KindListItemChildren           RequestKind = "list_item_children"
	KindListCollections            RequestKind = "list_collections"
	KindFetchItemByKey             RequestKind = "fetch_item_by_key"
	KindCreateItems                RequestKind = "create_items"
	KindUpdateItem                 RequestKind = "update_item"
	KindDeleteItem                 RequestKind = "delete_item"
	KindAddCollectionMembership    RequestKind = "add_collection_membership"
	KindRemoveCollectionMembership RequestKind = "remove_collection_membership"
	KindCreateAttachments          RequestKind = "create_attachments"
	KindUpdateAttachment           RequestKind = "update_attachment"
	KindDeleteAttachment           RequestKind = "delete_attachment"
)

var knownKinds = map[RequestKind]struct{}{
	KindListAllItems: {}, KindListCollectionItems: {}, KindListItemChildren: {},
	KindListCollections: {}, KindFetchItemByKey: {}, KindCreateItems: {},
	KindUpdateItem: {}, KindDeleteItem: {}, KindAddCollectionMembership: {},
	KindRemoveCollectionMembership: {}, KindCreateAttachments: {},
	KindUpdateAttachment: {}, KindDeleteAttachment: {},
}

// Valid reports whether k is one of the declared kinds.
func (k RequestKind) Valid() bool {
	_, ok := knownKinds[k]
	return ok
}

// IsKeyOnly reports whether requests of this kind address a key-only path
// and therefore carry neither a precondition nor a key rewrite.
func (k RequestKind) IsKeyOnly() bool {
	return k == KindAddCollectionMembership || k == KindRemoveCollectionMembership
}

// Method is an HTTP verb used by the remote API.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
)

// ResponseShape tells the interpreter how to read a response body.
type ResponseShape string

const (
	ShapeStructuredFeed  ResponseShape = "feed"
	ShapeStructuredEntry ResponseShape = "entry"
	ShapeKeyList         ResponseShape = "keys"
	ShapeNone            ResponseShape = "none"
)

// RequestPhase is the lifecycle position of a request.
type RequestPhase string

const (
	PhaseNotYetSent RequestPhase = "not_yet_sent"
	PhaseSucceeded  RequestPhase = "succeeded"
	PhaseFailed     RequestPhase = "failed"
)

// RequestStatus pairs the lifecycle phase with the last HTTP code seen.
// HTTPCode is zero when no response was received.
type RequestStatus struct {
	Phase    RequestPhase `json:"phase"`
	HTTPCode int          `json:"http_code,omitempty"`
}

func (s RequestStatus) String() string {
	if s.HTTPCode == 0 {
		return string(s.Phase)
	}
	return fmt.Sprintf("%s (%d)", s.Phase, s.HTTPCode)
}

// ConflictStatusCode is returned when a precondition no longer matches the
// server's entity tag. Requests failed with it wait for the user.
const ConflictStatusCode = 412

// AwaitsResolution reports whether the request failed on a conflict and
// must not be retried automatically.
func (s RequestStatus) AwaitsResolution() bool {
	return s.Phase == PhaseFailed && s.HTTPCode == ConflictStatusCode
}

// KeyRewrite names the placeholder a creation request will replace.
type KeyRewrite struct {
	PlaceholderKey string     `json:"placeholder_key"`
	EntityType     EntityType `json:"entity_type"`
}

// SyncRequest is one queued or in-flight call against the remote API.
type SyncRequest struct {
	ID            string        `json:"id"`
	Kind          RequestKind   `json:"kind"`
	Method        Method        `json:"method"`
	PathAndQuery  string        `json:"path"`
	Body          []byte        `json:"body,omitempty"`
	ContentType   string        `json:"content_type,omitempty"`
	Precondition  string        `json:"precondition,omitempty"`
	ResponseShape ResponseShape `json:"response_shape"`
	KeyRewrite    *KeyRewrite   `json:"key_rewrite,omitempty"`
	// Target is the entity fetched, mutated or used as listing scope.
	Target        EntityRef     `json:"target"`
	Status        RequestStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	LastAttemptAt *time.Time    `json:"last_attempt_at,omitempty"`
}

// Mutates reports whether the request changes server state.
func (r *SyncRequest) Mutates() bool {
	return r.Method != MethodGet
}

// Signature identifies requests that would produce the same call.
func (r *SyncRequest) Signature() string {
	return string(r.Kind) + " " + string(r.Method) + " " + r.PathAndQuery
}

// Continuation copies r for the next page, replacing only the URL.
func (r *SyncRequest) Continuation(id, url string, now time.Time) *SyncRequest {
	return &SyncRequest{
		ID:            id,
		Kind:          r.Kind,
		Method:        r.Method,
		PathAndQuery:  url,
		ContentType:   r.ContentType,
		ResponseShape: r.ResponseShape,
		Target:        r.Target,
		Status:        RequestStatus{Phase: PhaseNotYetSent},
		CreatedAt:     now,
	}
}

var (
	ErrRequestNoID           = errors.New("sync request has no id")
	ErrRequestUnknownKind    = errors.New("sync request has unknown kind")
	ErrRequestNoPath         = errors.New("sync request has no path")
	ErrRequestBothGuards     = errors.New("mutating request carries both precondition and key rewrite")
	ErrRequestNoGuard        = errors.New("mutating request carries neither precondition nor key rewrite")
	ErrRequestGuardOnKeyOnly = errors.New("key-only request must not carry precondition or key rewrite")
)

// Validate checks the request against the precondition/key-rewrite rule.
func (r *SyncRequest) Validate() error {
	if r.ID == "" {
		return ErrRequestNoID
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrRequestUnknownKind, r.Kind)
	}
	if r.PathAndQuery == "" {
		return ErrRequestNoPath
	}
	if !r.Mutates() {
		return nil
	}

	hasPrecondition := r.Precondition != ""
	hasRewrite := r.KeyRewrite != nil
	switch {
	case r.Kind.IsKeyOnly():
		if hasPrecondition || hasRewrite {
			return fmt.Errorf("%w: %s", ErrRequestGuardOnKeyOnly, r.Kind)
		}
	case hasPrecondition && hasRewrite:
		return fmt.Errorf("%w: %s", ErrRequestBothGuards, r.Kind)
	case !hasPrecondition && !hasRewrite:
		return fmt.Errorf("%w: %s", ErrRequestNoGuard, r.Kind)
	}

	return nil
}
