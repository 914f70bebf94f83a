// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

// Credentials stamp outgoing requests.
type Credentials struct {
	UserID string `json:"user_id"`
	APIKey string `json:"api_key"`
}

// EventType enumerates notifications emitted by the sync engine.
type EventType string

const (
	EventUpdated       EventType = "updated"
	EventBatchComplete EventType = "batch_complete"
	EventConflict      EventType = "conflict"
	EventError         EventType = "error"
)

// ErrorKind classifies failures carried by [EventError].
type ErrorKind string

const (
	ErrorKindTransport ErrorKind = "transport"
	ErrorKindHTTP      ErrorKind = "http"
	ErrorKindConflict  ErrorKind = "conflict"
	ErrorKindMalformed ErrorKind = "malformed_response"
	ErrorKindStore     ErrorKind = "store"
)

// Event is delivered on the engine's event channel.
type Event struct {
	Type      EventType `json:"type"`
	Entity    EntityRef `json:"entity,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Err       error     `json:"-"`
}

// SyncResult summarizes one run of the dispatcher.
type SyncResult struct {
	Sent      int `json:"sent"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Conflicts int `json:"conflicts"`
	FollowUps int `json:"follow_ups"`
	// Batched counts requests produced from local changes.
	Batched  int  `json:"batched"`
	UpToDate bool `json:"up_to_date"`
	Stopped  bool `json:"stopped"`
}
