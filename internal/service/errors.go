package service

import (
	"errors"
	"fmt"

	"github.com/MKhiriev/go-ref-sync/models"
)

var (
	ErrNoCredentials     = errors.New("no credentials available")
	ErrCycleLimitReached = errors.New("sync cycle reached its request limit")

	ErrHTTPStatus        = errors.New("server answered with an error status")
	ErrConflict          = errors.New("entity tag no longer matches the server")
	ErrMalformedResponse = errors.New("malformed response")

	ErrUnknownShape     = errors.New("unknown response shape")
	ErrNotSingleEntry   = errors.New("expected exactly one entry")
	ErrKeyMismatch      = errors.New("response entry does not match the requested entity")
	ErrUnsupportedType  = errors.New("operation not supported for entity type")
	ErrNoEntityTag      = errors.New("entity has no known entity tag")
	ErrNoConflict       = errors.New("no conflicted request for entity")
	ErrUnknownEntityKey = errors.New("entity with a server key is not cached locally")
)

// TransportError means no response was obtained. It ends the cycle.
type TransportError struct {
	RequestID string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request %s: transport: %v", e.RequestID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError is a non-conflict error status. Other requests of the cycle
// still run.
type HTTPError struct {
	RequestID string
	Code      int
	Body      string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("request %s: http %d", e.RequestID, e.Code)
	}
	return fmt.Sprintf("request %s: http %d: %s", e.RequestID, e.Code, e.Body)
}

func (e *HTTPError) Unwrap() error { return ErrHTTPStatus }

// ConflictError reports a failed precondition. The request stays queued
// until ReconfirmEdit or DiscardLocalEdit is called for Entity.
type ConflictError struct {
	RequestID string
	Entity    models.EntityRef
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("request %s: conflict on %s", e.RequestID, e.Entity)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// MalformedResponseError means a successful response could not be read
// as the expected shape.
type MalformedResponseError struct {
	RequestID string
	Shape     models.ResponseShape
	Err       error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("request %s: malformed %s response: %v", e.RequestID, e.Shape, e.Err)
}

func (e *MalformedResponseError) Unwrap() []error { return []error{ErrMalformedResponse, e.Err} }

func malformed(req *models.SyncRequest, err error) error {
	return &MalformedResponseError{RequestID: req.ID, Shape: req.ResponseShape, Err: err}
}

// errorKind classifies err for [models.EventError].
func errorKind(err error) models.ErrorKind {
	var (
		transportErr *TransportError
		httpErr      *HTTPError
		conflictErr  *ConflictError
		malformedErr *MalformedResponseError
	)
	switch {
	case errors.As(err, &transportErr):
		return models.ErrorKindTransport
	case errors.As(err, &conflictErr):
		return models.ErrorKindConflict
	case errors.As(err, &httpErr):
		return models.ErrorKindHTTP
	case errors.As(err, &malformedErr):
		return models.ErrorKindMalformed
	}
	return models.ErrorKindStore
}
