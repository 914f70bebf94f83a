// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package adapter carries queued sync requests to the reference API.
//
// The primary abstraction is [Transport], which decouples the sync engine
// from the protocol. The package ships an HTTP implementation
// ([NewHTTPTransport]) built on resty. A transport never retries and never
// interprets status codes: a response of any status is returned as a
// [Response], and only failures to obtain one are reported as errors
// wrapping [ErrTransport].
package adapter

import (
	"context"
	"net/http"

	"github.com/MKhiriev/go-ref-sync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/transport_mock.go -package=mock

// Transport sends one queued request with the given credentials.
type Transport interface {
	// Send substitutes the user id into the request path, attaches the API
	// key, the precondition and the write token, and performs the call.
	Send(ctx context.Context, req *models.SyncRequest, creds models.Credentials) (*Response, error)
}

// Response is the raw result of a request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}
