package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/MKhiriev/go-ref-sync/internal/config"
	"github.com/MKhiriev/go-ref-sync/internal/logger"
	"github.com/MKhiriev/go-ref-sync/internal/utils"
	"github.com/MKhiriev/go-ref-sync/models"
)

const (
	// UserIDToken is replaced by the credentials' user id before sending.
	UserIDToken = "{userID}"

	HeaderIfMatch    = "If-Match"
	HeaderWriteToken = "X-Zotero-Write-Token"

	keyParam           = "key"
	defaultContentType = "application/json"
)

type httpTransport struct {
	client *utils.HTTPClient
	logger *logger.Logger
}

// NewHTTPTransport constructs the HTTP implementation of [Transport] for the
// API at cfg.BaseURL. Continuation links handed back by the server are
// absolute and bypass the base URL.
func NewHTTPTransport(cfg config.ClientAdapter, logger *logger.Logger) (Transport, error) {
	baseURL, err := normalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}

	return &httpTransport{
		client: utils.NewHTTPClient(baseURL, cfg.RequestTimeout),
		logger: logger,
	}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// Send implements [Transport].
func (h *httpTransport) Send(ctx context.Context, req *models.SyncRequest, creds models.Credentials) (*Response, error) {
	target, err := resolveURL(req.PathAndQuery, creds)
	if err != nil {
		h.logger.Err(err).Str("func", "httpTransport.Send").Str("request_id", req.ID).Msg("cannot build request url")
		return nil, err
	}

	r := h.client.R().SetContext(ctx)
	if req.Precondition != "" {
		r.SetHeader(HeaderIfMatch, req.Precondition)
	}
	if req.Method == models.MethodPost {
		r.SetHeader(HeaderWriteToken, writeToken(req.ID))
	}
	if len(req.Body) > 0 {
		contentType := req.ContentType
		if contentType == "" {
			contentType = defaultContentType
		}
		r.SetHeader("Content-Type", contentType).SetBody(req.Body)
	}

	h.logger.Debug().
		Str("func", "httpTransport.Send").
		Str("request_id", req.ID).
		Str("method", string(req.Method)).
		Str("path", req.PathAndQuery).
		Msg("sending request")

	resp, err := r.Execute(string(req.Method), target)
	if err != nil {
		h.logger.Err(err).Str("func", "httpTransport.Send").Str("request_id", req.ID).Msg("request failed")
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, req.Method, req.PathAndQuery, err)
	}

	h.logger.Debug().
		Str("func", "httpTransport.Send").
		Str("request_id", req.ID).
		Int("status", resp.StatusCode()).
		Msg("response received")

	header := resp.Header()
	if header == nil {
		header = http.Header{}
	}

	return &Response{
		StatusCode: resp.StatusCode(),
		Header:     header,
		Body:       resp.Body(),
	}, nil
}

// resolveURL fills in the user id and appends the API key unless the URL
// already carries one, as continuation links do.
func resolveURL(raw string, creds models.Credentials) (string, error) {
	if strings.Contains(raw, UserIDToken) {
		if creds.UserID == "" {
			return "", fmt.Errorf("%w: %w", ErrTransport, ErrNoUserID)
		}
		raw = strings.ReplaceAll(raw, UserIDToken, url.PathEscape(creds.UserID))
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if creds.APIKey != "" {
		q := u.Query()
		if q.Get(keyParam) == "" {
			q.Set(keyParam, creds.APIKey)
			u.RawQuery = q.Encode()
		}
	}

	return u.String(), nil
}

// writeToken turns a request id into the 32 character token the API
// expects; retries of the same request reuse it.
func writeToken(id string) string {
	token := strings.ReplaceAll(id, "-", "")
	if len(token) > 32 {
		token = token[:32]
	}
	return token
}
