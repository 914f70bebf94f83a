package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-ref-sync/models"
)

func scanRequest(row rowScanner) (*models.SyncRequest, error) {
	var (
		r                       models.SyncRequest
		kind, method, shape     string
		rewriteKey, rewriteType string
		targetType, phase       string
		createdAt               int64
		lastAttempt             sql.NullInt64
	)

	err := row.Scan(&r.ID, &kind, &method, &r.PathAndQuery, &r.Body, &r.ContentType, &r.Precondition, &shape,
		&rewriteKey, &rewriteType, &targetType, &r.Target.Key, &phase, &r.Status.HTTPCode,
		&createdAt, &lastAttempt)
	if err != nil {
		return nil, err
	}

	r.Kind = models.RequestKind(kind)
	r.Method = models.Method(method)
	r.ResponseShape = models.ResponseShape(shape)
	r.Target.Type = models.EntityType(targetType)
	r.Status.Phase = models.RequestPhase(phase)
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	if rewriteKey != "" {
		r.KeyRewrite = &models.KeyRewrite{PlaceholderKey: rewriteKey, EntityType: models.EntityType(rewriteType)}
	}
	if lastAttempt.Valid {
		at := time.Unix(0, lastAttempt.Int64).UTC()
		r.LastAttemptAt = &at
	}
	if len(r.Body) == 0 {
		r.Body = nil
	}

	return &r, nil
}

func (s *localStore) Enqueue(ctx context.Context, reqs ...*models.SyncRequest) error {
	for _, r := range reqs {
		if err := r.Validate(); err != nil {
			s.logger.Err(err).Str("func", "localStore.Enqueue").Str("request_id", r.ID).Msg("refusing invalid request")
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}

	return s.InTx(ctx, func(tx LocalStore) error {
		ls := tx.(*localStore)
		for _, r := range reqs {
			query, args, err := buildEnqueueQuery(r)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
			}
			if _, err = ls.exec(ctx, "localStore.Enqueue", query, args...); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *localStore) Dequeue(ctx context.Context, skip ...string) (*models.SyncRequest, error) {
	query, args, err := buildDequeueQuery(skip)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	r, err := scanRequest(s.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQueueEmpty
	}
	if err != nil {
		s.logger.Err(err).Str("func", "localStore.Dequeue").Msg("failed to read next request")
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return r, nil
}

func (s *localStore) ListQueued(ctx context.Context) ([]*models.SyncRequest, error) {
	query, args, err := buildListQueuedQuery()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Err(err).Str("func", "localStore.ListQueued").Msg("failed to list queued requests")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	out := make([]*models.SyncRequest, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			s.logger.Err(err).Str("func", "localStore.ListQueued").Msg("failed to scan request row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		out = append(out, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return out, nil
}

func (s *localStore) MarkRequestResult(ctx context.Context, id string, status models.RequestStatus, at time.Time) error {
	n, err := s.exec(ctx, "localStore.MarkRequestResult", markRequestResult,
		string(status.Phase), status.HTTPCode, at.UnixNano(), id)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	}
	return nil
}

func (s *localStore) RemoveRequest(ctx context.Context, id string) error {
	_, err := s.exec(ctx, "localStore.RemoveRequest", removeRequest, id)
	return err
}

func (s *localStore) RecordDeletion(ctx context.Context, d models.Deletion) error {
	_, err := s.exec(ctx, "localStore.RecordDeletion", recordDeletion, string(d.EntityType), d.Key, d.EntityTag)
	return err
}

func (s *localStore) ListDeletions(ctx context.Context) ([]models.Deletion, error) {
	rows, err := s.q.QueryContext(ctx, listDeletions)
	if err != nil {
		s.logger.Err(err).Str("func", "localStore.ListDeletions").Msg("failed to list deletions")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	out := make([]models.Deletion, 0)
	for rows.Next() {
		var (
			d models.Deletion
			t string
		)
		if err = rows.Scan(&t, &d.Key, &d.EntityTag); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		d.EntityType = models.EntityType(t)
		out = append(out, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return out, nil
}

func (s *localStore) ClearDeletion(ctx context.Context, t models.EntityType, key string) error {
	_, err := s.exec(ctx, "localStore.ClearDeletion", clearDeletion, string(t), key)
	return err
}
