package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MKhiriev/go-ref-sync/models"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(t models.EntityType, row rowScanner) (models.Entity, error) {
	var (
		state   string
		content sql.NullString
	)

	switch t {
	case models.EntityItem:
		it := &models.Item{}
		err := row.Scan(&it.Key, &it.EntityTag, &state, &it.Timestamp, &it.Title, &it.ItemType,
			&it.Year, &it.CreatorSummary, &it.NumChildren, &content)
		if err != nil {
			return nil, err
		}
		it.SyncState, it.Content = models.SyncState(state), rawJSON(content)
		return it, nil
	case models.EntityCollection:
		c := &models.Collection{}
		err := row.Scan(&c.Key, &c.EntityTag, &state, &c.Timestamp, &c.Title, &c.ParentKey, &content)
		if err != nil {
			return nil, err
		}
		c.SyncState, c.Content = models.SyncState(state), rawJSON(content)
		return c, nil
	case models.EntityAttachment:
		a := &models.Attachment{}
		err := row.Scan(&a.Key, &a.EntityTag, &state, &a.Timestamp, &a.ParentKey, &a.Title, &a.URL, &content)
		if err != nil {
			return nil, err
		}
		a.SyncState, a.Content = models.SyncState(state), rawJSON(content)
		return a, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, t)
}

func (s *localStore) Get(ctx context.Context, t models.EntityType, key string) (models.Entity, error) {
	query, args, err := buildGetEntityQuery(t, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	e, err := scanEntity(t, s.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", ErrEntityNotFound, t, key)
	}
	if err != nil {
		s.logger.Err(err).Str("func", "localStore.Get").Str("type", string(t)).Str("key", key).Msg("failed to read entity")
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return e, nil
}

func (s *localStore) ListByState(ctx context.Context, t models.EntityType, states ...models.SyncState) ([]models.Entity, error) {
	query, args, err := buildListByStateQuery(t, states)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Err(err).Str("func", "localStore.ListByState").Str("type", string(t)).Msg("failed to list entities")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	out := make([]models.Entity, 0)
	for rows.Next() {
		e, err := scanEntity(t, rows)
		if err != nil {
			s.logger.Err(err).Str("func", "localStore.ListByState").Msg("failed to scan entity row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		out = append(out, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return out, nil
}

func (s *localStore) ListDirty(ctx context.Context, t models.EntityType) ([]models.Entity, error) {
	return s.ListByState(ctx, t, models.StateDirty, models.StateNew)
}

func (s *localStore) Upsert(ctx context.Context, e models.Entity) error {
	if err := models.ValidateEntity(e); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, err)
	}

	query, args, err := buildUpsertEntityQuery(e)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	_, err = s.exec(ctx, "localStore.Upsert", query, args...)
	return err
}

func (s *localStore) Delete(ctx context.Context, t models.EntityType, key string) error {
	query, args, err := buildDeleteEntityQuery(t, key)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	return s.InTx(ctx, func(tx LocalStore) error {
		ls := tx.(*localStore)
		if _, err := ls.exec(ctx, "localStore.Delete", query, args...); err != nil {
			return err
		}

		switch t {
		case models.EntityItem:
			if _, err := ls.exec(ctx, "localStore.Delete", membershipsOfItem, key); err != nil {
				return err
			}
			if _, err := ls.exec(ctx, "localStore.Delete", attachmentsOfItem, key); err != nil {
				return err
			}
		case models.EntityCollection:
			if _, err := ls.exec(ctx, "localStore.Delete", membershipsOfColl, key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *localStore) RenameKey(ctx context.Context, t models.EntityType, oldKey, newKey string) error {
	if oldKey == newKey {
		return nil
	}
	query, args, err := buildRenameEntityQuery(t, oldKey, newKey)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	return s.InTx(ctx, func(tx LocalStore) error {
		ls := tx.(*localStore)
		if _, err := ls.Get(ctx, t, newKey); err == nil {
			return fmt.Errorf("%w: %s %s", ErrKeyTaken, t, newKey)
		} else if !errors.Is(err, ErrEntityNotFound) {
			return err
		}

		n, err := ls.exec(ctx, "localStore.RenameKey", query, args...)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s %s", ErrEntityNotFound, t, oldKey)
		}

		var relinks []string
		switch t {
		case models.EntityItem:
			relinks = []string{renameItemMember, renameAttachParent}
		case models.EntityCollection:
			relinks = []string{renameCollMember, renameCollParent}
		}
		for _, stmt := range relinks {
			if _, err = ls.exec(ctx, "localStore.RenameKey", stmt, newKey, oldKey); err != nil {
				return err
			}
		}

		if _, err = ls.exec(ctx, "localStore.RenameKey", renameDeletion, newKey, string(t), oldKey); err != nil {
			return err
		}
		_, err = ls.exec(ctx, "localStore.RenameKey", renameInRequests, oldKey, newKey)
		return err
	})
}

func (s *localStore) AddMembership(ctx context.Context, collectionKey, itemKey string) error {
	_, err := s.exec(ctx, "localStore.AddMembership", addMembership, collectionKey, itemKey)
	return err
}

func (s *localStore) RemoveMembership(ctx context.Context, collectionKey, itemKey string) error {
	_, err := s.exec(ctx, "localStore.RemoveMembership", removeMembership, collectionKey, itemKey)
	return err
}

func (s *localStore) CollectionMembers(ctx context.Context, collectionKey string) ([]string, error) {
	return s.queryStrings(ctx, "localStore.CollectionMembers", collectionMembers, collectionKey)
}

func (s *localStore) ItemCollections(ctx context.Context, itemKey string) ([]string, error) {
	return s.queryStrings(ctx, "localStore.ItemCollections", itemCollections, itemKey)
}

func (s *localStore) ChildAttachments(ctx context.Context, itemKey string) ([]*models.Attachment, error) {
	query, args, err := buildChildAttachmentsQuery(itemKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Err(err).Str("func", "localStore.ChildAttachments").Str("item_key", itemKey).Msg("failed to list attachments")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	out := make([]*models.Attachment, 0)
	for rows.Next() {
		e, err := scanEntity(models.EntityAttachment, rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
		}
		out = append(out, e.(*models.Attachment))
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return out, nil
}
