package store

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/MKhiriev/go-ref-sync/models"
)

// entityTable maps an entity type to its table and key column.
type entityTable struct {
	name   string
	keyCol string
	cols   []string
}

var (
	itemColumns       = []string{"item_key", "etag", "sync_state", "updated", "title", "item_type", "year", "creator_summary", "num_children", "content"}
	collectionColumns = []string{"collection_key", "etag", "sync_state", "updated", "title", "parent_key", "content"}
	attachmentColumns = []string{"attachment_key", "etag", "sync_state", "updated", "parent_key", "title", "url", "content"}

	requestColumns = []string{
		"id", "kind", "method", "path", "body", "content_type", "precondition", "response_shape",
		"rewrite_key", "rewrite_type", "target_type", "target_key", "phase", "http_code",
		"created_at", "last_attempt_at",
	}
)

var entityTables = map[models.EntityType]entityTable{
	models.EntityItem:       {name: "items", keyCol: "item_key", cols: itemColumns},
	models.EntityCollection: {name: "collections", keyCol: "collection_key", cols: collectionColumns},
	models.EntityAttachment: {name: "attachments", keyCol: "attachment_key", cols: attachmentColumns},
}

func tableFor(t models.EntityType) (entityTable, error) {
	tbl, ok := entityTables[t]
	if !ok {
		return entityTable{}, fmt.Errorf("%w: %q", ErrUnknownEntityType, t)
	}
	return tbl, nil
}

const (
	addMembership      = `INSERT OR IGNORE INTO collection_items (collection_key, item_key) VALUES (?, ?);`
	removeMembership   = `DELETE FROM collection_items WHERE collection_key = ? AND item_key = ?;`
	collectionMembers  = `SELECT item_key FROM collection_items WHERE collection_key = ? ORDER BY item_key;`
	itemCollections    = `SELECT collection_key FROM collection_items WHERE item_key = ? ORDER BY collection_key;`
	membershipsOfItem  = `DELETE FROM collection_items WHERE item_key = ?;`
	membershipsOfColl  = `DELETE FROM collection_items WHERE collection_key = ?;`
	attachmentsOfItem  = `DELETE FROM attachments WHERE parent_key = ?;`
	renameItemMember   = `UPDATE collection_items SET item_key = ? WHERE item_key = ?;`
	renameCollMember   = `UPDATE collection_items SET collection_key = ? WHERE collection_key = ?;`
	renameAttachParent = `UPDATE attachments SET parent_key = ? WHERE parent_key = ?;`
	renameCollParent   = `UPDATE collections SET parent_key = ? WHERE parent_key = ?;`

	recordDeletion = `INSERT INTO deleted_entities (entity_type, entity_key, etag) VALUES (?, ?, ?)
		ON CONFLICT (entity_type, entity_key) DO UPDATE SET etag = excluded.etag;`
	listDeletions  = `SELECT entity_type, entity_key, etag FROM deleted_entities ORDER BY entity_type, entity_key;`
	clearDeletion  = `DELETE FROM deleted_entities WHERE entity_type = ? AND entity_key = ?;`
	renameDeletion = `UPDATE deleted_entities SET entity_key = ? WHERE entity_type = ? AND entity_key = ?;`

	// queued requests written against a placeholder are rewritten with it
	renameInRequests = `UPDATE sync_requests SET
			path = REPLACE(path, ?1, ?2),
			body = CAST(REPLACE(CAST(body AS TEXT), ?1, ?2) AS BLOB),
			target_key = CASE WHEN target_key = ?1 THEN ?2 ELSE target_key END
		WHERE instr(path, ?1) > 0 OR instr(CAST(body AS TEXT), ?1) > 0 OR target_key = ?1;`

	markRequestResult = `UPDATE sync_requests SET phase = ?, http_code = ?, last_attempt_at = ? WHERE id = ?;`
	removeRequest     = `DELETE FROM sync_requests WHERE id = ?;`
)

// buildGetEntityQuery selects one entity by key.
func buildGetEntityQuery(t models.EntityType, key string) (string, []any, error) {
	tbl, err := tableFor(t)
	if err != nil {
		return "", nil, err
	}
	return sq.Select(tbl.cols...).From(tbl.name).Where(sq.Eq{tbl.keyCol: key}).ToSql()
}

// buildListByStateQuery selects entities in any of states, oldest key first.
func buildListByStateQuery(t models.EntityType, states []models.SyncState) (string, []any, error) {
	tbl, err := tableFor(t)
	if err != nil {
		return "", nil, err
	}
	names := make([]string, 0, len(states))
	for _, s := range states {
		names = append(names, string(s))
	}
	q := sq.Select(tbl.cols...).From(tbl.name).OrderBy(tbl.keyCol)
	if len(names) > 0 {
		q = q.Where(sq.Eq{"sync_state": names})
	}
	return q.ToSql()
}

// buildUpsertEntityQuery inserts or fully replaces one entity row.
func buildUpsertEntityQuery(e models.Entity) (string, []any, error) {
	tbl, err := tableFor(e.Type())
	if err != nil {
		return "", nil, err
	}

	m := e.Meta()
	var values []any
	switch v := e.(type) {
	case *models.Item:
		values = []any{m.Key, m.EntityTag, string(m.SyncState), m.Timestamp, v.Title, v.ItemType, v.Year, v.CreatorSummary, v.NumChildren, nullableJSON(v.Content)}
	case *models.Collection:
		values = []any{m.Key, m.EntityTag, string(m.SyncState), m.Timestamp, v.Title, v.ParentKey, nullableJSON(v.Content)}
	case *models.Attachment:
		values = []any{m.Key, m.EntityTag, string(m.SyncState), m.Timestamp, v.ParentKey, v.Title, v.URL, nullableJSON(v.Content)}
	default:
		return "", nil, fmt.Errorf("%w: %T", ErrUnknownEntityType, e)
	}

	return sq.Insert(tbl.name).
		Columns(tbl.cols...).
		Values(values...).
		Suffix(upsertSuffix(tbl)).
		ToSql()
}

func upsertSuffix(tbl entityTable) string {
	s := fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET ", tbl.keyCol)
	for i, c := range tbl.cols[1:] {
		if i > 0 {
			s += ", "
		}
		s += c + " = excluded." + c
	}
	return s
}

func buildChildAttachmentsQuery(itemKey string) (string, []any, error) {
	return sq.Select(attachmentColumns...).
		From("attachments").
		Where(sq.Eq{"parent_key": itemKey}).
		OrderBy("attachment_key").
		ToSql()
}

func buildDeleteEntityQuery(t models.EntityType, key string) (string, []any, error) {
	tbl, err := tableFor(t)
	if err != nil {
		return "", nil, err
	}
	return sq.Delete(tbl.name).Where(sq.Eq{tbl.keyCol: key}).ToSql()
}

func buildRenameEntityQuery(t models.EntityType, oldKey, newKey string) (string, []any, error) {
	tbl, err := tableFor(t)
	if err != nil {
		return "", nil, err
	}
	return sq.Update(tbl.name).Set(tbl.keyCol, newKey).Where(sq.Eq{tbl.keyCol: oldKey}).ToSql()
}

// buildEnqueueQuery inserts a request; re-enqueueing the same id refreshes it in place.
func buildEnqueueQuery(r *models.SyncRequest) (string, []any, error) {
	var rewriteKey, rewriteType string
	if r.KeyRewrite != nil {
		rewriteKey, rewriteType = r.KeyRewrite.PlaceholderKey, string(r.KeyRewrite.EntityType)
	}
	var lastAttempt any
	if r.LastAttemptAt != nil {
		lastAttempt = r.LastAttemptAt.UnixNano()
	}

	return sq.Insert("sync_requests").
		Columns(requestColumns...).
		Values(
			r.ID, string(r.Kind), string(r.Method), r.PathAndQuery, r.Body, r.ContentType, r.Precondition,
			string(r.ResponseShape), rewriteKey, rewriteType, string(r.Target.Type), r.Target.Key,
			string(r.Status.Phase), r.Status.HTTPCode, r.CreatedAt.UnixNano(), lastAttempt,
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			path = excluded.path, body = excluded.body, precondition = excluded.precondition,
			target_type = excluded.target_type, target_key = excluded.target_key,
			phase = excluded.phase, http_code = excluded.http_code, last_attempt_at = excluded.last_attempt_at`).
		ToSql()
}

// buildDequeueQuery selects the oldest request that may be sent now:
// not succeeded, not waiting on a conflict resolution, not in skip.
func buildDequeueQuery(skip []string) (string, []any, error) {
	q := sq.Select(requestColumns...).
		From("sync_requests").
		Where(sq.NotEq{"phase": string(models.PhaseSucceeded)}).
		Where(sq.Or{
			sq.NotEq{"phase": string(models.PhaseFailed)},
			sq.NotEq{"http_code": models.ConflictStatusCode},
		}).
		OrderBy("created_at", "seq").
		Limit(1)
	if len(skip) > 0 {
		q = q.Where(sq.NotEq{"id": skip})
	}
	return q.ToSql()
}

func buildListQueuedQuery() (string, []any, error) {
	return sq.Select(requestColumns...).From("sync_requests").OrderBy("created_at", "seq").ToSql()
}
