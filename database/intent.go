package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/lib/pq"
	"github.com/tradeflowhq/tradeflow/cache"
	"github.com/tradeflowhq/tradeflow/internal/apierror"
	"github.com/tradeflowhq/tradeflow/model"
)

const intentColumns = `intent_id, session_id, action_kind, operation_name, payload, payload_fingerprint, preview_summary, status, created_at, expires_at, executing_since, finished_at, notes, meta_data`

// RecordIntent inserts a new pending action. The partial unique index on
// (session_id, action_kind, payload_fingerprint) turns a racing duplicate
// registration into a CONFLICT instead of a second PENDING row.
func (d *Datasource) RecordIntent(ctx context.Context, intent *model.PendingAction) (*model.PendingAction, error) {
	ctx, span := otel.Tracer("intent.store").Start(ctx, "Saving pending action to db")
	defer span.End()

	metaDataJSON, err := json.Marshal(intent.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	_, err = d.Conn.ExecContext(ctx,
		`INSERT INTO pending_actions(intent_id,session_id,action_kind,operation_name,payload,payload_fingerprint,preview_summary,status,created_at,expires_at,notes,meta_data) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		intent.IntentID, intent.SessionID, intent.ActionKind, intent.OperationName, []byte(intent.Payload), intent.PayloadFingerprint, intent.PreviewSummary, intent.Status, intent.CreatedAt, intent.ExpiresAt, intent.Notes, metaDataJSON,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, apierror.NewAPIError(apierror.ErrConflict, "A pending action with the same fingerprint already exists", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrStorageUnavailable, "Failed to record pending action", err)
	}

	return intent, nil
}

// GetIntent retrieves a pending action by its intent id, serving from the
// cache when one is configured.
func (d *Datasource) GetIntent(ctx context.Context, id string) (*model.PendingAction, error) {
	if d.Cache != nil {
		cached := &model.PendingAction{}
		if err := d.Cache.Get(ctx, cache.IntentKey(id), cached); err == nil && cached.IntentID == id {
			return cached, nil
		}
	}

	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM pending_actions
		WHERE intent_id = $1
	`, intentColumns), id)

	intent, err := scanIntent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Pending action with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrStorageUnavailable, "Failed to retrieve pending action", err)
	}

	if d.Cache != nil {
		// cache failures never fail the read
		_ = d.Cache.Set(ctx, cache.IntentKey(id), intent, cache.IntentTTL)
	}

	return intent, nil
}

// ListIntents returns a session's actions ordered by created_at descending.
// Empty status or actionKind match everything.
func (d *Datasource) ListIntents(ctx context.Context, sessionID, status, actionKind string, limit int) ([]*model.PendingAction, error) {
	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM pending_actions
		WHERE session_id = $1
		  AND ($2 = '' OR status = $2)
		  AND ($3 = '' OR action_kind = $3)
		ORDER BY created_at DESC
		LIMIT $4
	`, intentColumns), sessionID, status, actionKind, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrStorageUnavailable, "Failed to list pending actions", err)
	}
	defer func() { _ = rows.Close() }()

	return collectIntents(rows)
}

// FindActiveIntentByFingerprint finds the one still-PENDING action matching
// a (session, kind, fingerprint) triple.
func (d *Datasource) FindActiveIntentByFingerprint(ctx context.Context, sessionID, actionKind, fingerprint string) (*model.PendingAction, error) {
	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM pending_actions
		WHERE session_id = $1 AND action_kind = $2 AND payload_fingerprint = $3 AND status = 'PENDING'
	`, intentColumns), sessionID, actionKind, fingerprint)

	intent, err := scanIntent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "No active pending action for fingerprint", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrStorageUnavailable, "Failed to look up pending action by fingerprint", err)
	}
	return intent, nil
}

// TryIntentTransition performs the conditional status update the whole
// state machine rests on. The UPDATE only matches while the stored status
// equals fromStatus, so under concurrent callers exactly one sees true.
// Timestamps are stamped in the same statement: executing_since is set on
// entry to EXECUTING and cleared on exit, finished_at on any terminal
// status. Notes are preserved unless a non-empty note is supplied.
func (d *Datasource) TryIntentTransition(ctx context.Context, id, fromStatus, toStatus, notes string) (bool, error) {
	ctx, span := otel.Tracer("intent.store").Start(ctx, "Transitioning pending action status")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE pending_actions
		SET status = $3,
		    executing_since = CASE WHEN $3 = 'EXECUTING' THEN CURRENT_TIMESTAMP ELSE NULL END,
		    finished_at = CASE WHEN $3 IN ('EXECUTED','CANCELLED','EXPIRED','SUPERSEDED') THEN CURRENT_TIMESTAMP ELSE finished_at END,
		    notes = COALESCE(NULLIF($4, ''), notes)
		WHERE intent_id = $1 AND status = $2
	`, id, fromStatus, toStatus, notes)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrStorageUnavailable, "Failed to transition pending action", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrStorageUnavailable, "Failed to read transition result", err)
	}

	d.invalidateIntent(ctx, id)
	return affected == 1, nil
}

// MarkIntentTerminal is the unconditional terminal write used by cleanup
// paths once a decision has already been made elsewhere.
func (d *Datasource) MarkIntentTerminal(ctx context.Context, id, status, notes string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE pending_actions
		SET status = $2, executing_since = NULL, finished_at = CURRENT_TIMESTAMP, notes = COALESCE(NULLIF($3, ''), notes)
		WHERE intent_id = $1
	`, id, status, notes)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrStorageUnavailable, "Failed to mark pending action terminal", err)
	}

	d.invalidateIntent(ctx, id)
	return nil
}

// SupersedePendingIntents marks every other PENDING action of the same
// (session, kind) as SUPERSEDED in one set-based statement. RETURNING gives
// back the affected ids so each cache entry is invalidated too.
func (d *Datasource) SupersedePendingIntents(ctx context.Context, sessionID, actionKind, exceptID, notes string) (int64, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		UPDATE pending_actions
		SET status = 'SUPERSEDED', finished_at = CURRENT_TIMESTAMP, notes = $4
		WHERE session_id = $1 AND action_kind = $2 AND status = 'PENDING' AND intent_id <> $3
		RETURNING intent_id
	`, sessionID, actionKind, exceptID, notes)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrStorageUnavailable, "Failed to supersede pending actions", err)
	}
	defer func() { _ = rows.Close() }()

	var superseded int64
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return superseded, apierror.NewAPIError(apierror.ErrStorageUnavailable, "Failed to read superseded action id", err)
		}
		d.invalidateIntent(ctx, id)
		superseded++
	}
	if err := rows.Err(); err != nil {
		return superseded, apierror.NewAPIError(apierror.ErrStorageUnavailable, "Failed to iterate superseded actions", err)
	}
	return superseded, nil
}

// ListExpiredPendingIntents returns PENDING rows whose confirmation window
// is closed, a deadline equal to now included. Candidates only; the sweeper
// still transitions each one conditionally.
func (d *Datasource) ListExpiredPendingIntents(ctx context.Context, now time.Time, limit int) ([]*model.PendingAction, error) {
	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM pending_actions
		WHERE status = 'PENDING' AND expires_at <= $1
		ORDER BY expires_at ASC
		LIMIT $2
	`, intentColumns), now, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrStorageUnavailable, "Failed to list expired pending actions", err)
	}
	defer func() { _ = rows.Close() }()

	return collectIntents(rows)
}

// ListStuckExecutingIntents returns EXECUTING rows that entered execution
// before the cutoff, i.e. locks presumed lost to a crash.
func (d *Datasource) ListStuckExecutingIntents(ctx context.Context, cutoff time.Time, limit int) ([]*model.PendingAction, error) {
	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM pending_actions
		WHERE status = 'EXECUTING' AND executing_since < $1
		ORDER BY executing_since ASC
		LIMIT $2
	`, intentColumns), cutoff, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrStorageUnavailable, "Failed to list stuck executing actions", err)
	}
	defer func() { _ = rows.Close() }()

	return collectIntents(rows)
}

func (d *Datasource) invalidateIntent(ctx context.Context, id string) {
	if d.Cache == nil {
		return
	}
	_ = d.Cache.Delete(ctx, cache.IntentKey(id))
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIntent(row rowScanner) (*model.PendingAction, error) {
	intent := &model.PendingAction{}
	var payload []byte
	var metaDataJSON []byte
	var executingSince, finishedAt sql.NullTime
	var previewSummary, notes sql.NullString

	err := row.Scan(
		&intent.IntentID, &intent.SessionID, &intent.ActionKind, &intent.OperationName,
		&payload, &intent.PayloadFingerprint, &previewSummary, &intent.Status,
		&intent.CreatedAt, &intent.ExpiresAt, &executingSince, &finishedAt, &notes, &metaDataJSON,
	)
	if err != nil {
		return nil, err
	}

	intent.Payload = json.RawMessage(payload)
	intent.PreviewSummary = previewSummary.String
	intent.Notes = notes.String
	if executingSince.Valid {
		t := executingSince.Time
		intent.ExecutingSince = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		intent.FinishedAt = &t
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &intent.MetaData); err != nil {
			return nil, err
		}
	}

	return intent, nil
}

func collectIntents(rows *sql.Rows) ([]*model.PendingAction, error) {
	var intents []*model.PendingAction
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan pending action", err)
		}
		intents = append(intents, intent)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrStorageUnavailable, "Failed to iterate pending actions", err)
	}
	return intents, nil
}
