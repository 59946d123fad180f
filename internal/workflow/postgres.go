package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"edc/internal/record"
	"edc/internal/storage"
	platformtx "edc/pkg/platform/tx"
)

// PostgresStore persists workflow statuses in the workflow_status table.
//
// Schema:
//
//	CREATE TABLE workflow_status (
//	    pk               BIGSERIAL PRIMARY KEY,
//	    scope_fk         BIGINT NOT NULL,
//	    event_fk         BIGINT,
//	    form_fk          BIGINT,
//	    field_fk         BIGINT,
//	    workflow_id      TEXT NOT NULL,
//	    state_id         TEXT NOT NULL,
//	    action_id        TEXT NOT NULL DEFAULT '',
//	    validator_id     TEXT NOT NULL DEFAULT '',
//	    profile_id       TEXT NOT NULL DEFAULT '',
//	    trigger_message  TEXT NOT NULL DEFAULT '',
//	    deleted          BOOLEAN NOT NULL DEFAULT FALSE,
//	    creation_time    TIMESTAMPTZ NOT NULL,
//	    last_update_time TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX workflow_status_scope_idx ON workflow_status (scope_fk);
//	CREATE INDEX workflow_status_field_idx ON workflow_status (field_fk) WHERE field_fk IS NOT NULL;
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) conn(ctx context.Context) querier {
	if tx, ok := platformtx.From(ctx); ok {
		return tx
	}
	return s.db
}

const statusColumns = `pk, scope_fk, event_fk, form_fk, field_fk, workflow_id, state_id,
	action_id, validator_id, profile_id, trigger_message, deleted, creation_time, last_update_time`

func (s *PostgresStore) Save(ctx context.Context, status *record.WorkflowStatus) error {
	if status.PK == 0 {
		err := s.conn(ctx).QueryRowContext(ctx,
			`INSERT INTO workflow_status (scope_fk, event_fk, form_fk, field_fk, workflow_id, state_id,
				action_id, validator_id, profile_id, trigger_message, deleted, creation_time, last_update_time)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			 RETURNING pk`,
			status.ScopeFK, status.EventFK, status.FormFK, status.FieldFK, status.WorkflowID,
			status.StateID, status.ActionID, status.ValidatorID, status.ProfileID,
			status.TriggerMessage, status.Deleted, status.CreationTime, status.LastUpdateTime,
		).Scan(&status.PK)
		if err != nil {
			return fmt.Errorf("insert workflow status: %w", err)
		}
		return nil
	}
	_, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE workflow_status SET state_id = $2, action_id = $3, validator_id = $4, profile_id = $5,
			trigger_message = $6, deleted = $7, last_update_time = $8
		 WHERE pk = $1`,
		status.PK, status.StateID, status.ActionID, status.ValidatorID, status.ProfileID,
		status.TriggerMessage, status.Deleted, status.LastUpdateTime)
	if err != nil {
		return fmt.Errorf("update workflow status %d: %w", status.PK, err)
	}
	return nil
}

func (s *PostgresStore) ByPK(ctx context.Context, pk int64) (*record.WorkflowStatus, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+statusColumns+` FROM workflow_status WHERE pk = $1`, pk)
	status, err := scanStatus(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load workflow status %d: %w", pk, err)
	}
	return status, nil
}

func (s *PostgresStore) ByWorkflowable(ctx context.Context, workflowable record.Workflowable) ([]*record.WorkflowStatus, error) {
	var clause string
	switch workflowable.WorkflowableEntity() {
	case record.WorkflowableScope:
		clause = `scope_fk = $1 AND event_fk IS NULL AND form_fk IS NULL AND field_fk IS NULL`
	case record.WorkflowableEvent:
		clause = `event_fk = $1 AND form_fk IS NULL AND field_fk IS NULL`
	case record.WorkflowableForm:
		clause = `form_fk = $1`
	case record.WorkflowableField:
		clause = `field_fk = $1`
	}
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+statusColumns+` FROM workflow_status WHERE `+clause+` ORDER BY pk`,
		workflowable.WorkflowablePK())
	if err != nil {
		return nil, fmt.Errorf("list workflow statuses: %w", err)
	}
	defer rows.Close()

	var out []*record.WorkflowStatus
	for rows.Next() {
		status, err := scanStatus(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan workflow status: %w", err)
		}
		out = append(out, status)
	}
	return out, rows.Err()
}

func scanStatus(scan func(...any) error) (*record.WorkflowStatus, error) {
	var status record.WorkflowStatus
	err := scan(&status.PK, &status.ScopeFK, &status.EventFK, &status.FormFK, &status.FieldFK,
		&status.WorkflowID, &status.StateID, &status.ActionID, &status.ValidatorID,
		&status.ProfileID, &status.TriggerMessage, &status.Deleted,
		&status.CreationTime, &status.LastUpdateTime)
	if err != nil {
		return nil, err
	}
	return &status, nil
}
