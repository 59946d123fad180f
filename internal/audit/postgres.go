package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	platformtx "edc/pkg/platform/tx"
)

// PostgresStore persists trails in the audit_trail table.
//
// Schema:
//
//	CREATE TABLE audit_trail (
//	    id         UUID PRIMARY KEY,
//	    entity     TEXT NOT NULL,
//	    entity_pk  BIGINT NOT NULL,
//	    actor      TEXT NOT NULL DEFAULT '',
//	    rationale  TEXT NOT NULL DEFAULT '',
//	    at         TIMESTAMPTZ NOT NULL,
//	    snapshot   JSONB NOT NULL DEFAULT '{}'
//	);
//	CREATE INDEX audit_trail_entity_idx ON audit_trail (entity, entity_pk, at);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) conn(ctx context.Context) querier {
	if tx, ok := platformtx.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, trail Trail) error {
	snapshot, err := json.Marshal(trail.Values)
	if err != nil {
		return fmt.Errorf("marshal audit snapshot: %w", err)
	}
	_, err = s.conn(ctx).ExecContext(ctx,
		`INSERT INTO audit_trail (id, entity, entity_pk, actor, rationale, at, snapshot)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		trail.ID, trail.Entity, trail.EntityPK, trail.Actor, trail.Rationale, trail.Time, snapshot)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("audit trail %s already recorded: %w", trail.ID, err)
		}
		return fmt.Errorf("append audit trail: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, entity string, entityPK int64, from, to *time.Time) ([]Trail, error) {
	query := `SELECT id, entity, entity_pk, actor, rationale, at, snapshot
		 FROM audit_trail WHERE entity = $1 AND entity_pk = $2`
	args := []any{entity, entityPK}
	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND at <= $%d", len(args))
	}
	query += " ORDER BY at, id"

	rows, err := s.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit trails: %w", err)
	}
	defer rows.Close()

	var out []Trail
	for rows.Next() {
		var trail Trail
		var snapshot []byte
		if err := rows.Scan(&trail.ID, &trail.Entity, &trail.EntityPK, &trail.Actor,
			&trail.Rationale, &trail.Time, &snapshot); err != nil {
			return nil, fmt.Errorf("scan audit trail: %w", err)
		}
		if err := json.Unmarshal(snapshot, &trail.Values); err != nil {
			return nil, fmt.Errorf("unmarshal audit snapshot: %w", err)
		}
		out = append(out, trail)
	}
	return out, rows.Err()
}
