package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"edc/internal/record"
	"edc/internal/study"
	platformtx "edc/pkg/platform/tx"
)

// Postgres stores persist the live rows. Rows reference their configuration
// models by id in the database; models are re-attached from the study
// snapshot on load, and a row pointing at a model the snapshot no longer
// carries fails loudly.
//
// Schema:
//
//	CREATE TABLE scope (
//	    pk               BIGSERIAL PRIMARY KEY,
//	    id               TEXT NOT NULL UNIQUE,
//	    code             TEXT NOT NULL,
//	    model_id         TEXT NOT NULL,
//	    locked           BOOLEAN NOT NULL DEFAULT FALSE,
//	    deleted          BOOLEAN NOT NULL DEFAULT FALSE,
//	    creation_time    TIMESTAMPTZ NOT NULL,
//	    last_update_time TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE event (
//	    pk               BIGSERIAL PRIMARY KEY,
//	    id               TEXT NOT NULL UNIQUE,
//	    scope_fk         BIGINT NOT NULL REFERENCES scope (pk),
//	    model_id         TEXT NOT NULL,
//	    event_date       TEXT,
//	    locked           BOOLEAN NOT NULL DEFAULT FALSE,
//	    deleted          BOOLEAN NOT NULL DEFAULT FALSE,
//	    creation_time    TIMESTAMPTZ NOT NULL,
//	    last_update_time TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE dataset (
//	    pk               BIGSERIAL PRIMARY KEY,
//	    id               TEXT NOT NULL UNIQUE,
//	    scope_fk         BIGINT NOT NULL REFERENCES scope (pk),
//	    event_fk         BIGINT REFERENCES event (pk),
//	    model_id         TEXT NOT NULL,
//	    deleted          BOOLEAN NOT NULL DEFAULT FALSE,
//	    creation_time    TIMESTAMPTZ NOT NULL,
//	    last_update_time TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE field (
//	    pk               BIGSERIAL PRIMARY KEY,
//	    id               TEXT NOT NULL UNIQUE,
//	    scope_fk         BIGINT NOT NULL REFERENCES scope (pk),
//	    event_fk         BIGINT REFERENCES event (pk),
//	    dataset_fk       BIGINT NOT NULL REFERENCES dataset (pk),
//	    model_id         TEXT NOT NULL,
//	    value            TEXT NOT NULL DEFAULT '',
//	    creation_time    TIMESTAMPTZ NOT NULL,
//	    last_update_time TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE form (
//	    pk               BIGSERIAL PRIMARY KEY,
//	    id               TEXT NOT NULL UNIQUE,
//	    scope_fk         BIGINT NOT NULL REFERENCES scope (pk),
//	    event_fk         BIGINT REFERENCES event (pk),
//	    model_id         TEXT NOT NULL,
//	    deleted          BOOLEAN NOT NULL DEFAULT FALSE,
//	    creation_time    TIMESTAMPTZ NOT NULL,
//	    last_update_time TIMESTAMPTZ NOT NULL
//	);
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type pgBase struct {
	db *sql.DB
	st *study.Study
}

func (b pgBase) conn(ctx context.Context) querier {
	if tx, ok := platformtx.From(ctx); ok {
		return tx
	}
	return b.db
}

type PostgresScopeStore struct{ pgBase }

func NewPostgresScopeStore(db *sql.DB, st *study.Study) *PostgresScopeStore {
	return &PostgresScopeStore{pgBase{db: db, st: st}}
}

func (s *PostgresScopeStore) Save(ctx context.Context, scope *record.Scope) error {
	if scope.PK == 0 {
		err := s.conn(ctx).QueryRowContext(ctx,
			`INSERT INTO scope (id, code, model_id, locked, deleted, creation_time, last_update_time)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING pk`,
			scope.ID, scope.Code, scope.Model.ID, scope.Locked, scope.Deleted,
			scope.CreationTime, scope.LastUpdateTime).Scan(&scope.PK)
		if err != nil {
			return fmt.Errorf("insert scope: %w", err)
		}
		return nil
	}
	_, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE scope SET code = $2, locked = $3, deleted = $4, last_update_time = $5 WHERE pk = $1`,
		scope.PK, scope.Code, scope.Locked, scope.Deleted, scope.LastUpdateTime)
	if err != nil {
		return fmt.Errorf("update scope %d: %w", scope.PK, err)
	}
	return nil
}

func (s *PostgresScopeStore) ByPK(ctx context.Context, pk int64) (*record.Scope, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT pk, id, code, model_id, locked, deleted, creation_time, last_update_time
		 FROM scope WHERE pk = $1`, pk)
	var scope record.Scope
	var modelID string
	err := row.Scan(&scope.PK, &scope.ID, &scope.Code, &modelID, &scope.Locked,
		&scope.Deleted, &scope.CreationTime, &scope.LastUpdateTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load scope %d: %w", pk, err)
	}
	if scope.Model, err = s.st.ScopeModel(modelID); err != nil {
		return nil, err
	}
	return &scope, nil
}

type PostgresEventStore struct{ pgBase }

func NewPostgresEventStore(db *sql.DB, st *study.Study) *PostgresEventStore {
	return &PostgresEventStore{pgBase{db: db, st: st}}
}

func (s *PostgresEventStore) Save(ctx context.Context, event *record.Event) error {
	var date *string
	if event.Date != nil {
		d := event.Date.String()
		date = &d
	}
	if event.PK == 0 {
		err := s.conn(ctx).QueryRowContext(ctx,
			`INSERT INTO event (id, scope_fk, model_id, event_date, locked, deleted, creation_time, last_update_time)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING pk`,
			event.ID, event.ScopeFK, event.Model.ID, date, event.Locked, event.Deleted,
			event.CreationTime, event.LastUpdateTime).Scan(&event.PK)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		return nil
	}
	_, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE event SET event_date = $2, locked = $3, deleted = $4, last_update_time = $5 WHERE pk = $1`,
		event.PK, date, event.Locked, event.Deleted, event.LastUpdateTime)
	if err != nil {
		return fmt.Errorf("update event %d: %w", event.PK, err)
	}
	return nil
}

func (s *PostgresEventStore) scan(scan func(...any) error) (*record.Event, error) {
	var event record.Event
	var modelID string
	var date *string
	err := scan(&event.PK, &event.ID, &event.ScopeFK, &modelID, &date, &event.Locked,
		&event.Deleted, &event.CreationTime, &event.LastUpdateTime)
	if err != nil {
		return nil, err
	}
	if date != nil {
		parsed, err := study.ParsePartialDate(*date)
		if err != nil {
			return nil, fmt.Errorf("stored event date: %w", err)
		}
		event.Date = &parsed
	}
	if event.Model, err = s.st.EventModel(modelID); err != nil {
		return nil, err
	}
	return &event, nil
}

const eventColumns = `pk, id, scope_fk, model_id, event_date, locked, deleted, creation_time, last_update_time`

func (s *PostgresEventStore) ByPK(ctx context.Context, pk int64) (*record.Event, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM event WHERE pk = $1`, pk)
	event, err := s.scan(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load event %d: %w", pk, err)
	}
	return event, nil
}

func (s *PostgresEventStore) ByScope(ctx context.Context, scopePK int64) ([]*record.Event, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+eventColumns+` FROM event WHERE scope_fk = $1 ORDER BY pk`, scopePK)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	var out []*record.Event
	for rows.Next() {
		event, err := s.scan(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

type PostgresDatasetStore struct{ pgBase }

func NewPostgresDatasetStore(db *sql.DB, st *study.Study) *PostgresDatasetStore {
	return &PostgresDatasetStore{pgBase{db: db, st: st}}
}

func (s *PostgresDatasetStore) Save(ctx context.Context, dataset *record.Dataset) error {
	if dataset.PK == 0 {
		err := s.conn(ctx).QueryRowContext(ctx,
			`INSERT INTO dataset (id, scope_fk, event_fk, model_id, deleted, creation_time, last_update_time)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING pk`,
			dataset.ID, dataset.ScopeFK, dataset.EventFK, dataset.Model.ID, dataset.Deleted,
			dataset.CreationTime, dataset.LastUpdateTime).Scan(&dataset.PK)
		if err != nil {
			return fmt.Errorf("insert dataset: %w", err)
		}
		return nil
	}
	_, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE dataset SET deleted = $2, last_update_time = $3 WHERE pk = $1`,
		dataset.PK, dataset.Deleted, dataset.LastUpdateTime)
	if err != nil {
		return fmt.Errorf("update dataset %d: %w", dataset.PK, err)
	}
	return nil
}

func (s *PostgresDatasetStore) scan(scan func(...any) error) (*record.Dataset, error) {
	var dataset record.Dataset
	var modelID string
	err := scan(&dataset.PK, &dataset.ID, &dataset.ScopeFK, &dataset.EventFK, &modelID,
		&dataset.Deleted, &dataset.CreationTime, &dataset.LastUpdateTime)
	if err != nil {
		return nil, err
	}
	if dataset.Model, err = s.st.DatasetModel(modelID); err != nil {
		return nil, err
	}
	return &dataset, nil
}

const datasetColumns = `pk, id, scope_fk, event_fk, model_id, deleted, creation_time, last_update_time`

func (s *PostgresDatasetStore) ByPK(ctx context.Context, pk int64) (*record.Dataset, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+datasetColumns+` FROM dataset WHERE pk = $1`, pk)
	dataset, err := s.scan(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load dataset %d: %w", pk, err)
	}
	return dataset, nil
}

func (s *PostgresDatasetStore) list(ctx context.Context, clause string, arg any) ([]*record.Dataset, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+datasetColumns+` FROM dataset WHERE `+clause+` ORDER BY pk`, arg)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()
	var out []*record.Dataset
	for rows.Next() {
		dataset, err := s.scan(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		out = append(out, dataset)
	}
	return out, rows.Err()
}

func (s *PostgresDatasetStore) ByScope(ctx context.Context, scopePK int64) ([]*record.Dataset, error) {
	return s.list(ctx, `scope_fk = $1 AND event_fk IS NULL`, scopePK)
}

func (s *PostgresDatasetStore) ByEvent(ctx context.Context, eventPK int64) ([]*record.Dataset, error) {
	return s.list(ctx, `event_fk = $1`, eventPK)
}

type PostgresFieldStore struct{ pgBase }

func NewPostgresFieldStore(db *sql.DB, st *study.Study) *PostgresFieldStore {
	return &PostgresFieldStore{pgBase{db: db, st: st}}
}

func (s *PostgresFieldStore) Save(ctx context.Context, field *record.Field) error {
	if field.PK == 0 {
		err := s.conn(ctx).QueryRowContext(ctx,
			`INSERT INTO field (id, scope_fk, event_fk, dataset_fk, model_id, value, creation_time, last_update_time)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING pk`,
			field.ID, field.ScopeFK, field.EventFK, field.DatasetFK, field.Model.ID,
			field.Value, field.CreationTime, field.LastUpdateTime).Scan(&field.PK)
		if err != nil {
			return fmt.Errorf("insert field: %w", err)
		}
		return nil
	}
	_, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE field SET value = $2, last_update_time = $3 WHERE pk = $1`,
		field.PK, field.Value, field.LastUpdateTime)
	if err != nil {
		return fmt.Errorf("update field %d: %w", field.PK, err)
	}
	return nil
}

func (s *PostgresFieldStore) scan(ctx context.Context, scan func(...any) error) (*record.Field, error) {
	var field record.Field
	var modelID string
	err := scan(&field.PK, &field.ID, &field.ScopeFK, &field.EventFK, &field.DatasetFK,
		&modelID, &field.Value, &field.CreationTime, &field.LastUpdateTime)
	if err != nil {
		return nil, err
	}
	// the field model lives inside its dataset model
	dataset, err := NewPostgresDatasetStore(s.db, s.st).ByPK(ctx, field.DatasetFK)
	if err != nil {
		return nil, err
	}
	if field.Model, err = dataset.Model.FieldModel(modelID); err != nil {
		return nil, err
	}
	return &field, nil
}

const fieldColumns = `pk, id, scope_fk, event_fk, dataset_fk, model_id, value, creation_time, last_update_time`

func (s *PostgresFieldStore) ByPK(ctx context.Context, pk int64) (*record.Field, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+fieldColumns+` FROM field WHERE pk = $1`, pk)
	field, err := s.scan(ctx, row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load field %d: %w", pk, err)
	}
	return field, nil
}

func (s *PostgresFieldStore) ByDataset(ctx context.Context, datasetPK int64) ([]*record.Field, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT `+fieldColumns+` FROM field WHERE dataset_fk = $1 ORDER BY pk`, datasetPK)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	defer rows.Close()
	var out []*record.Field
	for rows.Next() {
		field, err := s.scan(ctx, rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		out = append(out, field)
	}
	return out, rows.Err()
}

type PostgresFormStore struct{ pgBase }

func NewPostgresFormStore(db *sql.DB, st *study.Study) *PostgresFormStore {
	return &PostgresFormStore{pgBase{db: db, st: st}}
}

func (s *PostgresFormStore) Save(ctx context.Context, form *record.Form) error {
	if form.PK == 0 {
		err := s.conn(ctx).QueryRowContext(ctx,
			`INSERT INTO form (id, scope_fk, event_fk, model_id, deleted, creation_time, last_update_time)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING pk`,
			form.ID, form.ScopeFK, form.EventFK, form.Model.ID, form.Deleted,
			form.CreationTime, form.LastUpdateTime).Scan(&form.PK)
		if err != nil {
			return fmt.Errorf("insert form: %w", err)
		}
		return nil
	}
	_, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE form SET deleted = $2, last_update_time = $3 WHERE pk = $1`,
		form.PK, form.Deleted, form.LastUpdateTime)
	if err != nil {
		return fmt.Errorf("update form %d: %w", form.PK, err)
	}
	return nil
}

func (s *PostgresFormStore) ByPK(ctx context.Context, pk int64) (*record.Form, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT pk, id, scope_fk, event_fk, model_id, deleted, creation_time, last_update_time
		 FROM form WHERE pk = $1`, pk)
	var form record.Form
	var modelID string
	err := row.Scan(&form.PK, &form.ID, &form.ScopeFK, &form.EventFK, &modelID,
		&form.Deleted, &form.CreationTime, &form.LastUpdateTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load form %d: %w", pk, err)
	}
	if form.Model, err = s.st.FormModel(modelID); err != nil {
		return nil, err
	}
	return &form, nil
}
