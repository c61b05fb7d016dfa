package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openauto/dealerdesk/internal/domain"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// Compile-time check: RecordStore implements domain.EntityStore.
var _ domain.EntityStore = (*RecordStore)(nil)

// RecordStore implements domain.EntityStore using SQLite. Records are stored
// as JSON documents in a single table keyed by (entity_type, id), with a
// version column for optimistic concurrency. The schema-driven resolver and
// orchestrator never look at columns beyond the key, so new entity types need
// no migration.
type RecordStore struct {
	db *sql.DB
}

// New opens a SQLite database, runs migrations, and returns a ready store.
func New(dataSourceName string) (*RecordStore, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and returns
// a ready store. Use this when the *sql.DB has been pre-configured (e.g., with
// otelsql instrumentation).
func NewFromDB(db *sql.DB) (*RecordStore, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &RecordStore{db: db}, nil
}

// Close closes the underlying database connection.
func (r *RecordStore) Close() error {
	return r.db.Close()
}

// DB returns the underlying database connection for use by other adapters (e.g., river).
func (r *RecordStore) DB() *sql.DB {
	return r.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

const timeFormat = "2006-01-02T15:04:05Z"

func (r *RecordStore) Create(ctx context.Context, t domain.EntityType, rec domain.Record) error {
	id := rec.ID()
	if id == "" {
		return domain.Unavailable(t, errors.New("record has no id"))
	}

	stored := rec.Clone()
	stored[domain.FieldVersion] = float64(1)
	body, err := json.Marshal(stored)
	if err != nil {
		return domain.Unavailable(t, fmt.Errorf("encoding record: %w", err))
	}

	now := time.Now().UTC().Format(timeFormat)
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO records (entity_type, id, version, body, created_at, updated_at)
		 VALUES (?, ?, 1, ?, ?, ?)`,
		string(t), id, string(body), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.Rejection{
				Reason: domain.ReasonConcurrentModification,
				Entity: t,
				ID:     id,
				Detail: "record already exists",
			}
		}
		return domain.Unavailable(t, fmt.Errorf("inserting record: %w", err))
	}

	rec[domain.FieldVersion] = float64(1)
	return nil
}

func (r *RecordStore) GetByID(ctx context.Context, t domain.EntityType, id string) (domain.Record, error) {
	var body string
	var version int64
	err := r.db.QueryRowContext(ctx,
		`SELECT body, version FROM records WHERE entity_type = ? AND id = ?`,
		string(t), id,
	).Scan(&body, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(t, id)
		}
		return nil, domain.Unavailable(t, fmt.Errorf("fetching record: %w", err))
	}

	return decodeRecord(t, body, version)
}

func (r *RecordStore) List(ctx context.Context, t domain.EntityType) ([]domain.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT body, version FROM records WHERE entity_type = ? ORDER BY created_at, id`,
		string(t),
	)
	if err != nil {
		return nil, domain.Unavailable(t, fmt.Errorf("listing records: %w", err))
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		var body string
		var version int64
		if err := rows.Scan(&body, &version); err != nil {
			return nil, domain.Unavailable(t, fmt.Errorf("scanning record row: %w", err))
		}
		rec, err := decodeRecord(t, body, version)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.Unavailable(t, err)
	}
	return out, nil
}

// Update persists a record read earlier, guarded by its version: a write that
// lost the race comes back as a concurrent-modification rejection instead of
// silently clobbering the newer state.
func (r *RecordStore) Update(ctx context.Context, t domain.EntityType, rec domain.Record) error {
	id := rec.ID()
	version := int64(rec.Num(domain.FieldVersion))

	stored := rec.Clone()
	stored[domain.FieldVersion] = float64(version + 1)
	body, err := json.Marshal(stored)
	if err != nil {
		return domain.Unavailable(t, fmt.Errorf("encoding record: %w", err))
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE records SET version = version + 1, body = ?, updated_at = ?
		 WHERE entity_type = ? AND id = ? AND version = ?`,
		string(body), time.Now().UTC().Format(timeFormat),
		string(t), id, version,
	)
	if err != nil {
		return domain.Unavailable(t, fmt.Errorf("updating record: %w", err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return domain.Unavailable(t, fmt.Errorf("checking rows affected: %w", err))
	}
	if affected == 0 {
		var exists int
		err := r.db.QueryRowContext(ctx,
			`SELECT 1 FROM records WHERE entity_type = ? AND id = ?`,
			string(t), id,
		).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(t, id)
		}
		return &domain.Rejection{
			Reason: domain.ReasonConcurrentModification,
			Entity: t,
			ID:     id,
			Detail: fmt.Sprintf("version %d is stale", version),
		}
	}

	rec[domain.FieldVersion] = float64(version + 1)
	return nil
}

func (r *RecordStore) Delete(ctx context.Context, t domain.EntityType, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM records WHERE entity_type = ? AND id = ?`,
		string(t), id,
	)
	if err != nil {
		return domain.Unavailable(t, fmt.Errorf("deleting record: %w", err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return domain.Unavailable(t, fmt.Errorf("checking rows affected: %w", err))
	}
	if affected == 0 {
		return domain.NotFound(t, id)
	}
	return nil
}

func decodeRecord(t domain.EntityType, body string, version int64) (domain.Record, error) {
	var rec domain.Record
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return nil, domain.Unavailable(t, fmt.Errorf("decoding record: %w", err))
	}
	rec[domain.FieldVersion] = float64(version)
	return rec, nil
}

// isUniqueViolation checks if a SQLite error is a UNIQUE or primary key
// constraint violation.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed")
}
