package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-asset/pkg/simpleasset"
)

//go:embed schema.sql
var schema string

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simpleasset.CatalogRepository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Connect opens a pool for the connection URL.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the catalog table if it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return r.handlePostgresError("ensure schema", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

const selectColumns = `path, format_hint, artifact_id, source_hash, importer_name, importer_version, updated_at, dependencies`

func scanEntry(row pgx.Row) (*simpleasset.CatalogEntry, error) {
	var entry simpleasset.CatalogEntry
	var id uuid.UUID
	var hash string
	var deps []byte
	err := row.Scan(&entry.Path, &entry.FormatHint, &id, &hash,
		&entry.Importer.Name, &entry.Importer.Version, &entry.UpdatedAt, &deps)
	if err != nil {
		return nil, err
	}
	entry.ID = simpleasset.IDFromUUID(id)
	entry.SourceHash = simpleasset.Hash(hash)
	entry.UpdatedAt = entry.UpdatedAt.UTC()
	if err := json.Unmarshal(deps, &entry.Dependencies); err != nil {
		return nil, fmt.Errorf("catalog entry %s: bad dependencies: %w", entry.Path, err)
	}
	if len(entry.Dependencies) == 0 {
		entry.Dependencies = nil
	}
	return &entry, nil
}

func (r *Repository) Get(ctx context.Context, path string) (*simpleasset.CatalogEntry, error) {
	query := `SELECT ` + selectColumns + ` FROM asset_catalog WHERE path = $1`

	entry, err := scanEntry(r.db.QueryRow(ctx, query, path))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("catalog entry %s: %w", path, simpleasset.ErrNotFound)
		}
		return nil, r.handlePostgresError("get catalog entry", err)
	}
	return entry, nil
}

func (r *Repository) GetByID(ctx context.Context, id simpleasset.ID) ([]*simpleasset.CatalogEntry, error) {
	query := `SELECT ` + selectColumns + ` FROM asset_catalog WHERE artifact_id = $1 ORDER BY path`

	entries, err := r.query(ctx, "get catalog entries by id", query, id.UUID())
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog entry for %s: %w", id, simpleasset.ErrNotFound)
	}
	return entries, nil
}

func (r *Repository) Put(ctx context.Context, entry *simpleasset.CatalogEntry) error {
	query := `
		INSERT INTO asset_catalog (
			path, format_hint, artifact_id, source_hash, importer_name, importer_version, updated_at, dependencies
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
		ON CONFLICT (path) DO UPDATE SET
			format_hint = EXCLUDED.format_hint,
			artifact_id = EXCLUDED.artifact_id,
			source_hash = EXCLUDED.source_hash,
			importer_name = EXCLUDED.importer_name,
			importer_version = EXCLUDED.importer_version,
			updated_at = EXCLUDED.updated_at,
			dependencies = EXCLUDED.dependencies`

	deps := []byte("[]")
	if len(entry.Dependencies) > 0 {
		var err error
		if deps, err = json.Marshal(entry.Dependencies); err != nil {
			return fmt.Errorf("failed to encode dependencies: %w", err)
		}
	}
	_, err := r.db.Exec(ctx, query,
		entry.Path, entry.FormatHint, entry.ID.UUID(), string(entry.SourceHash),
		entry.Importer.Name, entry.Importer.Version, entry.UpdatedAt, string(deps))
	if err != nil {
		return r.handlePostgresError("put catalog entry", err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, path string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM asset_catalog WHERE path = $1`, path)
	if err != nil {
		return r.handlePostgresError("delete catalog entry", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("catalog entry %s: %w", path, simpleasset.ErrNotFound)
	}
	return nil
}

func (r *Repository) List(ctx context.Context) ([]*simpleasset.CatalogEntry, error) {
	query := `SELECT ` + selectColumns + ` FROM asset_catalog ORDER BY path`
	return r.query(ctx, "list catalog entries", query)
}

func (r *Repository) query(ctx context.Context, operation, query string, args ...interface{}) ([]*simpleasset.CatalogEntry, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError(operation, err)
	}
	defer rows.Close()

	var entries []*simpleasset.CatalogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, r.handlePostgresError(operation, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError(operation, err)
	}
	return entries, nil
}
