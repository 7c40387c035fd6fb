// Package sqlite persists the catalog in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tendant/simple-asset/pkg/simpleasset"

	_ "modernc.org/sqlite"
)

// Repository implements simpleasset.CatalogRepository on SQLite.
type Repository struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(ctx context.Context, path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite catalog: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent imports.
	db.SetMaxOpenConns(1)

	r, err := New(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// New wraps an existing database handle and migrates it.
func New(ctx context.Context, db *sql.DB) (*Repository, error) {
	r := &Repository{db: db}
	if err := r.migrate(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS asset_catalog (
		path TEXT PRIMARY KEY,
		format_hint TEXT NOT NULL DEFAULT '',
		artifact_id TEXT NOT NULL,
		source_hash TEXT NOT NULL,
		importer_name TEXT NOT NULL,
		importer_version TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL,
		dependencies TEXT NOT NULL DEFAULT '[]'
	);
	CREATE INDEX IF NOT EXISTS asset_catalog_artifact_id_idx ON asset_catalog (artifact_id);`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to migrate sqlite catalog: %w", err)
	}

	// Catalogs created before dependencies were recorded lack the column.
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('asset_catalog') WHERE name = 'dependencies'`).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to migrate sqlite catalog: %w", err)
	}
	if n == 0 {
		if _, err := r.db.ExecContext(ctx,
			`ALTER TABLE asset_catalog ADD COLUMN dependencies TEXT NOT NULL DEFAULT '[]'`); err != nil {
			return fmt.Errorf("failed to migrate sqlite catalog: %w", err)
		}
	}
	return nil
}

const selectColumns = `path, format_hint, artifact_id, source_hash, importer_name, importer_version, updated_at, dependencies`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*simpleasset.CatalogEntry, error) {
	var entry simpleasset.CatalogEntry
	var id, hash, updated, deps string
	if err := row.Scan(&entry.Path, &entry.FormatHint, &id, &hash,
		&entry.Importer.Name, &entry.Importer.Version, &updated, &deps); err != nil {
		return nil, err
	}

	parsed, err := simpleasset.ParseID(id)
	if err != nil {
		return nil, fmt.Errorf("catalog entry %s: %w", entry.Path, err)
	}
	entry.ID = parsed
	entry.SourceHash = simpleasset.Hash(hash)
	entry.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return nil, fmt.Errorf("catalog entry %s: bad timestamp: %w", entry.Path, err)
	}
	if err := json.Unmarshal([]byte(deps), &entry.Dependencies); err != nil {
		return nil, fmt.Errorf("catalog entry %s: bad dependencies: %w", entry.Path, err)
	}
	if len(entry.Dependencies) == 0 {
		entry.Dependencies = nil
	}
	return &entry, nil
}

func encodeDependencies(deps []simpleasset.Dependency) (string, error) {
	if len(deps) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(deps)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r *Repository) Get(ctx context.Context, path string) (*simpleasset.CatalogEntry, error) {
	query := `SELECT ` + selectColumns + ` FROM asset_catalog WHERE path = ?`

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("catalog entry %s: %w", path, simpleasset.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog entry: %w", err)
	}
	return entry, nil
}

func (r *Repository) GetByID(ctx context.Context, id simpleasset.ID) ([]*simpleasset.CatalogEntry, error) {
	query := `SELECT ` + selectColumns + ` FROM asset_catalog WHERE artifact_id = ? ORDER BY path`

	entries, err := r.query(ctx, query, id.String())
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
	INSERT INTO asset_catalog (` + selectColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (path) DO UPDATE SET
		format_hint = excluded.format_hint,
		artifact_id = excluded.artifact_id,
		source_hash = excluded.source_hash,
		importer_name = excluded.importer_name,
		importer_version = excluded.importer_version,
		updated_at = excluded.updated_at,
		dependencies = excluded.dependencies`

	deps, err := encodeDependencies(entry.Dependencies)
	if err != nil {
		return fmt.Errorf("failed to encode dependencies: %w", err)
	}
	_, err = r.db.ExecContext(ctx, query,
		entry.Path, entry.FormatHint, entry.ID.String(), string(entry.SourceHash),
		entry.Importer.Name, entry.Importer.Version, entry.UpdatedAt.UTC().Format(time.RFC3339Nano), deps)
	if err != nil {
		return fmt.Errorf("failed to put catalog entry: %w", err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, path string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM asset_catalog WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("failed to delete catalog entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete catalog entry: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("catalog entry %s: %w", path, simpleasset.ErrNotFound)
	}
	return nil
}

func (r *Repository) List(ctx context.Context) ([]*simpleasset.CatalogEntry, error) {
	return r.query(ctx, `SELECT `+selectColumns+` FROM asset_catalog ORDER BY path`)
}

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]*simpleasset.CatalogEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*simpleasset.CatalogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
