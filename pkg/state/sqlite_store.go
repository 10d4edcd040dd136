package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	archetype "github.com/goliatone/go-archetype"
	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore implements Store with one row per asset.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at dbPath, a file path or ":memory:",
// and creates the schema when missing.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("state: open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("state: initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS asset_documents (
		asset_id TEXT PRIMARY KEY,
		document BLOB NOT NULL,
		snapshot_id TEXT NOT NULL DEFAULT '',
		etag TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		extra TEXT
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context, id archetype.AssetID) ([]byte, Meta, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT document, snapshot_id, etag, updated_at, extra FROM asset_documents WHERE asset_id = ?`,
		id.String())
	data, meta, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Meta{}, false, nil
	}
	if err != nil {
		return nil, Meta{}, false, fmt.Errorf("state: load %s: %w", id, err)
	}
	return data, meta, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, id archetype.AssetID, data []byte, meta Meta) (Meta, error) {
	if id.IsZero() {
		return Meta{}, fmt.Errorf("state: asset id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Meta{}, fmt.Errorf("state: begin: %w", err)
	}
	defer tx.Rollback()

	if meta.ETag != "" {
		var current string
		err := tx.QueryRowContext(ctx, `SELECT etag FROM asset_documents WHERE asset_id = ?`, id.String()).Scan(&current)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return Meta{}, fmt.Errorf("state: save %s: %w", id, err)
		case current != meta.ETag:
			return Meta{ETag: current}, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, current)
		}
	}

	saved := stamp(data, meta)
	var extra sql.NullString
	if saved.Extra != nil {
		encoded, err := json.Marshal(saved.Extra)
		if err != nil {
			return Meta{}, fmt.Errorf("state: encode extra: %w", err)
		}
		extra = sql.NullString{String: string(encoded), Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO asset_documents (asset_id, document, snapshot_id, etag, updated_at, extra)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(asset_id) DO UPDATE SET
			document = excluded.document,
			snapshot_id = excluded.snapshot_id,
			etag = excluded.etag,
			updated_at = excluded.updated_at,
			extra = excluded.extra`,
		id.String(), data, saved.SnapshotID, saved.ETag, saved.UpdatedAt.UTC().Format(time.RFC3339Nano), extra)
	if err != nil {
		return Meta{}, fmt.Errorf("state: save %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return Meta{}, fmt.Errorf("state: commit %s: %w", id, err)
	}
	return saved, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id archetype.AssetID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM asset_documents WHERE asset_id = ?`, id.String()); err != nil {
		return fmt.Errorf("state: delete %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]archetype.AssetID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT asset_id FROM asset_documents ORDER BY asset_id`)
	if err != nil {
		return nil, fmt.Errorf("state: list: %w", err)
	}
	defer rows.Close()

	var ids []archetype.AssetID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("state: list: %w", err)
		}
		id, err := archetype.ParseAssetID(raw)
		if err != nil {
			return nil, fmt.Errorf("state: list: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanDocument(row *sql.Row) ([]byte, Meta, error) {
	var (
		data      []byte
		meta      Meta
		updatedAt string
		extra     sql.NullString
	)
	if err := row.Scan(&data, &meta.SnapshotID, &meta.ETag, &updatedAt, &extra); err != nil {
		return nil, Meta{}, err
	}
	if updatedAt != "" {
		parsed, err := time.Parse(time.RFC3339Nano, updatedAt)
		if err != nil {
			return nil, Meta{}, fmt.Errorf("parse updated_at: %w", err)
		}
		meta.UpdatedAt = parsed
	}
	if extra.Valid && extra.String != "" {
		if err := json.Unmarshal([]byte(extra.String), &meta.Extra); err != nil {
			return nil, Meta{}, fmt.Errorf("decode extra: %w", err)
		}
	}
	return data, meta, nil
}
