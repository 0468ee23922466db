// Package docstore owns the local authoritative copy of the application
// document, one per identity, stored in SQLite alongside a small metadata
// key/value table (last backup time, active identity pointer).
//
// Update is the only sanctioned mutation path: it merges a partial change,
// bumps the document timestamp strictly, and persists atomically. Replace
// fully overwrites the stored document and is reserved for accepting a
// remote snapshot after restore or conflict resolution.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/finsync-app/finsync/internal/common"
	"github.com/finsync-app/finsync/internal/dbx"
	"github.com/finsync-app/finsync/internal/docstore/migrations"
	"github.com/finsync-app/finsync/internal/models"
)

const (
	metaLastBackupPrefix = "lastBackup:"
	metaActiveIdentity   = "activeIdentity"
)

type Store struct {
	db       *sql.DB
	onMutate func(identity string)

	// test seam
	nowFn func() time.Time
}

// Open opens (or creates) the local database at dsn and applies pending
// migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return NewStore(db), nil
}

// NewStore wraps an already-migrated database handle. Tests use this with an
// in-memory connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, nowFn: time.Now}
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// SetMutationHook registers fn to be called after every committed Update.
// Replace does not fire the hook: applying a remote snapshot must not
// immediately schedule a re-upload of the same snapshot.
func (s *Store) SetMutationHook(fn func(identity string)) {
	s.onMutate = fn
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(ctx context.Context, q dbx.DBTX, identity string) (*models.Document, error) {
	var raw []byte
	err := q.QueryRowContext(ctx, `SELECT doc FROM documents WHERE identity = ?`, identity).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document[%s]: %w", identity, err)
	}

	var doc models.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document[%s]: %w", identity, err)
	}
	return &doc, nil
}

func (s *Store) put(ctx context.Context, q dbx.DBTX, identity string, doc *models.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document[%s]: %w", identity, err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO documents (identity, doc, timestamp) VALUES (?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET doc = excluded.doc, timestamp = excluded.timestamp
	`, identity, raw, doc.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to store document[%s]: %w", identity, err)
	}
	return nil
}

// Load returns the persisted document for the identity. If none exists yet,
// a default scaffolding document is created and persisted. Creation is
// idempotent per identity and never overwrites an existing document.
func (s *Store) Load(ctx context.Context, identity string) (*models.Document, error) {
	doc, err := s.get(ctx, s.db, identity)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	fresh := models.DefaultDocument(identity, s.nowFn())
	raw, err := json.Marshal(fresh)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document[%s]: %w", identity, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (identity, doc, timestamp) VALUES (?, ?, ?)
		ON CONFLICT(identity) DO NOTHING
	`, identity, raw, fresh.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to create document[%s]: %w", identity, err)
	}

	// re-read in case a concurrent caller created the row first
	return s.get(ctx, s.db, identity)
}

// Has reports whether a document already exists for the identity, without
// creating one.
func (s *Store) Has(ctx context.Context, identity string) (bool, error) {
	_, err := s.get(ctx, s.db, identity)
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Update merges the partial change into the current document, bumps the
// timestamp so it is strictly greater than before, persists atomically and
// returns the new document. Returns common.ErrorNotFound when no document
// exists for the identity.
func (s *Store) Update(ctx context.Context, identity string, patch models.Patch) (*models.Document, error) {
	var doc *models.Document

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		current, err := s.get(ctx, tx, identity)
		if err != nil {
			return err
		}

		current.Apply(patch)

		ts := s.nowFn().UnixMilli()
		if ts <= current.Timestamp {
			ts = current.Timestamp + 1
		}
		current.Timestamp = ts

		if err := s.put(ctx, tx, identity, current); err != nil {
			return err
		}
		doc = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.onMutate != nil {
		s.onMutate(identity)
	}
	return doc, nil
}

// Replace fully overwrites the stored document, including its timestamp,
// with the supplied one. Used when accepting a remote snapshot.
func (s *Store) Replace(ctx context.Context, identity string, doc *models.Document) error {
	return s.put(ctx, s.db, identity, doc)
}

// LastBackup returns the recorded time of the last successful backup for the
// identity, or the zero time when the identity was never backed up.
func (s *Store) LastBackup(ctx context.Context, identity string) (time.Time, error) {
	raw, err := s.getMeta(ctx, metaLastBackupPrefix+identity)
	if err != nil || raw == nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse last backup time: %w", err)
	}
	return t, nil
}

func (s *Store) SetLastBackup(ctx context.Context, identity string, t time.Time) error {
	return s.setMeta(ctx, metaLastBackupPrefix+identity, []byte(t.Format(time.RFC3339Nano)))
}

// ActiveIdentity returns the identity of the most recent session, or "".
func (s *Store) ActiveIdentity(ctx context.Context) (string, error) {
	raw, err := s.getMeta(ctx, metaActiveIdentity)
	return string(raw), err
}

func (s *Store) SetActiveIdentity(ctx context.Context, identity string) error {
	return s.setMeta(ctx, metaActiveIdentity, []byte(identity))
}

func (s *Store) getMeta(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return value, nil
}

func (s *Store) setMeta(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}
