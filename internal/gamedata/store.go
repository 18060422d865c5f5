package gamedata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/GroundAura/InventoryInjector/internal/util"
)

// Store is a Lookup backed by a SQLite form dump.
type Store struct {
	db     *sql.DB
	logger *util.Logger
}

// OpenStore opens (creating if needed) the SQLite database at dsn and ensures
// the schema exists.
func OpenStore(ctx context.Context, dsn string, logger *util.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open form store: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: logger}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("create form tables: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS forms (
			id        INTEGER PRIMARY KEY,
			form_type INTEGER NOT NULL,
			editor_id TEXT NOT NULL DEFAULT '',
			model     TEXT NOT NULL DEFAULT '',
			keywords  TEXT NOT NULL DEFAULT '[]',
			effects   TEXT NOT NULL DEFAULT '[]'
		);

		CREATE INDEX IF NOT EXISTS idx_forms_editor_id ON forms (editor_id);
	`)
	return err
}

// Put inserts or replaces forms in a single transaction.
func (s *Store) Put(ctx context.Context, forms ...*Form) error {
	if len(forms) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO forms (id, form_type, editor_id, model, keywords, effects)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range forms {
		if f == nil {
			continue
		}
		keywords, err := json.Marshal(nonNil(f.Keywords))
		if err != nil {
			return fmt.Errorf("form %08X keywords: %w", f.ID, err)
		}
		effects, err := json.Marshal(f.Effects)
		if err != nil {
			return fmt.Errorf("form %08X effects: %w", f.ID, err)
		}
		if f.Effects == nil {
			effects = []byte("[]")
		}
		if _, err := stmt.ExecContext(ctx, int64(f.ID), int64(f.Type), f.EditorID, f.Model, string(keywords), string(effects)); err != nil {
			return fmt.Errorf("insert form %08X: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

// Get loads a single form. It returns sql.ErrNoRows for unknown ids.
func (s *Store) Get(ctx context.Context, id uint32) (*Form, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, form_type, editor_id, model, keywords, effects
		FROM forms WHERE id = ?`, int64(id))

	var (
		rawID, rawType    int64
		keywords, effects string
		form              Form
	)
	if err := row.Scan(&rawID, &rawType, &form.EditorID, &form.Model, &keywords, &effects); err != nil {
		return nil, err
	}
	form.ID = uint32(rawID)
	form.Type = FormType(rawType)
	if err := json.Unmarshal([]byte(keywords), &form.Keywords); err != nil {
		return nil, fmt.Errorf("form %08X keywords: %w", id, err)
	}
	if err := json.Unmarshal([]byte(effects), &form.Effects); err != nil {
		return nil, fmt.Errorf("form %08X effects: %w", id, err)
	}
	return &form, nil
}

// Count returns the number of stored forms.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM forms`).Scan(&n)
	return n, err
}

// LookupByID implements Lookup. Storage errors are logged and reported as
// unknown ids.
func (s *Store) LookupByID(id uint32) (*Form, bool) {
	form, err := s.Get(context.Background(), id)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) && s.logger != nil {
			s.logger.Debugf("form %08X lookup failed: %v", id, err)
		}
		return nil, false
	}
	return form, true
}

// Import copies every form of t into the store.
func (s *Store) Import(ctx context.Context, t *Table) error {
	return s.Put(ctx, t.Forms()...)
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
