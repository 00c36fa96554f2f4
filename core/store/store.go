// Package store persists bibliographies in a SQLite database.
//
// Each bibliography is stored under a unique name together with a BLAKE3
// digest of its rendered text. Elements are stored row per row in document
// order so that loading reconstructs the exact element sequence, and the
// digest is verified on load to detect corruption or out-of-band edits.
//
// The underlying driver is selected by core/sqlite: pure Go by default,
// mattn/go-sqlite3 when built with the cgo_sqlite tag.
package store

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/CedarBib/core/bibtex"
	"github.com/FocuswithJustin/CedarBib/core/errors"
	"github.com/FocuswithJustin/CedarBib/core/sqlite"
	"github.com/FocuswithJustin/CedarBib/internal/logging"
)

// Store is a handle to an open bibliography database.
type Store struct {
	db   *sql.DB
	path string
}

// Info summarizes one stored bibliography.
type Info struct {
	Name      string    `json:"name"`
	Digest    string    `json:"digest"`
	Elements  int       `json:"elements"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Open opens (or creates) a bibliography database at path.
func Open(path string) (*Store, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, errors.NewIO("open store", path, err)
	}
	// Single connection keeps the pragma in force for every statement and
	// serializes writers, which SQLite wants anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, errors.NewIO("open store", path, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS bibliographies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		digest TEXT NOT NULL,
		element_count INTEGER NOT NULL,
		month_macros INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create bibliographies table: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS elements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bibliography_id INTEGER NOT NULL REFERENCES bibliographies(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		element_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		type TEXT NOT NULL,
		source TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create elements table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_elements_bibliography
		ON elements(bibliography_id, position)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create elements index: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the database.
func (s *Store) Path() string {
	return s.path
}

// Digest returns the hex-encoded BLAKE3 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Save stores bib under name, replacing any previous version atomically.
func (s *Store) Save(name string, bib *bibtex.Bibliography) error {
	if name == "" {
		return errors.Wrap(errors.ErrInvalidInput, "bibliography name is empty")
	}
	if bib == nil {
		return errors.Wrap(errors.ErrInvalidInput, "bibliography is nil")
	}

	elements := bib.Elements()
	digest := Digest([]byte(bib.String()))
	now := time.Now().UTC().Format(time.RFC3339)
	macros := 0
	if bib.MonthMacros() {
		macros = 1
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO bibliographies (name, digest, element_count, month_macros, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			digest = excluded.digest,
			element_count = excluded.element_count,
			month_macros = excluded.month_macros,
			updated_at = excluded.updated_at`,
		name, digest, len(elements), macros, now, now); err != nil {
		return fmt.Errorf("upsert bibliography %q: %w", name, err)
	}

	var bibID int64
	if err := tx.QueryRow("SELECT id FROM bibliographies WHERE name = ?", name).Scan(&bibID); err != nil {
		return fmt.Errorf("resolve bibliography %q: %w", name, err)
	}

	if _, err := tx.Exec("DELETE FROM elements WHERE bibliography_id = ?", bibID); err != nil {
		return fmt.Errorf("clear elements for %q: %w", name, err)
	}

	for i, el := range elements {
		if _, err := tx.Exec(`INSERT INTO elements (bibliography_id, position, element_id, kind, type, source)
			VALUES (?, ?, ?, ?, ?, ?)`,
			bibID, i, el.ID(), el.Kind().String(), el.Type(), el.Text()); err != nil {
			return fmt.Errorf("insert element %d of %q: %w", i, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save of %q: %w", name, err)
	}
	logging.StoreEvent("save", s.path, len(elements), "name", name, "digest", digest[:12])
	return nil
}

// Load reconstructs the bibliography stored under name.
//
// The stored element sources are concatenated and re-parsed, so the result
// carries fresh element identities but identical text. The stored digest is
// verified against the reconstructed text before parsing.
func (s *Store) Load(name string) (*bibtex.Bibliography, error) {
	var bibID int64
	var digest string
	var macros int
	err := s.db.QueryRow("SELECT id, digest, month_macros FROM bibliographies WHERE name = ?", name).
		Scan(&bibID, &digest, &macros)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("bibliography", name)
	}
	if err != nil {
		return nil, fmt.Errorf("look up bibliography %q: %w", name, err)
	}

	rows, err := s.db.Query("SELECT source FROM elements WHERE bibliography_id = ? ORDER BY position", bibID)
	if err != nil {
		return nil, fmt.Errorf("read elements of %q: %w", name, err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, fmt.Errorf("scan element of %q: %w", name, err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read elements of %q: %w", name, err)
	}

	text := renderSources(sources)
	if got := Digest([]byte(text)); got != digest {
		return nil, errors.Wrapf(errors.ErrInvalidInput,
			"stored digest mismatch for %q: recorded %s, computed %s", name, digest[:12], got[:12])
	}

	bib, err := bibtex.ParseString(text, bibtex.ParseOptions{IncludeMeta: true})
	if err != nil {
		return nil, fmt.Errorf("reparse bibliography %q: %w", name, err)
	}
	if macros != 0 {
		bib.UseMonthMacros()
	}
	logging.StoreEvent("load", s.path, bib.Len(), "name", name)
	return bib, nil
}

// renderSources joins element sources the same way Bibliography.String does.
func renderSources(sources []string) string {
	if len(sources) == 0 {
		return ""
	}
	text := ""
	for i, src := range sources {
		if i > 0 {
			text += "\n\n"
		}
		text += src
	}
	return text + "\n"
}

// List returns a summary of every stored bibliography, ordered by name.
func (s *Store) List() ([]Info, error) {
	rows, err := s.db.Query("SELECT name, digest, element_count, updated_at FROM bibliographies ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list bibliographies: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var info Info
		var updated string
		if err := rows.Scan(&info.Name, &info.Digest, &info.Elements, &updated); err != nil {
			return nil, fmt.Errorf("scan bibliography row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, updated); err == nil {
			info.UpdatedAt = t
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list bibliographies: %w", err)
	}
	return infos, nil
}

// Delete removes the bibliography stored under name and its elements.
func (s *Store) Delete(name string) error {
	res, err := s.db.Exec("DELETE FROM bibliographies WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("delete bibliography %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete bibliography %q: %w", name, err)
	}
	if n == 0 {
		return errors.NewNotFound("bibliography", name)
	}
	logging.StoreEvent("delete", s.path, 0, "name", name)
	return nil
}
