// Package store handles SQLite persistence of the local edit journal.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/ecgscope/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// timeLayout keeps a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps SQLite access for journaled files and annotation edits.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// The session journals from several goroutines at once.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS opened_files (
			id INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			filename TEXT NOT NULL,
			opened_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS edits (
			id INTEGER PRIMARY KEY,
			file TEXT NOT NULL,
			op TEXT NOT NULL,
			time_position REAL NOT NULL,
			annotation INTEGER,
			changed INTEGER NOT NULL,
			at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_opened_files_opened_at ON opened_files(opened_at);`,
		`CREATE INDEX IF NOT EXISTS idx_edits_file_at ON edits(file, at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordOpen stores a file load.
func (s *Store) RecordOpen(ctx context.Context, f model.OpenedFile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO opened_files (path, filename, opened_at) VALUES (?, ?, ?)`,
		f.Path,
		f.Filename,
		f.OpenedAt.UTC().Format(timeLayout),
	)
	return err
}

// RecordEdit stores an annotation edit and returns its id.
func (s *Store) RecordEdit(ctx context.Context, e model.Edit) (int64, error) {
	var annotation sql.NullInt64
	if e.Annotation != nil {
		annotation = sql.NullInt64{Int64: int64(*e.Annotation), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO edits (file, op, time_position, annotation, changed, at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.File,
		string(e.Op),
		e.TimePosition,
		annotation,
		e.Changed,
		e.At.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListEdits returns journaled edits in chronological order. A positive
// filter.Last keeps only the most recent edits.
func (s *Store) ListEdits(ctx context.Context, filter model.EditFilter) ([]model.Edit, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.File != "" {
		clauses = append(clauses, "file = ?")
		args = append(args, filter.File)
	}
	if filter.Since != nil {
		clauses = append(clauses, "at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	limit := ""
	if filter.Last > 0 {
		limit = "LIMIT ?"
		args = append(args, filter.Last)
	}
	query := fmt.Sprintf(`SELECT id, file, op, time_position, annotation, changed, at FROM (
		SELECT * FROM edits
		WHERE %s
		ORDER BY at DESC, id DESC
		%s
	) ORDER BY at ASC, id ASC`, strings.Join(clauses, " AND "), limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var edits []model.Edit
	for rows.Next() {
		var e model.Edit
		var op, at string
		var annotation sql.NullInt64
		if err := rows.Scan(&e.ID, &e.File, &op, &e.TimePosition, &annotation, &e.Changed, &at); err != nil {
			return nil, err
		}
		e.Op = model.EditOp(op)
		if annotation.Valid {
			a := model.Annotation(annotation.Int64)
			e.Annotation = &a
		}
		parsed, err := time.Parse(timeLayout, at)
		if err != nil {
			return nil, err
		}
		e.At = parsed
		edits = append(edits, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return edits, nil
}

// RecentFiles returns the most recently opened distinct paths, newest first.
func (s *Store) RecentFiles(ctx context.Context, limit int) ([]model.OpenedFile, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, filename, MAX(opened_at) AS last_opened
		 FROM opened_files
		 GROUP BY path
		 ORDER BY last_opened DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var files []model.OpenedFile
	for rows.Next() {
		var f model.OpenedFile
		var openedAt string
		if err := rows.Scan(&f.Path, &f.Filename, &openedAt); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(timeLayout, openedAt)
		if err != nil {
			return nil, err
		}
		f.OpenedAt = parsed
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return files, nil
}
