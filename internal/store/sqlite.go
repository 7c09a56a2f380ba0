package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/threatlens/pkg/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface on a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at path and ensures the
// results table exists. Use ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS results (
			fingerprint     TEXT PRIMARY KEY,
			category        TEXT NOT NULL,
			dangerous_lines TEXT,
			code_text       TEXT,
			created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_category ON results (category)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() {
	s.db.Close()
}

func (s *SQLiteStore) GetRecord(ctx context.Context, fingerprint string) (*models.AnalysisRecord, error) {
	var (
		r        models.AnalysisRecord
		category string
		spots    sql.NullString
		code     sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint, category, dangerous_lines, code_text FROM results WHERE fingerprint = ?`,
		fingerprint,
	).Scan(&r.Fingerprint, &category, &spots, &code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}

	r.Category = models.ThreatCategory(category)
	if code.Valid {
		r.CodeText = &code.String
	}
	if r.DangerSpots, err = decodeSpots([]byte(spots.String)); err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return &r, nil
}

func (s *SQLiteStore) InsertRecord(ctx context.Context, rec *models.AnalysisRecord) (bool, error) {
	spots, err := encodeSpots(rec.DangerSpots)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO results (fingerprint, category, dangerous_lines, code_text)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (fingerprint) DO NOTHING`,
		rec.Fingerprint, string(rec.Category), spots, rec.CodeText)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return false, nil
		}
		return false, fmt.Errorf("insert record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert record: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteStore) CountByCategory(ctx context.Context) ([]models.CategoryCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM results GROUP BY category ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("count by category: %w", err)
	}
	defer rows.Close()

	counts := []models.CategoryCount{}
	for rows.Next() {
		var c models.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

var _ Store = (*SQLiteStore)(nil)
