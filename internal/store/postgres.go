package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/threatlens/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) GetRecord(ctx context.Context, fingerprint string) (*models.AnalysisRecord, error) {
	var (
		r        models.AnalysisRecord
		category string
		spots    []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT fingerprint, category, dangerous_lines, code_text FROM results WHERE fingerprint = $1`,
		fingerprint,
	).Scan(&r.Fingerprint, &category, &spots, &r.CodeText)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}

	r.Category = models.ThreatCategory(category)
	if r.DangerSpots, err = decodeSpots(spots); err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) InsertRecord(ctx context.Context, rec *models.AnalysisRecord) (bool, error) {
	spots, err := encodeSpots(rec.DangerSpots)
	if err != nil {
		return false, err
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO results (fingerprint, category, dangerous_lines, code_text)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (fingerprint) DO NOTHING`,
		rec.Fingerprint, string(rec.Category), spots, rec.CodeText)
	if err != nil {
		if isDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) CountByCategory(ctx context.Context) ([]models.CategoryCount, error) {
	rows, err := s.pool.Query(ctx,
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

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

var _ Store = (*PostgresStore)(nil)
