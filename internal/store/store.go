package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kiranshivaraju/threatlens/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface for analysis records. Records are keyed
// by fingerprint and are insert-only.
type Store interface {
	Ping(ctx context.Context) error
	Close()

	// GetRecord returns ErrNotFound when no record exists for fingerprint.
	GetRecord(ctx context.Context, fingerprint string) (*models.AnalysisRecord, error)
	// InsertRecord stores rec unless a record with the same fingerprint exists.
	// It reports false with a nil error when the fingerprint was already taken.
	InsertRecord(ctx context.Context, rec *models.AnalysisRecord) (bool, error)
	// CountByCategory aggregates stored records per category, ordered by category.
	CountByCategory(ctx context.Context) ([]models.CategoryCount, error)
}

// encodeSpots serializes danger spots for the dangerous_lines column. An empty
// list is stored as NULL.
func encodeSpots(spots []models.DangerSpot) (*string, error) {
	if len(spots) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(spots)
	if err != nil {
		return nil, fmt.Errorf("encode dangerous lines: %w", err)
	}
	s := string(b)
	return &s, nil
}

func decodeSpots(raw []byte) ([]models.DangerSpot, error) {
	if len(raw) == 0 {
		return []models.DangerSpot{}, nil
	}
	var spots []models.DangerSpot
	if err := json.Unmarshal(raw, &spots); err != nil {
		return nil, fmt.Errorf("decode dangerous lines: %w", err)
	}
	if spots == nil {
		spots = []models.DangerSpot{}
	}
	return spots, nil
}
