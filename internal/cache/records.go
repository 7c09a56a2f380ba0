package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kiranshivaraju/threatlens/pkg/models"
)

// GetClassification reads a cached classification for fingerprint. Undecodable
// entries are reported as a miss.
func GetClassification(ctx context.Context, c Cache, fingerprint string) (models.Classification, bool, error) {
	raw, found, err := c.Get(ctx, RecordKey(fingerprint))
	if err != nil || !found {
		return models.Classification{}, false, err
	}
	var cl models.Classification
	if err := json.Unmarshal(raw, &cl); err != nil {
		return models.Classification{}, false, nil
	}
	if cl.DangerSpots == nil {
		cl.DangerSpots = []models.DangerSpot{}
	}
	return cl, true, nil
}

// SetClassification caches cl under fingerprint. Records are immutable, so the
// TTL only bounds memory use.
func SetClassification(ctx context.Context, c Cache, fingerprint string, cl models.Classification, ttl time.Duration) error {
	raw, err := json.Marshal(cl)
	if err != nil {
		return err
	}
	return c.Set(ctx, RecordKey(fingerprint), raw, ttl)
}
