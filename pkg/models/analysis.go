package models

// DangerSpot is a single flagged source line.
type DangerSpot struct {
	LineNumber int    `json:"line_number"`
	Code       string `json:"code"`
	Reason     string `json:"reason"`
}

// Classification is the outcome of analyzing one code body.
type Classification struct {
	Category    ThreatCategory `json:"category"`
	DangerSpots []DangerSpot   `json:"dangerous_lines"`
}

// AnalysisRecord is the persisted classification of a distinct code body.
// Records are written once and never updated.
type AnalysisRecord struct {
	Fingerprint string         `db:"fingerprint"     json:"fingerprint"`
	Category    ThreatCategory `db:"category"        json:"category"`
	DangerSpots []DangerSpot   `db:"dangerous_lines" json:"dangerous_lines"`
	CodeText    *string        `db:"code_text"       json:"code_text,omitempty"`
}

// Classification returns the category and danger spots of the record.
func (r *AnalysisRecord) Classification() Classification {
	spots := r.DangerSpots
	if spots == nil {
		spots = []DangerSpot{}
	}
	return Classification{Category: r.Category, DangerSpots: spots}
}

// CategoryCount is one row of the per-category aggregate.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}
