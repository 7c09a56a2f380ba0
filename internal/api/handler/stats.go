package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/threatlens/internal/api/response"
	"github.com/kiranshivaraju/threatlens/pkg/models"
)

// StatsReader aggregates stored records per category.
type StatsReader interface {
	CountByCategory(ctx context.Context) ([]models.CategoryCount, error)
}

type statsResponse struct {
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
}

// NewStatsHandler returns an http.HandlerFunc for GET /api/v1/stats.
func NewStatsHandler(st StatsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := st.CountByCategory(r.Context())
		if err != nil {
			slog.Error("counting records by category", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load statistics", nil)
			return
		}

		resp := statsResponse{
			Labels: make([]string, 0, len(counts)),
			Values: make([]int, 0, len(counts)),
		}
		for _, c := range counts {
			resp.Labels = append(resp.Labels, c.Category)
			resp.Values = append(resp.Values, c.Count)
		}
		response.JSON(w, resp)
	}
}
