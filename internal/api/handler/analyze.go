package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/threatlens/internal/ai"
	mw "github.com/kiranshivaraju/threatlens/internal/api/middleware"
	"github.com/kiranshivaraju/threatlens/internal/api/response"
	"github.com/kiranshivaraju/threatlens/internal/github"
	"github.com/kiranshivaraju/threatlens/internal/scan"
	"github.com/kiranshivaraju/threatlens/pkg/models"
)

// maxBodyBytes bounds the request body of POST /api/v1/analyze.
const maxBodyBytes = 10 << 20

// CodeAnalyzer classifies a single code body.
type CodeAnalyzer interface {
	AnalyzeCode(ctx context.Context, code string) (models.Classification, error)
}

// RepoReporter analyzes a whole repository.
type RepoReporter interface {
	Report(ctx context.Context, rawURL string) (*scan.Report, error)
}

type analyzeRequest struct {
	Code      string `json:"code"`
	GitHubURL string `json:"github_url"`
}

type codeAnalysisResponse struct {
	Analysis       string              `json:"analysis"`
	DangerousLines []models.DangerSpot `json:"dangerous_lines"`
	FullCode       []string            `json:"full_code"`
}

// NewAnalyzeHandler returns an http.HandlerFunc for POST /api/v1/analyze.
// A non-empty github_url takes precedence over code, even when it is only
// whitespace; such URLs are rejected as invalid repositories.
func NewAnalyzeHandler(codes CodeAnalyzer, repos RepoReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		switch {
		case req.GitHubURL != "":
			analyzeRepo(w, r, repos, req.GitHubURL)
		case req.Code != "":
			analyzeCode(w, r, codes, req.Code)
		default:
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Either code or github_url is required", nil)
		}
	}
}

func analyzeCode(w http.ResponseWriter, r *http.Request, codes CodeAnalyzer, code string) {
	cl, err := codes.AnalyzeCode(r.Context(), code)
	if err != nil {
		writeAnalysisError(w, r, err)
		return
	}
	response.JSON(w, codeAnalysisResponse{
		Analysis:       cl.Category.String(),
		DangerousLines: cl.DangerSpots,
		FullCode:       strings.Split(code, "\n"),
	})
}

func analyzeRepo(w http.ResponseWriter, r *http.Request, repos RepoReporter, rawURL string) {
	report, err := repos.Report(r.Context(), rawURL)
	if err != nil {
		writeAnalysisError(w, r, err)
		return
	}
	response.JSON(w, report)
}

func writeAnalysisError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, github.ErrInvalidRepoURL), errors.Is(err, github.ErrInvalidRepository):
		response.Error(w, http.StatusBadRequest, "INVALID_REPOSITORY",
			"Invalid or inaccessible GitHub repository", nil)
	case errors.Is(err, ai.ErrProviderUnavailable), errors.Is(err, ai.ErrInvalidResponse):
		response.Error(w, http.StatusBadGateway, "AI_PROVIDER_UNAVAILABLE",
			"The AI provider is not available", nil)
	case errors.Is(err, ai.ErrInferenceTimeout):
		response.Error(w, http.StatusGatewayTimeout, "AI_INFERENCE_TIMEOUT",
			"AI analysis took too long and was cancelled", nil)
	default:
		requestID, _ := mw.GetRequestID(r.Context())
		slog.Error("analyze request failed", "error", err, "request_id", requestID)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
