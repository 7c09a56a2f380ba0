package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kiranshivaraju/threatlens/internal/analysis"
	"github.com/kiranshivaraju/threatlens/internal/cache"
	"github.com/kiranshivaraju/threatlens/internal/store"
	"github.com/kiranshivaraju/threatlens/pkg/models"
)

// Fallback texts returned by DescribeRepo.
const (
	RepoInfoUnavailable    = "Не удалось получить информацию о репозитории"
	RepoDescriptionMissing = "Не удалось получить описание репозитория"
	RepoDescriptionFailed  = "Не удалось проанализировать описание репозитория"
)

// AnalysisService classifies code through the configured provider and keeps
// the results keyed by content fingerprint.
type AnalysisService struct {
	provider models.AIProvider
	store    store.Store
	cache    cache.Cache
	cacheTTL time.Duration
	timeout  time.Duration

	inflight singleflight.Group
}

// NewAnalysisService creates a new AnalysisService. ca may be nil, in which
// case only the store is consulted.
func NewAnalysisService(provider models.AIProvider, st store.Store, ca cache.Cache, cacheTTL, timeout time.Duration) *AnalysisService {
	return &AnalysisService{
		provider: provider,
		store:    st,
		cache:    ca,
		cacheTTL: cacheTTL,
		timeout:  timeout,
	}
}

// AnalyzeCode returns the classification for code, calling the model only
// when no record exists for its fingerprint.
//
// Contract violations and storage failures yield a synthetic analysis-error
// classification with a nil error. Provider failures are returned as errors.
func (s *AnalysisService) AnalyzeCode(ctx context.Context, code string) (models.Classification, error) {
	fp := analysis.Fingerprint(code)

	if cl, ok := s.cached(ctx, fp); ok {
		return cl, nil
	}

	rec, err := s.store.GetRecord(ctx, fp)
	switch {
	case err == nil:
		cl := rec.Classification()
		s.remember(ctx, fp, cl)
		return cl, nil
	case !errors.Is(err, store.ErrNotFound):
		slog.Error("looking up analysis record", "fingerprint", fp, "error", err)
		return analysis.ErrorClassification(err), nil
	}

	v, err, _ := s.inflight.Do(fp, func() (any, error) {
		return s.classify(ctx, fp, code)
	})
	if err != nil {
		return models.Classification{}, err
	}
	return v.(models.Classification), nil
}

func (s *AnalysisService) classify(ctx context.Context, fp, code string) (models.Classification, error) {
	raw, err := s.complete(ctx, models.CompletionRequest{
		System: analysis.SystemPrompt(),
		User:   code,
	})
	if err != nil {
		slog.Warn("classifier call failed", "fingerprint", fp, "provider", s.provider.Name(), "error", err)
		return models.Classification{}, err
	}

	cl, err := analysis.ParseClassification(raw)
	if err != nil {
		slog.Warn("rejected classifier reply", "fingerprint", fp, "provider", s.provider.Name(), "error", err)
		return analysis.ErrorClassification(err), nil
	}

	inserted, err := s.store.InsertRecord(ctx, &models.AnalysisRecord{
		Fingerprint: fp,
		Category:    cl.Category,
		DangerSpots: cl.DangerSpots,
		CodeText:    &code,
	})
	if err != nil {
		slog.Error("storing analysis record", "fingerprint", fp, "error", err)
		return analysis.ErrorClassification(err), nil
	}
	if !inserted {
		// Another writer stored this fingerprint first; its record wins.
		if rec, err := s.store.GetRecord(ctx, fp); err == nil {
			cl = rec.Classification()
		}
	}

	s.remember(ctx, fp, cl)
	return cl, nil
}

// DescribeRepo asks the model for a short summary of a repository
// description. It always returns displayable text.
func (s *AnalysisService) DescribeRepo(ctx context.Context, info *models.RepoSummary) string {
	if info == nil {
		return RepoInfoUnavailable
	}
	if !info.HasDescription {
		return RepoDescriptionMissing
	}

	raw, err := s.complete(ctx, models.CompletionRequest{
		User: analysis.RepoDescriptionPrompt(info.Description, info.Language),
	})
	if err != nil {
		slog.Warn("describing repository", "provider", s.provider.Name(), "error", err)
		return RepoDescriptionFailed
	}

	text := strings.TrimSpace(strings.ReplaceAll(analysis.StripCodeFence(raw), "`", ""))
	if text == "" {
		return RepoDescriptionFailed
	}
	return text
}

// complete runs one provider call bounded by the inference timeout.
func (s *AnalysisService) complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	raw, err := s.provider.Complete(ctx, req)
	if err != nil && !errors.Is(err, ErrInferenceTimeout) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
	}
	return raw, err
}

func (s *AnalysisService) cached(ctx context.Context, fp string) (models.Classification, bool) {
	if s.cache == nil {
		return models.Classification{}, false
	}
	cl, found, err := cache.GetClassification(ctx, s.cache, fp)
	if err != nil {
		slog.Warn("record cache lookup failed", "fingerprint", fp, "error", err)
		return models.Classification{}, false
	}
	return cl, found
}

func (s *AnalysisService) remember(ctx context.Context, fp string, cl models.Classification) {
	if s.cache == nil {
		return
	}
	if err := cache.SetClassification(ctx, s.cache, fp, cl, s.cacheTTL); err != nil {
		slog.Warn("record cache write failed", "fingerprint", fp, "error", err)
	}
}
