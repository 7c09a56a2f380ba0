package scan

import (
	"context"

	"github.com/kiranshivaraju/threatlens/internal/github"
	"github.com/kiranshivaraju/threatlens/pkg/models"
)

// Report is the outcome of analyzing a whole repository.
type Report struct {
	RepoAnalysis string              `json:"repo_analysis"`
	RepoInfo     *models.RepoSummary `json:"repo_info"`
	CodeAnalysis string              `json:"code_analysis"`
	Details      []models.FileResult `json:"details"`
}

// MetadataSource returns repository metadata, or nil when unavailable.
type MetadataSource interface {
	RepoInfo(ctx context.Context, rawURL string) *models.RepoSummary
}

// SnapshotFetcher downloads a repository into a scratch directory.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, rawURL, branchHint string) (*github.Snapshot, error)
}

// RepoDescriber summarizes repository metadata in prose.
type RepoDescriber interface {
	DescribeRepo(ctx context.Context, info *models.RepoSummary) string
}

// Reporter runs the full repository pipeline: metadata, download, per-file
// analysis and description.
type Reporter struct {
	meta      MetadataSource
	fetcher   SnapshotFetcher
	describer RepoDescriber
	analyzer  *RepoAnalyzer
}

func NewReporter(meta MetadataSource, fetcher SnapshotFetcher, describer RepoDescriber, analyzer *RepoAnalyzer) *Reporter {
	return &Reporter{meta: meta, fetcher: fetcher, describer: describer, analyzer: analyzer}
}

// Report analyzes the repository at rawURL. Errors wrap
// github.ErrInvalidRepoURL or github.ErrInvalidRepository when the repository
// cannot be fetched.
func (r *Reporter) Report(ctx context.Context, rawURL string) (*Report, error) {
	if _, err := github.NormalizeRepoURL(rawURL); err != nil {
		return nil, err
	}

	info := r.meta.RepoInfo(ctx, rawURL)
	var hint string
	if info != nil {
		hint = info.DefaultBranch
	}

	snap, err := r.fetcher.Fetch(ctx, rawURL, hint)
	if err != nil {
		return nil, err
	}
	details, err := r.analyzer.AnalyzeAll(ctx, snap)
	if err != nil {
		return nil, err
	}

	return &Report{
		RepoAnalysis: r.describer.DescribeRepo(ctx, info),
		RepoInfo:     info,
		CodeAnalysis: SummaryLine(len(details)),
		Details:      details,
	}, nil
}
