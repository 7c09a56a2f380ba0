package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v68/github"

	"github.com/kiranshivaraju/threatlens/pkg/models"
)

// MetadataClient reads repository metadata from the GitHub REST API.
type MetadataClient struct {
	client *gh.Client
}

// NewMetadataClient creates a MetadataClient. baseURL overrides the API root
// (GitHub Enterprise or tests); token is optional.
func NewMetadataClient(baseURL, token string, timeout time.Duration) (*MetadataClient, error) {
	client := gh.NewClient(&http.Client{Timeout: timeout})
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parsing github api url: %w", err)
		}
		client.BaseURL = u
	}
	return &MetadataClient{client: client}, nil
}

// RepoInfo returns metadata for the repository at rawURL, or nil when it
// cannot be obtained for any reason.
func (c *MetadataClient) RepoInfo(ctx context.Context, rawURL string) *models.RepoSummary {
	ref, err := NormalizeRepoURL(rawURL)
	if err != nil {
		slog.Warn("repository metadata skipped", "repo", rawURL, "error", err)
		return nil
	}

	repo, _, err := c.client.Repositories.Get(ctx, ref.Owner, ref.Name)
	if err != nil {
		slog.Warn("fetching repository metadata", "repo", ref.String(), "error", err)
		return nil
	}

	return summarize(repo)
}

func summarize(repo *gh.Repository) *models.RepoSummary {
	info := &models.RepoSummary{
		Description:   models.DescriptionPlaceholder,
		Language:      models.LanguagePlaceholder,
		Stars:         repo.GetStargazersCount(),
		Forks:         repo.GetForksCount(),
		DefaultBranch: repo.GetDefaultBranch(),
	}
	if d := repo.GetDescription(); d != "" {
		info.Description = d
		info.HasDescription = true
	}
	if l := repo.GetLanguage(); l != "" {
		info.Language = l
	}
	return info
}
