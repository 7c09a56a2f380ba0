// Package github resolves GitHub repository URLs, reads repository metadata
// and downloads source snapshots for scanning.
package github

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Sentinel errors for repository access failures.
var (
	ErrInvalidRepoURL    = errors.New("invalid github repository url")
	ErrInvalidRepository = errors.New("repository could not be fetched")
	ErrBranchNotFound    = errors.New("no archive found for any candidate branch")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// RepoRef identifies a repository by owner and name.
type RepoRef struct {
	Owner string
	Name  string
}

// URL returns the canonical https form of the repository URL.
func (r RepoRef) URL() string {
	return "https://github.com/" + r.Owner + "/" + r.Name
}

func (r RepoRef) String() string { return r.Owner + "/" + r.Name }

// NormalizeRepoURL parses raw into a RepoRef. The scheme and a www. prefix are
// optional; a trailing slash, a .git suffix and any path after the repository
// name are ignored.
func NormalizeRepoURL(raw string) (RepoRef, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return RepoRef{}, fmt.Errorf("%w: empty url", ErrInvalidRepoURL)
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return RepoRef{}, fmt.Errorf("%w: %v", ErrInvalidRepoURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return RepoRef{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidRepoURL, u.Scheme)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "github.com" {
		return RepoRef{}, fmt.Errorf("%w: host %q is not github.com", ErrInvalidRepoURL, u.Host)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return RepoRef{}, fmt.Errorf("%w: missing owner or repository in %q", ErrInvalidRepoURL, raw)
	}
	owner := parts[0]
	name := strings.TrimSuffix(parts[1], ".git")
	if !namePattern.MatchString(owner) || !namePattern.MatchString(name) || name == "." || name == ".." {
		return RepoRef{}, fmt.Errorf("%w: malformed owner or repository in %q", ErrInvalidRepoURL, raw)
	}

	return RepoRef{Owner: owner, Name: name}, nil
}
