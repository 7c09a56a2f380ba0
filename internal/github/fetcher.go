package github

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Fallback branches tried after the metadata hint, in order.
var fallbackBranches = []string{"master", "main"}

var errUnpackedTooLarge = errors.New("unpacked archive too large")

// Snapshot is an unpacked repository archive inside a scratch directory.
type Snapshot struct {
	Ref        RepoRef
	Branch     string
	ScratchDir string
	// Root is the top-level source directory inside ScratchDir.
	Root string
}

// Remove deletes the scratch directory. It is safe to call more than once.
func (s *Snapshot) Remove() error {
	if s == nil || s.ScratchDir == "" {
		return nil
	}
	if err := os.RemoveAll(s.ScratchDir); err != nil {
		slog.Warn("removing scratch directory", "dir", s.ScratchDir, "error", err)
		return err
	}
	return nil
}

// Fetcher downloads and unpacks branch archives.
type Fetcher struct {
	archiveBase string
	maxBytes    int64
	maxUnpacked int64
	client      *http.Client
}

// NewFetcher creates a Fetcher that reads archives from archiveBaseURL
// (https://github.com in production). maxBytes caps the downloaded archive
// and maxUnpacked the total size of the extracted files.
func NewFetcher(archiveBaseURL string, timeout time.Duration, maxBytes, maxUnpacked int64) *Fetcher {
	return &Fetcher{
		archiveBase: strings.TrimRight(archiveBaseURL, "/"),
		maxBytes:    maxBytes,
		maxUnpacked: maxUnpacked,
		client:      &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the repository at rawURL into a fresh scratch directory.
// branchHint, usually the default branch from metadata, is tried before the
// fallbacks. On error nothing is left on disk.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, branchHint string) (*Snapshot, error) {
	ref, err := NormalizeRepoURL(rawURL)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "threatlens-"+ref.Name+"-")
	if err != nil {
		return nil, fmt.Errorf("%w: creating scratch dir: %v", ErrInvalidRepository, err)
	}

	snap, err := f.fetchInto(ctx, ref, dir, branchCandidates(branchHint))
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRepository, ref, err)
	}
	slog.Info("repository fetched", "repo", ref.String(), "branch", snap.Branch)
	return snap, nil
}

func (f *Fetcher) fetchInto(ctx context.Context, ref RepoRef, dir string, branches []string) (*Snapshot, error) {
	archive := filepath.Join(dir, "archive.zip")
	for _, branch := range branches {
		found, err := f.download(ctx, f.archiveURL(ref, branch), archive)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}

		dest := filepath.Join(dir, "src")
		if err := extractZip(archive, dest, f.maxUnpacked); err != nil {
			return nil, err
		}
		root, err := sourceRoot(dest, ref.Name+"-"+strings.ReplaceAll(branch, "/", "-"))
		if err != nil {
			return nil, err
		}
		return &Snapshot{Ref: ref, Branch: branch, ScratchDir: dir, Root: root}, nil
	}
	return nil, ErrBranchNotFound
}

func (f *Fetcher) archiveURL(ref RepoRef, branch string) string {
	return fmt.Sprintf("%s/%s/%s/archive/%s.zip", f.archiveBase, ref.Owner, ref.Name, branch)
}

// download saves url to dst. It reports false when the server answers 404.
func (f *Fetcher) download(ctx context.Context, url, dst string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("building request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("downloading archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("downloading archive: status %d", resp.StatusCode)
	}

	out, err := os.Create(dst)
	if err != nil {
		return false, err
	}
	defer out.Close()

	n, err := io.Copy(out, io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return false, fmt.Errorf("reading archive: %w", err)
	}
	if n > f.maxBytes {
		return false, fmt.Errorf("archive exceeds %d bytes", f.maxBytes)
	}
	return true, out.Close()
}

func branchCandidates(hint string) []string {
	out := make([]string, 0, len(fallbackBranches)+1)
	seen := make(map[string]bool)
	for _, b := range append([]string{hint}, fallbackBranches...) {
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	return out
}

// extractZip unpacks archive into dest, rejecting entries that would land
// outside dest and stopping once the extracted files exceed limit bytes in
// total. Symlinks are skipped.
func extractZip(archive, dest string, limit int64) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer r.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	base := filepath.Clean(dest) + string(os.PathSeparator)
	remaining := limit

	for _, zf := range r.File {
		target := filepath.Join(dest, zf.Name)
		if !strings.HasPrefix(target+string(os.PathSeparator), base) {
			return fmt.Errorf("archive entry %q escapes destination", zf.Name)
		}

		mode := zf.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case mode&os.ModeSymlink != 0:
			continue
		default:
			n, err := writeEntry(zf, target, remaining)
			if err != nil {
				return err
			}
			remaining -= n
		}
	}
	return nil
}

// writeEntry extracts one file, writing at most budget bytes. It returns the
// number of bytes written.
func writeEntry(zf *zip.File, target string, budget int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	rc, err := zf.Open()
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", zf.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, io.LimitReader(rc, budget+1))
	if err != nil {
		out.Close()
		return n, fmt.Errorf("writing %s: %w", zf.Name, err)
	}
	if n > budget {
		out.Close()
		return n, fmt.Errorf("%w at %s", errUnpackedTooLarge, zf.Name)
	}
	return n, out.Close()
}

// sourceRoot picks the archive's top-level directory: want if it exists,
// otherwise the only directory present.
func sourceRoot(dest, want string) (string, error) {
	if fi, err := os.Stat(filepath.Join(dest, want)); err == nil && fi.IsDir() {
		return filepath.Join(dest, want), nil
	}

	entries, err := os.ReadDir(dest)
	if err != nil {
		return "", err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) != 1 {
		return "", errors.New("archive has no single top-level directory")
	}
	return filepath.Join(dest, dirs[0]), nil
}
