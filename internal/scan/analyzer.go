// Package scan classifies every source file of a fetched repository.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/sourcegraph/conc/pool"

	"github.com/kiranshivaraju/threatlens/internal/github"
	"github.com/kiranshivaraju/threatlens/pkg/models"
)

// SourceExtensions lists the file suffixes that are analyzed.
var SourceExtensions = []string{".py", ".js", ".java", ".c", ".cpp", ".go", ".php", ".rb", ".ts"}

var errNotUTF8 = errors.New("file is not valid UTF-8 text")

// CodeAnalyzer classifies a single code body.
type CodeAnalyzer interface {
	AnalyzeCode(ctx context.Context, code string) (models.Classification, error)
}

// RepoAnalyzer runs a CodeAnalyzer over the source files of a Snapshot.
type RepoAnalyzer struct {
	analyzer    CodeAnalyzer
	concurrency int
}

// NewRepoAnalyzer creates a RepoAnalyzer that classifies up to concurrency
// files at a time.
func NewRepoAnalyzer(analyzer CodeAnalyzer, concurrency int) *RepoAnalyzer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &RepoAnalyzer{analyzer: analyzer, concurrency: concurrency}
}

// AnalyzeAll classifies every source file under snap.Root and removes the
// snapshot afterwards. Results follow lexical walk order. Failures on
// individual files are reported in their entries and do not stop the scan.
func (a *RepoAnalyzer) AnalyzeAll(ctx context.Context, snap *github.Snapshot) ([]models.FileResult, error) {
	defer snap.Remove()

	files, err := collectFiles(snap.Root)
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", snap.Ref, err)
	}

	results := make([]models.FileResult, len(files))
	p := pool.New().WithMaxGoroutines(a.concurrency)
	for i, rel := range files {
		p.Go(func() {
			results[i] = a.analyzeFile(ctx, snap.Root, rel)
		})
	}
	p.Wait()

	slog.Info("repository analyzed", "repo", snap.Ref.String(), "files", len(results))
	return results, nil
}

func (a *RepoAnalyzer) analyzeFile(ctx context.Context, root, rel string) models.FileResult {
	code, err := readSource(filepath.Join(root, filepath.FromSlash(rel)))
	if err == nil {
		var cl models.Classification
		cl, err = a.analyzer.AnalyzeCode(ctx, code)
		if err == nil {
			return models.FileResult{
				File:           rel,
				Result:         cl.Category.String(),
				DangerousLines: cl.DangerSpots,
				FullCode:       strings.Split(code, "\n"),
			}
		}
	}

	slog.Warn("file analysis failed", "file", rel, "error", err)
	return models.FileResult{
		File:           rel,
		Result:         models.FileErrorResult(err),
		DangerousLines: []models.DangerSpot{},
		FullCode:       []string{},
	}
}

func readSource(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errNotUTF8
	}
	return string(b), nil
}

// collectFiles returns slash-separated paths, relative to root, of the
// regular files with a source extension.
func collectFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			slog.Warn("skipping unreadable path", "file", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !hasSourceExtension(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	return files, err
}

func hasSourceExtension(name string) bool {
	for _, ext := range SourceExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// SummaryLine is the closing line of a repository report.
func SummaryLine(n int) string {
	return fmt.Sprintf("Анализ завершен. Проанализировано файлов: %d", n)
}
