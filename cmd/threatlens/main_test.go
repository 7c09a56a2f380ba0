package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kiranshivaraju/threatlens/internal/ai"
	"github.com/kiranshivaraju/threatlens/internal/ai/mock"
	"github.com/kiranshivaraju/threatlens/internal/app"
	"github.com/kiranshivaraju/threatlens/internal/cache"
	"github.com/kiranshivaraju/threatlens/internal/github"
	"github.com/kiranshivaraju/threatlens/internal/scan"
	"github.com/kiranshivaraju/threatlens/internal/store"
	"github.com/kiranshivaraju/threatlens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── fixtures ───────────────────────────────────────────────────────────────

type stubMeta struct{ info *models.RepoSummary }

func (s stubMeta) RepoInfo(_ context.Context, _ string) *models.RepoSummary { return s.info }

// dirFetcher serves a copy of a fixed file set as the repository snapshot.
type dirFetcher struct{ files map[string]string }

func (f dirFetcher) Fetch(_ context.Context, rawURL, branchHint string) (*github.Snapshot, error) {
	ref, err := github.NormalizeRepoURL(rawURL)
	if err != nil {
		return nil, err
	}
	scratch, err := os.MkdirTemp("", "threatlens-cli-test-")
	if err != nil {
		return nil, err
	}
	root := filepath.Join(scratch, ref.Name+"-"+branchHint)
	for name, body := range f.files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return nil, err
		}
	}
	return &github.Snapshot{Ref: ref, Branch: branchHint, ScratchDir: scratch, Root: root}, nil
}

// useTestApp points openApp at a SQLite file in a temp dir and the given
// provider. Each command run gets its own App, as in production.
func useTestApp(t *testing.T, p *mock.MockProvider, files map[string]string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "results.db")

	prev := openApp
	openApp = func(_ context.Context) (*app.App, error) {
		st, err := store.NewSQLiteStore(dbPath)
		if err != nil {
			return nil, err
		}
		mc, err := cache.NewMemoryCache(16)
		if err != nil {
			return nil, err
		}
		svc := ai.NewAnalysisService(p, st, mc, time.Hour, 5*time.Second)
		meta := stubMeta{info: &models.RepoSummary{
			Description:    "demo",
			Language:       "Go",
			DefaultBranch:  "main",
			HasDescription: true,
		}}
		reporter := scan.NewReporter(meta, dirFetcher{files: files}, svc, scan.NewRepoAnalyzer(svc, 2))
		return &app.App{Store: st, Cache: mc, Service: svc, Reporter: reporter}, nil
	}
	t.Cleanup(func() { openApp = prev })
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// ─── structure ──────────────────────────────────────────────────────────────

func TestRootCmd_Structure(t *testing.T) {
	cmd := rootCmd()
	assert.Equal(t, "threatlens", cmd.Use)

	subcommands := map[string]bool{}
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}
	assert.True(t, subcommands["analyze"], "should have analyze subcommand")
	assert.True(t, subcommands["repo"], "should have repo subcommand")
	assert.True(t, subcommands["stats"], "should have stats subcommand")
}

func TestAnalyzeCmd_RequiresOneArg(t *testing.T) {
	_, err := execute(t, "", "analyze")
	require.Error(t, err)
}

// ─── analyze ────────────────────────────────────────────────────────────────

func TestAnalyzeCmd_File(t *testing.T) {
	p := mock.NewReplyProvider(`{"category": "Фишинг", "dangerous_lines": [{"line_number": 1, "code": "fetch(url)", "reason": "credential form"}]}`)
	useTestApp(t, p, nil)

	path := filepath.Join(t.TempDir(), "login.js")
	require.NoError(t, os.WriteFile(path, []byte("fetch(url)\nrender()"), 0o644))

	out, err := execute(t, "", "analyze", path)
	require.NoError(t, err)

	var got codeResult
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Фишинг", got.Analysis)
	assert.Equal(t, []string{"fetch(url)", "render()"}, got.FullCode)
	require.Len(t, got.DangerousLines, 1)
	assert.Equal(t, 1, got.DangerousLines[0].LineNumber)
}

func TestAnalyzeCmd_Stdin(t *testing.T) {
	p := mock.NewMockProvider()
	useTestApp(t, p, nil)

	out, err := execute(t, "print('hi')", "analyze", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"analysis": "Безопасный код"`)
	assert.Equal(t, 1, p.Calls())
}

func TestAnalyzeCmd_EmptyInput(t *testing.T) {
	useTestApp(t, mock.NewMockProvider(), nil)

	_, err := execute(t, "", "analyze", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestAnalyzeCmd_MissingFile(t *testing.T) {
	useTestApp(t, mock.NewMockProvider(), nil)

	_, err := execute(t, "", "analyze", filepath.Join(t.TempDir(), "nope.py"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading")
}

func TestAnalyzeCmd_ProviderUnavailable(t *testing.T) {
	useTestApp(t, mock.NewFailingProvider(ai.ErrProviderUnavailable), nil)

	_, err := execute(t, "x = 1", "analyze", "-")
	require.ErrorIs(t, err, ai.ErrProviderUnavailable)
}

// ─── repo ───────────────────────────────────────────────────────────────────

func TestRepoCmd(t *testing.T) {
	p := mock.NewMockProvider()
	useTestApp(t, p, map[string]string{
		"main.go":      "package main",
		"lib/util.py":  "def f(): pass",
		"README.md":    "# demo",
		"assets/a.png": "png",
	})

	out, err := execute(t, "", "repo", "https://github.com/octocat/demo")
	require.NoError(t, err)

	var got scan.Report
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, scan.SummaryLine(2), got.CodeAnalysis)
	require.Len(t, got.Details, 2)
	files := []string{got.Details[0].File, got.Details[1].File}
	assert.ElementsMatch(t, []string{"main.go", "lib/util.py"}, files)
	require.NotNil(t, got.RepoInfo)
	assert.Equal(t, "demo", got.RepoInfo.Description)
}

func TestRepoCmd_InvalidURL(t *testing.T) {
	useTestApp(t, mock.NewMockProvider(), nil)

	_, err := execute(t, "", "repo", "https://gitlab.com/octocat/demo")
	require.ErrorIs(t, err, github.ErrInvalidRepoURL)
}

// ─── stats ──────────────────────────────────────────────────────────────────

func TestStatsCmd(t *testing.T) {
	useTestApp(t, mock.NewMockProvider(), nil)

	_, err := execute(t, "a = 1", "analyze", "-")
	require.NoError(t, err)

	out, err := execute(t, "", "stats")
	require.NoError(t, err)
	assert.JSONEq(t, `{"labels": ["Безопасный код"], "values": [1]}`, out)
}

func TestStatsCmd_Empty(t *testing.T) {
	useTestApp(t, mock.NewMockProvider(), nil)

	out, err := execute(t, "", "stats")
	require.NoError(t, err)
	assert.JSONEq(t, `{"labels": [], "values": []}`, out)
}
