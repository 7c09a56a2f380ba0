package ai_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kiranshivaraju/threatlens/internal/ai"
	"github.com/kiranshivaraju/threatlens/internal/ai/mock"
	"github.com/kiranshivaraju/threatlens/internal/analysis"
	"github.com/kiranshivaraju/threatlens/internal/cache"
	"github.com/kiranshivaraju/threatlens/internal/store"
	"github.com/kiranshivaraju/threatlens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const backdoorReply = "```json\n" + `{"category": "Бэкдор", "dangerous_lines": [{"line_number": 2, "code": "os.system(cmd)", "reason": "remote command execution"}]}` + "\n```"

const backdoorCode = "import os\nos.system(cmd)\n"

// --- helpers ---

func newSQLiteStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func newMemoryCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewMemoryCache(64)
	require.NoError(t, err)
	return c
}

func newService(t *testing.T, p models.AIProvider, st store.Store, ca cache.Cache) *ai.AnalysisService {
	t.Helper()
	return ai.NewAnalysisService(p, st, ca, time.Hour, 5*time.Second)
}

// failingStore returns err from every operation.
type failingStore struct {
	getErr    error
	insertErr error
}

func (f *failingStore) Ping(_ context.Context) error { return nil }
func (f *failingStore) Close()                       {}
func (f *failingStore) GetRecord(_ context.Context, _ string) (*models.AnalysisRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return nil, store.ErrNotFound
}
func (f *failingStore) InsertRecord(_ context.Context, _ *models.AnalysisRecord) (bool, error) {
	return false, f.insertErr
}
func (f *failingStore) CountByCategory(_ context.Context) ([]models.CategoryCount, error) {
	return nil, nil
}

// --- AnalyzeCode ---

func TestAnalyzeCode_SafeIsPersisted(t *testing.T) {
	st := newSQLiteStore(t)
	p := mock.NewReplyProvider(`{"category": "Безопасный код"}`)
	svc := newService(t, p, st, nil)

	cl, err := svc.AnalyzeCode(context.Background(), "print('hi')")
	require.NoError(t, err)
	assert.Equal(t, models.CategorySafe, cl.Category)
	assert.Empty(t, cl.DangerSpots)
	assert.NotNil(t, cl.DangerSpots)

	rec, err := st.GetRecord(context.Background(), analysis.Fingerprint("print('hi')"))
	require.NoError(t, err)
	assert.Equal(t, models.CategorySafe, rec.Category)
	require.NotNil(t, rec.CodeText)
	assert.Equal(t, "print('hi')", *rec.CodeText)
}

func TestAnalyzeCode_Idempotent(t *testing.T) {
	st := newSQLiteStore(t)
	p := mock.NewReplyProvider(backdoorReply)
	svc := newService(t, p, st, nil)
	ctx := context.Background()

	first, err := svc.AnalyzeCode(ctx, backdoorCode)
	require.NoError(t, err)
	second, err := svc.AnalyzeCode(ctx, backdoorCode)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, p.Calls(), "second call must be served from the store")
	assert.Equal(t, models.CategoryBackdoor, first.Category)
	require.Len(t, first.DangerSpots, 1)
	assert.Equal(t, 2, first.DangerSpots[0].LineNumber)
}

func TestAnalyzeCode_DifferentBytesDifferentRecords(t *testing.T) {
	st := newSQLiteStore(t)
	p := mock.NewMockProvider()
	svc := newService(t, p, st, nil)
	ctx := context.Background()

	_, err := svc.AnalyzeCode(ctx, "x = 1")
	require.NoError(t, err)
	_, err = svc.AnalyzeCode(ctx, "x = 1\n")
	require.NoError(t, err)

	assert.Equal(t, 2, p.Calls())
}

func TestAnalyzeCode_StoredRecordReturnedVerbatim(t *testing.T) {
	st := newSQLiteStore(t)
	code := "eval(input())"
	spots := []models.DangerSpot{{LineNumber: 1, Code: code, Reason: "arbitrary eval"}}
	_, err := st.InsertRecord(context.Background(), &models.AnalysisRecord{
		Fingerprint: analysis.Fingerprint(code),
		Category:    models.CategoryBackdoor,
		DangerSpots: spots,
	})
	require.NoError(t, err)

	p := mock.NewMockProvider()
	svc := newService(t, p, st, nil)

	cl, err := svc.AnalyzeCode(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryBackdoor, cl.Category)
	assert.Equal(t, spots, cl.DangerSpots)
	assert.Zero(t, p.Calls())
}

func TestAnalyzeCode_MissingEvidenceNotPersisted(t *testing.T) {
	st := newSQLiteStore(t)
	p := mock.NewReplyProvider(`{"category": "Бэкдор", "dangerous_lines": []}`)
	svc := newService(t, p, st, nil)

	cl, err := svc.AnalyzeCode(context.Background(), backdoorCode)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryAnalysisError, cl.Category)
	require.Len(t, cl.DangerSpots, 1)
	assert.Equal(t, 0, cl.DangerSpots[0].LineNumber)
	assert.Contains(t, cl.DangerSpots[0].Reason, "Не удалось проанализировать код")

	_, err = st.GetRecord(context.Background(), analysis.Fingerprint(backdoorCode))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAnalyzeCode_UnknownCategoryRetriedNextTime(t *testing.T) {
	st := newSQLiteStore(t)
	p := mock.NewReplyProvider(`{"category": "Вирус", "dangerous_lines": [{"line_number": 1, "code": "x", "reason": "y"}]}`)
	svc := newService(t, p, st, nil)
	ctx := context.Background()

	cl, err := svc.AnalyzeCode(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryAnalysisError, cl.Category)

	_, err = svc.AnalyzeCode(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Calls(), "rejected replies are not cached")
}

func TestAnalyzeCode_MalformedReply(t *testing.T) {
	st := newSQLiteStore(t)
	p := mock.NewReplyProvider("I think this code is fine.")
	svc := newService(t, p, st, nil)

	cl, err := svc.AnalyzeCode(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryAnalysisError, cl.Category)
}

func TestAnalyzeCode_ProviderUnavailable(t *testing.T) {
	st := newSQLiteStore(t)
	p := mock.NewFailingProvider(ai.ErrProviderUnavailable)
	svc := newService(t, p, st, nil)

	_, err := svc.AnalyzeCode(context.Background(), "x")
	assert.ErrorIs(t, err, ai.ErrProviderUnavailable)

	_, err = st.GetRecord(context.Background(), analysis.Fingerprint("x"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAnalyzeCode_InferenceTimeout(t *testing.T) {
	st := newSQLiteStore(t)
	p := mock.NewTimeoutProvider()
	svc := ai.NewAnalysisService(p, st, nil, time.Hour, 50*time.Millisecond)

	_, err := svc.AnalyzeCode(context.Background(), "x")
	assert.ErrorIs(t, err, ai.ErrInferenceTimeout)
}

func TestAnalyzeCode_DeadlineWithoutSentinelIsTimeout(t *testing.T) {
	st := newSQLiteStore(t)
	p := &mock.MockProvider{
		Name_: "slow",
		CompleteFunc: func(ctx context.Context, _ models.CompletionRequest) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	svc := ai.NewAnalysisService(p, st, nil, time.Hour, 20*time.Millisecond)

	_, err := svc.AnalyzeCode(context.Background(), "x")
	assert.ErrorIs(t, err, ai.ErrInferenceTimeout)
}

func TestAnalyzeCode_StoreLookupFailure(t *testing.T) {
	st := &failingStore{getErr: errors.New("disk I/O error")}
	p := mock.NewMockProvider()
	svc := newService(t, p, st, nil)

	cl, err := svc.AnalyzeCode(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryAnalysisError, cl.Category)
	assert.Zero(t, p.Calls(), "no model call when the store is unreadable")
}

func TestAnalyzeCode_StoreInsertFailure(t *testing.T) {
	st := &failingStore{insertErr: errors.New("database is locked")}
	p := mock.NewMockProvider()
	svc := newService(t, p, st, nil)

	cl, err := svc.AnalyzeCode(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryAnalysisError, cl.Category)
	assert.Contains(t, cl.DangerSpots[0].Reason, "database is locked")
}

func TestAnalyzeCode_CacheServesRepeatLookups(t *testing.T) {
	st := newSQLiteStore(t)
	ca := newMemoryCache(t)
	p := mock.NewReplyProvider(backdoorReply)
	svc := newService(t, p, st, ca)
	ctx := context.Background()

	_, err := svc.AnalyzeCode(ctx, backdoorCode)
	require.NoError(t, err)

	cached, found, err := cache.GetClassification(ctx, ca, analysis.Fingerprint(backdoorCode))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.CategoryBackdoor, cached.Category)

	// A broken store no longer matters once the cache is warm.
	svc2 := newService(t, p, &failingStore{getErr: errors.New("gone")}, ca)
	cl, err := svc2.AnalyzeCode(ctx, backdoorCode)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryBackdoor, cl.Category)
	assert.Equal(t, 1, p.Calls())
}

func TestAnalyzeCode_ConcurrentIdenticalRequests(t *testing.T) {
	st := newSQLiteStore(t)
	release := make(chan struct{})
	p := &mock.MockProvider{
		Name_: "gated",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (string, error) {
			<-release
			return mock.SafeReply, nil
		},
	}
	svc := newService(t, p, st, nil)

	const workers = 8
	var wg sync.WaitGroup
	results := make([]models.Classification, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.AnalyzeCode(context.Background(), "same code")
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, models.CategorySafe, results[i].Category)
	}
	assert.LessOrEqual(t, p.Calls(), workers)

	counts, err := st.CountByCategory(context.Background())
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, 1, counts[0].Count)
}

// --- DescribeRepo ---

func TestDescribeRepo_NilInfo(t *testing.T) {
	p := mock.NewMockProvider()
	svc := newService(t, p, newSQLiteStore(t), nil)

	assert.Equal(t, ai.RepoInfoUnavailable, svc.DescribeRepo(context.Background(), nil))
	assert.Zero(t, p.Calls())
}

func TestDescribeRepo_NoDescription(t *testing.T) {
	p := mock.NewMockProvider()
	svc := newService(t, p, newSQLiteStore(t), nil)

	info := &models.RepoSummary{Description: models.DescriptionPlaceholder, Language: "Go"}
	assert.Equal(t, ai.RepoDescriptionMissing, svc.DescribeRepo(context.Background(), info))
	assert.Zero(t, p.Calls())
}

func TestDescribeRepo_StripsBackticks(t *testing.T) {
	var got models.CompletionRequest
	p := &mock.MockProvider{
		Name_: "capture",
		CompleteFunc: func(_ context.Context, req models.CompletionRequest) (string, error) {
			got = req
			return "```\nCLI for `kubectl` plugins.\n```", nil
		},
	}
	svc := newService(t, p, newSQLiteStore(t), nil)

	info := &models.RepoSummary{Description: "kubectl plugin manager", Language: "Go", HasDescription: true}
	text := svc.DescribeRepo(context.Background(), info)

	assert.Equal(t, "CLI for kubectl plugins.", text)
	assert.Contains(t, got.User, "kubectl plugin manager")
	assert.Contains(t, got.User, "Go")
}

func TestDescribeRepo_ModelFailure(t *testing.T) {
	p := mock.NewFailingProvider(ai.ErrProviderUnavailable)
	svc := newService(t, p, newSQLiteStore(t), nil)

	info := &models.RepoSummary{Description: "demo", Language: "Go", HasDescription: true}
	assert.Equal(t, ai.RepoDescriptionFailed, svc.DescribeRepo(context.Background(), info))
}
