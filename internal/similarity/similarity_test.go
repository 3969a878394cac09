package similarity

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/vectorstore"
)

func TestCosine(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"diagonal", []float32{1, 1}, []float32{1, 0}, 1 / math.Sqrt2},
		{"zero query", []float32{0, 0}, []float32{1, 0}, 0},
		{"zero candidate", []float32{1, 0}, []float32{0, 0}, 0},
		{"dimension mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"empty", nil, nil, 0},
		{"nan", []float32{float32(math.NaN()), 1}, []float32{1, 1}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Cosine(tc.a, tc.b), 1e-9)
		})
	}
}

func TestSearchRanksDescending(t *testing.T) {
	candidates := []models.Candidate{
		{Path: "alpha.md", Vector: []float32{1, 0}},
		{Path: "beta.md", Vector: []float32{0, 1}},
	}
	got := Search([]float32{0.9, 0.1}, candidates, 10)
	require.Len(t, got, 2)
	assert.Equal(t, "alpha.md", got[0].Path)
	assert.Equal(t, "beta.md", got[1].Path)
	assert.Greater(t, got[0].Similarity, got[1].Similarity)
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	candidates := []models.Candidate{
		{Path: "alpha.md", Vector: []float32{1, 0}},
		{Path: "beta.md", Vector: []float32{0, 1}},
	}
	got := Search([]float32{1, 1}, candidates, 0)
	require.Len(t, got, 2)
	assert.Equal(t, "alpha.md", got[0].Path)
	assert.Equal(t, "beta.md", got[1].Path)
	assert.InDelta(t, 0.7071, got[0].Similarity, 1e-4)
	assert.InDelta(t, 0.7071, got[1].Similarity, 1e-4)

	// Deterministic across runs.
	for range 10 {
		assert.Equal(t, got, Search([]float32{1, 1}, candidates, 0))
	}
}

func TestSearchLimitAndEmpty(t *testing.T) {
	candidates := []models.Candidate{
		{Path: "a.md", Vector: []float32{1, 0}},
		{Path: "b.md", Vector: []float32{0.5, 0.5}},
		{Path: "c.md", Vector: []float32{0, 1}},
	}
	assert.Len(t, Search([]float32{1, 0}, candidates, 2), 2)
	assert.Len(t, Search([]float32{1, 0}, candidates, -1), 3)
	assert.Empty(t, Search([]float32{1, 0}, nil, 5))
}

func TestSearchZeroQueryScoresZero(t *testing.T) {
	candidates := []models.Candidate{
		{Path: "a.md", Vector: []float32{1, 0}},
		{Path: "b.md", Vector: []float32{0, 1}},
	}
	got := Search([]float32{0, 0}, candidates, 0)
	require.Len(t, got, 2)
	for _, r := range got {
		assert.Zero(t, r.Similarity)
	}
	assert.Equal(t, "a.md", got[0].Path)
}

type staticEmbedder map[string][]float32

func (s staticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v, ok := s[text]
	if !ok {
		return nil, apperr.Errorf(apperr.KindProvider, "test", "unknown text %q", text)
	}
	return v, nil
}

func testEngine(t *testing.T) (*Engine, *vectorstore.DB) {
	t.Helper()
	store, err := vectorstore.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	for _, r := range []vectorstore.Record{
		{Path: "alpha.md", Content: "# alpha", Embedding: []float32{1, 0}},
		{Path: "beta.md", Content: "# beta", Embedding: []float32{0, 1}},
	} {
		require.NoError(t, store.Upsert(ctx, r))
	}
	emb := staticEmbedder{"first letter": {0.9, 0.1}, "both": {1, 1}}
	return NewEngine(store, emb, nil), store
}

func TestEngineSearchByText(t *testing.T) {
	e, _ := testEngine(t)
	got, err := e.SearchByText(context.Background(), "first letter", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alpha.md", got[0].Path)

	_, err = e.SearchByText(context.Background(), "unknown", 5)
	assert.True(t, apperr.Is(err, apperr.KindProvider), "err = %v", err)

	_, err = e.SearchByText(context.Background(), "  ", 5)
	assert.True(t, apperr.Is(err, apperr.KindInvalid), "err = %v", err)
}

func TestEngineFindSimilarExcludesSelf(t *testing.T) {
	e, store := testEngine(t)
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, vectorstore.Record{Path: "gamma.md", Content: "# gamma", Embedding: []float32{1, 0.1}}))

	got, err := e.FindSimilar(ctx, "alpha.md", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "gamma.md", got[0].Path)
	for _, r := range got {
		assert.NotEqual(t, "alpha.md", r.Path)
	}
}

func TestEngineFindSimilarWithoutEmbedding(t *testing.T) {
	e, _ := testEngine(t)
	_, err := e.FindSimilar(context.Background(), "missing.md", 5)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "err = %v", err)
}
