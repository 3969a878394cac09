package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ansuz/internal/apperr"
)

func embeddingServer(t *testing.T, status int, vectors ...[]float32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream failure","type":"server_error"}}`))
			return
		}
		data := make([]map[string]any, 0, len(vectors))
		for i, v := range vectors {
			data = append(data, map[string]any{"object": "embedding", "index": i, "embedding": v})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "model": req.Model, "data": data})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIEmbed(t *testing.T) {
	srv := embeddingServer(t, http.StatusOK, []float32{0.5, 0.25})
	p := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "test-model", Dimensions: 2})

	v, err := p.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, v)
	assert.Equal(t, "test-model", p.Model())
}

func TestOpenAIMissingKeyIsConfigError(t *testing.T) {
	p := NewOpenAI(OpenAIConfig{Model: "test-model"})
	_, err := p.Embed(context.Background(), "hello")
	assert.True(t, apperr.Is(err, apperr.KindConfig), "err = %v", err)
}

func TestOpenAIUpstreamFailureIsProviderError(t *testing.T) {
	srv := embeddingServer(t, http.StatusInternalServerError)
	p := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "test-model"})

	_, err := p.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrProvider)
}

func TestOpenAIEmptyDataIsProviderError(t *testing.T) {
	srv := embeddingServer(t, http.StatusOK)
	p := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "test-model"})

	_, err := p.Embed(context.Background(), "hello")
	assert.True(t, apperr.Is(err, apperr.KindProvider), "err = %v", err)
}

func TestOpenAIWrongDimensionsIsProviderError(t *testing.T) {
	srv := embeddingServer(t, http.StatusOK, []float32{1, 2, 3})
	p := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "test-model", Dimensions: 2})

	_, err := p.Embed(context.Background(), "hello")
	assert.True(t, apperr.Is(err, apperr.KindProvider), "err = %v", err)
}

func TestOpenAICancelledContext(t *testing.T) {
	srv := embeddingServer(t, http.StatusOK, []float32{1})
	p := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "test-model", RequestsPerSecond: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Embed(ctx, "hello")
	assert.True(t, apperr.Is(err, apperr.KindProvider), "err = %v", err)
}

func TestDisabledAndStatic(t *testing.T) {
	_, err := Disabled{}.Embed(context.Background(), "x")
	assert.True(t, apperr.Is(err, apperr.KindConfig))

	s := Static{Vectors: map[string][]float32{"a": {1, 0}}}
	v, err := s.Embed(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v)

	_, err = s.Embed(context.Background(), "b")
	assert.True(t, apperr.Is(err, apperr.KindProvider))

	v[0] = 9
	again, err := s.Embed(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, again)

	assert.Equal(t, "none", Disabled{}.Model())
	assert.Equal(t, "static", s.Model())
	assert.Equal(t, "mini", Static{Name: "mini"}.Model())
	assert.Equal(t, "func", Func(nil).Model())
}
