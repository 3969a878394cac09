package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/starford/ansuz/internal/apperr"
)

// OpenAIConfig configures an OpenAI-compatible embeddings endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Dimensions is sent with the request when > 0 and every response vector
	// must have exactly that length.
	Dimensions int
	// RequestsPerSecond paces calls; <= 0 means unlimited.
	RequestsPerSecond float64
	Timeout           time.Duration
}

// OpenAI calls the /embeddings endpoint of OpenAI or a compatible service
// (siliconflow, ollama, dashscope, ...).
type OpenAI struct {
	client  *openai.Client
	cfg     OpenAIConfig
	limiter *rate.Limiter
}

// NewOpenAI builds the provider. A missing API key is reported by Embed, not
// here, so the rest of the engine can start without one.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &OpenAI{
		client:  openai.NewClientWithConfig(clientConfig),
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (p *OpenAI) Model() string { return p.cfg.Model }

func (p *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	const op = "embedding: openai"
	if p.cfg.APIKey == "" {
		return nil, apperr.E(apperr.KindConfig, op, "", errors.New("api key is not set"))
	}
	if p.cfg.Model == "" {
		return nil, apperr.E(apperr.KindConfig, op, "", errors.New("model is not set"))
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, apperr.E(apperr.KindProvider, op, "", fmt.Errorf("rate limiter: %w", err))
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(p.cfg.Model),
		Dimensions: p.cfg.Dimensions,
	})
	if err != nil {
		return nil, apperr.E(apperr.KindProvider, op, "", fmt.Errorf("create embeddings: %w", err))
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, apperr.E(apperr.KindProvider, op, "", errors.New("empty embedding response"))
	}

	vec := resp.Data[0].Embedding
	if p.cfg.Dimensions > 0 && len(vec) != p.cfg.Dimensions {
		return nil, apperr.Errorf(apperr.KindProvider, op, "got %d dimensions, want %d", len(vec), p.cfg.Dimensions)
	}
	return vec, nil
}
