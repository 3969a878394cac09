// Package embedding turns note content into vectors and keeps the vector store
// in step with the vault.
package embedding

import (
	"context"
	"errors"

	"github.com/starford/ansuz/internal/apperr"
)

// Provider computes an embedding vector for a text. Implementations return
// apperr.KindConfig when they are not configured and apperr.KindProvider for
// every upstream failure.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Model identifies the embedding model; stored vectors from a different
	// model are recomputed.
	Model() string
}

// Disabled is the provider used when embeddings are turned off. Graph
// operations keep working; every Embed call fails with a config error.
type Disabled struct{}

// Embed always fails with apperr.KindConfig.
func (Disabled) Embed(context.Context, string) ([]float32, error) {
	return nil, apperr.E(apperr.KindConfig, "embedding", "", errors.New("embedding provider is disabled"))
}

// Model returns "none".
func (Disabled) Model() string { return "none" }

// Static serves vectors from a fixed table. Unknown text is a provider error.
type Static struct {
	Vectors map[string][]float32
	Name    string
}

// Embed returns a copy of the vector stored for text.
func (s Static) Embed(_ context.Context, text string) ([]float32, error) {
	v, ok := s.Vectors[text]
	if !ok {
		return nil, apperr.Errorf(apperr.KindProvider, "embedding: static", "no vector for text %q", text)
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, nil
}

// Model returns Name, or "static" when Name is empty.
func (s Static) Model() string {
	if s.Name == "" {
		return "static"
	}
	return s.Name
}

// Func adapts a function to Provider.
type Func func(ctx context.Context, text string) ([]float32, error)

// Embed calls f.
func (f Func) Embed(ctx context.Context, text string) ([]float32, error) { return f(ctx, text) }

// Model returns "func".
func (Func) Model() string { return "func" }
