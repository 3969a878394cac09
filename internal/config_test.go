package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
	if cfg.Embedding.Enabled() {
		t.Error("embeddings should be disabled by default")
	}
}

func TestEmbeddingConfig_EmptyProviderDefaultsNone(t *testing.T) {
	cfg := EmbeddingConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty provider should default to none: %v", err)
	}
	if cfg.Provider != EmbeddingProviderNone {
		t.Errorf("provider = %q, want %q", cfg.Provider, EmbeddingProviderNone)
	}
}

func TestEmbeddingConfig_OpenAIRequiresModel(t *testing.T) {
	cfg := EmbeddingConfig{Provider: EmbeddingProviderOpenAI}
	if err := cfg.Validate(); err == nil {
		t.Fatal("openai without model should fail")
	}
	cfg.Model = "text-embedding-3-small"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("openai with model should pass: %v", err)
	}
	if !cfg.Enabled() {
		t.Error("openai provider should be enabled")
	}
}

func TestEmbeddingConfig_UnknownProvider(t *testing.T) {
	cfg := EmbeddingConfig{Provider: "onnx"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown provider should fail validation")
	}
}

func TestRefreshConfig_Bounds(t *testing.T) {
	cfg := RefreshConfig{Workers: 0, QueueSize: 10}
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero workers should fail")
	}
	cfg = RefreshConfig{Workers: 4, QueueSize: 0}
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero queue size should fail")
	}
}

func TestNewProvider(t *testing.T) {
	cfg := EmbeddingConfig{Provider: EmbeddingProviderNone}
	if got := newProvider(cfg).Model(); got != "none" {
		t.Errorf("model = %q, want none", got)
	}
	cfg = EmbeddingConfig{Provider: EmbeddingProviderOpenAI, Model: "m"}
	if got := newProvider(cfg).Model(); got != "m" {
		t.Errorf("model = %q, want m", got)
	}
}
