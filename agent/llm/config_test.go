package llm

import (
	"errors"
	"testing"
	"time"

	contractx "github.com/tanpawarit/Chative-Voice-Qualification/agent/contract"
)

func TestConfigDisabledWithoutKey(t *testing.T) {
	t.Parallel()

	cfg := Config{Model: ""}
	if cfg.Enabled() {
		t.Fatal("config without api key must be disabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := Config{APIKey: "k", Model: " ", MaxCompletionToken: 100}
	if err := cfg.Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	cfg.Model = "openai/gpt-4o-mini"
	cfg.MaxCompletionToken = 0
	if err := cfg.Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestConfigOpenRouter(t *testing.T) {
	t.Parallel()

	cfg := Config{
		BaseURL:            " https://openrouter.ai/api/v1 ",
		APIKey:             " key ",
		Model:              " openai/gpt-4o-mini ",
		MaxCompletionToken: 120,
		Temperature:        0.4,
		Timeout:            3 * time.Second,
	}
	out := cfg.OpenRouter()
	if out.APIKey != "key" || out.Model != "openai/gpt-4o-mini" || out.BaseURL != "https://openrouter.ai/api/v1" {
		t.Fatalf("OpenRouter() = %+v", out)
	}
	if out.MaxCompletionToken == nil || *out.MaxCompletionToken != 120 {
		t.Fatalf("MaxCompletionToken = %v", out.MaxCompletionToken)
	}
	if out.Timeout != 3*time.Second {
		t.Fatalf("Timeout = %s", out.Timeout)
	}
}
