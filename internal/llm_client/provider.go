package llm_client

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrNotInitialized = errors.New("llm client is not initialized")

type Config struct {
	Backend    string
	Model      string
	OllamaHost string
}

type Provider interface {
	Init(cfg Config) error
	DefaultModel() string
	AllowedModelOrDefault(model string) string
	Generate(ctx context.Context, prompt, model string) (string, error)
}

var (
	active   Provider
	activeID string
)

func Init(cfg Config) error {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = "gemini"
	}
	var p Provider
	switch backend {
	case "ollama":
		p = &ollamaProvider{}
		activeID = "ollama"
	case "gemini":
		p = &geminiProvider{}
		activeID = "gemini"
	default:
		return fmt.Errorf("unsupported LLM backend: %s", backend)
	}
	if err := p.Init(cfg); err != nil {
		return err
	}
	active = p
	return nil
}

func ActiveBackend() string {
	if active == nil {
		return ""
	}
	return activeID
}

// Generate calls the active backend, retrying rate-limited attempts per the
// default retry policy. Exhausting the ceiling surfaces the last error to the
// caller, which is expected to degrade to a safe default rather than abort.
func Generate(ctx context.Context, prompt, model string) (string, error) {
	if active == nil {
		return "", ErrNotInitialized
	}
	return DefaultRetry.Do(ctx, func() (string, error) {
		return active.Generate(ctx, prompt, model)
	})
}
