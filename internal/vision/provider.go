package vision

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
)

const defaultMaxTokens = 2048

// ProviderConfig selects and configures a Reasoner backend.
type ProviderConfig struct {
	// Provider is one of claude, openai, gemini or service.
	Provider  string
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
}

func (c ProviderConfig) maxTokens() int {
	if c.MaxTokens <= 0 {
		return defaultMaxTokens
	}
	return c.MaxTokens
}

// NewReasoner creates the Reasoner named by cfg.Provider.
func NewReasoner(ctx context.Context, cfg ProviderConfig) (Reasoner, error) {
	switch strings.ToLower(cfg.Provider) {
	case "claude", "anthropic":
		return NewClaudeReasoner(cfg)
	case "openai":
		return NewOpenAIReasoner(cfg)
	case "gemini", "google":
		return NewGeminiReasoner(ctx, cfg)
	case "service":
		return NewServiceClient(ServiceConfig{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey})
	default:
		return nil, fmt.Errorf("unknown vision provider: %q (supported: claude, openai, gemini, service)", cfg.Provider)
	}
}

// readImage loads an image file and sniffs its media type.
func readImage(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading image: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("image %s is empty", path)
	}

	mediaType := http.DetectContentType(data)
	switch mediaType {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
	default:
		mediaType = "image/png"
	}
	return data, mediaType, nil
}
