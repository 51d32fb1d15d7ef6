package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/testforge/uidetect/internal/domain"
)

// ClaudeReasoner answers image prompts with Anthropic's Messages API.
type ClaudeReasoner struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// NewClaudeReasoner creates a Claude-backed Reasoner.
func NewClaudeReasoner(cfg ProviderConfig) (*ClaudeReasoner, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}

	return &ClaudeReasoner{client: &client, model: model, maxTokens: int64(cfg.maxTokens())}, nil
}

func (r *ClaudeReasoner) Reason(ctx context.Context, imagePath, prompt string) (string, error) {
	image, mediaType, err := readImage(imagePath)
	if err != nil {
		return "", err
	}

	resp, err := r.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		MaxTokens: r.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mediaType, base64.StdEncoding.EncodeToString(image)),
				anthropic.NewTextBlock(prompt),
			),
		},
	})
	if err != nil {
		return "", domain.ErrExternalAPI("claude", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", domain.ErrMalformedAIOutput("claude", fmt.Errorf("empty response"))
	}
	return sb.String(), nil
}

func (r *ClaudeReasoner) Close() error { return nil }
