package vision

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/testforge/uidetect/internal/domain"
)

// GeminiReasoner answers image prompts with the Gemini API.
type GeminiReasoner struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// NewGeminiReasoner creates a Gemini-backed Reasoner.
func NewGeminiReasoner(ctx context.Context, cfg ProviderConfig) (*GeminiReasoner, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &GeminiReasoner{
		client: client,
		model:  model,
		config: &genai.GenerateContentConfig{MaxOutputTokens: int32(cfg.maxTokens())},
	}, nil
}

func (r *GeminiReasoner) Reason(ctx context.Context, imagePath, prompt string) (string, error) {
	image, mediaType, err := readImage(imagePath)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, mediaType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}

	resp, err := r.client.Models.GenerateContent(ctx, r.model, contents, r.config)
	if err != nil {
		return "", domain.ErrExternalAPI("gemini", err)
	}

	text := resp.Text()
	if text == "" {
		return "", domain.ErrMalformedAIOutput("gemini", fmt.Errorf("empty response"))
	}
	return text, nil
}

func (r *GeminiReasoner) Close() error { return nil }
