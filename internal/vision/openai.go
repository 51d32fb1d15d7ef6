package vision

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/testforge/uidetect/internal/domain"
)

// OpenAIReasoner answers image prompts with the chat completions API.
type OpenAIReasoner struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAIReasoner creates an OpenAI-backed Reasoner. BaseURL allows compatible gateways.
func NewOpenAIReasoner(cfg ProviderConfig) (*OpenAIReasoner, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4o
	}

	return &OpenAIReasoner{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     model,
		maxTokens: cfg.maxTokens(),
	}, nil
}

func (r *OpenAIReasoner) Reason(ctx context.Context, imagePath, prompt string) (string, error) {
	image, mediaType, err := readImage(imagePath)
	if err != nil {
		return "", err
	}
	dataURI := fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(image))

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     r.model,
		MaxTokens: r.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURI,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", domain.ErrExternalAPI("openai", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", domain.ErrMalformedAIOutput("openai", fmt.Errorf("empty response"))
	}
	return resp.Choices[0].Message.Content, nil
}

func (r *OpenAIReasoner) Close() error { return nil }
