package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/testforge/uidetect/internal/domain"
)

// TaskVisualReasoning is the task identifier for free-text questions about an image.
const TaskVisualReasoning = "visual_reasoning"

// ServiceConfig configures the HTTP vision service client.
type ServiceConfig struct {
	BaseURL       string
	APIKey        string
	LocalizeTask  string
	ReasoningTask string
	Timeout       time.Duration
	RateLimitRPM  int

	// MaxResponseBytes caps how much of a response body is read.
	MaxResponseBytes int64
}

// DefaultServiceConfig returns default configuration
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		BaseURL:          "http://localhost:8765",
		LocalizeTask:     TaskUILocalization,
		ReasoningTask:    TaskVisualReasoning,
		Timeout:          60 * time.Second,
		RateLimitRPM:     120,
		MaxResponseBytes: 8 << 20,
	}
}

// ServiceClient calls a task-based vision service over HTTP. It implements both Localizer
// and Reasoner.
type ServiceClient struct {
	cfg         ServiceConfig
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// taskRequest is the body posted to /v1/tasks.
type taskRequest struct {
	Task      string `json:"task"`
	ImagePath string `json:"image_path"`
	Image     string `json:"image"`
	Prompt    string `json:"prompt,omitempty"`
}

// NewServiceClient creates a vision service client.
func NewServiceClient(cfg ServiceConfig) (*ServiceClient, error) {
	defaults := DefaultServiceConfig()
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("vision service base URL is required")
	}
	if cfg.LocalizeTask == "" {
		cfg.LocalizeTask = defaults.LocalizeTask
	}
	if cfg.ReasoningTask == "" {
		cfg.ReasoningTask = defaults.ReasoningTask
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.RateLimitRPM == 0 {
		cfg.RateLimitRPM = defaults.RateLimitRPM
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = defaults.MaxResponseBytes
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &ServiceClient{
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimitRPM)/60.0), 1),
	}, nil
}

// Localize implements Localizer.
func (c *ServiceClient) Localize(ctx context.Context, imagePath string) (*Localization, error) {
	body, err := c.do(ctx, taskRequest{Task: c.cfg.LocalizeTask}, imagePath)
	if err != nil {
		return nil, err
	}

	loc, err := ParseLocalization(body)
	if err != nil {
		return nil, domain.ErrMalformedAIOutput("localizer", err)
	}
	return loc, nil
}

// Reason implements Reasoner. The answer is read from result.text, result.response, or a
// string result.
func (c *ServiceClient) Reason(ctx context.Context, imagePath, prompt string) (string, error) {
	body, err := c.do(ctx, taskRequest{Task: c.cfg.ReasoningTask, Prompt: prompt}, imagePath)
	if err != nil {
		return "", err
	}

	doc := gjson.ParseBytes(body)
	if s := doc.Get("success"); s.Exists() && !s.Bool() {
		return "", domain.ErrExternalAPI("reasoner", fmt.Errorf("task failed: %s", doc.Get("error").String()))
	}

	result := doc.Get("result")
	switch {
	case result.Type == gjson.String:
		return result.String(), nil
	case result.Get("text").Exists():
		return result.Get("text").String(), nil
	case result.Get("response").Exists():
		return result.Get("response").String(), nil
	}
	return "", domain.ErrMalformedAIOutput("reasoner", fmt.Errorf("response has no text result"))
}

func (c *ServiceClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *ServiceClient) do(ctx context.Context, req taskRequest, imagePath string) ([]byte, error) {
	image, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	req.ImagePath = filepath.Clean(imagePath)
	req.Image = base64.StdEncoding.EncodeToString(image)

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/tasks", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.ErrExternalAPI(req.Task, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if int64(len(body)) > c.cfg.MaxResponseBytes {
		return nil, domain.ErrExternalAPI(req.Task, fmt.Errorf("response exceeds %d bytes", c.cfg.MaxResponseBytes))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, domain.ErrExternalAPI(req.Task, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}

	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
