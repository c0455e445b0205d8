package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	retry "github.com/avast/retry-go/v4"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultModel      = "gpt-4o"
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
	defaultMaxDelay   = 10 * time.Second
	defaultTimeout    = 120 * time.Second
	defaultMaxTokens  = 8192
)

// Config holds configuration for the extraction client.
type Config struct {
	APIKey     string
	Model      string        // Vision model (default: gpt-4o)
	BaseURL    string        // Optional (tests, alternative gateways)
	MaxRetries int           // Attempts per page, including the first
	RetryDelay time.Duration // Base delay for exponential backoff
	MaxDelay   time.Duration // Backoff cap
	Timeout    time.Duration // HTTP timeout per request
	MaxTokens  int           // Completion token cap
	HTTPClient *http.Client  // Optional (tests)
	Logger     *slog.Logger
}

// Client implements Extractor against an OpenAI-compatible vision model.
type Client struct {
	model      string
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration
	maxTokens  int
	client     openai.Client
	log        *slog.Logger
}

// NewClient creates a new extraction client.
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		// Backoff is handled here, not in the SDK transport.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		maxDelay:   cfg.MaxDelay,
		maxTokens:  cfg.MaxTokens,
		client:     openai.NewClient(opts...),
		log:        cfg.Logger,
	}
}

// ExtractPage extracts markdown from a page image, retrying transient
// failures with exponential backoff. The returned error wraps the final
// attempt's failure in a PageError.
func (c *Client) ExtractPage(ctx context.Context, image []byte, priorFragment string, pageNum int) (*PageResult, error) {
	prompt := buildPrompt(priorFragment)

	var raw string
	err := retry.Do(
		func() error {
			var err error
			raw, err = c.completePage(ctx, prompt, image)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(c.maxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			c.log.Warn("extraction attempt failed", "page", pageNum, "attempt", attempt+1, "error", err)
		}),
	)
	if err != nil {
		return nil, &PageError{Page: pageNum, Err: err}
	}

	result := ParseResponse(raw, pageNum)
	c.log.Debug("page extracted",
		"page", pageNum,
		"chars", len(result.Markdown),
		"ends_incomplete", result.EndsIncomplete,
	)
	return result, nil
}

// completePage sends one chat completion request with the page image attached.
func (c *Client) completePage(ctx context.Context, prompt string, image []byte) (string, error) {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(c.model),
		MaxCompletionTokens: openai.Int(int64(c.maxTokens)),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL:    dataURL,
					Detail: "high",
				}),
			}),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response (model=%s)", resp.Model)
	}

	return resp.Choices[0].Message.Content, nil
}

// TestConnection sends a minimal request and reports whether the model replied.
func (c *Client) TestConnection(ctx context.Context) bool {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(c.model),
		MaxCompletionTokens: openai.Int(16),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage("Reply with the single word: ready"),
		},
	})
	if err != nil {
		c.log.Error("connection test failed", "error", err)
		return false
	}
	return len(resp.Choices) > 0 && resp.Choices[0].Message.Content != ""
}
