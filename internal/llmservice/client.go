package llmservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"

	"github.com/h20-studio-tech/aipatent/internal/config"
	"github.com/h20-studio-tech/aipatent/internal/models"
)

var (
	ErrEmptyResponse = errors.New("llm returned no choices")
	ErrNoJSON        = errors.New("llm response contains no json object")

	thinkRe = regexp.MustCompile(models.ThinkTag)
)

// StructuredCompleter decodes a model reply for prompt into out
type StructuredCompleter interface {
	Complete(ctx context.Context, prompt string, out any) error
}

// NewModel builds a chat model for the configured provider
func NewModel(cfg *config.LLMConfig) (llms.Model, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	switch cfg.Provider {
	case "ollama":
		return ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
			ollama.WithHTTPClient(httpClient),
		)
	case "openai", "":
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
			openai.WithHTTPClient(httpClient),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

// Client wraps a chat model with rate limiting and per-call timeouts
type Client struct {
	model   llms.Model
	limiter *rate.Limiter
	timeout time.Duration
	opts    []llms.CallOption
}

func NewClient(model llms.Model, cfg *config.LLMConfig) *Client {
	c := &Client{
		model:   model,
		timeout: cfg.Timeout,
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	c.opts = append(c.opts, llms.WithTemperature(cfg.Temperature))
	if cfg.MaxTokens > 0 {
		c.opts = append(c.opts, llms.WithMaxTokens(cfg.MaxTokens))
	}
	return c
}

// call llm
func (c *Client) GenerateContent(ctx context.Context, tools []llms.Tool, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	opts := append(append([]llms.CallOption{}, c.opts...), options...)
	if len(tools) > 0 {
		opts = append(opts, llms.WithTools(tools))
	}

	res, err := c.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	if res == nil || len(res.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	return res, nil
}

// Complete sends prompt in JSON mode and unmarshals the reply into out
func (c *Client) Complete(ctx context.Context, prompt string, out any) error {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	res, err := c.GenerateContent(ctx, nil, messages, llms.WithJSONMode())
	if err != nil {
		return fmt.Errorf("failed to generate content: %w", err)
	}
	raw, err := ExtractJSON(res.Choices[0].Content)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("failed to decode structured output: %w", err)
	}
	return nil
}

// Stream generates a reply for prompt, passing each chunk to fn as it arrives
func (c *Client) Stream(ctx context.Context, prompt string, fn func(ctx context.Context, chunk []byte) error) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, "You are a helpful assistant. Use the provided context to answer the query."),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	res, err := c.GenerateContent(ctx, nil, messages, llms.WithStreamingFunc(fn))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	log.Debug().Str("stop_reason", res.Choices[0].StopReason).Msg("stream finished")
	return StripThinking(res.Choices[0].Content), nil
}

// StripThinking removes reasoning blocks some models prepend to replies
func StripThinking(s string) string {
	return strings.TrimSpace(thinkRe.ReplaceAllString(s, ""))
}

// ExtractJSON returns the outermost json object in s
func ExtractJSON(s string) (string, error) {
	s = StripThinking(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", ErrNoJSON
	}
	return s[start : end+1], nil
}
