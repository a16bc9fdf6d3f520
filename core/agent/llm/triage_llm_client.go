package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"triage_server/core/port/out"
	"triage_server/pkg/logger"
	"triage_server/pkg/resilience"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultModel          = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultTimeout        = 30 * time.Second
)

var errEmptyCompletion = errors.New("empty completion")

// Client implements out.Generator and out.Embedder on top of the OpenAI API.
type Client struct {
	client         *openai.Client
	model          string
	embeddingModel openai.EmbeddingModel
	timeout        time.Duration
	breaker        *resilience.Breaker
}

type ClientConfig struct {
	APIKey         string
	BaseURL        string // optional, for compatible gateways
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
	Breaker        *resilience.Breaker
}

func NewClient(apiKey string) *Client {
	return NewClientWithConfig(ClientConfig{APIKey: apiKey})
}

func NewClientWithConfig(cfg ClientConfig) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = resilience.NewBreaker(resilience.DefaultBreakerConfig("llm"))
	}

	return &Client{
		client:         openai.NewClientWithConfig(oc),
		model:          model,
		embeddingModel: openai.EmbeddingModel(embeddingModel),
		timeout:        timeout,
		breaker:        breaker,
	}
}

var (
	_ out.Generator = (*Client)(nil)
	_ out.Embedder  = (*Client)(nil)
)

// Generate sends a single-turn prompt. Every failure, including timeouts and an
// open breaker, is returned wrapped in out.ErrGeneration.
func (c *Client) Generate(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.breaker.Do(func() (string, error) {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Temperature: temperature,
			MaxTokens:   maxTokens,
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errEmptyCompletion
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		if resilience.IsOpen(err) {
			logger.WithField("breaker", c.breaker.State()).Debug("llm call rejected by circuit breaker")
			return "", fmt.Errorf("%w: circuit %s: %v", out.ErrGeneration, c.breaker.State(), err)
		}
		logger.WithError(err).WithField("model", c.model).Warn("llm call failed")
		return "", fmt.Errorf("%w: %v", out.ErrGeneration, err)
	}
	return text, nil
}

// Embed returns one vector per input, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: c.embeddingModel,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("create embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	result := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("create embeddings: index %d out of range", d.Index)
		}
		result[d.Index] = d.Embedding
	}
	return result, nil
}

// StripCodeFence removes a surrounding ```json ... ``` block from a model reply.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
