package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/liliang-cn/studydesk/internal/config"
	"github.com/liliang-cn/studydesk/internal/domain"
)

// OpenAI is a Client over any OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
	retry  config.RetryConfig
	logger *zap.Logger
}

// NewOpenAI creates a generation client. A custom BaseURL points it at
// any compatible server (vLLM, Ollama's /v1, a gateway).
func NewOpenAI(cfg config.LLMConfig, retry config.RetryConfig, logger *zap.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: no LLM API key configured", domain.ErrBadInput)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		retry:  retry,
		logger: logger,
	}, nil
}

// GenerateText returns the completion for the prompt, retrying transient
// failures under the capped backoff policy.
func (o *OpenAI) GenerateText(ctx context.Context, prompt string) (string, error) {
	out, err := WithRetry(ctx, o.retry, func() (string, error) {
		resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: o.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("%w: empty completion", domain.ErrGenerationFailed)
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		o.logger.Warn("generation failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	return out, nil
}

// GenerateJSON generates a completion and extracts the JSON value from
// it. A parse failure is returned as domain.ErrParseFailed, never a
// panic into the caller's hot path.
func (o *OpenAI) GenerateJSON(ctx context.Context, prompt string) (any, error) {
	raw, err := o.GenerateText(ctx, prompt)
	if err != nil {
		return nil, err
	}
	v, err := ExtractJSON(raw)
	if err != nil {
		o.logger.Warn("model output was not valid JSON", zap.Int("raw_len", len(raw)))
		return nil, err
	}
	return v, nil
}
