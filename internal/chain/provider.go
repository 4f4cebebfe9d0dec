package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mohammad-safakhou/postwise/config"
)

// Generator is the external text-generation collaborator. Implementations
// return the raw model output; callers own parsing, and malformed output is
// treated as a recoverable per-item failure rather than a protocol error.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// NewGenerator creates a Generator from configuration.
func NewGenerator(cfg config.LLMConfig) (Generator, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIGenerator(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider type: %s", cfg.Provider)
	}
}

// OpenAIGenerator implements Generator using the official openai-go SDK
// (chat completions).
type OpenAIGenerator struct {
	model string
	opts  []option.RequestOption
}

func NewOpenAIGenerator(cfg config.LLMConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing; provide llm.api_key")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &OpenAIGenerator{model: cfg.Model, opts: opts}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	client := openai.NewClient(g.opts...)
	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// stripFences removes a markdown code fence wrapper that chat models often
// put around JSON output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}
