package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel = "claude-sonnet-4-5"
	defaultMaxTokens      = 1024
)

// Anthropic talks to the Messages API. Without an explicit key the SDK
// reads ANTHROPIC_API_KEY.
type Anthropic struct{}

func (Anthropic) Name() string { return "anthropic" }

func (Anthropic) Send(ctx context.Context, msgs []Message, cfg Config) (string, error) {
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	system, turns := splitSystem(msgs)
	if len(turns) == 0 {
		return "", errors.New("anthropic: no user message")
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(orDefault(cfg.Model, defaultAnthropicModel)),
		MaxTokens: int64(maxTokens(cfg.MaxTokens)),
		Messages:  make([]anthropic.MessageParam, 0, len(turns)),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, m := range turns {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	msg, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}
	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", errors.New("anthropic: no text block in response")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func maxTokens(n int) int {
	if n <= 0 {
		return defaultMaxTokens
	}
	return n
}
