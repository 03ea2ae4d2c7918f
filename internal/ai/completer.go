package ai

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/pkg/anthropic"
	"github.com/sells-group/leadgen-cli/pkg/chatcompletion"
)

// Completer sends one system+user exchange and returns the raw model text,
// which is expected to contain a JSON object.
type Completer interface {
	CompleteJSON(ctx context.Context, system, user string) (string, error)
}

const jsonOnly = "\n\nRespond with a single JSON object and nothing else. No markdown fences, no commentary."

type opKey struct{}

func withOp(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, opKey{}, op)
}

func opFrom(ctx context.Context) string {
	if op, ok := ctx.Value(opKey{}).(string); ok {
		return op
	}
	return "unknown"
}

// AnthropicCompleter adapts the Anthropic Messages API.
type AnthropicCompleter struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicCompleter returns a Completer over client. maxTokens <= 0
// defaults to 1024.
func NewAnthropicCompleter(client anthropic.Client, model string, maxTokens int64) *AnthropicCompleter {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicCompleter{client: client, model: model, maxTokens: maxTokens}
}

func (a *AnthropicCompleter) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    system + jsonOnly,
		Messages:  []anthropic.Message{anthropic.UserText(user)},
	})
	if err != nil {
		return "", eris.Wrap(err, "ai: anthropic completion")
	}
	resp.Usage.LogCost(a.model, opFrom(ctx))

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", eris.New("ai: empty anthropic response")
	}
	return text, nil
}

// ChatCompleter adapts an OpenAI or Azure style chat-completions endpoint
// running in JSON mode.
type ChatCompleter struct {
	client chatcompletion.Client
	model  string
}

// NewChatCompleter returns a Completer over client. model may be empty when
// the endpoint is an Azure deployment.
func NewChatCompleter(client chatcompletion.Client, model string) *ChatCompleter {
	return &ChatCompleter{client: client, model: model}
}

func (c *ChatCompleter) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.ChatCompletion(ctx, chatcompletion.Request{
		Model: c.model,
		Messages: []chatcompletion.Message{
			{Role: "system", Content: system + jsonOnly},
			{Role: "user", Content: user},
		},
		ResponseFormat: chatcompletion.JSONObject,
	})
	if err != nil {
		return "", eris.Wrap(err, "ai: chat completion")
	}
	zap.L().Debug("ai usage",
		zap.String("op", opFrom(ctx)),
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	text := resp.Content()
	if strings.TrimSpace(text) == "" {
		return "", eris.New("ai: empty chat completion")
	}
	return text, nil
}
