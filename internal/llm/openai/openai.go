package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"tradeloop/internal/interfaces"
	"tradeloop/internal/llm"
	"tradeloop/internal/trace"
	"tradeloop/internal/types"
)

// chatModel is the part of an eino chat model we use.
type chatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// ChatPolicy implements DecisionPolicy on an OpenAI-compatible chat model
// through eino.
type ChatPolicy struct {
	cm     chatModel
	name   string
	system string
}

var _ interfaces.DecisionPolicy = (*ChatPolicy)(nil)

type Params struct {
	APIKey    string
	Model     string
	BaseURL   string
	System    string
	MaxTokens int
}

// NewOpenAIPolicy builds a policy on the OpenAI chat completions API. A
// BaseURL points it at any compatible server.
func NewOpenAIPolicy(ctx context.Context, p Params) (*ChatPolicy, error) {
	if p.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY missing")
	}
	cfg := &einoopenai.ChatModelConfig{
		APIKey: p.APIKey,
		Model:  p.Model,
	}
	if p.BaseURL != "" {
		cfg.BaseURL = p.BaseURL
	}
	if p.MaxTokens > 0 {
		maxTokens := p.MaxTokens
		cfg.MaxTokens = &maxTokens
	}
	cm, err := einoopenai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("openai chat model: %w", err)
	}
	return &ChatPolicy{cm: cm, name: "openai", system: p.System}, nil
}

// NewDeepSeekPolicy builds a policy on the DeepSeek chat API.
func NewDeepSeekPolicy(ctx context.Context, p Params) (*ChatPolicy, error) {
	if p.APIKey == "" {
		return nil, errors.New("DEEPSEEK_API_KEY missing")
	}
	cm, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
		APIKey:    p.APIKey,
		Model:     p.Model,
		MaxTokens: p.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("deepseek chat model: %w", err)
	}
	return &ChatPolicy{cm: cm, name: "deepseek", system: p.System}, nil
}

func (d *ChatPolicy) Decide(ctx context.Context, req types.PolicyRequest) ([]types.TradeProposal, error) {
	ctx, span := trace.StartSpan(ctx, d.name+"-api-call")
	defer span.End()

	system, user := llm.BuildPrompt(d.system, req)
	msg, err := d.cm.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	})
	if err != nil {
		return nil, fmt.Errorf("%s generate: %w", d.name, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: %s returned no message", types.ErrValidation, d.name)
	}
	return llm.ParseProposals(msg.Content)
}
