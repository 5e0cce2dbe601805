package claude

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"tradeloop/internal/interfaces"
	"tradeloop/internal/llm"
	"tradeloop/internal/trace"
	"tradeloop/internal/types"
)

// DefaultEndpoint is the public Anthropic messages endpoint. A proxy can
// be configured through policy.endpoint.
const DefaultEndpoint = "https://api.anthropic.com/v1/messages"

const apiVersion = "2023-06-01"

// ClaudePolicy implements DecisionPolicy using the Anthropic messages API
type ClaudePolicy struct {
	client      *resty.Client
	endpoint    string
	apiKey      string
	model       string
	system      string
	maxTokens   int
	temperature float32
}

var _ interfaces.DecisionPolicy = (*ClaudePolicy)(nil)

type Params struct {
	APIKey      string
	Model       string
	Endpoint    string
	System      string
	MaxTokens   int
	Temperature float32
}

// NewClaudePolicy creates a new Claude-based policy
func NewClaudePolicy(p Params) (*ClaudePolicy, error) {
	if p.APIKey == "" {
		return nil, errors.New("CLAUDE_API_KEY missing")
	}
	if p.Endpoint == "" {
		p.Endpoint = DefaultEndpoint
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = 1024
	}
	return &ClaudePolicy{
		client:      resty.New(),
		endpoint:    p.Endpoint,
		apiKey:      p.APIKey,
		model:       p.Model,
		system:      p.System,
		maxTokens:   p.MaxTokens,
		temperature: p.Temperature,
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Decide asks Claude for trade proposals
func (d *ClaudePolicy) Decide(ctx context.Context, req types.PolicyRequest) ([]types.TradeProposal, error) {
	ctx, span := trace.StartSpan(ctx, "claude-api-call")
	defer span.End()

	model := d.model
	if req.Model != "" {
		model = req.Model
	}
	system, user := llm.BuildPrompt(d.system, req)

	var out messagesResponse
	resp, err := d.client.R().
		SetContext(ctx).
		SetHeader("x-api-key", d.apiKey).
		SetHeader("anthropic-version", apiVersion).
		SetHeader("Content-Type", "application/json").
		SetBody(messagesRequest{
			Model:       model,
			System:      system,
			Messages:    []message{{Role: "user", Content: user}},
			MaxTokens:   d.maxTokens,
			Temperature: d.temperature,
		}).
		SetResult(&out).
		Post(d.endpoint)
	if err != nil {
		return nil, fmt.Errorf("claude request: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("claude http %d: %s", resp.StatusCode(), resp.String())
	}

	// Join every text block; tool or thinking blocks carry no answer.
	var b strings.Builder
	for _, c := range out.Content {
		if c.Type == "" || c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	text := b.String()
	if strings.TrimSpace(text) == "" {
		// Not the messages shape: treat the full body as the answer
		text = resp.String()
	}
	return llm.ParseProposals(text)
}
