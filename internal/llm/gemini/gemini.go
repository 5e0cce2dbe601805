package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"tradeloop/internal/interfaces"
	"tradeloop/internal/llm"
	"tradeloop/internal/types"
)

const DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"

// Policy asks Gemini generateContent for a JSON list of proposals.
type Policy struct {
	client    *resty.Client
	apiKey    string
	model     string
	system    string
	maxTokens int
}

var _ interfaces.DecisionPolicy = (*Policy)(nil)

type Params struct {
	APIKey    string
	Model     string
	Endpoint  string
	System    string
	MaxTokens int
}

func New(p Params) (*Policy, error) {
	if p.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY missing")
	}
	if p.Endpoint == "" {
		p.Endpoint = DefaultEndpoint
	}
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(p.Endpoint, "/"))
	client.SetHeader("Content-Type", "application/json")
	return &Policy{
		client:    client,
		apiKey:    p.APIKey,
		model:     p.Model,
		system:    p.System,
		maxTokens: p.MaxTokens,
	}, nil
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	SystemInstruction content   `json:"system_instruction"`
	Contents          []content `json:"contents"`
	GenerationConfig  struct {
		ResponseMimeType string `json:"response_mime_type"`
		MaxOutputTokens  int    `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (p *Policy) Decide(ctx context.Context, req types.PolicyRequest) ([]types.TradeProposal, error) {
	model := p.model
	if req.Model != "" {
		model = req.Model
	}
	system, user := llm.BuildPrompt(p.system, req)

	body := generateRequest{
		SystemInstruction: content{Parts: []part{{Text: system}}},
		Contents:          []content{{Role: "user", Parts: []part{{Text: user}}}},
	}
	body.GenerationConfig.ResponseMimeType = "application/json"
	body.GenerationConfig.MaxOutputTokens = p.maxTokens

	var out generateResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("key", p.apiKey).
		SetBody(body).
		SetResult(&out).
		Post(fmt.Sprintf("/models/%s:generateContent", model))
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gemini http %d: %s", resp.StatusCode(), resp.String())
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: no candidates in gemini response", types.ErrValidation)
	}
	return llm.ParseProposals(out.Candidates[0].Content.Parts[0].Text)
}
