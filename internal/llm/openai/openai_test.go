package openai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"tradeloop/internal/types"
)

type fakeChat struct {
	reply string
	err   error
	input []*schema.Message
}

func (f *fakeChat) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.input = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func TestDecide(t *testing.T) {
	fc := &fakeChat{reply: `[{"action":"buy","symbol":"NVDA","qty":4,"reason":"datacenter growth","confidence":0.82}]`}
	p := &ChatPolicy{cm: fc, name: "openai"}

	got, err := p.Decide(context.Background(), types.PolicyRequest{Symbol: "NVDA"})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if len(got) != 1 || got[0].Qty != 4 || got[0].Confidence != 0.82 {
		t.Errorf("proposals = %+v", got)
	}
	if len(fc.input) != 2 || fc.input[0].Role != schema.System || fc.input[1].Role != schema.User {
		t.Fatalf("unexpected messages %+v", fc.input)
	}
	if !strings.Contains(fc.input[1].Content, "NVDA") {
		t.Error("user message should carry the symbol")
	}
}

func TestDecideErrors(t *testing.T) {
	p := &ChatPolicy{cm: &fakeChat{err: errors.New("429")}, name: "deepseek"}
	if _, err := p.Decide(context.Background(), types.PolicyRequest{Symbol: "AAPL"}); err == nil {
		t.Error("expected generate error")
	}

	p = &ChatPolicy{cm: &fakeChat{reply: "no idea"}, name: "openai"}
	if _, err := p.Decide(context.Background(), types.PolicyRequest{Symbol: "AAPL"}); !errors.Is(err, types.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestConstructorsNeedKey(t *testing.T) {
	if _, err := NewOpenAIPolicy(context.Background(), Params{}); err == nil {
		t.Error("expected error without OPENAI key")
	}
	if _, err := NewDeepSeekPolicy(context.Background(), Params{}); err == nil {
		t.Error("expected error without DEEPSEEK key")
	}
}
