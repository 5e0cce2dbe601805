package static

import (
	"context"
	"testing"

	"tradeloop/internal/types"
)

func TestDecide(t *testing.T) {
	p := New(map[string][]types.TradeProposal{
		"tsla": {{Action: types.ActionBuy, Qty: 10, Reason: "canned", Confidence: 0.4}},
	})

	got, err := p.Decide(context.Background(), types.PolicyRequest{Symbol: "TSLA"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Symbol != "TSLA" || got[0].Qty != 10 {
		t.Errorf("proposals = %+v", got)
	}

	got, err = p.Decide(context.Background(), types.PolicyRequest{Symbol: "AAPL"})
	if err != nil || len(got) != 0 {
		t.Errorf("unknown symbol: %+v, %v", got, err)
	}
}

func TestDecideDoesNotShareBacking(t *testing.T) {
	p := New(map[string][]types.TradeProposal{"AAPL": {{Action: types.ActionHold}}})
	first, _ := p.Decide(context.Background(), types.PolicyRequest{Symbol: "AAPL"})
	first[0].Action = types.ActionBuy
	second, _ := p.Decide(context.Background(), types.PolicyRequest{Symbol: "AAPL"})
	if second[0].Action != types.ActionHold {
		t.Error("callers must not be able to mutate the canned table")
	}
}
