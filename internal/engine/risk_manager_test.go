package engine

import (
	"errors"
	"math"
	"testing"

	"tradeloop/internal/types"
)

func TestApplySafetyGate(t *testing.T) {
	tests := []struct {
		name       string
		in         types.TradeProposal
		wantAction types.Action
		wantQty    int
		downgraded bool
	}{
		{"threshold passes", types.TradeProposal{Action: types.ActionBuy, Symbol: "AAPL", Qty: 3, Confidence: 0.6}, types.ActionBuy, 3, false},
		{"just below downgrades", types.TradeProposal{Action: types.ActionBuy, Symbol: "AAPL", Qty: 3, Confidence: 0.59}, types.ActionHold, 0, true},
		{"sell below downgrades", types.TradeProposal{Action: types.ActionSell, Symbol: "AAPL", Qty: 2, Confidence: 0.1}, types.ActionHold, 0, true},
		{"confident sell passes", types.TradeProposal{Action: types.ActionSell, Symbol: "AAPL", Qty: 2, Confidence: 0.95}, types.ActionSell, 2, false},
		{"hold untouched", types.TradeProposal{Action: types.ActionHold, Symbol: "AAPL", Confidence: 0.2}, types.ActionHold, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplySafetyGate(tt.in)
			if got.Proposal.Action != tt.wantAction || got.Proposal.Qty != tt.wantQty || got.Downgraded != tt.downgraded {
				t.Errorf("gate(%+v) = %+v", tt.in, got)
			}
			if got.Downgraded && got.OriginalAct != tt.in.Action {
				t.Errorf("original action = %q, want %q", got.OriginalAct, tt.in.Action)
			}
		})
	}
}

func TestSafetyGateReasonAnnotation(t *testing.T) {
	got := ApplySafetyGate(types.TradeProposal{Action: types.ActionBuy, Symbol: "TSLA", Qty: 10, Reason: "momentum", Confidence: 0.4})
	want := "momentum [safety gate: confidence 0.40 < 0.60, downgraded from buy]"
	if got.Proposal.Reason != want {
		t.Errorf("reason = %q, want %q", got.Proposal.Reason, want)
	}
}

func TestValidateProposal(t *testing.T) {
	ok := types.TradeProposal{Action: types.ActionBuy, Symbol: "AAPL", Qty: 1, Confidence: 0.7}
	if err := ValidateProposal(ok, "AAPL"); err != nil {
		t.Fatalf("valid proposal rejected: %v", err)
	}
	if err := ValidateProposal(types.TradeProposal{Action: types.ActionHold, Symbol: "aapl", Confidence: 0}, "AAPL"); err != nil {
		t.Fatalf("lowercase symbol hold rejected: %v", err)
	}

	bad := []struct {
		name string
		mod  func(*types.TradeProposal)
	}{
		{"unknown action", func(p *types.TradeProposal) { p.Action = "short" }},
		{"confidence above one", func(p *types.TradeProposal) { p.Confidence = 1.2 }},
		{"negative confidence", func(p *types.TradeProposal) { p.Confidence = -0.1 }},
		{"nan confidence", func(p *types.TradeProposal) { p.Confidence = math.NaN() }},
		{"negative qty", func(p *types.TradeProposal) { p.Qty = -1 }},
		{"hold with qty", func(p *types.TradeProposal) { p.Action = types.ActionHold; p.Qty = 5 }},
		{"empty symbol", func(p *types.TradeProposal) { p.Symbol = " " }},
		{"other symbol", func(p *types.TradeProposal) { p.Symbol = "MSFT" }},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			p := ok
			tt.mod(&p)
			if err := ValidateProposal(p, "AAPL"); !errors.Is(err, types.ErrValidation) {
				t.Errorf("got %v, want ErrValidation", err)
			}
		})
	}
}
