package engine

import (
	"fmt"
	"math"
	"strings"

	"tradeloop/internal/types"
)

// SafetyThreshold is the minimum confidence a buy or sell needs to pass
// the safety gate.
const SafetyThreshold = 0.6

// ValidateProposal checks a policy proposal for the symbol it was asked
// about. Any violation is an ErrValidation and the proposal must not be
// executed.
func ValidateProposal(p types.TradeProposal, symbol string) error {
	if !p.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", types.ErrValidation, p.Action)
	}
	if math.IsNaN(p.Confidence) || p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", types.ErrValidation, p.Confidence)
	}
	if p.Qty < 0 {
		return fmt.Errorf("%w: negative qty %d", types.ErrValidation, p.Qty)
	}
	if p.Action == types.ActionHold && p.Qty != 0 {
		return fmt.Errorf("%w: hold with qty %d", types.ErrValidation, p.Qty)
	}
	if strings.TrimSpace(p.Symbol) == "" {
		return fmt.Errorf("%w: empty symbol", types.ErrValidation)
	}
	if !strings.EqualFold(strings.TrimSpace(p.Symbol), symbol) {
		return fmt.Errorf("%w: proposal for %s while researching %s", types.ErrValidation, p.Symbol, symbol)
	}
	return nil
}

// ApplySafetyGate downgrades low-confidence proposals to hold. Confidence
// equal to the threshold passes.
func ApplySafetyGate(p types.TradeProposal) types.GateResult {
	if p.Action == types.ActionHold || p.Confidence >= SafetyThreshold {
		return types.GateResult{Proposal: p}
	}
	orig := p.Action
	p.Reason = fmt.Sprintf("%s [safety gate: confidence %.2f < %.2f, downgraded from %s]",
		p.Reason, p.Confidence, SafetyThreshold, orig)
	p.Action = types.ActionHold
	p.Qty = 0
	return types.GateResult{Proposal: p, Downgraded: true, OriginalAct: orig}
}
