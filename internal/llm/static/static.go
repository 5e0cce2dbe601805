package static

import (
	"context"
	"strings"

	"tradeloop/internal/interfaces"
	"tradeloop/internal/types"
)

// Policy answers from a fixed table of proposals per symbol. Symbols
// missing from the table get an empty answer. Used for dry runs and
// tests that need a deterministic policy.
type Policy struct {
	canned map[string][]types.TradeProposal
}

var _ interfaces.DecisionPolicy = (*Policy)(nil)

func New(canned map[string][]types.TradeProposal) *Policy {
	m := make(map[string][]types.TradeProposal, len(canned))
	for sym, ps := range canned {
		m[strings.ToUpper(sym)] = ps
	}
	return &Policy{canned: m}
}

func (p *Policy) Decide(ctx context.Context, req types.PolicyRequest) ([]types.TradeProposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ps := p.canned[strings.ToUpper(req.Symbol)]
	out := make([]types.TradeProposal, len(ps))
	for i, prop := range ps {
		if prop.Symbol == "" {
			prop.Symbol = req.Symbol
		}
		out[i] = prop
	}
	return out, nil
}
