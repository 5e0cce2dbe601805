package noop

import (
	"context"

	"tradeloop/internal/interfaces"
	"tradeloop/internal/logger"
	"tradeloop/internal/types"
)

// NoopPolicy is the fallback used when no model provider is configured
type NoopPolicy struct{}

var _ interfaces.DecisionPolicy = (*NoopPolicy)(nil)

// NewNoopPolicy returns a policy that always proposes HOLD
func NewNoopPolicy() *NoopPolicy {
	return &NoopPolicy{}
}

// Decide returns a single hold with 0 confidence for the requested symbol
func (d *NoopPolicy) Decide(ctx context.Context, req types.PolicyRequest) ([]types.TradeProposal, error) {
	logger.Debug(ctx, "Noop policy called - always returns HOLD", "symbol", req.Symbol)
	return []types.TradeProposal{{
		Action:     types.ActionHold,
		Symbol:     req.Symbol,
		Reason:     "noop_policy_fallback",
		Confidence: 0.0,
	}}, nil
}
