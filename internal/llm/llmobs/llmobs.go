package llmobs

import (
	"context"
	"time"

	"tradeloop/internal/interfaces"
	"tradeloop/internal/logger"
	"tradeloop/internal/trace"
	"tradeloop/internal/types"
)

// observablePolicy wraps a DecisionPolicy with observability (logging & tracing)
type observablePolicy struct {
	policy interfaces.DecisionPolicy
}

// Compile-time interface check
var _ interfaces.DecisionPolicy = (*observablePolicy)(nil)

// Wrap wraps a policy with observability middleware
func Wrap(policy interfaces.DecisionPolicy) interfaces.DecisionPolicy {
	return &observablePolicy{
		policy: policy,
	}
}

// Decide requests trade proposals with observability
func (op *observablePolicy) Decide(ctx context.Context, req types.PolicyRequest) ([]types.TradeProposal, error) {
	ctx, span := trace.StartSymbolSpan(ctx, "llm.Decide", req.Symbol)
	defer span.End()

	start := time.Now()

	// Use DebugSkip(1) to report the actual caller, not this middleware wrapper
	logger.DebugSkip(ctx, 1, "Requesting trade proposals",
		"symbol", req.Symbol,
		"model", req.Model,
		"quotes", len(req.Quotes),
		"headlines", len(req.Headlines),
	)

	proposals, err := op.policy.Decide(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to get trade proposals", err,
			"symbol", req.Symbol,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	for _, p := range proposals {
		logger.InfoSkip(ctx, 1, "Trade proposal received",
			"symbol", p.Symbol,
			"action", string(p.Action),
			"qty", p.Qty,
			"reason", p.Reason,
			"confidence", p.Confidence,
		)
	}
	logger.DebugSkip(ctx, 1, "Policy call completed",
		"symbol", req.Symbol,
		"proposals", len(proposals),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return proposals, nil
}
