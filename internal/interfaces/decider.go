package interfaces

import (
	"context"

	"tradeloop/internal/types"
)

// DecisionPolicy proposes trades for the requested symbol. Implementations
// talk to an external model or return canned answers.
type DecisionPolicy interface {
	Decide(ctx context.Context, req types.PolicyRequest) ([]types.TradeProposal, error)
}
