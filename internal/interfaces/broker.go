package interfaces

import (
	"context"

	"tradeloop/internal/types"
)

// Broker is the brokerage capability set: one read or write per call, no retries.
type Broker interface {
	GetAccount(ctx context.Context) (types.AccountSnapshot, error)
	ListPositions(ctx context.Context) ([]types.Position, error)
	SubmitOrder(ctx context.Context, req types.OrderRequest) (types.OrderAck, error)
}
