package interfaces

import (
	"context"

	"tradeloop/internal/types"
)

type Pipeline interface {
	Run(ctx context.Context, symbols []string) (types.BatchReport, error)
}

type OrderExecutor interface {
	Execute(ctx context.Context, p types.TradeProposal, q types.Quote, o types.PortfolioOverview) (types.OrderResult, error)
}
