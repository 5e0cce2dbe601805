package portfolio

import (
	"context"

	"github.com/shopspring/decimal"

	"tradeloop/internal/interfaces"
	"tradeloop/internal/logger"
	"tradeloop/internal/types"
)

// Aggregator merges the account snapshot and the open positions into one
// overview.
type Aggregator struct {
	broker    interfaces.Broker
	simulated bool
}

var _ interfaces.PortfolioReader = (*Aggregator)(nil)

// New returns an aggregator. simulated marks overviews that come from the
// paper account rather than a real brokerage.
func New(broker interfaces.Broker, simulated bool) *Aggregator {
	return &Aggregator{broker: broker, simulated: simulated}
}

// GetOverview fails fast: the first brokerage error is returned as is.
func (a *Aggregator) GetOverview(ctx context.Context) (types.PortfolioOverview, error) {
	snap, err := a.broker.GetAccount(ctx)
	if err != nil {
		return types.PortfolioOverview{}, err
	}
	positions, err := a.broker.ListPositions(ctx)
	if err != nil {
		return types.PortfolioOverview{}, err
	}

	o := Merge(snap, positions)
	o.Simulated = a.simulated
	logger.Debug(ctx, "Portfolio overview built",
		"cash", o.Cash.String(),
		"equity", o.Equity.String(),
		"positions", o.PositionsCount,
		"simulated", o.Simulated,
	)
	return o, nil
}

// Merge applies the overview arithmetic. Equity falls back to cash plus
// position value, and portfolio value falls back to equity.
func Merge(snap types.AccountSnapshot, positions []types.Position) types.PortfolioOverview {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(p.MarketValue)
	}

	equity := snap.Cash.Add(total)
	if snap.Equity != nil {
		equity = *snap.Equity
	}
	pv := equity
	if snap.PortfolioValue != nil {
		pv = *snap.PortfolioValue
	}
	if positions == nil {
		positions = []types.Position{}
	}

	return types.PortfolioOverview{
		Cash:                snap.Cash,
		BuyingPower:         snap.BuyingPower,
		TotalPositionsValue: total,
		Equity:              equity,
		PortfolioValue:      pv,
		PositionsCount:      len(positions),
		Positions:           positions,
	}
}
