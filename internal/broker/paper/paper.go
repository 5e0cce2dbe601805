package paper

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"tradeloop/internal/interfaces"
	"tradeloop/internal/types"
)

// Broker stands in for the brokerage when no credentials are configured.
// It reports a fixed cash account with no positions. Equity and
// portfolio value are left unset so the aggregator derives them.
type Broker struct {
	cash decimal.Decimal
}

var _ interfaces.Broker = (*Broker)(nil)

func New(cash decimal.Decimal) *Broker {
	return &Broker{cash: cash}
}

func (b *Broker) GetAccount(ctx context.Context) (types.AccountSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return types.AccountSnapshot{}, err
	}
	return types.AccountSnapshot{
		Cash:        b.cash,
		BuyingPower: b.cash,
		Status:      "PAPER",
	}, nil
}

func (b *Broker) ListPositions(ctx context.Context) ([]types.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []types.Position{}, nil
}

// SubmitOrder is never reached: the executor simulates orders first when
// no credentials are configured.
func (b *Broker) SubmitOrder(context.Context, types.OrderRequest) (types.OrderAck, error) {
	return types.OrderAck{}, fmt.Errorf("%w: paper account does not accept orders", types.ErrBroker)
}
