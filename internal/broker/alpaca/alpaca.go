package alpaca

import (
	"context"
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"tradeloop/internal/interfaces"
	"tradeloop/internal/types"
)

// tradingAPI is the subset of the Alpaca trading client we call.
type tradingAPI interface {
	GetAccount() (*alpaca.Account, error)
	GetPositions() ([]alpaca.Position, error)
	PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error)
}

// Broker talks to the Alpaca trading API v2. The SDK calls take no
// context, so a canceled context is only checked before each call.
type Broker struct {
	client tradingAPI
}

var _ interfaces.Broker = (*Broker)(nil)

type Params struct {
	APIKey  string
	Secret  string
	BaseURL string
}

func New(p Params) *Broker {
	return &Broker{
		client: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    p.APIKey,
			APISecret: p.Secret,
			BaseURL:   p.BaseURL,
		}),
	}
}

func (b *Broker) GetAccount(ctx context.Context) (types.AccountSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return types.AccountSnapshot{}, err
	}
	acct, err := b.client.GetAccount()
	if err != nil {
		return types.AccountSnapshot{}, fmt.Errorf("%w: get account: %v", types.ErrBroker, err)
	}
	equity := acct.Equity
	pv := acct.PortfolioValue
	return types.AccountSnapshot{
		Cash:           acct.Cash,
		BuyingPower:    acct.BuyingPower,
		Equity:         &equity,
		PortfolioValue: &pv,
		Status:         string(acct.Status),
	}, nil
}

func (b *Broker) ListPositions(ctx context.Context) ([]types.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := b.client.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("%w: list positions: %v", types.ErrBroker, err)
	}
	out := make([]types.Position, 0, len(raw))
	for _, p := range raw {
		out = append(out, types.Position{
			Symbol:        p.Symbol,
			Qty:           p.Qty,
			AvgEntryPrice: p.AvgEntryPrice,
			MarketValue:   deref(p.MarketValue),
			UnrealizedPL:  deref(p.UnrealizedPL),
		})
	}
	return out, nil
}

func (b *Broker) SubmitOrder(ctx context.Context, req types.OrderRequest) (types.OrderAck, error) {
	if err := ctx.Err(); err != nil {
		return types.OrderAck{}, err
	}
	qty := decimal.NewFromInt(int64(req.Qty))
	o, err := b.client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Qty:           &qty,
		Side:          alpaca.Side(req.Side),
		Type:          orderType(req.Type),
		TimeInForce:   timeInForce(req.TimeInForce),
		ClientOrderID: req.ClientOrderID,
	})
	if err != nil {
		return types.OrderAck{}, fmt.Errorf("%w: submit order: %v", types.ErrBroker, err)
	}
	return types.OrderAck{OrderID: o.ID, Status: o.Status}, nil
}

// Only market/day orders are placed; anything else falls back to them.
func orderType(string) alpaca.OrderType { return alpaca.Market }

func timeInForce(string) alpaca.TimeInForce { return alpaca.Day }

func deref(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
