package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradeloop/internal/interfaces"
	"tradeloop/internal/logger"
	"tradeloop/internal/trace"
	"tradeloop/internal/tradelog"
	"tradeloop/internal/types"
)

const (
	orderTypeMarket = "market"
	timeInForceDay  = "day"
)

// Journal records decisions and order results. *tradelog.Log satisfies it.
type Journal interface {
	Append(tradelog.Entry) error
	AppendDecision(tradelog.DecisionEntry) error
}

// WithRunID tags ctx with the id of the batch run it belongs to.
func WithRunID(ctx context.Context, id string) context.Context {
	return trace.WithRunID(ctx, id)
}

// RunID returns the batch run id carried by ctx, or "".
func RunID(ctx context.Context) string {
	return trace.RunID(ctx)
}

// orderExecutor turns gated proposals into broker orders. Orders go to the
// broker only when live is set; otherwise they are simulated.
type orderExecutor struct {
	broker  interfaces.Broker
	live    bool
	journal Journal

	// one account, one order at a time
	mu sync.Mutex
}

var _ interfaces.OrderExecutor = (*orderExecutor)(nil)

// NewOrderExecutor creates an executor. journal may be nil.
func NewOrderExecutor(broker interfaces.Broker, live bool, journal Journal) interfaces.OrderExecutor {
	return &orderExecutor{broker: broker, live: live, journal: journal}
}

func (oe *orderExecutor) Execute(ctx context.Context, p types.TradeProposal, q types.Quote, o types.PortfolioOverview) (types.OrderResult, error) {
	oe.mu.Lock()
	defer oe.mu.Unlock()

	if p.Action == types.ActionHold {
		return types.OrderResult{Action: types.ActionHold, Status: types.StatusSkipped}, nil
	}

	side := types.SideBuy
	if p.Action == types.ActionSell {
		side = types.SideSell
	}
	res := types.OrderResult{
		Action: p.Action,
		Symbol: p.Symbol,
		Qty:    p.Qty,
		Side:   side,
		Type:   orderTypeMarket,
	}

	if p.Qty <= 0 {
		err := fmt.Errorf("%w: %s needs a positive qty", types.ErrValidation, p.Action)
		res.Error = err.Error()
		return res, err
	}

	if side == types.SideBuy {
		cost := q.Price.Mul(decimal.NewFromInt(int64(p.Qty)))
		if cost.GreaterThan(o.BuyingPower) {
			logger.Risk(ctx, p.Symbol, "BUY_REJECTED_BUYING_POWER",
				"qty", p.Qty,
				"price", q.Price.String(),
				"cost", cost.String(),
				"buying_power", o.BuyingPower.String(),
			)
			err := fmt.Errorf("%w: cost %s exceeds buying power %s", types.ErrInsufficientBuyingPower, cost.StringFixed(2), o.BuyingPower.StringFixed(2))
			res.Error = err.Error()
			oe.record(ctx, p, q, res)
			return res, err
		}
	}

	if !oe.live {
		res.Simulated = true
		res.Status = types.StatusSimulated
		logger.Trade(ctx, p.Symbol, string(side), p.Qty, q.Price.String(), "", "simulated", true)
		oe.record(ctx, p, q, res)
		return res, nil
	}

	ack, err := oe.broker.SubmitOrder(ctx, types.OrderRequest{
		Symbol:        p.Symbol,
		Qty:           p.Qty,
		Side:          side,
		Type:          orderTypeMarket,
		TimeInForce:   timeInForceDay,
		ClientOrderID: clientOrderID(RunID(ctx), p.Symbol),
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to place order", err,
			"symbol", p.Symbol,
			"side", string(side),
			"qty", p.Qty,
		)
		res.Error = err.Error()
		oe.record(ctx, p, q, res)
		return res, err
	}
	res.OrderID = ack.OrderID
	res.Status = ack.Status
	logger.Trade(ctx, p.Symbol, string(side), p.Qty, q.Price.String(), ack.OrderID, "status", ack.Status)
	oe.record(ctx, p, q, res)
	return res, nil
}

func (oe *orderExecutor) record(ctx context.Context, p types.TradeProposal, q types.Quote, res types.OrderResult) {
	if oe.journal == nil {
		return
	}
	err := oe.journal.Append(tradelog.Entry{
		RunID:      RunID(ctx),
		Symbol:     res.Symbol,
		Side:       string(res.Side),
		Qty:        res.Qty,
		Price:      q.Price.String(),
		OrderID:    res.OrderID,
		Status:     res.Status,
		Simulated:  res.Simulated,
		Reason:     p.Reason,
		Confidence: p.Confidence,
		Error:      res.Error,
	})
	if err != nil {
		logger.Warn(ctx, "Trade journal write failed", "symbol", res.Symbol, "error", err.Error())
	}
}

// clientOrderID derives a broker-side idempotency key from the run id.
// Alpaca caps client order ids at 128 characters.
func clientOrderID(runID, symbol string) string {
	suffix := uuid.NewString()[:8]
	if runID == "" {
		return fmt.Sprintf("tl-%s-%s", symbol, suffix)
	}
	return fmt.Sprintf("tl-%s-%s-%s", runID, symbol, suffix)
}
