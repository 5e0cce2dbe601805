package brokerobs

import (
	"context"

	"tradeloop/internal/interfaces"
	"tradeloop/internal/logger"
	"tradeloop/internal/trace"
	"tradeloop/internal/types"
)

// observableBroker wraps a Broker with observability (logging & tracing)
type observableBroker struct {
	broker interfaces.Broker
}

// Compile-time interface check
var _ interfaces.Broker = (*observableBroker)(nil)

// Wrap wraps a broker with observability middleware
func Wrap(broker interfaces.Broker) interfaces.Broker {
	return &observableBroker{
		broker: broker,
	}
}

// GetAccount reads the account snapshot with observability
func (ob *observableBroker) GetAccount(ctx context.Context) (types.AccountSnapshot, error) {
	ctx, span := trace.StartSpan(ctx, "broker.GetAccount")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching account snapshot")

	snap, err := ob.broker.GetAccount(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch account", err)
		return types.AccountSnapshot{}, err
	}

	logger.DebugSkip(ctx, 1, "Account fetched successfully",
		"cash", snap.Cash.String(),
		"buying_power", snap.BuyingPower.String(),
		"status", snap.Status,
	)
	return snap, nil
}

// ListPositions lists open positions with observability
func (ob *observableBroker) ListPositions(ctx context.Context) ([]types.Position, error) {
	ctx, span := trace.StartSpan(ctx, "broker.ListPositions")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Listing positions")

	positions, err := ob.broker.ListPositions(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to list positions", err)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Positions listed successfully", "count", len(positions))
	return positions, nil
}

// SubmitOrder places an order with observability
func (ob *observableBroker) SubmitOrder(ctx context.Context, req types.OrderRequest) (types.OrderAck, error) {
	ctx, span := trace.StartSymbolSpan(ctx, "broker.SubmitOrder", req.Symbol)
	defer span.End()

	logger.InfoSkip(ctx, 1, "Placing order",
		"symbol", req.Symbol,
		"side", string(req.Side),
		"qty", req.Qty,
		"client_order_id", req.ClientOrderID,
	)

	ack, err := ob.broker.SubmitOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place order", err,
			"symbol", req.Symbol,
			"side", string(req.Side),
			"qty", req.Qty,
		)
		return types.OrderAck{}, err
	}

	logger.InfoSkip(ctx, 1, "Order placed successfully",
		"symbol", req.Symbol,
		"order_id", ack.OrderID,
		"status", ack.Status,
	)
	return ack, nil
}
