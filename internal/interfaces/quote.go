package interfaces

import (
	"context"

	"tradeloop/internal/types"
)

// PriceProvider performs one live quote lookup.
type PriceProvider interface {
	Name() string
	Latest(ctx context.Context, symbol string) (types.Quote, error)
}

// RateLimited is implemented by providers with a request budget. Wait
// blocks until the next call is allowed.
type RateLimited interface {
	Wait(ctx context.Context) error
}

type QuoteFetcher interface {
	Quote(ctx context.Context, symbol string) (types.Quote, error)
	GetQuote(ctx context.Context, symbol string, maxRetries int, backoffBase float64) (types.Quote, error)
}

type PriceCache interface {
	Get(ctx context.Context, symbol string) (types.CacheEntry, bool)
	Put(ctx context.Context, symbol string, e types.CacheEntry) error
}

type PortfolioReader interface {
	GetOverview(ctx context.Context) (types.PortfolioOverview, error)
}

type HeadlineSource interface {
	Headlines(ctx context.Context, symbol string) ([]types.Headline, error)
}
