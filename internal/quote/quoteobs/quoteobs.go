package quoteobs

import (
	"context"

	"tradeloop/internal/interfaces"
	"tradeloop/internal/logger"
	"tradeloop/internal/trace"
	"tradeloop/internal/types"
)

// observableFetcher wraps a QuoteFetcher with observability (logging & tracing)
type observableFetcher struct {
	fetcher interfaces.QuoteFetcher
}

// Compile-time interface check
var _ interfaces.QuoteFetcher = (*observableFetcher)(nil)

// Wrap wraps a quote fetcher with observability middleware
func Wrap(fetcher interfaces.QuoteFetcher) interfaces.QuoteFetcher {
	return &observableFetcher{
		fetcher: fetcher,
	}
}

func (of *observableFetcher) Quote(ctx context.Context, symbol string) (types.Quote, error) {
	ctx, span := trace.StartSymbolSpan(ctx, "quote.Quote", symbol)
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching quote", "symbol", symbol)

	q, err := of.fetcher.Quote(ctx, symbol)
	return of.result(ctx, symbol, q, err)
}

func (of *observableFetcher) GetQuote(ctx context.Context, symbol string, maxRetries int, backoffBase float64) (types.Quote, error) {
	ctx, span := trace.StartSymbolSpan(ctx, "quote.GetQuote", symbol)
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching quote", "symbol", symbol, "max_retries", maxRetries, "backoff_base", backoffBase)

	q, err := of.fetcher.GetQuote(ctx, symbol, maxRetries, backoffBase)
	return of.result(ctx, symbol, q, err)
}

func (of *observableFetcher) result(ctx context.Context, symbol string, q types.Quote, err error) (types.Quote, error) {
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 2, "Failed to fetch quote", err, "symbol", symbol, "kind", types.KindOf(err))
		return types.Quote{}, err
	}
	if q.Source == types.SourceCache {
		logger.WarnSkip(ctx, 2, "Serving cached quote", "symbol", symbol, "price", q.Price.String(), "note", q.Note)
		return q, nil
	}
	logger.InfoSkip(ctx, 2, "Quote fetched", "symbol", symbol, "price", q.Price.String(), "source", string(q.Source))
	return q, nil
}
