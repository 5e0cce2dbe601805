package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"tradeloop/internal/interfaces"
	"tradeloop/internal/logger"
	"tradeloop/internal/types"
)

// Options are the configured retry defaults used by Quote.
type Options struct {
	MaxRetries  int
	BackoffBase float64
	Timeout     time.Duration
}

// Fetcher resolves a price for a symbol: live provider first, with retry
// and backoff, falling back to the last cached value.
type Fetcher struct {
	provider interfaces.PriceProvider
	cache    interfaces.PriceCache
	opts     Options

	// newTimer is swapped in tests to record backoff delays without sleeping.
	newTimer func() backoff.Timer
}

var _ interfaces.QuoteFetcher = (*Fetcher)(nil)

// NewFetcher builds a fetcher. A nil provider means no provider
// credential is configured and only the cache is consulted.
func NewFetcher(provider interfaces.PriceProvider, cache interfaces.PriceCache, opts Options) *Fetcher {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 3
	}
	if opts.BackoffBase < 1 {
		opts.BackoffBase = 1.5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Fetcher{
		provider: provider,
		cache:    cache,
		opts:     opts,
		newTimer: func() backoff.Timer { return nil },
	}
}

// Quote fetches with the configured retry defaults.
func (f *Fetcher) Quote(ctx context.Context, symbol string) (types.Quote, error) {
	return f.GetQuote(ctx, symbol, f.opts.MaxRetries, f.opts.BackoffBase)
}

// GetQuote makes up to maxRetries live attempts, sleeping backoffBase^n
// seconds after the n-th failure. The first success is written through
// to the cache. When every attempt fails the cached value is returned
// marked stale.
func (f *Fetcher) GetQuote(ctx context.Context, symbol string, maxRetries int, backoffBase float64) (types.Quote, error) {
	if f.provider == nil {
		if q, ok := f.fromCache(ctx, symbol, types.NoteNoProviderKey); ok {
			return q, nil
		}
		return types.Quote{}, fmt.Errorf("quote %s: %w", symbol, types.ErrProviderNotConfigured)
	}
	if maxRetries < 1 {
		maxRetries = 1
	}

	attempt := 0
	var live types.Quote
	op := func() error {
		attempt++
		if rl, ok := f.provider.(interfaces.RateLimited); ok {
			if err := rl.Wait(ctx); err != nil {
				return err
			}
		}
		actx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()

		q, err := f.provider.Latest(actx, symbol)
		if err != nil {
			return err
		}
		live = q
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn(ctx, "Quote attempt failed, backing off",
			"symbol", symbol,
			"provider", f.provider.Name(),
			"attempt", attempt,
			"max_retries", maxRetries,
			"backoff_ms", wait.Milliseconds(),
			"error", err,
		)
	}

	err := backoff.RetryNotifyWithTimer(op, newSchedule(ctx, maxRetries, backoffBase), notify, f.newTimer())
	if err == nil {
		live.Symbol = symbol
		live.Source = types.SourceLive
		live.Note = ""
		entry := types.CacheEntry{Price: live.Price, Time: live.Time, Source: string(types.SourceLive)}
		if perr := f.cache.Put(ctx, symbol, entry); perr != nil {
			logger.Warn(ctx, "Failed to write price cache", "symbol", symbol, "error", perr)
		}
		logger.Debug(ctx, "Live quote fetched", "symbol", symbol, "price", live.Price.String(), "attempts", attempt)
		return live, nil
	}

	logger.Warn(ctx, "All quote attempts failed, trying cache",
		"symbol", symbol,
		"provider", f.provider.Name(),
		"attempts", attempt,
		"error", err,
	)
	if q, ok := f.fromCache(ctx, symbol, types.NoteStaleAfterFailure); ok {
		return q, nil
	}
	return types.Quote{}, fmt.Errorf("quote %s after %d attempts: %w", symbol, attempt, errors.Join(types.ErrNetwork, err))
}

func (f *Fetcher) fromCache(ctx context.Context, symbol, note string) (types.Quote, bool) {
	e, ok := f.cache.Get(ctx, symbol)
	if !ok {
		return types.Quote{}, false
	}
	return types.Quote{
		Symbol: symbol,
		Price:  e.Price,
		Time:   e.Time,
		Source: types.SourceCache,
		Note:   note,
	}, true
}

// newSchedule yields base^1, base^2, ... seconds between attempts and
// stops after maxRetries attempts in total.
func newSchedule(ctx context.Context, maxRetries int, base float64) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(base * float64(time.Second))
	b.Multiplier = base
	b.RandomizationFactor = 0
	b.MaxInterval = 24 * time.Hour
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries-1)), ctx)
}
