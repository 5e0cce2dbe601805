package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"

	"tradeloop/internal/interfaces"
	"tradeloop/internal/types"
)

// Provider reads the regular market price from Yahoo Finance. It needs
// no key.
type Provider struct {
	get func(symbol string) (*finance.Quote, error)
}

var _ interfaces.PriceProvider = (*Provider)(nil)

// New sets the process-wide finance-go HTTP client to one bounded by
// timeout, since the library calls carry no context.
func New(timeout time.Duration) *Provider {
	finance.SetHTTPClient(&http.Client{Timeout: timeout})
	return &Provider{get: quote.Get}
}

func (p *Provider) Name() string { return "yahoo" }

func (p *Provider) Latest(ctx context.Context, symbol string) (types.Quote, error) {
	if err := ctx.Err(); err != nil {
		return types.Quote{}, err
	}
	q, err := p.get(symbol)
	if err != nil {
		return types.Quote{}, fmt.Errorf("yahoo quote %s: %w", symbol, err)
	}
	if q == nil || q.RegularMarketPrice <= 0 {
		return types.Quote{}, fmt.Errorf("yahoo quote %s: no price", symbol)
	}

	out := types.Quote{
		Symbol: symbol,
		Price:  decimal.NewFromFloat(q.RegularMarketPrice),
		Source: types.SourceLive,
	}
	if q.RegularMarketTime > 0 {
		t := time.Unix(int64(q.RegularMarketTime), 0).UTC()
		out.Time = &t
	}
	return out, nil
}
