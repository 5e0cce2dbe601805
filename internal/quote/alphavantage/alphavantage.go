package alphavantage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"tradeloop/internal/interfaces"
	"tradeloop/internal/types"
)

const DefaultBaseURL = "https://www.alphavantage.co"

// Provider looks up GLOBAL_QUOTE on Alpha Vantage.
type Provider struct {
	client  *resty.Client
	apiKey  string
	limiter *rate.Limiter
}

var (
	_ interfaces.PriceProvider = (*Provider)(nil)
	_ interfaces.RateLimited   = (*Provider)(nil)
)

// New returns a provider that allows requestsPerMinute calls, with a burst
// of the same size.
func New(apiKey, baseURL string, timeout time.Duration, requestsPerMinute int) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 5
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)

	return &Provider{
		client:  client,
		apiKey:  apiKey,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute),
	}
}

func (p *Provider) Name() string { return "alphavantage" }

type globalQuoteResponse struct {
	GlobalQuote struct {
		Symbol           string `json:"01. symbol"`
		Price            string `json:"05. price"`
		LatestTradingDay string `json:"07. latest trading day"`
	} `json:"Global Quote"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	ErrorMessage string `json:"Error Message"`
}

// Wait reserves the next request slot. Callers wait before starting the
// per-request timeout, since a slot can be further away than that timeout.
func (p *Provider) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Latest performs one lookup. It does not wait for the rate limiter.
func (p *Provider) Latest(ctx context.Context, symbol string) (types.Quote, error) {
	var out globalQuoteResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"function": "GLOBAL_QUOTE",
			"symbol":   symbol,
			"apikey":   p.apiKey,
		}).
		SetResult(&out).
		Get("/query")
	if err != nil {
		return types.Quote{}, fmt.Errorf("alphavantage request: %w", err)
	}
	if resp.IsError() {
		return types.Quote{}, fmt.Errorf("alphavantage http %d", resp.StatusCode())
	}
	return parse(symbol, out)
}

func parse(symbol string, out globalQuoteResponse) (types.Quote, error) {
	// Throttling and key problems come back as 200 with a message instead of data.
	for _, msg := range []string{out.Note, out.Information, out.ErrorMessage} {
		if msg != "" {
			return types.Quote{}, fmt.Errorf("alphavantage: %s", msg)
		}
	}
	raw := strings.TrimSpace(out.GlobalQuote.Price)
	if raw == "" {
		return types.Quote{}, errors.New("alphavantage: no price in response")
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return types.Quote{}, fmt.Errorf("alphavantage: bad price %q: %w", raw, err)
	}

	q := types.Quote{Symbol: symbol, Price: price, Source: types.SourceLive}
	if day := strings.TrimSpace(out.GlobalQuote.LatestTradingDay); day != "" {
		if t, err := time.Parse(time.DateOnly, day); err == nil {
			q.Time = &t
		}
	}
	return q, nil
}
