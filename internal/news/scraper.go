package news

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"tradeloop/internal/logger"
	"tradeloop/internal/types"
)

const (
	DefaultBaseURL = "https://finviz.com"
	quotePath      = "/quote.ashx"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Scraper reads the news table of a Finviz quote page.
type Scraper struct {
	baseURL string
	timeout time.Duration
}

func NewScraper(baseURL string, timeout time.Duration) *Scraper {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Scraper{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

// Scrape returns up to limit headlines for symbol, newest first.
func (s *Scraper) Scrape(ctx context.Context, symbol string, limit int) ([]types.Headline, error) {
	base, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("news base url: %w", err)
	}

	c := colly.NewCollector(
		colly.AllowedDomains(base.Hostname()),
		colly.MaxDepth(1),
		colly.StdlibContext(ctx),
	)
	if s.timeout > 0 {
		c.SetRequestTimeout(s.timeout)
	}

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", userAgent)
	})

	var headlines []types.Headline
	c.OnHTML("table#news-table", func(e *colly.HTMLElement) {
		headlines = parseHeadlines(e.DOM, base, limit)
	})

	c.OnError(func(r *colly.Response, err error) {
		logger.Debug(ctx, "Headline scrape error", "symbol", symbol, "status", r.StatusCode, "error", err.Error())
	})

	pageURL := s.baseURL + quotePath + "?t=" + url.QueryEscape(strings.ToUpper(symbol))
	if err := c.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", pageURL, err)
	}
	c.Wait()
	return headlines, nil
}

// parseHeadlines walks the rows of a Finviz news table. Rows published on
// the same day as the row above carry only a time, so the last seen date
// is carried forward.
func parseHeadlines(table *goquery.Selection, base *url.URL, limit int) []types.Headline {
	var out []types.Headline
	var day string
	table.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if limit > 0 && len(out) >= limit {
			return false
		}
		link := row.Find("a").First()
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return true
		}

		stamp := strings.Join(strings.Fields(row.Find("td").First().Text()), " ")
		published := stamp
		if parts := strings.SplitN(stamp, " ", 2); len(parts) == 2 {
			day = parts[0]
		} else if day != "" && stamp != "" {
			published = day + " " + stamp
		}

		h := types.Headline{
			Title:     title,
			Published: published,
		}
		if href, ok := link.Attr("href"); ok {
			h.URL = resolve(base, href)
		}
		src := strings.TrimSpace(row.Find("span").Last().Text())
		h.Source = strings.Trim(src, "() ")
		out = append(out, h)
		return true
	})
	return out
}

func resolve(base *url.URL, href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}
