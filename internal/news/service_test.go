package news

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"tradeloop/internal/types"
)

const newsPage = `<html><body>
<table id="news-table">
<tr><td width="130">Oct-17-26 04:05PM</td><td><div><a class="tab-link-news" href="https://example.com/a">Apple unveils new chips</a></div><div class="news-link-right"><span>(Reuters)</span></div></td></tr>
<tr><td>11:20AM</td><td><div><a class="tab-link-news" href="/news/b">Supplier warns on demand</a></div><div class="news-link-right"><span>(Bloomberg)</span></div></td></tr>
<tr><td>Oct-16-26 08:00AM</td><td><div><a href="https://example.com/c">Analysts raise targets</a></div></td></tr>
<tr><td></td><td></td></tr>
</table>
</body></html>`

func TestParseHeadlines(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(newsPage))
	if err != nil {
		t.Fatal(err)
	}
	base, _ := url.Parse("https://finviz.com")

	got := parseHeadlines(doc.Find("table#news-table"), base, 0)
	if len(got) != 3 {
		t.Fatalf("got %d headlines: %+v", len(got), got)
	}
	want := []types.Headline{
		{Title: "Apple unveils new chips", URL: "https://example.com/a", Source: "Reuters", Published: "Oct-17-26 04:05PM"},
		{Title: "Supplier warns on demand", URL: "https://finviz.com/news/b", Source: "Bloomberg", Published: "Oct-17-26 11:20AM"},
		{Title: "Analysts raise targets", URL: "https://example.com/c", Source: "", Published: "Oct-16-26 08:00AM"},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("headline %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if got := parseHeadlines(doc.Find("table#news-table"), base, 2); len(got) != 2 {
		t.Errorf("limit 2 returned %d", len(got))
	}
}

func TestScraperAgainstServer(t *testing.T) {
	var gotTicker, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTicker = r.URL.Query().Get("t")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(newsPage))
	}))
	defer srv.Close()

	s := NewScraper(srv.URL, 5*time.Second)
	got, err := s.Scrape(context.Background(), "aapl", 5)
	if err != nil {
		t.Fatal(err)
	}
	if gotTicker != "AAPL" || gotUA == "" {
		t.Errorf("request ticker=%q ua=%q", gotTicker, gotUA)
	}
	if len(got) != 3 || got[1].URL != srv.URL+"/news/b" {
		t.Errorf("headlines = %+v", got)
	}
}

func TestScraperHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	if _, err := NewScraper(srv.URL, time.Second).Scrape(context.Background(), "AAPL", 5); err == nil {
		t.Error("expected error for 403")
	}
}

type countingScraper struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *countingScraper) Scrape(_ context.Context, symbol string, limit int) ([]types.Headline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []types.Headline{{Title: symbol + " headline"}}, nil
}

func TestServiceCachesUntilTTL(t *testing.T) {
	sc := &countingScraper{}
	svc := NewService(ServiceConfig{CacheDuration: time.Minute})
	svc.scraper = sc
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	svc.cache.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		got, err := svc.Headlines(context.Background(), "aapl")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Title != "AAPL headline" {
			t.Fatalf("headlines = %+v", got)
		}
	}
	if sc.calls != 1 {
		t.Errorf("scrapes = %d, want 1", sc.calls)
	}

	now = now.Add(2 * time.Minute)
	if _, err := svc.Headlines(context.Background(), "AAPL"); err != nil {
		t.Fatal(err)
	}
	if sc.calls != 2 {
		t.Errorf("scrapes after expiry = %d, want 2", sc.calls)
	}

	svc.ClearCache()
	if _, err := svc.Headlines(context.Background(), "AAPL"); err != nil {
		t.Fatal(err)
	}
	if sc.calls != 3 {
		t.Errorf("scrapes after clear = %d, want 3", sc.calls)
	}
}

func TestServiceDoesNotCacheFailures(t *testing.T) {
	sc := &countingScraper{err: errors.New("blocked")}
	svc := NewService(ServiceConfig{})
	svc.scraper = sc

	for i := 0; i < 2; i++ {
		if _, err := svc.Headlines(context.Background(), "MSFT"); err == nil {
			t.Fatal("expected error")
		}
	}
	if sc.calls != 2 {
		t.Errorf("scrapes = %d, want 2", sc.calls)
	}
}

func TestDefaultServiceConfig(t *testing.T) {
	cfg := DefaultServiceConfig()
	if cfg.MaxHeadlines != 5 || cfg.CacheDuration != time.Hour || cfg.Timeout != 15*time.Second {
		t.Errorf("defaults = %+v", cfg)
	}
	svc := NewService(ServiceConfig{})
	if svc.cfg.MaxHeadlines != 5 {
		t.Errorf("zero config not defaulted: %+v", svc.cfg)
	}
}
