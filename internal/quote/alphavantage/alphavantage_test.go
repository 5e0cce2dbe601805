package alphavantage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func serve(t *testing.T, status int, body string) (*httptest.Server, *http.Request) {
	t.Helper()
	var got http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = *r
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestLatestParsesGlobalQuote(t *testing.T) {
	srv, req := serve(t, http.StatusOK, `{"Global Quote":{"01. symbol":"AAPL","05. price":"185.2300","07. latest trading day":"2024-01-05"}}`)
	p := New("secret", srv.URL, 2*time.Second, 60)

	q, err := p.Latest(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !q.Price.Equal(decimal.RequireFromString("185.23")) {
		t.Errorf("price = %s", q.Price)
	}
	if q.Time == nil || q.Time.Format(time.DateOnly) != "2024-01-05" {
		t.Errorf("time = %v", q.Time)
	}

	params := req.URL.Query()
	if params.Get("function") != "GLOBAL_QUOTE" || params.Get("symbol") != "AAPL" || params.Get("apikey") != "secret" {
		t.Errorf("unexpected query %v", params)
	}
	if req.URL.Path != "/query" {
		t.Errorf("path = %q", req.URL.Path)
	}
}

func TestLatestFailures(t *testing.T) {
	tests := map[string]struct {
		status int
		body   string
	}{
		"throttled":   {http.StatusOK, `{"Note":"Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute"}`},
		"information": {http.StatusOK, `{"Information":"The **demo** API key is for demo purposes only."}`},
		"empty quote": {http.StatusOK, `{"Global Quote":{}}`},
		"bad price":   {http.StatusOK, `{"Global Quote":{"05. price":"n/a"}}`},
		"server":      {http.StatusInternalServerError, `oops`},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			srv, _ := serve(t, tt.status, tt.body)
			p := New("k", srv.URL, 2*time.Second, 60)
			if _, err := p.Latest(context.Background(), "AAPL"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLatestHonorsContext(t *testing.T) {
	srv, _ := serve(t, http.StatusOK, `{}`)
	p := New("k", srv.URL, 2*time.Second, 60)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Latest(ctx, "AAPL"); err == nil {
		t.Error("expected error on canceled context")
	}
}

func TestWaitPacesRequests(t *testing.T) {
	p := New("k", "http://127.0.0.1:0", time.Second, 1)
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("first slot should be free: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := p.Wait(ctx); err == nil {
		t.Error("second slot within a minute should not fit a 10ms deadline")
	}
}
