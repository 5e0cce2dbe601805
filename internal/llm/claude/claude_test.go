package claude

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"tradeloop/internal/types"
)

func TestDecide(t *testing.T) {
	var gotKey, gotVersion string
	var gotBody messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"[{\"action\":\"sell\",\"symbol\":\"MSFT\",\"qty\":1,\"reason\":\"valuation\",\"confidence\":0.65}]"}],"stop_reason":"end_turn"}`))
	}))
	defer srv.Close()

	p, err := NewClaudePolicy(Params{APIKey: "secret", Model: "claude-3-5-sonnet-latest", Endpoint: srv.URL, System: "be careful"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := p.Decide(context.Background(), types.PolicyRequest{Symbol: "MSFT"})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if len(got) != 1 || got[0].Action != types.ActionSell || got[0].Symbol != "MSFT" {
		t.Errorf("proposals = %+v", got)
	}
	if gotKey != "secret" || gotVersion != apiVersion {
		t.Errorf("headers key=%q version=%q", gotKey, gotVersion)
	}
	if gotBody.System != "be careful" || gotBody.Model != "claude-3-5-sonnet-latest" || gotBody.MaxTokens != 1024 {
		t.Errorf("body = %+v", gotBody)
	}
	if len(gotBody.Messages) != 1 || gotBody.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", gotBody.Messages)
	}
}

func TestDecideHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	p, _ := NewClaudePolicy(Params{APIKey: "x", Endpoint: srv.URL})
	if _, err := p.Decide(context.Background(), types.PolicyRequest{Symbol: "AAPL"}); err == nil {
		t.Error("expected error")
	}
}

func TestDecideUnparseable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"I would rather not say."}]}`))
	}))
	defer srv.Close()

	p, _ := NewClaudePolicy(Params{APIKey: "x", Endpoint: srv.URL})
	if _, err := p.Decide(context.Background(), types.PolicyRequest{Symbol: "AAPL"}); !errors.Is(err, types.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}
