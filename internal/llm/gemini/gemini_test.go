package gemini

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
	var gotPath, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"[{\"action\":\"buy\",\"symbol\":\"AAPL\",\"qty\":3,\"reason\":\"earnings\",\"confidence\":0.75}]"}]}}]}`))
	}))
	defer srv.Close()

	p, err := New(Params{APIKey: "k", Model: "gemini-2.0-flash", Endpoint: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	got, err := p.Decide(context.Background(), types.PolicyRequest{Symbol: "AAPL"})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if len(got) != 1 || got[0].Action != types.ActionBuy || got[0].Qty != 3 {
		t.Errorf("proposals = %+v", got)
	}
	if gotPath != "/models/gemini-2.0-flash:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "k" {
		t.Errorf("key = %q", gotKey)
	}
	gen, _ := gotBody["generationConfig"].(map[string]any)
	if gen["response_mime_type"] != "application/json" {
		t.Errorf("generationConfig = %v", gotBody["generationConfig"])
	}
}

func TestDecideModelOverride(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"[]"}]}}]}`))
	}))
	defer srv.Close()

	p, _ := New(Params{APIKey: "k", Model: "gemini-2.0-flash", Endpoint: srv.URL})
	if _, err := p.Decide(context.Background(), types.PolicyRequest{Symbol: "AAPL", Model: "gemini-1.5-pro"}); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/models/gemini-1.5-pro:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestDecideErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	p, _ := New(Params{APIKey: "k", Model: "m", Endpoint: srv.URL})
	if _, err := p.Decide(context.Background(), types.PolicyRequest{Symbol: "AAPL"}); !errors.Is(err, types.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}

	if _, err := New(Params{}); err == nil {
		t.Error("expected error without an API key")
	}
}
