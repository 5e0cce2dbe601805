package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradeloop/internal/tradelog"
	"tradeloop/internal/types"
)

type fakeBroker struct {
	mu        sync.Mutex
	submitted []types.OrderRequest
	submitErr error
	account   types.AccountSnapshot

	delay    time.Duration
	inflight int32
	peak     int32
}

func (b *fakeBroker) GetAccount(context.Context) (types.AccountSnapshot, error) {
	return b.account, nil
}

func (b *fakeBroker) ListPositions(context.Context) ([]types.Position, error) {
	return nil, nil
}

func (b *fakeBroker) SubmitOrder(_ context.Context, req types.OrderRequest) (types.OrderAck, error) {
	n := atomic.AddInt32(&b.inflight, 1)
	defer atomic.AddInt32(&b.inflight, -1)
	for {
		p := atomic.LoadInt32(&b.peak)
		if n <= p || atomic.CompareAndSwapInt32(&b.peak, p, n) {
			break
		}
	}
	time.Sleep(b.delay)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitted = append(b.submitted, req)
	if b.submitErr != nil {
		return types.OrderAck{}, b.submitErr
	}
	return types.OrderAck{OrderID: "ord-" + req.Symbol, Status: "accepted"}, nil
}

func (b *fakeBroker) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.submitted)
}

type memJournal struct {
	mu        sync.Mutex
	entries   []tradelog.Entry
	decisions []tradelog.DecisionEntry
}

func (j *memJournal) Append(e tradelog.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

func (j *memJournal) AppendDecision(e tradelog.DecisionEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.decisions = append(j.decisions, e)
	return nil
}

func quoteAt(symbol, price string) types.Quote {
	return types.Quote{Symbol: symbol, Price: decimal.RequireFromString(price), Source: types.SourceLive}
}

func overviewWith(buyingPower string) types.PortfolioOverview {
	bp := decimal.RequireFromString(buyingPower)
	return types.PortfolioOverview{Cash: bp, BuyingPower: bp, Equity: bp, PortfolioValue: bp}
}

func TestExecuteHoldSkipsBroker(t *testing.T) {
	brk := &fakeBroker{}
	ex := NewOrderExecutor(brk, true, nil)

	// A low-confidence buy, after the gate
	g := ApplySafetyGate(types.TradeProposal{Action: types.ActionBuy, Symbol: "TSLA", Qty: 10, Confidence: 0.4})
	if g.Proposal.Action != types.ActionHold || g.Proposal.Qty != 0 {
		t.Fatalf("gate = %+v", g)
	}
	res, err := ex.Execute(context.Background(), g.Proposal, quoteAt("TSLA", "200"), overviewWith("100000"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != types.ActionHold || res.Status != types.StatusSkipped {
		t.Errorf("result = %+v", res)
	}
	if brk.calls() != 0 {
		t.Errorf("broker called %d times", brk.calls())
	}
}

func TestExecuteSimulatedBuy(t *testing.T) {
	brk := &fakeBroker{}
	j := &memJournal{}
	ex := NewOrderExecutor(brk, false, j)

	p := types.TradeProposal{Action: types.ActionBuy, Symbol: "NVDA", Qty: 10, Confidence: 0.9, Reason: "earnings"}
	res, err := ex.Execute(context.Background(), p, quoteAt("NVDA", "50"), overviewWith("1000"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Simulated || res.Symbol != "NVDA" || res.Qty != 10 || res.Side != types.SideBuy || res.Type != "market" || res.Status != types.StatusSimulated {
		t.Errorf("result = %+v", res)
	}
	if brk.calls() != 0 {
		t.Error("simulated order must not reach the broker")
	}
	if len(j.entries) != 1 || !j.entries[0].Simulated || j.entries[0].Price != "50" {
		t.Errorf("journal = %+v", j.entries)
	}
}

func TestExecuteBuyingPowerGuard(t *testing.T) {
	brk := &fakeBroker{}
	ex := NewOrderExecutor(brk, true, nil)

	p := types.TradeProposal{Action: types.ActionBuy, Symbol: "NVDA", Qty: 21, Confidence: 0.9}
	res, err := ex.Execute(context.Background(), p, quoteAt("NVDA", "50"), overviewWith("1000"))
	if !errors.Is(err, types.ErrInsufficientBuyingPower) {
		t.Fatalf("got %v, want ErrInsufficientBuyingPower", err)
	}
	if res.Error == "" || res.Simulated {
		t.Errorf("result = %+v", res)
	}
	if brk.calls() != 0 {
		t.Error("rejected buy must not reach the broker")
	}

	// Exactly at buying power is allowed
	p.Qty = 20
	if _, err := ex.Execute(context.Background(), p, quoteAt("NVDA", "50"), overviewWith("1000")); err != nil {
		t.Fatalf("buy at buying power: %v", err)
	}
	if brk.calls() != 1 {
		t.Errorf("broker calls = %d, want 1", brk.calls())
	}
}

func TestExecuteSellBypassesGuard(t *testing.T) {
	brk := &fakeBroker{}
	ex := NewOrderExecutor(brk, true, nil)

	p := types.TradeProposal{Action: types.ActionSell, Symbol: "AAPL", Qty: 100, Confidence: 0.8}
	res, err := ex.Execute(context.Background(), p, quoteAt("AAPL", "190"), overviewWith("0"))
	if err != nil {
		t.Fatal(err)
	}
	if res.OrderID != "ord-AAPL" || res.Status != "accepted" || res.Simulated {
		t.Errorf("result = %+v", res)
	}
	if len(brk.submitted) != 1 {
		t.Fatalf("submitted = %+v", brk.submitted)
	}
	req := brk.submitted[0]
	if req.Side != types.SideSell || req.Type != "market" || req.TimeInForce != "day" || req.Qty != 100 {
		t.Errorf("request = %+v", req)
	}
}

func TestExecuteLiveCarriesRunID(t *testing.T) {
	brk := &fakeBroker{}
	ex := NewOrderExecutor(brk, true, nil)

	ctx := WithRunID(context.Background(), "run42")
	p := types.TradeProposal{Action: types.ActionBuy, Symbol: "MSFT", Qty: 1, Confidence: 0.9}
	if _, err := ex.Execute(ctx, p, quoteAt("MSFT", "400"), overviewWith("1000")); err != nil {
		t.Fatal(err)
	}
	if id := brk.submitted[0].ClientOrderID; !strings.HasPrefix(id, "tl-run42-MSFT-") {
		t.Errorf("client order id = %q", id)
	}
}

func TestExecuteBrokerFailureCaptured(t *testing.T) {
	brk := &fakeBroker{submitErr: errors.Join(types.ErrBroker, errors.New("market closed"))}
	j := &memJournal{}
	ex := NewOrderExecutor(brk, true, j)

	p := types.TradeProposal{Action: types.ActionSell, Symbol: "AAPL", Qty: 1, Confidence: 0.9}
	res, err := ex.Execute(context.Background(), p, quoteAt("AAPL", "190"), overviewWith("1000"))
	if !errors.Is(err, types.ErrBroker) {
		t.Fatalf("got %v, want ErrBroker", err)
	}
	if res.Simulated || !strings.Contains(res.Error, "market closed") {
		t.Errorf("result = %+v", res)
	}
	if len(j.entries) != 1 || j.entries[0].Error == "" {
		t.Errorf("journal = %+v", j.entries)
	}
}

func TestExecuteZeroQtyRejected(t *testing.T) {
	ex := NewOrderExecutor(&fakeBroker{}, false, nil)
	p := types.TradeProposal{Action: types.ActionBuy, Symbol: "AAPL", Qty: 0, Confidence: 0.9}
	if _, err := ex.Execute(context.Background(), p, quoteAt("AAPL", "1"), overviewWith("10")); !errors.Is(err, types.ErrValidation) {
		t.Errorf("got %v, want ErrValidation", err)
	}
}

func TestExecuteSubmitsOneOrderAtATime(t *testing.T) {
	brk := &fakeBroker{delay: 10 * time.Millisecond}
	ex := NewOrderExecutor(brk, true, &memJournal{})

	var wg sync.WaitGroup
	for _, sym := range []string{"AAPL", "MSFT", "NVDA", "TSLA", "GOOG", "AMZN"} {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			p := types.TradeProposal{Action: types.ActionSell, Symbol: sym, Qty: 1, Confidence: 0.9}
			if _, err := ex.Execute(context.Background(), p, quoteAt(sym, "10"), overviewWith("1000")); err != nil {
				t.Errorf("%s: %v", sym, err)
			}
		}(sym)
	}
	wg.Wait()

	if brk.calls() != 6 {
		t.Fatalf("submitted %d orders, want 6", brk.calls())
	}
	if p := atomic.LoadInt32(&brk.peak); p != 1 {
		t.Errorf("peak concurrent submissions = %d, want 1", p)
	}
}
