package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradeloop/internal/interfaces"
	"tradeloop/internal/logger"
	"tradeloop/internal/tradelog"
	"tradeloop/internal/types"
)

const (
	defaultMaxConcurrency = 4
	defaultPolicyTimeout  = 60 * time.Second

	scopeSymbol = "symbol"
)

// Deps are the components a run is built from. Headlines and Journal are
// optional.
type Deps struct {
	Fetcher   interfaces.QuoteFetcher
	Portfolio interfaces.PortfolioReader
	Policy    interfaces.DecisionPolicy
	Executor  interfaces.OrderExecutor
	Headlines interfaces.HeadlineSource
	Journal   Journal
}

type Options struct {
	MaxConcurrency int
	PolicyTimeout  time.Duration
	// Deadline bounds the whole run; zero means only the caller's context.
	Deadline time.Duration
	Model    string
}

// Engine runs the research, decide, gate, execute loop over a batch of
// symbols.
type Engine struct {
	d    Deps
	opts Options
	now  func() time.Time
}

var _ interfaces.Pipeline = (*Engine)(nil)

func newEngine(d Deps, opts Options) *Engine {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = defaultMaxConcurrency
	}
	if opts.PolicyTimeout <= 0 {
		opts.PolicyTimeout = defaultPolicyTimeout
	}
	return &Engine{d: d, opts: opts, now: time.Now}
}

// Run processes every symbol and reports one outcome per symbol in input
// order. Only an empty batch or a missing component is returned as an
// error; everything else is recorded on the outcome.
func (e *Engine) Run(ctx context.Context, symbols []string) (types.BatchReport, error) {
	if len(symbols) == 0 {
		return types.BatchReport{}, errors.New("no symbols to process")
	}
	if e.d.Fetcher == nil || e.d.Portfolio == nil || e.d.Policy == nil || e.d.Executor == nil {
		return types.BatchReport{}, errors.New("engine is missing a component")
	}

	report := types.BatchReport{
		RunID:     uuid.NewString(),
		StartedAt: e.now().UTC(),
		Outcomes:  make([]types.SymbolOutcome, len(symbols)),
	}
	ctx = WithRunID(ctx, report.RunID)
	if e.opts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Deadline)
		defer cancel()
	}

	sem := make(chan struct{}, e.opts.MaxConcurrency)
	var wg sync.WaitGroup
	for i, raw := range symbols {
		sym := strings.ToUpper(strings.TrimSpace(raw))
		acquired := false
		select {
		case sem <- struct{}{}:
			acquired = true
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			if acquired {
				<-sem
			}
			report.Outcomes[i] = canceledOutcome(sym, ctx.Err())
			continue
		}
		wg.Add(1)
		go func(i int, sym string) {
			defer wg.Done()
			defer func() { <-sem }()
			report.Outcomes[i] = e.process(ctx, sym)
		}(i, sym)
	}
	wg.Wait()

	report.Summary = summarize(report.Outcomes)
	return report, nil
}

func canceledOutcome(sym string, cause error) types.SymbolOutcome {
	return types.SymbolOutcome{
		Symbol:      sym,
		Stage:       types.StageReported,
		FailedStage: types.StagePending,
		Error:       types.KindOf(types.ErrCanceled),
		ErrorDetail: fmt.Sprintf("not started: %v", cause),
	}
}

// process walks one symbol through the stages. A failure stops the walk
// and is recorded against the stage that was being entered.
func (e *Engine) process(ctx context.Context, sym string) types.SymbolOutcome {
	out := types.SymbolOutcome{Symbol: sym, Stage: types.StagePending}
	fail := func(stage types.Stage, err error) types.SymbolOutcome {
		out.FailedStage = stage
		out.Stage = types.StageReported
		out.Error = types.KindOf(err)
		out.ErrorDetail = err.Error()
		logger.Warn(ctx, "Symbol failed",
			"symbol", sym,
			"stage", string(stage),
			"kind", out.Error,
			"error", err.Error(),
		)
		return out
	}

	if sym == "" {
		return fail(types.StageResearched, fmt.Errorf("%w: empty symbol", types.ErrValidation))
	}

	// Research
	q, err := e.d.Fetcher.Quote(ctx, sym)
	if err != nil {
		return fail(types.StageResearched, err)
	}
	out.Quote = &q
	overview, err := e.d.Portfolio.GetOverview(ctx)
	if err != nil {
		return fail(types.StageResearched, err)
	}
	var headlines []types.Headline
	if e.d.Headlines != nil {
		headlines, err = e.d.Headlines.Headlines(ctx, sym)
		if err != nil {
			logger.Warn(ctx, "Headlines unavailable", "symbol", sym, "error", err.Error())
			headlines = nil
		}
	}
	out.Stage = types.StageResearched

	// Propose
	proposals, err := e.decide(ctx, types.PolicyRequest{
		Scope:     scopeSymbol,
		Symbol:    sym,
		Quotes:    []types.Quote{q},
		Overview:  overview,
		Headlines: headlines,
		Model:     e.opts.Model,
	})
	if err != nil {
		return fail(types.StageProposed, err)
	}
	if len(proposals) == 0 {
		return fail(types.StageProposed, fmt.Errorf("%w: policy returned no proposals", types.ErrValidation))
	}

	valid := 0
	out.Trades = make([]types.TradeOutcome, 0, len(proposals))
	for _, p := range proposals {
		t := types.TradeOutcome{Proposal: p}
		if err := ValidateProposal(p, sym); err != nil {
			t.Error = types.KindOf(err)
			logger.Warn(ctx, "Proposal rejected", "symbol", sym, "error", err.Error())
		} else {
			p.Symbol = sym
			t.Proposal = p
			valid++
		}
		out.Trades = append(out.Trades, t)
	}
	if valid == 0 {
		return fail(types.StageProposed, fmt.Errorf("%w: no valid proposals", types.ErrValidation))
	}
	out.Stage = types.StageProposed

	// Gate
	for i := range out.Trades {
		t := &out.Trades[i]
		if t.Error != "" {
			continue
		}
		t.Gated = ApplySafetyGate(t.Proposal)
		g := t.Gated.Proposal
		logger.Decision(ctx, sym, string(g.Action), g.Confidence, g.Reason,
			"qty", g.Qty,
			"downgraded", t.Gated.Downgraded,
		)
		e.journalDecision(ctx, q, t.Gated)
	}
	out.Stage = types.StageGated

	// Execute
	var execErr error
	for i := range out.Trades {
		t := &out.Trades[i]
		if t.Error != "" {
			continue
		}
		res, err := e.d.Executor.Execute(ctx, t.Gated.Proposal, q, overview)
		t.Order = &res
		if err != nil {
			t.Error = types.KindOf(err)
			if execErr == nil {
				execErr = err
			}
		}
	}
	if execErr != nil && !anyExecuted(out.Trades) {
		return fail(types.StageExecuted, execErr)
	}
	out.Stage = types.StageReported
	return out
}

type decision struct {
	proposals []types.TradeProposal
	err       error
}

// decide calls the policy under the per-call timeout. Expiry of that
// timeout, while the run itself is still alive, is a policy timeout. A
// policy that ignores its context is abandoned at the deadline and its
// late answer is dropped.
func (e *Engine) decide(ctx context.Context, req types.PolicyRequest) ([]types.TradeProposal, error) {
	pctx, cancel := context.WithTimeout(ctx, e.opts.PolicyTimeout)
	defer cancel()

	done := make(chan decision, 1)
	go func() {
		proposals, err := e.d.Policy.Decide(pctx, req)
		done <- decision{proposals, err}
	}()

	select {
	case d := <-done:
		if d.err != nil {
			if ctx.Err() == nil && errors.Is(pctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: no answer within %s: %v", types.ErrDecisionPolicyTimeout, e.opts.PolicyTimeout, d.err)
			}
			return nil, d.err
		}
		return d.proposals, nil
	case <-pctx.Done():
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrCanceled, err)
		}
		return nil, fmt.Errorf("%w: no answer within %s", types.ErrDecisionPolicyTimeout, e.opts.PolicyTimeout)
	}
}

func (e *Engine) journalDecision(ctx context.Context, q types.Quote, g types.GateResult) {
	if e.d.Journal == nil {
		return
	}
	p := g.Proposal
	err := e.d.Journal.AppendDecision(tradelog.DecisionEntry{
		RunID:          RunID(ctx),
		Symbol:         p.Symbol,
		Action:         string(p.Action),
		Qty:            p.Qty,
		Confidence:     p.Confidence,
		Reason:         p.Reason,
		Price:          q.Price.String(),
		Downgraded:     g.Downgraded,
		OriginalAction: string(g.OriginalAct),
	})
	if err != nil {
		logger.Warn(ctx, "Decision journal write failed", "symbol", p.Symbol, "error", err.Error())
	}
}

func anyExecuted(trades []types.TradeOutcome) bool {
	for _, t := range trades {
		if t.Order != nil && t.Error == "" {
			return true
		}
	}
	return false
}

func summarize(outcomes []types.SymbolOutcome) types.Summary {
	var s types.Summary
	for _, o := range outcomes {
		if o.Error != "" {
			s.Errors++
			continue
		}
		for _, t := range o.Trades {
			if t.Error != "" {
				s.Errors++
				continue
			}
			if t.Order == nil {
				continue
			}
			switch t.Gated.Proposal.Action {
			case types.ActionBuy:
				s.Buys++
			case types.ActionSell:
				s.Sells++
			case types.ActionHold:
				s.Holds++
			}
			if t.Order.Simulated {
				s.Simulated++
			}
		}
	}
	s.Text = fmt.Sprintf("%d symbols: %d buy, %d sell, %d hold, %d error",
		len(outcomes), s.Buys, s.Sells, s.Holds, s.Errors)
	if s.Simulated > 0 {
		s.Text += fmt.Sprintf(" (%d simulated)", s.Simulated)
	}
	return s
}
