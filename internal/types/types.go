package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type QuoteSource string

const (
	SourceLive  QuoteSource = "live"
	SourceCache QuoteSource = "cache"
)

const (
	NoteNoProviderKey     = "no provider key, returning cached value"
	NoteStaleAfterFailure = "stale-after-failure"
)

// Quote is the result of a single price lookup.
type Quote struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Time   *time.Time      `json:"time,omitempty"`
	Source QuoteSource     `json:"source"`
	Note   string          `json:"note,omitempty"`
}

// CacheEntry is one persisted price record.
type CacheEntry struct {
	Price  decimal.Decimal `json:"price"`
	Time   *time.Time      `json:"time"`
	Source string          `json:"source"`
}

// AccountSnapshot is what the brokerage reports about the account.
// Equity and PortfolioValue are nil when the brokerage omits them.
type AccountSnapshot struct {
	Cash           decimal.Decimal  `json:"cash"`
	BuyingPower    decimal.Decimal  `json:"buying_power"`
	Equity         *decimal.Decimal `json:"equity,omitempty"`
	PortfolioValue *decimal.Decimal `json:"portfolio_value,omitempty"`
	Status         string           `json:"status"`
}

type Position struct {
	Symbol        string          `json:"symbol"`
	Qty           decimal.Decimal `json:"qty"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPL  decimal.Decimal `json:"unrealized_pl"`
}

type PortfolioOverview struct {
	Simulated           bool            `json:"simulated"`
	Cash                decimal.Decimal `json:"cash"`
	BuyingPower         decimal.Decimal `json:"buying_power"`
	TotalPositionsValue decimal.Decimal `json:"total_positions_value"`
	Equity              decimal.Decimal `json:"equity"`
	PortfolioValue      decimal.Decimal `json:"portfolio_value"`
	PositionsCount      int             `json:"positions_count"`
	Positions           []Position      `json:"positions"`
}

type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionSell || a == ActionHold
}

type TradeProposal struct {
	Action     Action  `json:"action"`
	Symbol     string  `json:"symbol"`
	Qty        int     `json:"qty"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// GateResult is a proposal after the safety gate, with a flag recording
// whether the gate changed it.
type GateResult struct {
	Proposal    TradeProposal `json:"proposal"`
	Downgraded  bool          `json:"downgraded"`
	OriginalAct Action        `json:"original_action,omitempty"`
}

type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderRequest is a market/day order to submit to the brokerage.
type OrderRequest struct {
	Symbol        string
	Qty           int
	Side          OrderSide
	Type          string
	TimeInForce   string
	ClientOrderID string
}

type OrderAck struct {
	OrderID string
	Status  string
}

const (
	StatusSkipped   = "skipped"
	StatusSimulated = "simulated"
)

type OrderResult struct {
	Action    Action    `json:"action"`
	Simulated bool      `json:"simulated"`
	OrderID   string    `json:"order_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
	Symbol    string    `json:"symbol,omitempty"`
	Qty       int       `json:"qty,omitempty"`
	Side      OrderSide `json:"side,omitempty"`
	Type      string    `json:"type,omitempty"`
}

type Headline struct {
	Title     string `json:"title"`
	URL       string `json:"url,omitempty"`
	Source    string `json:"source,omitempty"`
	Published string `json:"published,omitempty"`
}

// PolicyRequest is everything the decision policy sees for one symbol.
type PolicyRequest struct {
	Scope     string            `json:"scope"`
	Symbol    string            `json:"symbol"`
	Quotes    []Quote           `json:"quotes"`
	Overview  PortfolioOverview `json:"overview"`
	Headlines []Headline        `json:"headlines,omitempty"`
	Model     string            `json:"model,omitempty"`
}

type Stage string

const (
	StagePending    Stage = "Pending"
	StageResearched Stage = "Researched"
	StageProposed   Stage = "Proposed"
	StageGated      Stage = "Gated"
	StageExecuted   Stage = "Executed"
	StageReported   Stage = "Reported"
)

type TradeOutcome struct {
	Proposal TradeProposal `json:"proposal"`
	Gated    GateResult    `json:"gated"`
	Order    *OrderResult  `json:"order,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// SymbolOutcome is the per-symbol record in a batch report.
type SymbolOutcome struct {
	Symbol      string         `json:"symbol"`
	Quote       *Quote         `json:"quote,omitempty"`
	Stage       Stage          `json:"stage"`
	FailedStage Stage          `json:"failed_stage,omitempty"`
	Error       string         `json:"error,omitempty"`
	ErrorDetail string         `json:"error_detail,omitempty"`
	Trades      []TradeOutcome `json:"trades,omitempty"`
}

type Summary struct {
	Buys      int    `json:"buys"`
	Sells     int    `json:"sells"`
	Holds     int    `json:"holds"`
	Errors    int    `json:"errors"`
	Simulated int    `json:"simulated"`
	Text      string `json:"text"`
}

type BatchReport struct {
	RunID     string          `json:"run_id"`
	StartedAt time.Time       `json:"started_at"`
	Outcomes  []SymbolOutcome `json:"outcomes"`
	Summary   Summary         `json:"summary"`
}
