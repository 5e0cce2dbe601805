package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"tradeloop/internal/types"
)

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED"))

	symbolStyle = lipgloss.NewStyle().
		Bold(true).
		Width(8)

	buyStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	sellStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F59E0B")).
		Bold(true)

	holdStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280"))

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EF4444")).
		Bold(true)

	summaryStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#3B82F6")).
		Padding(0, 1)
)

// WriteText renders one line per symbol followed by a boxed summary.
func WriteText(w io.Writer, rep types.BatchReport) error {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Run "+rep.RunID) + "\n")
	for _, o := range rep.Outcomes {
		b.WriteString(symbolStyle.Render(o.Symbol))
		b.WriteString(" ")
		b.WriteString(priceText(o.Quote))
		b.WriteString("  ")
		if o.Error != "" {
			b.WriteString(errorStyle.Render(o.Error))
			b.WriteString(fmt.Sprintf(" at %s: %s\n", o.FailedStage, o.ErrorDetail))
			continue
		}
		parts := make([]string, 0, len(o.Trades))
		for _, t := range o.Trades {
			parts = append(parts, tradeText(t))
		}
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString("\n")
	}
	b.WriteString(summaryStyle.Render(rep.Summary.Text))
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func priceText(q *types.Quote) string {
	if q == nil {
		return "-"
	}
	s := money(q.Price)
	if q.Source == types.SourceCache {
		s += " (cache)"
	}
	return s
}

func tradeText(t types.TradeOutcome) string {
	if t.Error != "" && t.Order == nil {
		return errorStyle.Render(t.Error) + " " + string(t.Proposal.Action) + " rejected"
	}
	g := t.Gated.Proposal
	var s string
	switch g.Action {
	case types.ActionBuy:
		s = buyStyle.Render(fmt.Sprintf("BUY %d", g.Qty))
	case types.ActionSell:
		s = sellStyle.Render(fmt.Sprintf("SELL %d", g.Qty))
	default:
		s = holdStyle.Render("HOLD")
	}
	s += fmt.Sprintf(" conf %.2f", g.Confidence)
	if t.Gated.Downgraded {
		s += " (gated from " + string(t.Gated.OriginalAct) + ")"
	}
	if o := t.Order; o != nil {
		switch {
		case o.Error != "":
			s += " " + errorStyle.Render(t.Error) + ": " + o.Error
		case o.Simulated:
			s += " [simulated]"
		case o.OrderID != "":
			s += " [" + o.Status + " " + o.OrderID + "]"
		}
	}
	return s
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, rep types.BatchReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

var csvHeader = []string{
	"run_id", "symbol", "price", "source", "stage", "error", "action", "qty",
	"confidence", "downgraded", "simulated", "order_id", "status", "trade_error", "reason",
}

// WriteCSV writes one row per trade, or one row per symbol that produced
// no trades.
func WriteCSV(w io.Writer, rep types.BatchReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, o := range rep.Outcomes {
		price, source := "", ""
		if o.Quote != nil {
			price = o.Quote.Price.String()
			source = string(o.Quote.Source)
		}
		stage := string(o.Stage)
		if o.FailedStage != "" {
			stage = string(o.FailedStage)
		}
		base := []string{rep.RunID, o.Symbol, price, source, stage, o.Error}
		if len(o.Trades) == 0 {
			if err := cw.Write(append(base, "", "", "", "", "", "", "", "", "")); err != nil {
				return err
			}
			continue
		}
		for _, t := range o.Trades {
			p := t.Proposal
			if t.Gated.Proposal.Action != "" {
				p = t.Gated.Proposal
			}
			var simulated, orderID, status string
			if t.Order != nil {
				simulated = strconv.FormatBool(t.Order.Simulated)
				orderID = t.Order.OrderID
				status = t.Order.Status
			}
			row := append(append([]string{}, base...),
				string(p.Action),
				strconv.Itoa(p.Qty),
				strconv.FormatFloat(p.Confidence, 'f', 2, 64),
				strconv.FormatBool(t.Gated.Downgraded),
				simulated,
				orderID,
				status,
				t.Error,
				p.Reason,
			)
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteOverview prints the portfolio summary block.
func WriteOverview(w io.Writer, o types.PortfolioOverview) error {
	var b strings.Builder
	title := "Portfolio Summary"
	if o.Simulated {
		title += " (paper)"
	}
	b.WriteString(titleStyle.Render(title) + "\n")
	fmt.Fprintf(&b, "Portfolio Value: %s\n", money(o.PortfolioValue))
	fmt.Fprintf(&b, "Equity: %s\n", money(o.Equity))
	fmt.Fprintf(&b, "Cash: %s\n", money(o.Cash))
	fmt.Fprintf(&b, "Buying Power: %s\n", money(o.BuyingPower))
	fmt.Fprintf(&b, "Total Positions Value: %s\n", money(o.TotalPositionsValue))
	fmt.Fprintf(&b, "Number of Positions: %d\n", o.PositionsCount)
	for _, p := range o.Positions {
		fmt.Fprintf(&b, "  %s %s @ %s  value %s  P/L %s\n",
			symbolStyle.Render(p.Symbol), p.Qty.String(), money(p.AvgEntryPrice), money(p.MarketValue), money(p.UnrealizedPL))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteQuote prints a single quote line.
func WriteQuote(w io.Writer, q types.Quote) error {
	line := fmt.Sprintf("%s %s source=%s", symbolStyle.Render(q.Symbol), money(q.Price), q.Source)
	if q.Time != nil {
		line += " time=" + q.Time.Format("2006-01-02")
	}
	if q.Note != "" {
		line += " note=" + strconv.Quote(q.Note)
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

// money formats d as dollars with thousands separators, e.g. $1,234.50.
func money(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	neg := d.IsNegative() && s != "0.00"
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "$" + b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}
