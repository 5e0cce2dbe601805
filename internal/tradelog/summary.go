package tradelog

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type symbolTotals struct {
	symbol    string
	buyQty    int
	buyValue  decimal.Decimal
	sellQty   int
	sellValue decimal.Decimal
	simulated int
}

var summaryHeader = []string{
	"symbol", "buy_qty", "buy_avg", "sell_qty", "sell_avg",
	"realized_pnl", "gross_buy_value", "gross_sell_value", "simulated",
}

// SummaryPath is where SummarizeDay writes the CSV for day.
func (l *Log) SummaryPath(day time.Time) string {
	return filepath.Join(l.dir, "eod", day.Format(time.DateOnly)+".csv")
}

// SummarizeDay aggregates the day's filled and simulated orders per symbol
// into <dir>/eod/YYYY-MM-DD.csv and returns its path. Failed orders and
// unparseable lines are ignored. It returns "" when the day has no orders.
func (l *Log) SummarizeDay(day time.Time) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.dailyFilepath(day))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	totals := map[string]*symbolTotals{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil || e.Error != "" || e.Qty <= 0 {
			continue
		}
		price, err := decimal.NewFromString(e.Price)
		if err != nil {
			continue
		}
		row := totals[e.Symbol]
		if row == nil {
			row = &symbolTotals{symbol: e.Symbol}
			totals[e.Symbol] = row
		}
		value := price.Mul(decimal.NewFromInt(int64(e.Qty)))
		switch e.Side {
		case "buy":
			row.buyQty += e.Qty
			row.buyValue = row.buyValue.Add(value)
		case "sell":
			row.sellQty += e.Qty
			row.sellValue = row.sellValue.Add(value)
		default:
			continue
		}
		if e.Simulated {
			row.simulated++
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	if len(totals) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	outPath := l.SummaryPath(day)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	w := csv.NewWriter(out)
	_ = w.Write(summaryHeader)

	var totalBuy, totalSell, totalPnL decimal.Decimal
	for _, k := range keys {
		r := totals[k]
		buyAvg, sellAvg := avg(r.buyValue, r.buyQty), avg(r.sellValue, r.sellQty)
		matched := min(r.buyQty, r.sellQty)
		pnl := sellAvg.Sub(buyAvg).Mul(decimal.NewFromInt(int64(matched)))
		_ = w.Write([]string{
			r.symbol,
			strconv.Itoa(r.buyQty), buyAvg.StringFixed(4),
			strconv.Itoa(r.sellQty), sellAvg.StringFixed(4),
			pnl.StringFixed(2), r.buyValue.StringFixed(2), r.sellValue.StringFixed(2),
			strconv.Itoa(r.simulated),
		})
		totalBuy = totalBuy.Add(r.buyValue)
		totalSell = totalSell.Add(r.sellValue)
		totalPnL = totalPnL.Add(pnl)
	}
	_ = w.Write([]string{"TOTAL", "", "", "", "", totalPnL.StringFixed(2), totalBuy.StringFixed(2), totalSell.StringFixed(2), ""})
	w.Flush()
	if err := w.Error(); err != nil {
		_ = out.Close()
		return "", err
	}
	return outPath, out.Close()
}

func avg(value decimal.Decimal, qty int) decimal.Decimal {
	if qty == 0 {
		return decimal.Zero
	}
	return value.Div(decimal.NewFromInt(int64(qty)))
}
