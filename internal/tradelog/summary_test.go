package tradelog

import (
	"encoding/csv"
	"os"
	"testing"
	"time"
)

func TestSummarizeDay(t *testing.T) {
	day := time.Date(2026, 3, 20, 15, 0, 0, 0, time.UTC)
	l := fixedLog(t, day)
	for _, e := range []Entry{
		{Symbol: "AAPL", Side: "buy", Qty: 10, Price: "100", Simulated: true},
		{Symbol: "AAPL", Side: "buy", Qty: 10, Price: "110", Simulated: true},
		{Symbol: "AAPL", Side: "sell", Qty: 5, Price: "120"},
		{Symbol: "MSFT", Side: "sell", Qty: 2, Price: "400", Error: "rejected"},
		{Symbol: "NVDA", Side: "buy", Qty: 1, Price: "50"},
	} {
		if err := l.Append(e); err != nil {
			t.Fatal(err)
		}
	}

	p, err := l.SummarizeDay(day)
	if err != nil {
		t.Fatal(err)
	}
	if p != l.SummaryPath(day) {
		t.Fatalf("path = %q", p)
	}
	f, err := os.Open(p)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	// header, AAPL, NVDA, TOTAL; the failed MSFT order is skipped
	if len(rows) != 4 {
		t.Fatalf("got %d rows: %v", len(rows), rows)
	}
	aapl := rows[1]
	if aapl[0] != "AAPL" || aapl[1] != "20" || aapl[2] != "105.0000" || aapl[3] != "5" || aapl[5] != "75.00" || aapl[8] != "2" {
		t.Errorf("AAPL row = %v", aapl)
	}
	if rows[2][0] != "NVDA" || rows[2][6] != "50.00" {
		t.Errorf("NVDA row = %v", rows[2])
	}
	total := rows[3]
	if total[0] != "TOTAL" || total[5] != "75.00" || total[6] != "2150.00" || total[7] != "600.00" {
		t.Errorf("TOTAL row = %v", total)
	}
}

func TestSummarizeDayWithoutOrders(t *testing.T) {
	day := time.Date(2026, 3, 20, 15, 0, 0, 0, time.UTC)
	l := fixedLog(t, day)
	if p, err := l.SummarizeDay(day); err != nil || p != "" {
		t.Fatalf("missing file: path=%q err=%v", p, err)
	}
	if err := l.Append(Entry{Symbol: "AAPL", Side: "buy", Qty: 1, Price: "1", Error: "boom"}); err != nil {
		t.Fatal(err)
	}
	if p, err := l.SummarizeDay(day); err != nil || p != "" {
		t.Fatalf("only failures: path=%q err=%v", p, err)
	}
}
