package tradelog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

// Entry is one order result line in the daily trade file.
type Entry struct {
	Time       string  `json:"time"`
	RunID      string  `json:"run_id,omitempty"`
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Qty        int     `json:"qty"`
	Price      string  `json:"price"`
	OrderID    string  `json:"order_id,omitempty"`
	Status     string  `json:"status,omitempty"`
	Simulated  bool    `json:"simulated"`
	Reason     string  `json:"reason,omitempty"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
}

// DecisionEntry is one gated decision line in the daily decisions file.
type DecisionEntry struct {
	Time           string  `json:"time"`
	RunID          string  `json:"run_id,omitempty"`
	Symbol         string  `json:"symbol"`
	Action         string  `json:"action"`
	Qty            int     `json:"qty"`
	Confidence     float64 `json:"confidence"`
	Reason         string  `json:"reason"`
	Price          string  `json:"price,omitempty"`
	Downgraded     bool    `json:"downgraded,omitempty"`
	OriginalAction string  `json:"original_action,omitempty"`
}

// Log appends JSON lines to daily files under a directory:
// <dir>/YYYY-MM-DD.txt for orders and <dir>/decisions/YYYY-MM-DD.txt for
// decisions.
type Log struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func New(dir string) *Log {
	if dir == "" {
		dir = "logs"
	}
	return &Log{dir: dir, now: time.Now}
}

func (l *Log) Dir() string { return l.dir }

func (l *Log) dailyFilepath(t time.Time) string {
	return filepath.Join(l.dir, t.Format(time.DateOnly)+".txt")
}

func (l *Log) decisionsFilepath(t time.Time) string {
	return filepath.Join(l.dir, "decisions", t.Format(time.DateOnly)+".txt")
}

func (l *Log) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	e.Time = now.Format(timeLayout)
	return appendLine(l.dailyFilepath(now), e)
}

func (l *Log) AppendDecision(e DecisionEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	e.Time = now.Format(timeLayout)
	return appendLine(l.decisionsFilepath(now), e)
}

func appendLine(p string, v any) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips .txt files last modified more than retentionDays ago
// and removes the originals. It returns how many files were compressed.
// Files it cannot read are skipped.
func (l *Log) CompressOlder(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().AddDate(0, 0, -retentionDays)
	compressed := 0
	err := filepath.WalkDir(l.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		// already compressed by an earlier pass
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err != nil {
			_ = os.Remove(gz)
			return nil
		}
		_ = os.Remove(p)
		compressed++
		return nil
	})
	if os.IsNotExist(err) {
		return 0, nil
	}
	return compressed, err
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
