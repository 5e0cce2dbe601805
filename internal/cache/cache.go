package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradeloop/internal/interfaces"
	"tradeloop/internal/logger"
	"tradeloop/internal/types"
)

// record is the on-disk shape of one entry. Price is written as a bare
// JSON number so other tools can read the file.
type record struct {
	Price  json.Number `json:"price"`
	Time   *string     `json:"time"`
	Source string      `json:"source"`
}

// FileCache keeps the last known price per symbol in a single JSON
// document. Reads never fail: any problem is a miss. Writes rewrite the
// whole document through a temp file and a rename.
//
// The mutex only serializes writers inside this process. Two processes
// writing at once may lose one update.
type FileCache struct {
	path string
	mu   sync.Mutex
}

var _ interfaces.PriceCache = (*FileCache)(nil)

func New(path string) *FileCache {
	return &FileCache{path: path}
}

func (c *FileCache) Path() string {
	return c.path
}

// Get returns the cached entry for symbol.
func (c *FileCache) Get(ctx context.Context, symbol string) (types.CacheEntry, bool) {
	doc, err := c.load()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Debug(ctx, "Price cache unreadable, treating as miss", "path", c.path, "error", err)
		}
		return types.CacheEntry{}, false
	}
	raw, ok := doc[symbol]
	if !ok {
		return types.CacheEntry{}, false
	}
	e, err := decodeEntry(raw)
	if err != nil {
		logger.Debug(ctx, "Cached entry malformed, treating as miss", "symbol", symbol, "error", err)
		return types.CacheEntry{}, false
	}
	return e, true
}

// Put replaces the entry for symbol and keeps every other entry as is.
func (c *FileCache) Put(ctx context.Context, symbol string, e types.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.load()
	if err != nil {
		// A missing or corrupt document is replaced rather than blocking writes.
		doc = map[string]json.RawMessage{}
	}

	raw, err := json.Marshal(encodeEntry(e))
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", types.ErrCacheIO, symbol, err)
	}
	doc[symbol] = raw

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode document: %v", types.ErrCacheIO, err)
	}
	if err := c.writeAtomic(b); err != nil {
		return fmt.Errorf("%w: %v", types.ErrCacheIO, err)
	}
	logger.Debug(ctx, "Price cache updated", "symbol", symbol, "price", e.Price.String(), "source", e.Source)
	return nil
}

func (c *FileCache) load() (map[string]json.RawMessage, error) {
	b, err := os.ReadFile(c.path)
	if err != nil {
		return nil, err
	}
	doc := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(b)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *FileCache) writeAtomic(b []byte) error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := f.Write(b); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

func encodeEntry(e types.CacheEntry) record {
	r := record{Price: json.Number(e.Price.String()), Source: e.Source}
	if e.Time != nil {
		s := e.Time.UTC().Format(time.RFC3339)
		r.Time = &s
	}
	return r
}

func decodeEntry(raw json.RawMessage) (types.CacheEntry, error) {
	var r record
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&r); err != nil {
		return types.CacheEntry{}, err
	}
	price, err := decimal.NewFromString(r.Price.String())
	if err != nil {
		return types.CacheEntry{}, fmt.Errorf("price %q: %w", r.Price, err)
	}
	e := types.CacheEntry{Price: price, Source: r.Source}
	if r.Time != nil {
		if t, ok := parseTime(*r.Time); ok {
			e.Time = &t
		}
	}
	return e, nil
}

// parseTime accepts full timestamps and the bare trading dates some
// providers report.
func parseTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
