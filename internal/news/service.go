package news

import (
	"context"
	"strings"
	"sync"
	"time"

	"tradeloop/internal/interfaces"
	"tradeloop/internal/logger"
	"tradeloop/internal/types"
)

type headlineScraper interface {
	Scrape(ctx context.Context, symbol string, limit int) ([]types.Headline, error)
}

// Service serves recent headlines per symbol, caching each symbol's list
// for a TTL.
type Service struct {
	scraper  headlineScraper
	cache    *headlineCache
	cfg      ServiceConfig
	inflight sync.Map // symbol -> *sync.Mutex
}

var _ interfaces.HeadlineSource = (*Service)(nil)

// ServiceConfig configures the headline service
type ServiceConfig struct {
	MaxHeadlines  int
	CacheDuration time.Duration
	Timeout       time.Duration
	BaseURL       string
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxHeadlines:  5,
		CacheDuration: time.Hour,
		Timeout:       15 * time.Second,
	}
}

func NewService(cfg ServiceConfig) *Service {
	def := DefaultServiceConfig()
	if cfg.MaxHeadlines <= 0 {
		cfg.MaxHeadlines = def.MaxHeadlines
	}
	if cfg.CacheDuration <= 0 {
		cfg.CacheDuration = def.CacheDuration
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Service{
		scraper: NewScraper(cfg.BaseURL, cfg.Timeout),
		cache:   newHeadlineCache(cfg.CacheDuration),
		cfg:     cfg,
	}
}

// Headlines returns cached headlines when fresh, otherwise scrapes. A
// scrape failure is returned to the caller and nothing is cached.
func (s *Service) Headlines(ctx context.Context, symbol string) ([]types.Headline, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if cached, ok := s.cache.get(symbol); ok {
		logger.Debug(ctx, "Using cached headlines", "symbol", symbol, "count", len(cached))
		return cached, nil
	}

	// one scrape per symbol at a time
	mu, _ := s.inflight.LoadOrStore(symbol, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()
	if cached, ok := s.cache.get(symbol); ok {
		return cached, nil
	}

	headlines, err := s.scraper.Scrape(ctx, symbol, s.cfg.MaxHeadlines)
	if err != nil {
		return nil, err
	}
	logger.Debug(ctx, "Headlines scraped", "symbol", symbol, "count", len(headlines))
	s.cache.set(symbol, headlines)
	return headlines, nil
}

// ClearCache drops every cached list.
func (s *Service) ClearCache() {
	s.cache.clear()
}

// headlineCache expires entries lazily on read.
type headlineCache struct {
	mu   sync.RWMutex
	data map[string]cacheEntry
	ttl  time.Duration
	now  func() time.Time
}

type cacheEntry struct {
	headlines []types.Headline
	stored    time.Time
}

func newHeadlineCache(ttl time.Duration) *headlineCache {
	return &headlineCache{
		data: make(map[string]cacheEntry),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (c *headlineCache) get(symbol string) ([]types.Headline, bool) {
	c.mu.RLock()
	e, ok := c.data[symbol]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.stored) > c.ttl {
		c.mu.Lock()
		if cur, ok := c.data[symbol]; ok && cur.stored.Equal(e.stored) {
			delete(c.data, symbol)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.headlines, true
}

func (c *headlineCache) set(symbol string, h []types.Headline) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[symbol] = cacheEntry{headlines: h, stored: c.now()}
}

func (c *headlineCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]cacheEntry)
}
