package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tradeloop/internal/types"
)

const (
	ModeDryRun = "DRY_RUN"
	ModeLive   = "LIVE"

	DefaultBrokerBaseURL = "https://paper-api.alpaca.markets"
)

// defaultModels maps a policy provider to the model used when none is
// configured. Providers without an entry fall back to gemini-2.0-flash.
var defaultModels = map[string]string{
	"CLAUDE":   "claude-3-5-haiku-latest",
	"OPENAI":   "gpt-4o-mini",
	"DEEPSEEK": "deepseek-chat",
}

// DefaultModel returns the model for provider when policy.model is unset.
func DefaultModel(provider string) string {
	if m, ok := defaultModels[strings.ToUpper(provider)]; ok {
		return m
	}
	return "gemini-2.0-flash"
}

type Config struct {
	Mode string `yaml:"mode"`
	Log  struct {
		Level    string `yaml:"level"`
		Format   string `yaml:"format"`
		Detailed bool   `yaml:"detailed"`
		Tracing  bool   `yaml:"tracing"`
	} `yaml:"log"`
	Quote struct {
		Provider          string        `yaml:"provider"`
		BaseURL           string        `yaml:"base_url"`
		MaxRetries        int           `yaml:"max_retries"`
		BackoffBase       float64       `yaml:"backoff_base"`
		Timeout           time.Duration `yaml:"timeout"`
		RequestsPerMinute int           `yaml:"requests_per_minute"`
		APIKey            string        `yaml:"-"`
	} `yaml:"quote"`
	Cache struct {
		Path string `yaml:"path"`
	} `yaml:"cache"`
	Broker struct {
		BaseURL   string  `yaml:"base_url"`
		PaperCash float64 `yaml:"paper_cash"`
		APIKey    string  `yaml:"-"`
		Secret    string  `yaml:"-"`
	} `yaml:"broker"`
	Policy struct {
		Provider    string        `yaml:"provider"`
		Model       string        `yaml:"model"`
		Endpoint    string        `yaml:"endpoint"`
		Timeout     time.Duration `yaml:"timeout"`
		MaxTokens   int           `yaml:"max_tokens"`
		Temperature float32       `yaml:"temperature"`
		System      string        `yaml:"system"`
		// Canned proposals per symbol for the STATIC provider
		Static map[string][]types.TradeProposal `yaml:"static"`
	} `yaml:"policy"`
	Pipeline struct {
		Symbols        []string      `yaml:"symbols"`
		MaxConcurrency int           `yaml:"max_concurrency"`
		Deadline       time.Duration `yaml:"deadline"`
	} `yaml:"pipeline"`
	News struct {
		Enabled      bool          `yaml:"enabled"`
		MaxHeadlines int           `yaml:"max_headlines"`
		CacheTTL     time.Duration `yaml:"cache_ttl"`
		Timeout      time.Duration `yaml:"timeout"`
		BaseURL      string        `yaml:"base_url"`
	} `yaml:"news"`
	TradeLog struct {
		Enabled       bool   `yaml:"enabled"`
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"tradelog"`

	// Secrets read from the environment, never from YAML
	Secrets struct {
		Gemini   string `yaml:"-"`
		Claude   string `yaml:"-"`
		OpenAI   string `yaml:"-"`
		DeepSeek string `yaml:"-"`
	} `yaml:"-"`
}

func (c *Config) Validate() error {
	if c.Mode != ModeDryRun && c.Mode != ModeLive {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	switch c.Quote.Provider {
	case "ALPHAVANTAGE", "YAHOO":
	default:
		return fmt.Errorf("quote.provider must be 'ALPHAVANTAGE' or 'YAHOO', got '%s'", c.Quote.Provider)
	}
	if c.Quote.MaxRetries < 1 {
		return fmt.Errorf("quote.max_retries must be at least 1, got %d", c.Quote.MaxRetries)
	}
	if c.Quote.BackoffBase < 1 {
		return fmt.Errorf("quote.backoff_base must be >= 1, got %.2f", c.Quote.BackoffBase)
	}
	if c.Cache.Path == "" {
		return errors.New("cache.path cannot be empty")
	}
	switch c.Policy.Provider {
	case "NOOP", "STATIC", "GEMINI", "CLAUDE", "OPENAI", "DEEPSEEK":
	default:
		return fmt.Errorf("policy.provider must be one of NOOP, STATIC, GEMINI, CLAUDE, OPENAI, DEEPSEEK, got '%s'", c.Policy.Provider)
	}
	if c.Pipeline.MaxConcurrency < 1 {
		return fmt.Errorf("pipeline.max_concurrency must be at least 1, got %d", c.Pipeline.MaxConcurrency)
	}
	if c.Broker.PaperCash < 0 {
		return fmt.Errorf("broker.paper_cash cannot be negative, got %.2f", c.Broker.PaperCash)
	}
	return nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeDryRun
	}
	c.Mode = strings.ToUpper(c.Mode)
	if c.Log.Level == "" {
		c.Log.Level = "INFO"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Quote.Provider == "" {
		c.Quote.Provider = "ALPHAVANTAGE"
	}
	c.Quote.Provider = strings.ToUpper(c.Quote.Provider)
	if c.Quote.MaxRetries == 0 {
		c.Quote.MaxRetries = 3
	}
	if c.Quote.BackoffBase == 0 {
		c.Quote.BackoffBase = 1.5
	}
	if c.Quote.Timeout == 0 {
		c.Quote.Timeout = 10 * time.Second
	}
	if c.Quote.RequestsPerMinute == 0 {
		c.Quote.RequestsPerMinute = 5
	}
	if c.Cache.Path == "" {
		c.Cache.Path = "tmp/stock_price_cache.json"
	}
	if c.Broker.BaseURL == "" {
		c.Broker.BaseURL = DefaultBrokerBaseURL
	}
	if c.Broker.PaperCash == 0 {
		c.Broker.PaperCash = 100000
	}
	if c.Policy.Provider == "" {
		c.Policy.Provider = "NOOP"
	}
	c.Policy.Provider = strings.ToUpper(c.Policy.Provider)
	if c.Policy.Model == "" {
		c.Policy.Model = DefaultModel(c.Policy.Provider)
	}
	if c.Policy.Timeout == 0 {
		c.Policy.Timeout = 60 * time.Second
	}
	if c.Policy.MaxTokens == 0 {
		c.Policy.MaxTokens = 1024
	}
	if c.Pipeline.MaxConcurrency == 0 {
		c.Pipeline.MaxConcurrency = 4
	}
	if c.News.MaxHeadlines == 0 {
		c.News.MaxHeadlines = 5
	}
	if c.News.CacheTTL == 0 {
		c.News.CacheTTL = time.Hour
	}
	if c.News.Timeout == 0 {
		c.News.Timeout = 15 * time.Second
	}
	if c.TradeLog.Dir == "" {
		c.TradeLog.Dir = "logs"
	}
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}

// ApplyEnv overlays secrets and the brokerage endpoint from lookup,
// which is os.LookupEnv in production.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}
	c.Broker.APIKey = get("BROKER_API_KEY")
	c.Broker.Secret = get("BROKER_SECRET")
	if v := get("BROKER_BASE_URL"); v != "" {
		c.Broker.BaseURL = v
	}
	c.Quote.APIKey = get("PRICE_PROVIDER_API_KEY")
	c.Secrets.Gemini = get("GEMINI_API_KEY")
	c.Secrets.Claude = get("CLAUDE_API_KEY")
	c.Secrets.OpenAI = get("OPENAI_API_KEY")
	c.Secrets.DeepSeek = get("DEEPSEEK_API_KEY")
}

// BrokerConfigured reports whether both brokerage credentials are present.
func (c *Config) BrokerConfigured() bool {
	return c.Broker.APIKey != "" && c.Broker.Secret != ""
}

// OrdersEnabled reports whether orders reach the brokerage. Anything
// else is simulated.
func (c *Config) OrdersEnabled() bool {
	return c.Mode == ModeLive && c.BrokerConfigured()
}

// SetPolicyProvider switches the policy provider. A model that was only the
// previous provider's default follows the switch; an explicit one is kept.
func (c *Config) SetPolicyProvider(provider string) {
	if c.Policy.Model == "" || c.Policy.Model == DefaultModel(c.Policy.Provider) {
		c.Policy.Model = DefaultModel(provider)
	}
	c.Policy.Provider = strings.ToUpper(provider)
}

// PolicyAPIKey returns the secret for the configured policy provider.
func (c *Config) PolicyAPIKey() string {
	switch c.Policy.Provider {
	case "GEMINI":
		return c.Secrets.Gemini
	case "CLAUDE":
		return c.Secrets.Claude
	case "OPENAI":
		return c.Secrets.OpenAI
	case "DEEPSEEK":
		return c.Secrets.DeepSeek
	}
	return ""
}
