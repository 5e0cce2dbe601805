package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"tradeloop/internal/broker/alpaca"
	"tradeloop/internal/broker/brokerobs"
	"tradeloop/internal/broker/paper"
	"tradeloop/internal/cache"
	"tradeloop/internal/engine"
	"tradeloop/internal/engine/engineobs"
	"tradeloop/internal/interfaces"
	"tradeloop/internal/llm/claude"
	"tradeloop/internal/llm/gemini"
	"tradeloop/internal/llm/llmobs"
	"tradeloop/internal/llm/noop"
	"tradeloop/internal/llm/openai"
	"tradeloop/internal/llm/static"
	"tradeloop/internal/logger"
	"tradeloop/internal/news"
	"tradeloop/internal/portfolio"
	"tradeloop/internal/quote"
	"tradeloop/internal/quote/alphavantage"
	"tradeloop/internal/quote/quoteobs"
	"tradeloop/internal/quote/yahoo"
	"tradeloop/internal/store"
	"tradeloop/internal/trace"
	"tradeloop/internal/tradelog"
)

const defaultConfigPath = "config.yaml"

// loadConfig reads the YAML config, falling back to defaults when the
// default path does not exist, then overlays secrets from the environment.
func loadConfig(path string) (*store.Config, error) {
	_ = godotenv.Load()

	var cfg *store.Config
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && path == defaultConfigPath {
		cfg = store.Default()
	} else {
		c, err := store.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
		cfg = c
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// initializeSystem initializes logger and tracer. Logs go to stderr so
// stdout carries only the report.
func initializeSystem(cfg *store.Config) error {
	if err := logger.InitWithConfig(logger.LogConfig{
		Level:           cfg.Log.Level,
		Format:          cfg.Log.Format,
		DetailedLogging: cfg.Log.Detailed,
		Output:          os.Stderr,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(cfg.Log.Tracing, version, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

func shutdownSystem(ctx context.Context) {
	_ = trace.Shutdown(ctx)
	logger.Sync()
}

// initializeBroker returns the Alpaca broker when credentials are present,
// otherwise the paper account. The bool reports whether it is the paper one.
func initializeBroker(ctx context.Context, cfg *store.Config) (interfaces.Broker, bool) {
	var brk interfaces.Broker
	simulated := !cfg.BrokerConfigured()
	if simulated {
		logger.Warn(ctx, "No brokerage credentials - using paper account", "cash", cfg.Broker.PaperCash)
		brk = paper.New(decimal.NewFromFloat(cfg.Broker.PaperCash))
	} else {
		brk = alpaca.New(alpaca.Params{
			APIKey:  cfg.Broker.APIKey,
			Secret:  cfg.Broker.Secret,
			BaseURL: cfg.Broker.BaseURL,
		})
	}

	if !cfg.OrdersEnabled() {
		logger.Warn(ctx, "Running in DRY_RUN mode - orders will be simulated")
	}

	return brokerobs.Wrap(brk), simulated
}

// initializeFetcher builds the price fetcher on the file cache. Alpha
// Vantage without a key leaves the fetcher cache-only.
func initializeFetcher(ctx context.Context, cfg *store.Config) interfaces.QuoteFetcher {
	var provider interfaces.PriceProvider
	switch cfg.Quote.Provider {
	case "YAHOO":
		provider = yahoo.New(cfg.Quote.Timeout)
	default:
		if cfg.Quote.APIKey != "" {
			provider = alphavantage.New(cfg.Quote.APIKey, cfg.Quote.BaseURL, cfg.Quote.Timeout, cfg.Quote.RequestsPerMinute)
		} else {
			logger.Warn(ctx, "PRICE_PROVIDER_API_KEY not set - quotes come from the cache only")
		}
	}

	f := quote.NewFetcher(provider, cache.New(cfg.Cache.Path), quote.Options{
		MaxRetries:  cfg.Quote.MaxRetries,
		BackoffBase: cfg.Quote.BackoffBase,
		Timeout:     cfg.Quote.Timeout,
	})
	return quoteobs.Wrap(f)
}

// initializePolicy initializes the decision policy with observability
func initializePolicy(ctx context.Context, cfg *store.Config) (interfaces.DecisionPolicy, error) {
	var policy interfaces.DecisionPolicy
	var err error

	switch cfg.Policy.Provider {
	case "GEMINI":
		policy, err = gemini.New(gemini.Params{
			APIKey:    cfg.PolicyAPIKey(),
			Model:     cfg.Policy.Model,
			Endpoint:  cfg.Policy.Endpoint,
			System:    cfg.Policy.System,
			MaxTokens: cfg.Policy.MaxTokens,
		})
	case "CLAUDE":
		policy, err = claude.NewClaudePolicy(claude.Params{
			APIKey:      cfg.PolicyAPIKey(),
			Model:       cfg.Policy.Model,
			Endpoint:    cfg.Policy.Endpoint,
			System:      cfg.Policy.System,
			MaxTokens:   cfg.Policy.MaxTokens,
			Temperature: cfg.Policy.Temperature,
		})
	case "OPENAI":
		policy, err = openai.NewOpenAIPolicy(ctx, openai.Params{
			APIKey:    cfg.PolicyAPIKey(),
			Model:     cfg.Policy.Model,
			BaseURL:   cfg.Policy.Endpoint,
			System:    cfg.Policy.System,
			MaxTokens: cfg.Policy.MaxTokens,
		})
	case "DEEPSEEK":
		policy, err = openai.NewDeepSeekPolicy(ctx, openai.Params{
			APIKey:    cfg.PolicyAPIKey(),
			Model:     cfg.Policy.Model,
			System:    cfg.Policy.System,
			MaxTokens: cfg.Policy.MaxTokens,
		})
	case "STATIC":
		policy = static.New(cfg.Policy.Static)
	default:
		policy = noop.NewNoopPolicy()
		logger.Warn(ctx, "No decision policy configured - using Noop policy (always hold)")
	}
	if err != nil {
		return nil, fmt.Errorf("policy %s: %w", cfg.Policy.Provider, err)
	}

	return llmobs.Wrap(policy), nil
}

// initializeJournal opens the trade journal and compresses old files.
// It returns nil when the journal is disabled.
func initializeJournal(ctx context.Context, cfg *store.Config) *tradelog.Log {
	if !cfg.TradeLog.Enabled {
		return nil
	}
	j := tradelog.New(cfg.TradeLog.Dir)
	if n, err := j.CompressOlder(cfg.TradeLog.RetentionDays); err != nil {
		logger.Warn(ctx, "Failed to compress old logs", "error", err.Error())
	} else if n > 0 {
		logger.Info(ctx, "Compressed old trade logs", "files", n)
	}
	return j
}

// components is everything a run needs, built once per invocation.
type components struct {
	fetcher   interfaces.QuoteFetcher
	portfolio interfaces.PortfolioReader
	pipeline  interfaces.Pipeline
}

// initializePortfolio builds the aggregator over the configured broker.
func initializePortfolio(ctx context.Context, cfg *store.Config) (interfaces.Broker, interfaces.PortfolioReader) {
	brk, paperAccount := initializeBroker(ctx, cfg)
	return brk, portfolio.New(brk, paperAccount)
}

// initializeEngine wires every component into the pipeline.
func initializeEngine(ctx context.Context, cfg *store.Config) (*components, error) {
	brk, reader := initializePortfolio(ctx, cfg)
	fetcher := initializeFetcher(ctx, cfg)

	policy, err := initializePolicy(ctx, cfg)
	if err != nil {
		return nil, err
	}

	deps := engine.Deps{
		Fetcher:   fetcher,
		Portfolio: reader,
		Policy:    policy,
	}
	journal := initializeJournal(ctx, cfg)
	if journal != nil {
		deps.Journal = journal
		deps.Executor = engine.NewOrderExecutor(brk, cfg.OrdersEnabled(), journal)
	} else {
		deps.Executor = engine.NewOrderExecutor(brk, cfg.OrdersEnabled(), nil)
	}
	if cfg.News.Enabled {
		deps.Headlines = news.NewService(news.ServiceConfig{
			MaxHeadlines:  cfg.News.MaxHeadlines,
			CacheDuration: cfg.News.CacheTTL,
			Timeout:       cfg.News.Timeout,
			BaseURL:       cfg.News.BaseURL,
		})
	}

	return &components{
		fetcher:   fetcher,
		portfolio: reader,
		pipeline:  engineobs.Wrap(engine.New(cfg, deps)),
	}, nil
}
