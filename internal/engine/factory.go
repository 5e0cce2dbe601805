package engine

import (
	"tradeloop/internal/interfaces"
	"tradeloop/internal/store"
)

// New builds the pipeline with the concurrency and timeouts from cfg.
func New(cfg *store.Config, d Deps) interfaces.Pipeline {
	return newEngine(d, Options{
		MaxConcurrency: cfg.Pipeline.MaxConcurrency,
		PolicyTimeout:  cfg.Policy.Timeout,
		Deadline:       cfg.Pipeline.Deadline,
		Model:          cfg.Policy.Model,
	})
}
