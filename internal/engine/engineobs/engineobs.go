package engineobs

import (
	"context"
	"time"

	"tradeloop/internal/interfaces"
	"tradeloop/internal/logger"
	"tradeloop/internal/trace"
	"tradeloop/internal/types"
)

type observablePipeline struct {
	pipeline interfaces.Pipeline
}

var _ interfaces.Pipeline = (*observablePipeline)(nil)

func Wrap(p interfaces.Pipeline) interfaces.Pipeline {
	return &observablePipeline{
		pipeline: p,
	}
}

func (op *observablePipeline) Run(ctx context.Context, symbols []string) (types.BatchReport, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Run")
	defer span.End()

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Starting trading run",
		"symbols", symbols,
		"count", len(symbols),
	)

	report, err := op.pipeline.Run(ctx, symbols)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Trading run failed", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return report, err
	}

	logger.InfoSkip(ctx, 1, "Trading run completed",
		"run_id", report.RunID,
		"buys", report.Summary.Buys,
		"sells", report.Summary.Sells,
		"holds", report.Summary.Holds,
		"errors", report.Summary.Errors,
		"simulated", report.Summary.Simulated,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return report, nil
}
