package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tradeloop/internal/logger"
	"tradeloop/internal/report"
	"tradeloop/internal/store"
	"tradeloop/internal/tradelog"
	"tradeloop/internal/types"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "trader",
		Short:        "tradeloop - research, decide, gate and execute trades for a batch of symbols",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", defaultConfigPath, "Configuration file path")

	root.AddCommand(newRunCmd())
	root.AddCommand(newQuoteCmd())
	root.AddCommand(newPortfolioCmd())
	root.AddCommand(newEODCmd())
	root.AddCommand(newVersionCmd())
	return root
}

type runFlags struct {
	live      bool
	model     string
	policy    string
	portfolio bool
	format    string
	csvPath   string
	deadline  time.Duration
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [SYMBOL...]",
		Short: "Run the trading loop for the given symbols",
		Long: `Run the trading loop once for each symbol: fetch a quote, read the portfolio,
ask the decision policy, apply the safety gate and execute. Orders are simulated
unless --live is set and brokerage credentials are configured. Without --live,
configured credentials are still used to read the real account and positions;
without credentials a paper account is used.
Example: trader run AAPL MSFT --policy=gemini --format=json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.format != "text" && f.format != "json" {
				return fmt.Errorf("--format must be text or json, got %q", f.format)
			}
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			applyRunFlags(cfg, f)
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			defer shutdownSystem(ctx)
			return runPipeline(ctx, cfg, args, f, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&f.live, "live", false, "Submit real orders to the brokerage")
	cmd.Flags().StringVar(&f.model, "model", "", "Model name passed to the decision policy")
	cmd.Flags().StringVar(&f.policy, "policy", "", "Decision policy: noop, static, gemini, claude, openai, deepseek")
	cmd.Flags().BoolVar(&f.portfolio, "portfolio", false, "Also research every currently held position")
	cmd.Flags().StringVar(&f.format, "format", "text", "Report format: text or json")
	cmd.Flags().StringVar(&f.csvPath, "csv", "", "Also write the report as CSV to this path")
	cmd.Flags().DurationVar(&f.deadline, "deadline", 0, "Abort symbols not started within this duration")
	return cmd
}

func applyRunFlags(cfg *store.Config, f runFlags) {
	if f.live {
		cfg.Mode = store.ModeLive
	}
	if f.policy != "" {
		cfg.SetPolicyProvider(f.policy)
	}
	if f.model != "" {
		cfg.Policy.Model = f.model
	}
	if f.deadline > 0 {
		cfg.Pipeline.Deadline = f.deadline
	}
}

// resolveSymbols uses args, then the configured universe, then AAPL, and
// appends held positions when asked. Duplicates are dropped.
func resolveSymbols(args, configured []string, held []types.Position) []string {
	base := args
	if len(base) == 0 {
		base = configured
	}
	if len(base) == 0 && len(held) == 0 {
		base = []string{"AAPL"}
	}
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	for _, s := range base {
		add(s)
	}
	for _, p := range held {
		add(p.Symbol)
	}
	return out
}

func runPipeline(ctx context.Context, cfg *store.Config, args []string, f runFlags, out io.Writer) error {
	comps, err := initializeEngine(ctx, cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to initialize engine", err)
		return err
	}

	var held []types.Position
	if f.portfolio {
		ov, err := comps.portfolio.GetOverview(ctx)
		if err != nil {
			logger.Warn(ctx, "Could not list positions for --portfolio", "error", err.Error())
		} else {
			held = ov.Positions
		}
	}
	symbols := resolveSymbols(args, cfg.Pipeline.Symbols, held)
	logger.Info(ctx, "Trading run configured",
		"mode", cfg.Mode,
		"policy", cfg.Policy.Provider,
		"model", cfg.Policy.Model,
		"symbols", symbols,
	)

	rep, err := comps.pipeline.Run(ctx, symbols)
	if err != nil {
		return err
	}

	if f.format == "json" {
		err = report.WriteJSON(out, rep)
	} else {
		err = report.WriteText(out, rep)
	}
	if err != nil {
		return err
	}

	if f.csvPath != "" {
		if err := writeCSVFile(f.csvPath, rep); err != nil {
			return err
		}
		logger.Info(ctx, "CSV report written", "path", f.csvPath)
	}
	return nil
}

func writeCSVFile(path string, rep types.BatchReport) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	if err := report.WriteCSV(fh, rep); err != nil {
		_ = fh.Close()
		return err
	}
	return fh.Close()
}

func newQuoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quote SYMBOL",
		Short: "Fetch one quote through the price fetcher and cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			defer shutdownSystem(ctx)

			q, err := initializeFetcher(ctx, cfg).Quote(ctx, strings.ToUpper(args[0]))
			if err != nil {
				return fmt.Errorf("%s: %w", types.KindOf(err), err)
			}
			return report.WriteQuote(cmd.OutOrStdout(), q)
		},
	}
}

func newPortfolioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio",
		Short: "Show the portfolio overview",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			defer shutdownSystem(ctx)

			_, reader := initializePortfolio(ctx, cfg)
			ov, err := reader.GetOverview(ctx)
			if err != nil {
				return fmt.Errorf("%s: %w", types.KindOf(err), err)
			}
			return report.WriteOverview(cmd.OutOrStdout(), ov)
		},
	}
}

func newEODCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eod [YYYY-MM-DD]",
		Short: "Summarize a day's journaled orders per symbol into CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day := time.Now()
			if len(args) == 1 {
				d, err := time.ParseInLocation(time.DateOnly, args[0], time.Local)
				if err != nil {
					return fmt.Errorf("invalid date %q: %w", args[0], err)
				}
				day = d
			}
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			defer shutdownSystem(ctx)

			p, err := tradelog.New(cfg.TradeLog.Dir).SummarizeDay(day)
			if err != nil {
				return err
			}
			if p == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "no orders journaled for %s\n", day.Format(time.DateOnly))
				return nil
			}
			logger.Info(ctx, "EOD summary written", "path", p)
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tradeloop %s\n", version)
		},
	}
}

// setup loads the configuration named by --config and initializes logging.
func setup(cmd *cobra.Command) (*store.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := initializeSystem(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
