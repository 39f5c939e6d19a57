package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitemirror/internal/config"
	"github.com/JakeFAU/sitemirror/internal/download"
	"github.com/JakeFAU/sitemirror/internal/logging"
	"github.com/JakeFAU/sitemirror/internal/metrics"
	"github.com/JakeFAU/sitemirror/internal/pipeline"
	"github.com/JakeFAU/sitemirror/internal/scrape"
	"github.com/JakeFAU/sitemirror/internal/selector"
)

const shutdownTimeout = 5 * time.Second

type rootOptions struct {
	devLogs     bool
	metricsAddr string
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var opts rootOptions
	cmd := &cobra.Command{
		Use:   "sitemirror <config.yaml>",
		Short: "Mirror a site's link hierarchy and resources onto the filesystem.",
		Long: `sitemirror walks each configured site according to its list of steps,
creating one directory per followed link and downloading the selected
resources into the deepest directories. Existing files and directories are
skipped, so an interrupted run can simply be started again.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args[0])
		},
	}
	cmd.Flags().BoolVar(&opts.devLogs, "dev-logs", false, "use human-readable development logging")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address during the run")
	return cmd
}

func run(ctx context.Context, opts rootOptions, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(opts.devLogs || cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() //nolint:errcheck // best-effort flush
	}()
	zap.ReplaceGlobals(logger)

	if opts.metricsAddr != "" {
		srv, err := metrics.Start(opts.metricsAddr, logger.Named("metrics"))
		if err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		logger.Info("metrics server listening", zap.String("addr", srv.Addr()))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown failed", zap.Error(err))
			}
		}()
	}

	engine := pipeline.NewEngine(selector.NewParser(), pipeline.OSFileSystem{}, logger.Named("pipeline"))
	executor := download.New(download.Config{
		Timeout:   cfg.Download.Timeout,
		Pacing:    cfg.Download.Pacing,
		UserAgent: cfg.Crawler.UserAgent,
	}, logger.Named("download"))
	runner := scrape.NewRunner(engine, executor, scrape.CollySources(cfg.Crawler, logger.Named("source")), logger.Named("scrape"))

	if _, err := runner.Run(ctx, cfg.Scrapers); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("run interrupted", zap.Error(err))
		} else {
			logger.Error("run aborted", zap.Error(err))
		}
		return err
	}
	return nil
}

// Execute is the main entry point. It exits non-zero when the run fails.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sitemirror: %v\n", err)
		os.Exit(1)
	}
}
