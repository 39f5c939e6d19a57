// Package scrape drives scraper definitions through the task source, the
// step pipeline and the download executor.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitemirror/internal/config"
	"github.com/JakeFAU/sitemirror/internal/download"
	"github.com/JakeFAU/sitemirror/internal/pipeline"
	"github.com/JakeFAU/sitemirror/internal/source"
)

// TaskSource accepts crawl submissions and yields fetched pages.
type TaskSource interface {
	Visit(task pipeline.Task)
	Next(ctx context.Context) (source.Page, error)
}

// SourceFactory builds a fresh TaskSource for one definition.
type SourceFactory func(def config.ScraperDefinition) (TaskSource, error)

// Advancer executes one pipeline step against a page.
type Advancer interface {
	Advance(state pipeline.CrawlState, resp pipeline.Response) (pipeline.Outcome, error)
}

// BatchExecutor fetches and writes a download batch.
type BatchExecutor interface {
	Execute(ctx context.Context, batch []pipeline.DownloadTask) (download.Summary, error)
}

// Report aggregates a run.
type Report struct {
	Definitions int
	Pages       int
	Submitted   int
	Downloads   download.Summary
}

// Runner processes scraper definitions strictly one after another.
type Runner struct {
	engine    Advancer
	executor  BatchExecutor
	newSource SourceFactory
	logger    *zap.Logger
}

// NewRunner wires a Runner.
func NewRunner(engine Advancer, executor BatchExecutor, newSource SourceFactory, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		engine:    engine,
		executor:  executor,
		newSource: newSource,
		logger:    logger,
	}
}

// Run processes defs in order. The first fatal error aborts the run and is
// returned together with the partial report.
func (r *Runner) Run(ctx context.Context, defs []config.ScraperDefinition) (Report, error) {
	var report Report
	start := time.Now()
	for _, def := range defs {
		r.logger.Info("processing scraper",
			zap.String("dest", def.Dest),
			zap.Int("seeds", len(def.URLs)),
			zap.Int("steps", len(def.Steps)),
		)
		if err := r.runDefinition(ctx, def, &report); err != nil {
			return report, fmt.Errorf("scraper %s: %w", def.Dest, err)
		}
		// Exhaustion can coincide with an interrupt delivered during the last pause.
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("scraper %s: %w", def.Dest, err)
		}
		report.Definitions++
	}
	r.logger.Info("run complete",
		zap.Int("definitions", report.Definitions),
		zap.Int("pages", report.Pages),
		zap.Int("submitted", report.Submitted),
		zap.Int("downloaded", report.Downloads.Downloaded),
		zap.Int("failed", report.Downloads.Failed),
		zap.Int("skipped", report.Downloads.Skipped),
		zap.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

func (r *Runner) runDefinition(ctx context.Context, def config.ScraperDefinition, report *Report) error {
	src, err := r.newSource(def)
	if err != nil {
		return fmt.Errorf("build task source: %w", err)
	}
	for _, seed := range def.URLs {
		src.Visit(pipeline.Task{
			URL:   seed,
			State: pipeline.CrawlState{Dest: def.Dest, Steps: def.Steps},
		})
	}

	for {
		page, err := src.Next(ctx)
		if errors.Is(err, source.ErrExhausted) {
			return nil
		}
		if err != nil {
			return err
		}
		report.Pages++

		outcome, err := r.engine.Advance(page.State, page.Response)
		if err != nil {
			return err
		}
		switch outcome.Kind {
		case pipeline.OutcomeNewTasks:
			for _, task := range outcome.Tasks {
				src.Visit(task)
			}
			report.Submitted += len(outcome.Tasks)
		case pipeline.OutcomeOutput:
			sum, err := r.executor.Execute(ctx, outcome.Batch)
			report.Downloads.Downloaded += sum.Downloaded
			report.Downloads.Failed += sum.Failed
			report.Downloads.Skipped += sum.Skipped
			if err != nil {
				return err
			}
		case pipeline.OutcomeTerminal:
		}
	}
}

// CollySources returns a SourceFactory building colly-backed sources that
// share the crawler settings and restrict each definition to its own
// domain whitelist.
func CollySources(cfg config.CrawlerConfig, logger *zap.Logger) SourceFactory {
	return func(def config.ScraperDefinition) (TaskSource, error) {
		return source.New(source.Config{
			AllowedDomains: def.DomainWhitelist,
			UserAgent:      cfg.UserAgent,
			RespectRobots:  cfg.RespectRobots,
			RequestTimeout: cfg.RequestTimeout,
			DelayMin:       cfg.DelayMin,
			DelayMax:       cfg.DelayMax,
		}, logger)
	}
}
