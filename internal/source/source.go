package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitemirror/internal/pipeline"
)

// ErrExhausted is returned by Next once every submission has been consumed.
var ErrExhausted = errors.New("task source exhausted")

const responseKey = "sitemirror.response"

// Config controls fetching and politeness.
type Config struct {
	AllowedDomains []string
	UserAgent      string
	RespectRobots  bool
	RequestTimeout time.Duration
	// DelayMin and DelayMax bound the random per-domain pause between requests.
	DelayMin time.Duration
	DelayMax time.Duration
}

// Page is a fetched response paired with the state it was submitted with.
type Page struct {
	Response pipeline.Response
	State    pipeline.CrawlState
}

// Source is a FIFO task source backed by a synchronous colly collector.
// It is not safe for concurrent use.
type Source struct {
	collector *colly.Collector
	allow     *domainAllowlist
	robots    RobotsPolicy
	visited   visitSet
	pending   []pipeline.Task
	logger    *zap.Logger
}

// New builds a Source for one scraper definition.
func New(cfg Config, logger *zap.Logger) (*Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DelayMax < cfg.DelayMin {
		return nil, fmt.Errorf("delay max %s is below delay min %s", cfg.DelayMax, cfg.DelayMin)
	}

	opts := []colly.CollectorOption{
		colly.Async(false),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.UserAgent))
	}
	c := colly.NewCollector(opts...)
	c.AllowURLRevisit = false
	// robots.txt is checked by RobotsPolicy before the request is issued.
	c.IgnoreRobotsTxt = true
	if cfg.RequestTimeout > 0 {
		c.SetRequestTimeout(cfg.RequestTimeout)
	}

	allow := newDomainAllowlist(cfg.AllowedDomains)
	for _, glob := range allow.globs() {
		if err := c.Limit(&colly.LimitRule{
			DomainGlob:  glob,
			Parallelism: 1,
			Delay:       cfg.DelayMin,
			RandomDelay: cfg.DelayMax - cfg.DelayMin,
		}); err != nil {
			return nil, fmt.Errorf("set limit for %s: %w", glob, err)
		}
	}

	c.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(responseKey, r)
	})

	return &Source{
		collector: c,
		allow:     allow,
		robots:    NewRobotsEnforcer(cfg.RespectRobots, cfg.UserAgent, cfg.RequestTimeout, logger),
		visited:   visitSet{},
		logger:    logger,
	}, nil
}

// Visit submits a crawl task. Tasks outside the allow-list, with a
// non-HTTP scheme, or whose URL was already submitted are dropped.
func (s *Source) Visit(task pipeline.Task) {
	if task.URL == nil {
		s.logger.Warn("dropping task without url", zap.String("dest", task.State.Dest))
		return
	}
	if task.URL.Scheme != "http" && task.URL.Scheme != "https" {
		s.logger.Warn("dropping non-http url", zap.Stringer("url", task.URL))
		return
	}
	if !s.allow.Allows(task.URL.Hostname()) {
		s.logger.Debug("dropping url outside allowed domains", zap.Stringer("url", task.URL))
		return
	}
	if !s.visited.add(task.URL) {
		s.logger.Debug("dropping already submitted url", zap.Stringer("url", task.URL))
		return
	}
	s.pending = append(s.pending, task)
}

// Next fetches submissions in FIFO order until one yields a page. Pages
// blocked by robots.txt or failing to fetch are logged and skipped.
func (s *Source) Next(ctx context.Context) (Page, error) {
	for len(s.pending) > 0 {
		if err := ctx.Err(); err != nil {
			return Page{}, fmt.Errorf("next page: %w", err)
		}
		task := s.pending[0]
		s.pending[0] = pipeline.Task{}
		s.pending = s.pending[1:]

		target := *task.URL
		target.Fragment = ""
		target.RawFragment = ""
		if !s.robots.Allowed(ctx, target.String()) {
			s.logger.Info("blocked by robots.txt", zap.Stringer("url", &target))
			continue
		}

		resp, err := s.fetch(target.String())
		if err != nil {
			s.logger.Warn("fetch failed", zap.Stringer("url", &target), zap.String("dest", task.State.Dest), zap.Error(err))
			continue
		}
		return Page{Response: resp, State: task.State}, nil
	}
	return Page{}, ErrExhausted
}

func (s *Source) fetch(rawURL string) (pipeline.Response, error) {
	ctx := colly.NewContext()
	if err := s.collector.Request(http.MethodGet, rawURL, nil, ctx, nil); err != nil {
		return pipeline.Response{}, fmt.Errorf("colly request: %w", err)
	}
	r, ok := ctx.GetAny(responseKey).(*colly.Response)
	if !ok || r == nil {
		return pipeline.Response{}, errors.New("colly fetch produced no response")
	}
	final := r.Request.URL
	if final == nil {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return pipeline.Response{}, fmt.Errorf("parse url: %w", err)
		}
		final = parsed
	}
	return pipeline.Response{URL: final, Body: string(r.Body)}, nil
}
