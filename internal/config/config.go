// Package config loads and validates scraper configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/sitemirror/internal/pipeline"
)

// Config captures every knob of a run.
type Config struct {
	Scrapers []ScraperDefinition
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Download DownloadConfig `mapstructure:"download"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ScraperDefinition is one destination root with its seeds, allowed domains
// and step pipeline. It is not modified after Load.
type ScraperDefinition struct {
	Dest            string
	URLs            []*url.URL
	DomainWhitelist []string
	Steps           []pipeline.Step
}

// CrawlerConfig governs page fetching and politeness.
type CrawlerConfig struct {
	UserAgent      string        `mapstructure:"user_agent"`
	RespectRobots  bool          `mapstructure:"respect_robots"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	DelayMin       time.Duration `mapstructure:"delay_min"`
	DelayMax       time.Duration `mapstructure:"delay_max"`
}

// DownloadConfig controls the resource download executor.
type DownloadConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Pacing  time.Duration `mapstructure:"pacing"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// rawScraper mirrors one entry of the scrapers list before steps and URLs
// are parsed.
type rawScraper struct {
	Dest            string              `mapstructure:"dest"`
	URLs            []string            `mapstructure:"urls"`
	DomainWhitelist []string            `mapstructure:"domain_whitelist"`
	Steps           []map[string]string `mapstructure:"steps"`
}

type rawConfig struct {
	Scrapers []rawScraper   `mapstructure:"scrapers"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Download DownloadConfig `mapstructure:"download"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is required")
	}

	v := viper.New()
	v.SetEnvPrefix("SITEMIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg, err := raw.build()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.user_agent", "sitemirror/1.0")
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.request_timeout", 30*time.Second)
	v.SetDefault("crawler.delay_min", 2*time.Second)
	v.SetDefault("crawler.delay_max", 5*time.Second)
	v.SetDefault("download.timeout", 5*time.Second)
	v.SetDefault("download.pacing", 5*time.Second)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
}

func (r rawConfig) build() (Config, error) {
	cfg := Config{
		Crawler:  r.Crawler,
		Download: r.Download,
		Logging:  r.Logging,
	}
	for i, rs := range r.Scrapers {
		def, err := rs.build()
		if err != nil {
			return Config{}, fmt.Errorf("scrapers[%d]: %w", i, err)
		}
		cfg.Scrapers = append(cfg.Scrapers, def)
	}
	return cfg, nil
}

func (r rawScraper) build() (ScraperDefinition, error) {
	def := ScraperDefinition{
		DomainWhitelist: r.DomainWhitelist,
	}
	if strings.TrimSpace(r.Dest) != "" {
		def.Dest = filepath.Clean(r.Dest)
	}
	for _, raw := range r.URLs {
		u, err := parseSeed(raw)
		if err != nil {
			return ScraperDefinition{}, err
		}
		def.URLs = append(def.URLs, u)
	}
	for i, entry := range r.Steps {
		step, err := parseStep(entry)
		if err != nil {
			return ScraperDefinition{}, fmt.Errorf("steps[%d]: %w", i, err)
		}
		def.Steps = append(def.Steps, step)
	}
	return def, nil
}

func parseSeed(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("url %q must be absolute http or https", raw)
	}
	return u, nil
}

// parseStep decodes a single-key mapping such as {ExtractHrefsFromHTML: "a"}.
// Viper lower-cases mapping keys, so keys are matched case-insensitively.
func parseStep(entry map[string]string) (pipeline.Step, error) {
	if len(entry) != 1 {
		return pipeline.Step{}, fmt.Errorf("step must have exactly one key, got %d", len(entry))
	}
	var key, sel string
	for k, v := range entry {
		key, sel = k, v
	}
	kind, err := pipeline.ParseStepKind(canonicalStepKey(key))
	if err != nil {
		return pipeline.Step{}, err
	}
	return pipeline.NewStep(kind, sel)
}

func canonicalStepKey(key string) string {
	for _, known := range []string{pipeline.ExtractLinksKey, pipeline.DownloadResourceKey} {
		if strings.EqualFold(key, known) {
			return known
		}
	}
	return key
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if len(c.Scrapers) == 0 {
		return fmt.Errorf("scrapers must list at least one definition")
	}
	for i, def := range c.Scrapers {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("scrapers[%d]: %w", i, err)
		}
	}
	if c.Crawler.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	if c.Crawler.DelayMin < 0 || c.Crawler.DelayMax < 0 {
		return fmt.Errorf("crawler.delay_min and crawler.delay_max must be >= 0")
	}
	if c.Crawler.DelayMin > c.Crawler.DelayMax {
		return fmt.Errorf("crawler.delay_min must be <= crawler.delay_max")
	}
	if c.Download.Timeout <= 0 {
		return fmt.Errorf("download.timeout must be > 0")
	}
	if c.Download.Pacing < 0 {
		return fmt.Errorf("download.pacing must be >= 0")
	}
	return nil
}

// Validate checks a single definition.
func (d ScraperDefinition) Validate() error {
	if d.Dest == "" {
		return fmt.Errorf("dest is required")
	}
	if len(d.URLs) == 0 {
		return fmt.Errorf("urls must list at least one seed")
	}
	if len(d.DomainWhitelist) == 0 {
		return fmt.Errorf("domain_whitelist must list at least one domain")
	}
	for _, domain := range d.DomainWhitelist {
		if strings.TrimSpace(domain) == "" {
			return fmt.Errorf("domain_whitelist entries must not be empty")
		}
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("steps must list at least one step")
	}
	return nil
}
