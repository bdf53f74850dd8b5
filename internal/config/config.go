package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deidaraiorek/lemmasearch/internal/morphology"
)

// Environment overrides, applied after the file. EnvConfig names the
// file itself when no path is given on the command line.
const (
	EnvConfig   = "LEMMASEARCH_CONFIG"
	EnvDB       = "LEMMASEARCH_DB"
	EnvAddr     = "LEMMASEARCH_ADDR"
	EnvLogLevel = "LEMMASEARCH_LOG_LEVEL"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Sites      []SiteConfig     `yaml:"sites"`
	Storage    StorageConfig    `yaml:"storage"`
	Crawler    CrawlerConfig    `yaml:"crawler"`
	Search     SearchConfig     `yaml:"search"`
	Lemmatizer LemmatizerConfig `yaml:"lemmatizer"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type SiteConfig struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type CrawlerConfig struct {
	UserAgent         string        `yaml:"user_agent"`
	Referrer          string        `yaml:"referrer"`
	Workers           int           `yaml:"workers"`
	MinDelay          time.Duration `yaml:"min_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes"`
	Retries           uint64        `yaml:"retries"`
	RespectRobots     bool          `yaml:"respect_robots"`
	RenderJavaScript  bool          `yaml:"render_javascript"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	AwaitCeiling      time.Duration `yaml:"await_ceiling"`
}

type SearchConfig struct {
	MaxLemmaFrequency int `yaml:"max_lemma_frequency"`
	MaxResults        int `yaml:"max_results"`
	DefaultLimit      int `yaml:"default_limit"`
}

type LemmatizerConfig struct {
	// Excluded lists the word categories dropped from the index, by name
	// ("conjunction") or tag ("CONJ").
	Excluded []string `yaml:"excluded"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads a YAML config file at path and merges it with defaults. An
// empty path yields the defaults. Environment overrides are applied and the
// result is validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDB); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the seeds and normalizes them: trailing slashes are
// removed and a missing name defaults to the host.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Sites))
	for i := range c.Sites {
		site := &c.Sites[i]

		raw := strings.TrimSpace(site.URL)
		if raw == "" {
			return fmt.Errorf("%w: site %d has no url", ErrInvalidConfig, i)
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: site url %q must be an absolute http(s) url", ErrInvalidConfig, raw)
		}

		site.URL = strings.TrimRight(raw, "/")
		if site.Name == "" {
			site.Name = u.Host
		}
		if seen[site.URL] {
			return fmt.Errorf("%w: site %s listed twice", ErrInvalidConfig, site.URL)
		}
		seen[site.URL] = true
	}

	if c.Storage.Path == "" {
		return fmt.Errorf("%w: storage.path is empty", ErrInvalidConfig)
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("%w: crawler.workers must be positive", ErrInvalidConfig)
	}
	if c.Crawler.MaxDelay < c.Crawler.MinDelay {
		return fmt.Errorf("%w: crawler.max_delay is below min_delay", ErrInvalidConfig)
	}
	if c.Search.MaxLemmaFrequency < 0 {
		return fmt.Errorf("%w: search.max_lemma_frequency is negative", ErrInvalidConfig)
	}

	_, err := c.Lemmatizer.ExcludedCategories()
	return err
}

func (l LemmatizerConfig) ExcludedCategories() ([]morphology.PartOfSpeech, error) {
	tags := make([]morphology.PartOfSpeech, 0, len(l.Excluded))
	for _, name := range l.Excluded {
		tag, ok := morphology.ParsePartOfSpeech(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("%w: unknown word category %q", ErrInvalidConfig, name)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}
