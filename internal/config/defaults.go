package config

import "time"

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Sites: []SiteConfig{},
		Storage: StorageConfig{
			Path: "lemmasearch.db",
		},
		Crawler: CrawlerConfig{
			UserAgent:         "LemmaSearchBot/1.0",
			Referrer:          "http://www.google.com",
			Workers:           10,
			MinDelay:          150 * time.Millisecond,
			MaxDelay:          450 * time.Millisecond,
			RequestTimeout:    30 * time.Second,
			MaxBodyBytes:      10 << 20,
			Retries:           2,
			RespectRobots:     true,
			RenderJavaScript:  false,
			RequestsPerSecond: 0,
			AwaitCeiling:      24 * time.Hour,
		},
		Search: SearchConfig{
			MaxLemmaFrequency: 250,
			MaxResults:        500,
			DefaultLimit:      20,
		},
		Lemmatizer: LemmatizerConfig{
			Excluded: []string{"article", "conjunction", "preposition", "particle", "interjection"},
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}
