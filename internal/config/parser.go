package config

import (
	"bytes"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CATALOGSYNC_CRAWL_BASE_URL.
const EnvPrefix = "CATALOGSYNC"

// ParseConfig reads the embedded JSON config, applies environment overrides,
// fills defaults and validates the result.
func ParseConfig(byteConfig []byte) (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadConfig(bytes.NewReader(byteConfig)); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.applyDefaults()

	if cfg.Browser.UserDataDir != "" {
		absPath, err := filepath.Abs(cfg.Browser.UserDataDir)
		if err != nil {
			return nil, err
		}
		cfg.Browser.UserDataDir = absPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "catalogsync"
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.Store.RetryBackoff == 0 {
		c.Store.RetryBackoff = 500 * time.Millisecond
	}
	if c.Store.RequestTimeout == 0 {
		c.Store.RequestTimeout = 20 * time.Second
	}
	if c.Elasticsearch.Index == "" {
		c.Elasticsearch.Index = "catalog_entries"
	}
	if c.Browser.Driver == "" {
		c.Browser.Driver = "rod"
	}
	if c.Browser.ViewportWidth == 0 {
		c.Browser.ViewportWidth = 1366
	}
	if c.Browser.ViewportHeight == 0 {
		c.Browser.ViewportHeight = 768
	}
	if c.Embedder.BatchSize == 0 {
		c.Embedder.BatchSize = 16
	}

	cr := &c.Crawl
	if cr.NavigationTimeout == 0 {
		cr.NavigationTimeout = 90 * time.Second
	}
	if cr.RetryBackoff == 0 {
		cr.RetryBackoff = 2 * time.Second
	}
	if cr.RetryBackoffMax == 0 {
		cr.RetryBackoffMax = 30 * time.Second
	}
	if cr.Delay.Min == 0 && cr.Delay.Max == 0 {
		cr.Delay.Min, cr.Delay.Max = 2*time.Second, 5*time.Second
	}
	if cr.Stability.QuietWindow == 0 {
		cr.Stability.QuietWindow = 500 * time.Millisecond
	}
	if cr.Stability.MaxNetworkWait == 0 {
		cr.Stability.MaxNetworkWait = 15 * time.Second
	}
	if cr.Stability.MaxIndicatorWait == 0 {
		cr.Stability.MaxIndicatorWait = 5 * time.Second
	}
	if cr.Human.MouseMoves < 2 {
		cr.Human.MouseMoves = 2
	}
	if cr.Human.ScrollStepMin == 0 {
		cr.Human.ScrollStepMin = 200
	}
	if cr.Human.ScrollStepMax == 0 {
		cr.Human.ScrollStepMax = 600
	}
	if cr.Human.ScrollPauseMin == 0 && cr.Human.ScrollPauseMax == 0 {
		cr.Human.ScrollPauseMin, cr.Human.ScrollPauseMax = 150*time.Millisecond, 600*time.Millisecond
	}
	if cr.Human.MaxScrollSteps == 0 {
		cr.Human.MaxScrollSteps = 60
	}
}

// Validate checks that the configuration is coherent.
func (c *Config) Validate() error {
	cr := c.Crawl
	if cr.BaseURL == "" {
		return fmt.Errorf("crawl.base_url cannot be empty")
	}
	parsed, err := url.Parse(cr.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid crawl.base_url: %w", err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("crawl.base_url must include a host")
	}
	for name, pattern := range map[string]string{
		"crawl.collection_link_pattern": cr.CollectionLinkPattern,
		"crawl.product_link_pattern":    cr.ProductLinkPattern,
	} {
		if pattern == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if cr.NavigationTimeout < 0 || cr.RetryBackoff < 0 || cr.RetryBackoffMax < 0 {
		return fmt.Errorf("crawl timeouts cannot be negative")
	}
	if cr.RetryBackoffMax > 0 && cr.RetryBackoff > cr.RetryBackoffMax {
		return fmt.Errorf("crawl.retry_backoff (%s) cannot exceed crawl.retry_backoff_max (%s)", cr.RetryBackoff, cr.RetryBackoffMax)
	}
	if cr.Delay.Min < 0 || cr.Delay.Min > cr.Delay.Max {
		return fmt.Errorf("crawl.delay must satisfy 0 <= min <= max, got %s..%s", cr.Delay.Min, cr.Delay.Max)
	}
	if cr.Human.ScrollStepMin <= 0 || cr.Human.ScrollStepMin > cr.Human.ScrollStepMax {
		return fmt.Errorf("crawl.human scroll step must satisfy 0 < min <= max")
	}
	if cr.Human.ScrollPauseMin < 0 || cr.Human.ScrollPauseMin > cr.Human.ScrollPauseMax {
		return fmt.Errorf("crawl.human scroll pause must satisfy 0 <= min <= max")
	}
	if cr.MaxCollections < 0 || cr.MaxProductsPerCollection < 0 {
		return fmt.Errorf("crawl limits cannot be negative")
	}
	if cr.Sitemap.Enabled && cr.Sitemap.URL == "" {
		return fmt.Errorf("crawl.sitemap.url is required when the sitemap is enabled")
	}

	switch c.Browser.Driver {
	case "rod", "chromedp":
	default:
		return fmt.Errorf("browser.driver must be rod or chromedp, got %q", c.Browser.Driver)
	}
	switch c.Store.Backend {
	case "elasticsearch":
		if c.Elasticsearch.Address == "" {
			return fmt.Errorf("elasticsearch.address is required for the elasticsearch backend")
		}
	case "postgres":
		if c.Postgres.Host == "" || c.Postgres.DBName == "" {
			return fmt.Errorf("postgres.host and postgres.dbname are required for the postgres backend")
		}
	case "memory":
	default:
		return fmt.Errorf("store.backend must be elasticsearch, postgres or memory, got %q", c.Store.Backend)
	}
	return nil
}
