package config

import (
	"time"

	"github.com/LouYuanbo1/catalogsync/internal/logger"
)

type Config struct {
	App struct {
		Name        string `mapstructure:"name" json:"name"`
		Environment string `mapstructure:"environment" json:"environment"`
	} `mapstructure:"app" json:"app"`

	Logger logger.Config `mapstructure:"logger" json:"logger"`

	Server struct {
		Address      string `mapstructure:"address" json:"address"`
		CronSchedule string `mapstructure:"cron_schedule" json:"cron_schedule"`
	} `mapstructure:"server" json:"server"`

	Crawl CrawlConfig `mapstructure:"crawl" json:"crawl"`

	Browser BrowserConfig `mapstructure:"browser" json:"browser"`

	Store struct {
		// elasticsearch, postgres or memory
		Backend        string        `mapstructure:"backend" json:"backend"`
		MaxRetries     uint64        `mapstructure:"max_retries" json:"max_retries"`
		RetryBackoff   time.Duration `mapstructure:"retry_backoff" json:"retry_backoff"`
		RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout"`
	} `mapstructure:"store" json:"store"`

	Elasticsearch struct {
		Username string `mapstructure:"username" json:"username"`
		Password string `mapstructure:"password" json:"password"`
		Address  string `mapstructure:"address" json:"address"`
		Index    string `mapstructure:"index" json:"index"`
	} `mapstructure:"elasticsearch" json:"elasticsearch"`

	Postgres struct {
		Host     string `mapstructure:"host" json:"host"`
		Port     string `mapstructure:"port" json:"port"`
		User     string `mapstructure:"user" json:"user"`
		Password string `mapstructure:"password" json:"password"`
		DBName   string `mapstructure:"dbname" json:"dbname"`
		SSLMode  string `mapstructure:"sslmode" json:"sslmode"`
	} `mapstructure:"postgres" json:"postgres"`

	Embedder struct {
		Enabled   bool   `mapstructure:"enabled" json:"enabled"`
		Host      string `mapstructure:"host" json:"host"`
		Port      int    `mapstructure:"port" json:"port"`
		Model     string `mapstructure:"model" json:"model"`
		BatchSize int    `mapstructure:"batch_size" json:"batch_size"`
	} `mapstructure:"embedder" json:"embedder"`

	LLM struct {
		Enabled bool   `mapstructure:"enabled" json:"enabled"`
		Host    string `mapstructure:"host" json:"host"`
		Port    int    `mapstructure:"port" json:"port"`
		Model   string `mapstructure:"model" json:"model"`
	} `mapstructure:"llm" json:"llm"`
}

// CrawlConfig drives the crawl driver: what to visit and how patiently.
type CrawlConfig struct {
	BaseURL                  string   `mapstructure:"base_url" json:"base_url"`
	SeedCollections          []string `mapstructure:"seed_collections" json:"seed_collections"`
	CollectionLinkPattern    string   `mapstructure:"collection_link_pattern" json:"collection_link_pattern"`
	ProductLinkPattern       string   `mapstructure:"product_link_pattern" json:"product_link_pattern"`
	ProductGridSelector      string   `mapstructure:"product_grid_selector" json:"product_grid_selector"`
	VariantSelector          string   `mapstructure:"variant_selector" json:"variant_selector"`
	ExpandSelectors          []string `mapstructure:"expand_selectors" json:"expand_selectors"`
	MaxCollections           int      `mapstructure:"max_collections" json:"max_collections"`
	MaxProductsPerCollection int      `mapstructure:"max_products_per_collection" json:"max_products_per_collection"`

	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" json:"navigation_timeout"`
	NavigationRetries uint64        `mapstructure:"navigation_retries" json:"navigation_retries"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff" json:"retry_backoff"`
	RetryBackoffMax   time.Duration `mapstructure:"retry_backoff_max" json:"retry_backoff_max"`

	Delay struct {
		Min time.Duration `mapstructure:"min" json:"min"`
		Max time.Duration `mapstructure:"max" json:"max"`
	} `mapstructure:"delay" json:"delay"`

	Stability struct {
		QuietWindow      time.Duration `mapstructure:"quiet_window" json:"quiet_window"`
		MaxNetworkWait   time.Duration `mapstructure:"max_network_wait" json:"max_network_wait"`
		MaxIndicatorWait time.Duration `mapstructure:"max_indicator_wait" json:"max_indicator_wait"`
		LoadingSelectors []string      `mapstructure:"loading_selectors" json:"loading_selectors"`
	} `mapstructure:"stability" json:"stability"`

	Human struct {
		MouseMoves     int           `mapstructure:"mouse_moves" json:"mouse_moves"`
		ScrollStepMin  int           `mapstructure:"scroll_step_min" json:"scroll_step_min"`
		ScrollStepMax  int           `mapstructure:"scroll_step_max" json:"scroll_step_max"`
		ScrollPauseMin time.Duration `mapstructure:"scroll_pause_min" json:"scroll_pause_min"`
		ScrollPauseMax time.Duration `mapstructure:"scroll_pause_max" json:"scroll_pause_max"`
		MaxScrollSteps int           `mapstructure:"max_scroll_steps" json:"max_scroll_steps"`
	} `mapstructure:"human" json:"human"`

	Sitemap struct {
		Enabled   bool   `mapstructure:"enabled" json:"enabled"`
		URL       string `mapstructure:"url" json:"url"`
		UserAgent string `mapstructure:"user_agent" json:"user_agent"`
	} `mapstructure:"sitemap" json:"sitemap"`
}

// BrowserConfig is shared by the rod and chromedp backends.
type BrowserConfig struct {
	// rod or chromedp
	Driver               string `mapstructure:"driver" json:"driver"`
	Bin                  string `mapstructure:"bin" json:"bin"`
	UserDataDir          string `mapstructure:"user_data_dir" json:"user_data_dir"`
	UserMode             bool   `mapstructure:"user_mode" json:"user_mode"`
	Headless             bool   `mapstructure:"headless" json:"headless"`
	Stealth              bool   `mapstructure:"stealth" json:"stealth"`
	DisableBlinkFeatures string `mapstructure:"disable_blink_features" json:"disable_blink_features"`
	Incognito            bool   `mapstructure:"incognito" json:"incognito"`
	DisableDevShmUsage   bool   `mapstructure:"disable_dev_shm_usage" json:"disable_dev_shm_usage"`
	NoSandbox            bool   `mapstructure:"no_sandbox" json:"no_sandbox"`
	UserAgent            string `mapstructure:"user_agent" json:"user_agent"`
	Leakless             bool   `mapstructure:"leakless" json:"leakless"`
	ViewportWidth        int    `mapstructure:"viewport_width" json:"viewport_width"`
	ViewportHeight       int    `mapstructure:"viewport_height" json:"viewport_height"`
}
