package models

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration, loaded once at startup and
// immutable afterwards.
type Config struct {
	Scraper  ScraperConfig  `yaml:"scraper"`
	Matcher  MatcherConfig  `yaml:"matcher"`
	Storage  StorageConfig  `yaml:"storage"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// ScraperConfig controls catalog discovery and item fetching.
type ScraperConfig struct {
	BaseURL    string `yaml:"base_url"`
	MaxPages   int    `yaml:"max_pages"`
	BatchSize  int    `yaml:"batch_size"`
	DelayMinMS int    `yaml:"delay_min_ms"`
	DelayMaxMS int    `yaml:"delay_max_ms"`
}

// MatcherConfig controls query scoring.
type MatcherConfig struct {
	Threshold  float64 `yaml:"threshold"`
	ScorerURL  string  `yaml:"scorer_url"`
	TimeoutSec int     `yaml:"timeout_sec"`
}

// StorageConfig names the durable files the pipeline owns.
type StorageConfig struct {
	DataDir     string `yaml:"data_dir"`
	SeenFile    string `yaml:"seen_file"`
	QueriesFile string `yaml:"queries_file"`
	HistoryDB   string `yaml:"history_db"`
}

// SMTPConfig configures the alert mail dispatcher.
type SMTPConfig struct {
	Host          string   `yaml:"host"`
	Port          int      `yaml:"port"`
	User          string   `yaml:"user"`
	Password      string   `yaml:"password"`
	From          string   `yaml:"from"`
	To            []string `yaml:"to"`
	RecipientName string   `yaml:"recipient_name"`
	UseTLS        bool     `yaml:"use_tls"`
}

// ScheduleConfig configures the watch command's cron trigger.
type ScheduleConfig struct {
	Cron     string `yaml:"cron"`
	Timezone string `yaml:"timezone"`
}

// LoadConfig reads and validates a YAML config file, applying defaults
// for optional fields.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Scraper.MaxPages == 0 {
		c.Scraper.MaxPages = 1
	}
	if c.Scraper.BatchSize == 0 {
		c.Scraper.BatchSize = 10
	}
	if c.Matcher.Threshold == 0 {
		c.Matcher.Threshold = 0.5
	}
	if c.Matcher.TimeoutSec == 0 {
		c.Matcher.TimeoutSec = 30
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Storage.SeenFile == "" {
		c.Storage.SeenFile = filepath.Join(c.Storage.DataDir, "sent.json")
	}
	if c.Storage.QueriesFile == "" {
		c.Storage.QueriesFile = filepath.Join(c.Storage.DataDir, "queries.json")
	}
	if c.Storage.HistoryDB == "" {
		c.Storage.HistoryDB = filepath.Join(c.Storage.DataDir, "carwatch.db")
	}
	if c.Schedule.Cron == "" {
		c.Schedule.Cron = "0 6 * * *"
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "Europe/Berlin"
	}
}

func (c *Config) validate() error {
	if c.Scraper.BaseURL == "" {
		return fmt.Errorf("config: scraper.base_url is required")
	}
	if c.Scraper.MaxPages < 1 {
		return fmt.Errorf("config: scraper.max_pages must be >= 1")
	}
	if c.Scraper.BatchSize < 1 {
		return fmt.Errorf("config: scraper.batch_size must be >= 1")
	}
	if c.Scraper.DelayMinMS < 0 || c.Scraper.DelayMaxMS < c.Scraper.DelayMinMS {
		return fmt.Errorf("config: scraper delay range is invalid")
	}
	if c.Matcher.Threshold < 0 || c.Matcher.Threshold > 1 {
		return fmt.Errorf("config: matcher.threshold must be in [0,1]")
	}
	return nil
}
