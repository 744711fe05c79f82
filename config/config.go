package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Database        DatabaseConfig        `toml:"database"`
	Hosts           HostsConfig           `toml:"hosts"`
	Scraping        ScrapingConfig        `toml:"scraping"`
	Analysis        AnalysisConfig        `toml:"analysis"`
	Recommendations RecommendationsConfig `toml:"recommendations"`
	Scheduler       SchedulerConfig       `toml:"scheduler"`
	Logging         LoggingConfig         `toml:"logging"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type HostsConfig struct {
	Main   string `toml:"main"`
	Mobile string `toml:"mobile"`
}

type ScrapingConfig struct {
	MaxPagesDefault int     `toml:"max_pages_default"`
	Concurrency     int     `toml:"concurrency"`
	DelaySeconds    float64 `toml:"delay_seconds"`
	MaxRetries      int     `toml:"max_retries"`
	TimeoutSeconds  int     `toml:"timeout_seconds"`
}

func (c ScrapingConfig) Delay() time.Duration {
	return time.Duration(c.DelaySeconds * float64(time.Second))
}

func (c ScrapingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type AnalysisConfig struct {
	DefaultAreaTolerance float64 `toml:"default_area_tolerance"`
}

// RecommendationsConfig holds the thresholds behind user-facing
// verdict labels. Yields are fractions, discounts percents.
type RecommendationsConfig struct {
	StrongBuyYield        float64 `toml:"strong_buy_yield"`
	BuyYield              float64 `toml:"buy_yield"`
	ConsiderYield         float64 `toml:"consider_yield"`
	ExcellentDealDiscount float64 `toml:"excellent_deal_discount"`
	GoodDealDiscount      float64 `toml:"good_deal_discount"`
	FairDealDiscount      float64 `toml:"fair_deal_discount"`
}

// YieldVerdict labels a yield fraction for display.
func (r RecommendationsConfig) YieldVerdict(y float64) string {
	switch {
	case y >= r.StrongBuyYield:
		return "STRONG BUY"
	case y >= r.BuyYield:
		return "BUY"
	case y >= r.ConsiderYield:
		return "CONSIDER"
	default:
		return "HOLD"
	}
}

// DealVerdict labels a discount-vs-median percentage for display.
func (r RecommendationsConfig) DealVerdict(discount float64) string {
	switch {
	case discount >= r.ExcellentDealDiscount:
		return "EXCELLENT DEAL"
	case discount >= r.GoodDealDiscount:
		return "GOOD DEAL"
	case discount >= r.FairDealDiscount:
		return "FAIR DEAL"
	default:
		return "MARKET PRICE"
	}
}

type SchedulerConfig struct {
	Cron string `toml:"cron"`
	City string `toml:"city"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Default returns the built-in configuration; Load layers a TOML file
// and environment variables on top of it.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "krisha_radar.db"},
		Hosts: HostsConfig{
			Main:   "https://krisha.kz",
			Mobile: "https://m.krisha.kz",
		},
		Scraping: ScrapingConfig{
			MaxPagesDefault: 10,
			Concurrency:     4,
			DelaySeconds:    1.0,
			MaxRetries:      3,
			TimeoutSeconds:  30,
		},
		Analysis: AnalysisConfig{DefaultAreaTolerance: 0.20},
		Recommendations: RecommendationsConfig{
			StrongBuyYield:        0.12,
			BuyYield:              0.09,
			ConsiderYield:         0.07,
			ExcellentDealDiscount: 20,
			GoodDealDiscount:      12,
			FairDealDiscount:      6,
		},
		Scheduler: SchedulerConfig{Cron: "0 6 * * *", City: "almaty"},
		Logging:   LoggingConfig{Level: "info"},
	}
}

// Load reads config.toml (or the path in KRISHA_CONFIG) over the
// defaults, then applies environment overrides. A missing file is not
// an error; a malformed one is.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	path := getEnv("KRISHA_CONFIG", "config.toml")
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.Database.Path = getEnv("KRISHA_DB_PATH", cfg.Database.Path)
	cfg.Hosts.Main = getEnv("KRISHA_MAIN_HOST", cfg.Hosts.Main)
	cfg.Hosts.Mobile = getEnv("KRISHA_MOBILE_HOST", cfg.Hosts.Mobile)
	cfg.Logging.Level = getEnv("KRISHA_LOG_LEVEL", cfg.Logging.Level)
	cfg.Scraping.Concurrency = getEnvInt("KRISHA_CONCURRENCY", cfg.Scraping.Concurrency)
	cfg.Scraping.MaxPagesDefault = getEnvInt("KRISHA_MAX_PAGES", cfg.Scraping.MaxPagesDefault)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Scraping.Concurrency < 1 {
		return fmt.Errorf("scraping.concurrency must be >= 1, got %d", c.Scraping.Concurrency)
	}
	if c.Analysis.DefaultAreaTolerance <= 0 || c.Analysis.DefaultAreaTolerance >= 1 {
		return fmt.Errorf("analysis.default_area_tolerance must be in (0, 1), got %v", c.Analysis.DefaultAreaTolerance)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
