package configs

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"leboncoin-parser-service/internal/constants"
	"leboncoin-parser-service/internal/core/domain"
)

// SearchConfig holds the search criteria taken from flags.
type SearchConfig struct {
	Text       string
	City       string
	Latitude   float64
	Longitude  float64
	RadiusM    int
	MinPrice   int
	MaxPrice   int
	MinSurface int
	MaxSurface int
	OwnerType  string
}

// CrawlConfig holds the pagination and failure policy.
type CrawlConfig struct {
	MaxPages               int
	Delay                  time.Duration
	Jitter                 time.Duration
	MaxAttempts            int
	RetryBackoff           time.Duration
	MaxConsecutiveFailures int
	AbortOnPageFailure     bool
	Fresh                  bool
}

// OutputConfig holds the output file and reporting switches.
type OutputConfig struct {
	Path  string
	Stats bool
}

type StdoutLogConfig struct {
	Level string
	JSON  bool
}

type FluentBitConfig struct {
	Enabled bool
	Host    string
	Port    int
	Level   string
	Tag     string
}

// DBConfig holds the optional shared-cursor database connection.
type DBConfig struct {
	URL string
}

// RabbitMQConfig holds the optional listing event publishing target.
type RabbitMQConfig struct {
	Enabled    bool
	URL        string
	Exchange   string
	RoutingKey string
}

// AppConfig is the full application configuration. Search and crawl knobs
// come from CLI flags; infrastructure endpoints come from the environment.
type AppConfig struct {
	AppName string

	Search SearchConfig
	Crawl  CrawlConfig
	Output OutputConfig

	StdoutLogger StdoutLogConfig
	FluentBit    FluentBitConfig
	Database     DBConfig
	RabbitMQ     RabbitMQConfig

	ProxyURL string
	APIKey   string
}

// LoadConfig loads the environment (including an optional .env file), parses
// the CLI flags and validates the combination.
func LoadConfig(args []string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		// A missing .env file is normal for a CLI run; everything has defaults.
		log.Printf("Info: could not load .env file: %v\n", err)
	}

	cfg := &AppConfig{}

	cfg.AppName = getEnvAsString("APP_NAME", "leboncoin-parser-service")

	fs := flag.NewFlagSet(cfg.AppName, flag.ContinueOnError)

	fs.StringVar(&cfg.Search.Text, "text", "", "free-text search query")
	fs.StringVar(&cfg.Search.City, "city", "", "city name filter (requires --lat and --lng)")
	fs.Float64Var(&cfg.Search.Latitude, "lat", 0, "latitude of the search center")
	fs.Float64Var(&cfg.Search.Longitude, "lng", 0, "longitude of the search center")
	fs.IntVar(&cfg.Search.RadiusM, "radius", 10000, "search radius around the center in meters")
	fs.IntVar(&cfg.Search.MinPrice, "min-price", 0, "minimum price in euros")
	fs.IntVar(&cfg.Search.MaxPrice, "max-price", 0, "maximum price in euros")
	fs.IntVar(&cfg.Search.MinSurface, "min-surface", 0, "minimum surface in square meters")
	fs.IntVar(&cfg.Search.MaxSurface, "max-surface", 0, "maximum surface in square meters")
	fs.StringVar(&cfg.Search.OwnerType, "owner-type", domain.OwnerTypeAll, "seller kind filter: pro, private or all")

	fs.IntVar(&cfg.Crawl.MaxPages, "max-pages", 0, "stop after this many pages, 0 for unlimited")
	fs.DurationVar(&cfg.Crawl.Delay, "delay", time.Second, "minimum delay between page requests")
	fs.BoolVar(&cfg.Crawl.AbortOnPageFailure, "abort-on-page-failure", false, "abort the run when a page keeps failing instead of skipping it")
	fs.BoolVar(&cfg.Crawl.Fresh, "fresh", false, "ignore any stored cursor and start from page 1")

	fs.StringVar(&cfg.Output.Path, "output", "listings.csv", "output CSV path")
	fs.BoolVar(&cfg.Output.Stats, "stats", true, "print the run summary at the end")

	fs.StringVar(&cfg.ProxyURL, "proxy", getEnvAsString("PROXY_URL", ""), "HTTP(S) proxy URL for outgoing requests")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.Crawl.Jitter = time.Duration(getEnvAsInt("CRAWL_JITTER_MS", 0)) * time.Millisecond
	cfg.Crawl.MaxAttempts = getEnvAsInt("CRAWL_MAX_ATTEMPTS", 3)
	cfg.Crawl.RetryBackoff = time.Duration(getEnvAsInt("CRAWL_RETRY_BACKOFF_MS", 1000)) * time.Millisecond
	cfg.Crawl.MaxConsecutiveFailures = getEnvAsInt("CRAWL_MAX_CONSECUTIVE_FAILURES", 5)

	cfg.StdoutLogger.Level = getEnvAsString("STDOUT_LOG_LEVEL", "info")
	cfg.StdoutLogger.JSON = getEnvAsBool("STDOUT_LOG_JSON", false)

	cfg.FluentBit.Enabled = getEnvAsBool("FLUENTBIT_ENABLED", false)
	if cfg.FluentBit.Enabled {
		cfg.FluentBit.Host = os.Getenv("FLUENTBIT_HOST")
		if cfg.FluentBit.Host == "" {
			log.Println("WARNING: FLUENTBIT_ENABLED is true, but FLUENTBIT_HOST is not set. Disabling Fluent Bit.")
			cfg.FluentBit.Enabled = false
		}
		cfg.FluentBit.Port = getEnvAsInt("FLUENTBIT_PORT", 24224)
		cfg.FluentBit.Level = getEnvAsString("FLUENTBIT_LOG_LEVEL", "info")
		cfg.FluentBit.Tag = getEnvAsString("FLUENTBIT_TAG", cfg.AppName)
	}

	cfg.Database.URL = os.Getenv("DATABASE_URL")

	cfg.RabbitMQ.URL = os.Getenv("RABBITMQ_URL")
	cfg.RabbitMQ.Enabled = cfg.RabbitMQ.URL != ""
	if cfg.RabbitMQ.Enabled {
		cfg.RabbitMQ.Exchange = getEnvAsString("RABBITMQ_EXCHANGE", "listings.events")
		cfg.RabbitMQ.RoutingKey = getEnvAsString("RABBITMQ_ROUTING_KEY", "listing.scraped")
	}

	cfg.APIKey = getEnvAsString("LBC_API_KEY", "")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Search.City != "" && (c.Search.Latitude == 0 || c.Search.Longitude == 0) {
		return fmt.Errorf("--city requires both --lat and --lng")
	}
	switch c.Search.OwnerType {
	case domain.OwnerTypePro, domain.OwnerTypePrivate, domain.OwnerTypeAll:
	default:
		return fmt.Errorf("--owner-type must be one of pro, private or all, got %q", c.Search.OwnerType)
	}
	if c.Crawl.MaxPages < 0 {
		return fmt.Errorf("--max-pages must not be negative")
	}
	if c.Crawl.Delay < 0 {
		return fmt.Errorf("--delay must not be negative")
	}
	if c.Search.MinPrice > 0 && c.Search.MaxPrice > 0 && c.Search.MinPrice > c.Search.MaxPrice {
		return fmt.Errorf("--min-price must not exceed --max-price")
	}
	if c.Search.MinSurface > 0 && c.Search.MaxSurface > 0 && c.Search.MinSurface > c.Search.MaxSurface {
		return fmt.Errorf("--min-surface must not exceed --max-surface")
	}
	if c.Output.Path == "" {
		return fmt.Errorf("--output must not be empty")
	}
	return nil
}

// ToCriteria maps the search section to the domain criteria.
func (c *AppConfig) ToCriteria() domain.SearchCriteria {
	return domain.SearchCriteria{
		Text:       c.Search.Text,
		City:       c.Search.City,
		Latitude:   c.Search.Latitude,
		Longitude:  c.Search.Longitude,
		RadiusM:    c.Search.RadiusM,
		MinPrice:   c.Search.MinPrice,
		MaxPrice:   c.Search.MaxPrice,
		MinSurface: c.Search.MinSurface,
		MaxSurface: c.Search.MaxSurface,
		OwnerType:  c.Search.OwnerType,
		AdsPerPage: constants.MaxAdsPerPage,
	}
}

func getEnvAsString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: environment variable %s (value: %s) could not be parsed as int: %v. Using default value: %d\n", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueInt
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valBool, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Warning: environment variable %s (value: %s) could not be parsed as bool: %v. Using default value: %t\n", key, valStr, err, defaultValue)
		return defaultValue
	}
	return valBool
}
