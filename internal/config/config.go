package config

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/vitos/portfolio_sim/internal/infrastructure/marketdata"
	"github.com/vitos/portfolio_sim/internal/usecase"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Execution struct {
		usecase.ExecutionConfig `yaml:",inline"`
		StartingCash            float64 `yaml:"starting_cash"`
	} `yaml:"execution"`
	MarketData struct {
		Provider     string        `yaml:"provider"`
		MinInterval  time.Duration `yaml:"min_interval"`
		CacheTTL     time.Duration `yaml:"cache_ttl"`
		Timeout      time.Duration `yaml:"timeout"`
		PersistCache bool          `yaml:"persist_cache"`
		AlphaVantage struct {
			APIKey  string `yaml:"api_key"`
			BaseURL string `yaml:"base_url"`
		} `yaml:"alpha_vantage"`
		Alpaca struct {
			APIKey    string `yaml:"api_key"`
			APISecret string `yaml:"api_secret"`
			BaseURL   string `yaml:"base_url"`
			Feed      string `yaml:"feed"`
		} `yaml:"alpaca"`
		Static map[string]float64 `yaml:"static"`
	} `yaml:"market_data"`
	Schedule struct {
		StopLoss       string `yaml:"stop_loss"`
		Rebalance      string `yaml:"rebalance"`
		AllocationFile string `yaml:"allocation_file"`
	} `yaml:"schedule"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

const (
	ProviderAlphaVantage = marketdata.ProviderAlphaVantage
	ProviderYahoo        = marketdata.ProviderYahoo
	ProviderAlpaca       = marketdata.ProviderAlpaca
	ProviderStatic       = marketdata.ProviderStatic
)

// Default returns the configuration used when a key is absent from the file.
func Default() *Config {
	var cfg Config
	cfg.Execution.ExecutionConfig = usecase.DefaultExecutionConfig()
	cfg.Execution.StartingCash = 5000
	cfg.MarketData.Provider = ProviderAlphaVantage
	// Alpha Vantage free tier allows 5 requests per minute.
	cfg.MarketData.MinInterval = 12 * time.Second
	cfg.MarketData.CacheTTL = time.Hour
	cfg.MarketData.Timeout = 10 * time.Second
	cfg.MarketData.AlphaVantage.BaseURL = "https://www.alphavantage.co/query"
	cfg.MarketData.Alpaca.Feed = "iex"
	cfg.Schedule.StopLoss = "*/15 9-16 * * MON-FRI"
	cfg.Storage.Path = "portfolio.db"
	cfg.Logging.Level = "info"
	cfg.Server.Port = 8080
	return &cfg
}

// Load reads the YAML file over the defaults, then applies .env and
// environment overrides. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	str("ALPHA_VANTAGE_API_KEY", &c.MarketData.AlphaVantage.APIKey)
	str("ALPHA_VANTAGE_BASE_URL", &c.MarketData.AlphaVantage.BaseURL)
	str("APCA_API_KEY_ID", &c.MarketData.Alpaca.APIKey)
	str("APCA_API_SECRET_KEY", &c.MarketData.Alpaca.APISecret)
	str("APCA_API_DATA_URL", &c.MarketData.Alpaca.BaseURL)
	str("MARKET_DATA_PROVIDER", &c.MarketData.Provider)
	str("PORTFOLIO_DB_PATH", &c.Storage.Path)
	str("LOG_LEVEL", &c.Logging.Level)

	if v := os.Getenv("ALPHA_VANTAGE_MIN_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			secs, convErr := strconv.ParseFloat(v, 64)
			if convErr != nil {
				return fmt.Errorf("ALPHA_VANTAGE_MIN_INTERVAL: %w", err)
			}
			d = time.Duration(secs * float64(time.Second))
		}
		c.MarketData.MinInterval = d
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SERVER_PORT: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Execution.CommissionPerTrade < 0 {
		errs = append(errs, fmt.Errorf("execution.commission_per_trade must be >= 0"))
	}
	if c.Execution.MinTradeValue < 0 {
		errs = append(errs, fmt.Errorf("execution.min_trade_value must be >= 0"))
	}
	if c.Execution.StartingCash <= 0 {
		errs = append(errs, fmt.Errorf("execution.starting_cash must be > 0"))
	}
	if c.MarketData.MinInterval < 0 {
		errs = append(errs, fmt.Errorf("market_data.min_interval must be >= 0"))
	}
	if c.MarketData.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("market_data.cache_ttl must be >= 0"))
	}

	c.MarketData.Provider = strings.ToLower(c.MarketData.Provider)
	switch c.MarketData.Provider {
	case ProviderAlphaVantage:
		if c.MarketData.AlphaVantage.APIKey == "" {
			errs = append(errs, fmt.Errorf("ALPHA_VANTAGE_API_KEY is required for the alphavantage provider"))
		}
	case ProviderAlpaca:
		if c.MarketData.Alpaca.APIKey == "" || c.MarketData.Alpaca.APISecret == "" {
			errs = append(errs, fmt.Errorf("APCA_API_KEY_ID and APCA_API_SECRET_KEY are required for the alpaca provider"))
		}
	case ProviderYahoo:
	case ProviderStatic:
		if len(c.MarketData.Static) == 0 {
			errs = append(errs, fmt.Errorf("market_data.static needs at least one price"))
		}
		for _, ticker := range slices.Sorted(maps.Keys(c.MarketData.Static)) {
			if p := c.MarketData.Static[ticker]; !(p > 0) || math.IsInf(p, 1) {
				errs = append(errs, fmt.Errorf("market_data.static.%s must be a positive price, got %v", ticker, p))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("unknown market_data.provider %q", c.MarketData.Provider))
	}

	if c.Storage.Path == "" {
		errs = append(errs, fmt.Errorf("storage.path is required"))
	}
	return errors.Join(errs...)
}

// SourceOptions maps the market_data section onto the vendor factory.
func (c *Config) SourceOptions() marketdata.Options {
	md := c.MarketData
	return marketdata.Options{
		Provider:        md.Provider,
		Timeout:         md.Timeout,
		AlphaVantageKey: md.AlphaVantage.APIKey,
		AlphaVantageURL: md.AlphaVantage.BaseURL,
		AlpacaKey:       md.Alpaca.APIKey,
		AlpacaSecret:    md.Alpaca.APISecret,
		AlpacaURL:       md.Alpaca.BaseURL,
		AlpacaFeed:      md.Alpaca.Feed,
		StaticPrices:    md.Static,
	}
}
