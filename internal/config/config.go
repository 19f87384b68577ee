// Package config
package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/guanacodev/guanaco/internal/history"
	"github.com/guanacodev/guanaco/internal/symbol"
)

/*
YAML config example:
mode: "backtest"
exchange: "coinbase"
symbols: ["btcusd", "ethusd"]
interval: "1d"
execution_interval: ""
execution_count: 0
from: "2024-01-01"
to: "2024-06-01"
strategy: "dip-buyer"
order_size: 0.1
threshold_percent: 2.0
portfolio:
  usd: 10000
db_conn_str: "postgres://..."
request_every: 350ms
verbose: true
*/

// Config carries everything the CLI needs to run in backtest or live mode.
type Config struct {
	Mode     string   `yaml:"mode"`
	Exchange string   `yaml:"exchange"`
	Symbols  []string `yaml:"symbols"`

	Interval          string `yaml:"interval"`
	ExecutionInterval string `yaml:"execution_interval"`
	ExecutionCount    int    `yaml:"execution_count"`

	From string `yaml:"from"`
	To   string `yaml:"to"`

	Strategy         string  `yaml:"strategy"`
	OrderSize        float64 `yaml:"order_size"`
	ThresholdPercent float64 `yaml:"threshold_percent"`

	Portfolio map[string]float64 `yaml:"portfolio"`

	DBConnStr string `yaml:"db_conn_str"`
	DBMaxOpen int    `yaml:"db_max_open"`
	DBMaxIdle int    `yaml:"db_max_idle"`

	RequestEvery time.Duration `yaml:"request_every"`

	CoinbaseKey        string `yaml:"-"`
	CoinbaseSecret     string `yaml:"-"`
	CoinbasePassphrase string `yaml:"-"`
	WallexAPIKey       string `yaml:"-"`

	TelegramToken       string        `yaml:"telegram_token"`
	TelegramChatID      string        `yaml:"telegram_chat_id"`
	NotificationRetries int           `yaml:"notification_retries"`
	NotificationDelay   time.Duration `yaml:"notification_delay"`

	Verbose bool `yaml:"verbose"`
}

var intervalNames = map[string]history.Interval{
	"1m":  history.OneMin,
	"5m":  history.FiveMin,
	"15m": history.FifteenMin,
	"1h":  history.OneHour,
	"6h":  history.SixHours,
	"1d":  history.OneDay,
}

// IntervalValue resolves the configured sampling interval.
func (c Config) IntervalValue() (history.Interval, error) {
	i, ok := intervalNames[c.Interval]
	if !ok {
		return 0, fmt.Errorf("unsupported interval: %q", c.Interval)
	}
	return i, nil
}

// ExecutionIntervalValue resolves the execution interval; empty means
// "execute every tick" and yields zero.
func (c Config) ExecutionIntervalValue() (history.Interval, error) {
	if c.ExecutionInterval == "" {
		return 0, nil
	}
	i, ok := intervalNames[c.ExecutionInterval]
	if !ok {
		return 0, fmt.Errorf("unsupported execution interval: %q", c.ExecutionInterval)
	}
	return i, nil
}

// SymbolList resolves the configured symbols against the supported set.
func (c Config) SymbolList() ([]symbol.Symbol, error) {
	if len(c.Symbols) == 0 {
		return symbol.All(), nil
	}
	out := make([]symbol.Symbol, 0, len(c.Symbols))
	for _, raw := range c.Symbols {
		sym, err := symbol.Parse(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, nil
}

// FromTime parses the backtest start date.
func (c Config) FromTime() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.From)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing from date: %w", err)
	}
	return t.UTC(), nil
}

// ToTime parses the backtest end date; empty means now.
func (c Config) ToTime() (time.Time, error) {
	if c.To == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse("2006-01-02", c.To)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing to date: %w", err)
	}
	return t.UTC(), nil
}

// Load builds a Config from flags, an optional YAML file and the
// environment. Flags win over file values; credentials only come from the
// environment.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("guanaco", flag.ContinueOnError)
	mode := fs.String("mode", "backtest", "Mode: backtest or live")
	exchangeName := fs.String("exchange", "coinbase", "Exchange: coinbase or wallex")
	symbolsFlag := fs.String("symbols", "btcusd", "Comma-separated list of symbols")
	interval := fs.String("interval", "1d", "Sampling interval: 1m, 5m, 15m, 1h, 6h, 1d")
	executionInterval := fs.String("execution-interval", "", "Order execution interval; empty executes every tick")
	executionCount := fs.Int("execution-count", 0, "Orders to execute per matching pass; 0 drains the queue")
	from := fs.String("from", time.Now().AddDate(0, -1, 0).Format("2006-01-02"), "Backtest start date (YYYY-MM-DD)")
	to := fs.String("to", "", "Backtest end date (YYYY-MM-DD); empty means today")
	strategyName := fs.String("strategy", "dip-buyer", "Strategy: dip-buyer or limit-ladder")
	orderSize := fs.Float64("order-size", 0.1, "Order size (quantity) per trade")
	thresholdPercent := fs.Float64("threshold-percent", 2.0, "Strategy trigger threshold in percent")
	requestEvery := fs.Duration("request-every", 350*time.Millisecond, "Minimum delay between candle requests")
	verbose := fs.Bool("verbose", false, "Enable debug logging")
	configFile := fs.String("config", "", "Path to YAML config file")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Credentials come from the environment; .env is a convenience.
	_ = godotenv.Load()

	cfg := Config{
		Mode:                *mode,
		Exchange:            *exchangeName,
		Symbols:             strings.Split(*symbolsFlag, ","),
		Interval:            *interval,
		ExecutionInterval:   *executionInterval,
		ExecutionCount:      *executionCount,
		From:                *from,
		To:                  *to,
		Strategy:            *strategyName,
		OrderSize:           *orderSize,
		ThresholdPercent:    *thresholdPercent,
		Portfolio:           map[string]float64{"usd": 10000},
		DBMaxOpen:           10,
		DBMaxIdle:           5,
		RequestEvery:        *requestEvery,
		NotificationRetries: 3,
		NotificationDelay:   5 * time.Second,
		Verbose:             *verbose,
	}

	if *configFile != "" {
		data, err := os.ReadFile(*configFile)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
		// Explicitly set flags win over file values.
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "mode":
				cfg.Mode = *mode
			case "exchange":
				cfg.Exchange = *exchangeName
			case "symbols":
				cfg.Symbols = strings.Split(*symbolsFlag, ",")
			case "interval":
				cfg.Interval = *interval
			case "execution-interval":
				cfg.ExecutionInterval = *executionInterval
			case "execution-count":
				cfg.ExecutionCount = *executionCount
			case "from":
				cfg.From = *from
			case "to":
				cfg.To = *to
			case "strategy":
				cfg.Strategy = *strategyName
			case "order-size":
				cfg.OrderSize = *orderSize
			case "threshold-percent":
				cfg.ThresholdPercent = *thresholdPercent
			case "request-every":
				cfg.RequestEvery = *requestEvery
			case "verbose":
				cfg.Verbose = *verbose
			}
		})
	}

	cfg.CoinbaseKey = os.Getenv("COINBASE_API_KEY")
	cfg.CoinbaseSecret = os.Getenv("COINBASE_API_SECRET")
	cfg.CoinbasePassphrase = os.Getenv("COINBASE_API_PASSPHRASE")
	cfg.WallexAPIKey = os.Getenv("WALLEX_API_KEY")
	if v := os.Getenv("DB_CONN_STR"); v != "" {
		cfg.DBConnStr = v
	}
	return cfg, nil
}

// MustLoad is Load for main: any error is fatal.
func MustLoad() Config {
	cfg, err := Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}
