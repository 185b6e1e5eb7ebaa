package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"momentum-scanner/internal/logging"
	"momentum-scanner/internal/market"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Report    ReportConfig    `mapstructure:"report"`
	Yahoo     YahooConfig     `mapstructure:"yahoo"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ScanConfig holds the scan universe and scoring parameters.
type ScanConfig struct {
	Universe     []market.Instrument `mapstructure:"universe"`
	MinHistory   int                 `mapstructure:"min_history"`
	ShortWindow  int                 `mapstructure:"short_window"`
	LongWindow   int                 `mapstructure:"long_window"`
	RSIPeriod    int                 `mapstructure:"rsi_period"`
	Range        string              `mapstructure:"range"`
	Interval     string              `mapstructure:"interval"`
	FetchTimeout time.Duration       `mapstructure:"fetch_timeout"`
}

// ReportConfig sets where artifacts are written.
type ReportConfig struct {
	Dir    string `mapstructure:"dir"`
	Prefix string `mapstructure:"prefix"`
	Chart  bool   `mapstructure:"chart"`
}

// YahooConfig captures Yahoo Finance connectivity.
type YahooConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	CookieURL      string        `mapstructure:"cookie_url"`
	CrumbURL       string        `mapstructure:"crumb_url"`
	BatchSize      int           `mapstructure:"batch_size"`
	Workers        int           `mapstructure:"workers"`
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SchedulerConfig governs periodic scans.
type SchedulerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
	RunOnStart    bool          `mapstructure:"run_on_start"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. An empty DSN disables history.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AlertingConfig defines notification routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram bot used for scan summaries.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MOMENTUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "momentumscan")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("scan.universe", market.DefaultUniverse())
	v.SetDefault("scan.min_history", 150)
	v.SetDefault("scan.short_window", 50)
	v.SetDefault("scan.long_window", 150)
	v.SetDefault("scan.rsi_period", 14)
	v.SetDefault("scan.range", "1y")
	v.SetDefault("scan.interval", "1d")
	v.SetDefault("scan.fetch_timeout", "60s")

	v.SetDefault("report.dir", ".")
	v.SetDefault("report.prefix", "Momentum_Report_")
	v.SetDefault("report.chart", true)

	v.SetDefault("yahoo.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("yahoo.cookie_url", "")
	v.SetDefault("yahoo.crumb_url", "")
	v.SetDefault("yahoo.batch_size", 20)
	v.SetDefault("yahoo.workers", 4)
	v.SetDefault("yahoo.user_agent", "")
	v.SetDefault("yahoo.request_timeout", "30s")

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval", "24h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.run_on_start", false)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			stringToUniverseHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

var universeType = reflect.TypeOf([]market.Instrument{})

// stringToUniverseHookFunc decodes "Name=SYMBOL,SYMBOL" into instruments so
// the universe can be set from a single environment variable.
func stringToUniverseHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t != universeType {
			return data, nil
		}
		return ParseUniverse(reflect.ValueOf(data).String())
	}
}

// ParseUniverse parses a comma separated list of "Name=SYMBOL" or bare
// "SYMBOL" entries. A bare symbol is also used as the display name.
func ParseUniverse(raw string) ([]market.Instrument, error) {
	out := []market.Instrument{}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, symbol, found := strings.Cut(entry, "=")
		if !found {
			symbol = name
		}
		name, symbol = strings.TrimSpace(name), strings.TrimSpace(symbol)
		if symbol == "" {
			return nil, fmt.Errorf("universe entry %q has no symbol", entry)
		}
		out = append(out, market.Instrument{Name: name, Symbol: symbol})
	}
	return out, nil
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if len(c.Scan.Universe) == 0 {
		return fmt.Errorf("scan.universe must list at least one instrument")
	}
	seen := make(map[string]struct{}, len(c.Scan.Universe))
	for _, inst := range c.Scan.Universe {
		if strings.TrimSpace(inst.Symbol) == "" {
			return fmt.Errorf("scan.universe entry %q has no symbol", inst.Name)
		}
		if _, dup := seen[inst.Symbol]; dup {
			return fmt.Errorf("scan.universe lists %s twice", inst.Symbol)
		}
		seen[inst.Symbol] = struct{}{}
	}
	if c.Scan.ShortWindow <= 0 || c.Scan.LongWindow <= 0 || c.Scan.RSIPeriod <= 0 {
		return fmt.Errorf("scan windows must be greater than zero")
	}
	if c.Scan.ShortWindow >= c.Scan.LongWindow {
		return fmt.Errorf("scan.short_window must be smaller than scan.long_window")
	}
	if c.Scan.MinHistory < c.Scan.LongWindow {
		return fmt.Errorf("scan.min_history must be at least scan.long_window")
	}
	if c.Report.Dir == "" {
		return fmt.Errorf("report.dir must be set")
	}
	if c.Report.Prefix == "" || strings.ContainsAny(c.Report.Prefix, `/\*?[`) {
		return fmt.Errorf("report.prefix must be a plain file name prefix")
	}
	if c.Yahoo.BatchSize <= 0 {
		return fmt.Errorf("yahoo.batch_size must be greater than zero")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must be set")
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Alerting.Enabled && c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token must be set")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id must be set")
		}
	}
	return nil
}
