package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"momentum-scanner/internal/market"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, market.DefaultUniverse(), cfg.Scan.Universe)
	require.Equal(t, 150, cfg.Scan.MinHistory)
	require.Equal(t, 50, cfg.Scan.ShortWindow)
	require.Equal(t, 150, cfg.Scan.LongWindow)
	require.Equal(t, 14, cfg.Scan.RSIPeriod)
	require.Equal(t, 60*time.Second, cfg.Scan.FetchTimeout)
	require.Equal(t, "Momentum_Report_", cfg.Report.Prefix)
	require.Equal(t, ":5000", cfg.Server.Addr)
	require.Equal(t, 20, cfg.Yahoo.BatchSize)
	require.False(t, cfg.Scheduler.Enabled)
	require.Empty(t, cfg.Database.DSN)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scan:
  universe:
    - name: Gold BeES
      symbol: GOLDBEES.NS
    - name: Bank
      symbol: BANKBEES.NS
  fetch_timeout: 5s
report:
  dir: /var/lib/momentum
scheduler:
  enabled: true
  interval: 1h
`), 0o644))

	t.Setenv("MOMENTUM_SERVER_ADDR", ":8080")
	t.Setenv("MOMENTUM_YAHOO_WORKERS", "2")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, []market.Instrument{
		{Name: "Gold BeES", Symbol: "GOLDBEES.NS"},
		{Name: "Bank", Symbol: "BANKBEES.NS"},
	}, cfg.Scan.Universe)
	require.Equal(t, 5*time.Second, cfg.Scan.FetchTimeout)
	require.Equal(t, "/var/lib/momentum", cfg.Report.Dir)
	require.True(t, cfg.Scheduler.Enabled)
	require.Equal(t, time.Hour, cfg.Scheduler.Interval)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, 2, cfg.Yahoo.Workers)
}

func TestLoadUniverseFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MOMENTUM_SCAN_UNIVERSE", "Gold BeES=GOLDBEES.NS, ITBEES.NS")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, []market.Instrument{
		{Name: "Gold BeES", Symbol: "GOLDBEES.NS"},
		{Name: "ITBEES.NS", Symbol: "ITBEES.NS"},
	}, cfg.Scan.Universe)
}

func TestParseUniverseRejectsMissingSymbol(t *testing.T) {
	_, err := ParseUniverse("Gold=")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Server: ServerConfig{Addr: ":5000"},
			Scan: ScanConfig{
				Universe:    market.DefaultUniverse(),
				MinHistory:  150,
				ShortWindow: 50,
				LongWindow:  150,
				RSIPeriod:   14,
			},
			Report: ReportConfig{Dir: ".", Prefix: "Momentum_Report_"},
			Yahoo:  YahooConfig{BatchSize: 20},
		}
	}

	valid := base()
	require.NoError(t, valid.Validate())

	cases := map[string]func(c *Config){
		"empty universe":      func(c *Config) { c.Scan.Universe = nil },
		"duplicate symbol":    func(c *Config) { c.Scan.Universe = append(c.Scan.Universe, c.Scan.Universe[0]) },
		"windows inverted":    func(c *Config) { c.Scan.ShortWindow = 200 },
		"history too short":   func(c *Config) { c.Scan.MinHistory = 100 },
		"glob in prefix":      func(c *Config) { c.Report.Prefix = "report*" },
		"zero batch":          func(c *Config) { c.Yahoo.BatchSize = 0 },
		"scheduler no period": func(c *Config) { c.Scheduler.Enabled = true },
		"telegram no token": func(c *Config) {
			c.Alerting.Enabled = true
			c.Alerting.Telegram.Enabled = true
			c.Alerting.Telegram.ChatID = "chat"
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}
