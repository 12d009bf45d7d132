package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"ETFSentinel/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		// BaseURL selects the vstrader REST source; empty means Yahoo Finance.
		BaseURL     string `yaml:"base_url"`
		APIKey      string `yaml:"api_key"`
		Concurrency int    `yaml:"concurrency"`
	} `yaml:"data_source"`
	Advisor struct {
		Enabled     bool    `yaml:"enabled"`
		APIKey      string  `yaml:"api_key"`
		Model       string  `yaml:"model"`
		Temperature float32 `yaml:"temperature"`
	} `yaml:"advisor"`
	Schedule struct {
		Timezone       string `yaml:"timezone"`
		AccrualCron    string `yaml:"accrual_cron"`
		ScanCron       string `yaml:"scan_cron"`
		MonthResetCron string `yaml:"month_reset_cron"`
		MonthEndCron   string `yaml:"month_end_cron"`
		HeartbeatCron  string `yaml:"heartbeat_cron"`
	} `yaml:"schedule"`
	Fund struct {
		StateFile string `yaml:"state_file"`
	} `yaml:"fund"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Allocation  Allocation                `yaml:"allocation"`
	Instruments []model.InstrumentProfile `yaml:"instruments"`
	RunMode     string                    `yaml:"run_mode"`
	Log         struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Allocation is the financial parameter block. None of it has a default.
type Allocation struct {
	MonthlyBudget  float64 `yaml:"monthly_budget"`
	DailyBase      float64 `yaml:"daily_base"`
	MinPurchase    float64 `yaml:"min_purchase"`
	CrashAmount    float64 `yaml:"crash_amount"`
	DipAmount      float64 `yaml:"dip_amount"`
	CrashBuffer    float64 `yaml:"crash_buffer"`
	MonthEndDays   int     `yaml:"month_end_days"`
	EnforceAllCaps bool    `yaml:"enforce_all_caps"`
	Caps           struct {
		Core      float64 `yaml:"core"`
		Global    float64 `yaml:"global"`
		Sector    float64 `yaml:"sector"`
		Commodity float64 `yaml:"commodity"`
		Silver    float64 `yaml:"silver"`
	} `yaml:"caps"`
	// Zone thresholds are pointers because zero is a meaningful value.
	Zones struct {
		Crash     *float64 `yaml:"crash"`
		Normal    *float64 `yaml:"normal"`
		SkipAbove *float64 `yaml:"skip_above"`
	} `yaml:"zones"`
}

// envOverrides are read with envconfig after the YAML file. Empty values
// leave the file setting untouched.
type envOverrides struct {
	TelegramBotToken string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string  `envconfig:"TELEGRAM_CHAT_ID"`
	VsTraderBaseURL  string  `envconfig:"VSTRADER_BASE_URL"`
	VsTraderAPIKey   string  `envconfig:"VSTRADER_API_KEY"`
	GeminiAPIKey     string  `envconfig:"GEMINI_API_KEY"`
	AdvisorModel     string  `envconfig:"ADVISOR_MODEL"`
	Proxy            string  `envconfig:"HTTPS_PROXY"`
	MonthlyBudget    float64 `envconfig:"MONTHLY_BUDGET"`
	DailyBase        float64 `envconfig:"DAILY_BASE"`
	ScanCron         string  `envconfig:"CRON_SCAN"`
	Timezone         string  `envconfig:"SCHEDULE_TIMEZONE"`
	StateFile        string  `envconfig:"FUND_STATE_FILE"`
	SQLitePath       string  `envconfig:"SQLITE_PATH"`
	RunMode          string  `envconfig:"RUN_MODE"`
	LogLevel         string  `envconfig:"LOG_LEVEL"`
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides, then plumbing defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// .env is optional
	_ = godotenv.Load()

	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	cfg.applyEnv(env)
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv(env envOverrides) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Telegram.BotToken, env.TelegramBotToken)
	set(&c.Telegram.ChatID, env.TelegramChatID)
	set(&c.DataSource.BaseURL, env.VsTraderBaseURL)
	set(&c.DataSource.APIKey, env.VsTraderAPIKey)
	set(&c.Advisor.APIKey, env.GeminiAPIKey)
	set(&c.Advisor.Model, env.AdvisorModel)
	set(&c.Proxy, env.Proxy)
	set(&c.Schedule.ScanCron, env.ScanCron)
	set(&c.Schedule.Timezone, env.Timezone)
	set(&c.Fund.StateFile, env.StateFile)
	set(&c.Database.SQLitePath, env.SQLitePath)
	set(&c.RunMode, env.RunMode)
	set(&c.Log.Level, env.LogLevel)
	if env.MonthlyBudget != 0 {
		c.Allocation.MonthlyBudget = env.MonthlyBudget
	}
	if env.DailyBase != 0 {
		c.Allocation.DailyBase = env.DailyBase
	}
}

// applyDefaults fills plumbing only. Financial parameters are left as loaded.
func (c *Config) applyDefaults() {
	def := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	def(&c.Schedule.Timezone, "Asia/Kolkata")
	def(&c.Schedule.AccrualCron, "0 0 9 * * 1-5")
	def(&c.Schedule.ScanCron, "0 0 15 * * 1-5")
	def(&c.Schedule.MonthResetCron, "0 0 0 1 * *")
	def(&c.Schedule.MonthEndCron, "0 0 * * * *")
	def(&c.Schedule.HeartbeatCron, "0 */30 * * * *")
	def(&c.Fund.StateFile, "data/budget_state.json")
	def(&c.Database.SQLitePath, "data/etf_sentinel.db")
	def(&c.Advisor.Model, "gemini-2.5-flash")
	def(&c.RunMode, "LIVE")
	def(&c.Log.Level, "info")
	if c.DataSource.Concurrency <= 0 {
		c.DataSource.Concurrency = 4
	}
}

// Validate checks the configuration and reports every problem it finds.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	// Without a bot token reports go to the log instead of Telegram.
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		fail("telegram.chat_id is required with telegram.bot_token")
	}
	if c.Advisor.Enabled && c.Advisor.APIKey == "" {
		fail("advisor.api_key is required when the advisor is enabled")
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		fail("schedule.timezone: %v", err)
	}
	switch c.RunMode {
	case "LIVE", "PAPER", "BACKTEST":
	default:
		fail("run_mode %q must be LIVE, PAPER or BACKTEST", c.RunMode)
	}

	a := c.Allocation
	positive := map[string]float64{
		"allocation.monthly_budget": a.MonthlyBudget,
		"allocation.daily_base":     a.DailyBase,
		"allocation.min_purchase":   a.MinPurchase,
		"allocation.crash_amount":   a.CrashAmount,
		"allocation.dip_amount":     a.DipAmount,
		"allocation.caps.core":      a.Caps.Core,
		"allocation.caps.global":    a.Caps.Global,
		"allocation.caps.sector":    a.Caps.Sector,
		"allocation.caps.commodity": a.Caps.Commodity,
		"allocation.caps.silver":    a.Caps.Silver,
	}
	for _, key := range sortedKeys(positive) {
		switch {
		case positive[key] <= 0:
			fail("%s must be positive", key)
		case strings.HasPrefix(key, "allocation.caps.") && positive[key] > 100:
			fail("%s must be a percentage, got %.1f", key, positive[key])
		}
	}
	if a.CrashBuffer < 0 {
		fail("allocation.crash_buffer must not be negative")
	}
	if a.MonthEndDays <= 0 {
		fail("allocation.month_end_days must be positive")
	}

	z := a.Zones
	if z.Crash == nil {
		fail("allocation.zones.crash is required")
	}
	if z.Normal == nil {
		fail("allocation.zones.normal is required")
	}
	if z.SkipAbove == nil {
		fail("allocation.zones.skip_above is required")
	}
	if z.Crash != nil && z.Normal != nil && z.SkipAbove != nil {
		if !(*z.Crash < *z.Normal && *z.Normal <= *z.SkipAbove) {
			fail("allocation.zones must satisfy crash < normal <= skip_above")
		}
	}

	if len(c.Instruments) == 0 {
		fail("at least one instrument is required")
	}
	seen := map[string]bool{}
	for i, inst := range c.Instruments {
		if inst.Symbol == "" {
			fail("instruments[%d].symbol is required", i)
			continue
		}
		if seen[inst.Symbol] {
			fail("instruments[%d]: duplicate symbol %s", i, inst.Symbol)
		}
		seen[inst.Symbol] = true
		if !inst.Category.Valid() {
			fail("instruments[%d] %s: unknown category %q", i, inst.Symbol, inst.Category)
		}
		if inst.Target <= 0 {
			fail("instruments[%d] %s: target must be positive", i, inst.Symbol)
		}
		if inst.Silver && inst.Category != model.CategoryCommodity {
			fail("instruments[%d] %s: silver instruments must be in the commodity category", i, inst.Symbol)
		}
	}

	return errors.Join(errs...)
}

// Rules converts the allocation block into the rules the engine runs on.
// Call it only after Validate succeeded.
func (c *Config) Rules() model.AllocationRules {
	a := c.Allocation
	r := model.AllocationRules{
		MonthlyBudget:  a.MonthlyBudget,
		DailyBase:      a.DailyBase,
		MinPurchase:    a.MinPurchase,
		CrashAmount:    a.CrashAmount,
		DipAmount:      a.DipAmount,
		CrashBuffer:    a.CrashBuffer,
		MonthEndDays:   a.MonthEndDays,
		EnforceAllCaps: a.EnforceAllCaps,
		Caps: model.CategoryCaps{
			Core:      a.Caps.Core,
			Global:    a.Caps.Global,
			Sector:    a.Caps.Sector,
			Commodity: a.Caps.Commodity,
			Silver:    a.Caps.Silver,
		},
	}
	if a.Zones.Crash != nil {
		r.Zones.Crash = *a.Zones.Crash
	}
	if a.Zones.Normal != nil {
		r.Zones.Normal = *a.Zones.Normal
	}
	if a.Zones.SkipAbove != nil {
		r.Zones.SkipAbove = *a.Zones.SkipAbove
	}
	return r
}

// Location returns the scheduling time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
