package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"PriceLens/internal/currency"
	"PriceLens/internal/model"
)

var ErrInvalid = errors.Base("invalid config")

var isoCode = regexp.MustCompile(`^[A-Z]{3}$`)

var knownSources = map[string]bool{"ecb": true, "boc": true, "bcb": true, "static": true}

// Config holds all application configuration.
type Config struct {
	Enabled          *bool    `yaml:"enabled"`
	BaseCurrency     string   `yaml:"base_currency"`
	TargetCurrencies []string `yaml:"target_currencies"`
	Mode             string   `yaml:"mode"`
	Locale           string   `yaml:"locale"`
	Watcher          struct {
		Throttle time.Duration `yaml:"throttle"`
	} `yaml:"watcher"`
	Rates struct {
		Sources           []string           `yaml:"sources"`
		Static            map[string]float64 `yaml:"static"`
		CacheTTL          time.Duration      `yaml:"cache_ttl"`
		RefreshCron       string             `yaml:"refresh_cron"`
		SQLitePath        string             `yaml:"sqlite_path"`
		Proxy             string             `yaml:"proxy"`
		RequestsPerSecond float64            `yaml:"requests_per_second"`
	} `yaml:"rates"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads config from a YAML file, then applies environment variable overrides
// and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PRICELENS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Enabled = &b
		}
	}
	if v := os.Getenv("PRICELENS_BASE_CURRENCY"); v != "" {
		c.BaseCurrency = v
	}
	if v := os.Getenv("PRICELENS_TARGETS"); v != "" {
		c.TargetCurrencies = splitList(v)
	}
	if v := os.Getenv("PRICELENS_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("PRICELENS_LOCALE"); v != "" {
		c.Locale = v
	}
	if v := os.Getenv("PRICELENS_SQLITE_PATH"); v != "" {
		c.Rates.SQLitePath = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Rates.Proxy = v
	}
	if v := os.Getenv("PRICELENS_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) applyDefaults() {
	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}
	if c.BaseCurrency == "" {
		c.BaseCurrency = "EUR"
	}
	c.BaseCurrency = currency.Normalize(c.BaseCurrency)
	if len(c.TargetCurrencies) == 0 {
		c.TargetCurrencies = []string{c.BaseCurrency}
	}
	for i, t := range c.TargetCurrencies {
		c.TargetCurrencies[i] = currency.Normalize(t)
	}
	if c.Mode == "" {
		c.Mode = string(model.ModeReplace)
	}
	if c.Locale == "" {
		c.Locale = "en-US"
	}
	if c.Watcher.Throttle == 0 {
		c.Watcher.Throttle = 500 * time.Millisecond
	}
	if len(c.Rates.Sources) == 0 {
		c.Rates.Sources = []string{"ecb", "boc", "bcb"}
	}
	if c.Rates.CacheTTL == 0 {
		c.Rates.CacheTTL = 24 * time.Hour
	}
	if c.Rates.RefreshCron == "" {
		c.Rates.RefreshCron = "0 0 */6 * * *"
	}
	if c.Rates.RequestsPerSecond == 0 {
		c.Rates.RequestsPerSecond = 2
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsEnabled reports whether the pipeline should run.
func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// StaticRates returns rates.static as decimals.
func (c *Config) StaticRates() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(c.Rates.Static))
	for code, r := range c.Rates.Static {
		out[strings.ToUpper(code)] = decimal.NewFromFloat(r)
	}
	return out
}

// Validate checks that all fields are usable.
func (c *Config) Validate() error {
	if !isoCode.MatchString(c.BaseCurrency) {
		return errors.Errorf("%w: base_currency %q is not a 3-letter code", ErrInvalid, c.BaseCurrency)
	}
	if len(c.TargetCurrencies) == 0 {
		return errors.Errorf("%w: target_currencies must not be empty", ErrInvalid)
	}
	for _, t := range c.TargetCurrencies {
		if !isoCode.MatchString(t) {
			return errors.Errorf("%w: target currency %q is not a 3-letter code", ErrInvalid, t)
		}
		if !currency.IsKnown(t) {
			log.Debug().Str("currency", t).Msg("target currency has no symbol; amounts written in it are not detected")
		}
	}
	if !model.Mode(c.Mode).Valid() {
		return errors.Errorf("%w: mode must be replace or badge, got %q", ErrInvalid, c.Mode)
	}
	if c.Watcher.Throttle <= 0 {
		return errors.Errorf("%w: watcher.throttle must be positive", ErrInvalid)
	}
	for _, s := range c.Rates.Sources {
		if !knownSources[strings.ToLower(s)] {
			return errors.Errorf("%w: unknown rate source %q", ErrInvalid, s)
		}
		if strings.EqualFold(s, "static") && len(c.Rates.Static) == 0 {
			return errors.Errorf("%w: rates.static is required by the static source", ErrInvalid)
		}
	}
	for code, r := range c.Rates.Static {
		if r <= 0 {
			return errors.Errorf("%w: static rate for %s must be positive", ErrInvalid, code)
		}
	}
	if c.Rates.CacheTTL < 0 {
		return errors.Errorf("%w: rates.cache_ttl must not be negative", ErrInvalid)
	}
	return nil
}
