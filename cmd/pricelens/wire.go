package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"gitlab.com/tozd/go/errors"

	"PriceLens/internal/cache"
	"PriceLens/internal/config"
	"PriceLens/internal/model"
	"PriceLens/internal/pipeline"
	"PriceLens/internal/rates"
)

func buildSources(c *config.Config) ([]rates.Source, error) {
	opts := []rates.Option{rates.WithRequestsPerSecond(c.Rates.RequestsPerSecond)}
	if c.Rates.Proxy != "" {
		opts = append(opts, rates.WithProxy(c.Rates.Proxy))
	}

	var sources []rates.Source
	for _, name := range c.Rates.Sources {
		if strings.EqualFold(name, "static") {
			sources = append(sources, rates.NewStaticSource(c.BaseCurrency, c.StaticRates()))
			continue
		}
		src, err := rates.NewSource(name, opts...)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func buildCache(c *config.Config) rates.Cache {
	if c.Rates.SQLitePath == "" {
		return cache.NewMemoryCache()
	}
	if err := os.MkdirAll(filepath.Dir(c.Rates.SQLitePath), 0o755); err != nil {
		log.Warn().Err(err).Msg("create cache directory failed, using memory cache")
		return cache.NewMemoryCache()
	}
	sc, err := cache.NewSQLiteCache(c.Rates.SQLitePath)
	if err != nil {
		log.Warn().Err(err).Msg("init sqlite cache failed, using noop")
		return cache.NewNoopCache()
	}
	return sc
}

func buildProvider(c *config.Config) (*rates.Provider, rates.Cache, error) {
	sources, err := buildSources(c)
	if err != nil {
		return nil, nil, errors.Errorf("building rate sources: %w", err)
	}
	rc := buildCache(c)
	p := rates.NewProvider(rates.NewMultiSource(sources...), rc, rates.WithTTL(c.Rates.CacheTTL))
	return p, rc, nil
}

func settingsFrom(c *config.Config) pipeline.Settings {
	return pipeline.Settings{
		Enabled:          c.IsEnabled(),
		BaseCurrency:     c.BaseCurrency,
		TargetCurrencies: c.TargetCurrencies,
		Mode:             model.Mode(c.Mode),
		Locale:           c.Locale,
	}
}
