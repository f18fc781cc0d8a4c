package cache

import (
	"context"

	"PriceLens/internal/rates"
)

// NoopCache never stores anything; every lookup misses.
type NoopCache struct{}

func NewNoopCache() *NoopCache { return &NoopCache{} }

func (n *NoopCache) Get(context.Context, string) (rates.Table, bool, error) {
	return rates.Table{}, false, nil
}
func (n *NoopCache) Put(context.Context, rates.Table) error { return nil }
func (n *NoopCache) Close() error                           { return nil }
