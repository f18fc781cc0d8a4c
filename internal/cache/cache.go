// Package cache stores the latest rate table per base currency.
package cache

import (
	"context"
	"strings"
	"sync"

	"PriceLens/internal/rates"
)

// MemoryCache keeps tables in process memory.
type MemoryCache struct {
	mu     sync.RWMutex
	tables map[string]rates.Table
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{tables: make(map[string]rates.Table)}
}

func (m *MemoryCache) Get(_ context.Context, base string) (rates.Table, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[strings.ToUpper(base)]
	return t, ok, nil
}

func (m *MemoryCache) Put(_ context.Context, t rates.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[strings.ToUpper(t.Base)] = t
	return nil
}

func (m *MemoryCache) Close() error { return nil }
