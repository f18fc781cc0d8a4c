package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gitlab.com/tozd/go/errors"
	_ "modernc.org/sqlite"

	"PriceLens/internal/rates"
)

// SQLiteCache persists the latest table per base currency to a SQLite database.
type SQLiteCache struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteCache opens (or creates) the SQLite database and runs migrations.
func NewSQLiteCache(dbPath string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Errorf("set WAL mode: %w", err)
	}

	c := &SQLiteCache{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, errors.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite rate cache opened")
	return c, nil
}

func (c *SQLiteCache) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rate_tables (
			base       TEXT PRIMARY KEY,
			source     TEXT NOT NULL,
			fetched_at INTEGER NOT NULL,
			rates      TEXT NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := c.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *SQLiteCache) Get(ctx context.Context, base string) (rates.Table, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		source    string
		fetchedAt int64
		raw       string
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT source, fetched_at, rates FROM rate_tables WHERE base = ?`,
		strings.ToUpper(base),
	).Scan(&source, &fetchedAt, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return rates.Table{}, false, nil
	}
	if err != nil {
		return rates.Table{}, false, errors.Errorf("query rate table: %w", err)
	}

	var m map[string]decimal.Decimal
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return rates.Table{}, false, errors.Errorf("decode rates: %w", err)
	}
	return rates.NewTable(base, m, source, time.UnixMilli(fetchedAt).UTC()), true, nil
}

func (c *SQLiteCache) Put(ctx context.Context, t rates.Table) error {
	raw, err := json.Marshal(t.Rates)
	if err != nil {
		return errors.Errorf("encode rates: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO rate_tables (base, source, fetched_at, rates) VALUES (?, ?, ?, ?)
		 ON CONFLICT(base) DO UPDATE SET source = excluded.source, fetched_at = excluded.fetched_at, rates = excluded.rates`,
		strings.ToUpper(t.Base), t.Source, t.FetchedAt.UnixMilli(), string(raw),
	)
	if err != nil {
		return errors.Errorf("upsert rate table: %w", err)
	}
	return nil
}

// Bases lists the cached base currencies.
func (c *SQLiteCache) Bases(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.QueryContext(ctx, `SELECT base FROM rate_tables ORDER BY base`)
	if err != nil {
		return nil, errors.Errorf("query bases: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, errors.Errorf("scan base: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
