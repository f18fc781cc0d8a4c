package rates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	name, base string
	rates      map[string]decimal.Decimal
	err        error
}

func (f *fakeSource) Name() string { return f.name }
func (f *fakeSource) Base() string { return f.base }
func (f *fakeSource) Fetch(context.Context) (map[string]decimal.Decimal, error) {
	return f.rates, f.err
}

// blockingSource never answers before its context ends.
type blockingSource struct{ name string }

func (b *blockingSource) Name() string { return b.name }
func (b *blockingSource) Base() string { return "EUR" }
func (b *blockingSource) Fetch(ctx context.Context) (map[string]decimal.Decimal, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestMultiSource_MergesInPriorityOrder(t *testing.T) {
	now := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	m := NewMultiSource(
		&fakeSource{name: "down", base: "EUR", err: errors.New("boom")},
		&fakeSource{name: "primary", base: "EUR", rates: map[string]decimal.Decimal{"USD": d("1.10"), "GBP": d("0.85")}},
		&fakeSource{name: "secondary", base: "USD", rates: map[string]decimal.Decimal{"EUR": d("0.5"), "JPY": d("150")}},
	)
	m.now = func() time.Time { return now }
	assert.Equal(t, []string{"down", "primary", "secondary"}, m.Sources())

	tbl, err := m.Fetch(context.Background(), "eur")
	require.NoError(t, err)
	assert.Equal(t, "EUR", tbl.Base)
	assert.Equal(t, "primary+secondary", tbl.Source)
	assert.Equal(t, now, tbl.FetchedAt)
	assert.True(t, tbl.Rates["EUR"].Equal(decimal.NewFromInt(1)))
	assert.True(t, tbl.Rates["USD"].Equal(d("1.10")), "higher priority source wins")
	assert.Equal(t, "300.00", tbl.Rates["JPY"].StringFixed(2), "secondary rates are rebased onto EUR")
	assert.Equal(t, []string{"EUR", "GBP", "JPY", "USD"}, tbl.Currencies())
}

func TestMultiSource_SkipsSourcesThatCannotQuoteBase(t *testing.T) {
	m := NewMultiSource(
		&fakeSource{name: "cad", base: "CAD", rates: map[string]decimal.Decimal{"USD": d("0.8")}},
		&fakeSource{name: "eur", base: "EUR", rates: map[string]decimal.Decimal{"GBP": d("0.85")}},
	)
	tbl, err := m.Fetch(context.Background(), "GBP")
	require.NoError(t, err)
	assert.Equal(t, "eur", tbl.Source)
	assert.Equal(t, "1.1765", tbl.Rates["EUR"].StringFixed(4))
}

func TestMultiSource_AllFail(t *testing.T) {
	m := NewMultiSource(
		&fakeSource{name: "a", base: "EUR", err: errors.New("a down")},
		&fakeSource{name: "b", base: "CAD", rates: map[string]decimal.Decimal{"USD": d("0.8")}},
	)
	_, err := m.Fetch(context.Background(), "JPY")
	assert.ErrorIs(t, err, ErrAllSourcesFailed)

	_, err = NewMultiSource().Fetch(context.Background(), "EUR")
	assert.ErrorIs(t, err, ErrAllSourcesFailed)
}

func TestMultiSource_SlowSourceTimesOut(t *testing.T) {
	m := NewMultiSource(
		&blockingSource{name: "slow"},
		&fakeSource{name: "fast", base: "EUR", rates: map[string]decimal.Decimal{"USD": d("1.10")}},
	)
	m.timeout = 20 * time.Millisecond

	tbl, err := m.Fetch(context.Background(), "EUR")
	require.NoError(t, err)
	assert.Equal(t, "fast", tbl.Source)
	assert.True(t, tbl.Rates["USD"].Equal(d("1.10")))
}

func TestMultiSource_CallerCancelAborts(t *testing.T) {
	m := NewMultiSource(
		&blockingSource{name: "slow"},
		&fakeSource{name: "fast", base: "EUR", rates: map[string]decimal.Decimal{"USD": d("1.10")}},
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Fetch(ctx, "EUR")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrAllSourcesFailed)
}
