package rates

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sdmxFixture = `{
  "dataSets": [{"series": {
    "0:0:0:0:0": {"observations": {"0": [1.6235, 0, 0, null, null]}},
    "0:1:0:0:0": {"observations": {"0": [1.0812, 0, 0, null, null]}},
    "0:2:0:0:0": {"observations": {}}
  }}],
  "structure": {"dimensions": {"series": [
    {"id": "FREQ", "values": [{"id": "D"}]},
    {"id": "CURRENCY", "values": [{"id": "AUD"}, {"id": "USD"}, {"id": "JPY"}]},
    {"id": "CURRENCY_DENOM", "values": [{"id": "EUR"}]}
  ]}}
}`

func TestECBSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/EXR/D..EUR.SP00.A", r.URL.Path)
		assert.Equal(t, "jsondata", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("lastNObservations"))
		fmt.Fprint(w, sdmxFixture)
	}))
	defer srv.Close()

	src := NewECBSource(WithBaseURL(srv.URL), WithRequestsPerSecond(0))
	assert.Equal(t, "EUR", src.Base())

	got, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.True(t, got["USD"].Equal(d("1.0812")))
	assert.True(t, got["AUD"].Equal(d("1.6235")))
}

func TestECBSource_MissingCurrencyDimension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"dataSets":[{"series":{}}],"structure":{"dimensions":{"series":[{"id":"FREQ"}]}}}`)
	}))
	defer srv.Close()

	_, err := NewECBSource(WithBaseURL(srv.URL)).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "currency dimension")
}

func TestBoCSource_Fetch(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/observations/group/FX_RATES_DAILY/json", r.URL.Path)
		assert.Equal(t, "2026-10-12", r.URL.Query().Get("start_date"))
		fmt.Fprint(w, `{"observations":[
			{"d":"2026-10-15","FXUSDCAD":{"v":"1.2000"}},
			{"d":"2026-10-16","FXUSDCAD":{"v":"1.2500"},"FXEURCAD":{"v":"1.6000"},"FXBAD":{"v":"9"},"FXJPYCAD":{"v":"0"}}
		]}`)
	}))
	defer srv.Close()

	src := NewBoCSource(WithBaseURL(srv.URL), WithClock(func() time.Time { return now }))
	assert.Equal(t, "CAD", src.Base())

	got, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "0.8000", got["USD"].StringFixed(4), "CAD per USD is inverted")
	assert.Equal(t, "0.6250", got["EUR"].StringFixed(4))
}

func TestBoCSource_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"observations":[]}`)
	}))
	defer srv.Close()

	_, err := NewBoCSource(WithBaseURL(srv.URL)).Fetch(context.Background())
	assert.Error(t, err)
}

func TestBCBSource_Fetch(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/CotacaoMoedaDia(moeda=@moeda,dataCotacao=@dataCotacao)"))
		q := r.URL.Query()
		assert.Equal(t, "'10-19-2026'", q.Get("@dataCotacao"))
		assert.Equal(t, "json", q.Get("$format"))
		switch q.Get("@moeda") {
		case "'USD'":
			fmt.Fprint(w, `{"value":[{"cotacaoCompra":4.8,"cotacaoVenda":4.9},{"cotacaoCompra":4.9,"cotacaoVenda":5.1}]}`)
		case "'EUR'":
			fmt.Fprint(w, `{"value":[{"cotacaoCompra":5.4,"cotacaoVenda":5.6}]}`)
		case "'CHF'":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			fmt.Fprint(w, `{"value":[]}`)
		}
	}))
	defer srv.Close()

	src := NewBCBSource(WithBaseURL(srv.URL), WithRequestsPerSecond(0), WithClock(func() time.Time { return now }))
	src.currencies = []string{"USD", "EUR", "JPY", "CHF"}
	assert.Equal(t, "BRL", src.Base())

	got, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, calls.Load())
	assert.Len(t, got, 2)
	assert.Equal(t, "0.2000", got["USD"].StringFixed(4), "last bulletin mid is inverted")
	assert.Equal(t, "0.1818", got["EUR"].StringFixed(4))
}

func TestBCBSource_NoQuotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value":[]}`)
	}))
	defer srv.Close()

	src := NewBCBSource(WithBaseURL(srv.URL), WithRequestsPerSecond(0))
	src.currencies = []string{"USD"}
	_, err := src.Fetch(context.Background())
	assert.Error(t, err)
}

func TestHTTPSource_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewECBSource(WithBaseURL(srv.URL)).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPSource_ContextCancelled(t *testing.T) {
	src := NewECBSource(WithBaseURL("http://127.0.0.1:0"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.Fetch(ctx)
	assert.Error(t, err)
}

func TestStaticSource(t *testing.T) {
	src := NewStaticSource("eur", map[string]decimal.Decimal{"usd": d("1.1")})
	assert.Equal(t, "EUR", src.Base())
	assert.Equal(t, "static", src.Name())

	got, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, got["USD"].Equal(d("1.1")))

	_, err = NewStaticSource("EUR", nil).Fetch(context.Background())
	assert.Error(t, err)
}

func TestNewSource(t *testing.T) {
	for _, name := range []string{"ecb", "BoC", "bcb"} {
		src, err := NewSource(name)
		require.NoError(t, err)
		assert.Equal(t, strings.ToLower(name), src.Name())
	}
	_, err := NewSource("yahoo")
	assert.Error(t, err)
}
