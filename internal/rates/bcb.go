package rates

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

const bcbURL = "https://olinda.bcb.gov.br/olinda/servico/PTAX/versao/v1/odata"

// BCBCurrencies are the codes queried from the PTAX service.
var BCBCurrencies = []string{
	"USD", "EUR", "GBP", "JPY", "CHF", "CAD", "AUD", "NZD",
	"ARS", "CLP", "COP", "MXN", "PEN", "UYU", "BOB", "PYG",
	"DKK", "NOK", "SEK", "CNY", "INR", "RUB", "ZAR", "TRY",
}

// BCBSource reads PTAX bulletins from Banco Central do Brasil, one request per
// currency. The mid of buy and sell quotes (BRL per unit) is inverted to units per BRL.
type BCBSource struct {
	httpSource
	currencies []string
}

// NewBCBSource creates a BCBSource for BCBCurrencies.
func NewBCBSource(opts ...Option) *BCBSource {
	return &BCBSource{httpSource: newHTTPSource(bcbURL, opts), currencies: BCBCurrencies}
}

func (s *BCBSource) Name() string { return "bcb" }
func (s *BCBSource) Base() string { return "BRL" }

type ptaxResponse struct {
	Value []struct {
		Buy  decimal.Decimal `json:"cotacaoCompra"`
		Sell decimal.Decimal `json:"cotacaoVenda"`
	} `json:"value"`
}

func (s *BCBSource) Fetch(ctx context.Context) (map[string]decimal.Decimal, error) {
	// PTAX expects MM-DD-YYYY.
	date := s.now().Format("01-02-2006")

	var (
		mu  sync.Mutex
		out = make(map[string]decimal.Decimal)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, code := range s.currencies {
		g.Go(func() error {
			mid, err := s.fetchOne(gctx, code, date)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Debug().Err(err).Str("currency", code).Msg("bcb quote unavailable")
				return nil
			}
			mu.Lock()
			out[code] = decimal.NewFromInt(1).Div(mid)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Errorf("bcb: %w", err)
	}
	if len(out) == 0 {
		return nil, errors.Errorf("bcb: no quotes for %s", date)
	}
	return out, nil
}

func (s *BCBSource) fetchOne(ctx context.Context, code, date string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("@moeda", fmt.Sprintf("'%s'", code))
	q.Set("@dataCotacao", fmt.Sprintf("'%s'", date))
	q.Set("$format", "json")
	u := s.baseURL + "/CotacaoMoedaDia(moeda=@moeda,dataCotacao=@dataCotacao)?" + q.Encode()

	var resp ptaxResponse
	if err := s.getJSON(ctx, u, &resp); err != nil {
		return decimal.Zero, err
	}
	if len(resp.Value) == 0 {
		return decimal.Zero, errors.New("empty bulletin")
	}
	// Intraday bulletins accumulate; the last one is the closing quote.
	last := resp.Value[len(resp.Value)-1]
	mid := last.Buy.Add(last.Sell).Div(decimal.NewFromInt(2))
	if !mid.IsPositive() {
		return decimal.Zero, errors.New("non-positive quote")
	}
	return mid, nil
}
