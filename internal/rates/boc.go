package rates

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
	"gitlab.com/tozd/go/errors"
)

const bocURL = "https://www.bankofcanada.ca/valet"

// BoCSource reads daily rates from the Bank of Canada Valet API. Valet quotes
// CAD per unit of foreign currency; Fetch inverts them to units per CAD.
type BoCSource struct {
	httpSource
}

// NewBoCSource creates a BoCSource.
func NewBoCSource(opts ...Option) *BoCSource {
	return &BoCSource{httpSource: newHTTPSource(bocURL, opts)}
}

func (s *BoCSource) Name() string { return "boc" }
func (s *BoCSource) Base() string { return "CAD" }

type valetResponse struct {
	Observations []map[string]json.RawMessage `json:"observations"`
}

type valetValue struct {
	V decimal.Decimal `json:"v"`
}

func (s *BoCSource) Fetch(ctx context.Context) (map[string]decimal.Decimal, error) {
	// A week back covers weekends and holidays; the latest observation wins.
	start := s.now().AddDate(0, 0, -7).Format("2006-01-02")
	u := s.baseURL + "/observations/group/FX_RATES_DAILY/json?start_date=" + start

	var resp valetResponse
	if err := s.getJSON(ctx, u, &resp); err != nil {
		return nil, errors.Errorf("boc: %w", err)
	}
	return parseValet(&resp)
}

func parseValet(resp *valetResponse) (map[string]decimal.Decimal, error) {
	if len(resp.Observations) == 0 {
		return nil, errors.New("boc: no observations in response")
	}
	latest := resp.Observations[len(resp.Observations)-1]

	one := decimal.NewFromInt(1)
	out := make(map[string]decimal.Decimal)
	for key, raw := range latest {
		// FXUSDCAD
		if len(key) != 8 || !strings.HasPrefix(key, "FX") || !strings.HasSuffix(key, "CAD") {
			continue
		}
		var v valetValue
		if err := json.Unmarshal(raw, &v); err != nil || !v.V.IsPositive() {
			continue
		}
		out[key[2:5]] = one.Div(v.V)
	}
	if len(out) == 0 {
		return nil, errors.New("boc: no rates in latest observation")
	}
	return out, nil
}
