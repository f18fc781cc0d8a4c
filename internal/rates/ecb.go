package rates

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gitlab.com/tozd/go/errors"
)

const ecbURL = "https://data-api.ecb.europa.eu/service/data"

// ECBSource reads euro reference rates from the ECB SDMX data API.
type ECBSource struct {
	httpSource
}

// NewECBSource creates an ECBSource.
func NewECBSource(opts ...Option) *ECBSource {
	return &ECBSource{httpSource: newHTTPSource(ecbURL, opts)}
}

func (s *ECBSource) Name() string { return "ecb" }
func (s *ECBSource) Base() string { return "EUR" }

type sdmxResponse struct {
	DataSets []struct {
		Series map[string]struct {
			Observations map[string][]decimal.Decimal `json:"observations"`
		} `json:"series"`
	} `json:"dataSets"`
	Structure struct {
		Dimensions struct {
			Series []struct {
				ID     string `json:"id"`
				Values []struct {
					ID string `json:"id"`
				} `json:"values"`
			} `json:"series"`
		} `json:"dimensions"`
	} `json:"structure"`
}

func (s *ECBSource) Fetch(ctx context.Context) (map[string]decimal.Decimal, error) {
	u := s.baseURL + "/EXR/D..EUR.SP00.A?format=jsondata&lastNObservations=1"

	var resp sdmxResponse
	if err := s.getJSON(ctx, u, &resp); err != nil {
		return nil, errors.Errorf("ecb: %w", err)
	}
	return parseSDMX(&resp)
}

// parseSDMX maps series keys like "0:3:0:0:0" onto the CURRENCY dimension and
// takes the latest observation of each series.
func parseSDMX(resp *sdmxResponse) (map[string]decimal.Decimal, error) {
	if len(resp.DataSets) == 0 {
		return nil, errors.New("ecb: no data sets in response")
	}

	dimIndex := -1
	var codes []string
	for i, dim := range resp.Structure.Dimensions.Series {
		if dim.ID == "CURRENCY" {
			dimIndex = i
			for _, v := range dim.Values {
				codes = append(codes, v.ID)
			}
			break
		}
	}
	if dimIndex < 0 {
		return nil, errors.New("ecb: currency dimension not found")
	}

	out := make(map[string]decimal.Decimal)
	for key, series := range resp.DataSets[0].Series {
		parts := strings.Split(key, ":")
		if len(parts) <= dimIndex {
			continue
		}
		idx, err := strconv.Atoi(parts[dimIndex])
		if err != nil || idx < 0 || idx >= len(codes) {
			continue
		}

		obsKeys := make([]string, 0, len(series.Observations))
		for k := range series.Observations {
			obsKeys = append(obsKeys, k)
		}
		if len(obsKeys) == 0 {
			continue
		}
		sort.Slice(obsKeys, func(i, j int) bool {
			a, _ := strconv.Atoi(obsKeys[i])
			b, _ := strconv.Atoi(obsKeys[j])
			return a < b
		})
		obs := series.Observations[obsKeys[len(obsKeys)-1]]
		if len(obs) == 0 || !obs[0].IsPositive() {
			continue
		}
		out[codes[idx]] = obs[0]
	}
	if len(out) == 0 {
		return nil, errors.New("ecb: no rates in response")
	}
	return out, nil
}
