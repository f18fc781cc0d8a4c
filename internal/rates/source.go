package rates

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/time/rate"
)

// Source is one upstream publisher of rates against a fixed base currency.
type Source interface {
	Name() string
	Base() string
	Fetch(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Option configures an HTTP-backed source.
type Option func(*httpSource)

// WithBaseURL points the source at another endpoint, mostly for tests.
func WithBaseURL(u string) Option {
	return func(h *httpSource) { h.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *httpSource) { h.client = c }
}

// WithProxy routes requests through proxyURL.
func WithProxy(proxyURL string) Option {
	return func(h *httpSource) { h.client = newHTTPClient(proxyURL) }
}

// WithRequestsPerSecond limits outgoing requests. Zero or less disables the limit.
func WithRequestsPerSecond(rps float64) Option {
	return func(h *httpSource) {
		if rps <= 0 {
			h.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		h.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithClock overrides the time used to build date-scoped queries.
func WithClock(now func() time.Time) Option {
	return func(h *httpSource) { h.now = now }
}

type httpSource struct {
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
	now     func() time.Time
}

func newHTTPSource(defaultURL string, opts []Option) httpSource {
	h := httpSource{
		client:  newHTTPClient(""),
		limiter: rate.NewLimiter(rate.Limit(2), 1),
		baseURL: defaultURL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

func newHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
}

func (h *httpSource) getJSON(ctx context.Context, u string, v any) error {
	if err := h.limiter.Wait(ctx); err != nil {
		return errors.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "PriceLens/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return errors.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Errorf("reading body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Errorf("decoding response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// StaticSource serves a fixed table, typically from configuration.
type StaticSource struct {
	base  string
	rates map[string]decimal.Decimal
}

// NewStaticSource creates a StaticSource quoting rates against base.
func NewStaticSource(base string, rates map[string]decimal.Decimal) *StaticSource {
	return &StaticSource{base: strings.ToUpper(base), rates: rates}
}

func (s *StaticSource) Name() string { return "static" }
func (s *StaticSource) Base() string { return s.base }

func (s *StaticSource) Fetch(context.Context) (map[string]decimal.Decimal, error) {
	if len(s.rates) == 0 {
		return nil, errors.New("static: no rates configured")
	}
	out := make(map[string]decimal.Decimal, len(s.rates))
	for k, v := range s.rates {
		out[strings.ToUpper(k)] = v
	}
	return out, nil
}

// NewSource builds a network source by name: "ecb", "boc" or "bcb".
func NewSource(name string, opts ...Option) (Source, error) {
	switch strings.ToLower(name) {
	case "ecb":
		return NewECBSource(opts...), nil
	case "boc":
		return NewBoCSource(opts...), nil
	case "bcb":
		return NewBCBSource(opts...), nil
	default:
		return nil, errors.Errorf("unknown rate source %q", name)
	}
}
