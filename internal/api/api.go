// Package api exposes conversion, parsing and rate lookups over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"PriceLens/internal/currency"
	"PriceLens/internal/dom"
	"PriceLens/internal/loop"
	"PriceLens/internal/model"
	"PriceLens/internal/parser"
	"PriceLens/internal/pipeline"
	"PriceLens/internal/rates"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 5 << 20

// Response headers carrying conversion counters.
const (
	HeaderDetected = "X-PriceLens-Detected"
	HeaderRendered = "X-PriceLens-Rendered"
	HeaderSkipped  = "X-PriceLens-Skipped"
)

// RateProvider supplies rate tables by base currency.
type RateProvider interface {
	GetRates(ctx context.Context, base string) (rates.Table, error)
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ParseRequest is the body of POST /api/v1/parse.
type ParseRequest struct {
	Text string `json:"text"`
}

// ParseResponse lists the matches found in the request text.
type ParseResponse struct {
	Matches []model.PriceMatch `json:"matches"`
}

// Server serves the HTTP API.
type Server struct {
	provider RateProvider
	defaults pipeline.Settings
	sched    loop.Scheduler
}

// NewServer creates a Server. Conversions use defaults unless the query overrides them.
func NewServer(provider RateProvider, defaults pipeline.Settings, sched loop.Scheduler) *Server {
	return &Server{provider: provider, defaults: defaults, sched: sched}
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/rates", s.handleRates)
		r.Post("/convert", s.handleConvert)
		r.Post("/parse", s.handleParse)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "pricelens",
	})
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	base := currency.Normalize(r.URL.Query().Get("base"))
	if base == "" {
		base = s.defaults.BaseCurrency
	}

	t, err := s.provider.GetRates(r.Context(), base)
	if err != nil {
		log.Error().Err(err).Str("base", base).Msg("rates lookup failed")
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "rates_unavailable", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	settings, errResp := s.settingsFrom(r)
	if errResp != nil {
		writeJSON(w, http.StatusBadRequest, errResp)
		return
	}

	doc, err := dom.Parse(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_document", Message: err.Error()})
		return
	}

	stats, err := pipeline.New(doc, s.sched, s.provider, settings).Convert(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("conversion failed")
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "rates_unavailable", Message: err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "render_failed", Message: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set(HeaderDetected, strconv.Itoa(stats.Detected))
	w.Header().Set(HeaderRendered, strconv.Itoa(stats.Rendered))
	w.Header().Set(HeaderSkipped, strconv.Itoa(stats.Skipped))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, &buf)
}

func (s *Server) settingsFrom(r *http.Request) (pipeline.Settings, *ErrorResponse) {
	settings := s.defaults
	settings.Enabled = true
	q := r.URL.Query()

	if v := q.Get("mode"); v != "" {
		settings.Mode = model.Mode(strings.ToLower(v))
		if !settings.Mode.Valid() {
			return settings, &ErrorResponse{Error: "invalid_mode", Message: "mode must be replace or badge"}
		}
	}
	if v := q.Get("base"); v != "" {
		settings.BaseCurrency = currency.Normalize(v)
	}
	if v := q.Get("targets"); v != "" {
		var targets []string
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				targets = append(targets, currency.Normalize(t))
			}
		}
		settings.TargetCurrencies = targets
	}
	if v := q.Get("locale"); v != "" {
		settings.Locale = v
	}
	return settings, nil
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request_body", Message: err.Error()})
		return
	}
	matches := parser.Find(req.Text)
	if matches == nil {
		matches = []model.PriceMatch{}
	}
	writeJSON(w, http.StatusOK, ParseResponse{Matches: matches})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}
