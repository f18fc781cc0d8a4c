package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gitlab.com/tozd/go/errors"

	"PriceLens/internal/rates"
)

// Refresher fetches a fresh rate table, bypassing any cache.
type Refresher interface {
	Refresh(ctx context.Context, base string) (rates.Table, error)
}

// Scheduler manages the periodic rate refresh.
type Scheduler struct {
	Cron     *cron.Cron
	Provider Refresher
	Base     string
	Ctx      context.Context

	apply func(rates.Table)
}

// NewScheduler creates a Scheduler. apply receives every refreshed table; callers
// that own an event loop post the swap onto it.
func NewScheduler(ctx context.Context, provider Refresher, base string, apply func(rates.Table)) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Provider: provider,
		Base:     base,
		Ctx:      ctx,
		apply:    apply,
	}
}

// RegisterRefresh registers the refresh task on a six-field cron spec.
func (s *Scheduler) RegisterRefresh(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.refreshTask); err != nil {
		return errors.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// RefreshNow runs the refresh immediately.
func (s *Scheduler) RefreshNow() error {
	t, err := s.Provider.Refresh(s.Ctx, s.Base)
	if err != nil {
		return errors.Errorf("refresh rates: %w", err)
	}
	if s.apply != nil {
		s.apply(t)
	}
	log.Info().Str("base", t.Base).Str("source", t.Source).Int("currencies", len(t.Rates)).Msg("rates refreshed")
	return nil
}

func (s *Scheduler) refreshTask() {
	if err := s.RefreshNow(); err != nil {
		log.Error().Err(err).Msg("scheduled rate refresh failed")
	}
}
