package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"PriceLens/internal/api"
	"PriceLens/internal/loop"
	"PriceLens/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the conversion API and refresh rates on a schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = cfg.Server.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			provider, rc, err := buildProvider(cfg)
			if err != nil {
				return err
			}
			defer rc.Close()

			l := loop.New(0)
			srv := &http.Server{
				Addr:              addr,
				Handler:           api.NewServer(provider, settingsFrom(cfg), l).Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			sched := scheduler.NewScheduler(ctx, provider, cfg.BaseCurrency, nil)
			if err := sched.RegisterRefresh(cfg.Rates.RefreshCron); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return l.Run(gctx) })
			g.Go(func() error {
				log.Info().Str("addr", addr).Msg("starting pricelens api")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return errors.Errorf("serving http: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			log.Info().Msg("pricelens api stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
