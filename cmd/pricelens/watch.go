package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"PriceLens/internal/feed"
	"PriceLens/internal/format"
	"PriceLens/internal/loop"
	"PriceLens/internal/pipeline"
	"PriceLens/internal/rates"
	"PriceLens/internal/scheduler"
	"PriceLens/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var (
		feedDir string
		out     string
	)
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Keep a document converted while fragments are appended to it",
		Long: `Watch loads a document, converts it, then watches a feed directory.
Every HTML file dropped into the directory is appended to the document body;
new prices are detected and rendered, and the output file is rewritten.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if feedDir == "" {
				return errors.New("--feed is required")
			}
			if out == "" {
				return errors.New("--out is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			provider, rc, err := buildProvider(cfg)
			if err != nil {
				return err
			}
			defer rc.Close()

			l := loop.New(0)
			p := pipeline.New(doc, l, provider, settingsFrom(cfg),
				pipeline.WithWatcherOptions(watcher.WithThrottle(cfg.Watcher.Throttle)),
				pipeline.OnBatch(func(s pipeline.Stats) {
					if err := writeDocument(doc, out); err != nil {
						log.Error().Err(err).Msg("write output")
						return
					}
					log.Info().Msg(format.Stats(s.Detected, s.Rendered, s.Skipped))
				}),
			)

			// The loop outlives gctx so the pipeline can be stopped on it during shutdown.
			defer runLoop(l, p.Stop)()

			g, gctx := errgroup.WithContext(ctx)

			var startErr error
			if err := l.Do(gctx, func() { startErr = p.Start(gctx) }); err != nil {
				return err
			}
			if startErr != nil {
				return errors.Errorf("starting pipeline: %w", startErr)
			}
			if err := l.Do(gctx, func() { startErr = writeDocument(doc, out) }); err != nil {
				return err
			}
			if startErr != nil {
				return startErr
			}

			sched := scheduler.NewScheduler(gctx, provider, cfg.BaseCurrency, func(t rates.Table) {
				l.Post(func() { p.SetRates(t) })
			})
			if err := sched.RegisterRefresh(cfg.Rates.RefreshCron); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()

			fd, err := feed.New(feedDir, func(path, markup string) {
				l.Post(func() {
					nodes, err := doc.ParseFragment(markup)
					if err != nil {
						log.Warn().Err(err).Str("path", filepath.Base(path)).Msg("skip fragment")
						return
					}
					parent := doc.Body()
					if parent == nil {
						parent = doc.Root()
					}
					doc.AppendChildren(parent, nodes)
				})
			})
			if err != nil {
				return err
			}
			g.Go(func() error { return fd.Run(gctx) })

			log.Info().Str("feed", feedDir).Str("out", out).Msg("pricelens is watching. Press Ctrl+C to stop.")
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			log.Info().Msg("pricelens stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&feedDir, "feed", "", "directory watched for HTML fragments")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file rewritten after each render batch")
	return cmd
}

// runLoop runs l in the background. The returned function runs onStop on the
// loop, then stops the loop and waits for it to exit.
func runLoop(l *loop.Loop, onStop func()) (shutdown func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	return func() {
		if err := l.Do(ctx, onStop); err != nil {
			log.Warn().Err(err).Msg("stop pipeline")
		}
		cancel()
		<-done
	}
}
