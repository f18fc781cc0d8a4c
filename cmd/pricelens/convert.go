package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"PriceLens/internal/dom"
	"PriceLens/internal/format"
	"PriceLens/internal/loop"
	"PriceLens/internal/model"
	"PriceLens/internal/pipeline"
)

func newConvertCmd() *cobra.Command {
	var (
		mode string
		out  string
	)
	cmd := &cobra.Command{
		Use:   "convert <file|->",
		Short: "Convert the prices in an HTML document once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			settings := settingsFrom(cfg)
			if mode != "" {
				settings.Mode = model.Mode(mode)
				if !settings.Mode.Valid() {
					return errors.Errorf("invalid mode %q", mode)
				}
			}

			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}

			provider, rc, err := buildProvider(cfg)
			if err != nil {
				return err
			}
			defer rc.Close()

			stats, err := pipeline.New(doc, loop.New(0), provider, settings).Convert(ctx)
			if err != nil {
				return errors.Errorf("converting document: %w", err)
			}

			if err := writeDocument(doc, out); err != nil {
				return err
			}
			log.Info().Msg(format.Stats(stats.Detected, stats.Rendered, stats.Skipped))
			return nil
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "presentation mode: replace or badge")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func readDocument(path string) (*dom.Document, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Errorf("opening document: %w", err)
		}
		defer f.Close()
		r = f
	}
	doc, err := dom.Parse(r)
	if err != nil {
		return nil, errors.Errorf("parsing document: %w", err)
	}
	return doc, nil
}

// writeDocument renders doc to path, or stdout when path is empty. Files are
// replaced atomically so readers never see a partial document.
func writeDocument(doc *dom.Document, path string) error {
	if path == "" {
		return doc.Render(os.Stdout)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pricelens-*")
	if err != nil {
		return errors.Errorf("creating output: %w", err)
	}
	if err := doc.Render(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Errorf("rendering output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Errorf("closing output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return errors.Errorf("replacing output: %w", err)
	}
	return nil
}
