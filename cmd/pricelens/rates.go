package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"PriceLens/internal/format"
)

func newRatesCmd() *cobra.Command {
	var (
		base    string
		refresh bool
	)
	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Print the current rate table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if base == "" {
				base = cfg.BaseCurrency
			}
			base = strings.ToUpper(base)

			provider, rc, err := buildProvider(cfg)
			if err != nil {
				return err
			}
			defer rc.Close()

			get := provider.GetRates
			if refresh {
				get = provider.Refresh
			}
			t, err := get(cmd.Context(), base)
			if err != nil {
				return errors.Errorf("loading rates: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), format.Table(t.Base, t.Rates, t.Source, t.FetchedAt))
			return nil
		},
	}
	cmd.Flags().StringVarP(&base, "base", "b", "", "base currency (default from config)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the cache")
	return cmd
}
