package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the satellite catalog",
	}

	var (
		limit  int
		output string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List catalog entries with their TLE age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validOutput(output); err != nil {
				return err
			}
			cat := a.catalog(a.logger(cmd.ErrOrStderr()))
			listing, err := cat.List(cmd.Context(), limit, time.Now().UTC())
			if err != nil {
				return err
			}
			if output == outputText {
				renderListing(cmd.OutOrStdout(), listing)
				return nil
			}
			return writeStructured(cmd.OutOrStdout(), output, listing)
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum entries to show (0 for all)")
	list.Flags().StringVarP(&output, "output", "o", outputText, "output format (text, json, yaml)")

	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Download the catalog and write a fresh snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := a.catalog(a.logger(cmd.ErrOrStderr()))
			n, err := cat.Refresh(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %d entries fetched, snapshot written to %s\n", n, a.cfg.Catalog.SnapshotDir)
			return nil
		},
	}

	cmd.AddCommand(list, refresh)
	return cmd
}
