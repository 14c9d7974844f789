package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errCacheDisabled = errors.New("cache backend is none; set --cache-backend")

func (a *app) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the periodogram cache.",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show the number of cached periodograms.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				store, err := a.openCache(cmd.Context())
				if err != nil {
					return err
				}
				if store == nil {
					return errCacheDisabled
				}
				defer func() { _ = store.Close() }()
				n, err := store.Len(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "backend %s, table %s: %d periodograms\n", store.Backend(), a.settings.CacheTable, n)
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete every cached periodogram.",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				store, err := a.openCache(cmd.Context())
				if err != nil {
					return err
				}
				if store == nil {
					return errCacheDisabled
				}
				defer func() { _ = store.Close() }()
				if err := store.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(a.out, "cache cleared")
				return nil
			},
		},
	)
	return cmd
}
