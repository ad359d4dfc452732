package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/serroba/online-canvas/internal/discovery"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List relays announced on the local network",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		relays, err := discovery.Browse(cmd.Context(), discovery.BrowseConfig{
			Timeout: cfg.Discovery.Timeout,
			Logger:  slog.Default(),
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()

		if len(relays) == 0 {
			fmt.Fprintln(out, "no relays found")

			return nil
		}

		for _, r := range relays {
			fmt.Fprintf(out, "%s\t%s\t%s\n", r.Instance, r.Addr, r.BaseURL())
		}

		return nil
	},
}

func init() {
	discoverCmd.Flags().Duration("timeout", discovery.DefaultBrowseTimeout, "How long to listen for answers")
	bindFlag(settings, discoverCmd, "discovery.timeout", "timeout")

	rootCmd.AddCommand(discoverCmd)
}
