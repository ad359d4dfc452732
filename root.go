package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/serroba/online-canvas/internal/config"
)

var (
	verbose    bool
	configFile string

	settings = config.New()
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "online-canvas",
	Short: "Real-time collaborative drawing relay and peers",
	Long: `online-canvas runs the relay that replicates shared canvases between
peers, finds relays on the local network and joins canvases headlessly.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(settings, configFile)
		if err != nil {
			return err
		}

		if verbose {
			loaded.Log.Level = "debug"
		}

		logger, err := loaded.Log.NewLogger(os.Stderr)
		if err != nil {
			return err
		}

		slog.SetDefault(logger)
		cfg = loaded

		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bindFlag ties a command flag to a configuration key.
func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a config file")
}
