// Package main is the entry point for the tombstone CLI and API server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tombstone/internal/config"
	"tombstone/pkg/logger"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configFile string
	jsonOutput bool

	v   = config.New()
	cfg *config.Config
	log *logger.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tombstone",
	Short: "Soft-delete lifecycle engine",
	Long: `tombstone manages records whose deletion is reversible. Destroying a
record marks it with an instant and cascades to its dependents; restoring it
reverses exactly that cascade.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default: ./tombstone.yaml or /etc/tombstone/tombstone.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&jsonOutput, "json", false, "print records as JSON")
	if err := v.BindPFlag("log.level", flags.Lookup("log-level")); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(typesCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(deleteCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "tombstone", version)
	},
}

// initConfig loads configuration and builds the logger for every command but version.
func initConfig(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	loaded, err := config.Load(v, configFile)
	if err != nil {
		return err
	}
	cfg = loaded

	log, err = logger.New(cfg.Log.Logger())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	cmd.SetContext(logger.WithLogger(cmd.Context(), log))
	return nil
}
