package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/yourusername/immich-dedup/pkg/config"
	"github.com/yourusername/immich-dedup/pkg/ui"
)

// app is shared by the subcommands of one invocation.
type app struct {
	configFile string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "immich-dedup",
		Short: "Remove duplicate photos from an Immich server",
		Long: ui.StyleTitle.Render("immich-dedup") + " - duplicate cleanup for Immich\n\n" +
			"Deletes phone uploads that duplicate photos already imported from the\n" +
			"external library, and optionally assets that share a file size and\n" +
			"original filename.\n\n" +
			"Example usage:\n" +
			"  immich-dedup dedup --dry-run --verbose   # Preview what would be deleted\n" +
			"  immich-dedup dedup --check-manual        # Delete, including size/name matches\n" +
			"  immich-dedup serve                       # Run the MCP and photo frame server\n" +
			"  immich-dedup history                     # Show past cleanup runs",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.initialize,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Path to configuration file")
	flags.String("url", "", "Immich server URL")
	flags.String("api-key", "", "Immich API key")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Log JSON instead of console output")
	flags.String("journal", "", "Path to the run history database")

	rootCmd.AddCommand(
		newDedupCmd(a),
		newServeCmd(a),
		newHistoryCmd(a),
		newVersionCmd(),
	)

	return rootCmd
}

// initialize loads configuration and sets up logging before any subcommand runs.
func (a *app) initialize(cmd *cobra.Command, args []string) error {
	zerolog.TimeFieldFormat = time.RFC3339

	// Version works without any configuration
	if cmd.Name() == "version" {
		return nil
	}

	cfg, err := config.Load(a.configFile, cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg

	setupLogging(cfg.LogLevel, cfg.LogJSON)

	return nil
}

func setupLogging(levelName string, jsonOutput bool) {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		log.Warn().Str("level", levelName).Msg("invalid log level, defaulting to info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if !jsonOutput {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
