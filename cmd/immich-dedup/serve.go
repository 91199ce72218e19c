package main

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/yourusername/immich-dedup/pkg/dedup"
	"github.com/yourusername/immich-dedup/pkg/immich"
	"github.com/yourusername/immich-dedup/pkg/journal"
	"github.com/yourusername/immich-dedup/pkg/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP and photo frame server",
		Long: `Serve the duplicate cleanup tools over MCP (streamable HTTP at /mcp), a
random photo endpoint for picture frames at /immich/, and health checks.

When sweep_cron is configured, cleanup also runs on that schedule.

Example:
  immich-dedup serve --listen :8080
  curl 'http://localhost:8080/immich/?names=frodo&width=600&height=448' > frame.jpg`,
		Args: cobra.NoArgs,
		RunE: a.runServe,
	}

	cmd.Flags().String("listen", "", "Address to listen on")

	return cmd
}

func (a *app) runServe(cmd *cobra.Command, args []string) error {
	server.Version = version

	client := immich.NewClient(a.cfg.URL, a.cfg.APIKey, a.cfg.Timeout)

	runs, err := journal.Open(a.cfg.JournalPath)
	if err != nil {
		return err
	}
	defer runs.Close()

	finder := dedup.NewFinder(client, a.cfg.FinderSettings(), runs)

	srv, err := server.New(a.cfg, client, finder)
	if err != nil {
		return err
	}

	log.Info().
		Str("version", version).
		Str("commit", commit).
		Str("built_at", date).
		Str("immich", client.BaseURL()).
		Msg("Starting immich-dedup server")

	if err := srv.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info().Msg("Server exited gracefully")
	return nil
}
