package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/natefinch/atomic"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/yourusername/immich-dedup/pkg/dedup"
	"github.com/yourusername/immich-dedup/pkg/immich"
	"github.com/yourusername/immich-dedup/pkg/journal"
	"github.com/yourusername/immich-dedup/pkg/ui"
)

type dedupOptions struct {
	dryRun      bool
	checkManual bool
	verbose     bool
	reportPath  string
}

func newDedupCmd(a *app) *cobra.Command {
	opts := &dedupOptions{}

	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Delete duplicate phone uploads",
		Long: `Delete duplicate assets from the Immich server.

Phone uploads that the server's duplicate detection grouped with an asset from
the external library are always deleted. With --check-manual, every asset is
also grouped by file size and original filename, and all but the preferred
copy of each group is deleted.

Example:
  immich-dedup dedup --url http://immich:2283 --api-key KEY --dry-run
  immich-dedup dedup --check-manual --report run.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDedup(cmd, opts)
		},
	}

	cmd.Flags().String("tie-break", "", "Tie-break between equally preferred copies (id, input, strict)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Preview what would be deleted")
	cmd.Flags().BoolVar(&opts.checkManual, "check-manual", false, "Also match assets by file size and original filename")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging and a table of every planned deletion")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "Write the run report as JSON to this file")

	return cmd
}

func (a *app) runDedup(cmd *cobra.Command, opts *dedupOptions) error {
	if opts.verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	client := immich.NewClient(a.cfg.URL, a.cfg.APIKey, a.cfg.Timeout)

	runs, err := journal.Open(a.cfg.JournalPath)
	if err != nil {
		return err
	}
	defer runs.Close()

	finder := dedup.NewFinder(client, a.cfg.FinderSettings(), runs)

	report, runErr := finder.Run(cmd.Context(), dedup.Options{
		CheckManual: opts.checkManual,
		DryRun:      opts.dryRun,
	})

	if opts.reportPath != "" && report != nil {
		if err := writeReport(opts.reportPath, report); err != nil {
			log.Error().Err(err).Str("path", opts.reportPath).Msg("Failed to write report")
		} else {
			log.Info().Str("path", opts.reportPath).Msg("Wrote run report")
		}
	}

	if report != nil {
		printReport(cmd.OutOrStdout(), report, opts.verbose)
	}

	return runErr
}

// writeReport replaces path with the JSON report, so readers never see a partial file.
func writeReport(path string, report *dedup.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	return atomic.WriteFile(path, bytes.NewReader(data))
}

func printReport(w io.Writer, report *dedup.Report, verbose bool) {
	fmt.Fprintln(w, ui.FormatTitle("Duplicate cleanup"))
	fmt.Fprintln(w, ui.RenderKeyValue("Run", report.RunID))

	plan := report.Plan
	if plan == nil {
		fmt.Fprintln(w, ui.FormatError("Run failed before a plan was made"))
		return
	}

	fmt.Fprintln(w, ui.RenderKeyValue("Duplicate groups", strconv.Itoa(plan.DuplicateGroups)))
	fmt.Fprintln(w, ui.RenderKeyValue("Phone upload duplicates", strconv.Itoa(len(plan.DuplicateAPIIDs))))
	if plan.ManualChecked {
		fmt.Fprintln(w, ui.RenderKeyValue("Assets scanned", strconv.Itoa(plan.ScannedAssets)))
		fmt.Fprintln(w, ui.RenderKeyValue("Size and name duplicates", strconv.Itoa(len(plan.ManualIDs()))))
		if n := len(plan.Manual.Ambiguous); n > 0 {
			fmt.Fprintln(w, ui.FormatWarning(fmt.Sprintf("%d ambiguous groups skipped", n)))
		}
	}
	fmt.Fprintln(w)

	if verbose && len(plan.IDs) > 0 {
		fmt.Fprint(w, planTable(plan).Render())
		fmt.Fprintln(w)
	}

	switch {
	case len(plan.IDs) == 0:
		fmt.Fprintln(w, ui.FormatSuccess("No duplicates found"))
	case report.DryRun:
		fmt.Fprintln(w, ui.FormatInfo(fmt.Sprintf("Dry run: %d assets would be deleted", len(plan.IDs))))
	case len(report.Deleted) == len(plan.IDs):
		fmt.Fprintln(w, ui.FormatDeleted(fmt.Sprintf("Deleted %d assets", len(report.Deleted))))
	default:
		fmt.Fprintln(w, ui.FormatError(fmt.Sprintf("Deleted %d of %d assets", len(report.Deleted), len(plan.IDs))))
	}
}

// planTable lists every planned deletion with the asset that is kept in its place.
func planTable(plan *dedup.Plan) *ui.Table {
	table := ui.NewTable(
		ui.TableColumn{Header: "Delete"},
		ui.TableColumn{Header: "Source"},
		ui.TableColumn{Header: "Path", MaxWidth: 48},
		ui.TableColumn{Header: "Size", Align: ui.AlignRight},
		ui.TableColumn{Header: "Keep"},
	)

	for _, id := range plan.DuplicateAPIIDs {
		table.AddRow(id, "duplicates")
	}

	if plan.Manual != nil {
		for _, r := range plan.Manual.Resolutions {
			for _, d := range r.Delete {
				table.AddRow(d.ID, "size+name", d.OriginalPath, strconv.FormatInt(d.FileSize, 10), r.Keep.ID)
			}
		}
	}

	return table
}
