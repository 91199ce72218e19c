package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/yourusername/immich-dedup/pkg/journal"
	"github.com/yourusername/immich-dedup/pkg/ui"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past cleanup runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := journal.Open(a.cfg.JournalPath)
			if err != nil {
				return err
			}
			defer runs.Close()

			list, err := runs.List(limit)
			if err != nil {
				return fmt.Errorf("failed to read history: %w", err)
			}

			printHistory(cmd.OutOrStdout(), list)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show (0 for all)")

	return cmd
}

func printHistory(w io.Writer, runs []journal.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, ui.FormatInfo("No cleanup runs recorded yet"))
		return
	}

	fmt.Fprint(w, historyTable(runs).Render())
}

func historyTable(runs []journal.Run) *ui.Table {
	table := ui.NewTable(
		ui.TableColumn{Header: "Started"},
		ui.TableColumn{Header: "Run"},
		ui.TableColumn{Header: "Mode"},
		ui.TableColumn{Header: "Planned", Align: ui.AlignRight},
		ui.TableColumn{Header: "Deleted", Align: ui.AlignRight},
		ui.TableColumn{Header: "Took", Align: ui.AlignRight},
		ui.TableColumn{Header: "Error", MaxWidth: 40},
	)

	for _, run := range runs {
		mode := "delete"
		if run.DryRun {
			mode = "dry-run"
		}
		if run.CheckManual {
			mode += "+manual"
		}

		table.AddRow(
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.ID,
			mode,
			strconv.Itoa(run.Planned),
			strconv.Itoa(len(run.Deleted)),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String(),
			run.Error,
		)
	}

	return table
}
