package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillfit/pkg/batch"
	"github.com/jingkaihe/skillfit/pkg/presenter"
)

// HistoryConfig holds the flags of the history command.
type HistoryConfig struct {
	Limit  int
	Format string
}

// NewHistoryConfig returns the flag defaults.
func NewHistoryConfig() *HistoryConfig {
	return &HistoryConfig{
		Limit:  20,
		Format: string(TableFormat),
	}
}

// RunListOutput renders stored runs.
type RunListOutput struct {
	Runs   []batch.Report
	Format OutputFormat
}

// Render writes the runs to w.
func (o *RunListOutput) Render(w io.Writer) error {
	if o.Format != TableFormat {
		return writeStructured(w, o.Format, o.Runs)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tROOT\tBUDGET\tDOCUMENTS\tCOMPLIANT\tREFACTORED\tMODE")
	for _, r := range o.Runs {
		mode := "write"
		if r.DryRun {
			mode = "dry-run"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			shortID(r.ID), r.StartedAt.Local().Format(time.RFC3339), r.Root, r.Budget,
			r.Summary.Total, r.Summary.Compliant, r.Summary.Refactored, mode)
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List past refactor runs or show one run",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		hc := getHistoryConfigFromFlags(cmd)
		format, err := ParseOutputFormat(hc.Format)
		if err != nil {
			presenter.Error(err, "Invalid flags")
			os.Exit(1)
		}

		cfg := mustLoadConfig()
		store, err := openHistory(ctx, cfg)
		if err != nil {
			presenter.Error(err, "Failed to open history")
			os.Exit(1)
		}
		defer store.Close()

		if len(args) == 1 {
			report, err := store.Get(ctx, args[0])
			if err != nil {
				presenter.Error(err, "Failed to load run")
				os.Exit(1)
			}
			if format == TableFormat {
				presenter.Section(fmt.Sprintf("Run %s (%s)", report.ID, report.StartedAt.Local().Format(time.RFC3339)))
			}
			if err := (&ReportOutput{Report: report, Format: format}).Render(os.Stdout); err != nil {
				presenter.Error(err, "Failed to render run")
				os.Exit(1)
			}
			return
		}

		runs, err := store.List(ctx, hc.Limit)
		if err != nil {
			presenter.Error(err, "Failed to list runs")
			os.Exit(1)
		}
		if len(runs) == 0 {
			presenter.Info("No runs recorded yet.")
			return
		}
		if err := (&RunListOutput{Runs: runs, Format: format}).Render(os.Stdout); err != nil {
			presenter.Error(err, "Failed to render runs")
			os.Exit(1)
		}
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a recorded run",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg := mustLoadConfig()
		store, err := openHistory(ctx, cfg)
		if err != nil {
			presenter.Error(err, "Failed to open history")
			os.Exit(1)
		}
		defer store.Close()

		report, err := store.Get(ctx, args[0])
		if err != nil {
			presenter.Error(err, "Failed to load run")
			os.Exit(1)
		}
		if err := store.Delete(ctx, report.ID); err != nil {
			presenter.Error(err, "Failed to delete run")
			os.Exit(1)
		}
		presenter.Success("Deleted run " + report.ID)
	},
}

func init() {
	defaults := NewHistoryConfig()
	historyCmd.Flags().Int("limit", defaults.Limit, "Maximum number of runs to list (0 for all)")
	historyCmd.Flags().String("format", defaults.Format, "Output format: table, json or yaml")

	historyCmd.AddCommand(historyDeleteCmd)
}

func getHistoryConfigFromFlags(cmd *cobra.Command) *HistoryConfig {
	config := NewHistoryConfig()

	if limit, err := cmd.Flags().GetInt("limit"); err == nil {
		config.Limit = limit
	}
	if format, err := cmd.Flags().GetString("format"); err == nil {
		config.Format = format
	}

	return config
}
