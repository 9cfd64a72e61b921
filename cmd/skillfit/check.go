package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillfit/pkg/batch"
	"github.com/jingkaihe/skillfit/pkg/config"
	"github.com/jingkaihe/skillfit/pkg/presenter"
)

// CheckConfig holds the flags of the check command.
type CheckConfig struct {
	Budget int
	Format string
}

// NewCheckConfig returns the flag defaults.
func NewCheckConfig() *CheckConfig {
	return &CheckConfig{Format: string(TableFormat)}
}

var checkCmd = &cobra.Command{
	Use:   "check [root]",
	Short: "Report which skill documents exceed the line budget",
	Long:  `Analyze every SKILL.md without writing anything. Exits 1 if any document is over budget or invalid.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cc := getCheckConfigFromFlags(cmd)
		cfg := mustLoadConfig()
		if len(args) > 0 {
			cfg.Root = args[0]
		}
		if cc.Budget > 0 {
			cfg.Budget = cc.Budget
		}

		format, err := ParseOutputFormat(cc.Format)
		if err != nil {
			presenter.Error(err, "Invalid flags")
			exitCode = 1
			return
		}

		report, err := runCheck(cmd.Context(), cfg)
		if err != nil {
			presenter.Error(err, "Check failed")
			exitCode = 1
			return
		}
		if err := (&ReportOutput{Report: report, Format: format}).Render(os.Stdout); err != nil {
			presenter.Error(err, "Failed to render report")
			exitCode = 1
			return
		}
		if format == TableFormat {
			presenter.Stats(presenter.ConvertSummary(report.Summary, report.Budget))
		}
		exitCode = complianceExitCode(report)
	},
}

func init() {
	defaults := NewCheckConfig()
	checkCmd.Flags().Int("budget", defaults.Budget, "Maximum lines per SKILL.md (default from config, 200)")
	checkCmd.Flags().String("format", defaults.Format, "Output format: table, json or yaml")
}

func getCheckConfigFromFlags(cmd *cobra.Command) *CheckConfig {
	config := NewCheckConfig()

	if budget, err := cmd.Flags().GetInt("budget"); err == nil {
		config.Budget = budget
	}
	if format, err := cmd.Flags().GetString("format"); err == nil {
		config.Format = format
	}

	return config
}

func runCheck(ctx context.Context, cfg *config.Config) (*batch.Report, error) {
	opts := cfg.BatchOptions()
	opts.CheckOnly = true

	o, err := batch.New(opts)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx)
}
