package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aymanbagabas/go-udiff"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillfit/pkg/batch"
	"github.com/jingkaihe/skillfit/pkg/config"
	"github.com/jingkaihe/skillfit/pkg/document"
	"github.com/jingkaihe/skillfit/pkg/extractor"
	"github.com/jingkaihe/skillfit/pkg/logger"
	"github.com/jingkaihe/skillfit/pkg/presenter"
)

// RefactorConfig holds the flags of the refactor command.
type RefactorConfig struct {
	Budget          int
	DryRun          bool
	Diff            bool
	Compress        bool
	ExtractAll      bool
	IncludeSections []string
	ExcludeSections []string
	ReferencePrefix string
	Format          string
	Yes             bool
	NoHistory       bool
}

// NewRefactorConfig returns the flag defaults. A zero Budget keeps the
// configured budget.
func NewRefactorConfig() *RefactorConfig {
	return &RefactorConfig{
		Budget: 0,
		Format: string(TableFormat),
	}
}

// Apply merges the flags over cfg.
func (c *RefactorConfig) Apply(cfg *config.Config, args []string) {
	if len(args) > 0 {
		cfg.Root = args[0]
	}
	if c.Budget > 0 {
		cfg.Budget = c.Budget
	}
	cfg.DryRun = cfg.DryRun || c.DryRun
	cfg.CompressFirst = cfg.CompressFirst || c.Compress
	cfg.Planner.ExtractAll = cfg.Planner.ExtractAll || c.ExtractAll
	cfg.Planner.Include = append(cfg.Planner.Include, c.IncludeSections...)
	cfg.Planner.Exclude = append(cfg.Planner.Exclude, c.ExcludeSections...)
	if c.ReferencePrefix != "" {
		cfg.References.Prefix = c.ReferencePrefix
	}
	if c.NoHistory {
		cfg.History.Enabled = false
	}
}

var refactorCmd = &cobra.Command{
	Use:   "refactor [root]",
	Short: "Split over-budget skill documents into reference files",
	Long: `Walk the skills tree and, for every SKILL.md over the line budget, move the
largest extractable sections into references/ files linked from a
"## References" index. Exits 1 unless every document ends within budget.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		rc := getRefactorConfigFromFlags(cmd)

		cfg := mustLoadConfig()
		rc.Apply(cfg, args)
		if err := cfg.Validate(); err != nil {
			presenter.Error(err, "Invalid configuration")
			exitCode = 1
			return
		}

		format, err := ParseOutputFormat(rc.Format)
		if err != nil {
			presenter.Error(err, "Invalid flags")
			exitCode = 1
			return
		}

		report, err := runRefactor(ctx, cfg, rc, presenter.Default())
		if err != nil {
			presenter.Error(err, "Refactor failed")
			exitCode = 1
			return
		}

		if err := finishReport(ctx, cfg, report, format, os.Stdout); err != nil {
			presenter.Error(err, "Failed to render report")
			exitCode = 1
			return
		}
		exitCode = complianceExitCode(report)
	},
}

func init() {
	addRefactorFlags(refactorCmd)
}

func addRefactorFlags(cmd *cobra.Command) {
	defaults := NewRefactorConfig()
	cmd.Flags().Int("budget", defaults.Budget, "Maximum lines per SKILL.md (default from config, 200)")
	cmd.Flags().Bool("dry-run", defaults.DryRun, "Plan and report without writing files")
	cmd.Flags().Bool("diff", defaults.Diff, "Show a unified diff of each rewritten document")
	cmd.Flags().Bool("compress", defaults.Compress, "Run the whitespace compression pass first")
	cmd.Flags().Bool("extract-all", defaults.ExtractAll, "Extract every candidate section, not just enough to fit")
	cmd.Flags().StringSlice("include-section", defaults.IncludeSections, "Section name globs that are always candidates")
	cmd.Flags().StringSlice("exclude-section", defaults.ExcludeSections, "Section name globs that are never extracted")
	cmd.Flags().String("reference-prefix", defaults.ReferencePrefix, "Prefix for reference pointers (e.g. .claude/skills)")
	cmd.Flags().String("format", defaults.Format, "Output format: table, json or yaml")
	cmd.Flags().BoolP("yes", "y", defaults.Yes, "Write without asking for confirmation")
	cmd.Flags().Bool("no-history", defaults.NoHistory, "Do not record this run in the history database")
}

func getRefactorConfigFromFlags(cmd *cobra.Command) *RefactorConfig {
	config := NewRefactorConfig()

	if budget, err := cmd.Flags().GetInt("budget"); err == nil {
		config.Budget = budget
	}
	if dryRun, err := cmd.Flags().GetBool("dry-run"); err == nil {
		config.DryRun = dryRun
	}
	if diff, err := cmd.Flags().GetBool("diff"); err == nil {
		config.Diff = diff
	}
	if compress, err := cmd.Flags().GetBool("compress"); err == nil {
		config.Compress = compress
	}
	if extractAll, err := cmd.Flags().GetBool("extract-all"); err == nil {
		config.ExtractAll = extractAll
	}
	if include, err := cmd.Flags().GetStringSlice("include-section"); err == nil {
		config.IncludeSections = include
	}
	if exclude, err := cmd.Flags().GetStringSlice("exclude-section"); err == nil {
		config.ExcludeSections = exclude
	}
	if prefix, err := cmd.Flags().GetString("reference-prefix"); err == nil {
		config.ReferencePrefix = prefix
	}
	if format, err := cmd.Flags().GetString("format"); err == nil {
		config.Format = format
	}
	if yes, err := cmd.Flags().GetBool("yes"); err == nil {
		config.Yes = yes
	}
	if noHistory, err := cmd.Flags().GetBool("no-history"); err == nil {
		config.NoHistory = noHistory
	}

	return config
}

// runRefactor runs the orchestrator with a confirmation hook that previews
// and, unless rc.Yes, asks before each write.
func runRefactor(ctx context.Context, cfg *config.Config, rc *RefactorConfig, p presenter.Presenter) (*batch.Report, error) {
	var options []batch.Option
	if rc.Diff || (!rc.Yes && !cfg.DryRun) {
		options = append(options, batch.WithConfirm(newConfirmer(cfg, rc, p)))
	}
	options = append(options, batch.WithObserver(func(rec batch.Record) {
		logger.G(ctx).WithField(logger.FieldPath, rec.Path).WithField("status", rec.Status).Debug("document processed")
	}))

	o, err := batch.New(cfg.BatchOptions(), options...)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx)
}

func newConfirmer(cfg *config.Config, rc *RefactorConfig, p presenter.Presenter) batch.Confirmer {
	return func(_ context.Context, doc *document.Document, res *extractor.Result) bool {
		name := doc.Path
		if rel, err := filepath.Rel(cfg.Root, doc.Path); err == nil {
			name = filepath.ToSlash(rel)
		}

		p.Section(name)
		for _, a := range res.Artifacts {
			p.Info(fmt.Sprintf("  %s (%d lines) -> %s/%s", a.Name, a.Lines, res.ReferencesDir, a.FileName))
		}
		if rc.Diff {
			p.Diff(udiff.Unified("a/"+name, "b/"+name, doc.Text, res.Primary))
		}

		if rc.Yes || cfg.DryRun {
			return true
		}
		return p.Confirm(fmt.Sprintf("Write %d reference file(s) for %s?", len(res.Artifacts), name))
	}
}

// finishReport records the run in history and prints it.
func finishReport(ctx context.Context, cfg *config.Config, report *batch.Report, format OutputFormat, w io.Writer) error {
	if cfg.History.Enabled {
		if err := saveHistory(ctx, cfg, report); err != nil {
			presenter.Warning("run not recorded: " + err.Error())
		}
	}

	if err := (&ReportOutput{Report: report, Format: format}).Render(w); err != nil {
		return err
	}
	if format == TableFormat {
		presenter.Stats(presenter.ConvertSummary(report.Summary, report.Budget))
		if report.ID != "" {
			presenter.Info("Run " + report.ID)
		}
		if report.DryRun {
			presenter.Warning("dry run, no files were written")
		}
		for _, rec := range report.NonCompliant() {
			if rec.Status == batch.StatusOverBudget {
				presenter.Warning(fmt.Sprintf("%s is still %d lines over budget", rec.Path, rec.After-report.Budget))
			}
		}
	}
	return nil
}

func saveHistory(ctx context.Context, cfg *config.Config, report *batch.Report) error {
	store, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	_, err = store.Save(ctx, report)
	return err
}

// formatSections joins section names for messages.
func formatSections(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
