package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aymanbagabas/go-udiff"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillfit/pkg/config"
	"github.com/jingkaihe/skillfit/pkg/document"
	"github.com/jingkaihe/skillfit/pkg/extractor"
	"github.com/jingkaihe/skillfit/pkg/planner"
	"github.com/jingkaihe/skillfit/pkg/presenter"
)

// ExtractConfig holds the flags of the extract command.
type ExtractConfig struct {
	Sections        []int
	Names           []string
	ReferencePrefix string
	DryRun          bool
	Diff            bool
}

// NewExtractConfig returns the flag defaults.
func NewExtractConfig() *ExtractConfig {
	return &ExtractConfig{}
}

// Validate requires at least one section.
func (c *ExtractConfig) Validate() error {
	if len(c.Sections) == 0 && len(c.Names) == 0 {
		return errors.New("select at least one section with --section or --name")
	}
	return nil
}

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Move chosen sections of a skill document into reference files",
	Long: `Relocate the sections given by ordinal (see "skillfit analyze") or by name,
whatever the line budget. Essential sections and the reference index are refused.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ec := getExtractConfigFromFlags(cmd)
		if err := ec.Validate(); err != nil {
			presenter.Error(err, "Invalid flags")
			exitCode = 1
			return
		}
		cfg := mustLoadConfig()

		res, err := runExtract(cmd.Context(), args[0], cfg, ec, presenter.Default())
		if err != nil {
			presenter.Error(err, "Extract failed")
			exitCode = 1
			return
		}
		if ec.DryRun {
			presenter.Warning(fmt.Sprintf("dry run, %d file(s) not written", len(res.Artifacts)+1))
			return
		}
		presenter.Success(fmt.Sprintf("Extracted %d section(s); %s is now %d lines",
			len(res.Artifacts), args[0], document.CountLines(res.Primary)))
	},
}

func init() {
	defaults := NewExtractConfig()
	extractCmd.Flags().IntSlice("section", defaults.Sections, "Ordinal of a section to extract (repeatable)")
	extractCmd.Flags().StringSlice("name", defaults.Names, "Name of a section to extract (repeatable)")
	extractCmd.Flags().String("reference-prefix", defaults.ReferencePrefix, "Prefix for reference pointers")
	extractCmd.Flags().Bool("dry-run", defaults.DryRun, "Show the result without writing files")
	extractCmd.Flags().Bool("diff", defaults.Diff, "Show a unified diff of the rewritten document")
}

func getExtractConfigFromFlags(cmd *cobra.Command) *ExtractConfig {
	config := NewExtractConfig()

	if sections, err := cmd.Flags().GetIntSlice("section"); err == nil {
		config.Sections = sections
	}
	if names, err := cmd.Flags().GetStringSlice("name"); err == nil {
		config.Names = names
	}
	if prefix, err := cmd.Flags().GetString("reference-prefix"); err == nil {
		config.ReferencePrefix = prefix
	}
	if dryRun, err := cmd.Flags().GetBool("dry-run"); err == nil {
		config.DryRun = dryRun
	}
	if diff, err := cmd.Flags().GetBool("diff"); err == nil {
		config.Diff = diff
	}

	return config
}

func runExtract(ctx context.Context, path string, cfg *config.Config, ec *ExtractConfig, p presenter.Presenter) (*extractor.Result, error) {
	doc, err := document.Read(path)
	if err != nil {
		return nil, err
	}

	pl, err := planner.New(cfg.PlannerPolicy())
	if err != nil {
		return nil, err
	}
	st := doc.Analyze()

	ordinals := append([]int{}, ec.Sections...)
	for _, name := range ec.Names {
		matches := st.FindByName(name)
		if len(matches) == 0 {
			return nil, errors.Errorf("section %q not found", name)
		}
		ordinals = append(ordinals, matches[0])
	}
	plan, err := pl.Select(st, ordinals...)
	if err != nil {
		return nil, err
	}

	prefix := ec.ReferencePrefix
	if prefix == "" {
		prefix = cfg.References.Prefix
	}
	refDir := filepath.Join(filepath.Dir(path), cfg.References.Dir)
	res, err := extractor.Split(st, plan, extractor.Options{
		ReferencesDir:   cfg.References.Dir,
		ReferencePrefix: prefix,
		Exists: func(name string) bool {
			_, err := os.Stat(filepath.Join(refDir, name))
			return err == nil
		},
	})
	if err != nil {
		return nil, err
	}

	p.Info(fmt.Sprintf("Extracting: %s", formatSections(plan.Names())))
	for _, a := range res.Artifacts {
		p.Info(fmt.Sprintf("  %s (%d lines) -> %s/%s", a.Name, a.Lines, res.ReferencesDir, a.FileName))
	}
	if ec.Diff {
		p.Diff(udiff.Unified("a/"+path, "b/"+path, doc.Text, res.Primary))
	}
	if ec.DryRun {
		return res, nil
	}

	if err := extractor.NewWriter().Commit(ctx, path, res); err != nil {
		return nil, err
	}
	return res, nil
}
