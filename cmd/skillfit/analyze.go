package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillfit/pkg/config"
	"github.com/jingkaihe/skillfit/pkg/document"
	"github.com/jingkaihe/skillfit/pkg/planner"
	"github.com/jingkaihe/skillfit/pkg/presenter"
)

// SectionOutput is one row of an analysis.
type SectionOutput struct {
	Ordinal int    `json:"ordinal" yaml:"ordinal"`
	Name    string `json:"name" yaml:"name"`
	Start   int    `json:"start" yaml:"start"`
	End     int    `json:"end" yaml:"end"`
	Lines   int    `json:"lines" yaml:"lines"`
	Class   string `json:"class" yaml:"class"`
	Planned bool   `json:"planned" yaml:"planned"`
}

// AnalysisOutput describes a document and the plan for it.
type AnalysisOutput struct {
	Path      string          `json:"path" yaml:"path"`
	Lines     int             `json:"lines" yaml:"lines"`
	Budget    int             `json:"budget" yaml:"budget"`
	Metadata  int             `json:"metadata_lines" yaml:"metadata_lines"`
	Preamble  int             `json:"preamble_lines" yaml:"preamble_lines"`
	Sections  []SectionOutput `json:"sections" yaml:"sections"`
	Outcome   string          `json:"outcome" yaml:"outcome"`
	Relocated int             `json:"relocated" yaml:"relocated"`
	Residual  int             `json:"residual" yaml:"residual"`
	Format    OutputFormat    `json:"-" yaml:"-"`
}

// NewAnalysisOutput analyzes doc under policy.
func NewAnalysisOutput(doc *document.Document, policy planner.Policy, format OutputFormat) (*AnalysisOutput, error) {
	p, err := planner.New(policy)
	if err != nil {
		return nil, err
	}

	st := doc.Analyze()
	plan := p.Plan(st)

	out := &AnalysisOutput{
		Path:      doc.Path,
		Lines:     st.LineCount(),
		Budget:    policy.Budget,
		Preamble:  st.Preamble.Len(),
		Outcome:   plan.Outcome.String(),
		Relocated: plan.Relocated,
		Residual:  plan.Residual,
		Format:    format,
		Sections:  make([]SectionOutput, 0, len(st.Sections)),
	}
	if st.Metadata != nil {
		out.Metadata = st.Metadata.Len()
	}
	for _, sec := range st.Sections {
		out.Sections = append(out.Sections, SectionOutput{
			Ordinal: sec.Ordinal,
			Name:    sec.Name,
			Start:   sec.Start + 1,
			End:     sec.End,
			Lines:   sec.LineCount(),
			Class:   p.Classify(sec).String(),
			Planned: plan.Contains(sec.Ordinal),
		})
	}
	return out, nil
}

// Render writes the analysis to w.
func (o *AnalysisOutput) Render(w io.Writer) error {
	if o.Format != TableFormat {
		return writeStructured(w, o.Format, o)
	}

	fmt.Fprintf(w, "%s: %d lines (budget %d), metadata %d, preamble %d\n\n",
		o.Path, o.Lines, o.Budget, o.Metadata, o.Preamble)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ORD\tSECTION\tLINES\tSPAN\tCLASS\tPLAN")
	for _, s := range o.Sections {
		mark := ""
		if s.Planned {
			mark = "extract"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d-%d\t%s\t%s\n", s.Ordinal, s.Name, s.Lines, s.Start, s.End, s.Class, mark)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\noutcome: %s", o.Outcome)
	if o.Outcome == planner.OutcomePlanned.String() {
		fmt.Fprintf(w, ", relocating %d lines, %d lines after split", o.Relocated, o.Residual)
	}
	_, err := fmt.Fprintln(w)
	return err
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Show the sections of a skill document and the extraction plan",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig()
		ac := getAnalyzeConfigFromFlags(cmd)
		if ac.Budget > 0 {
			cfg.Budget = ac.Budget
		}

		if err := runAnalyze(args[0], cfg, ac, os.Stdout); err != nil {
			presenter.Error(err, "Analyze failed")
			exitCode = 1
			return
		}
	},
}

// AnalyzeConfig holds the flags of the analyze command.
type AnalyzeConfig struct {
	Budget int
	Format string
}

// NewAnalyzeConfig returns the flag defaults.
func NewAnalyzeConfig() *AnalyzeConfig {
	return &AnalyzeConfig{Format: string(TableFormat)}
}

func init() {
	defaults := NewAnalyzeConfig()
	analyzeCmd.Flags().Int("budget", defaults.Budget, "Maximum lines (default from config, 200)")
	analyzeCmd.Flags().String("format", defaults.Format, "Output format: table, json or yaml")
}

func getAnalyzeConfigFromFlags(cmd *cobra.Command) *AnalyzeConfig {
	config := NewAnalyzeConfig()

	if budget, err := cmd.Flags().GetInt("budget"); err == nil {
		config.Budget = budget
	}
	if format, err := cmd.Flags().GetString("format"); err == nil {
		config.Format = format
	}

	return config
}

func runAnalyze(path string, cfg *config.Config, ac *AnalyzeConfig, w io.Writer) error {
	format, err := ParseOutputFormat(ac.Format)
	if err != nil {
		return err
	}
	doc, err := document.Read(path)
	if err != nil {
		return err
	}
	out, err := NewAnalysisOutput(doc, cfg.PlannerPolicy(), format)
	if err != nil {
		return err
	}
	return out.Render(w)
}
