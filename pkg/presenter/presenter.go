// Package presenter writes user-facing CLI output: status messages, run
// statistics, diffs and confirmation prompts, with color support and a quiet
// mode.
package presenter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/jingkaihe/skillfit/pkg/batch"
)

// ColorEnv selects the color mode: always, never or auto.
const ColorEnv = "SKILLFIT_COLOR"

// RunStats summarises a batch run for display.
type RunStats struct {
	Documents    int
	Compliant    int
	NonCompliant int
	Refactored   int
	NeedsManual  int
	Errored      int
	Budget       int
}

// Presenter is the CLI output surface.
type Presenter interface {
	Error(err error, context string)
	Success(message string)
	Warning(message string)
	Info(message string)
	Section(title string)
	Prompt(question string, options ...string) string
	Confirm(question string) bool
	Stats(stats *RunStats)
	Diff(diff string)
	Separator()
	SetQuiet(quiet bool)
	IsQuiet() bool
}

// TerminalPresenter writes to a terminal.
type TerminalPresenter struct {
	output      io.Writer
	errorOutput io.Writer
	input       *bufio.Reader
	colorMode   ColorMode
	quiet       bool
}

// ColorMode controls colored output.
type ColorMode int

const (
	// ColorAuto lets fatih/color detect terminal support.
	ColorAuto ColorMode = iota
	// ColorAlways forces colored output.
	ColorAlways
	// ColorNever disables colored output.
	ColorNever
)

// New creates a TerminalPresenter on the standard streams.
func New() *TerminalPresenter {
	return NewWithOptions(os.Stdout, os.Stderr, detectColorMode())
}

// NewWithOptions creates a TerminalPresenter writing to output and
// errorOutput and reading prompt answers from stdin.
func NewWithOptions(output, errorOutput io.Writer, colorMode ColorMode) *TerminalPresenter {
	p := &TerminalPresenter{
		output:      output,
		errorOutput: errorOutput,
		input:       bufio.NewReader(os.Stdin),
		colorMode:   colorMode,
	}

	switch colorMode {
	case ColorAlways:
		color.NoColor = false
	case ColorNever:
		color.NoColor = true
	case ColorAuto:
	}

	return p
}

// SetInput replaces the reader used for prompts.
func (p *TerminalPresenter) SetInput(r io.Reader) {
	p.input = bufio.NewReader(r)
}

func detectColorMode() ColorMode {
	if os.Getenv("NO_COLOR") != "" {
		return ColorNever
	}

	switch os.Getenv(ColorEnv) {
	case "always", "force":
		return ColorAlways
	case "never", "off":
		return ColorNever
	default:
		return ColorAuto
	}
}

// Error writes err to the error stream. Errors are shown in quiet mode.
func (p *TerminalPresenter) Error(err error, context string) {
	if err == nil {
		return
	}

	errorColor := color.New(color.FgRed, color.Bold)
	if context != "" {
		errorColor.Fprintf(p.errorOutput, "[ERROR] %s: %v\n", context, err)
	} else {
		errorColor.Fprintf(p.errorOutput, "[ERROR] %v\n", err)
	}
}

// Success writes a success message.
func (p *TerminalPresenter) Success(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgGreen, color.Bold).Fprintf(p.output, "✓ %s\n", message)
}

// Warning writes a warning message.
func (p *TerminalPresenter) Warning(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgYellow, color.Bold).Fprintf(p.output, "⚠ %s\n", message)
}

// Info writes a plain message.
func (p *TerminalPresenter) Info(message string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.output, "%s\n", message)
}

// Section writes an underlined header.
func (p *TerminalPresenter) Section(title string) {
	if p.quiet {
		return
	}

	headerColor := color.New(color.Bold)
	headerColor.Fprintf(p.output, "%s\n", title)
	headerColor.Fprintf(p.output, "%s\n", strings.Repeat("-", len(title)))
}

// Prompt asks a question and returns the trimmed answer, or "" when input
// is exhausted.
func (p *TerminalPresenter) Prompt(question string, options ...string) string {
	promptColor := color.New(color.FgCyan)
	if len(options) > 0 {
		promptColor.Fprintf(p.output, "%s [%s]: ", question, strings.Join(options, "/"))
	} else {
		promptColor.Fprintf(p.output, "%s: ", question)
	}

	response, err := p.input.ReadString('\n')
	if err != nil && response == "" {
		return ""
	}
	return strings.TrimSpace(response)
}

// Confirm asks a yes/no question. Anything but y or yes is a no.
func (p *TerminalPresenter) Confirm(question string) bool {
	switch strings.ToLower(p.Prompt(question, "y", "N")) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// Stats writes the outcome counts of a run.
func (p *TerminalPresenter) Stats(stats *RunStats) {
	if p.quiet || stats == nil {
		return
	}

	statsColor := color.New(color.FgCyan, color.Bold)
	statsColor.Fprintf(p.output, "[Documents] Total: %d | Compliant: %d | Non-compliant: %d\n",
		stats.Documents, stats.Compliant, stats.NonCompliant)
	statsColor.Fprintf(p.output, "[Outcomes] Refactored: %d | Needs manual: %d | Errors: %d\n",
		stats.Refactored, stats.NeedsManual, stats.Errored)

	if stats.Documents > 0 {
		percentage := float64(stats.Compliant) / float64(stats.Documents) * 100
		statsColor.Fprintf(p.output, "[Compliance] %.1f%% within %d lines\n", percentage, stats.Budget)
	}
}

// Diff writes a unified diff with added lines in green and removed lines in
// red.
func (p *TerminalPresenter) Diff(diff string) {
	if p.quiet || diff == "" {
		return
	}

	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	hunk := color.New(color.FgCyan)
	header := color.New(color.Bold)

	for _, line := range strings.SplitAfter(diff, "\n") {
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			header.Fprint(p.output, line)
		case strings.HasPrefix(line, "@@"):
			hunk.Fprint(p.output, line)
		case strings.HasPrefix(line, "+"):
			added.Fprint(p.output, line)
		case strings.HasPrefix(line, "-"):
			removed.Fprint(p.output, line)
		default:
			fmt.Fprint(p.output, line)
		}
	}
	if !strings.HasSuffix(diff, "\n") {
		fmt.Fprintln(p.output)
	}
}

// Separator writes a horizontal rule.
func (p *TerminalPresenter) Separator() {
	if p.quiet {
		return
	}
	color.New(color.Faint).Fprintf(p.output, "%s\n", strings.Repeat("-", 60))
}

// SetQuiet enables or disables quiet mode.
func (p *TerminalPresenter) SetQuiet(quiet bool) {
	p.quiet = quiet
}

// IsQuiet reports whether quiet mode is enabled.
func (p *TerminalPresenter) IsQuiet() bool {
	return p.quiet
}

// ConvertSummary converts a batch summary to RunStats.
func ConvertSummary(s batch.Summary, budget int) *RunStats {
	return &RunStats{
		Documents:    s.Total,
		Compliant:    s.Compliant,
		NonCompliant: s.NonCompliant,
		Refactored:   s.Refactored,
		NeedsManual:  s.NeedsManual,
		Errored:      s.Errored,
		Budget:       budget,
	}
}

var defaultPresenter = New()

// Default returns the shared presenter used by the package functions.
func Default() *TerminalPresenter {
	return defaultPresenter
}

// Error writes err with the default presenter.
func Error(err error, context string) {
	defaultPresenter.Error(err, context)
}

// Success writes a success message with the default presenter.
func Success(message string) {
	defaultPresenter.Success(message)
}

// Warning writes a warning with the default presenter.
func Warning(message string) {
	defaultPresenter.Warning(message)
}

// Info writes a plain message with the default presenter.
func Info(message string) {
	defaultPresenter.Info(message)
}

// Section writes a header with the default presenter.
func Section(title string) {
	defaultPresenter.Section(title)
}

// Prompt asks a question with the default presenter.
func Prompt(question string, options ...string) string {
	return defaultPresenter.Prompt(question, options...)
}

// Confirm asks a yes/no question with the default presenter.
func Confirm(question string) bool {
	return defaultPresenter.Confirm(question)
}

// Stats writes run statistics with the default presenter.
func Stats(stats *RunStats) {
	defaultPresenter.Stats(stats)
}

// Diff writes a diff with the default presenter.
func Diff(diff string) {
	defaultPresenter.Diff(diff)
}

// Separator writes a rule with the default presenter.
func Separator() {
	defaultPresenter.Separator()
}

// SetQuiet sets quiet mode on the default presenter.
func SetQuiet(quiet bool) {
	defaultPresenter.SetQuiet(quiet)
}

// IsQuiet reports quiet mode of the default presenter.
func IsQuiet() bool {
	return defaultPresenter.IsQuiet()
}
