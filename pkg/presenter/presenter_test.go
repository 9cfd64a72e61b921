package presenter

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jingkaihe/skillfit/pkg/batch"
)

func newTest() (*TerminalPresenter, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewWithOptions(&out, &errOut, ColorNever), &out, &errOut
}

func TestNew(t *testing.T) {
	p := New()
	assert.Equal(t, os.Stdout, p.output)
	assert.Equal(t, os.Stderr, p.errorOutput)
	assert.False(t, p.quiet)
}

func TestDetectColorMode(t *testing.T) {
	tests := []struct {
		name     string
		noColor  string
		color    string
		expected ColorMode
	}{
		{"NO_COLOR set", "1", "always", ColorNever},
		{"always", "", "always", ColorAlways},
		{"force", "", "force", ColorAlways},
		{"never", "", "never", ColorNever},
		{"off", "", "off", ColorNever},
		{"auto", "", "auto", ColorAuto},
		{"unset", "", "", ColorAuto},
		{"invalid", "", "rainbow", ColorAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", tt.noColor)
			t.Setenv(ColorEnv, tt.color)
			assert.Equal(t, tt.expected, detectColorMode())
		})
	}
}

func TestError(t *testing.T) {
	p, _, errOut := newTest()

	p.Error(errors.New("boom"), "refactor")
	assert.Equal(t, "[ERROR] refactor: boom\n", errOut.String())

	errOut.Reset()
	p.Error(errors.New("boom"), "")
	assert.Equal(t, "[ERROR] boom\n", errOut.String())

	errOut.Reset()
	p.Error(nil, "ctx")
	assert.Empty(t, errOut.String())

	t.Run("shown in quiet mode", func(t *testing.T) {
		errOut.Reset()
		p.SetQuiet(true)
		p.Error(errors.New("boom"), "")
		assert.NotEmpty(t, errOut.String())
	})
}

func TestMessages(t *testing.T) {
	tests := []struct {
		name  string
		write func(p *TerminalPresenter)
		want  string
	}{
		{"success", func(p *TerminalPresenter) { p.Success("done") }, "✓ done\n"},
		{"warning", func(p *TerminalPresenter) { p.Warning("careful") }, "⚠ careful\n"},
		{"info", func(p *TerminalPresenter) { p.Info("note") }, "note\n"},
		{"section", func(p *TerminalPresenter) { p.Section("Plan") }, "Plan\n----\n"},
		{"separator", func(p *TerminalPresenter) { p.Separator() }, strings.Repeat("-", 60) + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, out, _ := newTest()
			tt.write(p)
			assert.Equal(t, tt.want, out.String())

			out.Reset()
			p.SetQuiet(true)
			tt.write(p)
			assert.Empty(t, out.String())
		})
	}
}

func TestPrompt(t *testing.T) {
	p, out, _ := newTest()
	p.SetInput(strings.NewReader("  answer  \n"))

	assert.Equal(t, "answer", p.Prompt("Name", "a", "b"))
	assert.Equal(t, "Name [a/b]: ", out.String())

	t.Run("exhausted input", func(t *testing.T) {
		p.SetInput(strings.NewReader(""))
		assert.Equal(t, "", p.Prompt("Again"))
	})

	t.Run("answer without newline", func(t *testing.T) {
		p.SetInput(strings.NewReader("last"))
		assert.Equal(t, "last", p.Prompt("Again"))
	})
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			p, out, _ := newTest()
			p.SetInput(strings.NewReader(tt.input))
			assert.Equal(t, tt.want, p.Confirm("Write changes?"))
			assert.Equal(t, "Write changes? [y/N]: ", out.String())
		})
	}
}

func TestStats(t *testing.T) {
	p, out, _ := newTest()
	stats := ConvertSummary(batch.Summary{
		Total: 4, Compliant: 3, NonCompliant: 1, Refactored: 2, NeedsManual: 1,
	}, 200)

	p.Stats(stats)
	assert.Equal(t,
		"[Documents] Total: 4 | Compliant: 3 | Non-compliant: 1\n"+
			"[Outcomes] Refactored: 2 | Needs manual: 1 | Errors: 0\n"+
			"[Compliance] 75.0% within 200 lines\n",
		out.String())

	out.Reset()
	p.Stats(nil)
	assert.Empty(t, out.String())

	p.Stats(&RunStats{Budget: 200})
	assert.NotContains(t, out.String(), "[Compliance]")
}

func TestDiff(t *testing.T) {
	p, out, _ := newTest()
	diff := "--- a/SKILL.md\n+++ b/SKILL.md\n@@ -1,2 +1,2 @@\n same\n-old\n+new"

	p.Diff(diff)
	assert.Equal(t, diff+"\n", out.String())

	out.Reset()
	p.Diff("")
	assert.Empty(t, out.String())
}
