package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillfit/pkg/batch"
	"github.com/jingkaihe/skillfit/pkg/config"
	"github.com/jingkaihe/skillfit/pkg/history"
)

func TestRefactorConfigApply(t *testing.T) {
	cfg := config.Default()
	cfg.Planner.Exclude = []string{"faq*"}

	rc := NewRefactorConfig()
	rc.Budget = 150
	rc.DryRun = true
	rc.Compress = true
	rc.ExtractAll = true
	rc.IncludeSections = []string{"api*"}
	rc.ExcludeSections = []string{"changelog"}
	rc.ReferencePrefix = ".claude/skills"
	rc.NoHistory = true
	rc.Apply(&cfg, []string{"skills"})

	assert.Equal(t, "skills", cfg.Root)
	assert.Equal(t, 150, cfg.Budget)
	assert.True(t, cfg.DryRun)
	assert.True(t, cfg.CompressFirst)
	assert.True(t, cfg.Planner.ExtractAll)
	assert.Equal(t, []string{"api*"}, cfg.Planner.Include)
	assert.Equal(t, []string{"faq*", "changelog"}, cfg.Planner.Exclude)
	assert.Equal(t, ".claude/skills", cfg.References.Prefix)
	assert.False(t, cfg.History.Enabled)

	t.Run("zero flags keep config", func(t *testing.T) {
		cfg := config.Default()
		NewRefactorConfig().Apply(&cfg, nil)
		assert.Equal(t, config.Default(), cfg)
	})
}

func TestGetRefactorConfigFromFlags(t *testing.T) {
	cmd := &cobra.Command{}
	addRefactorFlags(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{
		"--budget", "120", "--dry-run", "--diff", "--include-section", "a,b", "--format", "json", "-y",
	}))

	rc := getRefactorConfigFromFlags(cmd)
	assert.Equal(t, 120, rc.Budget)
	assert.True(t, rc.DryRun)
	assert.True(t, rc.Diff)
	assert.Equal(t, []string{"a", "b"}, rc.IncludeSections)
	assert.Equal(t, "json", rc.Format)
	assert.True(t, rc.Yes)
	assert.False(t, rc.ExtractAll)
}

func TestRunRefactor(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		rc         RefactorConfig
		dryRun     bool
		wantStatus batch.Status
		wantWrite  bool
		wantOutput []string
	}{
		{
			name:       "confirmed",
			input:      "y\n",
			wantStatus: batch.StatusRefactored,
			wantWrite:  true,
			wantOutput: []string{"Advanced Patterns (120 lines) -> references/advanced-patterns.md", "Write 1 reference file(s) for over/SKILL.md?"},
		},
		{
			name:       "declined",
			input:      "n\n",
			wantStatus: batch.StatusSkipped,
			wantOutput: []string{"Write 1 reference file(s)"},
		},
		{
			name:       "yes skips the prompt",
			rc:         RefactorConfig{Yes: true},
			wantStatus: batch.StatusRefactored,
			wantWrite:  true,
		},
		{
			name:       "dry run with diff",
			rc:         RefactorConfig{Diff: true},
			dryRun:     true,
			wantStatus: batch.StatusRefactored,
			wantOutput: []string{"--- a/over/SKILL.md", "+++ b/over/SKILL.md", "-## Advanced Patterns", "+## References"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			path := writeFile(t, root, "over/SKILL.md", overBudgetSkill())
			original := readFile(t, path)

			cfg := testConfig(t, root)
			cfg.DryRun = tt.dryRun
			p, out := testPresenter(tt.input)
			rc := tt.rc

			report, err := runRefactor(context.Background(), cfg, &rc, p)
			require.NoError(t, err)
			require.Len(t, report.Records, 1)
			assert.Equal(t, tt.wantStatus, report.Records[0].Status)

			for _, want := range tt.wantOutput {
				assert.Contains(t, out.String(), want)
			}

			_, statErr := os.Stat(filepath.Join(root, "over", "references", "advanced-patterns.md"))
			if tt.wantWrite {
				assert.NoError(t, statErr)
				assert.NotEqual(t, original, readFile(t, path))
			} else {
				assert.True(t, os.IsNotExist(statErr))
				assert.Equal(t, original, readFile(t, path))
			}
		})
	}
}

func TestFinishReportRecordsHistory(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	report := sampleReport()
	report.ID = ""

	var buf bytes.Buffer
	require.NoError(t, finishReport(context.Background(), cfg, report, JSONFormat, &buf))
	require.NotEmpty(t, report.ID)
	assert.Contains(t, buf.String(), report.ID)

	store, err := history.Open(context.Background(), cfg.History.Path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, report.Summary, got.Summary)
	assert.Len(t, got.Records, 3)

	t.Run("disabled history", func(t *testing.T) {
		cfg := testConfig(t, t.TempDir())
		cfg.History.Enabled = false
		report := sampleReport()
		report.ID = ""

		var buf bytes.Buffer
		require.NoError(t, finishReport(context.Background(), cfg, report, TableFormat, &buf))
		assert.Empty(t, report.ID)
		_, err := os.Stat(cfg.History.Path)
		assert.True(t, os.IsNotExist(err))
	})
}

func TestFormatSections(t *testing.T) {
	assert.Equal(t, "none", formatSections(nil))
	assert.Equal(t, "A, B", formatSections([]string{"A", "B"}))
}
