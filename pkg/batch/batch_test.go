package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillfit/pkg/document"
	"github.com/jingkaihe/skillfit/pkg/extractor"
	"github.com/jingkaihe/skillfit/pkg/planner"
)

type section struct {
	name  string
	lines int
}

func skill(name string, preamble int, sections ...section) string {
	lines := []string{"---", "name: " + name, "description: " + name + " skill", "---"}
	for i := len(lines); i < preamble; i++ {
		lines = append(lines, fmt.Sprintf("intro %d", i))
	}
	for _, s := range sections {
		lines = append(lines, "## "+s.name)
		for i := 1; i < s.lines; i++ {
			lines = append(lines, fmt.Sprintf("%s %d", s.name, i))
		}
	}
	return strings.Join(lines, "\n")
}

func write(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func setupTree(t *testing.T) string {
	root := t.TempDir()
	write(t, root, "api/over/SKILL.md", skill("over", 15,
		section{"Overview", 20},
		section{"Quick Start", 15},
		section{"Advanced Patterns", 120},
		section{"Troubleshooting", 80},
	))
	write(t, root, "api/small/SKILL.md", skill("small", 30, section{"Examples", 150}))
	write(t, root, "meta/core/SKILL.md", skill("core", 0, section{"Core Concepts", 300}))
	write(t, root, "api/over/references/SKILL.md", skill("nested", 0, section{"Examples", 400}))
	write(t, root, "ignored/x/SKILL.md", skill("ignored", 0, section{"Examples", 400}))
	write(t, root, "bad/SKILL.md", "# no metadata\n")
	return root
}

func newOrchestrator(t *testing.T, opts Options, options ...Option) *Orchestrator {
	t.Helper()
	if opts.Policy.Budget == 0 {
		opts.Policy = planner.DefaultPolicy()
	}
	o, err := New(opts, options...)
	require.NoError(t, err)
	return o
}

func TestDiscover(t *testing.T) {
	root := setupTree(t)
	o := newOrchestrator(t, Options{Root: root, Exclude: []string{"ignored/**"}})

	paths, err := o.Discover(context.Background())
	require.NoError(t, err)

	var rels []string
	for _, p := range paths {
		rels = append(rels, o.rel(p))
	}
	assert.Equal(t, []string{"api/over/SKILL.md", "api/small/SKILL.md", "bad/SKILL.md", "meta/core/SKILL.md"}, rels)
}

func TestDiscoverSingleFile(t *testing.T) {
	root := setupTree(t)
	file := filepath.Join(root, "api", "small", "SKILL.md")
	o := newOrchestrator(t, Options{Root: file})

	paths, err := o.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{file}, paths)
	assert.Equal(t, "SKILL.md", o.rel(file))
}

func TestNewRejectsInvalidExclude(t *testing.T) {
	_, err := New(Options{Policy: planner.DefaultPolicy(), Exclude: []string{"[oops"}})
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	root := setupTree(t)
	var observed []string
	o := newOrchestrator(t, Options{
		Root:             root,
		Exclude:          []string{"ignored/**"},
		RequiredMetadata: []string{"name", "description"},
		ReferencePrefix:  ".claude/skills",
	}, WithObserver(func(rec Record) { observed = append(observed, rec.Path) }))

	report, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Records, 4)
	assert.Equal(t, []string{"api/over/SKILL.md", "api/small/SKILL.md", "bad/SKILL.md", "meta/core/SKILL.md"}, observed)

	over := report.Records[0]
	assert.Equal(t, StatusRefactored, over.Status)
	assert.True(t, over.Compliant)
	assert.Equal(t, 250, over.Before)
	assert.Equal(t, 120, over.Extracted)
	assert.Equal(t, 137, over.After)
	assert.Equal(t, []string{"Advanced Patterns"}, over.Sections)
	assert.Equal(t, []string{"advanced-patterns.md"}, over.Artifacts)

	primary, err := os.ReadFile(filepath.Join(root, "api", "over", "SKILL.md"))
	require.NoError(t, err)
	assert.Equal(t, 137, document.CountLines(string(primary)))
	assert.Contains(t, string(primary), "**Advanced Patterns:** `read .claude/skills/api/over/references/advanced-patterns.md`")
	_, err = os.Stat(filepath.Join(root, "api", "over", "references", "advanced-patterns.md"))
	assert.NoError(t, err)

	small := report.Records[1]
	assert.Equal(t, StatusCompliant, small.Status)
	assert.Equal(t, 180, small.After)

	bad := report.Records[2]
	assert.Equal(t, StatusError, bad.Status)
	assert.Equal(t, ErrorStructural, bad.ErrorKind)

	core := report.Records[3]
	assert.Equal(t, StatusNeedsManual, core.Status)
	assert.False(t, core.Compliant)

	assert.Equal(t, Summary{Total: 4, Compliant: 2, NonCompliant: 2, Refactored: 1, NeedsManual: 1, Errored: 1}, report.Summary)
	assert.False(t, report.AllCompliant())
	require.Error(t, report.Err())
	assert.Contains(t, report.Err().Error(), "bad/SKILL.md")
	assert.Len(t, report.NonCompliant(), 2)

	t.Run("rerun is stable", func(t *testing.T) {
		again, err := o.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StatusCompliant, again.Records[0].Status)

		after, err := os.ReadFile(filepath.Join(root, "api", "over", "SKILL.md"))
		require.NoError(t, err)
		assert.Equal(t, string(primary), string(after))
	})
}

func TestRunDryRunWritesNothing(t *testing.T) {
	root := setupTree(t)
	overPath := filepath.Join(root, "api", "over", "SKILL.md")
	before, err := os.ReadFile(overPath)
	require.NoError(t, err)

	o := newOrchestrator(t, Options{Root: root, DryRun: true, CompressFirst: true})
	report, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.DryRun)

	var over Record
	for _, rec := range report.Records {
		if rec.Path == "api/over/SKILL.md" {
			over = rec
		}
	}
	assert.Equal(t, StatusRefactored, over.Status)

	after, err := os.ReadFile(overPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	_, err = os.Stat(filepath.Join(root, "api", "over", "references", "advanced-patterns.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunCheckOnly(t *testing.T) {
	root := setupTree(t)
	o := newOrchestrator(t, Options{Root: root, CheckOnly: true, Exclude: []string{"ignored/**", "bad/**"}})

	report, err := o.Run(context.Background())
	require.NoError(t, err)

	statuses := map[string]Status{}
	for _, rec := range report.Records {
		statuses[rec.Path] = rec.Status
	}
	assert.Equal(t, map[string]Status{
		"api/over/SKILL.md":  StatusOverBudget,
		"api/small/SKILL.md": StatusCompliant,
		"meta/core/SKILL.md": StatusNeedsManual,
	}, statuses)
	assert.Equal(t, []string{"Advanced Patterns"}, report.Records[0].Sections)

	_, err = os.Stat(filepath.Join(root, "api", "over", "references", "advanced-patterns.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunDeclinedConfirmation(t *testing.T) {
	root := setupTree(t)
	var asked []string
	o := newOrchestrator(t, Options{Root: root, Exclude: []string{"ignored/**", "bad/**"}},
		WithConfirm(func(_ context.Context, doc *document.Document, res *extractor.Result) bool {
			asked = append(asked, filepath.Base(filepath.Dir(doc.Path)))
			return false
		}))

	report, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"over"}, asked)
	assert.Equal(t, StatusSkipped, report.Records[0].Status)
	assert.False(t, report.Records[0].Compliant)
}

func TestRunCompressesCompliantDocuments(t *testing.T) {
	root := t.TempDir()
	p := write(t, root, "a/SKILL.md", "---\nname: a\n---\n## Notes  \n\n\n\nbody\n")

	o := newOrchestrator(t, Options{Root: root, CompressFirst: true})
	report, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Records, 1)
	assert.Equal(t, 2, report.Records[0].Compressed)

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "---\nname: a\n---\n## Notes\n\nbody\n", string(data))
}

func TestRunCancelled(t *testing.T) {
	root := setupTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := newOrchestrator(t, Options{Root: root})
	_, err := o.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReportAllCompliant(t *testing.T) {
	r := &Report{}
	r.add(Record{Path: "a", Status: StatusCompliant, Compliant: true})
	r.add(Record{Path: "b", Status: StatusRefactored, Compliant: true})
	assert.True(t, r.AllCompliant())
	assert.NoError(t, r.Err())
}
