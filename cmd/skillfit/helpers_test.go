package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillfit/pkg/config"
	"github.com/jingkaihe/skillfit/pkg/presenter"
)

type section struct {
	name  string
	lines int
}

// skill renders a document with metadata, preamble filler and sections of the
// given sizes, headers included.
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

func overBudgetSkill() string {
	return skill("over", 15,
		section{"Overview", 20},
		section{"Quick Start", 15},
		section{"Advanced Patterns", 120},
		section{"Troubleshooting", 80},
	)
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// testConfig returns the default configuration rooted at root with history
// kept under a temporary directory.
func testConfig(t *testing.T, root string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Root = root
	cfg.History.Path = filepath.Join(t.TempDir(), "storage.db")
	return &cfg
}

// testPresenter returns a colorless presenter answering prompts from input.
func testPresenter(input string) (*presenter.TerminalPresenter, *bytes.Buffer) {
	var out bytes.Buffer
	p := presenter.NewWithOptions(&out, &out, presenter.ColorNever)
	p.SetInput(strings.NewReader(input))
	return p, &out
}
