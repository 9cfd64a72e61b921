package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillfit/pkg/batch"
)

func TestWatchConfigValidate(t *testing.T) {
	assert.NoError(t, NewWatchConfig().Validate())
	assert.Error(t, (&WatchConfig{DebounceTime: -1}).Validate())
}

func TestIsDocumentEvent(t *testing.T) {
	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{name: "write", event: fsnotify.Event{Name: "a/SKILL.md", Op: fsnotify.Write}, want: true},
		{name: "create", event: fsnotify.Event{Name: "a/SKILL.md", Op: fsnotify.Create}, want: true},
		{name: "remove", event: fsnotify.Event{Name: "a/SKILL.md", Op: fsnotify.Remove}},
		{name: "other file", event: fsnotify.Event{Name: "a/references/x.md", Op: fsnotify.Write}},
		{name: "chmod", event: fsnotify.Event{Name: "a/SKILL.md", Op: fsnotify.Chmod}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isDocumentEvent(tt.event, "SKILL.md"))
		})
	}
}

func TestDebounceFileEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	input := make(chan FileEvent)
	output := make(chan FileEvent, 10)
	go debounceFileEvents(ctx, input, output, 50*time.Millisecond)

	for i := 0; i < 3; i++ {
		input <- FileEvent{Path: "a/SKILL.md", Op: fsnotify.Write, Time: time.Now()}
	}
	input <- FileEvent{Path: "b/SKILL.md", Op: fsnotify.Write, Time: time.Now()}

	got := map[string]int{}
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case event := <-output:
			got[event.Path]++
		case <-timeout:
			t.Fatalf("timed out waiting for debounced events, got %v", got)
		}
	}

	select {
	case event := <-output:
		t.Fatalf("unexpected extra event %v", event)
	case <-time.After(150 * time.Millisecond):
	}
	assert.Equal(t, map[string]int{"a/SKILL.md": 1, "b/SKILL.md": 1}, got)
}

func TestAddWatchDirs(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"api/over/references", "node_modules/pkg", ".git/objects"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}

	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer watcher.Close()

	skip := map[string]bool{"node_modules": true, ".git": true}
	require.NoError(t, addWatchDirs(context.Background(), watcher, root, skip))

	assert.ElementsMatch(t, []string{
		root,
		filepath.Join(root, "api"),
		filepath.Join(root, "api", "over"),
		filepath.Join(root, "api", "over", "references"),
	}, watcher.WatchList())
}

func TestReportWatchRecord(t *testing.T) {
	tests := []struct {
		name string
		rec  batch.Record
		want string
	}{
		{name: "compliant", rec: batch.Record{Path: "a", Status: batch.StatusCompliant, After: 10}, want: "a: 10 lines"},
		{name: "refactored", rec: batch.Record{Path: "a", Status: batch.StatusRefactored, Before: 250, After: 137, Sections: []string{"Examples"}}, want: "a: 250 -> 137 lines, extracted Examples"},
		{name: "over budget", rec: batch.Record{Path: "a", Status: batch.StatusOverBudget, After: 250, Sections: []string{"Examples"}}, want: "a: 250 lines, 50 over budget (extractable: Examples)"},
		{name: "needs manual", rec: batch.Record{Path: "a", Status: batch.StatusNeedsManual, After: 300}, want: "no extractable sections"},
		{name: "error", rec: batch.Record{Path: "a", Status: batch.StatusError, Error: "boom"}, want: "boom"},
		{name: "skipped", rec: batch.Record{Path: "a", Status: batch.StatusSkipped}, want: "a: skipped"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, out := testPresenter("")
			reportWatchRecord(p, tt.rec, 200)
			assert.Contains(t, out.String(), tt.want)
		})
	}
}

func TestRunWatchModeStopsOnCancel(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runWatchMode(ctx, cfg, NewWatchConfig()) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
