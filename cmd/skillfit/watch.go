package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillfit/pkg/batch"
	"github.com/jingkaihe/skillfit/pkg/config"
	"github.com/jingkaihe/skillfit/pkg/logger"
	"github.com/jingkaihe/skillfit/pkg/presenter"
)

// WatchConfig holds the flags of the watch command.
type WatchConfig struct {
	DebounceTime int
	Refactor     bool
}

// NewWatchConfig returns the flag defaults.
func NewWatchConfig() *WatchConfig {
	return &WatchConfig{
		DebounceTime: 500,
		Refactor:     false,
	}
}

// Validate rejects negative debounce times.
func (c *WatchConfig) Validate() error {
	if c.DebounceTime < 0 {
		return errors.Errorf("debounce time cannot be negative: %d", c.DebounceTime)
	}
	return nil
}

// FileEvent is a change to a skill document.
type FileEvent struct {
	Path string
	Op   fsnotify.Op
	Time time.Time
}

var watchCmd = &cobra.Command{
	Use:   "watch [root]",
	Short: "Re-check skill documents as they change",
	Long: `Watch the skills tree and check every SKILL.md that is written. With
--refactor, over-budget documents are split as soon as they are saved.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		wc := getWatchConfigFromFlags(cmd)
		if err := wc.Validate(); err != nil {
			presenter.Error(err, "Invalid configuration")
			os.Exit(1)
		}

		cfg := mustLoadConfig()
		if len(args) > 0 {
			cfg.Root = args[0]
		}

		if err := runWatchMode(cmd.Context(), cfg, wc); err != nil {
			presenter.Error(err, "Watch failed")
			os.Exit(1)
		}
	},
}

func init() {
	defaults := NewWatchConfig()
	watchCmd.Flags().IntP("debounce", "d", defaults.DebounceTime, "Debounce time in milliseconds for file change events")
	watchCmd.Flags().Bool("refactor", defaults.Refactor, "Split over-budget documents instead of only reporting them")
}

func getWatchConfigFromFlags(cmd *cobra.Command) *WatchConfig {
	config := NewWatchConfig()

	if debounceTime, err := cmd.Flags().GetInt("debounce"); err == nil {
		config.DebounceTime = debounceTime
	}
	if refactor, err := cmd.Flags().GetBool("refactor"); err == nil {
		config.Refactor = refactor
	}

	return config
}

func runWatchMode(ctx context.Context, cfg *config.Config, wc *WatchConfig) error {
	opts := cfg.BatchOptions()
	opts.CheckOnly = !wc.Refactor
	orchestrator, err := batch.New(opts)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer watcher.Close()

	skip := make(map[string]bool, len(opts.SkipDirs))
	for _, name := range opts.SkipDirs {
		skip[name] = true
	}
	if err := addWatchDirs(ctx, watcher, cfg.Root, skip); err != nil {
		return err
	}

	events := make(chan FileEvent)
	debounced := make(chan FileEvent)
	go debounceFileEvents(ctx, events, debounced, time.Duration(wc.DebounceTime)*time.Millisecond)

	go func() {
		for {
			select {
			case event := <-debounced:
				rec := orchestrator.Process(ctx, event.Path)
				reportWatchRecord(presenter.Default(), rec, cfg.Budget)
			case <-ctx.Done():
				return
			}
		}
	}()

	presenter.Info(fmt.Sprintf("Watching %s for %s changes... Press Ctrl+C to stop", cfg.Root, cfg.DocumentName))
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !skip[info.Name()] {
					if err := addWatchDirs(ctx, watcher, event.Name, skip); err != nil {
						logger.G(ctx).WithError(err).WithField("directory", event.Name).Warn("failed to watch new directory")
					}
					continue
				}
			}
			if isDocumentEvent(event, cfg.DocumentName) {
				select {
				case events <- FileEvent{Path: event.Name, Op: event.Op, Time: time.Now()}:
				case <-ctx.Done():
					return nil
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.G(ctx).WithError(err).Error("error watching files")
		case <-ctx.Done():
			return nil
		}
	}
}

// addWatchDirs watches root and its subdirectories, skipping directories
// named in skip.
func addWatchDirs(ctx context.Context, watcher *fsnotify.Watcher, root string, skip map[string]bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skip[d.Name()] {
			return filepath.SkipDir
		}
		logger.G(ctx).WithField("directory", path).Debug("adding directory to watcher")
		return watcher.Add(path)
	})
}

func isDocumentEvent(event fsnotify.Event, documentName string) bool {
	return event.Op&(fsnotify.Write|fsnotify.Create) != 0 && filepath.Base(event.Name) == documentName
}

// debounceFileEvents forwards an event once no newer event for the same path
// arrived within delay.
func debounceFileEvents(ctx context.Context, input <-chan FileEvent, output chan<- FileEvent, delay time.Duration) {
	pending := make(map[string]*time.Timer)
	stopAll := func() {
		for _, timer := range pending {
			timer.Stop()
		}
	}

	for {
		select {
		case event, ok := <-input:
			if !ok {
				stopAll()
				return
			}
			if timer, exists := pending[event.Path]; exists {
				timer.Stop()
			}
			eventCopy := event
			pending[event.Path] = time.AfterFunc(delay, func() {
				select {
				case output <- eventCopy:
				case <-ctx.Done():
				}
			})
		case <-ctx.Done():
			stopAll()
			return
		}
	}
}

func reportWatchRecord(p presenter.Presenter, rec batch.Record, budget int) {
	switch rec.Status {
	case batch.StatusCompliant:
		p.Success(fmt.Sprintf("%s: %d lines", rec.Path, rec.After))
	case batch.StatusRefactored:
		p.Success(fmt.Sprintf("%s: %d -> %d lines, extracted %s", rec.Path, rec.Before, rec.After, formatSections(rec.Sections)))
	case batch.StatusOverBudget:
		p.Warning(fmt.Sprintf("%s: %d lines, %d over budget (extractable: %s)", rec.Path, rec.After, rec.After-budget, formatSections(rec.Sections)))
	case batch.StatusNeedsManual:
		p.Warning(fmt.Sprintf("%s: %d lines, no extractable sections, needs manual refactor", rec.Path, rec.After))
	case batch.StatusError:
		p.Error(errors.New(rec.Error), rec.Path)
	default:
		p.Info(fmt.Sprintf("%s: %s", rec.Path, rec.Status))
	}
}
