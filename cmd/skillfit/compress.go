package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillfit/pkg/compress"
	"github.com/jingkaihe/skillfit/pkg/document"
	"github.com/jingkaihe/skillfit/pkg/extractor"
	"github.com/jingkaihe/skillfit/pkg/presenter"
)

// CompressResult is the outcome for one file.
type CompressResult struct {
	Path      string
	Before    int
	After     int
	Written   bool
	OverBy    int
	Unchanged bool
}

var compressCmd = &cobra.Command{
	Use:   "compress <file>...",
	Short: "Collapse blank runs, trailing whitespace and repeated separators",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustLoadConfig()
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		failed := false
		for _, path := range args {
			res, err := runCompress(cmd.Context(), path, cfg.Budget, dryRun)
			if err != nil {
				presenter.Error(err, path)
				failed = true
				continue
			}
			reportCompress(presenter.Default(), res)
		}
		if failed {
			exitCode = 1
		}
	},
}

func init() {
	compressCmd.Flags().Bool("dry-run", false, "Report savings without writing")
}

func runCompress(ctx context.Context, path string, budget int, dryRun bool) (*CompressResult, error) {
	doc, err := document.Read(path)
	if err != nil {
		return nil, err
	}

	c := compress.Compress(doc.Text)
	res := &CompressResult{
		Path:      path,
		Before:    c.Before,
		After:     c.After,
		Unchanged: !c.Changed(doc.Text),
	}
	if c.After > budget {
		res.OverBy = c.After - budget
	}
	if res.Unchanged || dryRun {
		return res, nil
	}

	if err := extractor.NewWriter().Replace(ctx, path, c.Text); err != nil {
		return nil, err
	}
	res.Written = true
	return res, nil
}

func reportCompress(p presenter.Presenter, res *CompressResult) {
	switch {
	case res.Unchanged:
		p.Info(fmt.Sprintf("%s: already compact (%d lines)", res.Path, res.After))
	case res.Written:
		p.Success(fmt.Sprintf("%s: %d -> %d lines (saved %d)", res.Path, res.Before, res.After, res.Before-res.After))
	default:
		p.Info(fmt.Sprintf("%s: would save %d lines (%d -> %d)", res.Path, res.Before-res.After, res.Before, res.After))
	}
	if res.OverBy > 0 {
		p.Warning(fmt.Sprintf("%s is still %d lines over budget; run skillfit refactor", res.Path, res.OverBy))
	}
}
