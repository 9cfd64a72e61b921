// Package batch runs the analyze, plan, split and commit pipeline over every
// skill document under a root directory.
package batch

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/skillfit/pkg/compress"
	"github.com/jingkaihe/skillfit/pkg/document"
	"github.com/jingkaihe/skillfit/pkg/extractor"
	"github.com/jingkaihe/skillfit/pkg/logger"
	"github.com/jingkaihe/skillfit/pkg/planner"
	"github.com/jingkaihe/skillfit/pkg/structure"
	"github.com/jingkaihe/skillfit/pkg/telemetry"
)

// DefaultSkipDirs are directory names never descended into.
func DefaultSkipDirs() []string {
	return []string{"references", "scripts", "assets", "__pycache__", ".git"}
}

// Options configures a run.
type Options struct {
	Root         string
	DocumentName string
	SkipDirs     []string
	// Exclude holds doublestar patterns matched against slash separated
	// paths relative to Root.
	Exclude          []string
	RequiredMetadata []string
	CompressFirst    bool
	DryRun           bool
	// CheckOnly classifies documents without planning writes.
	CheckOnly bool
	Policy    planner.Policy
	// ReferencesDir is the artifact directory next to each document.
	ReferencesDir string
	// ReferencePrefix, when set, makes index pointers absolute:
	// <prefix>/<document dir relative to Root>/<references dir>/<file>.
	ReferencePrefix string
}

// Confirmer is asked before a planned change is written.
type Confirmer func(ctx context.Context, doc *document.Document, res *extractor.Result) bool

// Orchestrator processes documents sequentially.
type Orchestrator struct {
	opts     Options
	planner  *planner.Planner
	writer   *extractor.Writer
	confirm  Confirmer
	observer func(Record)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWriter replaces the default writer.
func WithWriter(w *extractor.Writer) Option {
	return func(o *Orchestrator) {
		o.writer = w
	}
}

// WithConfirm installs a confirmation hook.
func WithConfirm(c Confirmer) Option {
	return func(o *Orchestrator) {
		o.confirm = c
	}
}

// WithObserver installs a callback invoked after each document.
func WithObserver(f func(Record)) Option {
	return func(o *Orchestrator) {
		o.observer = f
	}
}

// New creates an Orchestrator.
func New(opts Options, options ...Option) (*Orchestrator, error) {
	if opts.Root == "" {
		opts.Root = "."
	}
	if opts.DocumentName == "" {
		opts.DocumentName = document.DefaultName
	}
	if opts.SkipDirs == nil {
		opts.SkipDirs = DefaultSkipDirs()
	}
	if opts.ReferencesDir == "" {
		opts.ReferencesDir = extractor.DefaultReferencesDir
	}
	for _, pattern := range opts.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.Errorf("invalid exclude pattern %q", pattern)
		}
	}

	p, err := planner.New(opts.Policy)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		opts:    opts,
		planner: p,
		writer:  extractor.NewWriter(),
	}
	for _, option := range options {
		option(o)
	}
	return o, nil
}

// Planner returns the planner used for every document.
func (o *Orchestrator) Planner() *planner.Planner {
	return o.planner
}

// Discover returns the document paths under Root in lexical order. A Root
// that is a file is returned as the only document.
func (o *Orchestrator) Discover(ctx context.Context) ([]string, error) {
	info, err := os.Stat(o.opts.Root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", o.opts.Root)
	}
	if !info.IsDir() {
		return []string{o.opts.Root}, nil
	}

	skip := make(map[string]bool, len(o.opts.SkipDirs))
	for _, name := range o.opts.SkipDirs {
		skip[name] = true
	}

	var paths []string
	err = filepath.WalkDir(o.opts.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p == o.opts.Root {
			return nil
		}
		excluded := o.excluded(p)
		if d.IsDir() {
			if skip[d.Name()] || excluded {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == o.opts.DocumentName && !excluded {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to walk %s", o.opts.Root)
	}

	sort.Strings(paths)
	logger.G(ctx).WithField("root", o.opts.Root).WithField("documents", len(paths)).Debug("documents discovered")
	return paths, nil
}

func (o *Orchestrator) excluded(p string) bool {
	rel := o.rel(p)
	for _, pattern := range o.opts.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (o *Orchestrator) rel(p string) string {
	rel, err := filepath.Rel(o.opts.Root, p)
	if err != nil || rel == "." {
		return filepath.ToSlash(filepath.Base(p))
	}
	return filepath.ToSlash(rel)
}

// Run processes every discovered document. Per-document failures become
// error records; the returned error is for discovery failures and
// cancellation, which is honoured between documents.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		Root:      o.opts.Root,
		Budget:    o.opts.Policy.Budget,
		DryRun:    o.opts.DryRun || o.opts.CheckOnly,
		StartedAt: time.Now(),
	}

	err := telemetry.WithSpan(ctx, "batch.run", func(ctx context.Context) error {
		paths, err := o.Discover(ctx)
		if err != nil {
			return err
		}
		for _, p := range paths {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec := o.Process(ctx, p)
			report.add(rec)
			if o.observer != nil {
				o.observer(rec)
			}
		}
		telemetry.SetAttributes(ctx,
			attribute.Int("batch.documents", report.Summary.Total),
			attribute.Int("batch.compliant", report.Summary.Compliant),
		)
		return nil
	}, attribute.String("batch.root", o.opts.Root), attribute.Bool("batch.dry_run", report.DryRun))

	report.FinishedAt = time.Now()
	return report, err
}

// Process runs the pipeline on one document.
func (o *Orchestrator) Process(ctx context.Context, p string) Record {
	rec := Record{Path: o.rel(p)}
	_ = telemetry.WithSpan(ctx, "batch.document", func(ctx context.Context) error {
		o.process(ctx, p, &rec)
		telemetry.SetAttributes(ctx, attribute.String("document.status", string(rec.Status)))
		if rec.Status == StatusError {
			return errors.New(rec.Error)
		}
		return nil
	}, attribute.String("document.path", rec.Path))
	return rec
}

func (o *Orchestrator) process(ctx context.Context, p string, rec *Record) {
	log := logger.G(ctx).WithField("path", rec.Path)
	budget := o.opts.Policy.Budget

	doc, err := document.Read(p)
	if err != nil {
		fail(rec, err)
		return
	}
	rec.Before = doc.LineCount()
	rec.After = rec.Before
	telemetry.SetAttributes(ctx, telemetry.DocumentAttributes(rec.Path, rec.Before, budget)...)

	if len(o.opts.RequiredMetadata) > 0 {
		if _, err := document.ValidateMetadata(doc.Text, o.opts.RequiredMetadata); err != nil {
			fail(rec, err)
			return
		}
	}

	text := doc.Text
	if o.opts.CompressFirst && !o.opts.CheckOnly {
		c := compress.Compress(text)
		text = c.Text
		rec.Compressed = c.Saved()
	}

	st := structure.Analyze(text)
	plan := o.planner.Plan(st)
	rec.After = st.LineCount()
	rec.Sections = plan.Names()
	log.WithField("lines", rec.After).WithField("outcome", plan.Outcome.String()).Debug("document planned")

	if o.opts.CheckOnly {
		rec.Compliant = rec.Before <= budget
		rec.Status = StatusCompliant
		if !rec.Compliant {
			rec.Status = StatusOverBudget
		}
		if plan.Outcome == planner.OutcomeNoExtractable {
			rec.Status = StatusNeedsManual
		}
		return
	}

	if plan.Outcome != planner.OutcomePlanned {
		rec.Compliant = plan.Outcome == planner.OutcomeNoop
		rec.Status = StatusCompliant
		if !rec.Compliant {
			rec.Status = StatusNeedsManual
		}
		if text != doc.Text && !o.opts.DryRun {
			if err := o.writer.Replace(ctx, p, text); err != nil {
				fail(rec, err)
			}
		}
		return
	}

	refDir := filepath.Join(filepath.Dir(p), o.opts.ReferencesDir)
	res, err := extractor.Split(st, plan, extractor.Options{
		ReferencesDir:   o.opts.ReferencesDir,
		ReferencePrefix: o.referencePrefix(p),
		Exists: func(name string) bool {
			_, err := os.Stat(filepath.Join(refDir, name))
			return err == nil
		},
	})
	if err != nil {
		fail(rec, err)
		return
	}

	rec.After = document.CountLines(res.Primary)
	rec.Extracted = plan.Relocated
	rec.Artifacts = res.FileNames()
	rec.Compliant = rec.After <= budget
	rec.Status = StatusRefactored
	if !rec.Compliant {
		rec.Status = StatusOverBudget
	}

	if o.confirm != nil && !o.confirm(ctx, document.New(p, text), res) {
		rec.After = st.LineCount()
		rec.Extracted = 0
		rec.Artifacts = nil
		rec.Compliant = rec.After <= budget
		rec.Status = StatusSkipped
		return
	}

	if o.opts.DryRun {
		return
	}
	if err := o.writer.Commit(ctx, p, res); err != nil {
		fail(rec, err)
		return
	}
	log.WithField("sections", rec.Sections).WithField("after", rec.After).Info("document refactored")
}

func (o *Orchestrator) referencePrefix(p string) string {
	if o.opts.ReferencePrefix == "" {
		return ""
	}
	dir := path.Dir(o.rel(p))
	if dir == "." {
		return o.opts.ReferencePrefix
	}
	return path.Join(o.opts.ReferencePrefix, dir)
}

func fail(rec *Record, err error) {
	rec.Status = StatusError
	rec.Compliant = false
	rec.Error = err.Error()
	rec.ErrorKind = ErrorIO
	if document.IsStructural(err) {
		rec.ErrorKind = ErrorStructural
	}
}
