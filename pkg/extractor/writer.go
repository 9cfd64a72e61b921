package extractor

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillfit/pkg/logger"
)

const (
	defaultRenameAttempts = 3
	defaultRenameDelay    = 50 * time.Millisecond
)

// Writer commits split results to disk. A commit either replaces every
// target file or leaves the previous files in place.
type Writer struct {
	rename   func(oldpath, newpath string) error
	attempts uint
	delay    time.Duration
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithRename overrides the function used to move staged files into place.
func WithRename(rename func(oldpath, newpath string) error) WriterOption {
	return func(w *Writer) {
		w.rename = rename
	}
}

// WithRetry sets how often a failed rename is retried.
func WithRetry(attempts uint, delay time.Duration) WriterOption {
	return func(w *Writer) {
		w.attempts = attempts
		w.delay = delay
	}
}

// NewWriter creates a Writer.
func NewWriter(opts ...WriterOption) *Writer {
	w := &Writer{
		rename:   os.Rename,
		attempts: defaultRenameAttempts,
		delay:    defaultRenameDelay,
	}
	for _, opt := range opts {
		opt(w)
	}
	// retry-go treats zero attempts as unlimited
	if w.attempts == 0 {
		w.attempts = 1
	}
	return w
}

type target struct {
	path    string
	content string
	staged  string
	backup  []byte
	existed bool
	mode    os.FileMode
}

// Targets returns the files a commit of res for docPath writes, artifacts
// first and the primary document last.
func Targets(docPath string, res *Result) []string {
	if !res.Changed() {
		return nil
	}
	refDir := filepath.Join(filepath.Dir(docPath), res.ReferencesDir)
	paths := make([]string, 0, len(res.Artifacts)+1)
	for _, a := range res.Artifacts {
		paths = append(paths, filepath.Join(refDir, a.FileName))
	}
	return append(paths, docPath)
}

// Commit writes the artifacts of res and the rewritten primary document at
// docPath. Nothing is written when res has no artifacts.
func (w *Writer) Commit(ctx context.Context, docPath string, res *Result) error {
	if !res.Changed() {
		return nil
	}

	refDir := filepath.Join(filepath.Dir(docPath), res.ReferencesDir)
	_, statErr := os.Stat(refDir)
	created := os.IsNotExist(statErr)
	if err := os.MkdirAll(refDir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create references directory %s", refDir)
	}

	paths := Targets(docPath, res)
	targets := make([]*target, len(paths))
	for i, p := range paths {
		content := res.Primary
		if i < len(res.Artifacts) {
			content = res.Artifacts[i].Content
		}
		targets[i] = &target{path: p, content: content, mode: 0o644}
	}
	if err := w.commit(ctx, docPath, targets); err != nil {
		// only removes the directory when the rollback left it empty
		if created {
			_ = os.Remove(refDir)
		}
		return err
	}
	return nil
}

// Replace atomically rewrites a single file.
func (w *Writer) Replace(ctx context.Context, path, content string) error {
	return w.commit(ctx, path, []*target{{path: path, content: content, mode: 0o644}})
}

func (w *Writer) commit(ctx context.Context, docPath string, targets []*target) error {
	log := logger.G(ctx).WithField("path", docPath)

	if err := snapshot(targets); err != nil {
		return err
	}
	if err := stage(targets); err != nil {
		cleanup(targets)
		return err
	}

	for i, t := range targets {
		err := retry.Do(
			func() error {
				return w.rename(t.staged, t.path)
			},
			retry.Attempts(w.attempts),
			retry.Delay(w.delay),
			retry.DelayType(retry.FixedDelay),
			retry.LastErrorOnly(true),
			retry.Context(ctx),
			retry.OnRetry(func(n uint, err error) {
				log.WithError(err).WithField("attempt", n+1).Warn("retrying rename")
			}),
		)
		if err != nil {
			cleanup(targets[i:])
			if rerr := restore(targets[:i]); rerr != nil {
				return multierror.Append(errors.Wrapf(err, "failed to write %s", t.path), rerr)
			}
			return errors.Wrapf(err, "failed to write %s", t.path)
		}
		t.staged = ""
		log.WithField("file", t.path).Debug("file committed")
	}

	return nil
}

// snapshot records the current content of every target that exists.
func snapshot(targets []*target) error {
	for _, t := range targets {
		info, err := os.Stat(t.path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "failed to stat %s", t.path)
		}
		data, err := os.ReadFile(t.path)
		if err != nil {
			return errors.Wrapf(err, "failed to read %s", t.path)
		}
		t.existed = true
		t.backup = data
		t.mode = info.Mode().Perm()
	}
	return nil
}

func stage(targets []*target) error {
	for _, t := range targets {
		f, err := os.CreateTemp(filepath.Dir(t.path), "."+filepath.Base(t.path)+".skillfit-*")
		if err != nil {
			return errors.Wrapf(err, "failed to stage %s", t.path)
		}
		t.staged = f.Name()

		_, werr := f.WriteString(t.content)
		cerr := f.Close()
		if werr != nil {
			return errors.Wrapf(werr, "failed to stage %s", t.path)
		}
		if cerr != nil {
			return errors.Wrapf(cerr, "failed to stage %s", t.path)
		}
		if err := os.Chmod(t.staged, t.mode); err != nil {
			return errors.Wrapf(err, "failed to stage %s", t.path)
		}
	}
	return nil
}

func cleanup(targets []*target) {
	for _, t := range targets {
		if t.staged != "" {
			_ = os.Remove(t.staged)
			t.staged = ""
		}
	}
}

// restore puts back the pre-commit state of targets that were already
// replaced. Targets are restored in reverse so the earliest snapshot of a
// repeated path wins.
func restore(targets []*target) error {
	var result error
	for i := len(targets) - 1; i >= 0; i-- {
		t := targets[i]
		var err error
		if t.existed {
			err = os.WriteFile(t.path, t.backup, t.mode)
		} else {
			err = os.Remove(t.path)
			if os.IsNotExist(err) {
				err = nil
			}
		}
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "failed to restore %s", t.path))
		}
	}
	return result
}
