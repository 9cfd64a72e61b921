package batch

import (
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Status is the outcome of processing one document.
type Status string

const (
	// StatusCompliant documents were already within budget.
	StatusCompliant Status = "compliant"
	// StatusRefactored documents had sections extracted and now fit.
	StatusRefactored Status = "refactored"
	// StatusOverBudget documents exceed the budget after processing.
	StatusOverBudget Status = "over-budget"
	// StatusNeedsManual documents are over budget with nothing extractable.
	StatusNeedsManual Status = "needs-manual"
	// StatusSkipped documents had a planned change that was declined.
	StatusSkipped Status = "skipped"
	// StatusError documents could not be processed.
	StatusError Status = "error"
)

// ErrorKind classifies per-document failures.
type ErrorKind string

const (
	// ErrorStructural means the document is malformed.
	ErrorStructural ErrorKind = "structural"
	// ErrorIO means reading or writing failed.
	ErrorIO ErrorKind = "io"
)

// Record is the per-document result of a run.
type Record struct {
	Path       string    `json:"path" yaml:"path"`
	Status     Status    `json:"status" yaml:"status"`
	Before     int       `json:"before" yaml:"before"`
	After      int       `json:"after" yaml:"after"`
	Extracted  int       `json:"extracted" yaml:"extracted"`
	Compressed int       `json:"compressed,omitempty" yaml:"compressed,omitempty"`
	Compliant  bool      `json:"compliant" yaml:"compliant"`
	Sections   []string  `json:"sections,omitempty" yaml:"sections,omitempty"`
	Artifacts  []string  `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
}

// Summary counts records by outcome.
type Summary struct {
	Total        int `json:"total" yaml:"total"`
	Compliant    int `json:"compliant" yaml:"compliant"`
	NonCompliant int `json:"non_compliant" yaml:"non_compliant"`
	Refactored   int `json:"refactored" yaml:"refactored"`
	NeedsManual  int `json:"needs_manual" yaml:"needs_manual"`
	Errored      int `json:"errored" yaml:"errored"`
}

// Add counts rec.
func (s *Summary) Add(rec Record) {
	s.Total++
	if rec.Compliant {
		s.Compliant++
	} else {
		s.NonCompliant++
	}
	switch rec.Status {
	case StatusRefactored:
		s.Refactored++
	case StatusNeedsManual:
		s.NeedsManual++
	case StatusError:
		s.Errored++
	}
}

// Report is the outcome of a batch run.
type Report struct {
	ID         string    `json:"id,omitempty" yaml:"id,omitempty"`
	Root       string    `json:"root" yaml:"root"`
	Budget     int       `json:"budget" yaml:"budget"`
	DryRun     bool      `json:"dry_run" yaml:"dry_run"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	Records    []Record  `json:"records" yaml:"records"`
	Summary    Summary   `json:"summary" yaml:"summary"`
}

func (r *Report) add(rec Record) {
	r.Records = append(r.Records, rec)
	r.Summary.Add(rec)
}

// AllCompliant reports whether every document is within budget.
func (r *Report) AllCompliant() bool {
	return r.Summary.Compliant == r.Summary.Total
}

// Err aggregates the per-document errors, or returns nil.
func (r *Report) Err() error {
	var result *multierror.Error
	for _, rec := range r.Records {
		if rec.Status == StatusError {
			result = multierror.Append(result, errors.Errorf("%s: %s", rec.Path, rec.Error))
		}
	}
	return result.ErrorOrNil()
}

// NonCompliant returns the records that are not within budget.
func (r *Report) NonCompliant() []Record {
	var out []Record
	for _, rec := range r.Records {
		if !rec.Compliant {
			out = append(out, rec)
		}
	}
	return out
}
