// Package planner decides which sections of an over-budget skill document are
// relocated to reference files.
package planner

import (
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillfit/pkg/structure"
)

// Outcome is the result class of a planning run.
type Outcome int

const (
	// OutcomeNoop means the document is at or under budget.
	OutcomeNoop Outcome = iota
	// OutcomePlanned means at least one section was selected.
	OutcomePlanned
	// OutcomeNoExtractable means the document is over budget but no section
	// qualifies. The document needs a manual refactor.
	OutcomeNoExtractable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoop:
		return "noop"
	case OutcomePlanned:
		return "planned"
	case OutcomeNoExtractable:
		return "no-extractable-content"
	default:
		return "unknown"
	}
}

// Class describes how the planner sees a section.
type Class int

const (
	// ClassIgnored sections are neither protected nor candidates.
	ClassIgnored Class = iota
	// ClassEssential sections match an essential keyword.
	ClassEssential
	// ClassReferenceIndex is the generated reference index.
	ClassReferenceIndex
	// ClassEmpty sections have a header and no body.
	ClassEmpty
	// ClassExcluded sections match an exclude pattern.
	ClassExcluded
	// ClassCandidate sections may be relocated.
	ClassCandidate
)

func (c Class) String() string {
	return [...]string{"ignored", "essential", "reference-index", "empty", "excluded", "candidate"}[c]
}

// Protected reports whether sections of this class can never be extracted.
func (c Class) Protected() bool {
	return c == ClassEssential || c == ClassReferenceIndex
}

// PlannedSection is a section selected for relocation.
type PlannedSection struct {
	Ordinal int
	Name    string
	Lines   int
}

// Plan is the ordered selection of sections to relocate.
type Plan struct {
	Sections  []PlannedSection
	Total     int
	Budget    int
	Excess    int
	Relocated int
	// Residual estimates the primary document line count after extraction,
	// reference index included.
	Residual int
	Outcome  Outcome
}

// Empty reports whether the plan relocates nothing.
func (p *Plan) Empty() bool {
	return len(p.Sections) == 0
}

// Names returns the planned section names in extraction order.
func (p *Plan) Names() []string {
	names := make([]string, len(p.Sections))
	for i, s := range p.Sections {
		names[i] = s.Name
	}
	return names
}

// Contains reports whether the section with the given ordinal is planned.
func (p *Plan) Contains(ordinal int) bool {
	for _, s := range p.Sections {
		if s.Ordinal == ordinal {
			return true
		}
	}
	return false
}

// Planner applies a Policy to document structures.
type Planner struct {
	policy  Policy
	scorer  Scorer
	include []glob.Glob
	exclude []glob.Glob
}

// Option configures a Planner.
type Option func(*Planner) error

// WithScorer replaces the keyword scorer.
func WithScorer(s Scorer) Option {
	return func(p *Planner) error {
		if s == nil {
			return errors.New("scorer cannot be nil")
		}
		p.scorer = s
		return nil
	}
}

// New creates a Planner for policy.
func New(policy Policy, opts ...Option) (*Planner, error) {
	if policy.Budget <= 0 {
		return nil, errors.Errorf("budget must be positive, got %d", policy.Budget)
	}

	p := &Planner{
		policy: policy,
		scorer: KeywordScorer{
			Keywords:              policy.ExtractableKeywords,
			LargeSectionThreshold: policy.LargeSectionThreshold,
		},
	}

	var err error
	if p.include, err = compilePatterns(policy.Include); err != nil {
		return nil, errors.Wrap(err, "invalid include pattern")
	}
	if p.exclude, err = compilePatterns(policy.Exclude); err != nil {
		return nil, errors.Wrap(err, "invalid exclude pattern")
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Policy returns the policy the planner was built with.
func (p *Planner) Policy() Policy {
	return p.policy
}

// IsEssential reports whether a section name is protected from extraction.
func (p *Planner) IsEssential(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), structure.ReferenceIndexName) ||
		containsAny(name, p.policy.EssentialKeywords)
}

// Classify returns the planner's view of a section.
func (p *Planner) Classify(sec structure.Section) Class {
	switch {
	case sec.IsReferenceIndex():
		return ClassReferenceIndex
	case p.IsEssential(sec.Name):
		return ClassEssential
	case sec.BodyLines() == 0:
		return ClassEmpty
	case matchAny(p.exclude, sec.Name):
		return ClassExcluded
	case matchAny(p.include, sec.Name), p.scorer.Candidate(sec.Name, sec.LineCount()):
		return ClassCandidate
	default:
		return ClassIgnored
	}
}

// Plan selects sections of st to relocate so the document fits the budget.
func (p *Planner) Plan(st *structure.Structure) *Plan {
	plan := p.newPlan(st)
	if plan.Total <= plan.Budget {
		plan.Outcome = OutcomeNoop
		plan.Residual = plan.Total
		return plan
	}

	var candidates []structure.Section
	for _, sec := range st.Sections {
		if p.Classify(sec) == ClassCandidate {
			candidates = append(candidates, sec)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].LineCount() != candidates[j].LineCount() {
			return candidates[i].LineCount() > candidates[j].LineCount()
		}
		return candidates[i].Ordinal < candidates[j].Ordinal
	})

	for _, sec := range candidates {
		if !p.policy.ExtractAll && plan.Relocated >= plan.Excess {
			break
		}
		plan.add(sec)
	}

	p.finish(plan, st)
	return plan
}

// Select builds a plan for explicitly chosen ordinals, in the given order,
// regardless of budget. Protected sections are rejected.
func (p *Planner) Select(st *structure.Structure, ordinals ...int) (*Plan, error) {
	plan := p.newPlan(st)
	seen := make(map[int]bool)
	for _, ordinal := range ordinals {
		if ordinal < 0 || ordinal >= len(st.Sections) {
			return nil, errors.Errorf("section %d does not exist (document has %d sections)", ordinal, len(st.Sections))
		}
		if seen[ordinal] {
			continue
		}
		seen[ordinal] = true

		sec := st.Sections[ordinal]
		if class := p.Classify(sec); class.Protected() {
			return nil, errors.Errorf("section %d (%q) is %s and cannot be extracted", ordinal, sec.Name, class)
		}
		plan.add(sec)
	}

	p.finish(plan, st)
	return plan, nil
}

// SelectByName selects the first section matching each name. Prefer Select
// when names may repeat.
func (p *Planner) SelectByName(st *structure.Structure, names ...string) (*Plan, error) {
	ordinals := make([]int, 0, len(names))
	for _, name := range names {
		matches := st.FindByName(name)
		if len(matches) == 0 {
			return nil, errors.Errorf("section %q not found", name)
		}
		ordinals = append(ordinals, matches[0])
	}
	return p.Select(st, ordinals...)
}

func (p *Planner) newPlan(st *structure.Structure) *Plan {
	plan := &Plan{
		Total:  st.LineCount(),
		Budget: p.policy.Budget,
	}
	if plan.Total > plan.Budget {
		plan.Excess = plan.Total - plan.Budget
	}
	return plan
}

func (p *Planner) finish(plan *Plan, st *structure.Structure) {
	if plan.Empty() {
		plan.Outcome = OutcomeNoExtractable
		plan.Residual = plan.Total
		return
	}
	plan.Outcome = OutcomePlanned
	plan.Residual = plan.Total - plan.Relocated + structure.IndexLines(len(plan.Sections), st.ReferenceIndex() >= 0)
}

func (plan *Plan) add(sec structure.Section) {
	plan.Sections = append(plan.Sections, PlannedSection{
		Ordinal: sec.Ordinal,
		Name:    sec.Name,
		Lines:   sec.LineCount(),
	})
	plan.Relocated += sec.LineCount()
}

func compilePatterns(patterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(strings.ToLower(pattern))
		if err != nil {
			return nil, errors.Wrapf(err, "pattern %q", pattern)
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

func matchAny(globs []glob.Glob, name string) bool {
	lower := strings.ToLower(name)
	for _, g := range globs {
		if g.Match(lower) {
			return true
		}
	}
	return false
}
