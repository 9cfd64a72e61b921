package planner

import "strings"

const (
	// DefaultBudget is the maximum line count of a primary document.
	DefaultBudget = 200
	// DefaultLargeSectionThreshold is the line count above which any
	// non-essential section becomes a candidate.
	DefaultLargeSectionThreshold = 50
)

// Policy is the configuration data that drives planning.
type Policy struct {
	Budget                int
	EssentialKeywords     []string
	ExtractableKeywords   []string
	LargeSectionThreshold int
	// Include and Exclude are glob patterns matched against lower-cased
	// section names. Include forces candidacy and Exclude vetoes it.
	Include []string
	Exclude []string
	// ExtractAll selects every candidate instead of stopping once the
	// excess is covered.
	ExtractAll bool
}

// DefaultEssentialKeywords names sections that are never extracted.
func DefaultEssentialKeywords() []string {
	return []string{"when to use", "quick start", "overview", "core"}
}

// DefaultExtractableKeywords names sections that are preferred for extraction.
func DefaultExtractableKeywords() []string {
	return []string{
		"example", "detailed", "complete", "comprehensive", "advanced",
		"troubleshooting", "reference", "guide", "pattern", "implementation",
	}
}

// DefaultPolicy returns the stock planning policy.
func DefaultPolicy() Policy {
	return Policy{
		Budget:                DefaultBudget,
		EssentialKeywords:     DefaultEssentialKeywords(),
		ExtractableKeywords:   DefaultExtractableKeywords(),
		LargeSectionThreshold: DefaultLargeSectionThreshold,
	}
}

// Scorer decides whether a non-essential section is a relocation candidate.
type Scorer interface {
	Candidate(name string, lines int) bool
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(name string, lines int) bool

// Candidate calls f(name, lines).
func (f ScorerFunc) Candidate(name string, lines int) bool {
	return f(name, lines)
}

// KeywordScorer qualifies sections whose name contains one of Keywords or
// whose line count exceeds LargeSectionThreshold.
type KeywordScorer struct {
	Keywords              []string
	LargeSectionThreshold int
}

// Candidate implements Scorer.
func (k KeywordScorer) Candidate(name string, lines int) bool {
	if k.LargeSectionThreshold > 0 && lines > k.LargeSectionThreshold {
		return true
	}
	return containsAny(name, k.Keywords)
}

func containsAny(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
