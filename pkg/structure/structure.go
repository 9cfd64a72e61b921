// Package structure tokenizes skill documents into an optional metadata block,
// a preamble and an ordered list of level-two sections. It only recognizes the
// line shapes skillfit cares about and is not a markdown parser.
package structure

import (
	"strings"
	"unicode"
)

const (
	// HeaderMarker is the prefix of a section header line.
	HeaderMarker = "## "
	// MetadataDelimiter opens and closes the metadata block at the top of a document.
	MetadataDelimiter = "---"
	// ReferenceIndexName is the header text of the generated reference index section.
	ReferenceIndexName = "References"
)

// Span is a half-open range of line offsets [Start, End).
type Span struct {
	Start int
	End   int
}

// Len returns the number of lines in the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Section is a named run of lines starting at a header line and ending right
// before the next header or the end of the document.
type Section struct {
	Name    string
	Ordinal int
	Start   int
	End     int
}

// LineCount returns the number of lines in the section, header included.
func (s Section) LineCount() int {
	return s.End - s.Start
}

// BodyLines returns the number of lines after the header line.
func (s Section) BodyLines() int {
	if n := s.LineCount() - 1; n > 0 {
		return n
	}
	return 0
}

// IsReferenceIndex reports whether the section is a reference index.
func (s Section) IsReferenceIndex() bool {
	return strings.EqualFold(s.Name, ReferenceIndexName)
}

// Structure is the tokenized form of a document.
type Structure struct {
	lines []string

	// Metadata is nil when the document has no metadata block.
	Metadata *Span
	// Preamble holds the lines between the metadata block and the first header.
	Preamble Span
	Sections []Section
}

// Analyze tokenizes text into a Structure.
func Analyze(text string) *Structure {
	lines := strings.Split(text, "\n")
	st := &Structure{lines: lines}

	bodyStart := 0
	if end := MetadataEnd(lines); end > 0 {
		st.Metadata = &Span{Start: 0, End: end}
		bodyStart = end
	}
	st.Preamble = Span{Start: bodyStart, End: len(lines)}

	var current *Section
	for _, tok := range Tokenize(lines[bodyStart:], bodyStart) {
		if tok.Kind != KindHeader {
			continue
		}
		if current == nil {
			st.Preamble.End = tok.Line
		} else {
			current.End = tok.Line
			st.Sections = append(st.Sections, *current)
		}
		current = &Section{
			Name:    tok.Name,
			Ordinal: len(st.Sections),
			Start:   tok.Line,
		}
	}
	if current != nil {
		current.End = len(lines)
		st.Sections = append(st.Sections, *current)
	}

	return st
}

// MetadataEnd returns the line offset right after the closing metadata
// delimiter, or 0 when lines do not start with a complete metadata block.
func MetadataEnd(lines []string) int {
	if len(lines) == 0 || trimRight(lines[0]) != MetadataDelimiter {
		return 0
	}
	for i := 1; i < len(lines); i++ {
		if trimRight(lines[i]) == MetadataDelimiter {
			return i + 1
		}
	}
	return 0
}

// Lines returns the document lines. The slice must not be modified.
func (s *Structure) Lines() []string {
	return s.lines
}

// LineCount returns the total number of lines in the document.
func (s *Structure) LineCount() int {
	return len(s.lines)
}

// HasMetadata reports whether the document starts with a metadata block.
func (s *Structure) HasMetadata() bool {
	return s.Metadata != nil
}

// Slice returns the lines covered by span.
func (s *Structure) Slice(span Span) []string {
	return s.lines[span.Start:span.End]
}

// MetadataText returns the metadata block verbatim, delimiters included.
func (s *Structure) MetadataText() string {
	if s.Metadata == nil {
		return ""
	}
	return strings.Join(s.Slice(*s.Metadata), "\n")
}

// SectionLines returns the lines of the section with the given ordinal,
// header included.
func (s *Structure) SectionLines(ordinal int) []string {
	if ordinal < 0 || ordinal >= len(s.Sections) {
		return nil
	}
	sec := s.Sections[ordinal]
	return s.lines[sec.Start:sec.End]
}

// SectionText returns the verbatim text of a section.
func (s *Structure) SectionText(ordinal int) string {
	return strings.Join(s.SectionLines(ordinal), "\n")
}

// Body returns the lines of a section after its header.
func (s *Structure) Body(ordinal int) []string {
	lines := s.SectionLines(ordinal)
	if len(lines) == 0 {
		return nil
	}
	return lines[1:]
}

// Bullets returns the text of the top-level "- " and "* " list items in a
// section body.
func (s *Structure) Bullets(ordinal int) []string {
	var items []string
	for _, line := range s.Body(ordinal) {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			items = append(items, strings.TrimSpace(trimmed[2:]))
		}
	}
	return items
}

// FindByName returns the ordinals of every section whose name equals name,
// ignoring case. Section names are not unique.
func (s *Structure) FindByName(name string) []int {
	var ordinals []int
	for _, sec := range s.Sections {
		if strings.EqualFold(sec.Name, name) {
			ordinals = append(ordinals, sec.Ordinal)
		}
	}
	return ordinals
}

// ReferenceIndex returns the ordinal of the last reference index section, or
// -1 when the document has none.
func (s *Structure) ReferenceIndex() int {
	for i := len(s.Sections) - 1; i >= 0; i-- {
		if s.Sections[i].IsReferenceIndex() {
			return i
		}
	}
	return -1
}

func trimRight(line string) string {
	return strings.TrimRightFunc(line, unicode.IsSpace)
}
