package structure

import (
	"fmt"
	"regexp"
)

var indexEntryPattern = regexp.MustCompile("^\\*\\*(.+):\\*\\* `read (.+)`$")

// IndexPrologue returns the lines that open a generated reference index block.
func IndexPrologue() []string {
	return []string{"", MetadataDelimiter, "", HeaderMarker + ReferenceIndexName, ""}
}

// IndexEpilogue returns the lines that close a generated reference index block.
func IndexEpilogue() []string {
	return []string{""}
}

// IndexEntry renders one reference index line.
func IndexEntry(name, pointer string) string {
	return fmt.Sprintf("**%s:** `read %s`", name, pointer)
}

// ParseIndexEntry parses a line produced by IndexEntry.
func ParseIndexEntry(line string) (name, pointer string, ok bool) {
	m := indexEntryPattern.FindStringSubmatch(trimRight(line))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// IndexLines returns how many lines a reference index with n entries adds to
// a document. When the document already has an index only the entries are
// added.
func IndexLines(n int, existing bool) int {
	if n == 0 {
		return 0
	}
	if existing {
		return n
	}
	return len(IndexPrologue()) + n + len(IndexEpilogue())
}

// IndexEntries returns the parsed entries of the reference index section, if
// any.
func (s *Structure) IndexEntries() [][2]string {
	ordinal := s.ReferenceIndex()
	if ordinal < 0 {
		return nil
	}
	var entries [][2]string
	for _, line := range s.Body(ordinal) {
		if name, pointer, ok := ParseIndexEntry(line); ok {
			entries = append(entries, [2]string{name, pointer})
		}
	}
	return entries
}
