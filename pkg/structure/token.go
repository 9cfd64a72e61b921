package structure

import "strings"

// Kind classifies a body line.
type Kind int

const (
	// KindText is an ordinary line.
	KindText Kind = iota
	// KindHeader is a section header line.
	KindHeader
	// KindFence opens or closes a fenced code region.
	KindFence
	// KindCode is a line inside a fenced code region.
	KindCode
)

// Token is one classified line.
type Token struct {
	Kind Kind
	// Line is the offset of the line in the whole document.
	Line int
	// Name is the header text for KindHeader tokens.
	Name string
}

// Tokenize classifies lines, which start at document offset base. Header
// markers inside fenced code regions are not headers.
func Tokenize(lines []string, base int) []Token {
	tokens := make([]Token, 0, len(lines))
	var fence Fence
	for i, line := range lines {
		tok := Token{Kind: KindText, Line: base + i}
		switch {
		case fence.Observe(line):
			tok.Kind = KindFence
		case fence.Open():
			tok.Kind = KindCode
		case IsHeader(line):
			tok.Kind = KindHeader
			tok.Name = HeaderName(line)
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// IsHeader reports whether line is a level-two header.
func IsHeader(line string) bool {
	return strings.HasPrefix(line, HeaderMarker)
}

// HeaderName returns the header text of line with the marker and surrounding
// whitespace removed.
func HeaderName(line string) string {
	return strings.TrimSpace(strings.TrimPrefix(line, HeaderMarker))
}

// Fence tracks fenced code regions delimited by ``` or ~~~ lines. A region
// closes only on a bare run of the opening character at least as long as the
// opening run; lines carrying an info string never close it.
type Fence struct {
	char byte
	size int
}

// Observe feeds the next line to the tracker and reports whether the line is
// a fence delimiter.
func (f *Fence) Observe(line string) bool {
	trimmed := strings.TrimSpace(line)
	if f.size > 0 {
		if n := markerRun(trimmed, f.char); n >= f.size && n == len(trimmed) {
			f.char, f.size = 0, 0
			return true
		}
		return false
	}
	for _, char := range []byte{'`', '~'} {
		if n := markerRun(trimmed, char); n >= 3 {
			f.char, f.size = char, n
			return true
		}
	}
	return false
}

func markerRun(line string, char byte) int {
	n := 0
	for n < len(line) && line[n] == char {
		n++
	}
	return n
}

// Open reports whether the tracker is inside a fenced region.
func (f *Fence) Open() bool {
	return f.size > 0
}
