// Package compress removes whitespace noise from skill documents without
// touching their content.
package compress

import (
	"strings"
	"unicode"

	"github.com/jingkaihe/skillfit/pkg/structure"
)

// Result describes a compression pass.
type Result struct {
	Text   string
	Before int
	After  int
}

// Saved returns the number of lines removed.
func (r Result) Saved() int {
	return r.Before - r.After
}

// Changed reports whether the text was modified.
func (r Result) Changed(original string) bool {
	return r.Text != original
}

// Compress strips trailing whitespace, collapses runs of blank lines to one
// and collapses repeated "---" separators outside fenced code. The metadata
// block is kept verbatim. Compress is idempotent.
func Compress(text string) Result {
	lines := strings.Split(text, "\n")
	res := Result{Before: len(lines)}

	metaEnd := structure.MetadataEnd(lines)
	out := make([]string, 0, len(lines))
	out = append(out, lines[:metaEnd]...)

	var fence structure.Fence
	prevBlank, prevSeparator := false, false
	for _, line := range lines[metaEnd:] {
		line = strings.TrimRightFunc(line, unicode.IsSpace)
		isFence := fence.Observe(line)
		inCode := fence.Open() && !isFence

		blank := line == ""
		if blank && prevBlank {
			continue
		}

		separator := !inCode && !isFence && line == structure.MetadataDelimiter
		if separator && prevSeparator {
			continue
		}

		out = append(out, line)
		prevBlank = blank
		// blank lines do not separate two separators
		if !blank {
			prevSeparator = separator
		}
	}

	res.Text = strings.Join(out, "\n")
	res.After = len(out)
	return res
}
