// Package extractor turns an extraction plan into a rewritten primary document
// plus one reference artifact per relocated section.
package extractor

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillfit/pkg/planner"
	"github.com/jingkaihe/skillfit/pkg/structure"
)

// DefaultReferencesDir is the directory, relative to the document, that
// receives extracted sections.
const DefaultReferencesDir = "references"

var slugInvalid = regexp.MustCompile(`[^a-z0-9-]`)

// Slug converts a section name into a file name stem.
func Slug(name string) string {
	s := strings.ToLower(name)
	s = strings.NewReplacer(" ", "-", "/", "-", "\\", "-").Replace(s)
	return slugInvalid.ReplaceAllString(s, "")
}

// FileNameFor returns the artifact file name for a section.
func FileNameFor(name string, ordinal int) string {
	slug := Slug(name)
	if slug == "" {
		slug = fmt.Sprintf("section-%d", ordinal)
	}
	return slug + ".md"
}

// Options controls artifact naming and reference pointers.
type Options struct {
	// ReferencesDir is the artifact directory relative to the document.
	ReferencesDir string
	// ReferencePrefix is prepended to every pointer in the reference index.
	ReferencePrefix string
	// Exists reports whether an artifact file name is already taken in the
	// references directory. A nil Exists means nothing is taken.
	Exists func(fileName string) bool
}

func (o Options) referencesDir() string {
	if o.ReferencesDir == "" {
		return DefaultReferencesDir
	}
	return o.ReferencesDir
}

// Artifact is an extracted section ready to be written.
type Artifact struct {
	Name     string
	Ordinal  int
	FileName string
	Lines    int
	Content  string
}

// ReferenceEntry is one line of the reference index.
type ReferenceEntry struct {
	Name     string `json:"name" yaml:"name"`
	FileName string `json:"file_name" yaml:"file_name"`
	Pointer  string `json:"pointer" yaml:"pointer"`
}

// Result is the in-memory outcome of a split.
type Result struct {
	Primary       string
	Artifacts     []Artifact
	References    []ReferenceEntry
	ReferencesDir string
}

// Changed reports whether the split relocated anything.
func (r *Result) Changed() bool {
	return len(r.Artifacts) > 0
}

// FileNames returns the artifact file names in extraction order.
func (r *Result) FileNames() []string {
	names := make([]string, len(r.Artifacts))
	for i, a := range r.Artifacts {
		names[i] = a.FileName
	}
	return names
}

// Split applies plan to st. An empty plan returns the document unchanged.
func Split(st *structure.Structure, plan *planner.Plan, opts Options) (*Result, error) {
	res := &Result{ReferencesDir: opts.referencesDir()}
	lines := st.Lines()

	if plan == nil || plan.Empty() {
		res.Primary = strings.Join(lines, "\n")
		return res, nil
	}

	indexOrdinal := st.ReferenceIndex()
	planned := make(map[int]bool, len(plan.Sections))
	for _, ps := range plan.Sections {
		if ps.Ordinal < 0 || ps.Ordinal >= len(st.Sections) {
			return nil, errors.Errorf("planned section %d (%q) does not exist", ps.Ordinal, ps.Name)
		}
		if ps.Ordinal == indexOrdinal {
			return nil, errors.Errorf("the %s section cannot be extracted", structure.ReferenceIndexName)
		}
		planned[ps.Ordinal] = true
	}

	taken := make(map[string]bool)
	for _, ps := range plan.Sections {
		sec := st.Sections[ps.Ordinal]
		fileName := uniqueFileName(FileNameFor(sec.Name, sec.Ordinal), taken, opts.Exists)
		taken[fileName] = true

		res.Artifacts = append(res.Artifacts, Artifact{
			Name:     sec.Name,
			Ordinal:  sec.Ordinal,
			FileName: fileName,
			Lines:    sec.LineCount(),
			Content:  artifactContent(st.SectionLines(sec.Ordinal)),
		})
		res.References = append(res.References, ReferenceEntry{
			Name:     sec.Name,
			FileName: fileName,
			Pointer:  path.Join(opts.ReferencePrefix, res.ReferencesDir, fileName),
		})
	}

	entries := make([]string, len(res.References))
	for i, ref := range res.References {
		entries[i] = structure.IndexEntry(ref.Name, ref.Pointer)
	}

	out := make([]string, 0, len(lines))
	if st.Metadata != nil {
		out = append(out, st.Slice(*st.Metadata)...)
	}
	out = append(out, st.Slice(st.Preamble)...)
	for _, sec := range st.Sections {
		if planned[sec.Ordinal] {
			continue
		}
		secLines := st.SectionLines(sec.Ordinal)
		if sec.Ordinal == indexOrdinal {
			secLines = insertEntries(secLines, entries)
		}
		out = append(out, secLines...)
	}
	if indexOrdinal < 0 {
		out = append(out, structure.IndexPrologue()...)
		out = append(out, entries...)
		out = append(out, structure.IndexEpilogue()...)
	}

	res.Primary = strings.Join(out, "\n")
	return res, nil
}

// uniqueFileName keeps names produced earlier in the same split as they are,
// so duplicates within one operation overwrite each other, and suffixes names
// that already exist on disk.
func uniqueFileName(fileName string, taken map[string]bool, exists func(string) bool) string {
	if taken[fileName] || exists == nil || !exists(fileName) {
		return fileName
	}
	stem := strings.TrimSuffix(fileName, ".md")
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d.md", stem, n)
		if taken[candidate] || !exists(candidate) {
			return candidate
		}
	}
}

func artifactContent(lines []string) string {
	content := strings.Join(lines, "\n")
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content
}

// insertEntries adds entries after the last existing index entry, or after
// the section's non-blank content when it has none.
func insertEntries(section []string, entries []string) []string {
	pos := -1
	for i, line := range section {
		if _, _, ok := structure.ParseIndexEntry(line); ok {
			pos = i + 1
		}
	}
	if pos < 0 {
		pos = len(section)
		for pos > 1 && strings.TrimSpace(section[pos-1]) == "" {
			pos--
		}
		if pos == 1 {
			// header only: keep the blank line that separates it from entries
			pos = min(2, len(section))
		}
	}

	out := make([]string, 0, len(section)+len(entries))
	out = append(out, section[:pos]...)
	out = append(out, entries...)
	return append(out, section[pos:]...)
}
