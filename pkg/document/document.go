// Package document loads skill documents and validates their metadata block.
package document

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"

	"github.com/jingkaihe/skillfit/pkg/structure"
)

// DefaultName is the file name of a skill document.
const DefaultName = "SKILL.md"

var (
	// ErrMissingMetadata is returned when a document has no metadata block.
	ErrMissingMetadata = errors.New("missing metadata block")
	// ErrMissingField is returned when a required metadata field is empty.
	ErrMissingField = errors.New("missing required metadata field")
	// ErrInvalidMetadata is returned when the metadata block is not valid YAML.
	ErrInvalidMetadata = errors.New("invalid metadata block")
)

// Document is a skill document read into memory.
type Document struct {
	Path string
	Text string
}

// New creates a Document from text.
func New(path, text string) *Document {
	return &Document{Path: path, Text: text}
}

// Read loads the document at path.
func Read(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return New(path, string(content)), nil
}

// LineCount returns the number of newline separated segments of the text.
func (d *Document) LineCount() int {
	return CountLines(d.Text)
}

// HasMetadata reports whether the document starts with a metadata block.
func (d *Document) HasMetadata() bool {
	return structure.MetadataEnd(strings.Split(d.Text, "\n")) > 0
}

// Analyze tokenizes the document.
func (d *Document) Analyze() *structure.Structure {
	return structure.Analyze(d.Text)
}

// Metadata parses the metadata block. It returns ErrMissingMetadata when the
// document has none.
func (d *Document) Metadata() (Metadata, error) {
	return ParseMetadata(d.Text)
}

// CountLines returns the line count used for budgets. A trailing newline
// counts as an extra empty line.
func CountLines(text string) int {
	return strings.Count(text, "\n") + 1
}

// Metadata holds the parsed metadata block.
type Metadata map[string]interface{}

// String returns the value of key as a string, or "" when it is absent.
func (m Metadata) String(key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Name returns the "name" field.
func (m Metadata) Name() string {
	return m.String("name")
}

// Description returns the "description" field.
func (m Metadata) Description() string {
	return m.String("description")
}

// ParseMetadata extracts the metadata block of text with goldmark-meta.
func ParseMetadata(text string) (Metadata, error) {
	lines := strings.Split(text, "\n")
	end := structure.MetadataEnd(lines)
	if end == 0 {
		return nil, ErrMissingMetadata
	}

	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()
	source := []byte(strings.Join(lines[:end], "\n") + "\n")
	if err := md.Convert(source, &buf, parser.WithContext(pctx)); err != nil {
		return nil, errors.Wrap(ErrInvalidMetadata, err.Error())
	}

	data, err := meta.TryGet(pctx)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidMetadata, err.Error())
	}
	if data == nil {
		return Metadata{}, nil
	}
	return Metadata(data), nil
}

// ValidateMetadata checks that text has a metadata block and that every
// required field is set.
func ValidateMetadata(text string, required []string) (Metadata, error) {
	m, err := ParseMetadata(text)
	if err != nil {
		return nil, err
	}
	for _, field := range required {
		if m.String(field) == "" {
			return m, errors.Wrapf(ErrMissingField, "field %q", field)
		}
	}
	return m, nil
}

// IsStructural reports whether err describes a malformed document rather
// than an I/O failure.
func IsStructural(err error) bool {
	switch errors.Cause(err) {
	case ErrMissingMetadata, ErrMissingField, ErrInvalidMetadata:
		return true
	default:
		return false
	}
}
