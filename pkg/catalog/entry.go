// Package catalog keeps the skills catalog document in sync with the skills
// it lists.
package catalog

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillfit/pkg/document"
	"github.com/jingkaihe/skillfit/pkg/structure"
)

const (
	// DefaultMaxItems caps the bullets copied from a skill into its entry.
	DefaultMaxItems = 5
	// DefaultSkillsDirName is the path component under which skills live.
	DefaultSkillsDirName = "skills"
	// DefaultPathPrefix is prepended to the skill path in catalog entries.
	DefaultPathPrefix = ".claude/skills"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Category groups catalog entries under a level-two header.
type Category struct {
	Key         string `mapstructure:"key" json:"key" yaml:"key"`
	Name        string `mapstructure:"name" json:"name" yaml:"name"`
	Description string `mapstructure:"description" json:"description" yaml:"description"`
}

// Header returns the catalog section header text of the category.
func (c Category) Header() string {
	return c.Name + " - " + c.Description
}

// DefaultCategories returns the stock catalog categories.
func DefaultCategories() []Category {
	return []Category{
		{Key: "filament", Name: "Filament", Description: "Filament 4.x (Laravel 12)"},
		{Key: "laravel", Name: "Laravel", Description: "Laravel Framework & Tools"},
		{Key: "fullstack", Name: "Fullstack", Description: "Full-Stack Development"},
		{Key: "workflows", Name: "Workflows", Description: "Development Workflows"},
		{Key: "api", Name: "API", Description: "API Design & Documentation"},
		{Key: "meta", Name: "Meta", Description: "Skill Management"},
		{Key: "optimize", Name: "Optimize", Description: "Performance & SEO"},
		{Key: "marketing", Name: "Marketing", Description: "Content & SEO Marketing"},
		{Key: "database", Name: "Database", Description: "Database Management & Optimization"},
	}
}

// Options controls how entries are built.
type Options struct {
	Categories    []Category
	SkillsDirName string
	PathPrefix    string
	DocumentName  string
	MaxItems      int
}

func (o Options) withDefaults() Options {
	if len(o.Categories) == 0 {
		o.Categories = DefaultCategories()
	}
	if o.SkillsDirName == "" {
		o.SkillsDirName = DefaultSkillsDirName
	}
	if o.PathPrefix == "" {
		o.PathPrefix = DefaultPathPrefix
	}
	if o.DocumentName == "" {
		o.DocumentName = document.DefaultName
	}
	if o.MaxItems <= 0 {
		o.MaxItems = DefaultMaxItems
	}
	return o
}

// Entry is one skill as listed in the catalog.
type Entry struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Path        string   `json:"path" yaml:"path"`
	Category    Category `json:"category" yaml:"category"`
	WhenToUse   []string `json:"when_to_use,omitempty" yaml:"when_to_use,omitempty"`
	KeyFeatures []string `json:"key_features,omitempty" yaml:"key_features,omitempty"`
}

// Build reads the skill document in skillDir and turns it into an Entry.
func Build(skillDir string, opts Options) (*Entry, error) {
	opts = opts.withDefaults()

	abs, err := filepath.Abs(skillDir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", skillDir)
	}

	doc, err := document.Read(filepath.Join(abs, opts.DocumentName))
	if err != nil {
		return nil, err
	}
	meta, err := document.ValidateMetadata(doc.Text, []string{"name", "description"})
	if err != nil {
		return nil, errors.Wrapf(err, "invalid skill %s", doc.Path)
	}

	parts := strings.Split(filepath.ToSlash(abs), "/")
	cat, ok := detectCategory(parts, opts.Categories)
	if !ok {
		keys := make([]string, len(opts.Categories))
		for i, c := range opts.Categories {
			keys[i] = c.Key
		}
		return nil, errors.Errorf("cannot detect category from path %s (valid categories: %s)", abs, strings.Join(keys, ", "))
	}

	rel, ok := pathAfter(parts, opts.SkillsDirName)
	if !ok {
		return nil, errors.Errorf("%q directory not found in path %s", opts.SkillsDirName, abs)
	}

	st := doc.Analyze()
	return &Entry{
		Name:        meta.Name(),
		Description: whitespaceRun.ReplaceAllString(meta.Description(), " "),
		Path:        strings.TrimSuffix(opts.PathPrefix, "/") + "/" + rel,
		Category:    cat,
		WhenToUse:   firstBullets(st, opts.MaxItems, "When to Use", "When to Activate"),
		KeyFeatures: firstBullets(st, opts.MaxItems, "Key Features", "Core Features"),
	}, nil
}

func detectCategory(parts []string, categories []Category) (Category, bool) {
	for _, part := range parts {
		for _, c := range categories {
			if part == c.Key {
				return c, true
			}
		}
	}
	return Category{}, false
}

func pathAfter(parts []string, dirName string) (string, bool) {
	for i, part := range parts {
		if part == dirName {
			return strings.Join(parts[i+1:], "/"), true
		}
	}
	return "", false
}

// firstBullets returns up to max bullets of the first section named one of
// names.
func firstBullets(st *structure.Structure, max int, names ...string) []string {
	for _, name := range names {
		ordinals := st.FindByName(name)
		if len(ordinals) == 0 {
			continue
		}
		var items []string
		for _, item := range st.Bullets(ordinals[0]) {
			items = append(items, strings.Trim(item, `"'`))
			if len(items) == max {
				break
			}
		}
		return items
	}
	return nil
}

// Lines renders the entry as catalog lines, closing separator included.
func (e *Entry) Lines(number int) []string {
	lines := []string{
		fmt.Sprintf("### %d. %s", number, e.Name),
		fmt.Sprintf("**Path:** `%s/%s`", e.Path, document.DefaultName),
		"",
		"**Description:**  ",
		e.Description,
		"",
	}
	if len(e.WhenToUse) > 0 {
		lines = append(lines, "**When to Use:**")
		for _, item := range e.WhenToUse {
			lines = append(lines, "- "+item)
		}
		lines = append(lines, "")
	}
	if len(e.KeyFeatures) > 0 {
		lines = append(lines, "**Key Features:**")
		for _, item := range e.KeyFeatures {
			lines = append(lines, "- "+item)
		}
		lines = append(lines, "")
	}
	return append(lines, structure.MetadataDelimiter, "")
}

// Render returns the entry as catalog text.
func (e *Entry) Render(number int) string {
	return strings.Join(e.Lines(number), "\n") + "\n"
}
