// Package config loads skillfit settings from viper.
package config

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"
	"github.com/hashicorp/go-multierror"
	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillfit/pkg/batch"
	"github.com/jingkaihe/skillfit/pkg/catalog"
	"github.com/jingkaihe/skillfit/pkg/document"
	"github.com/jingkaihe/skillfit/pkg/extractor"
	"github.com/jingkaihe/skillfit/pkg/planner"
	"github.com/jingkaihe/skillfit/pkg/telemetry"
)

// DefaultCatalogPath is the catalog document relative to the working
// directory.
const DefaultCatalogPath = ".claude/skills/meta/choose-skill/references/skills-catalog.md"

// PlannerConfig holds the section selection policy.
type PlannerConfig struct {
	EssentialKeywords     []string `mapstructure:"essential_keywords" json:"essential_keywords" yaml:"essential_keywords"`
	ExtractableKeywords   []string `mapstructure:"extractable_keywords" json:"extractable_keywords" yaml:"extractable_keywords"`
	LargeSectionThreshold int      `mapstructure:"large_section_threshold" json:"large_section_threshold" yaml:"large_section_threshold"`
	Include               []string `mapstructure:"include" json:"include,omitempty" yaml:"include,omitempty"`
	Exclude               []string `mapstructure:"exclude" json:"exclude,omitempty" yaml:"exclude,omitempty"`
	ExtractAll            bool     `mapstructure:"extract_all" json:"extract_all" yaml:"extract_all"`
}

// ReferencesConfig controls where artifacts go and how they are pointed at.
type ReferencesConfig struct {
	Dir    string `mapstructure:"dir" json:"dir" yaml:"dir"`
	Prefix string `mapstructure:"prefix" json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// HistoryConfig controls run persistence.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" json:"path,omitempty" yaml:"path,omitempty"`
}

// CatalogConfig locates the skills catalog.
type CatalogConfig struct {
	Path       string             `mapstructure:"path" json:"path" yaml:"path"`
	PathPrefix string             `mapstructure:"path_prefix" json:"path_prefix" yaml:"path_prefix"`
	MaxItems   int                `mapstructure:"max_items" json:"max_items" yaml:"max_items"`
	Categories []catalog.Category `mapstructure:"categories" json:"categories" yaml:"categories"`
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	Enabled bool    `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Sampler string  `mapstructure:"sampler" json:"sampler" yaml:"sampler" jsonschema:"enum=always,enum=never,enum=ratio"`
	Ratio   float64 `mapstructure:"ratio" json:"ratio" yaml:"ratio"`
}

// Config is the complete skillfit configuration.
type Config struct {
	Root             string           `mapstructure:"root" json:"root" yaml:"root"`
	DocumentName     string           `mapstructure:"document_name" json:"document_name" yaml:"document_name"`
	Budget           int              `mapstructure:"budget" json:"budget" yaml:"budget"`
	SkipDirs         []string         `mapstructure:"skip_dirs" json:"skip_dirs" yaml:"skip_dirs"`
	Exclude          []string         `mapstructure:"exclude" json:"exclude,omitempty" yaml:"exclude,omitempty"`
	RequiredMetadata []string         `mapstructure:"required_metadata" json:"required_metadata" yaml:"required_metadata"`
	CompressFirst    bool             `mapstructure:"compress_first" json:"compress_first" yaml:"compress_first"`
	DryRun           bool             `mapstructure:"dry_run" json:"dry_run" yaml:"dry_run"`
	Planner          PlannerConfig    `mapstructure:"planner" json:"planner" yaml:"planner"`
	References       ReferencesConfig `mapstructure:"references" json:"references" yaml:"references"`
	History          HistoryConfig    `mapstructure:"history" json:"history" yaml:"history"`
	Catalog          CatalogConfig    `mapstructure:"catalog" json:"catalog" yaml:"catalog"`
	Tracing          TracingConfig    `mapstructure:"tracing" json:"tracing" yaml:"tracing"`

	Profile  string                            `mapstructure:"profile" json:"profile,omitempty" yaml:"profile,omitempty"`
	Profiles map[string]map[string]interface{} `mapstructure:"profiles" json:"profiles,omitempty" yaml:"profiles,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	policy := planner.DefaultPolicy()
	return Config{
		Root:             ".",
		DocumentName:     document.DefaultName,
		Budget:           policy.Budget,
		SkipDirs:         batch.DefaultSkipDirs(),
		RequiredMetadata: []string{"name", "description"},
		Planner: PlannerConfig{
			EssentialKeywords:     policy.EssentialKeywords,
			ExtractableKeywords:   policy.ExtractableKeywords,
			LargeSectionThreshold: policy.LargeSectionThreshold,
		},
		References: ReferencesConfig{Dir: extractor.DefaultReferencesDir},
		History:    HistoryConfig{Enabled: true},
		Catalog: CatalogConfig{
			Path:       DefaultCatalogPath,
			PathPrefix: catalog.DefaultPathPrefix,
			MaxItems:   catalog.DefaultMaxItems,
			Categories: catalog.DefaultCategories(),
		},
		Tracing: TracingConfig{Sampler: "always", Ratio: 1},
	}
}

// SetDefaults registers the built-in configuration as viper defaults.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("root", d.Root)
	v.SetDefault("document_name", d.DocumentName)
	v.SetDefault("budget", d.Budget)
	v.SetDefault("skip_dirs", d.SkipDirs)
	v.SetDefault("required_metadata", d.RequiredMetadata)
	v.SetDefault("compress_first", d.CompressFirst)
	v.SetDefault("dry_run", d.DryRun)
	v.SetDefault("planner.essential_keywords", d.Planner.EssentialKeywords)
	v.SetDefault("planner.extractable_keywords", d.Planner.ExtractableKeywords)
	v.SetDefault("planner.large_section_threshold", d.Planner.LargeSectionThreshold)
	v.SetDefault("planner.extract_all", d.Planner.ExtractAll)
	v.SetDefault("references.dir", d.References.Dir)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("catalog.path", d.Catalog.Path)
	v.SetDefault("catalog.path_prefix", d.Catalog.PathPrefix)
	v.SetDefault("catalog.max_items", d.Catalog.MaxItems)
	v.SetDefault("catalog.categories", d.Catalog.Categories)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.sampler", d.Tracing.Sampler)
	v.SetDefault("tracing.ratio", d.Tracing.Ratio)
}

// Load registers the defaults on v, unmarshals it, applies the active
// profile and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal configuration")
	}

	if name := activeProfile(cfg.Profile); name != "" {
		profile, ok := cfg.Profiles[name]
		if !ok {
			return nil, errors.Errorf("profile %q not found", name)
		}
		if err := applyProfile(&cfg, profile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func activeProfile(name string) string {
	if name == "default" {
		return ""
	}
	return name
}

// applyProfile decodes profile over cfg. Keys absent from the profile keep
// their values; lists given in the profile replace the base lists.
func applyProfile(cfg *Config, profile map[string]interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ZeroFields:       true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create profile decoder")
	}
	if err := decoder.Decode(profile); err != nil {
		return errors.Wrap(err, "failed to apply profile configuration")
	}
	return nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Budget <= 0 {
		result = multierror.Append(result, errors.Errorf("budget must be positive, got %d", c.Budget))
	}
	if c.DocumentName == "" || strings.ContainsAny(c.DocumentName, `/\`) {
		result = multierror.Append(result, errors.Errorf("document_name must be a file name, got %q", c.DocumentName))
	}
	if c.Planner.LargeSectionThreshold < 0 {
		result = multierror.Append(result, errors.New("planner.large_section_threshold must not be negative"))
	}
	for _, pattern := range c.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			result = multierror.Append(result, errors.Errorf("invalid exclude pattern %q", pattern))
		}
	}
	for _, pattern := range append(append([]string{}, c.Planner.Include...), c.Planner.Exclude...) {
		if _, err := glob.Compile(strings.ToLower(pattern)); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "invalid section pattern %q", pattern))
		}
	}
	if c.References.Dir == "" || filepath.IsAbs(c.References.Dir) {
		result = multierror.Append(result, errors.Errorf("references.dir must be a relative directory, got %q", c.References.Dir))
	}
	switch c.Tracing.Sampler {
	case "always", "never", "":
	case "ratio":
		if c.Tracing.Ratio < 0 || c.Tracing.Ratio > 1 {
			result = multierror.Append(result, errors.Errorf("tracing.ratio must be within [0, 1], got %v", c.Tracing.Ratio))
		}
	default:
		result = multierror.Append(result, errors.Errorf("unknown tracing.sampler %q", c.Tracing.Sampler))
	}
	for i, cat := range c.Catalog.Categories {
		if cat.Key == "" || cat.Name == "" {
			result = multierror.Append(result, errors.Errorf("catalog.categories[%d] needs a key and a name", i))
		}
	}

	return result.ErrorOrNil()
}

// PlannerPolicy returns the planning policy.
func (c *Config) PlannerPolicy() planner.Policy {
	return planner.Policy{
		Budget:                c.Budget,
		EssentialKeywords:     c.Planner.EssentialKeywords,
		ExtractableKeywords:   c.Planner.ExtractableKeywords,
		LargeSectionThreshold: c.Planner.LargeSectionThreshold,
		Include:               c.Planner.Include,
		Exclude:               c.Planner.Exclude,
		ExtractAll:            c.Planner.ExtractAll,
	}
}

// BatchOptions returns orchestrator options rooted at c.Root.
func (c *Config) BatchOptions() batch.Options {
	return batch.Options{
		Root:             c.Root,
		DocumentName:     c.DocumentName,
		SkipDirs:         c.SkipDirs,
		Exclude:          c.Exclude,
		RequiredMetadata: c.RequiredMetadata,
		CompressFirst:    c.CompressFirst,
		DryRun:           c.DryRun,
		Policy:           c.PlannerPolicy(),
		ReferencesDir:    c.References.Dir,
		ReferencePrefix:  c.References.Prefix,
	}
}

// CatalogOptions returns the catalog entry options.
func (c *Config) CatalogOptions() catalog.Options {
	return catalog.Options{
		Categories:   c.Catalog.Categories,
		PathPrefix:   c.Catalog.PathPrefix,
		DocumentName: c.DocumentName,
		MaxItems:     c.Catalog.MaxItems,
	}
}

// TelemetryConfig returns the tracing settings for the given build version.
func (c *Config) TelemetryConfig(version string) telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Tracing.Enabled,
		ServiceName:    telemetry.InstrumentationName,
		ServiceVersion: version,
		Sampler:        c.Tracing.Sampler,
		Ratio:          c.Tracing.Ratio,
	}
}

// Schema returns the JSON schema of Config.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(&Config{})
}
