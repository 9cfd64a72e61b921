package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillfit/pkg/planner"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, Default(), *cfg)
	assert.Equal(t, planner.DefaultPolicy(), cfg.PlannerPolicy())
	assert.Equal(t, "SKILL.md", cfg.BatchOptions().DocumentName)
	assert.Len(t, cfg.CatalogOptions().Categories, 9)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
budget: 150
skip_dirs: [vendor]
exclude: ["legacy/**"]
planner:
  extract_all: true
  include: ["faq*"]
references:
  prefix: .claude/skills
`), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 150, cfg.Budget)
	assert.Equal(t, []string{"vendor"}, cfg.SkipDirs)
	assert.Equal(t, []string{"legacy/**"}, cfg.BatchOptions().Exclude)
	assert.True(t, cfg.PlannerPolicy().ExtractAll)
	assert.Equal(t, []string{"faq*"}, cfg.PlannerPolicy().Include)
	assert.Equal(t, ".claude/skills", cfg.BatchOptions().ReferencePrefix)
	assert.Equal(t, "references", cfg.References.Dir)
	assert.Equal(t, planner.DefaultEssentialKeywords(), cfg.Planner.EssentialKeywords)
}

func TestLoadProfile(t *testing.T) {
	v := viper.New()
	v.Set("budget", 180)
	v.Set("profile", "strict")
	v.Set("profiles", map[string]interface{}{
		"strict": map[string]interface{}{
			"budget":    120,
			"skip_dirs": []string{"drafts"},
			"planner": map[string]interface{}{
				"extract_all": true,
			},
		},
	})

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Budget)
	assert.Equal(t, []string{"drafts"}, cfg.SkipDirs)
	assert.True(t, cfg.Planner.ExtractAll)
	assert.Equal(t, planner.DefaultLargeSectionThreshold, cfg.Planner.LargeSectionThreshold)

	t.Run("default profile is the base config", func(t *testing.T) {
		v.Set("profile", "default")
		cfg, err := Load(v)
		require.NoError(t, err)
		assert.Equal(t, 180, cfg.Budget)
	})

	t.Run("unknown profile", func(t *testing.T) {
		v.Set("profile", "missing")
		_, err := Load(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `profile "missing" not found`)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   []string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:   "non-positive budget",
			mutate: func(c *Config) { c.Budget = 0 },
			want:   []string{"budget must be positive"},
		},
		{
			name:   "document name with separator",
			mutate: func(c *Config) { c.DocumentName = "a/SKILL.md" },
			want:   []string{"document_name must be a file name"},
		},
		{
			name:   "bad patterns",
			mutate: func(c *Config) { c.Exclude = []string{"[x"}; c.Planner.Include = []string{"[y"} },
			want:   []string{`invalid exclude pattern "[x"`, `invalid section pattern "[y"`},
		},
		{
			name:   "absolute references dir",
			mutate: func(c *Config) { c.References.Dir = "/tmp/refs" },
			want:   []string{"references.dir must be a relative directory"},
		},
		{
			name:   "ratio out of range",
			mutate: func(c *Config) { c.Tracing.Sampler = "ratio"; c.Tracing.Ratio = 2 },
			want:   []string{"tracing.ratio must be within [0, 1]"},
		},
		{
			name:   "unknown sampler",
			mutate: func(c *Config) { c.Tracing.Sampler = "sometimes" },
			want:   []string{`unknown tracing.sampler "sometimes"`},
		},
		{
			name:   "category without key",
			mutate: func(c *Config) { c.Catalog.Categories[0].Key = "" },
			want:   []string{"catalog.categories[0] needs a key and a name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if len(tt.want) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, msg := range tt.want {
				assert.Contains(t, err.Error(), msg)
			}
		})
	}
}

func TestTelemetryConfig(t *testing.T) {
	cfg := Default()
	cfg.Tracing.Enabled = true
	tc := cfg.TelemetryConfig("1.2.3")
	assert.True(t, tc.Enabled)
	assert.Equal(t, "skillfit", tc.ServiceName)
	assert.Equal(t, "1.2.3", tc.ServiceVersion)
	assert.Equal(t, "always", tc.Sampler)
}

func TestSchema(t *testing.T) {
	data, err := json.Marshal(Schema())
	require.NoError(t, err)

	s := string(data)
	for _, key := range []string{`"budget"`, `"document_name"`, `"planner"`, `"extract_all"`, `"categories"`} {
		assert.True(t, strings.Contains(s, key), "schema should mention %s", key)
	}
}
