package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillfit/pkg/catalog"
	"github.com/jingkaihe/skillfit/pkg/config"
	"github.com/jingkaihe/skillfit/pkg/presenter"
)

// CatalogSyncConfig holds the flags of catalog sync.
type CatalogSyncConfig struct {
	Path   string
	DryRun bool
	Yes    bool
}

// NewCatalogSyncConfig returns the flag defaults. An empty Path uses
// catalog.path from the configuration.
func NewCatalogSyncConfig() *CatalogSyncConfig {
	return &CatalogSyncConfig{}
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Maintain the skills catalog",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var catalogSyncCmd = &cobra.Command{
	Use:   "sync <skill-dir>",
	Short: "Add or update a skill's entry in the catalog",
	Long: `Build a catalog entry from the skill's metadata and its "When to Use" and
"Key Features" bullets, then insert it under its category, or replace the
existing entry of the same name. Shows a diff and asks before writing.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cc := getCatalogSyncConfigFromFlags(cmd)
		cfg := mustLoadConfig()

		res, err := runCatalogSync(cmd.Context(), args[0], cfg, cc, presenter.Default())
		if err != nil {
			presenter.Error(err, "Catalog sync failed")
			os.Exit(1)
		}

		switch {
		case res.Written && res.Updated:
			presenter.Success(fmt.Sprintf("Updated entry #%d; catalog lists %d skills", res.Number, res.Total))
		case res.Written:
			presenter.Success(fmt.Sprintf("Added entry #%d; catalog lists %d skills", res.Number, res.Total))
		case res.Diff == "":
			presenter.Info("Catalog already up to date")
		default:
			presenter.Warning("Catalog not changed")
		}
	},
}

func init() {
	defaults := NewCatalogSyncConfig()
	catalogSyncCmd.Flags().String("catalog", defaults.Path, "Catalog file (default catalog.path from config)")
	catalogSyncCmd.Flags().Bool("dry-run", defaults.DryRun, "Show the diff without writing")
	catalogSyncCmd.Flags().BoolP("yes", "y", defaults.Yes, "Write without asking for confirmation")

	catalogCmd.AddCommand(catalogSyncCmd)
}

func getCatalogSyncConfigFromFlags(cmd *cobra.Command) *CatalogSyncConfig {
	config := NewCatalogSyncConfig()

	if path, err := cmd.Flags().GetString("catalog"); err == nil {
		config.Path = path
	}
	if dryRun, err := cmd.Flags().GetBool("dry-run"); err == nil {
		config.DryRun = dryRun
	}
	if yes, err := cmd.Flags().GetBool("yes"); err == nil {
		config.Yes = yes
	}

	return config
}

func runCatalogSync(ctx context.Context, skillDir string, cfg *config.Config, cc *CatalogSyncConfig, p presenter.Presenter) (*catalog.SyncResult, error) {
	entry, err := catalog.Build(skillDir, cfg.CatalogOptions())
	if err != nil {
		return nil, err
	}
	p.Info(fmt.Sprintf("%s (%s) -> %s", entry.Name, entry.Category.Name, entry.Path))

	path := cc.Path
	if path == "" {
		path = cfg.Catalog.Path
	}
	syncer := &catalog.Syncer{
		Path: path,
		Confirm: func(diff string) bool {
			p.Diff(diff)
			if cc.DryRun {
				return false
			}
			return cc.Yes || p.Confirm("Apply these changes to the catalog?")
		},
	}
	return syncer.Sync(ctx, entry)
}
