package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/skillfit/pkg/batch"
	"github.com/jingkaihe/skillfit/pkg/config"
	"github.com/jingkaihe/skillfit/pkg/db"
	"github.com/jingkaihe/skillfit/pkg/history"
	"github.com/jingkaihe/skillfit/pkg/presenter"
)

// OutputFormat selects how results are rendered.
type OutputFormat string

const (
	TableFormat OutputFormat = "table"
	JSONFormat  OutputFormat = "json"
	YAMLFormat  OutputFormat = "yaml"
)

// ParseOutputFormat validates a --format value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case TableFormat, JSONFormat, YAMLFormat:
		return f, nil
	default:
		return "", errors.Errorf("unknown output format %q (table, json, yaml)", s)
	}
}

// writeStructured renders v as JSON or YAML.
func writeStructured(w io.Writer, format OutputFormat, v interface{}) error {
	if format == YAMLFormat {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "error generating YAML output")
		}
		return enc.Close()
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "error generating JSON output")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// ReportOutput renders a batch report.
type ReportOutput struct {
	Report *batch.Report
	Format OutputFormat
}

// Render writes the report to w.
func (o *ReportOutput) Render(w io.Writer) error {
	if o.Format != TableFormat {
		return writeStructured(w, o.Format, o.Report)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tSTATUS\tBEFORE\tAFTER\tEXTRACTED\tDETAIL")
	for _, rec := range o.Report.Records {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			rec.Path, rec.Status, rec.Before, rec.After, rec.Extracted, recordDetail(rec))
	}
	return tw.Flush()
}

func recordDetail(rec batch.Record) string {
	switch {
	case rec.Error != "":
		return fmt.Sprintf("%s error: %s", rec.ErrorKind, rec.Error)
	case rec.Status == batch.StatusNeedsManual:
		return "no extractable sections, needs manual refactor"
	case len(rec.Sections) > 0:
		return strings.Join(rec.Sections, ", ")
	case rec.Compressed > 0:
		return fmt.Sprintf("compressed %d lines", rec.Compressed)
	default:
		return ""
	}
}

// loadConfig reads the effective configuration from viper.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

func mustLoadConfig() *config.Config {
	cfg, err := loadConfig()
	if err != nil {
		presenter.Error(err, "Invalid configuration")
		os.Exit(1)
	}
	return cfg
}

// openHistory opens the run history at history.path, or the default
// database path.
func openHistory(ctx context.Context, cfg *config.Config) (*history.Store, error) {
	if cfg.History.Path != "" {
		return history.Open(ctx, cfg.History.Path)
	}
	return history.OpenDefault(ctx)
}

func historyPath(cfg *config.Config) string {
	if cfg.History.Path != "" {
		return cfg.History.Path
	}
	path, err := db.DefaultDBPath()
	if err != nil {
		return "unknown"
	}
	return path
}
