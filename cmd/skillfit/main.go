package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillfit/pkg/batch"
	"github.com/jingkaihe/skillfit/pkg/config"
	"github.com/jingkaihe/skillfit/pkg/logger"
	"github.com/jingkaihe/skillfit/pkg/presenter"
)

// exitCode is the status main exits with once traces are flushed. Commands set
// it instead of calling os.Exit when they finish with a failing result.
var exitCode int

// complianceExitCode is 1 when any document in report is over budget.
func complianceExitCode(report *batch.Report) int {
	if report.AllCompliant() {
		return 0
	}
	return 1
}

func init() {
	viper.SetEnvPrefix("SKILLFIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skillfit")
	viper.AddConfigPath(".")

	config.SetDefaults(viper.GetViper())
}

var shutdownTracing = func(context.Context) error { return nil }

var rootCmd = &cobra.Command{
	Use:   "skillfit",
	Short: "Keep skill documents within their line budget",
	Long: `skillfit splits oversized SKILL.md documents into a compact primary document
plus reference files, linked from a generated "## References" index.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := readConfigFile(); err != nil {
			return err
		}
		if err := logger.Configure(viper.GetString("log_level"), viper.GetString("log_format")); err != nil {
			return err
		}
		shutdown, err := initTracing(cmd.Context())
		if err != nil {
			presenter.Warning("tracing disabled: " + err.Error())
			return nil
		}
		shutdownTracing = shutdown
		return nil
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
		os.Exit(1)
	},
}

// readConfigFile loads the --config file, or the first config.yaml found on
// the search path. A missing default config file is not an error.
func readConfigFile() error {
	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
		return viper.ReadInConfig()
	}
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}
	return nil
}

func main() {
	rootCmd.PersistentFlags().String("config", "", "Path to a config file (default $HOME/.skillfit/config.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "Log format (fmt, json)")
	rootCmd.PersistentFlags().String("profile", "", "Named configuration profile to apply")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("profile", rootCmd.PersistentFlags().Lookup("profile"))

	rootCmd.AddCommand(withTracing(refactorCmd))
	rootCmd.AddCommand(withTracing(checkCmd))
	rootCmd.AddCommand(withTracing(analyzeCmd))
	rootCmd.AddCommand(withTracing(extractCmd))
	rootCmd.AddCommand(withTracing(compressCmd))
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(versionCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := rootCmd.ExecuteContext(ctx)
	if serr := shutdownTracing(context.Background()); serr != nil {
		logger.G(ctx).WithError(serr).Warn("failed to flush traces")
	}
	if err != nil {
		presenter.Error(err, "")
		os.Exit(1)
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
