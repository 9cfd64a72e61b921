package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillfit/pkg/config"
	"github.com/jingkaihe/skillfit/pkg/presenter"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Run: func(cmd *cobra.Command, _ []string) {
		cfg := mustLoadConfig()
		if file := viper.ConfigFileUsed(); file != "" {
			presenter.Info("# config file: " + file)
		}
		if err := writeStructured(os.Stdout, YAMLFormat, cfg); err != nil {
			presenter.Error(err, "Failed to render configuration")
			os.Exit(1)
		}
	},
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the configuration file",
	Run: func(cmd *cobra.Command, _ []string) {
		data, err := json.MarshalIndent(config.Schema(), "", "  ")
		if err != nil {
			presenter.Error(err, "Failed to generate schema")
			os.Exit(1)
		}
		fmt.Println(string(data))
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSchemaCmd)
}
