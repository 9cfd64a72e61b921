package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillfit/pkg/presenter"
	"github.com/jingkaihe/skillfit/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Long:  `Print the version information of skillfit in JSON format.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		if short, _ := cmd.Flags().GetBool("short"); short {
			fmt.Println(info.String())
			return nil
		}
		json, err := info.JSON()
		if err != nil {
			presenter.Error(err, "Failed to format version info")
			return err
		}
		fmt.Println(json)
		return nil
	},
}

func init() {
	versionCmd.Flags().Bool("short", false, "Print a single line instead of JSON")
}
