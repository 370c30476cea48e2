package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noteblock-tools/noteblock/version"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		v := version.VersionOrHash
		if v == "" {
			v = "(devel)"
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
	},
}
