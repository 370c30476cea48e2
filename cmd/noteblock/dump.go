package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	dumpSong songOptions
	dumpJSON bool
)

func init() {
	rootCmd.AddCommand(dumpCmd)
	addSongFlags(dumpCmd, &dumpSong)
	dumpCmd.Flags().BoolVarP(&dumpJSON, "json", "j", false, "Dump as .json instead of .yml.")
}

var dumpCmd = &cobra.Command{
	Use:   "dump [flags] file ...",
	Short: "Write songs to stdout as YAML or JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return batch(args, func(path string) error {
			song, err := load(path, &dumpSong)
			if err != nil {
				return err
			}
			b, err := marshal(song, dumpJSON)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) > 1 && !dumpJSON {
				fmt.Fprint(out, "---\n")
			}
			_, err = out.Write(b)
			return err
		})
	},
}
