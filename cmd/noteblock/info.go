package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/noteblock-tools/noteblock"
	"github.com/noteblock-tools/noteblock/resample"
)

var infoSong songOptions

func init() {
	rootCmd.AddCommand(infoCmd)
	addSongFlags(infoCmd, &infoSong)
}

var infoCmd = &cobra.Command{
	Use:   "info [flags] file ...",
	Short: "Print a summary of songs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return batch(args, func(path string) error {
			song, err := load(path, &infoSong)
			if err != nil {
				return err
			}
			return printInfo(cmd.OutOrStdout(), path, song)
		})
	},
}

func printInfo(w io.Writer, path string, song *noteblock.Song) error {
	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	row := func(key string, value interface{}) {
		fmt.Fprintf(tw, "  %s:\t%v\n", key, value)
	}
	fmt.Fprintf(tw, "%s\n", path)
	format := string(song.Format)
	if song.Format == noteblock.FormatNBS {
		format = fmt.Sprintf("%s v%d", format, song.Version)
	}
	row("format", format)
	if song.Title != "" {
		row("title", song.Title)
	}
	if song.Author != "" {
		row("author", song.Author)
	}
	if song.OriginalAuthor != "" {
		row("original author", song.OriginalAuthor)
	}
	length := song.Length()
	duration := resample.TickToDuration(&song.Tempo, length).Round(time.Millisecond)
	row("length", fmt.Sprintf("%d ticks, %v", length, duration))
	if lo, hi := song.Tempo.Range(); lo == hi {
		row("tempo", fmt.Sprintf("%g ticks/s", lo))
	} else {
		row("tempo", fmt.Sprintf("%g-%g ticks/s, %d changes", lo, hi, song.Tempo.Len()-1))
	}
	outside := 0
	song.Notes.ForEach(func(_ int, notes []noteblock.Note) {
		for _, n := range notes {
			if !noteblock.InVanillaRange(n.Key) {
				outside++
			}
		}
	})
	row("notes", fmt.Sprintf("%d, %d outside the vanilla range", song.Notes.Len(), outside))
	if len(song.Layers) > 0 {
		row("layers", len(song.Layers))
	}
	for _, c := range song.CustomInstruments {
		row("custom instrument", c)
	}
	if len(song.Markers) > 0 {
		row("markers", len(song.Markers))
	}
	if song.Loop.Enabled {
		row("loop", fmt.Sprintf("from tick %d, %d times", song.Loop.StartTick, song.Loop.MaxCount))
	}
	return tw.Flush()
}
