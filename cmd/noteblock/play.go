package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noteblock-tools/noteblock"
	"github.com/noteblock-tools/noteblock/playback"
)

var (
	playSong songOptions
	playSeek int64
)

func init() {
	rootCmd.AddCommand(playCmd)
	addSongFlags(playCmd, &playSong)
	playCmd.Flags().Int64Var(&playSeek, "seek", 0, "Start playing at this many milliseconds.")
}

var playCmd = &cobra.Command{
	Use:   "play [flags] file",
	Short: "Print the notes of a song in real time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		song, err := load(args[0], &playSong)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		p := playback.New(song)
		p.Seek(playSeek)
		out := cmd.OutOrStdout()
		err = p.Run(ctx, func(tick int, notes []noteblock.Note) {
			fmt.Fprintf(out, "%6d %s\n", tick, formatNotes(notes))
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func formatNotes(notes []noteblock.Note) string {
	parts := make([]string, len(notes))
	for i, n := range notes {
		parts[i] = fmt.Sprintf("%v:%g", n.Instrument, n.SoundingKey())
	}
	return strings.Join(parts, " ")
}
