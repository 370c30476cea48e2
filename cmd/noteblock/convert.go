package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noteblock-tools/noteblock/nbs"
)

var (
	convertSong  songOptions
	convertWrite = writeOptions{nbs: nbs.DefaultOptions()}
	convertOut   string
	convertTo    string
)

func init() {
	rootCmd.AddCommand(convertCmd)
	addSongFlags(convertCmd, &convertSong)
	f := convertCmd.Flags()
	f.StringVarP(&convertOut, "output", "o", "", "Output file, or directory when converting several files. Defaults to the directory of each input.")
	f.StringVarP(&convertTo, "to", "t", "nbs", "Output format when -o is a directory: nbs, txt, yml or json.")
	f.IntVar(&convertWrite.nbs.Version, "version", nbs.MaxVersion, fmt.Sprintf("NBS file version to write, %d-%d.", nbs.MinVersion, nbs.MaxVersion))
	f.BoolVar(&convertWrite.nbs.Windows1252, "windows-1252", false, "Encode NBS strings as Windows-1252.")
	f.StringVar(&convertWrite.template, "template", "", "Write .txt output with this text/template file instead of the built-in one.")
}

func addSongFlags(cmd *cobra.Command, o *songOptions) {
	f := cmd.Flags()
	f.Float64Var(&o.tps, "tps", 0, "Resample to this many ticks per second. MIDI imports default to 20.")
	f.BoolVar(&o.noSkip, "no-skip", false, "Clamp MIDI notes outside the piano range instead of dropping them.")
	f.BoolVar(&o.flatten, "flatten", false, "Flatten tempo changes onto the fastest tempo of the song.")
	f.StringVar(&o.mapping, "mapping", "", "YAML file mapping MIDI programs and drums to instruments.")
	f.StringVar(&o.rangePolicy, "range-policy", "none", "Fix keys outside the vanilla range: none, clamp, transpose, instrument-shift or extended-range.")
}

var convertCmd = &cobra.Command{
	Use:   "convert [flags] file ...",
	Short: "Convert songs between formats",
	Long: `Convert songs between formats. The codec is picked by file extension:
.nbs, .mid/.midi and .txt are read; .nbs, .txt, .yml and .json are written.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return batch(args, func(in string) error {
			out, err := outputPath(in, convertOut, convertTo, len(args) > 1)
			if err != nil {
				return err
			}
			song, err := load(in, &convertSong)
			if err != nil {
				return err
			}
			if err := save(out, song, &convertWrite); err != nil {
				return err
			}
			logf("%v -> %v: %d notes\n", in, out, song.Notes.Len())
			return nil
		})
	},
}

// outputPath returns where the converted input goes. out names a file,
// unless it is a directory or several inputs are converted, in which case
// the file is named after the input with the extension to.
func outputPath(in, out, to string, several bool) (string, error) {
	ext := "." + strings.TrimPrefix(strings.ToLower(to), ".")
	name := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in)) + ext
	if out == "" {
		ret := filepath.Join(filepath.Dir(in), name)
		if ret == filepath.Clean(in) {
			return "", fmt.Errorf("output %v would overwrite the input", ret)
		}
		return ret, nil
	}
	dir := several || strings.HasSuffix(out, string(os.PathSeparator)) || strings.HasSuffix(out, "/")
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		dir = true
	}
	if !dir {
		return out, nil
	}
	if err := os.MkdirAll(out, os.ModePerm); err != nil {
		return "", fmt.Errorf("could not create output directory %v: %w", out, err)
	}
	return filepath.Join(out, name), nil
}
