package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// errBatch is returned by commands that have already reported every failed
// input on stderr.
var errBatch = errors.New("some inputs failed")

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "noteblock",
	Short: "Note block song converter",
	Long: `Converts songs between Note Block Studio (.nbs), standard MIDI (.mid) and
a plain text note list (.txt), and dumps or plays them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print progress to stderr.")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errBatch) {
			fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(os.Args[0]), err)
		}
		os.Exit(1)
	}
}

func logf(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// batch calls process for every input and keeps going after failures.
func batch(inputs []string, process func(path string) error) error {
	var retval error
	for _, path := range inputs {
		if err := process(path); err != nil {
			fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", path, err)
			retval = errBatch
		}
	}
	return retval
}
