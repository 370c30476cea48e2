package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noteblock-tools/noteblock"
	"github.com/noteblock-tools/noteblock/nbs"
)

const demo = `#title Demo
#custom 45 Piano
0:0:66
5:c0:60:0.5
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeDemo(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "demo.txt")
	require.NoError(t, os.WriteFile(path, []byte(demo), 0644))
	return path
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	in := writeDemo(t, dir)
	out := filepath.Join(dir, "demo.nbs")
	_, err := run(t, "convert", in, "-o", out, "--version", "4")
	require.NoError(t, err)

	song, err := nbs.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "Demo", song.Title)
	assert.Equal(t, 4, song.Version)
	assert.Equal(t, []int{0, 5}, song.Notes.Ticks())
	piano := song.Notes.Get(5)[0]
	assert.Equal(t, "Piano", piano.Instrument.Name)
	assert.Equal(t, 0.5, piano.Volume)
}

func TestConvertBatchContinues(t *testing.T) {
	dir := t.TempDir()
	in := writeDemo(t, dir)
	outDir := filepath.Join(dir, "out")
	_, err := run(t, "convert", filepath.Join(dir, "missing.txt"), in, "-o", outDir, "--to", "yml")
	assert.ErrorIs(t, err, errBatch)
	b, err := os.ReadFile(filepath.Join(outDir, "demo.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "Demo")
}

func TestDump(t *testing.T) {
	in := writeDemo(t, t.TempDir())
	out, err := run(t, "dump", "-j", in)
	require.NoError(t, err)
	assert.Contains(t, out, `"Title": "Demo"`)
}

func TestPrintInfo(t *testing.T) {
	song := noteblock.NewSong(noteblock.FormatNBS)
	song.Version = 5
	song.Title = "Demo"
	song.Notes.Add(0, noteblock.NewNote(noteblock.Vanilla(noteblock.Harp), 66))
	song.Notes.Add(19, noteblock.NewNote(noteblock.Vanilla(noteblock.Harp), 90))
	var buf bytes.Buffer
	require.NoError(t, printInfo(&buf, "demo.nbs", song))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "demo.nbs\n"))
	assert.Contains(t, out, "nbs v5")
	assert.Contains(t, out, "20 ticks, 2s")
	assert.Contains(t, out, "2, 1 outside the vanilla range")
}

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()
	out, err := outputPath("songs/a.mid", "", "nbs", false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("songs", "a.nbs"), out)

	_, err = outputPath("a.nbs", "", "nbs", false)
	assert.Error(t, err)

	out, err = outputPath("a.mid", filepath.Join(dir, "b.txt"), "nbs", false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "b.txt"), out)

	out, err = outputPath("x/a.mid", dir, ".TXT", false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.txt"), out)

	out, err = outputPath("a.mid", filepath.Join(dir, "new"), "json", true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "new", "a.json"), out)
}

func TestUnknownExtension(t *testing.T) {
	_, err := load("song.wav", &songOptions{rangePolicy: "none"})
	assert.ErrorIs(t, err, errUnknownExtension)
	_, err = load("song.nbs", &songOptions{rangePolicy: "sideways"})
	assert.Error(t, err)
}
