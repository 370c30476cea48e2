// Package nbs reads and writes Note Block Studio (.nbs) files, versions 0
// through 5.
//
// All numbers are little-endian. A file is a header, a note stream encoded
// as tick and layer jumps, and two optional trailers: per-layer metadata and
// the custom instrument list. Which header, note and trailer fields exist
// depends on the file version; see headerFields.
package nbs

import (
	"fmt"
	"os"
	"strings"

	"github.com/noteblock-tools/noteblock"
	"github.com/noteblock-tools/noteblock/resample"
)

// Versions this package reads and writes.
const (
	MinVersion = 0
	MaxVersion = 5
)

// Names of the custom instruments that editors treat as control events
// rather than sounds.
const (
	TempoChanger           = resample.TempoChangerName
	ToggleRainbow          = "Toggle Rainbow"
	ToggleBackgroundAccent = "Toggle Background Accent"
	ShowSavePopup          = "Show Save Popup"
	SoundStopper           = "Sound Stopper"
	changeColor            = "change color"
)

// ControlLayerName is the name of the layer the writer adds for tempo
// changes and markers when the song has no such layer yet.
const ControlLayerName = "Control"

// Options control how a song is written.
type Options struct {
	// Version is the file version to write, MinVersion..MaxVersion.
	Version int
	// Windows1252 encodes strings as Windows-1252 instead of UTF-8, for
	// editors that predate Unicode support. Characters outside the code page
	// are kept as UTF-8.
	Windows1252 bool
}

// DefaultOptions writes the newest version.
func DefaultOptions() Options {
	return Options{Version: MaxVersion}
}

type reservedKind int

const (
	plainInstrument reservedKind = iota
	tempoChangerInstrument
	markerInstrument
	droppedInstrument
)

var markerInstruments = []struct {
	name       string
	kind       noteblock.MarkerKind
	minVersion int
}{
	{ToggleRainbow, noteblock.MarkerToggleRainbow, 4},
	{ToggleBackgroundAccent, noteblock.MarkerToggleBackgroundAccent, 5},
	{ShowSavePopup, noteblock.MarkerShowSavePopup, 5},
}

// classify tells how a note of the custom instrument called name is read in
// a file of the given version.
func classify(name string, version int) (reservedKind, noteblock.MarkerKind) {
	if version >= 4 && name == TempoChanger {
		return tempoChangerInstrument, ""
	}
	for _, m := range markerInstruments {
		if version >= m.minVersion && name == m.name {
			return markerInstrument, m.kind
		}
	}
	if version >= 5 && (name == SoundStopper || strings.Contains(strings.ToLower(name), changeColor)) {
		return droppedInstrument, ""
	}
	return plainInstrument, ""
}

// markerInstrumentName returns the reserved instrument for a marker kind
// and whether the version can store it.
func markerInstrumentName(kind noteblock.MarkerKind, version int) (string, bool) {
	for _, m := range markerInstruments {
		if m.kind == kind {
			return m.name, version >= m.minVersion
		}
	}
	return "", false
}

// ReadFile reads the song stored at path.
func ReadFile(path string) (*noteblock.Song, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open: %w", err)
	}
	defer f.Close()
	song, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	song.FileName = path
	return song, nil
}

// WriteFile writes song to path, replacing any existing file.
func WriteFile(path string, song *noteblock.Song, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("os.Create: %w", err)
	}
	if err := Write(f, song, opts); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
