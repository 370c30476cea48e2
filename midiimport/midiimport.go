// Package midiimport converts Standard MIDI Files into note block songs.
//
// Every track is walked against one shared tempo map, so that notes keep
// their wall-clock position regardless of tempo changes. Notes are first
// placed on a fine output grid (OutputTicksPerSecond) and the song is then
// resampled to TargetTicksPerSecond.
package midiimport

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/noteblock-tools/noteblock"
	"github.com/noteblock-tools/noteblock/keyrange"
	"github.com/noteblock-tools/noteblock/resample"
)

const (
	// DefaultMicrosPerQuarter is the tempo of a file without tempo events,
	// 120 beats per minute.
	DefaultMicrosPerQuarter = 500000

	percussionChannel = 9

	ccVolume      = 7
	ccPan         = 10
	ccResetAll    = 121
	defaultVolume = 127
	centerPan     = 64
)

type (
	Options struct {
		// OutputTicksPerSecond is the grid notes are placed on while
		// importing.
		OutputTicksPerSecond float64
		// TargetTicksPerSecond is the rate the song is resampled to if it
		// is faster. Zero keeps the output rate.
		TargetTicksPerSecond float64
		// SkipOutOfRange drops notes outside MinKey..MaxKey instead of
		// clamping them.
		SkipOutOfRange bool
		// Mapping selects instruments; nil uses DefaultMapping.
		Mapping *Mapping
		// RangePolicy is applied to the imported notes.
		RangePolicy keyrange.Policy
	}

	// TempoSegment is a tempo map entry: from Tick on, one MIDI tick lasts
	// MicrosPerTick microseconds.
	TempoSegment struct {
		Tick          int64
		MicrosPerTick float64
	}

	channelState struct {
		program uint8
		volume  uint8
		pan     uint8
	}

	dedupKey struct {
		tick       int
		instrument noteblock.Instrument
		key        float64
	}
)

func DefaultOptions() Options {
	return Options{
		OutputTicksPerSecond: 100,
		TargetTicksPerSecond: 20,
		SkipOutOfRange:       true,
	}
}

func (c *channelState) reset() {
	*c = channelState{volume: defaultVolume, pan: centerPan}
}

// ReadFile imports the MIDI file at path.
func ReadFile(path string, opts Options) (*noteblock.Song, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile: %w", err)
	}
	song, err := Read(bytes.NewReader(data), opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	song.FileName = path
	song.SourceFileName = filepath.Base(path)
	return song, nil
}

// Read decodes a Standard MIDI File and imports it.
func Read(r io.Reader, opts Options) (song *noteblock.Song, err error) {
	// the decoder panics on some malformed input
	defer func() {
		if p := recover(); p != nil {
			song, err = nil, fmt.Errorf("smf: %v", p)
		}
	}()
	mf, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("smf.ReadFrom: %w", err)
	}
	return Import(mf, opts)
}

// Import converts an already decoded MIDI file. Type 2 files and files with
// SMPTE time division are rejected.
func Import(mf *smf.SMF, opts Options) (*noteblock.Song, error) {
	if mf.Format() == 2 {
		return nil, fmt.Errorf("type 2: %w", noteblock.ErrUnsupportedMidiFormat)
	}
	ticks, ok := mf.TimeFormat.(smf.MetricTicks)
	if !ok || ticks == 0 {
		return nil, fmt.Errorf("time format %v: %w", mf.TimeFormat, noteblock.ErrUnsupportedMidiDivision)
	}
	if opts.OutputTicksPerSecond <= 0 || math.IsInf(opts.OutputTicksPerSecond, 0) {
		return nil, fmt.Errorf("output rate %v: %w", opts.OutputTicksPerSecond, noteblock.ErrInvalidTempo)
	}
	mapping := opts.Mapping
	if mapping == nil {
		mapping = DefaultMapping()
	}
	imp := &importer{
		opts:    opts,
		mapping: mapping,
		tempo:   BuildTempoMap(mf.Tracks, uint16(ticks)),
		song:    noteblock.NewSong(noteblock.FormatMIDI),
		seen:    make(map[dedupKey]struct{}),
	}
	imp.song.Tempo.Uniform(opts.OutputTicksPerSecond)
	for _, track := range mf.Tracks {
		imp.walk(track)
	}
	song := imp.song
	if opts.RangePolicy != keyrange.None {
		keyrange.Apply(song, opts.RangePolicy)
	}
	if target := opts.TargetTicksPerSecond; target > 0 && song.Tempo.Max() > target {
		if err := resample.ChangeTickSpeed(song, target); err != nil {
			return nil, fmt.Errorf("resample.ChangeTickSpeed: %w", err)
		}
	}
	return song, nil
}

// BuildTempoMap collects the tempo events of all tracks into one timeline
// sorted by tick. If several tracks change the tempo at the same tick, the
// last track wins. The first segment always starts at tick 0.
func BuildTempoMap(tracks []smf.Track, resolution uint16) []TempoSegment {
	byTick := map[int64]float64{}
	for _, track := range tracks {
		var tick int64
		for _, ev := range track {
			tick += int64(ev.Delta)
			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) && bpm > 0 {
				byTick[tick] = math.Round(60000000/bpm) / float64(resolution)
			}
		}
	}
	if _, ok := byTick[0]; !ok {
		byTick[0] = DefaultMicrosPerQuarter / float64(resolution)
	}
	ret := make([]TempoSegment, 0, len(byTick))
	for tick, us := range byTick {
		ret = append(ret, TempoSegment{Tick: tick, MicrosPerTick: us})
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Tick < ret[j].Tick })
	return ret
}

type importer struct {
	opts    Options
	mapping *Mapping
	tempo   []TempoSegment
	song    *noteblock.Song
	seen    map[dedupKey]struct{}
}

func (imp *importer) walk(track smf.Track) {
	var channels [16]channelState
	for i := range channels {
		channels[i].reset()
	}
	var (
		tick, lastTick int64
		micros         float64
		seg            int
	)
	for _, ev := range track {
		tick += int64(ev.Delta)
		for seg+1 < len(imp.tempo) && imp.tempo[seg+1].Tick <= tick {
			next := imp.tempo[seg+1].Tick
			micros += float64(next-lastTick) * imp.tempo[seg].MicrosPerTick
			lastTick = next
			seg++
		}
		micros += float64(tick-lastTick) * imp.tempo[seg].MicrosPerTick
		lastTick = tick

		msg := ev.Message
		var ch, a, b uint8
		var text string
		switch {
		case msg.GetNoteOn(&ch, &a, &b):
			if b > 0 {
				out := int(math.Round(micros * imp.opts.OutputTicksPerSecond / 1e6))
				imp.note(out, ch, a, b, &channels[ch&0x0f])
			}
		case msg.GetProgramChange(&ch, &a):
			channels[ch&0x0f].program = a
		case msg.GetControlChange(&ch, &a, &b):
			c := &channels[ch&0x0f]
			switch a {
			case ccVolume:
				c.volume = b
			case ccPan:
				c.pan = b
			case ccResetAll:
				c.reset()
			}
		case msg.GetMetaTrackName(&text):
			if imp.song.Title == "" {
				imp.song.Title = text
			}
		case msg.GetMetaCopyright(&text):
			if imp.song.Author == "" {
				imp.song.Author = text
			}
		}
	}
}

func (imp *importer) note(tick int, ch, key, velocity uint8, state *channelState) {
	var (
		instrument noteblock.Instrument
		k          float64
	)
	if ch == percussionChannel {
		var ok bool
		if instrument, k, ok = imp.mapping.Drum(key); !ok {
			return
		}
	} else {
		instrument, k = imp.mapping.Program(state.program, key)
	}
	if !noteblock.InKeyRange(k) {
		if imp.opts.SkipOutOfRange {
			return
		}
		k = noteblock.ClampKey(k)
	}
	dk := dedupKey{tick, instrument, k}
	if _, dup := imp.seen[dk]; dup {
		return
	}
	imp.seen[dk] = struct{}{}
	n := noteblock.NewNote(instrument, k)
	n.Volume = float64(velocity) / 127 * float64(state.volume) / 127
	n.Panning = math.Max(-1, math.Min(1, (float64(state.pan)-centerPan)/centerPan))
	imp.song.Notes.Add(tick, n)
}
