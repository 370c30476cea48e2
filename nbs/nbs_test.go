package nbs_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/noteblock-tools/noteblock"
	"github.com/noteblock-tools/noteblock/nbs"
)

// builder assembles NBS bytes by hand.
type builder struct {
	bytes.Buffer
}

func (b *builder) u8(v int) *builder {
	b.WriteByte(byte(v))
	return b
}

func (b *builder) i16(v int) *builder {
	binary.Write(&b.Buffer, binary.LittleEndian, int16(v))
	return b
}

func (b *builder) i32(v int) *builder {
	binary.Write(&b.Buffer, binary.LittleEndian, int32(v))
	return b
}

func (b *builder) str(s string) *builder {
	b.i32(len(s))
	b.WriteString(s)
	return b
}

// header writes a header with empty strings and zero counters.
func (b *builder) header(version, layerCount, tempo int, title string) *builder {
	if version == 0 {
		b.i16(1)
	} else {
		b.i16(0).u8(version).u8(16)
		if version >= 3 {
			b.i16(1)
		}
	}
	b.i16(layerCount).str(title).str("").str("").str("")
	b.i16(tempo).u8(0).u8(10).u8(4)
	b.i32(0).i32(0).i32(0).i32(0).i32(0)
	b.str("")
	if version >= 4 {
		b.u8(0).u8(0).i16(0)
	}
	return b
}

func TestReadLegacyWithoutTrailers(t *testing.T) {
	var b builder
	b.header(0, 1, 1000, "legacy")
	b.i16(1).i16(1).u8(noteblock.Harp).u8(33).i16(0)
	b.i16(0)
	song, err := nbs.Read(&b)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if song.Version != 0 || song.Title != "legacy" {
		t.Fatalf("unexpected header: version %d title %q", song.Version, song.Title)
	}
	if got := song.TicksPerSecond(); got != 10 {
		t.Fatalf("tempo: got %v, expected 10", got)
	}
	notes := song.Notes.Get(0)
	if len(notes) != 1 {
		t.Fatalf("expected 1 note at tick 0, got %v", notes)
	}
	n := notes[0]
	if !n.Instrument.Equal(noteblock.Vanilla(noteblock.Harp)) || n.Key != noteblock.VanillaMinKey || n.Volume != 1 || n.Panning != 0 {
		t.Fatalf("unexpected note %+v", n)
	}
	if len(song.Layers) != 1 || n.Layer != song.Layers[0] || song.Layers[0].Volume != 100 {
		t.Fatalf("unexpected layers %+v", song.Layers)
	}
}

func TestReadTempoChanger(t *testing.T) {
	var b builder
	b.header(4, 1, 1000, "")
	b.i16(1).i16(1).u8(noteblock.Harp).u8(45).u8(100).u8(100).i16(0).i16(0)
	b.i16(50).i16(1).u8(16).u8(45).u8(100).u8(100).i16(300).i16(0)
	b.i16(0)
	b.str("layer").u8(0).u8(100).u8(100)
	b.u8(1).str(nbs.TempoChanger).str("").u8(45).u8(0)
	song, err := nbs.Read(&b)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got := song.Tempo.EffectiveTempo(50); got != 20 {
		t.Fatalf("tempo at 50: got %v, expected 20", got)
	}
	if got := song.Tempo.EffectiveTempo(49); got != 10 {
		t.Fatalf("tempo at 49: got %v, expected 10", got)
	}
	if song.Notes.Len() != 1 || song.Notes.Get(50) != nil {
		t.Fatalf("tempo changer note was not removed: %v", song.Notes.Slice())
	}
	if song.Layers[0].Name != "layer" {
		t.Fatalf("layer name: got %q", song.Layers[0].Name)
	}
}

func TestReadLayerMixing(t *testing.T) {
	var b builder
	b.header(5, 3, 1000, "")
	b.i16(1)
	b.i16(1).u8(noteblock.Harp).u8(45).u8(100).u8(100).i16(0)
	b.i16(1).u8(noteblock.Harp).u8(46).u8(100).u8(100).i16(0)
	b.i16(1).u8(noteblock.Harp).u8(47).u8(80).u8(150).i16(0)
	b.i16(0)
	b.i16(0)
	b.str("solo").u8(2).u8(50).u8(100)
	b.str("plain").u8(0).u8(100).u8(100)
	b.str("panned").u8(0).u8(100).u8(200)
	song, err := nbs.Read(&b)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	notes := song.Notes.Get(0)
	if len(notes) != 3 {
		t.Fatalf("expected 3 notes, got %d", len(notes))
	}
	if notes[0].Volume != 0.5 {
		t.Errorf("solo layer volume: got %v, expected 0.5", notes[0].Volume)
	}
	if notes[1].Volume != 0 || notes[2].Volume != 0 {
		t.Errorf("non-solo layers should be muted: %v %v", notes[1].Volume, notes[2].Volume)
	}
	if notes[2].Panning != 0.75 {
		t.Errorf("panning: got %v, expected 0.75", notes[2].Panning)
	}
	if !song.Layers[0].Solo || song.Layers[0].Locked {
		t.Errorf("lock byte 2 should mean solo: %+v", song.Layers[0])
	}
}

func TestReadLockedLayer(t *testing.T) {
	var b builder
	b.header(4, 1, 1000, "")
	b.i16(1).i16(1).u8(noteblock.Harp).u8(45).u8(100).u8(100).i16(0).i16(0)
	b.i16(0)
	b.str("locked").u8(1).u8(100).u8(100)
	song, err := nbs.Read(&b)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !song.Layers[0].Locked || song.Notes.Get(0)[0].Volume != 0 {
		t.Fatalf("locked layer should mute its notes")
	}
}

func TestReadPartialLayerTrailer(t *testing.T) {
	var b builder
	b.header(5, 2, 1000, "")
	b.i16(1).i16(1).u8(noteblock.Harp).u8(45).u8(100).u8(100).i16(0).i16(0)
	b.i16(0)
	b.str("first").u8(0).u8(40).u8(100)
	b.str("second")
	song, err := nbs.Read(&b)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if song.Layers[1].Name != "second" || song.Layers[1].Volume != 100 {
		t.Fatalf("partial trailer: got %+v", song.Layers[1])
	}
	if got := song.Notes.Get(0)[0].Volume; got != 0.4 {
		t.Fatalf("volume: got %v, expected 0.4", got)
	}
}

func TestReadCustomBasePitch(t *testing.T) {
	var b builder
	b.header(5, 1, 1000, "")
	b.i16(1).i16(1).u8(16).u8(45).u8(100).u8(100).i16(0).i16(0)
	b.i16(0)
	b.str("").u8(0).u8(100).u8(100)
	b.u8(1).str("Piano").str("piano.ogg").u8(57).u8(1)
	song, err := nbs.Read(&b)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	n := song.Notes.Get(0)[0]
	if n.Key != 78 {
		t.Errorf("key: got %v, expected 78", n.Key)
	}
	if !n.Instrument.IsCustom() || n.Instrument.BasePitch != noteblock.NeutralBasePitch || n.Instrument.Name != "Piano" {
		t.Errorf("instrument: got %+v", n.Instrument)
	}
	if song.CustomInstruments[0].BasePitch != 57 || !song.CustomInstruments[0].PressKey {
		t.Errorf("custom instrument list should be kept as stored: %+v", song.CustomInstruments[0])
	}
}

func TestReadWindows1252Strings(t *testing.T) {
	var b builder
	b.header(5, 0, 1000, "Caf\xe9\rdel Mar")
	b.i16(0)
	song, err := nbs.Read(&b)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if song.Title != "Café del Mar" {
		t.Fatalf("title: got %q", song.Title)
	}
}

func TestReadErrors(t *testing.T) {
	var unknownVersion builder
	unknownVersion.i16(0).u8(6).u8(16).i16(1)

	var truncated builder
	truncated.header(5, 1, 1000, "")
	truncated.i16(1).i16(1).u8(0)

	var badInstrument builder
	badInstrument.header(5, 1, 1000, "")
	badInstrument.i16(1).i16(1).u8(20).u8(45).u8(100).u8(100).i16(0).i16(0).i16(0)

	for _, tc := range []struct {
		name string
		data []byte
		want error
	}{
		{"unknown version", unknownVersion.Bytes(), noteblock.ErrMalformedHeader},
		{"empty", nil, noteblock.ErrTruncatedStream},
		{"truncated note", truncated.Bytes(), noteblock.ErrTruncatedStream},
		{"unknown instrument", badInstrument.Bytes(), noteblock.ErrInvalidInstrument},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := nbs.Read(bytes.NewReader(tc.data))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func roundTripSong(version int) *noteblock.Song {
	song := noteblock.NewSong(noteblock.FormatNBS)
	song.Title = "Round trip"
	song.Author = "someone"
	song.Description = "two layers"
	song.Stats.MinutesSpent = 12
	song.Stats.BlocksAdded = 4
	melody := song.AddLayer("Melody")
	bass := song.AddLayer("Bass")
	add := func(tick int, instrument int, key float64, layer *noteblock.Layer) {
		n := noteblock.NewNote(noteblock.Vanilla(instrument), key)
		n.Layer = layer
		song.Notes.Add(tick, n)
	}
	add(0, noteblock.Harp, 66, melody)
	add(0, noteblock.DoubleBass, 54, bass)
	add(4, noteblock.Guitar, 70, melody)
	add(4, noteblock.Flute, 62, nil)
	add(4, noteblock.Flute, 63, nil)
	if version >= 4 {
		n := noteblock.NewNote(noteblock.Vanilla(noteblock.Bell), 66.5)
		n.Volume = 0.5
		n.Panning = -0.25
		n.Layer = bass
		song.Notes.Add(8, n)
		song.Tempo.SetTempo(4, 20)
		song.Markers = append(song.Markers, noteblock.Marker{Tick: 2, Kind: noteblock.MarkerToggleRainbow})
		song.Loop = noteblock.Loop{Enabled: true, MaxCount: 3, StartTick: 4}
	}
	return song
}

func summary(song *noteblock.Song) []string {
	var ret []string
	song.Notes.ForEach(func(tick int, notes []noteblock.Note) {
		for _, n := range notes {
			name := "<nil>"
			if n.Layer != nil {
				name = n.Layer.Name
			}
			ret = append(ret, fmt.Sprintf("%d %v %.2f %.2f %.2f %s", tick, n.Instrument, n.Key, n.Volume, n.Panning, name))
		}
	})
	for _, e := range song.Tempo.Events() {
		ret = append(ret, fmt.Sprintf("tempo %d %v", e.Tick, e.TicksPerSecond))
	}
	for _, m := range song.Markers {
		ret = append(ret, fmt.Sprintf("marker %d %s", m.Tick, m.Kind))
	}
	ret = append(ret, fmt.Sprintf("%q %q %q %+v %+v", song.Title, song.Author, song.Description, song.Loop, song.Stats))
	return ret
}

func roundTrip(t *testing.T, song *noteblock.Song, version int) *noteblock.Song {
	t.Helper()
	var buf bytes.Buffer
	if err := nbs.Write(&buf, song, nbs.Options{Version: version}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	ret, err := nbs.Read(&buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	return ret
}

func TestRoundTrip(t *testing.T) {
	for version := nbs.MinVersion; version <= nbs.MaxVersion; version++ {
		t.Run(fmt.Sprintf("v%d", version), func(t *testing.T) {
			first := roundTrip(t, roundTripSong(version), version)
			second := roundTrip(t, first, version)
			if first.Version != version {
				t.Fatalf("version: got %d, expected %d", first.Version, version)
			}
			if a, b := summary(first), summary(second); !reflect.DeepEqual(a, b) {
				t.Fatalf("round trip changed the song:\n%v\n%v", a, b)
			}
			if len(first.Layers) != len(second.Layers) {
				t.Fatalf("layer count changed: %d → %d", len(first.Layers), len(second.Layers))
			}
			if first.Notes.Len() != roundTripSong(version).Notes.Len() {
				t.Fatalf("note count: got %d", first.Notes.Len())
			}
			notes := first.Notes.Get(4)
			if len(notes) != 3 || notes[1].Layer.Name != "" || notes[2].Layer.Name != "" || notes[1].Layer == notes[2].Layer {
				t.Fatalf("layerless notes should be stacked on separate layers: %+v", notes)
			}
		})
	}
}

func TestRoundTripLegacyLayerMix(t *testing.T) {
	for _, version := range []int{2, 3} {
		t.Run(fmt.Sprintf("v%d", version), func(t *testing.T) {
			var b builder
			b.header(version, 2, 1000, "")
			b.i16(1)
			b.i16(1).u8(noteblock.Harp).u8(45)
			b.i16(1).u8(noteblock.Harp).u8(46)
			b.i16(0)
			b.i16(3).i16(1).u8(noteblock.Bell).u8(50).i16(0)
			b.i16(0)
			b.str("quiet").u8(50).u8(150)
			b.str("loud").u8(100).u8(100)
			song, err := nbs.Read(&b)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if n := song.Notes.Get(0)[0]; n.Volume != 0.5 || n.Panning != 0.25 {
				t.Fatalf("read: got volume %v panning %v", n.Volume, n.Panning)
			}
			again := roundTrip(t, song, version)
			if before, after := summary(song), summary(again); !reflect.DeepEqual(before, after) {
				t.Fatalf("round trip changed the song:\n%v\n%v", before, after)
			}
			if l := again.Layers[0]; l.Name != "quiet" || l.Volume != 50 || l.Panning != 150 {
				t.Fatalf("layer: got %+v", l)
			}
		})
	}
}

func TestWriteLegacySplitsMixes(t *testing.T) {
	song := noteblock.NewSong(noteblock.FormatNBS)
	layer := song.AddLayer("Mixed")
	for tick, volume := range []float64{0.5, 1, 0.5} {
		n := noteblock.NewNote(noteblock.Vanilla(noteblock.Harp), 66)
		n.Volume = volume
		n.Layer = layer
		song.Notes.Add(tick, n)
	}
	got := roundTrip(t, song, 3)
	for tick, volume := range []float64{0.5, 1, 0.5} {
		if n := got.Notes.Get(tick)[0]; n.Volume != volume {
			t.Errorf("tick %d: volume %v, expected %v", tick, n.Volume, volume)
		}
	}
	if len(got.Layers) != 2 || got.Notes.Get(0)[0].Layer != got.Notes.Get(2)[0].Layer {
		t.Fatalf("notes sharing a mix should share a layer: %d layers", len(got.Layers))
	}
}

func TestRoundTripTempoAndMarkers(t *testing.T) {
	song := roundTrip(t, roundTripSong(5), 5)
	if got := song.Tempo.EffectiveTempo(4); got != 20 {
		t.Errorf("tempo at 4: got %v, expected 20", got)
	}
	if !reflect.DeepEqual(song.Markers, []noteblock.Marker{{Tick: 2, Kind: noteblock.MarkerToggleRainbow}}) {
		t.Errorf("markers: got %v", song.Markers)
	}
	n := song.Notes.Get(8)[0]
	if n.Key != 66.5 || n.Volume != 0.5 || n.Panning != -0.25 {
		t.Errorf("note at 8: got %+v", n)
	}
	if _, ok := song.FindCustomInstrument(nbs.TempoChanger); !ok {
		t.Errorf("tempo changer instrument was not added")
	}
	if last := song.Layers[len(song.Layers)-1]; last.Name != nbs.ControlLayerName {
		t.Errorf("control layer: got %q", last.Name)
	}
}

func TestWriteDropsTempoChangesBeforeVersion4(t *testing.T) {
	song := roundTripSong(3)
	song.Tempo.SetTempo(4, 20)
	got := roundTrip(t, song, 3)
	if !got.Tempo.IsUniform() || got.TicksPerSecond() != 10 {
		t.Fatalf("tempo: got %v", got.Tempo.Events())
	}
}

func TestWriteShiftedInstrument(t *testing.T) {
	song := noteblock.NewSong(noteblock.FormatText)
	song.Notes.Add(0, noteblock.NewNote(noteblock.Shifted(noteblock.Vanilla(noteblock.Harp), 2), 60))
	got := roundTrip(t, song, 5)
	n := got.Notes.Get(0)[0]
	if !n.Instrument.Equal(noteblock.Vanilla(noteblock.Harp)) || n.Key != 84 {
		t.Fatalf("got %+v", n)
	}
}

func TestWriteErrors(t *testing.T) {
	foreign := noteblock.NewSong(noteblock.FormatNBS)
	n := noteblock.NewNote(noteblock.Vanilla(noteblock.Harp), 60)
	n.Layer = noteblock.NewLayer("not registered")
	foreign.Notes.Add(0, n)

	long := noteblock.NewSong(noteblock.FormatNBS)
	long.Notes.Add(40000, noteblock.NewNote(noteblock.Vanilla(noteblock.Harp), 60))

	modern := noteblock.NewSong(noteblock.FormatNBS)
	modern.Notes.Add(0, noteblock.NewNote(noteblock.Vanilla(noteblock.Pling), 60))

	for _, tc := range []struct {
		name    string
		song    *noteblock.Song
		version int
		want    error
	}{
		{"unregistered layer", foreign, 5, noteblock.ErrInvalidLayerReference},
		{"too long", long, 5, noteblock.ErrSequenceTooLong},
		{"instrument missing from version 0", modern, 0, noteblock.ErrInvalidInstrument},
		{"unknown version", modern, 9, noteblock.ErrMalformedHeader},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := nbs.Write(&buf, tc.song, nbs.Options{Version: tc.version})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.nbs")
	song := roundTripSong(5)
	song.Title = "Crème"
	if err := nbs.WriteFile(path, song, nbs.Options{Version: 5, Windows1252: true}); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	got, err := nbs.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if got.FileName != path || got.Title != "Crème" {
		t.Fatalf("got file name %q title %q", got.FileName, got.Title)
	}
}
