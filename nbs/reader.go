package nbs

import (
	"bytes"
	"fmt"
	"io"

	"github.com/noteblock-tools/noteblock"
	"github.com/noteblock-tools/noteblock/resample"
)

// record is a note as stored on disk.
type record struct {
	tick, layer              int
	instrument, key          int
	velocity, panning, pitch int
}

// Read parses an NBS file of any supported version. Layer volume, panning,
// lock and solo are mixed into the notes; tempo changer notes become tempo
// map entries and marker notes become markers.
func Read(r io.Reader) (*noteblock.Song, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("io.ReadAll: %w", err)
	}
	d := &decoder{r: bytes.NewReader(data)}
	var h header
	if err := h.read(d); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	records, err := d.readNotes(h.version)
	if err != nil {
		return nil, fmt.Errorf("notes: %w", err)
	}
	layerCount := h.layerCount
	for _, rec := range records {
		layerCount = max(layerCount, rec.layer+1)
	}
	layers := make([]*noteblock.Layer, layerCount)
	for i := range layers {
		layers[i] = noteblock.NewLayer("")
	}
	var customs []noteblock.Instrument
	if d.remaining() > 0 && d.readLayers(h.version, layers[:h.layerCount]) && d.remaining() > 0 {
		if customs, err = d.readCustomInstruments(); err != nil {
			return nil, fmt.Errorf("custom instruments: %w", err)
		}
	}
	song := h.song()
	song.Layers = layers
	song.CustomInstruments = customs
	if err := canonicalize(song, &h, records); err != nil {
		return nil, err
	}
	if h.version >= 4 {
		if _, err := resample.ExtractNbsTempoChangers(song); err != nil {
			return nil, fmt.Errorf("tempo changers: %w", err)
		}
	}
	return song, nil
}

func (d *decoder) readNotes(version int) ([]record, error) {
	var ret []record
	tick := -1
	for {
		jump, err := d.i16()
		if err != nil {
			return nil, fmt.Errorf("tick jump: %w", err)
		}
		if jump == 0 {
			return ret, nil
		}
		tick += jump
		if tick < 0 {
			return nil, fmt.Errorf("tick %d: %w", tick, noteblock.ErrMalformedHeader)
		}
		layer := -1
		for {
			jump, err := d.i16()
			if err != nil {
				return nil, fmt.Errorf("layer jump at tick %d: %w", tick, err)
			}
			if jump == 0 {
				break
			}
			layer += jump
			if layer < 0 {
				return nil, fmt.Errorf("layer %d at tick %d: %w", layer, tick, noteblock.ErrMalformedHeader)
			}
			rec := record{tick: tick, layer: layer, velocity: 100, panning: noteblock.CenterPanning}
			if err := d.readRecord(version, &rec); err != nil {
				return nil, fmt.Errorf("note at tick %d layer %d: %w", tick, layer, err)
			}
			ret = append(ret, rec)
		}
	}
}

func (d *decoder) readRecord(version int, rec *record) (err error) {
	if rec.instrument, err = d.u8(); err != nil {
		return err
	}
	if rec.key, err = d.u8(); err != nil {
		return err
	}
	if version < 4 {
		return nil
	}
	if rec.velocity, err = d.u8(); err != nil {
		return err
	}
	if rec.panning, err = d.u8(); err != nil {
		return err
	}
	rec.pitch, err = d.i16()
	return err
}

// readLayers fills in the layer trailer. It reports whether the trailer was
// complete; a partial trailer leaves the missing fields at their defaults.
func (d *decoder) readLayers(version int, layers []*noteblock.Layer) bool {
	for _, l := range layers {
		name, err := d.str()
		if err != nil {
			return false
		}
		l.Name = name
		if version >= 4 {
			lock, err := d.u8()
			if err != nil {
				return false
			}
			l.Locked = lock == 1
			l.Solo = lock == 2
		}
		if l.Volume, err = d.u8(); err != nil {
			l.Volume = 100
			return false
		}
		if version >= 2 {
			if l.Panning, err = d.u8(); err != nil {
				l.Panning = noteblock.CenterPanning
				return false
			}
		}
	}
	return true
}

func (d *decoder) readCustomInstruments() ([]noteblock.Instrument, error) {
	count, err := d.u8()
	if err != nil {
		return nil, err
	}
	ret := make([]noteblock.Instrument, count)
	for i := range ret {
		name, err := d.str()
		if err != nil {
			return nil, fmt.Errorf("name of #%d: %w", i, err)
		}
		sound, err := d.str()
		if err != nil {
			return nil, fmt.Errorf("sound of %q: %w", name, err)
		}
		pitch, err := d.u8()
		if err != nil {
			return nil, fmt.Errorf("pitch of %q: %w", name, err)
		}
		press, err := d.u8()
		if err != nil {
			return nil, fmt.Errorf("press key of %q: %w", name, err)
		}
		ret[i] = noteblock.Custom(i, name, sound, pitch, press != 0)
	}
	return ret, nil
}

func (h *header) song() *noteblock.Song {
	song := noteblock.NewSong(noteblock.FormatNBS)
	song.Version = h.version
	song.Title = h.title
	song.Author = h.author
	song.OriginalAuthor = h.originalAuthor
	song.Description = h.description
	song.SourceFileName = h.importName
	if h.tempo > 0 {
		song.Tempo.Uniform(float64(h.tempo) / 100)
	}
	song.Loop = noteblock.Loop{Enabled: h.loop != 0, MaxCount: h.maxLoopCount, StartTick: h.loopStartTick}
	song.Stats = noteblock.Stats{
		AutoSave:         h.autoSave != 0,
		AutoSaveInterval: h.autoSaveInterval,
		TimeSignature:    h.timeSignature,
		MinutesSpent:     h.minutes,
		LeftClicks:       h.leftClicks,
		RightClicks:      h.rightClicks,
		BlocksAdded:      h.blocksAdded,
		BlocksRemoved:    h.blocksRemoved,
	}
	return song
}

// canonicalize turns the records into notes of song: keys become absolute,
// layer settings are mixed into volume and panning, and reserved custom
// instruments are resolved.
func canonicalize(song *noteblock.Song, h *header, records []record) error {
	solo := false
	for _, l := range song.Layers {
		solo = solo || l.Solo
	}
	// zero-offset clones of the custom instruments, by index
	plain := make([]*noteblock.Instrument, len(song.CustomInstruments))
	for _, rec := range records {
		layer := song.Layers[rec.layer]
		raw := max(0, min(rec.key, noteblock.MaxKey-noteblock.MinKey))
		note := noteblock.Note{
			Key:    float64(raw*100+rec.pitch)/100 + noteblock.MinKey,
			Volume: float64(min(layer.Volume, 100)*rec.velocity) / 10000,
			Layer:  layer,
		}
		if layer.Panning == noteblock.CenterPanning {
			note.Panning = float64(rec.panning-100) / 100
		} else {
			note.Panning = float64((layer.Panning-100)+(rec.panning-100)) / 200
		}
		if layer.Locked || (solo && !layer.Solo) {
			note.Volume = 0
		}
		if rec.instrument < h.vanillaCount {
			if rec.instrument >= noteblock.VanillaCount {
				return fmt.Errorf("instrument %d at tick %d: %w", rec.instrument, rec.tick, noteblock.ErrInvalidInstrument)
			}
			note.Instrument = noteblock.Vanilla(rec.instrument)
			note.Key = noteblock.ClampKey(note.Key)
			song.Notes.Add(rec.tick, note)
			continue
		}
		index := rec.instrument - h.vanillaCount
		custom, ok := song.CustomInstrument(index)
		if !ok {
			return fmt.Errorf("instrument %d at tick %d: %w", rec.instrument, rec.tick, noteblock.ErrInvalidInstrument)
		}
		kind, marker := classify(custom.Name, h.version)
		switch kind {
		case tempoChangerInstrument:
			note.Instrument = custom
			note.Key = custom.BaseKey() + float64(rec.pitch)/100
			song.Notes.Add(rec.tick, note)
		case markerInstrument:
			song.Markers = append(song.Markers, noteblock.Marker{Tick: rec.tick, Kind: marker})
		case droppedInstrument:
		default:
			if off := custom.PitchOffset(); off != 0 {
				note.Key += float64(off)
				if plain[index] == nil {
					c := custom
					c.BasePitch = noteblock.NeutralBasePitch
					plain[index] = &c
				}
				custom = *plain[index]
			}
			note.Instrument = custom
			note.Key = noteblock.ClampKey(note.Key)
			song.Notes.Add(rec.tick, note)
		}
	}
	return nil
}
