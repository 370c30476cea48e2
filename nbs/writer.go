package nbs

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/noteblock-tools/noteblock"
	"github.com/noteblock-tools/noteblock/resample"
)

const maxInt16 = math.MaxInt16

// grid places records on tick and layer cells.
type grid struct {
	cells  map[int]map[int]record
	layers int // one past the greatest used layer
	// mixes is the volume and panning of each used layer, for versions
	// whose notes cannot carry their own; nil otherwise
	mixes map[int]mix
}

type mix struct {
	volume, panning int
}

var neutralMix = mix{100, noteblock.CenterPanning}

// fits reports whether rec can go on the cell: the cell is empty and, when
// layers carry the mix, the layer has no mix yet or the same one.
func (g *grid) fits(tick, layer int, rec record) bool {
	if _, taken := g.cells[tick][layer]; taken {
		return false
	}
	if g.mixes == nil {
		return true
	}
	m, ok := g.mixes[layer]
	return !ok || m == (mix{rec.velocity, rec.panning})
}

// place puts rec on the first layer at or after from that fits it and
// returns that layer.
func (g *grid) place(tick, from int, rec record) int {
	layer := from
	for !g.fits(tick, layer, rec) {
		layer++
	}
	if g.cells == nil {
		g.cells = make(map[int]map[int]record)
	}
	if g.cells[tick] == nil {
		g.cells[tick] = make(map[int]record)
	}
	rec.tick, rec.layer = tick, layer
	g.cells[tick][layer] = rec
	if g.mixes != nil {
		g.mixes[layer] = mix{rec.velocity, rec.panning}
	}
	g.layers = max(g.layers, layer+1)
	return layer
}

// mix returns the volume and panning a layer is written with.
func (g *grid) mix(layer int) mix {
	if m, ok := g.mixes[layer]; ok {
		return m
	}
	return neutralMix
}

func (g *grid) ticks() []int {
	ret := make([]int, 0, len(g.cells))
	for t := range g.cells {
		ret = append(ret, t)
	}
	sort.Ints(ret)
	return ret
}

// writer holds the state of one Write call.
type writer struct {
	song         *noteblock.Song
	version      int
	vanillaCount int
	customs      []noteblock.Instrument
	grid         grid
}

// Write encodes song as an NBS file of opts.Version.
//
// Notes go to the layer they point at; notes without a layer, and notes
// whose cell is already taken, go to the next free layer after the song's
// own layers. Layers are never locked.
//
// From version 4 on, notes store their own volume and panning, so layers are
// written at full volume and centered. Older versions have no per-note
// volume or panning: a layer is written with the volume and panning of its
// notes, and a note whose mix differs from its layer's moves to the next
// free layer with the same mix. Version 0 and 1 files have no layer panning
// at all, so panning is lost there.
//
// Tempo changes and markers are written as reserved custom instruments
// where the version has them and are dropped otherwise. Keys outside the
// NBS piano are clamped.
func Write(w io.Writer, song *noteblock.Song, opts Options) error {
	if opts.Version < MinVersion || opts.Version > MaxVersion {
		return fmt.Errorf("version %d: %w", opts.Version, noteblock.ErrMalformedHeader)
	}
	wr := &writer{
		song:         song,
		version:      opts.Version,
		vanillaCount: vanillaCountFor(opts.Version),
		customs:      append([]noteblock.Instrument(nil), song.CustomInstruments...),
	}
	if opts.Version < 4 {
		wr.grid.mixes = make(map[int]mix)
	}
	if err := wr.placeNotes(); err != nil {
		return err
	}
	names, err := wr.placeControls()
	if err != nil {
		return err
	}
	ticks := wr.grid.ticks()
	length := 0
	if len(ticks) > 0 {
		if ticks[0] < 0 {
			return fmt.Errorf("negative tick %d", ticks[0])
		}
		length = ticks[len(ticks)-1] + 1
	}
	if length > maxInt16 {
		return fmt.Errorf("%d ticks: %w", length, noteblock.ErrSequenceTooLong)
	}
	if len(names) > maxInt16 {
		return fmt.Errorf("%d layers: %w", len(names), noteblock.ErrSequenceTooLong)
	}
	if wr.vanillaCount+len(wr.customs) > math.MaxUint8+1 {
		return fmt.Errorf("%d custom instruments: %w", len(wr.customs), noteblock.ErrInvalidInstrument)
	}
	tempo := int(math.Round(song.Tempo.EffectiveTempo(0) * 100))
	if tempo <= 0 || tempo > maxInt16 {
		return fmt.Errorf("tempo %v: %w", song.Tempo.EffectiveTempo(0), noteblock.ErrInvalidTempo)
	}
	h := wr.header(len(names), length, tempo)
	bw := bufio.NewWriter(w)
	e := &encoder{w: bw, windows1252: opts.Windows1252}
	h.write(e)
	wr.writeNotes(e, ticks)
	for i, name := range names {
		m := wr.grid.mix(i)
		e.str(name)
		if wr.version >= 4 {
			e.u8(0)
		}
		e.u8(m.volume)
		if wr.version >= 2 {
			e.u8(m.panning)
		}
	}
	e.u8(len(wr.customs))
	for _, c := range wr.customs {
		e.str(c.Name)
		e.str(c.Sound)
		e.u8(c.BasePitch)
		if c.PressKey {
			e.u8(1)
		} else {
			e.u8(0)
		}
	}
	if e.err != nil {
		return fmt.Errorf("binary.Write: %w", e.err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("bufio.Flush: %w", err)
	}
	return nil
}

func (wr *writer) placeNotes() error {
	index := make(map[*noteblock.Layer]int, len(wr.song.Layers))
	for i, l := range wr.song.Layers {
		index[l] = i
	}
	auto := len(wr.song.Layers)
	var err error
	wr.song.Notes.ForEach(func(tick int, notes []noteblock.Note) {
		for _, n := range notes {
			if err != nil {
				return
			}
			rec, e := wr.record(n)
			if e != nil {
				err = fmt.Errorf("note %v at tick %d: %w", n.Instrument, tick, e)
				return
			}
			if n.Layer == nil {
				wr.grid.place(tick, auto, rec)
				continue
			}
			layer, ok := index[n.Layer]
			if !ok {
				err = fmt.Errorf("note at tick %d: %w", tick, noteblock.ErrInvalidLayerReference)
				return
			}
			if !wr.grid.fits(tick, layer, rec) {
				layer = auto
			}
			wr.grid.place(tick, layer, rec)
		}
	})
	return err
}

// placeControls places tempo changes and markers and returns the names of
// all layers to be written.
func (wr *writer) placeControls() ([]string, error) {
	names := make([]string, 0, wr.grid.layers)
	for _, l := range wr.song.Layers {
		names = append(names, l.Name)
	}
	control := -1
	for i, name := range names {
		if name == ControlLayerName {
			control = i
			break
		}
	}
	if control < 0 {
		control = max(wr.grid.layers, len(names))
	}
	if wr.version >= 4 {
		changer := wr.custom(TempoChanger)
		for _, e := range wr.song.Tempo.Events() {
			if e.Tick == 0 {
				continue
			}
			pitch := int(math.Round(e.TicksPerSecond * resample.TempoChangerScale))
			if pitch > maxInt16 {
				return nil, fmt.Errorf("tempo %v at tick %d: %w", e.TicksPerSecond, e.Tick, noteblock.ErrInvalidTempo)
			}
			wr.grid.place(e.Tick, control, record{
				instrument: wr.vanillaCount + changer,
				key:        max(0, min(wr.customs[changer].BasePitch, noteblock.MaxKey-noteblock.MinKey)),
				velocity:   100,
				panning:    noteblock.CenterPanning,
				pitch:      pitch,
			})
		}
	}
	for _, m := range wr.song.Markers {
		name, ok := markerInstrumentName(m.Kind, wr.version)
		if !ok {
			continue
		}
		i := wr.custom(name)
		wr.grid.place(m.Tick, control, record{
			instrument: wr.vanillaCount + i,
			key:        noteblock.NeutralBasePitch,
			velocity:   100,
			panning:    noteblock.CenterPanning,
		})
	}
	for len(names) < wr.grid.layers {
		name := ""
		if len(names) == control {
			name = ControlLayerName
		}
		names = append(names, name)
	}
	return names, nil
}

// custom returns the index of the custom instrument called name, adding it
// if the song does not have one.
func (wr *writer) custom(name string) int {
	for i, c := range wr.customs {
		if c.Name == name {
			return i
		}
	}
	wr.customs = append(wr.customs, noteblock.Custom(len(wr.customs), name, "", noteblock.NeutralBasePitch, false))
	return len(wr.customs) - 1
}

func (wr *writer) record(n noteblock.Note) (record, error) {
	var rec record
	key := n.Key
	switch n.Instrument.Kind {
	case noteblock.KindShifted:
		key = n.SoundingKey()
		fallthrough
	case noteblock.KindVanilla:
		if n.Instrument.ID < 0 || n.Instrument.ID >= wr.vanillaCount {
			return rec, fmt.Errorf("not available in version %d: %w", wr.version, noteblock.ErrInvalidInstrument)
		}
		rec.instrument = n.Instrument.ID
	case noteblock.KindCustom:
		if n.Instrument.Index < 0 || n.Instrument.Index >= len(wr.customs) {
			return rec, noteblock.ErrInvalidInstrument
		}
		key -= float64(wr.customs[n.Instrument.Index].PitchOffset())
		rec.instrument = wr.vanillaCount + n.Instrument.Index
	default:
		return rec, noteblock.ErrInvalidInstrument
	}
	total := int(math.Round((noteblock.ClampKey(key) - noteblock.MinKey) * 100))
	rec.key = int(math.Round(float64(total) / 100))
	rec.pitch = total - rec.key*100
	rec.velocity = max(0, min(int(math.Round(n.Volume*100)), 100))
	switch {
	case wr.version >= 4:
		rec.panning = max(0, min(int(math.Round(n.Panning*100))+100, 200))
	case wr.version >= 2:
		// the layer carries it, and layer panning counts half
		rec.panning = max(0, min(int(math.Round(n.Panning*200))+100, 200))
	default:
		rec.panning = noteblock.CenterPanning
	}
	return rec, nil
}

func (wr *writer) header(layerCount, length, tempo int) *header {
	s := wr.song
	h := &header{
		version:          wr.version,
		vanillaCount:     wr.vanillaCount,
		length:           length,
		layerCount:       layerCount,
		title:            s.Title,
		author:           s.Author,
		originalAuthor:   s.OriginalAuthor,
		description:      s.Description,
		tempo:            tempo,
		autoSaveInterval: s.Stats.AutoSaveInterval,
		timeSignature:    s.Stats.TimeSignature,
		minutes:          s.Stats.MinutesSpent,
		leftClicks:       s.Stats.LeftClicks,
		rightClicks:      s.Stats.RightClicks,
		blocksAdded:      s.Stats.BlocksAdded,
		blocksRemoved:    s.Stats.BlocksRemoved,
		importName:       s.SourceFileName,
		maxLoopCount:     s.Loop.MaxCount,
		loopStartTick:    s.Loop.StartTick,
	}
	if s.Stats.AutoSave {
		h.autoSave = 1
	}
	if s.Loop.Enabled {
		h.loop = 1
	}
	return h
}

func (wr *writer) writeNotes(e *encoder, ticks []int) {
	prevTick := -1
	for _, t := range ticks {
		e.i16(t - prevTick)
		prevTick = t
		row := wr.grid.cells[t]
		layers := make([]int, 0, len(row))
		for l := range row {
			layers = append(layers, l)
		}
		sort.Ints(layers)
		prevLayer := -1
		for _, l := range layers {
			rec := row[l]
			e.i16(l - prevLayer)
			prevLayer = l
			e.u8(rec.instrument)
			e.u8(rec.key)
			if wr.version >= 4 {
				e.u8(rec.velocity)
				e.u8(rec.panning)
				e.i16(rec.pitch)
			}
		}
		e.i16(0)
	}
	e.i16(0)
}
