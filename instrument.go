package noteblock

import "fmt"

type (
	// Instrument is a tagged union of the three instrument shapes a note can
	// carry. Only the fields relevant to Kind are meaningful:
	//
	//   - Vanilla: ID is one of the 16 built-in sounds.
	//   - Custom: Index is the position in Song.CustomInstruments; Name, Sound,
	//     BasePitch and PressKey describe the user sound.
	//   - Shifted: ID is the vanilla base and OctaveShift selects an
	//     octave-suffixed variant of it. Shifted instruments are only produced
	//     by keyrange.ExtendedRange, never parsed.
	Instrument struct {
		Kind        InstrumentKind `yaml:",omitempty"`
		ID          int            `yaml:",omitempty"`
		Index       int            `yaml:",omitempty"`
		Name        string         `yaml:",omitempty"`
		Sound       string         `yaml:",omitempty"`
		BasePitch   int            `yaml:",omitempty"`
		PressKey    bool           `yaml:",omitempty"`
		OctaveShift int            `yaml:",omitempty"`
	}

	InstrumentKind int

	// VanillaInfo describes one of the built-in sounds. OctaveOffset is how
	// many octaves the sound is above (or below) the harp at the same key.
	VanillaInfo struct {
		Name         string
		Sound        string
		OctaveOffset int
		Percussive   bool
	}
)

const (
	KindVanilla InstrumentKind = iota
	KindCustom
	KindShifted
)

// Vanilla instrument ids, in NBS order.
const (
	Harp = iota
	DoubleBass
	BassDrum
	SnareDrum
	Click
	Guitar
	Flute
	Bell
	Chime
	Xylophone
	IronXylophone
	CowBell
	Didgeridoo
	Bit
	Banjo
	Pling

	VanillaCount
)

// LegacyVanillaCount is the number of built-ins known to version 0 files.
const LegacyVanillaCount = 10

var vanillaInstruments = [VanillaCount]VanillaInfo{
	Harp:          {"Harp", "block.note_block.harp", 0, false},
	DoubleBass:    {"Double Bass", "block.note_block.bass", -2, false},
	BassDrum:      {"Bass Drum", "block.note_block.basedrum", 0, true},
	SnareDrum:     {"Snare Drum", "block.note_block.snare", 0, true},
	Click:         {"Click", "block.note_block.hat", 0, true},
	Guitar:        {"Guitar", "block.note_block.guitar", -1, false},
	Flute:         {"Flute", "block.note_block.flute", 1, false},
	Bell:          {"Bell", "block.note_block.bell", 2, false},
	Chime:         {"Chime", "block.note_block.chime", 2, false},
	Xylophone:     {"Xylophone", "block.note_block.xylophone", 2, false},
	IronXylophone: {"Iron Xylophone", "block.note_block.iron_xylophone", 0, false},
	CowBell:       {"Cow Bell", "block.note_block.cow_bell", 1, false},
	Didgeridoo:    {"Didgeridoo", "block.note_block.didgeridoo", -2, false},
	Bit:           {"Bit", "block.note_block.bit", 0, false},
	Banjo:         {"Banjo", "block.note_block.banjo", 0, false},
	Pling:         {"Pling", "block.note_block.pling", 0, false},
}

// Vanilla returns the built-in instrument with the given id.
func Vanilla(id int) Instrument {
	return Instrument{Kind: KindVanilla, ID: id}
}

// Custom returns a custom instrument at position index of the song's custom
// instrument list.
func Custom(index int, name, sound string, basePitch int, pressKey bool) Instrument {
	return Instrument{Kind: KindCustom, Index: index, Name: name, Sound: sound, BasePitch: basePitch, PressKey: pressKey}
}

// Shifted wraps the vanilla instrument base into an octave-shifted variant.
// Shifting an already shifted instrument accumulates the octaves.
func Shifted(base Instrument, octaveShift int) Instrument {
	if base.Kind == KindShifted {
		octaveShift += base.OctaveShift
	}
	return Instrument{Kind: KindShifted, ID: base.ID, OctaveShift: octaveShift}
}

// VanillaByID returns the description of a built-in instrument.
func VanillaByID(id int) (VanillaInfo, bool) {
	if id < 0 || id >= VanillaCount {
		return VanillaInfo{}, false
	}
	return vanillaInstruments[id], true
}

// VanillaByName finds a built-in instrument by its display name.
func VanillaByName(name string) (int, bool) {
	for i, v := range vanillaInstruments {
		if v.Name == name {
			return i, true
		}
	}
	return 0, false
}

func (i Instrument) IsVanilla() bool { return i.Kind == KindVanilla }
func (i Instrument) IsCustom() bool  { return i.Kind == KindCustom }
func (i Instrument) IsShifted() bool { return i.Kind == KindShifted }

// Base returns the vanilla instrument a shifted instrument was derived from;
// other instruments are returned as is.
func (i Instrument) Base() Instrument {
	if i.Kind == KindShifted {
		return Vanilla(i.ID)
	}
	return i
}

// PitchOffset is the number of keys the instrument's sound is shifted from
// the neutral reference. Zero for everything except custom instruments with
// a non-neutral base pitch.
func (i Instrument) PitchOffset() int {
	if i.Kind != KindCustom {
		return 0
	}
	return i.BasePitch - NeutralBasePitch
}

// BaseKey is the absolute key at which a custom instrument plays its sound
// unshifted.
func (i Instrument) BaseKey() float64 {
	return float64(i.BasePitch + NBSKeyOffset)
}

// Equal compares two instruments by identity: kind plus id or index. Names
// of custom instruments are not compared, as the index already identifies
// them within a song.
func (i Instrument) Equal(o Instrument) bool {
	if i.Kind != o.Kind {
		return false
	}
	switch i.Kind {
	case KindCustom:
		return i.Index == o.Index
	case KindShifted:
		return i.ID == o.ID && i.OctaveShift == o.OctaveShift
	default:
		return i.ID == o.ID
	}
}

func (i Instrument) String() string {
	switch i.Kind {
	case KindCustom:
		return fmt.Sprintf("custom#%d(%s)", i.Index, i.Name)
	case KindShifted:
		v, _ := VanillaByID(i.ID)
		return fmt.Sprintf("%s%+d", v.Name, i.OctaveShift)
	default:
		if v, ok := VanillaByID(i.ID); ok {
			return v.Name
		}
		return fmt.Sprintf("vanilla#%d", i.ID)
	}
}

func (k InstrumentKind) String() string {
	switch k {
	case KindVanilla:
		return "vanilla"
	case KindCustom:
		return "custom"
	case KindShifted:
		return "shifted"
	}
	return fmt.Sprintf("InstrumentKind(%d)", int(k))
}
