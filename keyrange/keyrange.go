// Package keyrange brings note keys into the range a note block can play,
// F#3..F#5 (VanillaMinKey..VanillaMaxKey), with different trade-offs between
// pitch accuracy and timbre.
package keyrange

import (
	"fmt"
	"strings"

	"github.com/noteblock-tools/noteblock"
)

type Policy int

const (
	// None leaves keys untouched.
	None Policy = iota
	// Clamp saturates keys to the nearest end of the range.
	Clamp
	// Transpose moves keys by whole octaves until they fit.
	Transpose
	// InstrumentShift swaps the instrument for a lower or higher sounding one
	// and moves the key by two octaves per swap, then clamps what is left.
	InstrumentShift
	// ExtendedRange moves keys by two octaves per step and marks the
	// instrument as Shifted, for renderers with octave-shifted sound packs.
	ExtendedRange
)

// octaveSpan is how far one instrument substitution moves the key.
const octaveSpan = 24

type fallbacks struct {
	down, up []int
}

// Fallback instruments for keys below (down) and above (up) the range, in
// the order they are tried. Each entry sounds two octaves apart from the
// previous one. Percussion has no fallbacks.
var shiftTable = [noteblock.VanillaCount]fallbacks{
	noteblock.Harp:          {down: []int{noteblock.DoubleBass}, up: []int{noteblock.Bell}},
	noteblock.DoubleBass:    {up: []int{noteblock.Harp, noteblock.Bell}},
	noteblock.Guitar:        {up: []int{noteblock.Flute}},
	noteblock.Flute:         {down: []int{noteblock.Guitar}},
	noteblock.Bell:          {down: []int{noteblock.Harp, noteblock.DoubleBass}},
	noteblock.Chime:         {down: []int{noteblock.IronXylophone, noteblock.Didgeridoo}},
	noteblock.Xylophone:     {down: []int{noteblock.Pling, noteblock.Didgeridoo}},
	noteblock.IronXylophone: {down: []int{noteblock.Didgeridoo}, up: []int{noteblock.Chime}},
	noteblock.CowBell:       {down: []int{noteblock.Guitar}},
	noteblock.Didgeridoo:    {up: []int{noteblock.IronXylophone, noteblock.Chime}},
	noteblock.Bit:           {down: []int{noteblock.DoubleBass}, up: []int{noteblock.Bell}},
	noteblock.Banjo:         {down: []int{noteblock.DoubleBass}, up: []int{noteblock.Bell}},
	noteblock.Pling:         {down: []int{noteblock.Didgeridoo}, up: []int{noteblock.Xylophone}},
}

// ClampNote saturates the key to the playable range.
func ClampNote(n noteblock.Note) noteblock.Note {
	switch {
	case n.Key < noteblock.VanillaMinKey:
		n.Key = noteblock.VanillaMinKey
	case n.Key > noteblock.VanillaMaxKey:
		n.Key = noteblock.VanillaMaxKey
	}
	return n
}

// TransposeNote moves the key by octaves until it is playable.
func TransposeNote(n noteblock.Note) noteblock.Note {
	for n.Key < noteblock.VanillaMinKey {
		n.Key += 12
	}
	for n.Key > noteblock.VanillaMaxKey {
		n.Key -= 12
	}
	return n
}

// InstrumentShiftNote substitutes lower or higher sounding instruments while
// the key is out of range, moving the key two octaves per substitution. It
// stops when the key fits or the instrument's fallbacks run out, so the
// result may still be out of range; follow up with ClampNote. Only vanilla
// instruments are shifted.
func InstrumentShiftNote(n noteblock.Note) noteblock.Note {
	if n.Instrument.Kind != noteblock.KindVanilla || n.Instrument.ID < 0 || n.Instrument.ID >= noteblock.VanillaCount {
		return n
	}
	fb := shiftTable[n.Instrument.ID]
	for _, id := range fb.down {
		if n.Key >= noteblock.VanillaMinKey {
			break
		}
		n.Instrument = noteblock.Vanilla(id)
		n.Key += octaveSpan
	}
	for _, id := range fb.up {
		if n.Key <= noteblock.VanillaMaxKey {
			break
		}
		n.Instrument = noteblock.Vanilla(id)
		n.Key -= octaveSpan
	}
	return n
}

// ExtendedRangeNote moves the key two octaves at a time until it fits and
// records the move in a Shifted instrument, so that key + 12*OctaveShift is
// still the sounding key. Custom instruments are left alone.
func ExtendedRangeNote(n noteblock.Note) noteblock.Note {
	if n.Instrument.Kind == noteblock.KindCustom {
		return n
	}
	shift := 0
	for n.Key < noteblock.VanillaMinKey {
		n.Key += octaveSpan
		shift -= 2
	}
	for n.Key > noteblock.VanillaMaxKey {
		n.Key -= octaveSpan
		shift += 2
	}
	if shift != 0 {
		n.Instrument = noteblock.Shifted(n.Instrument, shift)
	}
	return n
}

// Correct applies the policy to a single note.
func (p Policy) Correct(n noteblock.Note) noteblock.Note {
	switch p {
	case Clamp:
		return ClampNote(n)
	case Transpose:
		return TransposeNote(n)
	case InstrumentShift:
		return ClampNote(InstrumentShiftNote(n))
	case ExtendedRange:
		return ExtendedRangeNote(n)
	}
	return n
}

// Apply corrects every note of the song in place and returns the number of
// notes that changed.
func Apply(song *noteblock.Song, p Policy) int {
	changed := 0
	song.Notes.Update(func(_ int, n *noteblock.Note) {
		c := p.Correct(*n)
		if c.Key != n.Key || !c.Instrument.Equal(n.Instrument) {
			changed++
		}
		*n = c
	})
	return changed
}

var policyNames = map[Policy]string{
	None:            "none",
	Clamp:           "clamp",
	Transpose:       "transpose",
	InstrumentShift: "instrument-shift",
	ExtendedRange:   "extended-range",
}

func (p Policy) String() string {
	if s, ok := policyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy parses the names printed by Policy.String.
func ParsePolicy(s string) (Policy, error) {
	for p, name := range policyNames {
		if strings.EqualFold(s, name) {
			return p, nil
		}
	}
	return None, fmt.Errorf("unknown key range policy %q", s)
}
