// Package noteblock holds the canonical in-memory model of a note block song:
// a sparse tick → notes map, a tempo map, the authoring layers and the song
// metadata. The codecs in the subpackages (nbs, midiimport, textformat) all
// produce and consume this model, and the resample, keyrange and playback
// packages operate on it.
package noteblock

import "errors"

// Keys are stored in an absolute, MIDI-like numbering. Key 21 is A0, the
// lowest key of the NBS piano (raw key 0), and key 108 is C8 (raw key 87).
// Note block sounds can only be played between F#3 and F#5, i.e. 54..78.
const (
	MinKey = 21
	MaxKey = 108

	VanillaMinKey = 54
	VanillaMaxKey = 78

	// NBSKeyOffset converts NBS raw keys (0 = A0) to absolute keys. Raw key
	// 33, the lowest note block key, lands on VanillaMinKey.
	NBSKeyOffset = VanillaMinKey - 33

	// NeutralBasePitch is the custom instrument key (in NBS raw keys) that
	// means the sound plays at its recorded pitch.
	NeutralBasePitch = 45

	// CenterPanning is the on-disk value for a centered layer or note.
	CenterPanning = 100

	// DefaultTicksPerSecond is the playback rate of a fresh song.
	DefaultTicksPerSecond = 10.0
)

var (
	ErrMalformedHeader         = errors.New("malformed header")
	ErrTruncatedStream         = errors.New("truncated stream")
	ErrUnsupportedMidiDivision = errors.New("unsupported MIDI time division (SMPTE)")
	ErrUnsupportedMidiFormat   = errors.New("unsupported MIDI file format")
	ErrInvalidLayerReference   = errors.New("note references a layer not registered in the song")
	ErrSequenceTooLong         = errors.New("sequence too long")
	ErrTempoAtZero             = errors.New("the tempo at tick 0 cannot be removed")
	ErrInvalidInstrument       = errors.New("invalid instrument")
	ErrInvalidTempo            = errors.New("tempo must be positive")
)

// ClampKey saturates key into the global key domain.
func ClampKey(key float64) float64 {
	return clamp(key, MinKey, MaxKey)
}

// InKeyRange reports whether key is inside the global key domain.
func InKeyRange(key float64) bool {
	return key >= MinKey && key <= MaxKey
}

// InVanillaRange reports whether key can be played by a plain note block.
func InVanillaRange(key float64) bool {
	return key >= VanillaMinKey && key <= VanillaMaxKey
}

func clamp[T int | float64](value, min, max T) T {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
