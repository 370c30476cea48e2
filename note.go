package noteblock

import "math"

// Note is a single note block event. Key is absolute (see MinKey) and may be
// fractional: 0.01 keys is one cent. Volume is 0..1 and Panning is -1..1
// with 0 being centered. Layer is the authoring layer the note came from, or
// nil if the source format has no layers.
type Note struct {
	Instrument Instrument
	Key        float64
	Volume     float64
	Panning    float64
	Layer      *Layer `yaml:"-" json:"-"`
}

// NewNote returns a centered note at full volume.
func NewNote(instrument Instrument, key float64) Note {
	return Note{Instrument: instrument, Key: key, Volume: 1}
}

// Copy returns a value-equal clone of the note. The layer pointer is shared.
func (n Note) Copy() Note {
	return n
}

// Equal reports whether two notes play the same sound: same instrument and
// same key. Volume, panning and layer are ignored.
func (n Note) Equal(o Note) bool {
	return n.Instrument.Equal(o.Instrument) && n.Key == o.Key
}

// RawKey returns the integer key and the remaining cents of the note, e.g.
// 60.25 → (60, 25). Cents are within ±50.
func (n Note) RawKey() (key int, cents int) {
	total := int(math.Round(n.Key * 100))
	key = int(math.Round(float64(total) / 100))
	return key, total - key*100
}

// SoundingKey is the key that is heard, taking shifted instruments into
// account.
func (n Note) SoundingKey() float64 {
	if n.Instrument.Kind == KindShifted {
		return n.Key + 12*float64(n.Instrument.OctaveShift)
	}
	return n.Key
}
