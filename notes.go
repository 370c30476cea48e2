package noteblock

import (
	"encoding/json"
	"sort"
)

type (
	// Notes is a sparse, tick-ordered map of tick → notes. The order of the
	// notes within a tick is the authoring layer order: it does not matter
	// for playback but is kept when writing layered formats. A tick never maps
	// to an empty list.
	//
	// The zero value is an empty, ready to use Notes.
	Notes struct {
		m        map[int][]Note
		ticks    []int // sorted keys of m, nil when stale
		lastTick int   // -1 when stale
		count    int
	}

	// TickNotes is a tick and its notes, used when a Notes is marshaled.
	TickNotes struct {
		Tick  int
		Notes []Note `yaml:",flow"`
	}
)

// Add appends the note to the list at tick.
func (n *Notes) Add(tick int, note Note) {
	if n.m == nil {
		n.m = make(map[int][]Note)
	}
	if _, ok := n.m[tick]; !ok {
		n.invalidate()
	}
	n.m[tick] = append(n.m[tick], note)
	n.count++
}

// Get returns the notes at tick, or nil. The returned slice belongs to n and
// must not be modified.
func (n *Notes) Get(tick int) []Note {
	return n.m[tick]
}

// Len returns the total number of notes.
func (n *Notes) Len() int {
	return n.count
}

// Empty reports whether there are no notes at all.
func (n *Notes) Empty() bool {
	return n.count == 0
}

// Ticks returns the ticks that have notes, in ascending order. The returned
// slice belongs to n and must not be modified.
func (n *Notes) Ticks() []int {
	if n.ticks == nil {
		n.ticks = make([]int, 0, len(n.m))
		for t := range n.m {
			n.ticks = append(n.ticks, t)
		}
		sort.Ints(n.ticks)
	}
	return n.ticks
}

// LastTick returns the greatest tick that has notes, or 0 for an empty
// Notes. The value is cached until the next structural change.
func (n *Notes) LastTick() int {
	if n.lastTick < 0 || n.ticks == nil {
		ticks := n.Ticks()
		n.lastTick = 0
		if len(ticks) > 0 {
			n.lastTick = ticks[len(ticks)-1]
		}
	}
	return n.lastTick
}

// ForEach calls fn for every tick in ascending order.
func (n *Notes) ForEach(fn func(tick int, notes []Note)) {
	for _, t := range n.Ticks() {
		fn(t, n.m[t])
	}
}

// Range calls fn for every tick in [from, to), in ascending order.
func (n *Notes) Range(from, to int, fn func(tick int, notes []Note)) {
	ticks := n.Ticks()
	i := sort.SearchInts(ticks, from)
	for ; i < len(ticks) && ticks[i] < to; i++ {
		fn(ticks[i], n.m[ticks[i]])
	}
}

// Update calls fn with a pointer to every note, in tick order, so that the
// note can be modified in place. Ticks are not affected.
func (n *Notes) Update(fn func(tick int, note *Note)) {
	for _, t := range n.Ticks() {
		list := n.m[t]
		for i := range list {
			fn(t, &list[i])
		}
	}
}

// RemoveIf removes every note for which pred returns true and drops the
// ticks left empty. It returns the number of removed notes.
func (n *Notes) RemoveIf(pred func(tick int, note Note) bool) int {
	removed := 0
	for t, list := range n.m {
		kept := list[:0]
		for _, note := range list {
			if pred(t, note) {
				removed++
				continue
			}
			kept = append(kept, note)
		}
		n.m[t] = kept
	}
	if removed > 0 {
		n.count -= removed
		n.compact()
	}
	return removed
}

// RemoveSilentNotes drops the notes whose volume is at most threshold.
func (n *Notes) RemoveSilentNotes(threshold float64) int {
	return n.RemoveIf(func(_ int, note Note) bool {
		return note.Volume <= threshold
	})
}

// Clear removes all notes.
func (n *Notes) Clear() {
	n.m = nil
	n.count = 0
	n.invalidate()
}

// Copy makes a deep copy of the Notes. Layer pointers are shared with the
// original; Song.Copy remaps them to the copied layers.
func (n *Notes) Copy() Notes {
	return n.copyWith(nil)
}

func (n *Notes) copyWith(layers map[*Layer]*Layer) Notes {
	ret := Notes{m: make(map[int][]Note, len(n.m)), lastTick: -1, count: n.count}
	for t, list := range n.m {
		c := make([]Note, len(list))
		copy(c, list)
		if layers != nil {
			for i := range c {
				if l, ok := layers[c[i].Layer]; ok {
					c[i].Layer = l
				}
			}
		}
		ret.m[t] = c
	}
	return ret
}

// Slice returns all ticks and notes in tick order; handy for marshaling and
// tests.
func (n *Notes) Slice() []TickNotes {
	ret := make([]TickNotes, 0, len(n.m))
	n.ForEach(func(tick int, notes []Note) {
		c := make([]Note, len(notes))
		copy(c, notes)
		ret = append(ret, TickNotes{Tick: tick, Notes: c})
	})
	return ret
}

func (n Notes) MarshalYAML() (interface{}, error) {
	return n.Slice(), nil
}

func (n *Notes) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var list []TickNotes
	if err := unmarshal(&list); err != nil {
		return err
	}
	n.Clear()
	for _, tn := range list {
		for _, note := range tn.Notes {
			n.Add(tn.Tick, note)
		}
	}
	return nil
}

func (n Notes) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Slice())
}

func (n *Notes) UnmarshalJSON(b []byte) error {
	var list []TickNotes
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	n.Clear()
	for _, tn := range list {
		for _, note := range tn.Notes {
			n.Add(tn.Tick, note)
		}
	}
	return nil
}

func (n *Notes) compact() {
	for t, list := range n.m {
		if len(list) == 0 {
			delete(n.m, t)
		}
	}
	n.invalidate()
}

func (n *Notes) invalidate() {
	n.ticks = nil
	n.lastTick = -1
}
