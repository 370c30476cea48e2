package noteblock

import (
	"encoding/json"
	"fmt"
	"sort"
)

type (
	// TempoEvents maps ticks to playback rates in ticks per second. There is
	// always an entry at tick 0; the rate at any tick t is the rate of the
	// greatest entry tick ≤ t.
	//
	// The zero value behaves as a single DefaultTicksPerSecond entry at 0.
	TempoEvents struct {
		ticks []int // sorted, ticks[0] == 0 once initialized
		rates []float64
	}

	// TempoEvent is a single tempo map entry.
	TempoEvent struct {
		Tick           int
		TicksPerSecond float64
	}
)

// NewTempoEvents returns a tempo map with a single entry at tick 0.
func NewTempoEvents(ticksPerSecond float64) TempoEvents {
	return TempoEvents{ticks: []int{0}, rates: []float64{ticksPerSecond}}
}

func (t *TempoEvents) init() {
	if len(t.ticks) == 0 {
		t.ticks = []int{0}
		t.rates = []float64{DefaultTicksPerSecond}
	}
}

// SetTempo sets the rate at tick, replacing an existing entry at the same
// tick.
func (t *TempoEvents) SetTempo(tick int, ticksPerSecond float64) error {
	if ticksPerSecond <= 0 {
		return fmt.Errorf("tempo %v at tick %d: %w", ticksPerSecond, tick, ErrInvalidTempo)
	}
	if tick < 0 {
		return fmt.Errorf("negative tempo tick %d", tick)
	}
	t.init()
	i := sort.SearchInts(t.ticks, tick)
	if i < len(t.ticks) && t.ticks[i] == tick {
		t.rates[i] = ticksPerSecond
		return nil
	}
	t.ticks = append(t.ticks, 0)
	t.rates = append(t.rates, 0)
	copy(t.ticks[i+1:], t.ticks[i:])
	copy(t.rates[i+1:], t.rates[i:])
	t.ticks[i] = tick
	t.rates[i] = ticksPerSecond
	return nil
}

// Remove deletes the entry at tick. The entry at tick 0 cannot be removed.
// Removing a tick without an entry is a no-op.
func (t *TempoEvents) Remove(tick int) error {
	if tick == 0 {
		return ErrTempoAtZero
	}
	i := sort.SearchInts(t.ticks, tick)
	if i < len(t.ticks) && t.ticks[i] == tick {
		t.ticks = append(t.ticks[:i], t.ticks[i+1:]...)
		t.rates = append(t.rates[:i], t.rates[i+1:]...)
	}
	return nil
}

// EffectiveTempo returns the rate in effect at tick.
func (t *TempoEvents) EffectiveTempo(tick int) float64 {
	t.init()
	i := sort.Search(len(t.ticks), func(i int) bool { return t.ticks[i] > tick })
	if i == 0 {
		return t.rates[0]
	}
	return t.rates[i-1]
}

// Range returns the smallest and the greatest rate of all entries.
func (t *TempoEvents) Range() (min, max float64) {
	t.init()
	min, max = t.rates[0], t.rates[0]
	for _, r := range t.rates[1:] {
		if r < min {
			min = r
		}
		if r > max {
			max = r
		}
	}
	return
}

// Max returns the greatest rate of all entries.
func (t *TempoEvents) Max() float64 {
	_, max := t.Range()
	return max
}

// Len returns the number of entries, always at least 1.
func (t *TempoEvents) Len() int {
	t.init()
	return len(t.ticks)
}

// Ticks returns the entry ticks in ascending order. The returned slice must
// not be modified.
func (t *TempoEvents) Ticks() []int {
	t.init()
	return t.ticks
}

// Events returns a copy of all entries in tick order.
func (t *TempoEvents) Events() []TempoEvent {
	t.init()
	ret := make([]TempoEvent, len(t.ticks))
	for i := range t.ticks {
		ret[i] = TempoEvent{Tick: t.ticks[i], TicksPerSecond: t.rates[i]}
	}
	return ret
}

// Uniform replaces all entries with a single rate at tick 0.
func (t *TempoEvents) Uniform(ticksPerSecond float64) {
	t.ticks = []int{0}
	t.rates = []float64{ticksPerSecond}
}

// IsUniform reports whether there is only the entry at tick 0.
func (t *TempoEvents) IsUniform() bool {
	return t.Len() == 1
}

// Copy makes a deep copy of the tempo map.
func (t *TempoEvents) Copy() TempoEvents {
	t.init()
	return TempoEvents{ticks: append([]int(nil), t.ticks...), rates: append([]float64(nil), t.rates...)}
}

func (t TempoEvents) MarshalYAML() (interface{}, error) {
	return t.Events(), nil
}

func (t *TempoEvents) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var events []TempoEvent
	if err := unmarshal(&events); err != nil {
		return err
	}
	return t.setEvents(events)
}

func (t TempoEvents) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Events())
}

func (t *TempoEvents) UnmarshalJSON(b []byte) error {
	var events []TempoEvent
	if err := json.Unmarshal(b, &events); err != nil {
		return err
	}
	return t.setEvents(events)
}

func (t *TempoEvents) setEvents(events []TempoEvent) error {
	t.ticks, t.rates = nil, nil
	t.init()
	for _, e := range events {
		if err := t.SetTempo(e.Tick, e.TicksPerSecond); err != nil {
			return err
		}
	}
	return nil
}
