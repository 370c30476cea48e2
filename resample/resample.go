// Package resample converts between ticks and wall-clock time using a
// song's tempo map, and re-quantizes songs onto a different tick rate.
package resample

import (
	"fmt"
	"math"
	"time"

	"github.com/noteblock-tools/noteblock"
)

// TempoChangerName is the custom instrument whose notes encode tempo changes
// in NBS files.
const TempoChangerName = "Tempo Changer"

// TempoChangerScale converts a tempo changer's pitch (in cents) to ticks per
// second: tps = |pitch| / TempoChangerScale.
const TempoChangerScale = 15.0

// TickToTime returns the time in milliseconds at which tick starts, rounded
// up to the next whole millisecond.
func TickToTime(tempo *noteblock.TempoEvents, tick int) int64 {
	return int64(math.Ceil(seconds(tempo.Events(), float64(tick)) * 1000))
}

// TickToDuration is TickToTime as a time.Duration, without the rounding.
func TickToDuration(tempo *noteblock.TempoEvents, tick int) time.Duration {
	return time.Duration(seconds(tempo.Events(), float64(tick)) * float64(time.Second))
}

// TimeToTick returns the tick playing at ms milliseconds. Times past the end
// of the song are clamped to the song length.
func TimeToTick(song *noteblock.Song, ms int64) int {
	if ms <= 0 {
		return 0
	}
	events := song.Tempo.Events()
	elapsed := 0.0
	tick := 0
	for i, e := range events {
		offset := float64(ms) - elapsed
		if i+1 < len(events) {
			segMs := float64(events[i+1].Tick-e.Tick) / e.TicksPerSecond * 1000
			if offset >= segMs {
				elapsed += segMs
				continue
			}
		}
		tick = e.Tick + int(math.Round(offset/1000*e.TicksPerSecond))
		break
	}
	if l := song.Length(); tick > l {
		tick = l
	}
	return tick
}

// ChangeTickSpeed re-quantizes the song onto a single rate of newRate ticks
// per second. Every note keeps its time position (within rounding) and notes
// landing on the same tick are merged in their original order. Markers and
// the loop start move along. Afterwards the tempo map has a single entry.
//
// If the song already plays at a uniform newRate, nothing changes.
func ChangeTickSpeed(song *noteblock.Song, newRate float64) error {
	if newRate <= 0 || math.IsNaN(newRate) || math.IsInf(newRate, 0) {
		return fmt.Errorf("change tick speed to %v: %w", newRate, noteblock.ErrInvalidTempo)
	}
	if song.Tempo.IsUniform() && song.Tempo.EffectiveTempo(0) == newRate {
		return nil
	}
	remap := remapper(&song.Tempo, newRate)
	var notes noteblock.Notes
	song.Notes.ForEach(func(tick int, list []noteblock.Note) {
		t := remap(tick)
		for _, n := range list {
			notes.Add(t, n)
		}
	})
	song.Notes = notes
	for i := range song.Markers {
		song.Markers[i].Tick = remap(song.Markers[i].Tick)
	}
	song.Loop.StartTick = remap(song.Loop.StartTick)
	song.Tempo.Uniform(newRate)
	return nil
}

// FlattenTempo re-quantizes a song with several tempo entries onto the
// fastest of them.
func FlattenTempo(song *noteblock.Song) error {
	if song.Tempo.IsUniform() {
		return nil
	}
	return ChangeTickSpeed(song, song.Tempo.Max())
}

// ExtractNbsTempoChangers turns the notes of the "Tempo Changer" custom
// instrument into tempo map entries and removes them from the notes. The
// tempo changer's pitch is the note key's offset from the instrument's base
// key, in cents. It returns the number of tempo changes found.
//
// The resulting tempo map generally has several entries; callers that need a
// single rate follow up with FlattenTempo.
func ExtractNbsTempoChangers(song *noteblock.Song) (int, error) {
	changers := map[int]noteblock.Instrument{}
	for _, c := range song.CustomInstruments {
		if c.Name == TempoChangerName {
			changers[c.Index] = c
		}
	}
	if len(changers) == 0 {
		return 0, nil
	}
	var err error
	found := 0
	song.Notes.RemoveIf(func(tick int, n noteblock.Note) bool {
		if n.Instrument.Kind != noteblock.KindCustom {
			return false
		}
		c, ok := changers[n.Instrument.Index]
		if !ok {
			return false
		}
		if rate := TempoChangerRate(n, c); rate > 0 {
			if e := song.Tempo.SetTempo(tick, rate); e != nil && err == nil {
				err = e
			}
			found++
		}
		return true
	})
	return found, err
}

// TempoChangerRate decodes the rate a tempo changer note encodes.
func TempoChangerRate(n noteblock.Note, changer noteblock.Instrument) float64 {
	pitch := math.Round((n.Key - changer.BaseKey()) * 100)
	return math.Abs(pitch) / TempoChangerScale
}

// TempoChangerKey is the inverse of TempoChangerRate: the key a tempo
// changer note needs to encode rate.
func TempoChangerKey(rate float64, changer noteblock.Instrument) float64 {
	return changer.BaseKey() + math.Round(rate*TempoChangerScale)/100
}

// seconds returns the time at which the (possibly fractional) tick starts.
func seconds(events []noteblock.TempoEvent, tick float64) float64 {
	total := 0.0
	for i, e := range events {
		start := float64(e.Tick)
		if start >= tick {
			break
		}
		end := tick
		if i+1 < len(events) && float64(events[i+1].Tick) < tick {
			end = float64(events[i+1].Tick)
		}
		total += (end - start) / e.TicksPerSecond
	}
	return total
}

func remapper(tempo *noteblock.TempoEvents, newRate float64) func(int) int {
	if tempo.IsUniform() {
		ratio := tempo.EffectiveTempo(0) / newRate
		return func(tick int) int {
			return int(math.Round(float64(tick) / ratio))
		}
	}
	events := tempo.Events()
	return func(tick int) int {
		return int(math.Round(seconds(events, float64(tick)) * newRate))
	}
}
