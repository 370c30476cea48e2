// Package playback schedules the notes of a song in real time.
package playback

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/noteblock-tools/noteblock"
	"github.com/noteblock-tools/noteblock/resample"
)

// Player plays a private copy of a song, so the original can be edited while
// playing. Seek and Position may be called from any goroutine.
type Player struct {
	song     *noteblock.Song
	length   int
	position atomic.Int64 // next tick to play
}

// EmitFunc receives the notes of a tick. The slice must not be modified.
type EmitFunc func(tick int, notes []noteblock.Note)

func New(song *noteblock.Song) *Player {
	p := &Player{song: song.Copy()}
	// computes the tick caches, after which the copy is only read
	p.length = p.song.Length()
	p.song.Notes.Ticks()
	return p
}

// Position returns the next tick to be played.
func (p *Player) Position() int {
	return int(p.position.Load())
}

// Seek moves playback to the tick playing at ms milliseconds.
func (p *Player) Seek(ms int64) {
	p.position.Store(int64(resample.TimeToTick(p.song, ms)))
}

// Run plays from Position until the end of the song, calling emit for every
// tick that has notes. The tick interval follows the tempo map. If the song
// loops, playback jumps back to the loop start Loop.MaxCount times, or
// forever if MaxCount is 0. Run returns nil at the end of the song and
// ctx.Err() if ctx is cancelled first.
func (p *Player) Run(ctx context.Context, emit EmitFunc) error {
	loop := p.song.Loop
	loops := 0
	rate := p.song.Tempo.EffectiveTempo(p.Position())
	ticker := time.NewTicker(interval(rate))
	defer ticker.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		tick := p.Position()
		if tick >= p.length {
			if !loop.Enabled || p.length == 0 || (loop.MaxCount > 0 && loops >= loop.MaxCount) {
				return nil
			}
			loops++
			p.position.CompareAndSwap(int64(tick), int64(loop.StartTick))
			tick = p.Position()
		}
		if notes := p.song.Notes.Get(tick); notes != nil {
			emit(tick, notes)
		}
		p.position.CompareAndSwap(int64(tick), int64(tick+1))
		if r := p.song.Tempo.EffectiveTempo(p.Position()); r != rate {
			rate = r
			ticker.Reset(interval(rate))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func interval(ticksPerSecond float64) time.Duration {
	return max(time.Duration(float64(time.Second)/ticksPerSecond), time.Microsecond)
}
