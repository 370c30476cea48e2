package playback_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/noteblock-tools/noteblock"
	"github.com/noteblock-tools/noteblock/playback"
)

func fastSong(ticks ...int) *noteblock.Song {
	song := noteblock.NewSong(noteblock.FormatText)
	song.Tempo.Uniform(1000)
	for _, t := range ticks {
		song.Notes.Add(t, noteblock.NewNote(noteblock.Vanilla(noteblock.Harp), 66))
	}
	return song
}

func record(t *testing.T, p *playback.Player) []int {
	t.Helper()
	var got []int
	err := p.Run(context.Background(), func(tick int, notes []noteblock.Note) {
		got = append(got, tick)
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return got
}

func TestRun(t *testing.T) {
	song := fastSong(0, 2, 5)
	p := playback.New(song)
	song.Notes.Add(3, noteblock.NewNote(noteblock.Vanilla(noteblock.Bell), 66))
	if got := record(t, p); !reflect.DeepEqual(got, []int{0, 2, 5}) {
		t.Fatalf("played ticks %v", got)
	}
	if p.Position() != 6 {
		t.Fatalf("position after end: %d", p.Position())
	}
}

func TestRunLoops(t *testing.T) {
	song := fastSong(0, 1, 3)
	song.Loop = noteblock.Loop{Enabled: true, MaxCount: 2, StartTick: 1}
	got := record(t, playback.New(song))
	if want := []int{0, 1, 3, 1, 3, 1, 3}; !reflect.DeepEqual(got, want) {
		t.Fatalf("played ticks %v, expected %v", got, want)
	}
}

func TestRunCancel(t *testing.T) {
	song := fastSong(0, 1)
	song.Loop = noteblock.Loop{Enabled: true}
	ctx, cancel := context.WithCancel(context.Background())
	count := 0
	err := playback.New(song).Run(ctx, func(int, []noteblock.Note) {
		if count++; count == 10 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if count != 10 {
		t.Fatalf("emitted %d ticks after cancel", count)
	}
}

func TestSeek(t *testing.T) {
	song := noteblock.NewSong(noteblock.FormatText)
	song.Notes.Add(0, noteblock.NewNote(noteblock.Vanilla(noteblock.Harp), 66))
	song.Notes.Add(9, noteblock.NewNote(noteblock.Vanilla(noteblock.Harp), 66))
	p := playback.New(song)
	p.Seek(500)
	if p.Position() != 5 {
		t.Fatalf("Seek(500) at 10 ticks per second: position %d", p.Position())
	}
	p.Seek(60000)
	if p.Position() != 10 {
		t.Fatalf("Seek past the end: position %d", p.Position())
	}
}

func TestRunFromSeek(t *testing.T) {
	song := fastSong(0, 2, 4)
	song.Tempo.Uniform(100)
	p := playback.New(song)
	p.Seek(30)
	if got := record(t, p); !reflect.DeepEqual(got, []int{4}) {
		t.Fatalf("played ticks %v", got)
	}
}
