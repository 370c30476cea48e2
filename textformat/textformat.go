// Package textformat reads and writes songs as plain text, one note per line:
//
//	tick:instrument:key[:volume[:panning]]
//
// instrument is a vanilla instrument id or name, or c<index> for a custom
// instrument. Lines starting with # are comments, except for the directives
//
//	#title <text>
//	#author <text>
//	#custom <base pitch> <name>    declares the next custom instrument
//	#tempo [<tick>] <ticks per second>
package textformat

import (
	"bufio"
	"embed"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"

	"github.com/noteblock-tools/noteblock"
)

//go:embed templates/*.txt
var templateFS embed.FS

var ErrSyntax = errors.New("syntax error")

type (
	// Line is a note as the templates see it.
	Line struct {
		Tick       int
		Instrument string
		Key        float64
		Volume     float64
		Panning    float64
	}

	// Data is what a template is executed with.
	Data struct {
		*noteblock.Song
		TempoEvents []noteblock.TempoEvent
		Lines       []Line
	}
)

// Read parses a text song.
func Read(r io.Reader) (*noteblock.Song, error) {
	song := noteblock.NewSong(noteblock.FormatText)
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		var err error
		switch {
		case line == "":
		case strings.HasPrefix(line, "#"):
			err = directive(song, line[1:])
		default:
			err = note(song, line)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("bufio.Scanner: %w", err)
	}
	return song, nil
}

func directive(song *noteblock.Song, line string) error {
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch name {
	case "title":
		song.Title = rest
	case "author":
		song.Author = rest
	case "custom":
		pitch, instrName, _ := strings.Cut(rest, " ")
		p, err := strconv.Atoi(pitch)
		if err != nil {
			return fmt.Errorf("custom base pitch %q: %w", pitch, ErrSyntax)
		}
		song.CustomInstruments = append(song.CustomInstruments,
			noteblock.Custom(len(song.CustomInstruments), strings.TrimSpace(instrName), "", p, false))
	case "tempo":
		args := strings.Fields(rest)
		tick := 0
		if len(args) == 2 {
			t, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("tempo tick %q: %w", args[0], ErrSyntax)
			}
			tick, args = t, args[1:]
		}
		if len(args) != 1 {
			return fmt.Errorf("tempo %q: %w", rest, ErrSyntax)
		}
		tps, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("tempo %q: %w", args[0], ErrSyntax)
		}
		return song.Tempo.SetTempo(tick, tps)
	}
	return nil
}

func note(song *noteblock.Song, line string) error {
	fields := strings.Split(line, ":")
	if len(fields) < 3 || len(fields) > 5 {
		return fmt.Errorf("%q: expected tick:instrument:key[:volume[:panning]]: %w", line, ErrSyntax)
	}
	tick, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil || tick < 0 {
		return fmt.Errorf("tick %q: %w", fields[0], ErrSyntax)
	}
	instrument, err := parseInstrument(song, strings.TrimSpace(fields[1]))
	if err != nil {
		return err
	}
	nums := make([]float64, len(fields)-2)
	for i, f := range fields[2:] {
		if nums[i], err = strconv.ParseFloat(strings.TrimSpace(f), 64); err != nil {
			return fmt.Errorf("%q: %w", f, ErrSyntax)
		}
	}
	n := noteblock.NewNote(instrument, nums[0])
	if len(nums) > 1 {
		n.Volume = nums[1]
	}
	if len(nums) > 2 {
		n.Panning = nums[2]
	}
	song.Notes.Add(tick, n)
	return nil
}

func parseInstrument(song *noteblock.Song, s string) (noteblock.Instrument, error) {
	if rest, ok := strings.CutPrefix(s, "c"); ok {
		if i, err := strconv.Atoi(rest); err == nil {
			if c, ok := song.CustomInstrument(i); ok {
				// keys in the text already include the base pitch offset
				c.BasePitch = noteblock.NeutralBasePitch
				return c, nil
			}
			return noteblock.Instrument{}, fmt.Errorf("custom instrument %d: %w", i, noteblock.ErrInvalidInstrument)
		}
	}
	if id, err := strconv.Atoi(s); err == nil {
		if _, ok := noteblock.VanillaByID(id); ok {
			return noteblock.Vanilla(id), nil
		}
		return noteblock.Instrument{}, fmt.Errorf("instrument %d: %w", id, noteblock.ErrInvalidInstrument)
	}
	if id, ok := noteblock.VanillaByName(s); ok {
		return noteblock.Vanilla(id), nil
	}
	return noteblock.Instrument{}, fmt.Errorf("instrument %q: %w", s, noteblock.ErrInvalidInstrument)
}

// Write writes the song with the built-in template.
func Write(w io.Writer, song *noteblock.Song) error {
	tmpl, err := template.New("").Funcs(funcs()).ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return fmt.Errorf("template.ParseFS: %w", err)
	}
	return execute(w, tmpl.Lookup("song.txt"), song)
}

// WriteTemplate writes the song with a user template. The template is
// executed with a Data and can use the sprig functions and num, which
// formats a number without trailing zeros.
func WriteTemplate(w io.Writer, song *noteblock.Song, text string) error {
	tmpl, err := template.New("user").Funcs(funcs()).Parse(text)
	if err != nil {
		return fmt.Errorf("template.Parse: %w", err)
	}
	return execute(w, tmpl, song)
}

// NewData flattens the song for templates. Shifted instruments are written
// as their base instrument at the sounding key.
func NewData(song *noteblock.Song) *Data {
	d := &Data{Song: song, TempoEvents: song.Tempo.Events()}
	song.Notes.ForEach(func(tick int, notes []noteblock.Note) {
		for _, n := range notes {
			l := Line{Tick: tick, Key: n.SoundingKey(), Volume: n.Volume, Panning: n.Panning}
			switch n.Instrument.Kind {
			case noteblock.KindCustom:
				l.Instrument = "c" + strconv.Itoa(n.Instrument.Index)
			default:
				l.Instrument = strconv.Itoa(n.Instrument.ID)
			}
			d.Lines = append(d.Lines, l)
		}
	})
	return d
}

func execute(w io.Writer, tmpl *template.Template, song *noteblock.Song) error {
	bw := bufio.NewWriter(w)
	if err := tmpl.Execute(bw, NewData(song)); err != nil {
		return fmt.Errorf("template.Execute: %w", err)
	}
	return bw.Flush()
}

func funcs() template.FuncMap {
	m := sprig.TxtFuncMap()
	m["num"] = func(f float64) string {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return m
}
