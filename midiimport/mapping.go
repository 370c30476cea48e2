package midiimport

import (
	"embed"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/noteblock-tools/noteblock"
)

//go:embed mapping.yml
var mappingFS embed.FS

type (
	// Mapping tells which note block instrument plays each General MIDI
	// program and percussion key.
	Mapping struct {
		Programs   [128]ProgramMapping
		Percussion map[uint8]PercussionMapping
	}

	// ProgramMapping plays a program on Instrument, with MIDI keys moved by
	// Octave octaves.
	ProgramMapping struct {
		Instrument int
		Octave     int
	}

	// PercussionMapping plays a percussion key on Instrument at the absolute
	// key Key.
	PercussionMapping struct {
		Instrument int
		Key        float64
	}

	mappingDoc struct {
		Programs []struct {
			From       int    `yaml:"from"`
			To         int    `yaml:"to"`
			Instrument string `yaml:"instrument"`
			Octave     int    `yaml:"octave"`
		} `yaml:"programs"`
		Percussion []struct {
			Key        int     `yaml:"key"`
			Instrument string  `yaml:"instrument"`
			Note       float64 `yaml:"note"`
		} `yaml:"percussion"`
	}
)

var defaultMapping = sync.OnceValue(func() *Mapping {
	f, err := mappingFS.Open("mapping.yml")
	if err != nil {
		panic(err)
	}
	defer f.Close()
	m, err := LoadMapping(f)
	if err != nil {
		panic(fmt.Errorf("embedded mapping.yml: %w", err))
	}
	return m
})

// DefaultMapping returns the built-in General MIDI mapping. The returned
// mapping is shared and must not be modified.
func DefaultMapping() *Mapping {
	return defaultMapping()
}

// LoadMapping parses a mapping document in the format of the embedded
// mapping.yml. Programs the document does not list play on the Harp.
func LoadMapping(r io.Reader) (*Mapping, error) {
	var doc mappingDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("yaml.Decode: %w", err)
	}
	m := &Mapping{Percussion: make(map[uint8]PercussionMapping, len(doc.Percussion))}
	for i := range m.Programs {
		m.Programs[i] = ProgramMapping{Instrument: noteblock.Harp}
	}
	for _, p := range doc.Programs {
		id, ok := noteblock.VanillaByName(p.Instrument)
		if !ok {
			return nil, fmt.Errorf("programs %d-%d: unknown instrument %q", p.From, p.To, p.Instrument)
		}
		if p.From < 0 || p.To > 127 || p.From > p.To {
			return nil, fmt.Errorf("invalid program range %d-%d", p.From, p.To)
		}
		for prog := p.From; prog <= p.To; prog++ {
			m.Programs[prog] = ProgramMapping{Instrument: id, Octave: p.Octave}
		}
	}
	for _, p := range doc.Percussion {
		id, ok := noteblock.VanillaByName(p.Instrument)
		if !ok {
			return nil, fmt.Errorf("percussion key %d: unknown instrument %q", p.Key, p.Instrument)
		}
		if p.Key < 0 || p.Key > 127 {
			return nil, fmt.Errorf("invalid percussion key %d", p.Key)
		}
		m.Percussion[uint8(p.Key)] = PercussionMapping{Instrument: id, Key: p.Note}
	}
	return m, nil
}

// LoadMappingFile reads a mapping document from path.
func LoadMappingFile(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open: %w", err)
	}
	defer f.Close()
	m, err := LoadMapping(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Program returns the instrument and key for a melodic note.
func (m *Mapping) Program(program, key uint8) (noteblock.Instrument, float64) {
	p := m.Programs[program&0x7f]
	return noteblock.Vanilla(p.Instrument), float64(key) + 12*float64(p.Octave)
}

// Drum returns the instrument and key for a percussion note, or false if
// the key is not mapped.
func (m *Mapping) Drum(key uint8) (noteblock.Instrument, float64, bool) {
	p, ok := m.Percussion[key]
	if !ok {
		return noteblock.Instrument{}, 0, false
	}
	return noteblock.Vanilla(p.Instrument), p.Key, true
}
