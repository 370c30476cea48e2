package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noteblock-tools/noteblock"
	"github.com/noteblock-tools/noteblock/keyrange"
	"github.com/noteblock-tools/noteblock/midiimport"
	"github.com/noteblock-tools/noteblock/nbs"
	"github.com/noteblock-tools/noteblock/resample"
	"github.com/noteblock-tools/noteblock/textformat"
)

var errUnknownExtension = errors.New("unknown file extension")

// songOptions are the flags shared by the commands that read songs.
type songOptions struct {
	tps         float64
	noSkip      bool
	flatten     bool
	mapping     string
	rangePolicy string
}

func (o *songOptions) midi() (midiimport.Options, error) {
	opts := midiimport.DefaultOptions()
	opts.SkipOutOfRange = !o.noSkip
	if o.tps > 0 {
		opts.TargetTicksPerSecond = o.tps
	}
	if o.mapping != "" {
		m, err := midiimport.LoadMappingFile(o.mapping)
		if err != nil {
			return opts, err
		}
		opts.Mapping = m
	}
	return opts, nil
}

func extension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// load reads a song with the codec picked by the file extension and applies
// the requested transforms.
func load(path string, o *songOptions) (*noteblock.Song, error) {
	policy, err := keyrange.ParsePolicy(o.rangePolicy)
	if err != nil {
		return nil, err
	}
	var song *noteblock.Song
	switch extension(path) {
	case ".nbs":
		song, err = nbs.ReadFile(path)
	case ".mid", ".midi":
		var opts midiimport.Options
		if opts, err = o.midi(); err != nil {
			return nil, err
		}
		opts.RangePolicy = policy
		policy = keyrange.None
		song, err = midiimport.ReadFile(path, opts)
	case ".txt":
		song, err = readText(path)
	default:
		return nil, fmt.Errorf("%v: %w", path, errUnknownExtension)
	}
	if err != nil {
		return nil, err
	}
	if song.Format != noteblock.FormatMIDI && o.tps > 0 {
		if err := resample.ChangeTickSpeed(song, o.tps); err != nil {
			return nil, err
		}
	}
	if o.flatten {
		if err := resample.FlattenTempo(song); err != nil {
			return nil, err
		}
	}
	if n := keyrange.Apply(song, policy); n > 0 {
		logf("%v: %v moved %d notes\n", path, policy, n)
	}
	return song, nil
}

func readText(path string) (*noteblock.Song, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	song, err := textformat.Read(f)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", path, err)
	}
	song.FileName = path
	return song, nil
}

// writeOptions are the flags of the writing codecs.
type writeOptions struct {
	nbs      nbs.Options
	template string
}

// save writes the song with the codec picked by the file extension.
func save(path string, song *noteblock.Song, o *writeOptions) error {
	switch extension(path) {
	case ".nbs":
		return nbs.WriteFile(path, song, o.nbs)
	case ".txt":
		return writeText(path, song, o.template)
	case ".yml", ".yaml", ".json":
		b, err := marshal(song, extension(path) == ".json")
		if err != nil {
			return err
		}
		return os.WriteFile(path, b, 0644)
	}
	return fmt.Errorf("%v: %w", path, errUnknownExtension)
}

func writeText(path string, song *noteblock.Song, template string) (err error) {
	var text []byte
	if template != "" {
		if text, err = os.ReadFile(template); err != nil {
			return fmt.Errorf("could not read template: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if template != "" {
		return textformat.WriteTemplate(f, song, string(text))
	}
	return textformat.Write(f, song)
}

func marshal(song *noteblock.Song, asJSON bool) ([]byte, error) {
	if asJSON {
		b, err := json.MarshalIndent(song, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("could not marshal the song as json: %w", err)
		}
		return append(b, '\n'), nil
	}
	b, err := yaml.Marshal(song)
	if err != nil {
		return nil, fmt.Errorf("could not marshal the song as yaml: %w", err)
	}
	return b, nil
}
