package nbs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/noteblock-tools/noteblock"
)

// header is the on-disk header, before it is turned into song metadata.
type header struct {
	version      int
	vanillaCount int
	length       int
	layerCount   int

	title, author, originalAuthor, description string

	tempo            int // ticks per second * 100
	autoSave         int
	autoSaveInterval int
	timeSignature    int

	minutes, leftClicks, rightClicks, blocksAdded, blocksRemoved int

	importName string

	loop, maxLoopCount, loopStartTick int
}

// field is one header field that exists from minVersion onwards. The same
// table drives both reading and writing.
type field struct {
	name       string
	minVersion int
	read       func(*decoder, *header) error
	write      func(*encoder, *header)
}

func u8Field(name string, minVersion int, p func(*header) *int) field {
	return field{name, minVersion,
		func(d *decoder, h *header) (err error) { *p(h), err = d.u8(); return },
		func(e *encoder, h *header) { e.u8(*p(h)) }}
}

func i16Field(name string, minVersion int, p func(*header) *int) field {
	return field{name, minVersion,
		func(d *decoder, h *header) (err error) { *p(h), err = d.i16(); return },
		func(e *encoder, h *header) { e.i16(*p(h)) }}
}

func i32Field(name string, minVersion int, p func(*header) *int) field {
	return field{name, minVersion,
		func(d *decoder, h *header) (err error) { *p(h), err = d.i32(); return },
		func(e *encoder, h *header) { e.i32(*p(h)) }}
}

func strField(name string, minVersion int, p func(*header) *string) field {
	return field{name, minVersion,
		func(d *decoder, h *header) (err error) { *p(h), err = d.str(); return },
		func(e *encoder, h *header) { e.str(*p(h)) }}
}

// headerFields lists the header after the version prefix, in file order.
var headerFields = []field{
	i16Field("layer count", 0, func(h *header) *int { return &h.layerCount }),
	strField("title", 0, func(h *header) *string { return &h.title }),
	strField("author", 0, func(h *header) *string { return &h.author }),
	strField("original author", 0, func(h *header) *string { return &h.originalAuthor }),
	strField("description", 0, func(h *header) *string { return &h.description }),
	i16Field("tempo", 0, func(h *header) *int { return &h.tempo }),
	u8Field("auto save", 0, func(h *header) *int { return &h.autoSave }),
	u8Field("auto save interval", 0, func(h *header) *int { return &h.autoSaveInterval }),
	u8Field("time signature", 0, func(h *header) *int { return &h.timeSignature }),
	i32Field("minutes spent", 0, func(h *header) *int { return &h.minutes }),
	i32Field("left clicks", 0, func(h *header) *int { return &h.leftClicks }),
	i32Field("right clicks", 0, func(h *header) *int { return &h.rightClicks }),
	i32Field("blocks added", 0, func(h *header) *int { return &h.blocksAdded }),
	i32Field("blocks removed", 0, func(h *header) *int { return &h.blocksRemoved }),
	strField("import name", 0, func(h *header) *string { return &h.importName }),
	u8Field("loop", 4, func(h *header) *int { return &h.loop }),
	u8Field("max loop count", 4, func(h *header) *int { return &h.maxLoopCount }),
	i16Field("loop start tick", 4, func(h *header) *int { return &h.loopStartTick }),
}

// vanillaCountFor is the number of built-in instruments a version knows.
func vanillaCountFor(version int) int {
	if version == 0 {
		return noteblock.LegacyVanillaCount
	}
	return noteblock.VanillaCount
}

func (h *header) read(d *decoder) error {
	first, err := d.i16()
	if err != nil {
		return fmt.Errorf("length: %w", err)
	}
	if first != 0 {
		// files without a version number start with the song length, which
		// is never zero
		h.version = 0
		h.vanillaCount = noteblock.LegacyVanillaCount
		h.length = first
	} else {
		if h.version, err = d.u8(); err != nil {
			return fmt.Errorf("version: %w", err)
		}
		if h.version < MinVersion || h.version > MaxVersion {
			return fmt.Errorf("version %d: %w", h.version, noteblock.ErrMalformedHeader)
		}
		if h.vanillaCount, err = d.u8(); err != nil {
			return fmt.Errorf("vanilla instrument count: %w", err)
		}
		if h.version >= 3 {
			if h.length, err = d.i16(); err != nil {
				return fmt.Errorf("length: %w", err)
			}
		}
	}
	for _, f := range headerFields {
		if h.version < f.minVersion {
			continue
		}
		if err := f.read(d, h); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
	}
	if h.layerCount < 0 {
		return fmt.Errorf("layer count %d: %w", h.layerCount, noteblock.ErrMalformedHeader)
	}
	return nil
}

func (h *header) write(e *encoder) {
	if h.version == 0 {
		e.i16(max(h.length, 1))
	} else {
		e.i16(0)
		e.u8(h.version)
		e.u8(h.vanillaCount)
		if h.version >= 3 {
			e.i16(h.length)
		}
	}
	for _, f := range headerFields {
		if h.version >= f.minVersion {
			f.write(e, h)
		}
	}
}

type decoder struct {
	r *bytes.Reader
}

func (d *decoder) read(v any) error {
	if err := binary.Read(d.r, binary.LittleEndian, v); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return noteblock.ErrTruncatedStream
		}
		return fmt.Errorf("binary.Read: %w", err)
	}
	return nil
}

func (d *decoder) u8() (int, error) {
	var v uint8
	err := d.read(&v)
	return int(v), err
}

func (d *decoder) i16() (int, error) {
	var v int16
	err := d.read(&v)
	return int(v), err
}

func (d *decoder) i32() (int, error) {
	var v int32
	err := d.read(&v)
	return int(v), err
}

// str reads an int32 length followed by that many bytes. Carriage returns
// become spaces and invalid UTF-8 is taken to be Windows-1252.
func (d *decoder) str() (string, error) {
	n, err := d.i32()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", fmt.Errorf("string length %d: %w", n, noteblock.ErrMalformedHeader)
	}
	if n > d.r.Len() {
		return "", noteblock.ErrTruncatedStream
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		return "", noteblock.ErrTruncatedStream
	}
	if !utf8.Valid(b) {
		if dec, err := charmap.Windows1252.NewDecoder().Bytes(b); err == nil {
			b = dec
		}
	}
	return strings.ReplaceAll(string(b), "\r", " "), nil
}

func (d *decoder) remaining() int {
	return d.r.Len()
}

// encoder writes little-endian values, keeping the first error.
type encoder struct {
	w           io.Writer
	windows1252 bool
	err         error
}

func (e *encoder) write(v any) {
	if e.err == nil {
		e.err = binary.Write(e.w, binary.LittleEndian, v)
	}
}

func (e *encoder) u8(v int)  { e.write(uint8(v)) }
func (e *encoder) i16(v int) { e.write(int16(v)) }
func (e *encoder) i32(v int) { e.write(int32(v)) }

func (e *encoder) str(s string) {
	b := []byte(s)
	if e.windows1252 {
		if enc, err := charmap.Windows1252.NewEncoder().String(s); err == nil {
			b = []byte(enc)
		}
	}
	e.i32(len(b))
	if e.err == nil {
		_, e.err = e.w.Write(b)
	}
}
