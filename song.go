package noteblock

type (
	// Song is the canonical model every codec reads into and writes from.
	// Notes and Tempo carry the music; the rest is metadata that layered
	// formats (NBS) keep for round trips and that other formats may ignore.
	//
	// A Song is not safe for concurrent use. Hand a Copy to long-lived
	// consumers such as a player, so that edits to the original do not race
	// with them.
	Song struct {
		Title          string `yaml:",omitempty"`
		Author         string `yaml:",omitempty"`
		OriginalAuthor string `yaml:",omitempty"`
		Description    string `yaml:",omitempty"`
		SourceFileName string `yaml:",omitempty"` // the file the song was originally imported from, as recorded in the song
		FileName       string `yaml:",omitempty"` // the path the song was read from
		Format         Format
		Version        int `yaml:",omitempty"` // NBS version the song was read as

		Tempo TempoEvents
		Notes Notes

		Layers            []*Layer     `yaml:",omitempty"`
		CustomInstruments []Instrument `yaml:",omitempty"`
		Markers           []Marker     `yaml:",omitempty"`
		Loop              Loop
		Stats             Stats
	}

	// Format tags where a song came from.
	Format string

	// Layer is an authoring-time track. Notes keep a pointer to their layer;
	// the layer's position in Song.Layers is its index on disk.
	Layer struct {
		Name    string `yaml:",omitempty"`
		Locked  bool   `yaml:",omitempty"`
		Solo    bool   `yaml:",omitempty"`
		Volume  int    // 0..100
		Panning int    // 0..200, CenterPanning is centered
	}

	// Marker is a non-audible control event at a tick.
	Marker struct {
		Tick int
		Kind MarkerKind
	}

	MarkerKind string

	// Loop describes how a player should loop the song.
	Loop struct {
		Enabled   bool `yaml:",omitempty"`
		MaxCount  int  `yaml:",omitempty"` // 0 = forever
		StartTick int  `yaml:",omitempty"`
	}

	// Stats are the editor bookkeeping fields of an NBS file.
	Stats struct {
		AutoSave         bool `yaml:",omitempty"`
		AutoSaveInterval int  `yaml:",omitempty"` // minutes
		TimeSignature    int  `yaml:",omitempty"`
		MinutesSpent     int  `yaml:",omitempty"`
		LeftClicks       int  `yaml:",omitempty"`
		RightClicks      int  `yaml:",omitempty"`
		BlocksAdded      int  `yaml:",omitempty"`
		BlocksRemoved    int  `yaml:",omitempty"`
	}
)

const (
	FormatNBS  Format = "nbs"
	FormatMIDI Format = "midi"
	FormatText Format = "text"
)

const (
	MarkerToggleRainbow          MarkerKind = "toggle-rainbow"
	MarkerToggleBackgroundAccent MarkerKind = "toggle-background-accent"
	MarkerShowSavePopup          MarkerKind = "show-save-popup"
)

// NewSong returns an empty song at the default tempo.
func NewSong(format Format) *Song {
	return &Song{
		Format: format,
		Tempo:  NewTempoEvents(DefaultTicksPerSecond),
		Stats:  Stats{AutoSaveInterval: 10, TimeSignature: 4},
	}
}

// NewLayer returns a layer at full volume, centered.
func NewLayer(name string) *Layer {
	return &Layer{Name: name, Volume: 100, Panning: CenterPanning}
}

// Copy makes a deep copy of the song. Notes of the copy point at the copied
// layers.
func (s *Song) Copy() *Song {
	ret := *s
	remap := make(map[*Layer]*Layer, len(s.Layers))
	if s.Layers != nil {
		ret.Layers = make([]*Layer, len(s.Layers))
		for i, l := range s.Layers {
			c := *l
			ret.Layers[i] = &c
			remap[l] = &c
		}
	}
	ret.Notes = s.Notes.copyWith(remap)
	ret.Tempo = s.Tempo.Copy()
	ret.CustomInstruments = append([]Instrument(nil), s.CustomInstruments...)
	ret.Markers = append([]Marker(nil), s.Markers...)
	return &ret
}

// LayerIndex returns the position of l in s.Layers, or -1.
func (s *Song) LayerIndex(l *Layer) int {
	for i, x := range s.Layers {
		if x == l {
			return i
		}
	}
	return -1
}

// AddLayer appends a new layer and returns it.
func (s *Song) AddLayer(name string) *Layer {
	l := NewLayer(name)
	s.Layers = append(s.Layers, l)
	return l
}

// CustomInstrument returns the custom instrument at index.
func (s *Song) CustomInstrument(index int) (Instrument, bool) {
	if index < 0 || index >= len(s.CustomInstruments) {
		return Instrument{}, false
	}
	return s.CustomInstruments[index], true
}

// FindCustomInstrument returns the first custom instrument named name.
func (s *Song) FindCustomInstrument(name string) (Instrument, bool) {
	for _, c := range s.CustomInstruments {
		if c.Name == name {
			return c, true
		}
	}
	return Instrument{}, false
}

// Length is the length of the song in ticks: one past the last tick that
// has notes.
func (s *Song) Length() int {
	if s.Notes.Empty() {
		return 0
	}
	return s.Notes.LastTick() + 1
}

// TicksPerSecond returns the rate at tick 0.
func (s *Song) TicksPerSecond() float64 {
	return s.Tempo.EffectiveTempo(0)
}
