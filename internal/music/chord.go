package music

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Quality is the harmonic category of a chord. It is a closed enum: every
// quality maps to a fixed set of semitone offsets in qualityIntervals.
type Quality int

const (
	Major Quality = iota
	Minor
	Diminished
	Augmented
	Major7
	Minor7
	Dominant7
	Minor7b5
	Sus2
	Sus4
	Add9
	Sixth
	Minor6
)

func (q Quality) String() string {
	switch q {
	case Major:
		return "major"
	case Minor:
		return "minor"
	case Diminished:
		return "diminished"
	case Augmented:
		return "augmented"
	case Major7:
		return "major7"
	case Minor7:
		return "minor7"
	case Dominant7:
		return "dominant7"
	case Minor7b5:
		return "minor7b5"
	case Sus2:
		return "sus2"
	case Sus4:
		return "sus4"
	case Add9:
		return "add9"
	case Sixth:
		return "6"
	case Minor6:
		return "minor6"
	}
	return "unknown"
}

var (
	// ErrInvalidChord marks chord tokens that cannot be parsed at all
	// (empty token or root letter outside A-G).
	ErrInvalidChord = errors.New("invalid chord")

	// ErrPitchRange marks chords whose materialized pitches fall outside
	// the MIDI range 0-127.
	ErrPitchRange = errors.New("pitch out of MIDI range")
)

// DefaultOctave is the octave chords are materialized at when the caller
// doesn't ask for one. C at octave 4 is MIDI 48.
const DefaultOctave = 4

// noteOffsets maps root letters to semitone offsets from C.
var noteOffsets = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

// qualityAliases maps lowercased quality suffixes to qualities.
// An empty suffix is a plain major chord.
var qualityAliases = map[string]Quality{
	"":     Major,
	"maj":  Major,
	"m":    Minor,
	"min":  Minor,
	"dim":  Diminished,
	"aug":  Augmented,
	"maj7": Major7,
	"m7":   Minor7,
	"min7": Minor7,
	"7":    Dominant7,
	"m7b5": Minor7b5,
	"sus2": Sus2,
	"sus4": Sus4,
	"add9": Add9,
	"6":    Sixth,
	"m6":   Minor6,
}

// qualityIntervals maps each quality to semitone offsets from the root.
// add9 deliberately reaches past the octave (14 = major ninth).
var qualityIntervals = map[Quality][]int{
	Major:      {0, 4, 7},
	Minor:      {0, 3, 7},
	Diminished: {0, 3, 6},
	Augmented:  {0, 4, 8},
	Major7:     {0, 4, 7, 11},
	Minor7:     {0, 3, 7, 10},
	Dominant7:  {0, 4, 7, 10},
	Minor7b5:   {0, 3, 6, 10},
	Sus2:       {0, 2, 7},
	Sus4:       {0, 5, 7},
	Add9:       {0, 4, 7, 14},
	Sixth:      {0, 4, 7, 9},
	Minor6:     {0, 3, 7, 9},
}

// QualityAliases returns the suffix alias table (suffix -> quality name).
// Callers that want strict validation instead of the permissive
// default-to-major behavior can pre-check suffixes against this.
func QualityAliases() map[string]string {
	aliases := make(map[string]string, len(qualityAliases))
	for suffix, quality := range qualityAliases {
		aliases[suffix] = quality.String()
	}
	return aliases
}

// ParseChord resolves a chord token like "Cmaj7" or "F#m" to a root pitch
// class (0-11) and a quality. Sharps and flats alias to the same pitch class
// (C# and Db are both 1). Unrecognized quality suffixes default to major
// rather than failing; only a bad root letter is an error.
func ParseChord(token string) (int, Quality, error) {
	if token == "" {
		return 0, Major, fmt.Errorf("%w: empty token", ErrInvalidChord)
	}

	letter := token[0]
	if letter >= 'a' && letter <= 'z' {
		letter -= 'a' - 'A'
	}
	offset, ok := noteOffsets[letter]
	if !ok {
		return 0, Major, fmt.Errorf("%w: root %q is not A-G", ErrInvalidChord, string(token[0]))
	}

	idx := 1
	if idx < len(token) {
		switch token[idx] {
		case '#':
			offset++
			idx++
		case 'b':
			offset--
			idx++
		}
	}
	pitchClass := ((offset % 12) + 12) % 12

	quality, ok := qualityAliases[strings.ToLower(token[idx:])]
	if !ok {
		quality = Major
	}
	return pitchClass, quality, nil
}

// Chord is a set of pitches materialized at a concrete octave.
// Notes[0] is always the root in its chosen octave; bass generation
// relies on that ordering. Notes are derived once and never mutated.
type Chord struct {
	Name          string  `json:"name"`
	Root          int     `json:"root"`
	Quality       Quality `json:"quality"`
	Notes         []int   `json:"notes"`
	DurationBeats float64 `json:"durationBeats"`
}

// BuildChord materializes a chord at the given octave. Any pitch that falls
// outside MIDI range 0-127 fails the whole chord (possible with wide
// qualities like add9 at high octaves).
func BuildChord(name string, root int, quality Quality, octave int, durationBeats float64) (Chord, error) {
	intervals := qualityIntervals[quality]
	notes := make([]int, 0, len(intervals))
	for _, interval := range intervals {
		pitch := root + octave*12 + interval
		if pitch < 0 || pitch > 127 {
			return Chord{}, fmt.Errorf("%w: %s at octave %d yields pitch %d", ErrPitchRange, name, octave, pitch)
		}
		notes = append(notes, pitch)
	}
	return Chord{
		Name:          name,
		Root:          root,
		Quality:       quality,
		Notes:         notes,
		DurationBeats: durationBeats,
	}, nil
}

// Progression is an ordered chord sequence plus the musical metadata shared
// by every generator. Immutable once built; Chords may be empty.
type Progression struct {
	Chords        []Chord `json:"chords"`
	Key           string  `json:"key"`
	TimeSignature string  `json:"timeSignature"`
	Tempo         float64 `json:"tempo"`
}

// ParseTimeSignature splits "N/D" into numerator and denominator.
// The denominator must be a power of two (it is encoded as log2 in MIDI).
func ParseTimeSignature(ts string) (int, int, error) {
	parts := strings.Split(ts, "/")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("time signature %q is not of the form N/D", ts)
	}
	numerator, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || numerator <= 0 {
		return 0, 0, fmt.Errorf("time signature %q has an invalid numerator", ts)
	}
	denominator, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || denominator <= 0 || denominator&(denominator-1) != 0 {
		return 0, 0, fmt.Errorf("time signature %q needs a power-of-two denominator", ts)
	}
	return numerator, denominator, nil
}

// ParseProgression builds a progression from a whitespace-separated token
// string like "C G Am F". Each chord lasts one full bar (the time-signature
// numerator in beats). The parse is atomic: the first bad token fails the
// whole progression. An empty token string yields zero chords, which is legal.
func ParseProgression(tokens, key string, tempo float64, timeSignature string, octave int) (Progression, error) {
	if tempo <= 0 {
		return Progression{}, fmt.Errorf("tempo must be positive, got %v", tempo)
	}
	numerator, _, err := ParseTimeSignature(timeSignature)
	if err != nil {
		return Progression{}, err
	}

	fields := strings.Fields(tokens)
	chords := make([]Chord, 0, len(fields))
	for _, token := range fields {
		root, quality, err := ParseChord(token)
		if err != nil {
			return Progression{}, err
		}
		chord, err := BuildChord(token, root, quality, octave, float64(numerator))
		if err != nil {
			return Progression{}, err
		}
		chords = append(chords, chord)
	}

	return Progression{
		Chords:        chords,
		Key:           key,
		TimeSignature: timeSignature,
		Tempo:         tempo,
	}, nil
}
