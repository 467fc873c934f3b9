package music

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/Conceptual-Machines/magda-patterns/internal/models"
)

// PatternType selects one of the four generation algorithms.
type PatternType string

const (
	PatternBass     PatternType = "bass"
	PatternArpeggio PatternType = "arpeggio"
	PatternMelody   PatternType = "melody"
	PatternRhythm   PatternType = "rhythm"
)

// PatternTypes lists the supported pattern type selectors.
func PatternTypes() []string {
	return []string{
		string(PatternBass),
		string(PatternArpeggio),
		string(PatternMelody),
		string(PatternRhythm),
	}
}

// ArpeggioStyle selects the note ordering for arpeggiated patterns.
type ArpeggioStyle string

const (
	ArpeggioUp     ArpeggioStyle = "up"
	ArpeggioDown   ArpeggioStyle = "down"
	ArpeggioUpDown ArpeggioStyle = "updown"
)

// ArpeggioStyles lists the supported arpeggio styles.
func ArpeggioStyles() []string {
	return []string{string(ArpeggioUp), string(ArpeggioDown), string(ArpeggioUpDown)}
}

const (
	defaultChannel = 0

	// Articulation multipliers keep consecutive notes from running legato.
	bassArticulation   = 0.9
	arpArticulation    = 0.9
	rhythmArticulation = 0.8

	bassAccentVelocity = 100
	bassVelocity       = 80
)

// rhythmicCells are the beat-duration templates the melody and rhythm
// generators draw from at random.
var rhythmicCells = [][]float64{
	{1, 1, 1, 1},
	{2, 1, 1},
	{0.5, 0.5, 1, 1, 1},
	{1.5, 0.5, 2},
	{2, 2},
}

// PatternGenerator derives note patterns from a chord progression. All
// randomness flows through the generator's own rand source, so a seeded
// generator replays identically; nothing touches the global rand state.
type PatternGenerator struct {
	rng *rand.Rand
}

// NewPatternGenerator returns a generator with a fresh random seed.
func NewPatternGenerator() *PatternGenerator {
	return NewSeededPatternGenerator(time.Now().UnixNano())
}

// NewSeededPatternGenerator returns a generator whose random choices are
// reproducible for the given seed.
func NewSeededPatternGenerator(seed int64) *PatternGenerator {
	return &PatternGenerator{rng: rand.New(rand.NewSource(seed))}
}

// Generate dispatches to the generator named by patternType. The style
// argument only applies to arpeggios and defaults to "up".
func (g *PatternGenerator) Generate(prog Progression, patternType PatternType, style ArpeggioStyle) (models.MidiPattern, error) {
	switch patternType {
	case PatternBass:
		return g.Bass(prog), nil
	case PatternArpeggio:
		if style == "" {
			style = ArpeggioUp
		}
		switch style {
		case ArpeggioUp, ArpeggioDown, ArpeggioUpDown:
		default:
			return models.MidiPattern{}, fmt.Errorf("unknown arpeggio style %q", style)
		}
		return g.Arpeggio(prog, style), nil
	case PatternMelody:
		return g.Melody(prog), nil
	case PatternRhythm:
		return g.Rhythm(prog), nil
	default:
		return models.MidiPattern{}, fmt.Errorf("unknown pattern type %q", patternType)
	}
}

// Bass plays each chord's root an octave down on every beat of the chord.
// Beat one of each chord is accented; the rest pulse at a lower velocity.
func (g *PatternGenerator) Bass(prog Progression) models.MidiPattern {
	var notes []models.Note
	cursor := 0.0
	for _, chord := range prog.Chords {
		if chord.DurationBeats <= 0 {
			continue
		}
		if len(chord.Notes) == 0 {
			cursor += chord.DurationBeats
			continue
		}
		root := foldIntoRange(chord.Notes[0] - 12)
		for beat := 0; float64(beat) < chord.DurationBeats; beat++ {
			velocity := bassVelocity
			if beat == 0 {
				velocity = bassAccentVelocity
			}
			duration := bassArticulation
			if remaining := chord.DurationBeats - float64(beat); duration > remaining {
				duration = remaining
			}
			notes = append(notes, models.Note{
				Pitch:         root,
				Velocity:      velocity,
				StartBeats:    cursor + float64(beat),
				DurationBeats: duration,
				Channel:       defaultChannel,
			})
		}
		cursor += chord.DurationBeats
	}
	return g.finish("bass", prog, notes, cursor)
}

// Arpeggio spreads each chord's notes evenly across the chord duration in
// the requested order: ascending, descending, or an up-then-down palindrome
// that skips the repeated endpoints (C E G -> C E G E).
func (g *PatternGenerator) Arpeggio(prog Progression, style ArpeggioStyle) models.MidiPattern {
	var notes []models.Note
	cursor := 0.0
	for _, chord := range prog.Chords {
		if chord.DurationBeats <= 0 {
			continue
		}
		if len(chord.Notes) == 0 {
			cursor += chord.DurationBeats
			continue
		}
		sequence := arpeggioSequence(chord.Notes, style)
		slot := chord.DurationBeats / float64(len(sequence))
		for i, pitch := range sequence {
			notes = append(notes, models.Note{
				Pitch:         pitch,
				Velocity:      80 + g.rng.Intn(21),
				StartBeats:    cursor + float64(i)*slot,
				DurationBeats: slot * arpArticulation,
				Channel:       defaultChannel,
			})
		}
		cursor += chord.DurationBeats
	}
	return g.finish("arpeggio-"+string(style), prog, notes, cursor)
}

// Melody picks a random rhythmic cell per chord and fills its slots with
// pitches drawn from the chord tones plus the root raised an octave. At most
// 2-4 notes land per chord, and a slot only sounds while the chord still has
// time left; the final slot is clamped to the remaining time.
func (g *PatternGenerator) Melody(prog Progression) models.MidiPattern {
	var notes []models.Note
	cursor := 0.0
	for _, chord := range prog.Chords {
		if chord.DurationBeats <= 0 {
			continue
		}
		if len(chord.Notes) == 0 {
			cursor += chord.DurationBeats
			continue
		}
		pool := append([]int(nil), chord.Notes...)
		pool = append(pool, foldIntoRange(chord.Notes[0]+12))

		cell := rhythmicCells[g.rng.Intn(len(rhythmicCells))]
		maxNotes := 2 + g.rng.Intn(3)
		consumed := 0.0
		for i := 0; i < len(cell) && i < maxNotes; i++ {
			remaining := chord.DurationBeats - consumed
			if remaining <= 0 {
				break
			}
			duration := cell[i]
			if duration > remaining {
				duration = remaining
			}
			notes = append(notes, models.Note{
				Pitch:         pool[g.rng.Intn(len(pool))],
				Velocity:      80 + g.rng.Intn(21),
				StartBeats:    cursor + consumed,
				DurationBeats: duration,
				Channel:       defaultChannel,
			})
			consumed += cell[i]
		}
		cursor += chord.DurationBeats
	}
	return g.finish("melody", prog, notes, cursor)
}

// Rhythm stabs the full chord at each slot of a randomly chosen rhythmic
// cell, slightly detached and with bounded velocity jitter.
func (g *PatternGenerator) Rhythm(prog Progression) models.MidiPattern {
	var notes []models.Note
	cursor := 0.0
	for _, chord := range prog.Chords {
		if chord.DurationBeats <= 0 {
			continue
		}
		if len(chord.Notes) == 0 {
			cursor += chord.DurationBeats
			continue
		}
		cell := rhythmicCells[g.rng.Intn(len(rhythmicCells))]
		consumed := 0.0
		for _, slot := range cell {
			remaining := chord.DurationBeats - consumed
			if remaining <= 0 {
				break
			}
			duration := slot
			if duration > remaining {
				duration = remaining
			}
			velocity := 75 + g.rng.Intn(16)
			for _, pitch := range chord.Notes {
				notes = append(notes, models.Note{
					Pitch:         pitch,
					Velocity:      velocity,
					StartBeats:    cursor + consumed,
					DurationBeats: duration * rhythmArticulation,
					Channel:       defaultChannel,
				})
			}
			consumed += slot
		}
		cursor += chord.DurationBeats
	}
	return g.finish("rhythm", prog, notes, cursor)
}

func (g *PatternGenerator) finish(name string, prog Progression, notes []models.Note, totalBeats float64) models.MidiPattern {
	beatsPerBar, _, err := ParseTimeSignature(prog.TimeSignature)
	if err != nil {
		beatsPerBar = 4
	}
	bars := 0
	if totalBeats > 0 {
		bars = int(math.Ceil(totalBeats/float64(beatsPerBar) - 1e-9))
	}
	return models.MidiPattern{
		Name:          name,
		Notes:         notes,
		Tempo:         prog.Tempo,
		TimeSignature: prog.TimeSignature,
		LengthBars:    bars,
		Key:           prog.Key,
	}
}

func arpeggioSequence(chordNotes []int, style ArpeggioStyle) []int {
	switch style {
	case ArpeggioDown:
		sequence := make([]int, len(chordNotes))
		for i, pitch := range chordNotes {
			sequence[len(chordNotes)-1-i] = pitch
		}
		return sequence
	case ArpeggioUpDown:
		sequence := append([]int(nil), chordNotes...)
		for i := len(chordNotes) - 2; i >= 1; i-- {
			sequence = append(sequence, chordNotes[i])
		}
		return sequence
	default:
		return append([]int(nil), chordNotes...)
	}
}

// foldIntoRange transposes a pitch by octaves until it sits in 0-127.
// Chord notes are range-checked at build time; this only guards the
// octave shifts the generators apply on top.
func foldIntoRange(pitch int) int {
	for pitch < 0 {
		pitch += 12
	}
	for pitch > 127 {
		pitch -= 12
	}
	return pitch
}
