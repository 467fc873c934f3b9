package models

// Note represents a single musical note with timing and pitch information.
// StartBeats and DurationBeats are in the shared time-in-beats coordinate
// system used by every pattern generator.
type Note struct {
	Pitch         int     `json:"pitch"`
	Velocity      int     `json:"velocity"`
	StartBeats    float64 `json:"startBeats"`
	DurationBeats float64 `json:"durationBeats"`
	Channel       int     `json:"channel"`
}

// MidiPattern is the structured result of one generator run. It is produced
// once, consumed once by the encoder, and never mutated.
type MidiPattern struct {
	Name          string  `json:"name"`
	Notes         []Note  `json:"notes"`
	Tempo         float64 `json:"tempo"`
	TimeSignature string  `json:"timeSignature"`
	LengthBars    int     `json:"lengthBars"`
	Key           string  `json:"key"`
}
