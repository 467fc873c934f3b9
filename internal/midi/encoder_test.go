package midi

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/Conceptual-Machines/magda-patterns/internal/models"
)

func testPattern(notes []models.Note) models.MidiPattern {
	return models.MidiPattern{
		Name:          "test",
		Notes:         notes,
		Tempo:         120,
		TimeSignature: "4/4",
		LengthBars:    1,
		Key:           "C",
	}
}

func TestVarLenLiterals(t *testing.T) {
	tests := []struct {
		value    uint32
		expected []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7F}},
		{128, []byte{0x81, 0x00}},
		{16383, []byte{0xFF, 0x7F}},
		{16384, []byte{0x81, 0x80, 0x00}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, encodeVarLen(tt.value), "value %d", tt.value)
	}
}

func TestVarLenRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 96, 127, 128, 255, 480, 16383, 16384, 100000, 1 << 21, 0x0FFFFFFF}
	for _, v := range values {
		encoded := encodeVarLen(v)
		decoded, n := decodeVarLen(encoded)
		assert.Equal(t, v, decoded, "round trip of %d", v)
		assert.Equal(t, len(encoded), n, "consumed bytes for %d", v)
	}
}

func TestHeaderExactness(t *testing.T) {
	patterns := []models.MidiPattern{
		testPattern(nil),
		testPattern([]models.Note{{Pitch: 60, Velocity: 100, StartBeats: 0, DurationBeats: 1}}),
	}
	expected := []byte{
		'M', 'T', 'h', 'd',
		0x00, 0x00, 0x00, 0x06, // chunk length
		0x00, 0x00, // format 0
		0x00, 0x01, // one track
		0x01, 0xE0, // 480 PPQ
	}
	for _, pattern := range patterns {
		data, err := Encode(pattern)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(data), 14)
		assert.Equal(t, expected, data[:14])
	}
}

func TestTempoAndTimeSignatureMeta(t *testing.T) {
	pattern := testPattern(nil)
	pattern.Tempo = 120
	pattern.TimeSignature = "3/4"

	data, err := Encode(pattern)
	require.NoError(t, err)

	// 120 BPM -> 500000 us per quarter = 0x07 0xA1 0x20.
	assert.True(t, bytes.Contains(data, []byte{0xFF, 0x51, 0x03, 0x07, 0xA1, 0x20}), "tempo meta event")
	// 3/4 -> numerator 3, denominator 2^2, 24 clocks, 8 thirty-seconds.
	assert.True(t, bytes.Contains(data, []byte{0xFF, 0x58, 0x04, 0x03, 0x02, 0x18, 0x08}), "time signature meta event")
}

func TestEmptyPatternProducesValidFile(t *testing.T) {
	data, err := Encode(testPattern(nil))
	require.NoError(t, err)

	s, err := smf.ReadFrom(bytes.NewReader(data))
	require.NoError(t, err, "a conforming reader must accept the empty file")
	require.Len(t, s.Tracks, 1)

	// Only tempo, time signature, and end-of-track remain.
	require.Len(t, s.Tracks[0], 3)
	assert.EqualValues(t, 480, s.Tracks[0][2].Delta, "end of track sits one quarter note out")
}

func TestEncodedEventsRoundTrip(t *testing.T) {
	notes := []models.Note{
		{Pitch: 48, Velocity: 100, StartBeats: 0, DurationBeats: 0.9},
		{Pitch: 52, Velocity: 80, StartBeats: 1, DurationBeats: 0.9},
		{Pitch: 55, Velocity: 80, StartBeats: 2.5, DurationBeats: 1.5},
	}
	data, err := Encode(testPattern(notes))
	require.NoError(t, err)

	s, err := smf.ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, s.Tracks, 1)

	type decoded struct {
		tick     uint32
		pitch    uint8
		velocity uint8
	}
	var ons, offs []decoded
	var tick uint32
	for _, ev := range s.Tracks[0] {
		tick += ev.Delta
		msg := []byte(ev.Message)
		if len(msg) < 3 {
			continue
		}
		switch {
		case msg[0] >= 0x90 && msg[0] <= 0x9F && msg[2] > 0:
			ons = append(ons, decoded{tick, msg[1], msg[2]})
		case msg[0] >= 0x80 && msg[0] <= 0x8F || (msg[0] >= 0x90 && msg[0] <= 0x9F && msg[2] == 0):
			offs = append(offs, decoded{tick, msg[1], 0})
		}
	}

	require.Len(t, ons, len(notes))
	require.Len(t, offs, len(notes))
	for i, note := range notes {
		assert.EqualValues(t, note.Pitch, ons[i].pitch)
		assert.EqualValues(t, note.Velocity, ons[i].velocity)
		assert.EqualValues(t, uint32(note.StartBeats*480+0.5), ons[i].tick, "note-on tick %d", i)
		assert.EqualValues(t, uint32((note.StartBeats+note.DurationBeats)*480+0.5), offs[i].tick, "note-off tick %d", i)
	}
}

func TestEventOrderingIsNonDecreasing(t *testing.T) {
	// Deliberately unsorted input: the encoder must order by absolute tick.
	notes := []models.Note{
		{Pitch: 60, Velocity: 90, StartBeats: 3, DurationBeats: 1},
		{Pitch: 64, Velocity: 90, StartBeats: 0, DurationBeats: 0.5},
		{Pitch: 67, Velocity: 90, StartBeats: 1.5, DurationBeats: 2},
	}
	data, err := Encode(testPattern(notes))
	require.NoError(t, err)

	s, err := smf.ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)

	var tick uint32
	previous := uint32(0)
	for _, ev := range s.Tracks[0] {
		tick += ev.Delta
		assert.GreaterOrEqual(t, tick, previous)
		previous = tick
	}
}

func TestNoteOffBeforeNoteOnAtEqualTick(t *testing.T) {
	// Back-to-back same pitch: the off at tick 480 must precede the next on,
	// otherwise the second note steals the first.
	notes := []models.Note{
		{Pitch: 60, Velocity: 100, StartBeats: 0, DurationBeats: 1},
		{Pitch: 60, Velocity: 100, StartBeats: 1, DurationBeats: 1},
	}
	data, err := Encode(testPattern(notes))
	require.NoError(t, err)

	s, err := smf.ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)

	var tick uint32
	var orderAt480 []byte
	for _, ev := range s.Tracks[0] {
		tick += ev.Delta
		msg := []byte(ev.Message)
		if tick == 480 && len(msg) == 3 {
			orderAt480 = append(orderAt480, msg[0]&0xF0)
		}
	}
	require.Len(t, orderAt480, 2)
	assert.EqualValues(t, 0x80, orderAt480[0], "note-off first at the shared tick")
	assert.EqualValues(t, 0x90, orderAt480[1], "note-on second at the shared tick")
}

func TestEncodeRejectsOutOfRangePitch(t *testing.T) {
	_, err := Encode(testPattern([]models.Note{{Pitch: 128, Velocity: 100, DurationBeats: 1}}))
	assert.Error(t, err)

	_, err = Encode(testPattern([]models.Note{{Pitch: -1, Velocity: 100, DurationBeats: 1}}))
	assert.Error(t, err)
}

func TestEncodeToBase64(t *testing.T) {
	pattern := testPattern([]models.Note{{Pitch: 60, Velocity: 100, StartBeats: 0, DurationBeats: 1}})

	raw, err := Encode(pattern)
	require.NoError(t, err)

	encoded, err := EncodeToBase64(pattern)
	require.NoError(t, err)

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}
