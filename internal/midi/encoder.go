// Package midi serializes generated note patterns into Standard MIDI File
// (format 0) bytes. The byte layout is produced by hand so the output is
// bit-exact: header chunk, tempo and time-signature meta events, sorted
// note events with variable-length delta times, end-of-track marker.
package midi

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
	"sort"
	"strconv"
	"strings"

	"github.com/Conceptual-Machines/magda-patterns/internal/models"
)

// DefaultResolution is the encoder's time resolution in pulses (ticks) per
// quarter note.
const DefaultResolution = 480

const defaultTempo = 120.0

// chunkWriter is a small append-only byte writer for SMF chunks. It keeps
// endianness and variable-length encoding in one place, away from the event
// construction logic.
type chunkWriter struct {
	buf bytes.Buffer
}

func (w *chunkWriter) writeTag(tag string) {
	w.buf.WriteString(tag)
}

func (w *chunkWriter) writeUint16(v uint16) {
	binary.Write(&w.buf, binary.BigEndian, v) //nolint:errcheck // bytes.Buffer never fails
}

func (w *chunkWriter) writeUint32(v uint32) {
	binary.Write(&w.buf, binary.BigEndian, v) //nolint:errcheck // bytes.Buffer never fails
}

func (w *chunkWriter) writeBytes(b []byte) {
	w.buf.Write(b)
}

func (w *chunkWriter) writeVarLen(v uint32) {
	w.buf.Write(encodeVarLen(v))
}

func (w *chunkWriter) bytes() []byte {
	return w.buf.Bytes()
}

// encodeVarLen encodes a MIDI variable-length quantity: the value split into
// 7-bit groups, most significant group first, continuation bit set on every
// group except the last.
func encodeVarLen(v uint32) []byte {
	if v < 0x80 {
		return []byte{byte(v)}
	}
	var out [5]byte
	n := 0
	for tmp := v; tmp > 0; tmp >>= 7 {
		n++
	}
	for i := n - 1; i >= 0; i-- {
		b := byte((v >> (uint(i) * 7)) & 0x7F)
		if i > 0 {
			b |= 0x80
		}
		out[n-1-i] = b
	}
	return out[:n]
}

// decodeVarLen reads one variable-length quantity and returns it along with
// the number of bytes consumed.
func decodeVarLen(data []byte) (uint32, int) {
	var v uint32
	for i, b := range data {
		v = v<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			return v, i + 1
		}
	}
	return v, len(data)
}

type trackEvent struct {
	tick uint32
	data []byte
	off  bool
}

// Encode serializes a pattern into a complete single-track SMF byte buffer.
// An empty pattern still produces a structurally valid file holding only the
// tempo, time-signature, and end-of-track meta events.
func Encode(pattern models.MidiPattern) ([]byte, error) {
	tempo := pattern.Tempo
	if tempo <= 0 {
		tempo = defaultTempo
	}

	events := []trackEvent{
		{tick: 0, data: tempoEvent(tempo)},
		{tick: 0, data: timeSignatureEvent(pattern.TimeSignature)},
	}
	for _, note := range pattern.Notes {
		if note.Pitch < 0 || note.Pitch > 127 {
			return nil, fmt.Errorf("note pitch %d out of MIDI range", note.Pitch)
		}
		channel := byte(note.Channel & 0x0F)
		velocity := byte(clamp(note.Velocity, 0, 127))
		onTick := beatsToTicks(note.StartBeats)
		offTick := beatsToTicks(note.StartBeats + note.DurationBeats)
		events = append(events,
			trackEvent{tick: onTick, data: []byte{0x90 | channel, byte(note.Pitch), velocity}},
			trackEvent{tick: offTick, data: []byte{0x80 | channel, byte(note.Pitch), 0}, off: true},
		)
	}

	// Stable ascending sort by absolute tick; note-offs land ahead of
	// note-ons at equal ticks so a repeated pitch never steals a note
	// that is still sounding.
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].off && !events[j].off
	})

	var track chunkWriter
	var lastTick uint32
	for _, ev := range events {
		track.writeVarLen(ev.tick - lastTick)
		track.writeBytes(ev.data)
		lastTick = ev.tick
	}
	// End of track one quarter note past the last event.
	track.writeVarLen(DefaultResolution)
	track.writeBytes([]byte{0xFF, 0x2F, 0x00})

	var file chunkWriter
	file.writeTag("MThd")
	file.writeUint32(6)
	file.writeUint16(0) // format 0, single track
	file.writeUint16(1)
	file.writeUint16(DefaultResolution)
	file.writeTag("MTrk")
	file.writeUint32(uint32(track.buf.Len()))
	file.writeBytes(track.bytes())
	return file.bytes(), nil
}

// EncodeToBase64 encodes a pattern and wraps the bytes in standard base64,
// the text-safe form handed to API callers.
func EncodeToBase64(pattern models.MidiPattern) (string, error) {
	data, err := Encode(pattern)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func beatsToTicks(beats float64) uint32 {
	return uint32(math.Round(beats * DefaultResolution))
}

// tempoEvent builds the FF 51 03 meta event carrying microseconds per
// quarter note as three big-endian bytes.
func tempoEvent(bpm float64) []byte {
	usPerQuarter := uint32(60000000 / bpm)
	return []byte{
		0xFF, 0x51, 0x03,
		byte(usPerQuarter >> 16),
		byte(usPerQuarter >> 8),
		byte(usPerQuarter),
	}
}

// timeSignatureEvent builds the FF 58 04 meta event. The denominator is
// encoded as a power of two; unparsable signatures fall back to 4/4 so the
// file stays well formed.
func timeSignatureEvent(ts string) []byte {
	numerator, denominator := 4, 4
	if parts := strings.Split(ts, "/"); len(parts) == 2 {
		if n, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil && n > 0 && n < 256 {
			numerator = n
		}
		if d, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil && d > 0 && d&(d-1) == 0 {
			denominator = d
		}
	}
	return []byte{
		0xFF, 0x58, 0x04,
		byte(numerator),
		byte(bits.TrailingZeros(uint(denominator))),
		24, 8,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
