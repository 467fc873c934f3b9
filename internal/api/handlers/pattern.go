package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/Conceptual-Machines/magda-patterns/internal/config"
	"github.com/Conceptual-Machines/magda-patterns/internal/logger"
	"github.com/Conceptual-Machines/magda-patterns/internal/metrics"
	"github.com/Conceptual-Machines/magda-patterns/internal/midi"
	"github.com/Conceptual-Machines/magda-patterns/internal/models"
	"github.com/Conceptual-Machines/magda-patterns/internal/music"
	"github.com/gin-gonic/gin"
)

const (
	defaultKey           = "C"
	defaultTimeSignature = "4/4"
)

type PatternHandler struct {
	cfg           *config.Config
	sentryMetrics *metrics.SentryMetrics
}

func NewPatternHandler(cfg *config.Config) *PatternHandler {
	return &PatternHandler{
		cfg:           cfg,
		sentryMetrics: metrics.NewSentryMetrics(),
	}
}

type PatternRequest struct {
	ChordProgression string  `json:"chord_progression" binding:"required"` // Space-separated chord symbols, e.g. "C G Am F"
	PatternType      string  `json:"pattern_type" binding:"required"`      // bass, arpeggio, melody, rhythm
	ArpeggioStyle    string  `json:"arpeggio_style"`                       // up (default), down, updown
	Key              string  `json:"key"`
	Tempo            float64 `json:"tempo"`
	TimeSignature    string  `json:"time_signature"`
	Octave           *int    `json:"octave"` // Root octave for chord voicing
	Seed             *int64  `json:"seed"`   // Fixed seed for reproducible output
}

type PatternResponse struct {
	RequestID  string             `json:"request_id"`
	Pattern    models.MidiPattern `json:"pattern"`
	MidiBase64 string             `json:"midi_base64"`
}

// GeneratePattern builds a note pattern from a chord progression and returns
// it together with the base64-encoded MIDI file.
func (h *PatternHandler) GeneratePattern(c *gin.Context) {
	var req PatternRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Apply defaults for optional fields
	if req.Key == "" {
		req.Key = defaultKey
	}
	if req.Tempo == 0 {
		req.Tempo = h.cfg.DefaultTempo
	}
	if req.TimeSignature == "" {
		req.TimeSignature = defaultTimeSignature
	}
	octave := h.cfg.DefaultOctave
	if req.Octave != nil {
		octave = *req.Octave
	}

	start := time.Now()

	prog, err := music.ParseProgression(req.ChordProgression, req.Key, req.Tempo, req.TimeSignature, octave)
	if err != nil {
		// Bad chords, pitch overflow, tempo, and time signature problems
		// are all client errors
		fields := logger.Fields{
			"request_id": c.GetString("request_id"),
			"error":      err.Error(),
		}
		if errors.Is(err, music.ErrInvalidChord) {
			fields["reason"] = "invalid_chord"
		} else if errors.Is(err, music.ErrPitchRange) {
			fields["reason"] = "pitch_range"
		}
		logger.Warn("Progression rejected", fields)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      err.Error(),
			"request_id": c.GetString("request_id"),
		})
		return
	}

	generator := music.NewPatternGenerator()
	if req.Seed != nil {
		generator = music.NewSeededPatternGenerator(*req.Seed)
	}

	pattern, err := generator.Generate(prog, music.PatternType(req.PatternType), music.ArpeggioStyle(req.ArpeggioStyle))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      err.Error(),
			"request_id": c.GetString("request_id"),
		})
		return
	}

	midiBase64, err := midi.EncodeToBase64(pattern)
	if err != nil {
		logger.Error("MIDI encoding failed", err, logger.Fields{
			"request_id":   c.GetString("request_id"),
			"pattern_type": req.PatternType,
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Failed to encode MIDI file",
			"request_id": c.GetString("request_id"),
		})
		return
	}

	duration := time.Since(start)
	logger.LogPatternRequest(req.PatternType, len(prog.Chords), len(pattern.Notes), duration, logger.Fields{
		"request_id": c.GetString("request_id"),
	})
	h.sentryMetrics.RecordPatternGeneration(c.Request.Context(), req.PatternType, len(prog.Chords), len(pattern.Notes), duration)

	c.JSON(http.StatusOK, PatternResponse{
		RequestID:  c.GetString("request_id"),
		Pattern:    pattern,
		MidiBase64: midiBase64,
	})
}

// GetPatternMeta lists the pattern types, arpeggio styles, and chord quality
// spellings the generator accepts, so clients can populate pickers without
// hardcoding them.
func (h *PatternHandler) GetPatternMeta(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"pattern_types":   music.PatternTypes(),
		"arpeggio_styles": music.ArpeggioStyles(),
		"chord_qualities": music.QualityAliases(),
		"defaults": gin.H{
			"key":            defaultKey,
			"tempo":          h.cfg.DefaultTempo,
			"time_signature": defaultTimeSignature,
			"octave":         h.cfg.DefaultOctave,
		},
	})
}
