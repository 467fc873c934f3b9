package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Conceptual-Machines/magda-patterns/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRouter creates a minimal test router with just the endpoints we need
func setupTestRouter() *gin.Engine {
	cfg := config.Load()
	cfg.Environment = "test"

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", HealthCheck)

	patternHandler := NewPatternHandler(cfg)
	router.POST("/api/v1/patterns", patternHandler.GeneratePattern)
	router.GET("/api/v1/patterns/meta", patternHandler.GetPatternMeta)

	return router
}

func postPattern(t *testing.T, router *gin.Engine, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest("POST", "/api/v1/patterns", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestHealthCheck tests the health check endpoint
func TestHealthCheck(t *testing.T) {
	router := setupTestRouter()

	req, err := http.NewRequest("GET", "/health", nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err = json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)
	assert.Equal(t, "healthy", response["status"])
}

func TestGeneratePattern(t *testing.T) {
	router := setupTestRouter()

	w := postPattern(t, router, map[string]interface{}{
		"chord_progression": "C G Am F",
		"pattern_type":      "bass",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response PatternResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.Equal(t, "bass", response.Pattern.Name)
	assert.Len(t, response.Pattern.Notes, 16)
	assert.Equal(t, 4, response.Pattern.LengthBars)
	assert.InDelta(t, 120, response.Pattern.Tempo, 0.001)

	// Returned MIDI must be valid base64 starting with an SMF header
	data, err := base64.StdEncoding.DecodeString(response.MidiBase64)
	require.NoError(t, err)
	require.Greater(t, len(data), 14)
	assert.Equal(t, []byte("MThd"), data[:4])
}

func TestGeneratePatternSeedIsReproducible(t *testing.T) {
	router := setupTestRouter()

	body := map[string]interface{}{
		"chord_progression": "C G Am F",
		"pattern_type":      "melody",
		"seed":              42,
	}

	first := postPattern(t, router, body)
	second := postPattern(t, router, body)
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)

	var a, b PatternResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
	assert.Equal(t, a.Pattern.Notes, b.Pattern.Notes)
	assert.Equal(t, a.MidiBase64, b.MidiBase64)
}

func TestGeneratePatternValidation(t *testing.T) {
	router := setupTestRouter()

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing progression", map[string]interface{}{"pattern_type": "bass"}},
		{"missing pattern type", map[string]interface{}{"chord_progression": "C"}},
		{"invalid chord", map[string]interface{}{"chord_progression": "C H F", "pattern_type": "bass"}},
		{"unknown pattern type", map[string]interface{}{"chord_progression": "C", "pattern_type": "polka"}},
		{"unknown arpeggio style", map[string]interface{}{"chord_progression": "C", "pattern_type": "arpeggio", "arpeggio_style": "sideways"}},
		{"bad time signature", map[string]interface{}{"chord_progression": "C", "pattern_type": "bass", "time_signature": "4/5"}},
		{"negative tempo", map[string]interface{}{"chord_progression": "C", "pattern_type": "bass", "tempo": -10}},
		{"octave out of range", map[string]interface{}{"chord_progression": "Badd9", "pattern_type": "bass", "octave": 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postPattern(t, router, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestGetPatternMeta(t *testing.T) {
	router := setupTestRouter()

	req, err := http.NewRequest("GET", "/api/v1/patterns/meta", nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

	types, ok := response["pattern_types"].([]interface{})
	require.True(t, ok)
	assert.ElementsMatch(t, []interface{}{"bass", "arpeggio", "melody", "rhythm"}, types)

	styles, ok := response["arpeggio_styles"].([]interface{})
	require.True(t, ok)
	assert.ElementsMatch(t, []interface{}{"up", "down", "updown"}, styles)

	qualities, ok := response["chord_qualities"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "minor7", qualities["m7"])
}
