package mastery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/example/yachay/pkg/models"
)

func TestPromotionLevel(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name    string
		rules   Rules
		current int
		correct int
		rate    float64
		want    int
	}{
		{"detection below first threshold", p.Detection, 1, 1, 1, 1},
		{"detection level 2", p.Detection, 1, 2, 1, 2},
		{"detection skips to highest met", p.Detection, 1, 8, 1, 4},
		{"detection mastery", p.Detection, 4, 12, 0.75, 5},
		{"detection mastery rate gate", p.Detection, 4, 12, 0.74, 4},
		{"practice level 4", p.Practice, 3, 12, 0.5, 4},
		{"practice mastery", p.Practice, 4, 18, 0.9, 5},
		{"never lowers", p.Practice, 4, 3, 0.1, 4},
		{"degraded word regains every met level at once", p.Detection, 2, 9, 0.8, 4},
		{"degraded practice word back to mastery", p.Practice, 3, 19, 0.9, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rules.PromotionLevel(tt.current, tt.correct, tt.rate))
		})
	}
}

func TestPolicyFloor(t *testing.T) {
	p := DefaultPolicy()

	assert.Equal(t, 1, p.floor(&models.VocabularyEntry{DiscoveredVia: models.ModeDetection}, models.ModePractice))
	assert.Equal(t, 0, p.floor(&models.VocabularyEntry{DiscoveredVia: models.ModePractice}, models.ModePractice))
	assert.Equal(t, 1, p.floor(&models.VocabularyEntry{DiscoveredVia: models.ModePractice}, models.ModeDetection))
}

func TestNormalizeWord(t *testing.T) {
	tests := map[string]string{
		"Ñawi":         "ñawi",
		"  michi  ":    "michi",
		"Allqu\t Kuna": "allqu kuna",
		"n\u0303awi":   "ñawi",
		"":             "",
		"   ":          "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeWord(in), in)
	}
}

func TestDaysBetween(t *testing.T) {
	loc := time.UTC
	a := time.Date(2024, 3, 9, 23, 59, 0, 0, loc)
	b := time.Date(2024, 3, 10, 0, 1, 0, 0, loc)

	assert.Equal(t, 1, daysBetween(a, b, loc))
	assert.Equal(t, 0, daysBetween(b, b, loc))
	assert.Equal(t, 5, daysBetween(a, a.AddDate(0, 0, 5), loc))
	assert.Equal(t, "2024-03-10", Day(b, loc))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("detection")
	assert.NoError(t, err)
	assert.Equal(t, models.ModeDetection, m)

	_, err = ParseMode("")
	assert.ErrorIs(t, err, ErrInvalidMode)
}
