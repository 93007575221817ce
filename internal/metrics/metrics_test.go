package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/yachay/internal/mastery"
	"github.com/example/yachay/pkg/models"
)

var _ mastery.Observer = (*Metrics)(nil)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.OutcomeRecorded(models.ModePractice, true)
	m.OutcomeRecorded(models.ModePractice, true)
	m.OutcomeRecorded(models.ModeDetection, false)
	m.Degraded(models.ModePractice, mastery.ReasonAbandonment)
	m.Abandoned(models.ModePractice, true)
	m.Mastered(models.ModeDetection)
	m.DetectionFinished("added")
	m.SessionEnded(models.ModePractice, models.SessionCompleted)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("practice", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("detection", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Degradations.WithLabelValues("practice", "abandonment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Abandonments.WithLabelValues("practice", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WordsMastered.WithLabelValues("detection")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Detections.WithLabelValues("added")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsEnded.WithLabelValues("practice", "completed")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Mastered(models.ModePractice)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `yachay_mastery_words_mastered_total{mode="practice"} 1`))
}
