package mastery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/yachay/pkg/models"
)

func TestSummarize(t *testing.T) {
	entries := []models.VocabularyEntry{
		{WordKey: "a", MasteryLevel: 0},
		{WordKey: "b", MasteryLevel: 1},
		{WordKey: "c", MasteryLevel: 2},
		{WordKey: "d", MasteryLevel: 3},
		{WordKey: "e", MasteryLevel: 5},
		{WordKey: "f", MasteryLevel: 5},
	}

	s := Summarize(entries)
	assert.Equal(t, 6, s.TotalWords)
	assert.Equal(t, 2, s.MasteredWords)
	assert.Equal(t, 2, s.InProgress)
	assert.Equal(t, 3, s.NeedsPractice)
	assert.Equal(t, [6]int{1, 1, 1, 1, 0, 2}, s.Stars)
}

func TestSuggestPractice(t *testing.T) {
	base := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	older, newer := base, base.Add(time.Hour)

	entries := []models.VocabularyEntry{
		{WordKey: "mastered", MasteryLevel: 5},
		{WordKey: "three", MasteryLevel: 3},
		{WordKey: "one-old", MasteryLevel: 1, LastPracticedAt: &older},
		{WordKey: "one-new", MasteryLevel: 1, LastPracticedAt: &newer},
		{WordKey: "one-never", MasteryLevel: 1},
	}

	got := SuggestPractice(entries, 4)
	require.Len(t, got, 4)
	keys := make([]string, len(got))
	for i, e := range got {
		keys[i] = e.WordKey
	}
	assert.Equal(t, []string{"one-never", "one-new", "one-old", "three"}, keys)
	assert.Len(t, SuggestPractice(entries, 0), 4)
}

func TestPreviewAbandonment(t *testing.T) {
	eng, _, c := newTestEngine(t)

	cases := []struct {
		name  string
		entry models.VocabularyEntry
		mode  models.Mode
		want  bool
		level int
	}{
		{
			name:  "practice weight reaches limit",
			entry: models.VocabularyEntry{MasteryLevel: 3, ExercisesCompleted: 6, FirstSeenAt: c.t.AddDate(0, 0, -5)},
			mode:  models.ModePractice,
			want:  true,
			level: 2,
		},
		{
			name:  "detection needs more failures",
			entry: models.VocabularyEntry{MasteryLevel: 3, ExercisesCompleted: 6, FirstSeenAt: c.t.AddDate(0, 0, -5)},
			mode:  models.ModeDetection,
			want:  false,
			level: 3,
		},
		{
			name:  "recent word",
			entry: models.VocabularyEntry{MasteryLevel: 3, ExercisesCompleted: 6, ConsecutiveFailures: 4, FirstSeenAt: c.t},
			mode:  models.ModePractice,
			want:  false,
			level: 3,
		},
		{
			name:  "level one is never degraded",
			entry: models.VocabularyEntry{MasteryLevel: 1, ExercisesCompleted: 9, ConsecutiveFailures: 4, FirstSeenAt: c.t.AddDate(0, 0, -9)},
			mode:  models.ModePractice,
			want:  false,
			level: 1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := eng.PreviewAbandonment(&tc.entry, tc.mode)
			assert.Equal(t, tc.want, p.WouldDegrade)
			assert.Equal(t, tc.level, p.PotentialLevel)
		})
	}
}
