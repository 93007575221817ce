package progress

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/yachay/internal/database"
	"github.com/example/yachay/internal/mastery"
	"github.com/example/yachay/pkg/models"
)

const testUser int64 = 7

func newTestTracker(t *testing.T, now *time.Time) *Tracker {
	t.Helper()
	tr, _ := newTestTrackerWithDB(t, now)
	return tr
}

func newTestTrackerWithDB(t *testing.T, now *time.Time) (*Tracker, *sqlx.DB) {
	t.Helper()
	ctx := context.Background()
	db, err := database.Connect(ctx, database.Config{Driver: database.DriverSQLite, DSN: filepath.Join(t.TempDir(), "p.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.NewUserRepository(db).Upsert(ctx, &models.User{ID: testUser}))

	targets := database.Targets{Detection: 1, Practice: 2, Mastery: 1}
	return NewTracker(database.NewStore(db, nil), targets, WithClock(func() time.Time { return *now })), db
}

func TestTracker_CountsTowardsGoal(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	tr := newTestTracker(t, &now)
	ctx := context.Background()

	g, err := tr.Practiced(ctx, testUser, &mastery.Result{})
	require.NoError(t, err)
	assert.Equal(t, 1, g.WordsPracticed)
	assert.False(t, g.IsComplete())

	g, err = tr.Detected(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 1, g.WordsDetected)

	g, err = tr.Practiced(ctx, testUser, &mastery.Result{PreviousLevel: 4, CurrentLevel: 5, MasteryUpdated: true, NewlyMastered: true})
	require.NoError(t, err)
	assert.Equal(t, 2, g.WordsPracticed)
	assert.Equal(t, 1, g.WordsMastered)
	assert.True(t, g.IsComplete())

	now = now.Add(24 * time.Hour)
	g, err = tr.Today(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-11", g.Day)
	assert.Zero(t, g.WordsPracticed)
}

func TestTracker_RemasteredWordCountsAgain(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	tr, db := newTestTrackerWithDB(t, &now)
	ctx := context.Background()

	masteredAt := now.AddDate(0, 0, -20)
	require.NoError(t, database.NewVocabularyRepository(db).Create(ctx, &models.VocabularyEntry{
		UserID:             testUser,
		WordKey:            "wasi",
		DiscoveredVia:      models.ModeDetection,
		MasteryLevel:       4,
		ExercisesCompleted: 14,
		ExercisesCorrect:   12,
		FirstSeenAt:        now.AddDate(0, 0, -30),
		MasteredAt:         &masteredAt,
	}))

	eng := mastery.NewEngine(database.NewStore(db, nil), mastery.WithClock(func() time.Time { return now }))
	res, err := eng.RecordOutcome(ctx, testUser, "wasi", true, models.ModeDetection)
	require.NoError(t, err)
	require.Equal(t, 5, res.CurrentLevel)
	require.False(t, res.NewlyMastered)

	g, err := tr.Practiced(ctx, testUser, res)
	require.NoError(t, err)
	assert.Equal(t, 1, g.WordsMastered)

	g, err = tr.Practiced(ctx, testUser, &mastery.Result{PreviousLevel: 5, CurrentLevel: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, g.WordsMastered)
}

func TestTracker_Streak(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	tr := newTestTracker(t, &now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := tr.Detected(ctx, testUser)
		require.NoError(t, err)
		now = now.Add(24 * time.Hour)
	}
	p, err := tr.Profile(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 3, p.StreakDays)

	now = now.Add(48 * time.Hour)
	_, err = tr.Detected(ctx, testUser)
	require.NoError(t, err)
	p, err = tr.Profile(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 1, p.StreakDays)
	assert.Equal(t, 3, p.MaxStreak)
}

func TestAdvanceStreak(t *testing.T) {
	day := func(s string) *string { return &s }

	tests := []struct {
		name       string
		profile    models.Profile
		today      string
		changed    bool
		wantStreak int
		wantMax    int
	}{
		{"first activity", models.Profile{}, "2024-03-10", true, 1, 1},
		{"same day", models.Profile{StreakDays: 4, MaxStreak: 4, LastActivity: day("2024-03-10")}, "2024-03-10", false, 4, 4},
		{"next day", models.Profile{StreakDays: 4, MaxStreak: 4, LastActivity: day("2024-03-09")}, "2024-03-10", true, 5, 5},
		{"across month", models.Profile{StreakDays: 2, MaxStreak: 9, LastActivity: day("2024-02-29")}, "2024-03-01", true, 3, 9},
		{"gap", models.Profile{StreakDays: 6, MaxStreak: 6, LastActivity: day("2024-03-01")}, "2024-03-10", true, 1, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.profile
			assert.Equal(t, tt.changed, AdvanceStreak(&p, tt.today))
			assert.Equal(t, tt.wantStreak, p.StreakDays)
			assert.Equal(t, tt.wantMax, p.MaxStreak)
			require.NotNil(t, p.LastActivity)
			assert.Equal(t, tt.today, *p.LastActivity)
		})
	}
}
