package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/yachay/internal/config"
	"github.com/example/yachay/internal/database"
	"github.com/example/yachay/internal/progress"
	"github.com/example/yachay/pkg/models"
)

type fakeNotifier struct {
	sent []int64
	fail map[int64]bool
}

func (f *fakeNotifier) SendReminder(_ context.Context, userID int64, goal *models.DailyGoal) error {
	if f.fail[userID] {
		return errors.New("blocked by user")
	}
	f.sent = append(f.sent, userID)
	return nil
}

type fixture struct {
	sched    *Scheduler
	tracker  *progress.Tracker
	store    *database.Store
	notifier *fakeNotifier
	now      *time.Time
}

func newFixture(t *testing.T, users ...int64) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := database.Connect(ctx, database.Config{Driver: database.DriverSQLite, DSN: filepath.Join(t.TempDir(), "sched.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	for _, id := range users {
		require.NoError(t, database.NewUserRepository(db).Upsert(ctx, &models.User{ID: id}))
	}

	now := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := database.NewStore(db, nil)
	tracker := progress.NewTracker(store, database.Targets{Detection: 1, Practice: 0, Mastery: 0}, progress.WithClock(clock))
	notifier := &fakeNotifier{fail: map[int64]bool{}}
	cfg := config.SchedulerConfig{Enabled: true, ReminderStartHour: 9, ReminderEndHour: 21, LedgerRetentionDays: 30}

	return &fixture{
		sched:    New(store, tracker, notifier, cfg, WithClock(clock)),
		tracker:  tracker,
		store:    store,
		notifier: notifier,
		now:      &now,
	}
}

func TestCheckReminders(t *testing.T) {
	f := newFixture(t, 1, 2, 3)
	ctx := context.Background()

	// user 2 already met the goal
	_, err := f.tracker.Detected(ctx, 2)
	require.NoError(t, err)
	f.notifier.fail[3] = true

	sent, err := f.sched.CheckReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []int64{1}, f.notifier.sent)
}

func TestCheckReminders_OutsideWindow(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	for _, h := range []int{3, 8, 21, 23} {
		*f.now = time.Date(2024, 7, 1, h, 0, 0, 0, time.UTC)
		sent, err := f.sched.CheckReminders(ctx)
		require.NoError(t, err)
		assert.Zero(t, sent, "hour %d", h)
	}
	assert.Empty(t, f.notifier.sent)
}

func TestPruneLedger(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	ledger := database.NewLedgerRepository(f.store.DB())
	for _, day := range []string{"2024-05-01", "2024-05-31", "2024-06-01", "2024-06-30"} {
		require.NoError(t, ledger.Record(ctx, 1, "allqu", models.KindMasteryDecreased, day))
	}

	n, err := f.sched.PruneLedger(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	has, err := ledger.Has(ctx, 1, "allqu", models.KindMasteryDecreased, "2024-06-01")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sched.Start())
	f.sched.Stop()
}
