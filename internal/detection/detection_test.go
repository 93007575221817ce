package detection

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/yachay/internal/catalog"
	"github.com/example/yachay/internal/database"
	"github.com/example/yachay/internal/mastery"
	"github.com/example/yachay/internal/progress"
	"github.com/example/yachay/pkg/models"
)

const testUser int64 = 21

type fakeDetector struct {
	found []Detection
	err   error
}

func (f *fakeDetector) Detect(context.Context, []byte) ([]Detection, error) {
	return f.found, f.err
}

type fakeRecorder struct{ results []string }

func (f *fakeRecorder) DetectionFinished(result string) {
	f.results = append(f.results, result)
}

type fixture struct {
	svc      *Service
	detector *fakeDetector
	rec      *fakeRecorder
	store    *database.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := database.Connect(ctx, database.Config{Driver: database.DriverSQLite, DSN: filepath.Join(t.TempDir(), "d.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.NewUserRepository(db).Upsert(ctx, &models.User{ID: testUser}))

	cat := catalog.New(db, catalog.NewMemoryCache(0), nil)
	for _, tr := range []models.Translation{
		{Label: "dog", Spanish: "perro", Quechua: "allqu"},
		{Label: "cat", Spanish: "gato", Quechua: "michi"},
		{Label: "person", Spanish: "persona", Quechua: "runa"},
	} {
		_, err := cat.Save(ctx, &tr)
		require.NoError(t, err)
	}

	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := database.NewStore(db, nil)
	engine := mastery.NewEngine(store, mastery.WithClock(clock))
	tracker := progress.NewTracker(store, database.Targets{Detection: 2, Practice: 1, Mastery: 1}, progress.WithClock(clock))

	f := &fixture{detector: &fakeDetector{}, rec: &fakeRecorder{}, store: store}
	f.svc = NewService(f.detector, cat, engine, tracker, store, WithRecorder(f.rec), WithClock(clock))
	return f
}

func TestDetect_AddsMostConfidentTranslatedObject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.detector.found = []Detection{
		{Label: "Cat", Confidence: 0.61},
		{Label: "Spaceship", Confidence: 0.99},
		{Label: "Dog", Confidence: 0.87},
		{Label: "Dog", Confidence: 0.55},
		{Label: "Person", Confidence: 0.2},
	}

	res, err := f.svc.Detect(ctx, testUser, []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "allqu", res.Primary.Translation.Quechua)
	assert.Equal(t, 0.87, res.Primary.Confidence)
	require.Len(t, res.Secondary, 1)
	assert.Equal(t, "michi", res.Secondary[0].Translation.Quechua)

	assert.True(t, res.Created)
	assert.Equal(t, "allqu", res.Entry.WordKey)
	assert.Equal(t, models.ModeDetection, res.Entry.DiscoveredVia)
	assert.Equal(t, 1, res.Entry.MasteryLevel)
	assert.Equal(t, 1, res.Entry.TimesDetected)
	assert.Equal(t, "perro", res.Entry.GlossWord)
	require.NotNil(t, res.Goal)
	assert.Equal(t, 1, res.Goal.WordsDetected)

	events, err := database.NewAuditRepository(f.store.DB()).List(ctx, testUser, models.KindDetectionSession, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	var payload models.DetectionPayload
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, "allqu", payload.Primary.Quechua)
	assert.True(t, payload.AddedToVocabulary)
	require.Len(t, payload.Secondary, 1)

	// a second sighting bumps the counter instead of adding
	res, err = f.svc.Detect(ctx, testUser, []byte("jpeg"))
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, 2, res.Entry.TimesDetected)

	assert.Equal(t, []string{"added", "seen"}, f.rec.results)
}

func TestDetect_NothingTranslatable(t *testing.T) {
	f := newFixture(t)
	f.detector.found = []Detection{
		{Label: "Spaceship", Confidence: 0.9},
		{Label: "Dog", Confidence: 0.1},
	}

	_, err := f.svc.Detect(context.Background(), testUser, []byte("jpeg"))
	assert.True(t, errors.Is(err, ErrNothingDetected))
	assert.Equal(t, []string{"untranslated"}, f.rec.results)
}

func TestDetect_DetectorError(t *testing.T) {
	f := newFixture(t)
	f.detector.err = errors.New("quota exceeded")

	_, err := f.svc.Detect(context.Background(), testUser, []byte("jpeg"))
	assert.EqualError(t, err, "quota exceeded")
	assert.Equal(t, []string{"error"}, f.rec.results)
}
