// Package detection turns photos into vocabulary: objects found in an image
// are translated through the catalog and the best one joins the learner's
// vocabulary.
package detection

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/example/yachay/internal/catalog"
	"github.com/example/yachay/internal/database"
	"github.com/example/yachay/internal/mastery"
	"github.com/example/yachay/internal/progress"
	"github.com/example/yachay/pkg/models"
)

// DefaultMinConfidence drops detections the model is unsure about
const DefaultMinConfidence = 0.25

// ErrNothingDetected is returned when no translatable object was found
var ErrNothingDetected = eris.New("detection: no known object in image")

// Box is a bounding rectangle in coordinates normalized to [0, 1]
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Detection is one object found by a Detector
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// Detector finds objects in an image
type Detector interface {
	Detect(ctx context.Context, image []byte) ([]Detection, error)
}

// Catalog translates detector labels
type Catalog interface {
	Lookup(ctx context.Context, label string) (*models.Translation, error)
}

// Recorder counts detection results
type Recorder interface {
	DetectionFinished(result string)
}

type nopRecorder struct{}

func (nopRecorder) DetectionFinished(string) {}

// Object is a detection with its translation
type Object struct {
	Detection
	Translation models.Translation
}

// Result is what one photo produced
type Result struct {
	Primary   Object
	Secondary []Object
	Entry     *models.VocabularyEntry
	// Created is true when the primary word is new to the learner
	Created bool
	// Goal is nil when the daily goal could not be updated
	Goal *models.DailyGoal
}

// Service runs detections for learners
type Service struct {
	detector      Detector
	catalog       Catalog
	engine        *mastery.Engine
	tracker       *progress.Tracker
	store         *database.Store
	minConfidence float64
	rec           Recorder
	now           func() time.Time
	log           *zap.Logger
}

// Option configures a Service
type Option func(*Service)

// WithMinConfidence overrides DefaultMinConfidence
func WithMinConfidence(v float64) Option {
	return func(s *Service) {
		if v > 0 {
			s.minConfidence = v
		}
	}
}

// WithRecorder registers a result recorder
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.rec = r
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// NewService creates a detection service
func NewService(detector Detector, cat Catalog, engine *mastery.Engine, tracker *progress.Tracker, store *database.Store, opts ...Option) *Service {
	s := &Service{
		detector:      detector,
		catalog:       cat,
		engine:        engine,
		tracker:       tracker,
		store:         store,
		minConfidence: DefaultMinConfidence,
		rec:           nopRecorder{},
		now:           time.Now,
		log:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("detection")
	return s
}

// Detect finds objects in image and adds the most confident translated one
// to the learner's vocabulary
func (s *Service) Detect(ctx context.Context, userID int64, image []byte) (*Result, error) {
	found, err := s.detector.Detect(ctx, image)
	if err != nil {
		s.rec.DetectionFinished("error")
		return nil, err
	}

	objects, err := s.translate(ctx, found)
	if err != nil {
		s.rec.DetectionFinished("error")
		return nil, err
	}
	if len(objects) == 0 {
		s.rec.DetectionFinished("untranslated")
		s.log.Debug("nothing translatable", zap.Int64("user_id", userID), zap.Int("detections", len(found)))
		return nil, ErrNothingDetected
	}

	res := &Result{Primary: objects[0], Secondary: objects[1:]}
	primary := res.Primary.Translation
	res.Entry, res.Created, err = s.engine.EnsureEntry(ctx, userID, mastery.WordInfo{
		Word:        primary.Quechua,
		SourceLabel: primary.Label,
		GlossWord:   primary.Spanish,
	}, models.ModeDetection)
	if err != nil {
		s.rec.DetectionFinished("error")
		return nil, err
	}

	if err := s.appendEvent(ctx, userID, res); err != nil {
		s.rec.DetectionFinished("error")
		return nil, err
	}

	res.Goal, err = s.tracker.Detected(ctx, userID)
	if err != nil {
		s.log.Warn("failed to update daily goal", zap.Int64("user_id", userID), zap.Error(err))
	}

	if res.Created {
		s.rec.DetectionFinished("added")
	} else {
		s.rec.DetectionFinished("seen")
	}
	s.log.Info("object detected",
		zap.Int64("user_id", userID),
		zap.String("label", primary.Label),
		zap.String("word", res.Entry.WordKey),
		zap.Float64("confidence", res.Primary.Confidence),
		zap.Bool("created", res.Created))
	return res, nil
}

// translate keeps confident detections with a catalog entry, most confident
// first and one per label
func (s *Service) translate(ctx context.Context, found []Detection) ([]Object, error) {
	sorted := make([]Detection, 0, len(found))
	for _, d := range found {
		if d.Confidence >= s.minConfidence {
			sorted = append(sorted, d)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	seen := map[string]bool{}
	var out []Object
	for _, d := range sorted {
		label := catalog.NormalizeLabel(d.Label)
		if seen[label] {
			continue
		}
		seen[label] = true

		t, err := s.catalog.Lookup(ctx, label)
		if errors.Is(err, catalog.ErrUnknownLabel) {
			s.log.Debug("label not in catalog", zap.String("label", label))
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Object{Detection: d, Translation: *t})
	}
	return out, nil
}

func (s *Service) appendEvent(ctx context.Context, userID int64, res *Result) error {
	payload := models.DetectionPayload{
		Primary:           detectedObject(res.Primary),
		AddedToVocabulary: res.Created,
	}
	for _, o := range res.Secondary {
		payload.Secondary = append(payload.Secondary, detectedObject(o))
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "detection: encode event payload")
	}

	event := &models.AuditEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      models.KindDetectionSession,
		WordKey:   res.Entry.WordKey,
		Mode:      models.ModeDetection,
		Payload:   raw,
		CreatedAt: s.now(),
	}
	if err := database.NewAuditRepository(s.store.DB()).Append(ctx, event); err != nil {
		return eris.Wrap(err, "detection: record session")
	}
	return nil
}

func detectedObject(o Object) models.DetectedObject {
	return models.DetectedObject{
		Label:      o.Translation.Label,
		Spanish:    o.Translation.Spanish,
		Quechua:    o.Translation.Quechua,
		Confidence: o.Confidence,
	}
}
