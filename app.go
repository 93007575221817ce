package main

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/example/yachay/internal/catalog"
	"github.com/example/yachay/internal/config"
	"github.com/example/yachay/internal/database"
	"github.com/example/yachay/internal/detection"
	"github.com/example/yachay/internal/gcp"
	"github.com/example/yachay/internal/mastery"
	"github.com/example/yachay/internal/metrics"
	"github.com/example/yachay/internal/progress"
	"github.com/example/yachay/internal/session"
	"github.com/example/yachay/internal/speech"
)

// app holds the wired services shared by every command
type app struct {
	db        *sqlx.DB
	store     *database.Store
	catalog   *catalog.Catalog
	engine    *mastery.Engine
	tracker   *progress.Tracker
	sessions  *session.Manager
	detection *detection.Service
	judge     *speech.Judge
	metrics   *metrics.Metrics

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &app{db: db, closers: []func() error{db.Close}}

	loc, err := cfg.Mastery.Location()
	if err != nil {
		a.Close()
		return nil, err
	}

	var cache catalog.Cache
	if cfg.Redis.Addr != "" {
		rdb, err := catalog.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		cache = catalog.NewRedisCache(rdb, cfg.Redis.TTL())
		log.Info("translation cache on redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		cache = catalog.NewMemoryCache(cfg.Redis.TTL())
	}

	a.metrics = metrics.New(prometheus.NewRegistry())
	a.store = database.NewStore(db, log)
	a.catalog = catalog.New(db, cache, log)
	a.engine = mastery.NewEngine(a.store,
		mastery.WithLocation(loc),
		mastery.WithLogger(log),
		mastery.WithObserver(a.metrics))
	a.tracker = progress.NewTracker(a.store, cfg.Goals,
		progress.WithLocation(loc),
		progress.WithLogger(log))
	a.sessions = session.NewManager(a.store, a.engine, a.tracker,
		session.WithLogger(log),
		session.WithRecorder(a.metrics))

	opts := gcp.ClientOptions(cfg.GCP.Credentials)
	vision := detection.NewVisionDetector(opts...)
	transcriber := speech.NewGCPTranscriber(cfg.GCP.LanguageCode, opts...)
	a.closers = append(a.closers, vision.Close, transcriber.Close)

	a.detection = detection.NewService(vision, a.catalog, a.engine, a.tracker, a.store,
		detection.WithMinConfidence(cfg.GCP.MinScore),
		detection.WithRecorder(a.metrics),
		detection.WithLogger(log))
	a.judge = speech.NewJudge(transcriber, log)
	return a, nil
}

// Close releases clients in reverse order of creation
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			zap.L().Warn("close failed", zap.Error(err))
		}
	}
}
