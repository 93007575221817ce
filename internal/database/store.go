package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/example/yachay/internal/mastery"
	"github.com/example/yachay/pkg/models"
)

const maxTxAttempts = 3

// Store runs units of work in a transaction. Postgres transactions are
// serializable and retried on serialization failures.
type Store struct {
	db  *sqlx.DB
	log *zap.Logger
}

// NewStore wraps db
func NewStore(db *sqlx.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, log: log.Named("store")}
}

// DB returns the underlying handle
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// WithTx runs fn inside a transaction, committing when fn returns nil
func (s *Store) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	var opts *sql.TxOptions
	if isPostgres(s.db) {
		opts = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}

	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runTx(ctx, opts, fn)
		if err == nil || !retryable(err) || ctx.Err() != nil {
			return err
		}
		s.log.Debug("retrying transaction", zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(time.Duration(attempt) * 10 * time.Millisecond)
	}
	return err
}

func (s *Store) runTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, opts)
	if err != nil {
		return eris.Wrap(err, "failed to begin transaction")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// InTx implements mastery.Store
func (s *Store) InTx(ctx context.Context, fn func(tx mastery.Tx) error) error {
	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(newMasteryTx(tx))
	})
}

func retryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// serialization_failure, deadlock_detected
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// masteryTx adapts the repositories, bound to one transaction, to mastery.Tx
type masteryTx struct {
	vocabulary *VocabularyRepository
	ledger     *LedgerRepository
	audit      *AuditRepository
	profiles   *ProfileRepository
}

func newMasteryTx(tx *sqlx.Tx) *masteryTx {
	return &masteryTx{
		vocabulary: NewVocabularyRepository(tx),
		ledger:     NewLedgerRepository(tx),
		audit:      NewAuditRepository(tx),
		profiles:   NewProfileRepository(tx),
	}
}

func (t *masteryTx) GetEntry(ctx context.Context, userID int64, wordKey string) (*models.VocabularyEntry, error) {
	entry, err := t.vocabulary.GetForUpdate(ctx, userID, wordKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return entry, err
}

func (t *masteryTx) CreateEntry(ctx context.Context, entry *models.VocabularyEntry) error {
	if err := t.vocabulary.Create(ctx, entry); err != nil {
		return err
	}
	return t.profiles.AddWord(ctx, entry.UserID)
}

func (t *masteryTx) SaveEntry(ctx context.Context, entry *models.VocabularyEntry) error {
	return t.vocabulary.Save(ctx, entry)
}

func (t *masteryTx) HasAction(ctx context.Context, userID int64, wordKey string, action models.AuditKind, day string) (bool, error) {
	return t.ledger.Has(ctx, userID, wordKey, action, day)
}

func (t *masteryTx) RecordAction(ctx context.Context, userID int64, wordKey string, action models.AuditKind, day string) error {
	return t.ledger.Record(ctx, userID, wordKey, action, day)
}

func (t *masteryTx) AppendEvent(ctx context.Context, event *models.AuditEvent) error {
	return t.audit.Append(ctx, event)
}

func (t *masteryTx) AddMasteredWord(ctx context.Context, userID int64) error {
	return t.profiles.AddMasteredWord(ctx, userID)
}

var _ mastery.Store = (*Store)(nil)
