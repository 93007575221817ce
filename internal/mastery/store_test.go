package mastery

import (
	"context"
	"strconv"
	"sync"

	"github.com/example/yachay/pkg/models"
)

// memStore is an in-memory Store. Transactions work on copies and commit only
// when fn succeeds, so rollback behaviour matches the SQL store.
type memStore struct {
	mu       sync.Mutex
	entries  map[string]models.VocabularyEntry
	ledger   map[string]bool
	events   []models.AuditEvent
	mastered map[int64]int
	nextID   int64
	failWith error
}

func newMemStore() *memStore {
	return &memStore{
		entries:  map[string]models.VocabularyEntry{},
		ledger:   map[string]bool{},
		mastered: map[int64]int{},
	}
}

func entryKey(userID int64, word string) string {
	return strconv.FormatInt(userID, 10) + "|" + word
}

func (s *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:    s,
		entries:  map[string]models.VocabularyEntry{},
		ledger:   map[string]bool{},
		mastered: map[int64]int{},
	}
	if err := fn(tx); err != nil {
		return err
	}
	if s.failWith != nil {
		return s.failWith
	}
	for k, v := range tx.entries {
		s.entries[k] = v
	}
	for k := range tx.ledger {
		s.ledger[k] = true
	}
	for k, v := range tx.mastered {
		s.mastered[k] += v
	}
	s.events = append(s.events, tx.events...)
	return nil
}

func (s *memStore) put(e models.VocabularyEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e.ID = s.nextID
	s.entries[entryKey(e.UserID, e.WordKey)] = e
}

func (s *memStore) get(userID int64, word string) (models.VocabularyEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryKey(userID, word)]
	return e, ok
}

func (s *memStore) eventsOf(kind models.AuditKind) []models.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AuditEvent
	for _, ev := range s.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

type memTx struct {
	store    *memStore
	entries  map[string]models.VocabularyEntry
	ledger   map[string]bool
	events   []models.AuditEvent
	mastered map[int64]int
}

func (t *memTx) GetEntry(_ context.Context, userID int64, wordKey string) (*models.VocabularyEntry, error) {
	k := entryKey(userID, wordKey)
	if e, ok := t.entries[k]; ok {
		return &e, nil
	}
	if e, ok := t.store.entries[k]; ok {
		return &e, nil
	}
	return nil, nil
}

func (t *memTx) CreateEntry(_ context.Context, entry *models.VocabularyEntry) error {
	t.store.nextID++
	entry.ID = t.store.nextID
	t.entries[entryKey(entry.UserID, entry.WordKey)] = *entry
	return nil
}

func (t *memTx) SaveEntry(_ context.Context, entry *models.VocabularyEntry) error {
	t.entries[entryKey(entry.UserID, entry.WordKey)] = *entry
	return nil
}

func ledgerKey(userID int64, wordKey string, action models.AuditKind, day string) string {
	return entryKey(userID, wordKey) + "|" + string(action) + "|" + day
}

func (t *memTx) HasAction(_ context.Context, userID int64, wordKey string, action models.AuditKind, day string) (bool, error) {
	k := ledgerKey(userID, wordKey, action, day)
	return t.ledger[k] || t.store.ledger[k], nil
}

func (t *memTx) RecordAction(_ context.Context, userID int64, wordKey string, action models.AuditKind, day string) error {
	t.ledger[ledgerKey(userID, wordKey, action, day)] = true
	return nil
}

func (t *memTx) AppendEvent(_ context.Context, event *models.AuditEvent) error {
	t.events = append(t.events, *event)
	return nil
}

func (t *memTx) AddMasteredWord(_ context.Context, userID int64) error {
	t.mastered[userID]++
	return nil
}

// racingStore runs fn once against a transaction it throws away, lets
// concurrent commit competing work, then retries fn the way the SQL store
// does after a serialization failure.
type racingStore struct {
	*memStore
	concurrent func()
}

func (s *racingStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	if race := s.concurrent; race != nil {
		s.concurrent = nil
		lost := &memTx{
			store:    s.memStore,
			entries:  map[string]models.VocabularyEntry{},
			ledger:   map[string]bool{},
			mastered: map[int64]int{},
		}
		_ = fn(lost)
		race()
	}
	return s.memStore.InTx(ctx, fn)
}
