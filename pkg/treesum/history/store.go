package history

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// ErrNotFound is returned when no record has the requested ID.
var ErrNotFound = errors.New("history entry not found")

// keyPrefix namespaces record keys inside the database.
var keyPrefix = []byte("run/")

// Store wraps Badger for run history.
type Store struct {
	db *badger.DB
	mu sync.Mutex

	// now is replaceable in tests.
	now func() time.Time
}

// Open opens or creates a history store at the given directory.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history path cannot be empty")
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable badger logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening history store: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Log assigns an ID and timestamp to rec and persists it.
func (s *Store) Log(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Timestamp = s.now().UTC()
	rec.ID = generateID(rec.Operation, rec.Timestamp)

	value, err := rec.Encode()
	if err != nil {
		return fmt.Errorf("encoding history entry: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(makeKey(rec.ID), value)
	})
}

// Get retrieves a record by ID.
func (s *Store) Get(id string) (*Record, error) {
	if id == "" {
		return nil, errors.New("entry ID cannot be empty")
	}

	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(rec.Decode)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns records sorted by timestamp descending (newest first).
// If limit is 0 or negative, all records are returned.
func (s *Store) List(limit int) ([]Record, error) {
	records := []Record{}

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(keyPrefix); it.ValidForPrefix(keyPrefix); it.Next() {
			var rec Record
			if err := it.Item().Value(rec.Decode); err != nil {
				// Skip entries that can't be parsed
				continue
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}

	slices.SortFunc(records, func(a, b Record) int {
		return b.Timestamp.Compare(a.Timestamp)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Cleanup removes records older than retentionDays and returns how many
// were removed.
func (s *Store) Cleanup(retentionDays int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().AddDate(0, 0, -retentionDays)
	removed := 0

	err := s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		var stale [][]byte
		for it.Seek(keyPrefix); it.ValidForPrefix(keyPrefix); it.Next() {
			item := it.Item()
			var rec Record
			if err := item.Value(rec.Decode); err != nil {
				continue
			}
			if rec.Timestamp.Before(cutoff) {
				stale = append(stale, item.KeyCopy(nil))
			}
		}

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cleaning history: %w", err)
	}
	return removed, nil
}

func makeKey(id string) []byte {
	return append(slices.Clone(keyPrefix), id...)
}

// generateID creates a unique ID like "export-2024-06-15T10-30-00-1a2b3c4d".
func generateID(op Operation, ts time.Time) string {
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("%s-%s-%s", op, ts.Format("2006-01-02T15-04-05"), suffix)
}
