// Package state keeps the small amount of durable pipeline state in a
// bbolt database: which item ids have been observed before (so downstream
// publishers only receive genuinely new items) and when each source last
// contributed to a completed cycle. The display item set itself is never
// persisted; it is rebuilt from scratch every refresh.
package state

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/lumenlabs/feedstream/internal/domain"
)

var (
	bucketSeen    = []byte("seen_items")
	bucketSources = []byte("source_marks")
)

// Store is a bbolt-backed journal of observed items and source marks.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the state database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketSeen, bucketSources} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init state buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// MarkNew returns the subset of items never seen before and records them
// with their first-seen time. Item identity is the pipeline's stable id,
// so re-fetched entries are filtered out across cycles and restarts.
func (s *Store) MarkNew(items []domain.Item) ([]domain.Item, error) {
	if len(items) == 0 {
		return nil, nil
	}

	var fresh []domain.Item
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSeen)
		now := []byte(time.Now().UTC().Format(time.RFC3339))

		for _, item := range items {
			key := []byte(item.ID)
			if bucket.Get(key) != nil {
				continue
			}
			if err := bucket.Put(key, now); err != nil {
				return err
			}
			fresh = append(fresh, item)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mark new items: %w", err)
	}
	return fresh, nil
}

// Seen reports whether an item id has been observed before.
func (s *Store) Seen(id string) (bool, error) {
	var seen bool
	err := s.db.View(func(tx *bolt.Tx) error {
		seen = tx.Bucket(bucketSeen).Get([]byte(id)) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("read seen item: %w", err)
	}
	return seen, nil
}

// MarkSourceRefreshed records when a source last contributed to a cycle.
func (s *Store) MarkSourceRefreshed(sourceID string, at time.Time) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSources).Put(
			[]byte(sourceID),
			[]byte(at.UTC().Format(time.RFC3339)),
		)
	})
	if err != nil {
		return fmt.Errorf("mark source refreshed: %w", err)
	}
	return nil
}

// SourceRefreshedAt returns the last recorded refresh time for a source,
// or the zero time when none exists.
func (s *Store) SourceRefreshedAt(sourceID string) (time.Time, error) {
	var at time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSources).Get([]byte(sourceID))
		if raw == nil {
			return nil
		}
		parsed, err := time.Parse(time.RFC3339, string(raw))
		if err != nil {
			return err
		}
		at = parsed
		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("read source mark: %w", err)
	}
	return at, nil
}
