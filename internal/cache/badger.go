// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Tier is a persistent second cache tier holding serialized entries.
// Implementations must be safe for concurrent use.
type Tier interface {
	// Get returns the serialized entry for key, if present and unexpired.
	Get(key string) ([]byte, bool)

	// Set stores a serialized entry with its tags and TTL.
	Set(key string, value []byte, tags []string, ttl time.Duration) error

	// Delete removes a single entry.
	Delete(key string)

	// InvalidateByTags removes every entry sharing any of the tags and
	// returns the number removed.
	InvalidateByTags(tags []string) int

	// Clear removes everything.
	Clear() error

	// Close releases the underlying store.
	Close() error
}

// Key prefixes for BadgerDB storage.
const (
	entryKeyPrefix = "entry:"
	tagKeyPrefix   = "tag:"
)

// BadgerTier implements Tier on BadgerDB. Entries written here survive
// restarts, letting a cold process serve the previous trending lists
// immediately instead of stampeding the external store.
type BadgerTier struct {
	db *badger.DB
}

// NewBadgerTier opens (or creates) a Badger store at path.
func NewBadgerTier(path string) (*BadgerTier, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger tier: %w", err)
	}
	return &BadgerTier{db: db}, nil
}

// NewBadgerTierWithDB wraps an existing Badger handle. The caller retains
// ownership of the handle's lifecycle when using this constructor.
func NewBadgerTierWithDB(db *badger.DB) *BadgerTier {
	return &BadgerTier{db: db}
}

// Get retrieves a serialized entry. Expiry is enforced natively by Badger.
func (t *BadgerTier) Get(key string) ([]byte, bool) {
	var out []byte
	err := t.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(entryKeyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, false
	}
	return out, true
}

// Set stores a serialized entry plus one index key per tag, all carrying
// the same TTL so the index can never outlive its entry by much.
func (t *BadgerTier) Set(key string, value []byte, tags []string, ttl time.Duration) error {
	return t.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(entryKeyPrefix+key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		if err := txn.SetEntry(e); err != nil {
			return fmt.Errorf("set entry: %w", err)
		}

		for _, tag := range tags {
			idx := badger.NewEntry([]byte(tagKeyPrefix+tag+":"+key), nil)
			if ttl > 0 {
				idx = idx.WithTTL(ttl)
			}
			if err := txn.SetEntry(idx); err != nil {
				return fmt.Errorf("set tag index: %w", err)
			}
		}
		return nil
	})
}

// Delete removes a single entry. Orphaned tag index keys expire on their
// own TTL.
func (t *BadgerTier) Delete(key string) {
	_ = t.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(entryKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// InvalidateByTags removes every entry indexed under any of the tags.
func (t *BadgerTier) InvalidateByTags(tags []string) int {
	doomed := make(map[string]struct{})

	_ = t.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for _, tag := range tags {
			prefix := []byte(tagKeyPrefix + tag + ":")
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				key := string(it.Item().Key())
				doomed[key[len(prefix):]] = struct{}{}
			}
		}
		return nil
	})

	if len(doomed) == 0 {
		return 0
	}

	count := 0
	_ = t.db.Update(func(txn *badger.Txn) error {
		for key := range doomed {
			if err := txn.Delete([]byte(entryKeyPrefix + key)); err == nil {
				count++
			}
			for _, tag := range tags {
				_ = txn.Delete([]byte(tagKeyPrefix + tag + ":" + key))
			}
		}
		return nil
	})

	return count
}

// Clear drops all data in the tier.
func (t *BadgerTier) Clear() error {
	return t.db.DropAll()
}

// Close closes the underlying Badger store.
func (t *BadgerTier) Close() error {
	return t.db.Close()
}

// RunGC performs one value-log garbage collection pass. Badger requires
// periodic GC when used long-running; the Janitor drives this.
func (t *BadgerTier) RunGC() {
	// ErrNoRewrite is the normal "nothing to do" result.
	_ = t.db.RunValueLogGC(0.5)
}

// Verify interface implementation at compile time.
var _ Tier = (*BadgerTier)(nil)
