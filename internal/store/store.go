// Package store wraps an embedded ordered key-value database (bbolt) behind
// a small generic table API, with one open *bbolt.DB per canonical on-disk
// path enforced process-wide so two components never fight over the same
// file lock.
package store

import (
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/neomind/edge/internal/neoerr"
)

var (
	registryMu sync.Mutex
	registry   = map[string]*Store{}
)

// Store is a singleton handle onto one bbolt file.
type Store struct {
	db   *bolt.DB
	path string
}

// Open returns the Store for the given path, opening the underlying bbolt
// file on first use and handing back the same *Store for every later call
// with the same canonical path. Callers never close the returned Store
// directly; use CloseAll in tests that need a clean slate.
func Open(path string) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, neoerr.Storage("resolve store path", err)
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if s, ok := registry[abs]; ok {
		return s, nil
	}

	db, err := bolt.Open(abs, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, neoerr.Storage("open bbolt database", err)
	}

	s := &Store{db: db, path: abs}
	registry[abs] = s
	return s, nil
}

// CloseAll closes every open Store and clears the singleton registry. Used
// by tests between cases; production callers never need it.
func CloseAll() {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, s := range registry {
		_ = s.db.Close()
	}
	registry = map[string]*Store{}
}

// Table is a typed view over one bbolt bucket, storing values as JSON.
type Table[T any] struct {
	store  *Store
	bucket []byte
}

// NewTable returns a typed handle onto the named bucket, creating it if
// necessary.
func NewTable[T any](s *Store, bucket string) (*Table[T], error) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		return nil, neoerr.Storage("create bucket "+bucket, err)
	}
	return &Table[T]{store: s, bucket: []byte(bucket)}, nil
}

func (t *Table[T]) Put(key string, value T) error {
	buf, err := json.Marshal(value)
	if err != nil {
		return neoerr.Serialization("encode "+key, err)
	}
	err = t.store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(t.bucket).Put([]byte(key), buf)
	})
	if err != nil {
		return neoerr.Storage("put "+key, err)
	}
	return nil
}

func (t *Table[T]) Get(key string) (T, bool, error) {
	var out T
	var found bool
	err := t.store.db.View(func(tx *bolt.Tx) error {
		buf := tx.Bucket(t.bucket).Get([]byte(key))
		if buf == nil {
			return nil
		}
		found = true
		return json.Unmarshal(buf, &out)
	})
	if err != nil {
		return out, false, neoerr.Storage("get "+key, err)
	}
	return out, found, nil
}

func (t *Table[T]) Delete(key string) error {
	err := t.store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(t.bucket).Delete([]byte(key))
	})
	if err != nil {
		return neoerr.Storage("delete "+key, err)
	}
	return nil
}

// List returns every value in the bucket ordered by key.
func (t *Table[T]) List() ([]T, error) {
	var out []T
	err := t.store.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(t.bucket).ForEach(func(k, v []byte) error {
			var item T
			if err := json.Unmarshal(v, &item); err != nil {
				return err
			}
			out = append(out, item)
			return nil
		})
	})
	if err != nil {
		return nil, neoerr.Storage("list", err)
	}
	return out, nil
}

// ScanPrefix returns every value whose key starts with prefix, in key
// order, using bbolt's native ordered cursor rather than a filtered List.
func (t *Table[T]) ScanPrefix(prefix string) ([]T, error) {
	var out []T
	p := []byte(prefix)
	err := t.store.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(t.bucket).Cursor()
		for k, v := c.Seek(p); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
			var item T
			if err := json.Unmarshal(v, &item); err != nil {
				return err
			}
			out = append(out, item)
		}
		return nil
	})
	if err != nil {
		return nil, neoerr.Storage("scan prefix "+prefix, err)
	}
	return out, nil
}

// ScanRange returns every value with key in [fromKey, toKey), in key order.
// Used by the time-series journal for time-window queries.
func (t *Table[T]) ScanRange(fromKey, toKey string) ([]T, error) {
	var out []T
	err := t.store.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(t.bucket).Cursor()
		for k, v := c.Seek([]byte(fromKey)); k != nil && string(k) < toKey; k, v = c.Next() {
			var item T
			if err := json.Unmarshal(v, &item); err != nil {
				return err
			}
			out = append(out, item)
		}
		return nil
	})
	if err != nil {
		return nil, neoerr.Storage("scan range", err)
	}
	return out, nil
}

// Keys returns every key in the bucket in order, without decoding values.
func (t *Table[T]) Keys() ([]string, error) {
	var keys []string
	err := t.store.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(t.bucket).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, neoerr.Storage("keys", err)
	}
	sort.Strings(keys)
	return keys, nil
}
