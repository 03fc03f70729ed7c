// Package layout persists where a presentation layer last placed each model
// object. Hints are best effort: the most recent write wins and nothing else
// is guaranteed.
package layout

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rileyhilliard/crmon/internal/errors"
	bolt "go.etcd.io/bbolt"
)

// Point is a 2D position.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Store keeps layout hints in a bbolt file, one bucket per host.
type Store struct {
	db   *bolt.DB
	path string
}

// Open opens or creates the hint file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrLayout,
			"can't create layout directory", "Check permissions on "+filepath.Dir(path))
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrLayout,
			fmt.Sprintf("can't open layout file %s", path),
			"Another crmon process may hold the file; close it or set layout.path")
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the file backing the store.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put records p for key under host, replacing any earlier hint.
func (s *Store) Put(host, key string, p Point) error {
	if host == "" || key == "" {
		return errors.New(errors.ErrLayout, "layout hints need a host and a key", "")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrLayout, "encode layout hint", "")
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(host))
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", host, err)
		}
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrLayout, "save layout hint", "")
	}
	return nil
}

// Get returns the hint for key under host.
func (s *Store) Get(host, key string) (Point, bool, error) {
	var p Point
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(host))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &p)
	})
	if err != nil {
		return Point{}, false, errors.WrapWithCode(err, errors.ErrLayout, "read layout hint", "")
	}
	return p, found, nil
}

// All returns every hint stored under host.
func (s *Store) All(host string) (map[string]Point, error) {
	out := make(map[string]Point)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(host))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var p Point
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("hint %s: %w", k, err)
			}
			out[string(k)] = p
			return nil
		})
	})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrLayout, "read layout hints", "")
	}
	return out, nil
}

// Delete removes a hint. Deleting a missing hint is not an error.
func (s *Store) Delete(host, key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(host))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrLayout, "delete layout hint", "")
	}
	return nil
}

// Hosts lists the hosts that have hints, sorted.
func (s *Store) Hosts() ([]string, error) {
	var hosts []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			hosts = append(hosts, string(name))
			return nil
		})
	})
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrLayout, "list layout hosts", "")
	}
	sort.Strings(hosts)
	return hosts, nil
}
