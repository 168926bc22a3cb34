package bolt

import (
	"bytes"
	"fmt"
	"time"

	"github.com/brk3/flux/internal/storage"
	"go.etcd.io/bbolt"
)

const rootBucket = "cache"

// Store is a storage.Cache backed by a bbolt file.
type Store struct {
	db *bbolt.DB
}

func Open(path string) (*Store, error) {
	// A second CLI invocation holding the lock should not hang this one.
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}

	s := &Store{db: db}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(rootBucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(rootBucket)).Get([]byte(key))
		if v == nil {
			return storage.ErrMiss
		}
		// v is only valid for the life of the transaction.
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

func (s *Store) Store(key string, val []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(rootBucket)).Put([]byte(key), val)
	})
}

func (s *Store) Delete(key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(rootBucket)).Delete([]byte(key))
	})
}

// Keys lists the keys that start with prefix, in byte order.
func (s *Store) Keys(prefix string) ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(rootBucket)).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			out = append(out, string(k))
		}
		return nil
	})
	return out, err
}

// DeletePrefix removes every key that starts with prefix.
func (s *Store) DeletePrefix(prefix string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(rootBucket))
		c := b.Cursor()
		p := []byte(prefix)
		var keys [][]byte
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

var _ storage.Cache = (*Store)(nil)
