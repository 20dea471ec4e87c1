package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wricardo/mcp-training/chopsticks/game/engine"
	bolt "go.etcd.io/bbolt"
)

// BoltStore keeps a container as one bbolt bucket. bbolt allows a single
// writer at a time, which serializes every mutation.
type BoltStore struct {
	corruptLog
	db     *bolt.DB
	bucket []byte
}

// NewBoltStore opens (or creates) the database file at path
func NewBoltStore(path, container string) (*BoltStore, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt store requires a database path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	s := &BoltStore{corruptLog: newCorruptLog(), db: db, bucket: []byte(container)}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket %s: %w", container, err)
	}
	return s, nil
}

// Create puts a new key into the bucket
func (s *BoltStore) Create(ctx context.Context, game *engine.Game) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(game)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		key := []byte(game.SessionID)
		if b.Get(key) != nil {
			return duplicate(game.SessionID)
		}
		return b.Put(key, data)
	})
}

// Get reads a game in a read-only transaction
func (s *BoltStore) Get(ctx context.Context, id string) (*engine.Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var g *engine.Game
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(s.bucket).Get([]byte(id))
		if data == nil {
			return notFound(id)
		}
		var err error
		g, err = Decode(data)
		return err
	})
	return g, err
}

// WithMut mutates a game inside one write transaction; any error rolls it back
func (s *BoltStore) WithMut(ctx context.Context, id string, fn func(*engine.Game) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		key := []byte(id)
		data := b.Get(key)
		if data == nil {
			return notFound(id)
		}
		_, updated, err := mutate(data, fn)
		if err != nil {
			return err
		}
		return b.Put(key, updated)
	})
}

// List decodes every game in the bucket
func (s *BoltStore) List(ctx context.Context) ([]*engine.Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result []*engine.Game
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, v []byte) error {
			g, err := Decode(v)
			if err != nil {
				s.skip(string(k), err)
				return nil
			}
			result = append(result, g)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Scan calls fn with every key in the bucket. data is only valid during the call.
func (s *BoltStore) Scan(ctx context.Context, fn func(id string, data []byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, v []byte) error {
			return fn(string(k), v)
		})
	})
}

// Sweep deletes finished games older than cutoff in one transaction
func (s *BoltStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)

		var keys [][]byte
		err := b.ForEach(func(k, v []byte) error {
			g, err := Decode(v)
			if err != nil {
				s.skip(string(k), err)
				return nil
			}
			if sweepable(g, cutoff) {
				keys = append(keys, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(keys)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Close releases the database file lock
func (s *BoltStore) Close() error {
	return s.db.Close()
}
