// Package store is a thin BoltDB wrapper shared by the vault, sync,
// queue and cache engines. Each engine owns one or more buckets inside
// a single on-disk database file and drives range scans with
// byte-sortable composite keys instead of a SQL ORDER BY.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

// MemoryPath is the sentinel that selects an ephemeral database instead
// of one at a caller-chosen path. Open backs it with a file in a fresh
// temporary directory that Close removes; the data is not held in
// memory only. It is recognized by Open itself, never
// string-concatenated into a caller-supplied directory.
const MemoryPath = ":memory:"

// DB wraps a bbolt database handle opened for a single logical store.
type DB struct {
	bolt *bolt.DB
	// tmpDir holds the temp directory backing an in-memory database, so
	// Close can remove it. Empty for on-disk stores.
	tmpDir string
}

// Open opens (creating if necessary) the database at path, or an
// ephemeral database if path is MemoryPath. buckets are created
// up front so callers never need to check for ErrBucketNotFound.
func Open(path string, buckets ...[]byte) (*DB, error) {
	dbPath := path
	tmpDir := ""

	if path == MemoryPath {
		dir, err := os.MkdirTemp("", "localcore-store-*")
		if err != nil {
			return nil, fmt.Errorf("store: create temp dir: %w", err)
		}
		tmpDir = dir
		dbPath = filepath.Join(dir, "db")
	} else if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("store: create data dir: %w", err)
		}
	}

	bdb, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		if tmpDir != "" {
			os.RemoveAll(tmpDir)
		}
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	err = bdb.Update(func(tx *bolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("store: create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		if tmpDir != "" {
			os.RemoveAll(tmpDir)
		}
		return nil, err
	}

	return &DB{bolt: bdb, tmpDir: tmpDir}, nil
}

// Close closes the underlying database and removes any backing temp
// directory created for an in-memory store.
func (d *DB) Close() error {
	err := d.bolt.Close()
	if d.tmpDir != "" {
		os.RemoveAll(d.tmpDir)
	}
	return err
}

// Update runs fn inside a read-write transaction.
func (d *DB) Update(fn func(*bolt.Tx) error) error {
	return d.bolt.Update(fn)
}

// View runs fn inside a read-only transaction.
func (d *DB) View(fn func(*bolt.Tx) error) error {
	return d.bolt.View(fn)
}

// Put writes key/value into bucket in its own transaction.
func (d *DB) Put(bucket, key, value []byte) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(key, value)
	})
}

// Get reads key from bucket. A nil, nil result means the key does not
// exist.
func (d *DB) Get(bucket, key []byte) ([]byte, error) {
	var out []byte
	err := d.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get(key)
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

// Delete removes key from bucket. Deleting a missing key is a no-op.
func (d *DB) Delete(bucket, key []byte) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete(key)
	})
}

// ForEach iterates every key/value pair in bucket in byte-sorted key
// order, stopping early if fn returns an error.
func (d *DB) ForEach(bucket []byte, fn func(k, v []byte) error) error {
	return d.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(fn)
	})
}

// ForEachPrefix iterates every key/value pair in bucket whose key
// starts with prefix, in byte-sorted order.
func (d *DB) ForEachPrefix(bucket, prefix []byte, fn func(k, v []byte) error) error {
	return d.bolt.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			if err := fn(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Compact reclaims disk space by rewriting the backing file into a
// fresh one with no free-list fragmentation, then swapping it in place.
// bbolt never shrinks its file on Delete; deleted pages go onto a
// free-list and get reused, but the file itself stays at its high-water
// mark until something like this runs. Callers that bulk-delete and
// want the reclaim to actually show up on disk (e.g. a full wipe)
// should call this afterward.
func (d *DB) Compact(buckets ...[]byte) error {
	path := d.bolt.Path()
	compactPath := path + ".compact"

	dst, err := bolt.Open(compactPath, 0o600, nil)
	if err != nil {
		return fmt.Errorf("store: open compaction target: %w", err)
	}
	if err := bolt.Compact(dst, d.bolt, 0); err != nil {
		dst.Close()
		os.Remove(compactPath)
		return fmt.Errorf("store: compact: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(compactPath)
		return fmt.Errorf("store: close compaction target: %w", err)
	}
	if err := d.bolt.Close(); err != nil {
		os.Remove(compactPath)
		return fmt.Errorf("store: close original before swap: %w", err)
	}
	if err := os.Rename(compactPath, path); err != nil {
		return fmt.Errorf("store: replace database with compacted copy: %w", err)
	}

	reopened, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return fmt.Errorf("store: reopen compacted database: %w", err)
	}
	err = reopened.Update(func(tx *bolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("store: recreate bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		reopened.Close()
		return err
	}
	d.bolt = reopened
	return nil
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}
