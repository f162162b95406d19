// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage is the keyed store every ledger component persists
// its state in. It provides atomic single-key read-modify-write and
// batched multi-key writes; each ledger transition commits all of its
// writes through one batch.
package storage

import (
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/database/badgerdb"
	"github.com/luxfi/database/memdb"
)

// Store wraps luxfi's database interface.
type Store struct {
	db database.Database
}

// Open creates a store backed by the named database kind, either
// "memory" or "badger".
func Open(kind string, path string) (*Store, error) {
	var db database.Database
	var err error

	switch kind {
	case "memory":
		db = memdb.New()
	case "badger":
		db, err = badgerdb.New(path, nil, "", nil)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown database kind %q", kind)
	}

	return &Store{db: db}, nil
}

// NewMemory creates an in-memory store for tests and single-process hosts.
func NewMemory() *Store {
	return &Store{db: memdb.New()}
}

// Put stores a key-value pair.
func (s *Store) Put(key, value []byte) error {
	return s.db.Put(key, value)
}

// Get retrieves a value by key. Returns database.ErrNotFound for
// missing keys.
func (s *Store) Get(key []byte) ([]byte, error) {
	return s.db.Get(key)
}

// Has checks if a key exists.
func (s *Store) Has(key []byte) (bool, error) {
	return s.db.Has(key)
}

// Delete removes a key-value pair.
func (s *Store) Delete(key []byte) error {
	return s.db.Delete(key)
}

// NewBatch creates a write batch. All writes of a single ledger
// transition go through one batch so they commit together.
func (s *Store) NewBatch() database.Batch {
	return s.db.NewBatch()
}

// NewIteratorWithPrefix creates an iterator over one keyed collection.
func (s *Store) NewIteratorWithPrefix(prefix []byte) database.Iterator {
	return s.db.NewIteratorWithPrefix(prefix)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
