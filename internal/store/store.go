/*
 * Copyright 2015 Google Inc. All Rights Reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package store is the façade over the four logical tables (Symbol,
// SymbolName, Dependency, FileInformation) backed by four independent
// ordered Badger key-value databases. It offers typed get/iterate and
// atomic batched commits; callers are responsible for encoding values with
// the codec package.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// Table identifies one of the four logical tables.
type Table int

const (
	Symbol Table = iota
	SymbolName
	Dependency
	FileInformation

	tableCount
)

func (t Table) dirName() string {
	switch t {
	case Symbol:
		return "symbols"
	case SymbolName:
		return "symbolnames"
	case Dependency:
		return "dependencies"
	case FileInformation:
		return "fileinformation"
	default:
		return fmt.Sprintf("unknown-table-%d", int(t))
	}
}

// ErrStoreOpenFailed is returned when a table's backing database could not
// be opened; callers should treat this as non-fatal (§7 StoreOpenFailed).
var ErrStoreOpenFailed = errors.New("store: open failed")

// Store is the façade over the four logical tables.
type Store struct {
	dbs    [tableCount]*badger.DB
	logger zerolog.Logger
}

// Open creates the project storage directory (and its four table
// subdirectories) if absent and opens one Badger database per table.
func Open(root string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("store: creating %s: %w", root, err)
	}

	s := &Store{logger: logger}
	for t := Table(0); t < tableCount; t++ {
		dir := filepath.Join(root, t.dirName())
		opts := badger.DefaultOptions(dir).WithLogger(nil).WithSyncWrites(false)
		db, err := badger.Open(opts)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("%w: table %s: %v", ErrStoreOpenFailed, t.dirName(), err)
		}
		s.dbs[t] = db
	}

	return s, nil
}

// Close closes every table's database, tolerating tables that never opened.
func (s *Store) Close() error {
	var firstErr error
	for _, db := range s.dbs {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Get fetches the raw value for key in table. ok is false if the key is
// absent.
func (s *Store) Get(table Table, key []byte) (value []byte, ok bool, err error) {
	db := s.dbs[table]
	if db == nil {
		return nil, false, fmt.Errorf("%w: table %s not open", ErrStoreOpenFailed, table.dirName())
	}

	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		ok = true
		return item.Value(func(v []byte) error {
			value = append([]byte(nil), v...)
			return nil
		})
	})
	return value, ok, err
}

// Iterate walks table in key order, calling fn for every (key, value) pair.
// fn's key/value slices are only valid for the duration of the call.
func (s *Store) Iterate(table Table, fn func(key, value []byte) error) error {
	db := s.dbs[table]
	if db == nil {
		return fmt.Errorf("%w: table %s not open", ErrStoreOpenFailed, table.dirName())
	}

	return db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			if err := item.Value(func(v []byte) error {
				return fn(key, v)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Batch is a set of puts and deletes to apply atomically to one table.
type Batch struct {
	Puts    map[string][]byte
	Deletes map[string]struct{}
}

// NewBatch returns an empty Batch.
func NewBatch() *Batch {
	return &Batch{Puts: map[string][]byte{}, Deletes: map[string]struct{}{}}
}

// Put stages a put. key is a string so callers can use it directly as a map
// key; the bytes are not otherwise significant.
func (b *Batch) Put(key string, value []byte) {
	delete(b.Deletes, key)
	b.Puts[key] = value
}

// Delete stages a delete.
func (b *Batch) Delete(key string) {
	delete(b.Puts, key)
	b.Deletes[key] = struct{}{}
}

// Empty reports whether the batch has nothing staged.
func (b *Batch) Empty() bool {
	return len(b.Puts) == 0 && len(b.Deletes) == 0
}

// Commit applies batch to table atomically via a single Badger write batch.
func (s *Store) Commit(table Table, batch *Batch) error {
	if batch.Empty() {
		return nil
	}

	db := s.dbs[table]
	if db == nil {
		return fmt.Errorf("%w: table %s not open", ErrStoreOpenFailed, table.dirName())
	}

	wb := db.NewWriteBatch()
	defer wb.Cancel()

	for k, v := range batch.Puts {
		if err := wb.Set([]byte(k), v); err != nil {
			return fmt.Errorf("store: staging put: %w", err)
		}
	}
	for k := range batch.Deletes {
		if err := wb.Delete([]byte(k)); err != nil {
			return fmt.Errorf("store: staging delete: %w", err)
		}
	}

	if err := wb.Flush(); err != nil {
		return fmt.Errorf("store: committing batch: %w", err)
	}
	return nil
}
