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

// Package dirtyjob implements component G: given a set of invalidated
// paths, sweep the Symbol and SymbolName tables clean of references to
// them, then requeue re-indexing of the affected translation units.
package dirtyjob

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/charlesturner7c5/rtags/internal/codec"
	"github.com/charlesturner7c5/rtags/internal/store"
)

// Indexer is the narrow re-indexing contract the dirty job needs from the
// coordinator. Defined locally so this package never imports coordinator.
type Indexer interface {
	Index(path string, args []string) int
}

// Job sweeps dirty and resubmits the PCH-producing translation units
// before the non-PCH ones, so PCH artifacts regenerate before consumers.
type Job struct {
	Store      *store.Store
	Indexer    Indexer
	Logger     zerolog.Logger
	Dirty      map[string]struct{}
	PCHArgs    map[string][]string
	NonPCHArgs map[string][]string
}

// Run executes the sweep-then-reindex sequence described in §4.G.
func (j *Job) Run() error {
	if err := j.sweepSymbols(); err != nil {
		return err
	}
	if err := j.sweepSymbolNames(); err != nil {
		return err
	}
	j.reindex()
	return nil
}

// sweepSymbols implements §4.G step 1.
func (j *Job) sweepSymbols() error {
	batch := store.NewBatch()

	err := j.Store.Iterate(store.Symbol, func(key, value []byte) error {
		path := pathFromSymbolKey(string(key))
		if _, dirty := j.Dirty[path]; dirty {
			batch.Delete(string(key))
			return nil
		}

		ci, err := codec.DecodeCursorInfo(value)
		if err != nil {
			j.Logger.Warn().Err(err).Str("key", string(key)).Msg("decoding cursor info during sweep")
			return nil
		}
		if !ci.Dirty(j.Dirty) {
			return nil
		}
		if ci.IsEmpty() {
			batch.Delete(string(key))
		} else {
			batch.Put(string(key), codec.EncodeCursorInfo(ci))
		}
		return nil
	})
	if err != nil {
		return err
	}

	return j.Store.Commit(store.Symbol, batch)
}

// sweepSymbolNames implements §4.G step 2.
func (j *Job) sweepSymbolNames() error {
	batch := store.NewBatch()

	err := j.Store.Iterate(store.SymbolName, func(key, value []byte) error {
		locs, err := codec.DecodeLocationSet(value)
		if err != nil {
			j.Logger.Warn().Err(err).Str("key", string(key)).Msg("decoding symbol name during sweep")
			return nil
		}
		if !locs.RemoveByPath(j.Dirty) {
			return nil
		}
		if len(locs) == 0 {
			batch.Delete(string(key))
		} else {
			batch.Put(string(key), codec.EncodeLocationSet(locs))
		}
		return nil
	})
	if err != nil {
		return err
	}

	return j.Store.Commit(store.SymbolName, batch)
}

// reindex implements §4.G step 3: PCH producers first, then consumers.
func (j *Job) reindex() {
	for path, args := range j.PCHArgs {
		j.Indexer.Index(path, args)
	}
	for path, args := range j.NonPCHArgs {
		j.Indexer.Index(path, args)
	}
}

// pathFromSymbolKey extracts the path component of a Symbol key of the
// form "<path>,<offset>", splitting on the last comma so paths containing
// commas are handled correctly.
func pathFromSymbolKey(key string) string {
	if idx := strings.LastIndexByte(key, ','); idx != -1 {
		return key[:idx]
	}
	return key
}
