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

// Package accumulator implements the thread-safe in-memory merge buffers
// for the four tables (§4.B) and the background flusher that periodically
// drains them into the store.
package accumulator

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/charlesturner7c5/rtags/internal/codec"
	"github.com/charlesturner7c5/rtags/internal/model"
	"github.com/charlesturner7c5/rtags/internal/store"
)

// Accumulator buffers merged deltas for the four tables and wakes a
// dedicated flusher goroutine to drain them.
type Accumulator struct {
	mu sync.Mutex

	symbols         map[model.Location]model.CursorInfo
	symbolNames     map[string]model.LocationSet
	dependencies    model.DependencyDelta
	fileInformation map[string][]string

	notifyCh chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}

	interval time.Duration
	st       *store.Store
	logger   zerolog.Logger
}

// New returns an Accumulator with empty buffers. Run must be started (in
// its own goroutine) for flushes to happen.
func New(st *store.Store, interval time.Duration, logger zerolog.Logger) *Accumulator {
	return &Accumulator{
		symbols:         map[model.Location]model.CursorInfo{},
		symbolNames:     map[string]model.LocationSet{},
		dependencies:    model.DependencyDelta{},
		fileInformation: map[string][]string{},
		notifyCh:        make(chan struct{}, 1),
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
		interval:        interval,
		st:              st,
		logger:          logger,
	}
}

// AddSymbols merges delta into the Symbol buffer via CursorInfo.Unite.
func (a *Accumulator) AddSymbols(delta map[model.Location]model.CursorInfo) {
	if len(delta) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for loc, added := range delta {
		cur, ok := a.symbols[loc]
		if !ok {
			cur = model.NewCursorInfo()
		}
		cur.Unite(added)
		a.symbols[loc] = cur
	}
}

// AddSymbolNames merges delta into the SymbolName buffer via set union.
func (a *Accumulator) AddSymbolNames(delta map[string]model.LocationSet) {
	if len(delta) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for name, added := range delta {
		cur, ok := a.symbolNames[name]
		if !ok {
			cur = model.LocationSet{}
			a.symbolNames[name] = cur
		}
		cur.Union(added)
	}
}

// AddDependencies merges delta into the Dependency buffer via set union.
func (a *Accumulator) AddDependencies(delta model.DependencyDelta) {
	if len(delta) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for path, added := range delta {
		cur, ok := a.dependencies[path]
		if !ok {
			cur = model.PathSet{}
			a.dependencies[path] = cur
		}
		cur.Union(added)
	}
}

// AddFileInformation records the last argument vector used to parse path.
// Unlike the other buffers this is last-writer-wins, not a union.
func (a *Accumulator) AddFileInformation(path string, args []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fileInformation[path] = args
}

// Notify wakes the flusher even if its idle timeout has not elapsed.
func (a *Accumulator) Notify() {
	select {
	case a.notifyCh <- struct{}{}:
	default:
	}
}

// Stop asks the flusher to exit after its current cycle and blocks until it
// has.
func (a *Accumulator) Stop() {
	close(a.stopCh)
	<-a.doneCh
}

// Run is the flusher loop: wait for work (or a 10-second-class timeout),
// swap out the buffers under the mutex, and commit the merged delta to the
// store outside the lock. Call it in its own goroutine.
func (a *Accumulator) Run() {
	defer close(a.doneCh)

	for {
		select {
		case <-a.stopCh:
			return
		case <-a.notifyCh:
		case <-time.After(a.interval):
		}

		symbols, symbolNames, dependencies, fileInformation, empty := a.swap()
		if empty {
			continue
		}

		if err := a.flushSymbolNames(symbolNames); err != nil {
			a.logger.Warn().Err(err).Msg("flushing symbol names")
		}
		if err := a.flushSymbols(symbols); err != nil {
			a.logger.Warn().Err(err).Msg("flushing symbols")
		}
		if err := a.flushDependencies(dependencies); err != nil {
			a.logger.Warn().Err(err).Msg("flushing dependencies")
		}
		if err := a.flushFileInformation(fileInformation); err != nil {
			a.logger.Warn().Err(err).Msg("flushing file information")
		}

		select {
		case <-a.stopCh:
			return
		default:
		}
	}
}

func (a *Accumulator) swap() (
	symbols map[model.Location]model.CursorInfo,
	symbolNames map[string]model.LocationSet,
	dependencies model.DependencyDelta,
	fileInformation map[string][]string,
	empty bool,
) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.symbols) == 0 && len(a.symbolNames) == 0 && len(a.dependencies) == 0 && len(a.fileInformation) == 0 {
		return nil, nil, nil, nil, true
	}

	symbols, a.symbols = a.symbols, map[model.Location]model.CursorInfo{}
	symbolNames, a.symbolNames = a.symbolNames, map[string]model.LocationSet{}
	dependencies, a.dependencies = a.dependencies, model.DependencyDelta{}
	fileInformation, a.fileInformation = a.fileInformation, map[string][]string{}
	return symbols, symbolNames, dependencies, fileInformation, false
}

func (a *Accumulator) flushSymbolNames(delta map[string]model.LocationSet) error {
	if len(delta) == 0 {
		return nil
	}

	batch := store.NewBatch()
	for name, added := range delta {
		current, err := readLocationSet(a.st, store.SymbolName, name)
		if err != nil {
			return err
		}
		before := len(current)
		current.Union(added)
		if len(current) != before {
			batch.Put(name, codec.EncodeLocationSet(current))
		}
	}
	return a.st.Commit(store.SymbolName, batch)
}

func (a *Accumulator) flushSymbols(delta map[model.Location]model.CursorInfo) error {
	if len(delta) == 0 {
		return nil
	}

	batch := store.NewBatch()
	for loc, added := range delta {
		key := loc.Key()
		current, err := readCursorInfo(a.st, key)
		if err != nil {
			return err
		}
		if current.Unite(added) {
			batch.Put(key, codec.EncodeCursorInfo(current))
		}
	}
	return a.st.Commit(store.Symbol, batch)
}

func (a *Accumulator) flushDependencies(delta model.DependencyDelta) error {
	if len(delta) == 0 {
		return nil
	}

	batch := store.NewBatch()
	for path, added := range delta {
		current, err := readPathSet(a.st, path)
		if err != nil {
			return err
		}
		before := len(current)
		current.Union(added)
		if len(current) > before {
			batch.Put(path, codec.EncodePathSet(current))
		}
	}
	return a.st.Commit(store.Dependency, batch)
}

func (a *Accumulator) flushFileInformation(delta map[string][]string) error {
	if len(delta) == 0 {
		return nil
	}

	batch := store.NewBatch()
	for path, args := range delta {
		batch.Put(path, codec.EncodeArgs(args))
	}
	return a.st.Commit(store.FileInformation, batch)
}

func readLocationSet(st *store.Store, table store.Table, key string) (model.LocationSet, error) {
	raw, ok, err := st.Get(table, []byte(key))
	if err != nil {
		return nil, err
	}
	if !ok {
		return model.LocationSet{}, nil
	}
	return codec.DecodeLocationSet(raw)
}

func readCursorInfo(st *store.Store, key string) (model.CursorInfo, error) {
	raw, ok, err := st.Get(store.Symbol, []byte(key))
	if err != nil {
		return model.CursorInfo{}, err
	}
	if !ok {
		return model.NewCursorInfo(), nil
	}
	return codec.DecodeCursorInfo(raw)
}

func readPathSet(st *store.Store, key string) (model.PathSet, error) {
	raw, ok, err := st.Get(store.Dependency, []byte(key))
	if err != nil {
		return nil, err
	}
	if !ok {
		return model.PathSet{}, nil
	}
	return codec.DecodePathSet(raw)
}
