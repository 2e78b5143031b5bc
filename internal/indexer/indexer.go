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

// Package indexer wires the store, accumulator, dependency registry, watch
// registry, and job coordinator into the public surface described in §6:
// index, set_default_args, and directory_changed.
package indexer

import (
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/charlesturner7c5/rtags/internal/accumulator"
	"github.com/charlesturner7c5/rtags/internal/codec"
	"github.com/charlesturner7c5/rtags/internal/compiledb"
	"github.com/charlesturner7c5/rtags/internal/config"
	"github.com/charlesturner7c5/rtags/internal/coordinator"
	"github.com/charlesturner7c5/rtags/internal/dependency"
	"github.com/charlesturner7c5/rtags/internal/dirtyjob"
	"github.com/charlesturner7c5/rtags/internal/model"
	"github.com/charlesturner7c5/rtags/internal/parsejob"
	"github.com/charlesturner7c5/rtags/internal/store"
	"github.com/charlesturner7c5/rtags/internal/watch"
)

// Indexer is the top-level handle a caller (cmd/navcd, or a future RPC
// front end) builds once and uses for the lifetime of a project.
type Indexer struct {
	storagePath string
	store       *store.Store
	accum       *accumulator.Accumulator
	deps        *dependency.Registry
	watchReg    *watch.Registry
	coord       *coordinator.Coordinator
	logger      zerolog.Logger
}

// Open constructs every component and starts the flusher and watch-event
// goroutines. Close stops the coordinator and the flusher, then closes the
// watch registry and the store.
func Open(cfg config.Config, logger zerolog.Logger) (*Indexer, error) {
	st, err := store.Open(cfg.StorageDir, logger)
	if err != nil {
		return nil, err
	}

	accum := accumulator.New(st, cfg.FlushInterval, logger)

	ix := &Indexer{
		storagePath: cfg.StorageDir,
		store:       st,
		accum:       accum,
		logger:      logger,
	}

	// The dependency registry needs a watcher to arm, and the watch
	// registry needs the dependency registry to consult — construct the
	// registry first with no watcher, then wire the watcher in once it
	// exists.
	ix.deps = dependency.New(accum, nil)
	fileInfo := &fileInformationLookup{store: st}
	dirtySub := &dirtySubmitter{indexer: ix}

	watchReg, err := watch.New(ix.deps, fileInfo, dirtySub, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	ix.watchReg = watchReg
	ix.deps.SetWatcher(watchReg)

	ix.coord = coordinator.New(cfg.Workers, ix.deps, accum, logger, ix.buildRunFunc)
	ix.coord.SetDefaultArgs(cfg.DefaultArgs)

	go accum.Run()
	go watchReg.Run()

	return ix, nil
}

// Close stops the flusher and watch loop and releases the store. Callers
// should call Index/DirectoryChanged only before Close.
func (ix *Indexer) Close() error {
	ix.coord.Close()
	ix.accum.Stop()

	// The watch registry's OS handle and the four table databases are
	// independent; fan their shutdown in rather than closing one after
	// the other.
	var g errgroup.Group
	g.Go(ix.watchReg.Close)
	g.Go(ix.store.Close)
	return g.Wait()
}

// Index admits path for indexing with args, returning the job id or -1 if
// path is already in flight.
func (ix *Indexer) Index(path string, args []string) int {
	return ix.coord.Index(path, args)
}

// SetDefaultArgs records the argument vector appended to every job.
func (ix *Indexer) SetDefaultArgs(args []string) {
	ix.coord.SetDefaultArgs(args)
}

// DirectoryChanged forwards an OS directory-change notification to the
// watch registry.
func (ix *Indexer) DirectoryChanged(path string) {
	ix.watchReg.DirectoryChanged(path)
}

// Done returns a channel that receives a job's id each time indexing
// finishes for it, so a caller can observe progress without polling.
func (ix *Indexer) Done() <-chan int {
	return ix.coord.Done()
}

// IndexCompileDB ingests every translation unit named in the
// compile_commands.json files under dirs and submits each for indexing.
func (ix *Indexer) IndexCompileDB(dirs []string) error {
	db, err := compiledb.Load(dirs)
	if err != nil {
		return fmt.Errorf("indexer: loading compile database: %w", err)
	}
	for file, args := range db.Files() {
		ix.Index(file, args)
		if err := ix.watchReg.Watch(file); err != nil {
			ix.logger.Warn().Err(err).Str("path", file).Msg("arming watch for initial file")
		}
	}
	return nil
}

func (ix *Indexer) buildRunFunc(id int, input string, args []string) coordinator.RunFunc {
	job := &parsejob.Job{
		ID:          id,
		StoragePath: ix.storagePath,
		Path:        input,
		Args:        args,
		DefaultArgs: ix.coord.DefaultArgs(),
		PCHWaiter:   ix.coord,
		Sink:        &sink{indexer: ix},
		Logger:      ix.logger,
	}
	return job.Run
}

// sink adapts the Accumulator and dependency registry to parsejob.Sink.
type sink struct {
	indexer *Indexer
}

func (s *sink) AddSymbols(delta map[model.Location]model.CursorInfo) {
	s.indexer.accum.AddSymbols(delta)
}

func (s *sink) AddSymbolNames(delta map[string]model.LocationSet) {
	s.indexer.accum.AddSymbolNames(delta)
}

func (s *sink) AddFileInformation(path string, args []string) {
	s.indexer.accum.AddFileInformation(path, args)
}

func (s *sink) SetPCHDependencies(pchHeader string, headers model.PathSet) {
	s.indexer.deps.SetPCHDependencies(pchHeader, headers)
}

func (s *sink) PCHDependencies(pchHeader string) model.PathSet {
	return s.indexer.deps.PCHDependencies(pchHeader)
}

// fileInformationLookup adapts the store to watch.FileInformationLookup.
type fileInformationLookup struct {
	store *store.Store
}

func (f *fileInformationLookup) FileInformationArgs(path string) ([]string, bool, error) {
	raw, ok, err := f.store.Get(store.FileInformation, []byte(path))
	if err != nil || !ok {
		return nil, ok, err
	}
	args, err := codec.DecodeArgs(raw)
	if err != nil {
		return nil, false, err
	}
	return args, true, nil
}

// dirtySubmitter adapts the coordinator and store to watch.DirtySubmitter.
type dirtySubmitter struct {
	indexer *Indexer
}

func (d *dirtySubmitter) SubmitDirty(dirty map[string]struct{}, pchArgs, nonPchArgs map[string][]string) {
	job := &dirtyjob.Job{
		Store:      d.indexer.store,
		Indexer:    d.indexer.coord,
		Logger:     d.indexer.logger,
		Dirty:      dirty,
		PCHArgs:    pchArgs,
		NonPCHArgs: nonPchArgs,
	}
	go func() {
		if err := job.Run(); err != nil {
			d.indexer.logger.Warn().Err(err).Msg("dirty job failed")
		}
	}()
}
