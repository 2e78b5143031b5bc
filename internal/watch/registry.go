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

// Package watch maintains per-directory (filename, mtime) tuples and turns
// OS directory-change notifications into dirty-file sets, handed off as
// Dirty Jobs (component C).
package watch

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/charlesturner7c5/rtags/internal/model"
)

type entry struct {
	mtime int64
}

// DependencyLookup is the subset of the dependency registry's API the
// watch registry needs. Defined locally so this package never imports
// dependency.
type DependencyLookup interface {
	DependentsOf(path string) model.PathSet
}

// FileInformationLookup recovers the argument vector a TU was last parsed
// with, as stored in the FileInformation table.
type FileInformationLookup interface {
	FileInformationArgs(path string) ([]string, bool, error)
}

// DirtySubmitter receives the result of a directory-change sweep.
type DirtySubmitter interface {
	SubmitDirty(dirty map[string]struct{}, pchArgs, nonPchArgs map[string][]string)
}

// Registry tracks watched directories and their known (filename, mtime)
// members.
type Registry struct {
	mu       sync.Mutex
	byDir    map[string]map[string]entry
	fsw      *fsnotify.Watcher
	deps     DependencyLookup
	fileInfo FileInformationLookup
	dirty    DirtySubmitter
	logger   zerolog.Logger
}

// New wires a Registry to its collaborators. Call Run in its own goroutine
// to start consuming fsnotify events.
func New(deps DependencyLookup, fileInfo FileInformationLookup, dirty DirtySubmitter, logger zerolog.Logger) (*Registry, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Registry{
		byDir:    map[string]map[string]entry{},
		fsw:      fsw,
		deps:     deps,
		fileInfo: fileInfo,
		dirty:    dirty,
		logger:   logger,
	}, nil
}

// Close releases the underlying OS watcher.
func (r *Registry) Close() error {
	return r.fsw.Close()
}

// Watch arms a watch on path's parent directory (if not already watched)
// and records path's current (filename, mtime).
func (r *Registry) Watch(path string) error {
	dir := filepath.Dir(path)
	name := filepath.Base(path)

	mtime, err := statMTime(path)
	if err != nil {
		mtime = 0
	}

	r.mu.Lock()
	members, ok := r.byDir[dir]
	if !ok {
		members = map[string]entry{}
		r.byDir[dir] = members
	}
	members[name] = entry{mtime: mtime}
	r.mu.Unlock()

	if !ok {
		if err := r.fsw.Add(dir); err != nil {
			return err
		}
	}
	return nil
}

// Run consumes fsnotify events until the underlying watcher is closed.
func (r *Registry) Run() {
	for {
		select {
		case event, ok := <-r.fsw.Events:
			if !ok {
				return
			}
			r.DirectoryChanged(filepath.Dir(event.Name))
		case err, ok := <-r.fsw.Errors:
			if !ok {
				return
			}
			r.logger.Warn().Err(err).Msg("watch registry: fsnotify error")
		}
	}
}

// DirectoryChanged implements §4.C: find files whose recorded (filename,
// mtime) no longer matches disk, expand to their dependents via the
// dependency registry, partition by PCH-ness, and submit a Dirty Job.
func (r *Registry) DirectoryChanged(dir string) {
	r.mu.Lock()
	members, ok := r.byDir[dir]
	if !ok {
		r.mu.Unlock()
		r.logger.Debug().Str("dir", dir).Msg("watch miss: unknown directory")
		return
	}

	var changed []string
	for name, old := range members {
		path := filepath.Join(dir, name)
		mtime, err := statMTime(path)
		if err != nil || mtime != old.mtime {
			changed = append(changed, path)
			delete(members, name)
		}
	}
	r.mu.Unlock()

	if len(changed) == 0 {
		return
	}

	dirty := map[string]struct{}{}
	for _, path := range changed {
		dirty[path] = struct{}{}
		if r.deps == nil {
			continue
		}
		for dependent := range r.deps.DependentsOf(path) {
			dirty[dependent] = struct{}{}
		}
	}

	pchArgs := map[string][]string{}
	nonPchArgs := map[string][]string{}
	for path := range dirty {
		if r.fileInfo == nil {
			continue
		}
		args, ok, err := r.fileInfo.FileInformationArgs(path)
		if err != nil || !ok {
			if err != nil {
				r.logger.Warn().Err(err).Str("path", path).Msg("watch registry: file information lookup failed")
			}
			continue
		}
		if model.IsPCHArgs(args) {
			pchArgs[path] = args
		} else {
			nonPchArgs[path] = args
		}
	}

	if r.dirty != nil {
		r.dirty.SubmitDirty(dirty, pchArgs, nonPchArgs)
	}

	for path := range changed2set(changed) {
		_ = r.reArm(dir, path)
	}
}

func changed2set(changed []string) map[string]struct{} {
	out := make(map[string]struct{}, len(changed))
	for _, c := range changed {
		out[c] = struct{}{}
	}
	return out
}

// reArm re-adds path to the watched set with its fresh mtime if the file is
// still present on disk. A file that no longer exists is simply dropped
// (the next Watch call from a re-index will re-add it).
func (r *Registry) reArm(dir, path string) error {
	mtime, err := statMTime(path)
	if err != nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.byDir[dir]
	if !ok {
		members = map[string]entry{}
		r.byDir[dir] = members
	}
	members[filepath.Base(path)] = entry{mtime: mtime}
	return nil
}

func statMTime(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.ModTime().UnixMilli(), nil
}
