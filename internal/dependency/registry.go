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

// Package dependency holds the in-memory header-to-dependent-TU multigraph
// (component D) and the separate PCH transitive-header map.
package dependency

import (
	"sync"

	"github.com/charlesturner7c5/rtags/internal/model"
)

// Flusher is the subset of the Accumulator's API the registry needs to
// persist the additional edges a Commit introduces. Defined locally so this
// package never imports accumulator.
type Flusher interface {
	AddDependencies(delta model.DependencyDelta)
}

// Watcher is the subset of the watch registry's API needed to arm watches
// on newly-seen paths. Defined locally so this package never imports watch.
type Watcher interface {
	Watch(path string) error
}

// Registry is the in-memory mapping from header/source path to the set of
// TU paths whose parse transitively included it, plus the separate
// PCH-header transitive-header map.
type Registry struct {
	mu   sync.RWMutex
	deps model.DependencyDelta

	pchMu   sync.RWMutex
	pchDeps model.DependencyDelta

	flusher Flusher
	watcher Watcher
}

// New returns an empty Registry wired to flusher and watcher. watcher may
// be nil and supplied later via SetWatcher, for callers that must
// construct the Registry before the watch registry it feeds.
func New(flusher Flusher, watcher Watcher) *Registry {
	return &Registry{
		deps:    model.DependencyDelta{},
		pchDeps: model.DependencyDelta{},
		flusher: flusher,
		watcher: watcher,
	}
}

// SetWatcher wires (or rewires) the watcher consulted by Commit.
func (r *Registry) SetWatcher(watcher Watcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watcher = watcher
}

// Commit merges delta into the global map, forwards only the edges it
// actually added to the Accumulator (so the persistent Dependency table
// grows monotonically), and arms a watch on every path seen for the first
// time.
func (r *Registry) Commit(delta model.DependencyDelta) error {
	if len(delta) == 0 {
		return nil
	}

	added := model.DependencyDelta{}
	var newPaths []string

	r.mu.Lock()
	for path, tus := range delta {
		cur, known := r.deps[path]
		if !known {
			cur = model.PathSet{}
			r.deps[path] = cur
			newPaths = append(newPaths, path)
		}

		var introduced model.PathSet
		for tu := range tus {
			if _, present := cur[tu]; !present {
				cur[tu] = struct{}{}
				if introduced == nil {
					introduced = model.PathSet{}
				}
				introduced[tu] = struct{}{}
			}
		}
		if introduced != nil {
			added[path] = introduced
		}
	}
	watcher := r.watcher
	r.mu.Unlock()

	if len(added) > 0 && r.flusher != nil {
		r.flusher.AddDependencies(added)
	}

	if watcher != nil {
		for _, path := range newPaths {
			if err := watcher.Watch(path); err != nil {
				return err
			}
		}
	}
	return nil
}

// DependentsOf returns the set of TU paths that transitively depend on
// path, per the last Commit.
func (r *Registry) DependentsOf(path string) model.PathSet {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cur, ok := r.deps[path]
	if !ok {
		return model.PathSet{}
	}
	return cur.Clone()
}

// Known reports whether path has ever appeared as a dependency key.
func (r *Registry) Known(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.deps[path]
	return ok
}

// SetPCHDependencies records the transitive header set for a PCH header,
// merging with any set already recorded (the PCH map, like the dependency
// map, only grows).
func (r *Registry) SetPCHDependencies(pchHeader string, headers model.PathSet) {
	r.pchMu.Lock()
	defer r.pchMu.Unlock()

	cur, ok := r.pchDeps[pchHeader]
	if !ok {
		cur = model.PathSet{}
		r.pchDeps[pchHeader] = cur
	}
	cur.Union(headers)
}

// PCHDependencies returns the transitive header set recorded for pchHeader.
func (r *Registry) PCHDependencies(pchHeader string) model.PathSet {
	r.pchMu.RLock()
	defer r.pchMu.RUnlock()

	cur, ok := r.pchDeps[pchHeader]
	if !ok {
		return model.PathSet{}
	}
	return cur.Clone()
}
