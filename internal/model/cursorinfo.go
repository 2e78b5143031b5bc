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

package model

// CursorKind mirrors the parser library's cursor-kind enum. The indexer
// never interprets the value itself; it only stores and returns it, so a
// plain numeric alias is enough to keep this package independent of the
// parser binding.
type CursorKind uint32

// CursorInfo is the per-location symbol record: the cursor's kind and
// spelling length, an optional definition/declaration target, and the set
// of locations that reference it.
type CursorInfo struct {
	Kind         CursorKind
	SymbolLength uint32
	Target       *Location
	References   LocationSet
}

// NewCursorInfo returns an empty CursorInfo ready for merging.
func NewCursorInfo() CursorInfo {
	return CursorInfo{References: LocationSet{}}
}

// IsEmpty reports whether ci carries neither a target nor any references,
// the condition under which a symbol is pruned or deleted.
func (ci CursorInfo) IsEmpty() bool {
	return ci.Target == nil && len(ci.References) == 0
}

// Unite merges added into ci in place following the CursorInfo merge
// semantics of the spec: References is a union, Target is filled only if
// currently empty, and Kind/SymbolLength come from whichever side already
// has a non-zero SymbolLength (first writer wins). It reports whether any
// field changed.
func (ci *CursorInfo) Unite(added CursorInfo) bool {
	changed := false

	if ci.References == nil {
		ci.References = LocationSet{}
	}
	if ci.References.Union(added.References) {
		changed = true
	}

	if ci.Target == nil && added.Target != nil {
		loc := *added.Target
		ci.Target = &loc
		changed = true
	}

	if ci.SymbolLength == 0 && added.SymbolLength != 0 {
		ci.Kind = added.Kind
		ci.SymbolLength = added.SymbolLength
		changed = true
	}

	return changed
}

// Dirty removes every reference whose path is in dirty and clears Target
// if its path is in dirty. It reports whether anything changed.
func (ci *CursorInfo) Dirty(dirty map[string]struct{}) bool {
	changed := false

	if ci.References.RemoveByPath(dirty) {
		changed = true
	}

	if ci.Target != nil {
		if _, ok := dirty[ci.Target.Path]; ok {
			ci.Target = nil
			changed = true
		}
	}

	return changed
}

// Clone returns a deep-enough copy for safe concurrent merging.
func (ci CursorInfo) Clone() CursorInfo {
	out := CursorInfo{
		Kind:         ci.Kind,
		SymbolLength: ci.SymbolLength,
		References:   ci.References.Clone(),
	}
	if ci.Target != nil {
		loc := *ci.Target
		out.Target = &loc
	}
	return out
}
