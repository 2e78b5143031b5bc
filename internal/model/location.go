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

// Package model holds the durable data types of the symbol index: Location,
// CursorInfo, and the set-valued records merged into the store.
package model

import "fmt"

// Location is a byte offset within a canonical absolute path, the address
// space of the symbol index.
type Location struct {
	Path   string
	Offset uint32
}

// NewLocation builds a Location. path must already be canonicalized by the
// caller; this package never touches the filesystem.
func NewLocation(path string, offset uint32) Location {
	return Location{Path: path, Offset: offset}
}

// IsNull reports whether l carries no path, mirroring the parser library's
// null-location sentinel.
func (l Location) IsNull() bool {
	return l.Path == ""
}

// Key returns the canonical byte-serialized form "<path>,<offset padded to
// 9 digits>" used as the Symbol table key. Zero-padding keeps lexicographic
// iteration order equal to numeric offset order within a file.
func (l Location) Key() string {
	return fmt.Sprintf("%s,%09d", l.Path, l.Offset)
}

// Less orders Locations the same way their Key() byte form sorts.
func (l Location) Less(other Location) bool {
	return l.Key() < other.Key()
}

// LocationSet is a set of Locations, the value type of the SymbolName table
// and of CursorInfo.References.
type LocationSet map[Location]struct{}

// NewLocationSet builds a LocationSet from the given members.
func NewLocationSet(locs ...Location) LocationSet {
	s := make(LocationSet, len(locs))
	for _, l := range locs {
		s[l] = struct{}{}
	}
	return s
}

// Clone returns a shallow copy.
func (s LocationSet) Clone() LocationSet {
	out := make(LocationSet, len(s))
	for l := range s {
		out[l] = struct{}{}
	}
	return out
}

// Union merges other into s in place and reports whether s grew.
func (s LocationSet) Union(other LocationSet) bool {
	changed := false
	for l := range other {
		if _, ok := s[l]; !ok {
			s[l] = struct{}{}
			changed = true
		}
	}
	return changed
}

// RemoveByPath deletes every Location whose Path is in dirty and reports
// whether anything was removed.
func (s LocationSet) RemoveByPath(dirty map[string]struct{}) bool {
	changed := false
	for l := range s {
		if _, ok := dirty[l.Path]; ok {
			delete(s, l)
			changed = true
		}
	}
	return changed
}
