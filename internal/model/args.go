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

// PathSet is a set of canonical absolute paths, the value type of the
// Dependency table and of a PCH header's transitive header set.
type PathSet map[string]struct{}

// NewPathSet builds a PathSet from the given members.
func NewPathSet(paths ...string) PathSet {
	s := make(PathSet, len(paths))
	for _, p := range paths {
		s[p] = struct{}{}
	}
	return s
}

// Clone returns a shallow copy.
func (s PathSet) Clone() PathSet {
	out := make(PathSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

// Union merges other into s in place and reports whether s grew.
func (s PathSet) Union(other PathSet) bool {
	changed := false
	for p := range other {
		if _, ok := s[p]; !ok {
			s[p] = struct{}{}
			changed = true
		}
	}
	return changed
}

// Slice returns the set's members as a slice, in no particular order.
func (s PathSet) Slice() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	return out
}

// DependencyDelta is the shape passed between the parse job, the dependency
// registry, and the accumulator: path -> set of translation units that
// transitively include it.
type DependencyDelta map[string]PathSet

// ExtractPCHHeaders returns, in order, the value following every
// "-include-pch" flag in args.
func ExtractPCHHeaders(args []string) []string {
	var out []string
	nextIsPCH := false
	for _, arg := range args {
		if arg == "" {
			continue
		}
		if nextIsPCH {
			out = append(out, arg)
			nextIsPCH = false
			continue
		}
		if arg == "-include-pch" {
			nextIsPCH = true
		}
	}
	return out
}

// IsPCHArgs reports whether args designate a precompiled-header translation
// unit, i.e. carry "-x c++-header" or "-x c-header".
func IsPCHArgs(args []string) bool {
	nextIsX := false
	for _, arg := range args {
		if nextIsX {
			return arg == "c++-header" || arg == "c-header"
		}
		if arg == "-x" {
			nextIsX = true
		}
	}
	return false
}

// RewritePCHArgs replaces each "-include-pch X" pair with
// "-include-pch <rewrite(X)>" when X is in ready, and drops the pair
// entirely when X is not in ready (the header's last parse failed).
func RewritePCHArgs(args []string, ready map[string]struct{}, rewrite func(header string) string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "-include-pch" && i+1 < len(args) {
			header := args[i+1]
			i++
			if _, ok := ready[header]; ok {
				out = append(out, arg, rewrite(header))
			}
			continue
		}
		out = append(out, arg)
	}
	return out
}
