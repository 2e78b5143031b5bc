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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocationKeyOrdering(t *testing.T) {
	a := NewLocation("a.cpp", 5)
	b := NewLocation("a.cpp", 20)

	require.Less(t, a.Key(), b.Key(), "zero-padded offsets must sort numerically as bytes")
}

func TestCursorInfoUniteUnionsReferences(t *testing.T) {
	r1 := NewLocation("a.cpp", 1)
	r2 := NewLocation("a.cpp", 2)

	ci := NewCursorInfo()
	ci.References.Union(NewLocationSet(r1))

	added := NewCursorInfo()
	added.References.Union(NewLocationSet(r2))

	changed := ci.Unite(added)
	require.True(t, changed)
	require.Contains(t, ci.References, r1)
	require.Contains(t, ci.References, r2)
}

func TestCursorInfoUniteFillsEmptyTarget(t *testing.T) {
	target := NewLocation("a.cpp", 10)
	added := CursorInfo{Target: &target, References: LocationSet{}}

	ci := NewCursorInfo()
	changed := ci.Unite(added)

	require.True(t, changed)
	require.NotNil(t, ci.Target)
	require.Equal(t, target, *ci.Target)

	// Target already set: a second unite with a different target must not
	// overwrite it.
	other := NewLocation("b.cpp", 1)
	changed = ci.Unite(CursorInfo{Target: &other, References: LocationSet{}})
	require.False(t, changed)
	require.Equal(t, target, *ci.Target)
}

func TestCursorInfoUniteFirstWriterWinsSymbolLength(t *testing.T) {
	ci := CursorInfo{Kind: 7, SymbolLength: 3, References: LocationSet{}}
	changed := ci.Unite(CursorInfo{Kind: 99, SymbolLength: 9, References: LocationSet{}})

	require.False(t, changed)
	require.EqualValues(t, 7, ci.Kind)
	require.EqualValues(t, 3, ci.SymbolLength)
}

func TestCursorInfoUniteIsCommutative(t *testing.T) {
	locA := NewLocation("a.cpp", 1)
	locB := NewLocation("a.cpp", 2)
	left := CursorInfo{References: NewLocationSet(locA)}
	right := CursorInfo{References: NewLocationSet(locB)}

	ab := left.Clone()
	ab.Unite(right)
	ba := right.Clone()
	ba.Unite(left)

	require.Equal(t, ab.References, ba.References)
}

func TestCursorInfoDirtyClearsReferencesAndTarget(t *testing.T) {
	target := NewLocation("dirty.cpp", 4)
	ref := NewLocation("dirty.cpp", 8)
	clean := NewLocation("clean.cpp", 1)

	ci := CursorInfo{Target: &target, References: NewLocationSet(ref, clean)}
	dirty := map[string]struct{}{"dirty.cpp": {}}

	changed := ci.Dirty(dirty)
	require.True(t, changed)
	require.Nil(t, ci.Target)
	require.NotContains(t, ci.References, ref)
	require.Contains(t, ci.References, clean)
	require.False(t, ci.IsEmpty())
}

func TestCursorInfoDirtyCanEmptyOut(t *testing.T) {
	target := NewLocation("dirty.cpp", 4)
	ci := CursorInfo{Target: &target, References: LocationSet{}}

	ci.Dirty(map[string]struct{}{"dirty.cpp": {}})
	require.True(t, ci.IsEmpty())
}

func TestNamePermutationsFooBarInt(t *testing.T) {
	// innermost first: the function, then its enclosing class.
	perms := NamePermutations([]string{"bar(int)", "Foo"})

	require.Contains(t, perms, "bar(int)")
	require.Contains(t, perms, "bar")
	require.Contains(t, perms, "Foo::bar(int)")
	require.Contains(t, perms, "Foo::bar")
}

func TestNamePermutationsFreeFunction(t *testing.T) {
	perms := NamePermutations([]string{"foo(int)"})

	require.ElementsMatch(t, []string{"foo(int)", "foo"}, perms)
}

func TestExtractAndRewritePCHArgs(t *testing.T) {
	args := []string{"-x", "c++", "-include-pch", "pch.h", "-DFOO"}

	headers := ExtractPCHHeaders(args)
	require.Equal(t, []string{"pch.h"}, headers)

	require.True(t, IsPCHArgs([]string{"-x", "c++-header"}))
	require.False(t, IsPCHArgs(args))

	ready := map[string]struct{}{"pch.h": {}}
	rewritten := RewritePCHArgs(args, ready, func(h string) string { return "/store/" + h })
	require.Equal(t, []string{"-x", "c++", "-include-pch", "/store/pch.h", "-DFOO"}, rewritten)

	dropped := RewritePCHArgs(args, map[string]struct{}{}, func(h string) string { return h })
	require.Equal(t, []string{"-x", "c++", "-DFOO"}, dropped)
}
