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

package parsejob

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesturner7c5/rtags/internal/model"
)

type fakePCHWaiter struct {
	failed map[string]struct{}
}

func (f *fakePCHWaiter) AwaitPCHReady(headers []string) map[string]struct{} { return f.failed }
func (f *fakePCHWaiter) MarkPCHError(header string)                         {}

type fakeSink struct {
	pchDeps map[string]model.PathSet
}

func (f *fakeSink) AddSymbols(map[model.Location]model.CursorInfo)    {}
func (f *fakeSink) AddSymbolNames(map[string]model.LocationSet)       {}
func (f *fakeSink) AddFileInformation(path string, args []string)    {}
func (f *fakeSink) SetPCHDependencies(pchHeader string, headers model.PathSet) {}
func (f *fakeSink) PCHDependencies(pchHeader string) model.PathSet {
	return f.pchDeps[pchHeader]
}

func TestWaitForPCHAttributesConsumedHeaderDependencies(t *testing.T) {
	j := &Job{
		Path: "c.cpp",
		PCHWaiter: &fakePCHWaiter{failed: map[string]struct{}{}},
		Sink: &fakeSink{pchDeps: map[string]model.PathSet{
			"pch.h": model.NewPathSet("x.h", "y.h"),
		}},
	}
	j.deps = model.DependencyDelta{}

	j.waitForPCH([]string{"-include-pch", "pch.h"})

	require.Contains(t, j.deps, "x.h")
	require.Contains(t, j.deps["x.h"], "c.cpp")
	require.Contains(t, j.deps, "y.h")
	require.Contains(t, j.deps["y.h"], "c.cpp")
}

func TestWaitForPCHSkipsAttributionForFailedHeader(t *testing.T) {
	j := &Job{
		Path: "c.cpp",
		PCHWaiter: &fakePCHWaiter{failed: map[string]struct{}{"pch.h": {}}},
		Sink: &fakeSink{pchDeps: map[string]model.PathSet{
			"pch.h": model.NewPathSet("x.h"),
		}},
	}
	j.deps = model.DependencyDelta{}

	j.waitForPCH([]string{"-include-pch", "pch.h"})

	require.NotContains(t, j.deps, "x.h")
}

func TestAddDependencyEdgeSelfEdgeWhenStackEmpty(t *testing.T) {
	j := &Job{}
	j.deps = model.DependencyDelta{}

	j.addDependencyEdge("a.h", "a.h")

	require.Contains(t, j.deps, "a.h")
	require.Contains(t, j.deps["a.h"], "a.h")
}

func TestIsSystemPathExcludesUsrHome(t *testing.T) {
	require.True(t, isSystemPath("/usr/include/stdio.h"))
	require.False(t, isSystemPath("/usr/home/dev/project/a.h"))
	require.False(t, isSystemPath("/home/dev/project/a.h"))
}

func TestPruneDropsEmptyCursorInfo(t *testing.T) {
	j := &Job{}
	keep := model.NewLocation("a.cpp", 1)
	drop := model.NewLocation("a.cpp", 2)

	j.symbols = map[model.Location]model.CursorInfo{
		keep: {References: model.NewLocationSet(model.NewLocation("a.cpp", 99))},
		drop: model.NewCursorInfo(),
	}

	j.prune()

	require.Contains(t, j.symbols, keep)
	require.NotContains(t, j.symbols, drop)
}

func TestAddFileMarkersCoversTouchedPaths(t *testing.T) {
	j := &Job{}
	j.symbolNames = map[string]model.LocationSet{}
	loc := model.NewLocation("/proj/a.cpp", 10)
	j.symbols = map[model.Location]model.CursorInfo{loc: {}}
	j.deps = model.DependencyDelta{"/proj/a.h": model.NewPathSet("/proj/a.cpp")}

	j.addFileMarkers()

	require.Contains(t, j.symbolNames, "/proj/a.cpp")
	require.Contains(t, j.symbolNames, "a.cpp")
	require.Contains(t, j.symbolNames, "/proj/a.h")
	require.Contains(t, j.symbolNames, "a.h")
}

func TestResolveReferencesMemberFunctionUnionsReferencesAndLinksTarget(t *testing.T) {
	j := &Job{}
	src := model.NewLocation("a.cpp", 1)
	tgt := model.NewLocation("a.h", 1)
	otherSrcRef := model.NewLocation("a.cpp", 50)
	otherTgtRef := model.NewLocation("a.h", 50)

	srcInfo := model.NewCursorInfo()
	srcInfo.References = model.NewLocationSet(otherSrcRef)
	tgtInfo := model.NewCursorInfo()
	tgtInfo.References = model.NewLocationSet(otherTgtRef)

	j.symbols = map[model.Location]model.CursorInfo{
		src: srcInfo,
		tgt: tgtInfo,
	}
	j.refs = []reference{{src: src, target: tgt, isMemberFunction: true}}

	j.resolveReferences()

	require.Contains(t, j.symbols[src].References, otherTgtRef)
	require.Contains(t, j.symbols[tgt].References, otherSrcRef)
	require.NotContains(t, j.symbols[src].References, tgt)
	require.NotContains(t, j.symbols[tgt].References, src)

	require.NotNil(t, j.symbols[tgt].Target)
	require.Equal(t, src, *j.symbols[tgt].Target)
}

func TestResolveReferencesNonMemberSetsSourceTargetAndTargetReference(t *testing.T) {
	j := &Job{}
	src := model.NewLocation("b.cpp", 1)
	tgt := model.NewLocation("b.cpp", 2)

	j.symbols = map[model.Location]model.CursorInfo{
		src: model.NewCursorInfo(),
		tgt: model.NewCursorInfo(),
	}
	j.refs = []reference{{src: src, target: tgt}}

	j.resolveReferences()

	require.Contains(t, j.symbols[tgt].References, src)
	require.NotNil(t, j.symbols[src].Target)
	require.Equal(t, tgt, *j.symbols[src].Target)
}

func TestResolveReferencesSkipsMissingTarget(t *testing.T) {
	j := &Job{}
	src := model.NewLocation("a.cpp", 1)
	tgt := model.NewLocation("a.h", 1)

	j.symbols = map[model.Location]model.CursorInfo{src: model.NewCursorInfo()}
	j.refs = []reference{{src: src, target: tgt}}

	require.NotPanics(t, func() { j.resolveReferences() })
	require.Empty(t, j.symbols[src].References)
}
