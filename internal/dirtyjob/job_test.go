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

package dirtyjob

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/charlesturner7c5/rtags/internal/codec"
	"github.com/charlesturner7c5/rtags/internal/model"
	"github.com/charlesturner7c5/rtags/internal/store"
)

type fakeIndexer struct {
	calls []string
}

func (f *fakeIndexer) Index(path string, args []string) int {
	f.calls = append(f.calls, path)
	return len(f.calls)
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestPathFromSymbolKey(t *testing.T) {
	require.Equal(t, "a.cpp", pathFromSymbolKey("a.cpp,000000001"))
	require.Equal(t, "a,b.cpp", pathFromSymbolKey("a,b.cpp,000000001"))
}

func TestSweepSymbolsDeletesDirtyPathEntries(t *testing.T) {
	st := openTestStore(t)

	loc := model.NewLocation("a.cpp", 1)
	b := store.NewBatch()
	b.Put(loc.Key(), codec.EncodeCursorInfo(model.CursorInfo{Kind: 1, References: model.NewLocationSet(model.NewLocation("a.cpp", 2))}))
	require.NoError(t, st.Commit(store.Symbol, b))

	j := &Job{Store: st, Indexer: &fakeIndexer{}, Logger: zerolog.Nop(), Dirty: map[string]struct{}{"a.cpp": {}}}
	require.NoError(t, j.sweepSymbols())

	_, ok, err := st.Get(store.Symbol, []byte(loc.Key()))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSweepSymbolsPrunesDanglingReferences(t *testing.T) {
	st := openTestStore(t)

	loc := model.NewLocation("keep.cpp", 1)
	ref := model.NewLocation("dirty.cpp", 5)
	b := store.NewBatch()
	b.Put(loc.Key(), codec.EncodeCursorInfo(model.CursorInfo{Kind: 1, References: model.NewLocationSet(ref)}))
	require.NoError(t, st.Commit(store.Symbol, b))

	j := &Job{Store: st, Indexer: &fakeIndexer{}, Logger: zerolog.Nop(), Dirty: map[string]struct{}{"dirty.cpp": {}}}
	require.NoError(t, j.sweepSymbols())

	raw, ok, err := st.Get(store.Symbol, []byte(loc.Key()))
	require.NoError(t, err)
	require.False(t, ok, "entry with no remaining target/references should be deleted")
	_ = raw
}

func TestSweepSymbolNamesRemovesDirtyLocations(t *testing.T) {
	st := openTestStore(t)

	good := model.NewLocation("keep.cpp", 1)
	bad := model.NewLocation("dirty.cpp", 1)
	b := store.NewBatch()
	b.Put("foo", codec.EncodeLocationSet(model.NewLocationSet(good, bad)))
	require.NoError(t, st.Commit(store.SymbolName, b))

	j := &Job{Store: st, Indexer: &fakeIndexer{}, Logger: zerolog.Nop(), Dirty: map[string]struct{}{"dirty.cpp": {}}}
	require.NoError(t, j.sweepSymbolNames())

	raw, ok, err := st.Get(store.SymbolName, []byte("foo"))
	require.NoError(t, err)
	require.True(t, ok)
	locs, err := codec.DecodeLocationSet(raw)
	require.NoError(t, err)
	require.Contains(t, locs, good)
	require.NotContains(t, locs, bad)
}

func TestReindexSubmitsPCHBeforeNonPCH(t *testing.T) {
	idx := &fakeIndexer{}
	j := &Job{
		Indexer:    idx,
		PCHArgs:    map[string][]string{"pch.h": {"-x", "c++-header"}},
		NonPCHArgs: map[string][]string{"a.cpp": {"-x", "c++"}},
	}
	j.reindex()

	require.Equal(t, []string{"pch.h", "a.cpp"}, idx.calls)
}
