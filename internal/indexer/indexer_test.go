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

package indexer

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/charlesturner7c5/rtags/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.StorageDir = t.TempDir()
	cfg.Workers = 2
	cfg.FlushInterval = 50 * time.Millisecond
	return cfg
}

func TestOpenCloseRoundTrip(t *testing.T) {
	ix, err := Open(testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, ix.Close())
}

func TestSetDefaultArgsIsVisibleToDispatch(t *testing.T) {
	ix, err := Open(testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	defer ix.Close()

	ix.SetDefaultArgs([]string{"-DFOO"})
	require.Equal(t, []string{"-DFOO"}, ix.coord.DefaultArgs())

	run := ix.buildRunFunc(1, "a.cpp", []string{"-x", "c++"})
	require.NotNil(t, run)
}

func TestDirectoryChangedOnUnknownDirIsNoop(t *testing.T) {
	ix, err := Open(testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	defer ix.Close()

	ix.DirectoryChanged("/no/such/dir")
}

func TestIndexCompileDBWithNoCompileCommandsIsNoop(t *testing.T) {
	ix, err := Open(testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	defer ix.Close()

	require.NoError(t, ix.IndexCompileDB([]string{t.TempDir()}))
}

func TestDoneDelegatesToCoordinator(t *testing.T) {
	ix, err := Open(testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	defer ix.Close()

	require.Equal(t, ix.coord.Done(), ix.Done())
}
