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

package coordinator

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/charlesturner7c5/rtags/internal/model"
)

type fakeDeps struct {
	mu      sync.Mutex
	commits []model.DependencyDelta
}

func (f *fakeDeps) Commit(delta model.DependencyDelta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, delta)
	return nil
}

type fakeFlusher struct {
	notified int32
	mu       sync.Mutex
}

func (f *fakeFlusher) Notify() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified++
}

func TestIndexRejectsAlreadyInFlight(t *testing.T) {
	block := make(chan struct{})
	deps := &fakeDeps{}
	c := New(2, deps, &fakeFlusher{}, zerolog.Nop(), func(id int, input string, args []string) RunFunc {
		return func() model.DependencyDelta {
			<-block
			return nil
		}
	})
	defer func() {
		close(block)
		c.Close()
	}()

	first := c.Index("a.cpp", nil)
	require.NotEqual(t, -1, first)

	second := c.Index("a.cpp", nil)
	require.Equal(t, -1, second)
}

func TestIndexAllowsDifferentInputsConcurrently(t *testing.T) {
	deps := &fakeDeps{}
	c := New(4, deps, &fakeFlusher{}, zerolog.Nop(), func(id int, input string, args []string) RunFunc {
		return func() model.DependencyDelta { return nil }
	})
	defer c.Close()

	a := c.Index("a.cpp", nil)
	b := c.Index("b.cpp", nil)
	require.NotEqual(t, -1, a)
	require.NotEqual(t, -1, b)
	require.NotEqual(t, a, b)
}

func TestOnJobDoneNotifiesFlusherWhenQueueDrains(t *testing.T) {
	deps := &fakeDeps{}
	flusher := &fakeFlusher{}
	c := New(2, deps, flusher, zerolog.Nop(), func(id int, input string, args []string) RunFunc {
		return func() model.DependencyDelta {
			return model.DependencyDelta{"a.h": model.NewPathSet("a.cpp")}
		}
	})
	defer c.Close()

	c.Index("a.cpp", nil)

	require.Eventually(t, func() bool {
		return c.Idle()
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		flusher.mu.Lock()
		defer flusher.mu.Unlock()
		return flusher.notified > 0
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		deps.mu.Lock()
		defer deps.mu.Unlock()
		return len(deps.commits) > 0
	}, time.Second, 5*time.Millisecond)
}

func TestAwaitPCHReadyUnblocksAfterProducerCompletes(t *testing.T) {
	deps := &fakeDeps{}
	release := make(chan struct{})
	var c *Coordinator
	c = New(2, deps, &fakeFlusher{}, zerolog.Nop(), func(id int, input string, args []string) RunFunc {
		return func() model.DependencyDelta {
			if input == "pch.h" {
				<-release
			}
			return nil
		}
	})
	defer c.Close()

	c.Index("pch.h", nil)

	done := make(chan struct{})
	go func() {
		c.AwaitPCHReady([]string{"pch.h"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("AwaitPCHReady returned before producer finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("AwaitPCHReady never unblocked")
	}
}

func TestMarkPCHErrorIsReflectedInAwaitPCHReady(t *testing.T) {
	c := New(1, &fakeDeps{}, &fakeFlusher{}, zerolog.Nop(), func(id int, input string, args []string) RunFunc {
		return func() model.DependencyDelta { return nil }
	})
	defer c.Close()

	c.MarkPCHError("pch.h")

	failed := c.AwaitPCHReady([]string{"pch.h", "ok.h"})
	require.Contains(t, failed, "pch.h")
	require.NotContains(t, failed, "ok.h")
}

func TestDoneReportsCompletedJobIDs(t *testing.T) {
	c := New(2, &fakeDeps{}, &fakeFlusher{}, zerolog.Nop(), func(id int, input string, args []string) RunFunc {
		return func() model.DependencyDelta { return nil }
	})
	defer c.Close()

	id := c.Index("a.cpp", nil)
	require.NotEqual(t, -1, id)

	select {
	case got := <-c.Done():
		require.Equal(t, id, got)
	case <-time.After(time.Second):
		t.Fatal("Done() never reported the completed job")
	}
}

func TestDefaultArgsRoundTrip(t *testing.T) {
	c := New(1, &fakeDeps{}, &fakeFlusher{}, zerolog.Nop(), func(id int, input string, args []string) RunFunc {
		return func() model.DependencyDelta { return nil }
	})
	defer c.Close()

	c.SetDefaultArgs([]string{"-DFOO"})
	require.Equal(t, []string{"-DFOO"}, c.DefaultArgs())
}
