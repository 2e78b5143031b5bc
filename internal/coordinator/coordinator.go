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

// Package coordinator implements component E: admission, PCH gating, job
// dispatch to a bounded worker pool, completion tracking, and flush
// cadence. Dependency commits are serialized through a single-consumer
// event loop so concurrent parse jobs never race on the dependency graph.
package coordinator

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/charlesturner7c5/rtags/internal/model"
)

// DependencyCommitter is the narrow slice of the dependency registry's API
// the coordinator needs. Defined locally to avoid a coordinator ->
// dependency import.
type DependencyCommitter interface {
	Commit(delta model.DependencyDelta) error
}

// Flusher is the narrow slice of the Accumulator's API the coordinator
// needs to drive flush cadence.
type Flusher interface {
	Notify()
}

// RunFunc runs one admitted parse job and returns its dependency delta.
// Dirty jobs do not go through the coordinator's pool.
type RunFunc func() model.DependencyDelta

// syncInterval mirrors the original's SYNCINTERVAL: after this many
// completions since the last flush notification, nudge the flusher even
// if the worker pool isn't empty yet.
const syncInterval = 10

type eventKind int

const (
	eventDependency eventKind = iota
	eventJobDone
)

type event struct {
	kind  eventKind
	delta model.DependencyDelta
	id    int
	input string
}

// Coordinator is the job admission and completion authority (§4.E).
type Coordinator struct {
	mu              sync.Mutex
	cond            *sync.Cond
	indexing        map[string]struct{}
	pchHeaderError  map[string]struct{}
	jobs            map[int]struct{}
	lastJobID       int
	jobCounter      int
	timerRunning    bool
	started         time.Time

	defaultArgsMu sync.RWMutex
	defaultArgs   []string

	deps    DependencyCommitter
	flusher Flusher
	pool    *pool.Pool
	logger  zerolog.Logger

	eventCh   chan event
	stopCh    chan struct{}
	doneCh    chan struct{}
	jobDoneCh chan int

	dispatch func(id int, input string, args []string) RunFunc
}

// New builds a Coordinator bounded to workers concurrent jobs. dispatch
// builds the RunFunc for a newly admitted job (a parse job closure); it is
// supplied by the caller so this package never imports parsejob.
func New(workers int, deps DependencyCommitter, flusher Flusher, logger zerolog.Logger, dispatch func(id int, input string, args []string) RunFunc) *Coordinator {
	c := &Coordinator{
		indexing:       map[string]struct{}{},
		pchHeaderError: map[string]struct{}{},
		jobs:           map[int]struct{}{},
		lastJobID:      0,
		deps:           deps,
		flusher:        flusher,
		pool:           pool.New().WithMaxGoroutines(workers),
		logger:         logger,
		eventCh:        make(chan event, 64),
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
		jobDoneCh:      make(chan int, 64),
		dispatch:       dispatch,
	}
	c.cond = sync.NewCond(&c.mu)
	go c.runEventLoop()
	return c
}

// SetDefaultArgs records the argument vector appended to every job's own
// arguments.
func (c *Coordinator) SetDefaultArgs(args []string) {
	c.defaultArgsMu.Lock()
	defer c.defaultArgsMu.Unlock()
	c.defaultArgs = append([]string(nil), args...)
}

// DefaultArgs returns a copy of the current default argument vector.
func (c *Coordinator) DefaultArgs() []string {
	c.defaultArgsMu.RLock()
	defer c.defaultArgsMu.RUnlock()
	return append([]string(nil), c.defaultArgs...)
}

// Index admits input for indexing with args. Returns -1 if input is
// already in flight, matching the original's sentinel.
func (c *Coordinator) Index(input string, args []string) int {
	c.mu.Lock()
	if _, inFlight := c.indexing[input]; inFlight {
		c.mu.Unlock()
		return -1
	}

	c.lastJobID++
	id := c.lastJobID
	c.indexing[input] = struct{}{}
	c.jobs[id] = struct{}{}
	if !c.timerRunning {
		c.timerRunning = true
		c.started = time.Now()
	}
	c.mu.Unlock()

	run := c.dispatch(id, input, args)
	c.pool.Go(func() {
		delta := run()
		c.eventCh <- event{kind: eventDependency, delta: delta}
		c.eventCh <- event{kind: eventJobDone, id: id, input: input}
	})

	return id
}

// AwaitPCHReady implements the PCHWaiter contract parse jobs need: block
// until none of headers is still in flight, and report which of them
// should be dropped because their last production failed.
func (c *Coordinator) AwaitPCHReady(headers []string) map[string]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		blocked := false
		for _, h := range headers {
			if _, inFlight := c.indexing[h]; inFlight {
				blocked = true
				break
			}
		}
		if !blocked {
			break
		}
		c.cond.Wait()
	}

	failed := map[string]struct{}{}
	for _, h := range headers {
		if _, bad := c.pchHeaderError[h]; bad {
			failed[h] = struct{}{}
		}
	}
	return failed
}

// MarkPCHError records that header's PCH production failed, so future
// consumers drop -include-pch for it.
func (c *Coordinator) MarkPCHError(header string) {
	c.mu.Lock()
	c.pchHeaderError[header] = struct{}{}
	c.mu.Unlock()
}

// runEventLoop is the coordinator's single consumer: it serializes
// dependency commits ahead of the done signal for the same job (§5
// "DependencyEvent ... observed before J's done signal").
func (c *Coordinator) runEventLoop() {
	defer close(c.doneCh)
	for {
		// Drain whatever is already queued before honoring a pending
		// stop, so Close never drops a dependency/done pair a finished
		// job already handed off.
		select {
		case ev := <-c.eventCh:
			c.handleEvent(ev)
			continue
		default:
		}

		select {
		case ev := <-c.eventCh:
			c.handleEvent(ev)
		case <-c.stopCh:
			return
		}
	}
}

func (c *Coordinator) handleEvent(ev event) {
	switch ev.kind {
	case eventDependency:
		if len(ev.delta) == 0 {
			return
		}
		if err := c.deps.Commit(ev.delta); err != nil {
			c.logger.Warn().Err(err).Msg("coordinator: committing dependency event")
		}
	case eventJobDone:
		c.onJobDone(ev.id, ev.input)
	}
}

// onJobDone implements §4.E's on_job_done.
func (c *Coordinator) onJobDone(id int, input string) {
	c.mu.Lock()
	delete(c.jobs, id)
	if _, ok := c.indexing[input]; ok {
		delete(c.indexing, input)
	}
	c.cond.Broadcast()
	c.jobCounter++

	empty := len(c.jobs) == 0
	notify := empty || c.jobCounter >= syncInterval
	if notify {
		c.jobCounter = 0
	}
	var elapsed time.Duration
	if empty && c.timerRunning {
		c.timerRunning = false
		elapsed = time.Since(c.started)
	}
	c.mu.Unlock()

	if notify {
		c.flusher.Notify()
	}
	if empty {
		c.logger.Info().Dur("elapsed", elapsed).Msg("indexing queue drained")
	}

	select {
	case c.jobDoneCh <- id:
	default:
		c.logger.Warn().Int("job", id).Msg("done signal dropped, no reader keeping up")
	}
}

// Done returns a channel that receives a job's id each time it finishes,
// letting a caller (or a future RPC front end) observe completion without
// polling Idle.
func (c *Coordinator) Done() <-chan int {
	return c.jobDoneCh
}

// Idle reports whether no job is currently in flight.
func (c *Coordinator) Idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs) == 0
}

// Close stops accepting new dependency/done events and waits for every
// dispatched job to finish running. Outstanding jobs are allowed to run to
// completion (§5 "only shutdown cancellation exists").
func (c *Coordinator) Close() {
	c.pool.Wait()
	close(c.stopCh)
	<-c.doneCh
}
