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

// Package parsejob implements component F: parse one translation unit, run
// the inclusion and AST visitors, resolve intra-unit references, optionally
// save a PCH artifact, and submit the resulting deltas.
package parsejob

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/charlesturner7c5/rtags/internal/clangx"
	"github.com/charlesturner7c5/rtags/internal/model"
)

// PCHWaiter is the narrow slice of the coordinator's state a parse job
// needs during its PCH wait step (§4.F step 1). Defined locally to avoid a
// parsejob -> coordinator import.
type PCHWaiter interface {
	// AwaitPCHReady blocks until none of headers is still being produced,
	// and returns the subset that should be dropped from args because
	// their last production failed.
	AwaitPCHReady(headers []string) (failed map[string]struct{})

	// MarkPCHError records that header's PCH artifact failed to save, so
	// future AwaitPCHReady calls drop -include-pch from their args (§7
	// PchSaveFailed).
	MarkPCHError(header string)
}

// Sink receives the job's outputs (§4.F step 10).
type Sink interface {
	AddSymbols(delta map[model.Location]model.CursorInfo)
	AddSymbolNames(delta map[string]model.LocationSet)
	AddFileInformation(path string, args []string)
	SetPCHDependencies(pchHeader string, headers model.PathSet)

	// PCHDependencies returns the transitive header set recorded for a
	// PCH header, so a consuming TU can attribute an edge from each of
	// those headers to itself (§4.D: "consulted when a dependent TU is
	// later indexed, to attribute its dependency edges").
	PCHDependencies(pchHeader string) model.PathSet
}

type reference struct {
	src              model.Location
	target           model.Location
	isMemberFunction bool
}

// Job parses one translation unit end-to-end.
type Job struct {
	ID            int
	StoragePath   string
	Path          string
	Args          []string
	DefaultArgs   []string
	PCHWaiter     PCHWaiter
	Sink          Sink
	Logger        zerolog.Logger

	symbols     map[model.Location]model.CursorInfo
	symbolNames map[string]model.LocationSet
	deps        model.DependencyDelta
	refs        []reference
	isPch       bool
	pchHeaders  model.PathSet
}

// Run executes the job and reports the dependency delta it discovered, for
// the coordinator to commit ahead of the job's done event. A parse failure is
// non-fatal: Run returns a nil delta and the caller still emits done.
func (j *Job) Run() model.DependencyDelta {
	j.symbols = map[model.Location]model.CursorInfo{}
	j.symbolNames = map[string]model.LocationSet{}
	j.deps = model.DependencyDelta{}
	j.pchHeaders = model.PathSet{}

	args := j.waitForPCH(j.Args)
	args = append(append([]string{}, args...), j.DefaultArgs...)
	j.isPch = model.IsPCHArgs(args)

	idx := clangx.NewIndex(false, false)
	defer idx.Dispose()

	tu := idx.ParseIncomplete(j.Path, args)
	defer tu.Dispose()

	if tu.IsNull() {
		j.Logger.Warn().Str("path", j.Path).Msg("parse failed")
		j.Sink.AddFileInformation(j.Path, j.Args)
		return nil
	}

	j.visitInclusions(tu)
	j.visitAST(tu)

	if j.isPch {
		if err := j.savePCH(tu); err != nil {
			j.Logger.Warn().Err(err).Str("path", j.Path).Msg("pch save failed")
			j.PCHWaiter.MarkPCHError(j.Path)
		} else {
			j.Sink.SetPCHDependencies(j.Path, j.pchHeaders)
		}
	}

	j.resolveReferences()
	j.prune()
	j.addFileMarkers()

	j.Sink.AddSymbols(j.symbols)
	j.Sink.AddSymbolNames(j.symbolNames)
	j.Sink.AddFileInformation(j.Path, j.Args)

	// The dependency delta is committed exactly once, by the coordinator's
	// single-consumer event loop (§4.E, §5) — not here, so concurrent
	// workers never race on the dependency graph.
	return j.deps
}

// waitForPCH implements §4.F step 1 & 2's PCH handling: wait for producers,
// drop failed headers, then rewrite the surviving -include-pch values to
// the project's PCH artifact paths.
func (j *Job) waitForPCH(args []string) []string {
	headers := model.ExtractPCHHeaders(args)
	if len(headers) == 0 {
		return args
	}

	failed := j.PCHWaiter.AwaitPCHReady(headers)

	ready := map[string]struct{}{}
	for _, h := range headers {
		if _, bad := failed[h]; !bad {
			ready[h] = struct{}{}
			for dep := range j.Sink.PCHDependencies(h) {
				j.addDependencyEdge(dep, j.Path)
			}
		}
	}

	return model.RewritePCHArgs(args, ready, func(header string) string {
		return pchArtifactPath(j.StoragePath, header)
	})
}

func pchArtifactPath(storagePath, headerOrTU string) string {
	sum := sha256.Sum256([]byte(headerOrTU))
	return filepath.Join(storagePath, hex.EncodeToString(sum[:]))
}

// savePCH writes the translation unit to a uniquely-named staging file and
// renames it over the header's final artifact path. Two PCH-producing
// jobs can target the same header's SHA-256 path (e.g. a stale job re-run
// after a watch-triggered reindex); writing through a UUID-named stage and
// renaming atomically means a concurrent reader of the final path never
// observes a partially-written PCH.
func (j *Job) savePCH(tu clangx.TranslationUnit) error {
	finalPath := pchArtifactPath(j.StoragePath, j.Path)
	stagePath := finalPath + "." + uuid.NewString() + ".tmp"

	if err := tu.Save(stagePath); err != nil {
		os.Remove(stagePath)
		return err
	}
	return os.Rename(stagePath, finalPath)
}

// visitInclusions implements §4.F step 4.
func (j *Job) visitInclusions(tu clangx.TranslationUnit) {
	tu.VisitInclusions(func(included string, stack []string) {
		if isSystemPath(included) {
			return
		}
		if matchesDefaultArgPath(included, j.DefaultArgs) {
			return
		}

		if len(stack) == 0 {
			j.addDependencyEdge(included, included)
			return
		}
		for _, frame := range stack {
			j.addDependencyEdge(included, frame)
		}

		if j.isPch {
			j.pchHeaders[included] = struct{}{}
		}
	})
}

func (j *Job) addDependencyEdge(included, dependent string) {
	set, ok := j.deps[included]
	if !ok {
		set = model.PathSet{}
		j.deps[included] = set
	}
	set[dependent] = struct{}{}
}

func isSystemPath(path string) bool {
	if strings.HasPrefix(path, "/usr/home/") {
		return false
	}
	return strings.HasPrefix(path, "/usr/")
}

func matchesDefaultArgPath(path string, defaultArgs []string) bool {
	for _, arg := range defaultArgs {
		if strings.Contains(arg, path) {
			return true
		}
	}
	return false
}

// visitAST implements §4.F.i.
func (j *Job) visitAST(tu clangx.TranslationUnit) {
	tu.VisitAST(func(cursor, parent clangx.Cursor) clangx.ChildVisitResult {
		if cursor.IsNull() {
			return clangx.ChildVisit_Continue
		}

		if cursor.IsAccessSpecifier() {
			return clangx.ChildVisit_Recurse
		}

		path, offset, ok := cursor.Location()
		if !ok {
			return clangx.ChildVisit_Recurse
		}

		referenced := cursor.Referenced()
		effective := cursor
		if !referenced.IsNull() && referenced.Equal(cursor) && !cursor.IsDefinition() {
			def := cursor.Definition()
			if !def.IsNull() {
				effective = def
				path, offset, ok = def.Location()
				if !ok {
					return clangx.ChildVisit_Recurse
				}
			}
		}

		loc := model.NewLocation(path, offset)

		if parentIsMethodCall(cursor, parent) {
			return clangx.ChildVisit_Recurse
		}
		if parentIsConstructorTypeRef(cursor, parent) {
			return clangx.ChildVisit_Recurse
		}

		ci, exists := j.symbols[loc]
		if !exists {
			ci = model.NewCursorInfo()
			ci.Kind = model.CursorKind(effective.Kind())
			spelling := effective.Spelling()
			if effective.IsReference() && !referenced.IsNull() {
				spelling = referenced.Spelling()
			}
			ci.SymbolLength = uint32(len(spelling))
			j.symbols[loc] = ci
		}

		if effective.IsDefinition() || effective.IsFunctionDecl() {
			chain := semanticParentChain(effective)
			for _, name := range model.NamePermutations(chain) {
				j.addSymbolName(name, loc)
			}
		}

		if !referenced.IsNull() && !referenced.Equal(cursor) {
			if refPath, refOffset, refOk := referenced.Location(); refOk {
				j.refs = append(j.refs, reference{
					src:              loc,
					target:           model.NewLocation(refPath, refOffset),
					isMemberFunction: cursor.IsMemberFunctionKind() && referenced.IsMemberFunctionKind(),
				})
			}
		}

		return clangx.ChildVisit_Recurse
	})
}

func parentIsMethodCall(cursor, parent clangx.Cursor) bool {
	if !cursor.IsCallExpr() {
		return false
	}
	referenced := cursor.Referenced()
	return !referenced.IsNull() && referenced.IsCXXMethod()
}

func parentIsConstructorTypeRef(cursor, parent clangx.Cursor) bool {
	return cursor.IsTypeRef() && parent.IsConstructor()
}

func semanticParentChain(c clangx.Cursor) []string {
	var chain []string
	cur := c
	for i := 0; i < 32; i++ {
		name := cur.DisplayName()
		if name == "" {
			break
		}
		chain = append(chain, name)
		parent := cur.SemanticParent()
		if parent.IsNull() || parent.IsInvalid() {
			break
		}
		cur = parent
	}
	return chain
}

func (j *Job) addSymbolName(name string, loc model.Location) {
	set, ok := j.symbolNames[name]
	if !ok {
		set = model.LocationSet{}
		j.symbolNames[name] = set
	}
	set[loc] = struct{}{}
}

// resolveReferences implements §4.F step 7.
func (j *Job) resolveReferences() {
	for _, ref := range j.refs {
		target, ok := j.symbols[ref.target]
		if !ok {
			continue
		}

		if ref.isMemberFunction {
			source, srcOk := j.symbols[ref.src]
			if !srcOk {
				source = model.NewCursorInfo()
			}
			source.References.Union(target.References)
			target.References.Union(source.References)

			if source.Target == nil {
				t := ref.src
				target.Target = &t
			}

			j.symbols[ref.src] = source
			j.symbols[ref.target] = target
			continue
		}

		target.References[ref.src] = struct{}{}
		j.symbols[ref.target] = target

		source, srcOk := j.symbols[ref.src]
		if !srcOk {
			source = model.NewCursorInfo()
		}
		t := ref.target
		source.Target = &t
		j.symbols[ref.src] = source
	}
}

// prune implements §4.F step 8.
func (j *Job) prune() {
	for loc, ci := range j.symbols {
		if ci.Target == nil && len(ci.References) == 0 {
			delete(j.symbols, loc)
		}
	}
}

// addFileMarkers implements §4.F step 9.
func (j *Job) addFileMarkers() {
	touched := map[string]struct{}{}
	for loc := range j.symbols {
		touched[loc.Path] = struct{}{}
	}
	for path := range j.deps {
		touched[path] = struct{}{}
	}

	for path := range touched {
		marker := model.NewLocation(path, 1)
		j.addSymbolName(path, marker)
		j.addSymbolName(filepath.Base(path), marker)
	}
}
