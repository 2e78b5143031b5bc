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

// Package clangx narrows github.com/go-clang/v3.6/clang down to the
// contract the parse job actually needs: create an index, parse a
// translation unit, walk its inclusions and its AST, and save/dispose it.
// Nothing above this package touches the clang package directly; only this
// package and the packages that import it (parsejob, indexer, cmd/navcd)
// need the libclang bindings to build.
package clangx

import (
	"path/filepath"

	"github.com/go-clang/v3.6/clang"
)

// ChildVisitResult mirrors clang.ChildVisitResult so callers never import
// the clang package.
type ChildVisitResult = clang.ChildVisitResult

const (
	ChildVisit_Break    = clang.ChildVisit_Break
	ChildVisit_Continue = clang.ChildVisit_Continue
	ChildVisit_Recurse  = clang.ChildVisit_Recurse
)

// Cursor narrows clang.Cursor to the operations §6 names: kind, spelling,
// display name, location, referenced cursor, definition cursor, semantic
// parent, is-definition, is-reference, is-invalid, equal.
type Cursor struct {
	raw clang.Cursor
}

func wrapCursor(c clang.Cursor) Cursor { return Cursor{raw: c} }

func (c Cursor) IsNull() bool       { return c.raw.IsNull() }
func (c Cursor) IsInvalid() bool    { return clang.IsInvalid(c.raw.Kind()) }
func (c Cursor) Kind() uint32       { return uint32(c.raw.Kind()) }
func (c Cursor) Spelling() string   { return c.raw.Spelling() }
func (c Cursor) DisplayName() string { return c.raw.DisplayName() }

func (c Cursor) IsDefinition() bool { return c.raw.IsCursorDefinition() }
func (c Cursor) IsReference() bool  { return clang.IsReference(c.raw.Kind()) }

func (c Cursor) Equal(other Cursor) bool { return c.raw.Equal(other.raw) }

func (c Cursor) Referenced() Cursor { return wrapCursor(c.raw.Referenced()) }
func (c Cursor) Definition() Cursor { return wrapCursor(c.raw.Definition()) }
func (c Cursor) SemanticParent() Cursor {
	return wrapCursor(c.raw.SemanticParent())
}

// Location returns the canonicalized file path and byte offset of the
// cursor's source location, or ok=false if the cursor has no file location
// (a null location, per §4.F.i "if null, recurse and continue").
func (c Cursor) Location() (path string, offset uint32, ok bool) {
	file, _, _, off := c.raw.Location().FileLocation()
	name := file.Name()
	if name == "" {
		return "", 0, false
	}
	return filepath.Clean(name), uint32(off), true
}

// IsAccessSpecifier reports whether the cursor is a C++ access-specifier
// node (§4.F.i: "skip access-specifier cursors but recurse into their
// children").
func (c Cursor) IsAccessSpecifier() bool {
	return c.raw.Kind() == clang.Cursor_CXXAccessSpecifier
}

// IsCallExpr, IsConstructor, IsTypeRef, IsCXXMethod name the cursor kinds
// §4.F.i singles out for special-casing.
func (c Cursor) IsCallExpr() bool    { return c.raw.Kind() == clang.Cursor_CallExpr }
func (c Cursor) IsConstructor() bool { return c.raw.Kind() == clang.Cursor_Constructor }
func (c Cursor) IsTypeRef() bool     { return c.raw.Kind() == clang.Cursor_TypeRef }
func (c Cursor) IsCXXMethod() bool   { return c.raw.Kind() == clang.Cursor_CXXMethod }

// IsFunctionDecl reports whether the cursor is a free-function declaration.
func (c Cursor) IsFunctionDecl() bool { return c.raw.Kind() == clang.Cursor_FunctionDecl }

// IsMemberFunctionKind reports whether the cursor is one of {Constructor,
// Destructor, CXXMethod}, used to decide is_member_function edges.
func (c Cursor) IsMemberFunctionKind() bool {
	switch c.raw.Kind() {
	case clang.Cursor_Constructor, clang.Cursor_Destructor, clang.Cursor_CXXMethod:
		return true
	default:
		return false
	}
}

// TranslationUnit narrows clang.TranslationUnit.
type TranslationUnit struct {
	raw clang.TranslationUnit
}

// IsNull reports whether parsing failed to produce a TU (§7 ParseFailed).
func (t TranslationUnit) IsNull() bool { return t.raw == nil }

// Dispose frees the translation unit's native resources.
func (t TranslationUnit) Dispose() {
	if t.raw != nil {
		t.raw.Dispose()
	}
}

// Save writes the translation unit to path as a PCH artifact (§4.F step 6).
func (t TranslationUnit) Save(path string) error {
	if res := t.raw.Save(path, clang.SaveTranslationUnit_None); res != clang.SaveError_None {
		return PCHSaveError{Code: int(res)}
	}
	return nil
}

// PCHSaveError wraps a non-zero clang save-error code.
type PCHSaveError struct{ Code int }

func (e PCHSaveError) Error() string {
	return "clangx: translation unit save failed"
}

// Root returns the TU's root cursor, the entry point for both the
// inclusion visitor and the AST visitor.
func (t TranslationUnit) Root() Cursor {
	return wrapCursor(t.raw.TranslationUnitCursor())
}

// VisitInclusions calls fn for every #include directive reached while
// walking the preprocessing record, with the included file's canonical
// path and the include stack (outermost last, matching §4.F step 4's "for
// each frame in the include stack").
func (t TranslationUnit) VisitInclusions(fn func(included string, stack []string)) {
	t.raw.GetInclusions(func(file clang.File, stackLocs []clang.SourceLocation) {
		included := filepath.Clean(file.Name())
		if included == "" {
			return
		}
		stack := make([]string, 0, len(stackLocs))
		for _, loc := range stackLocs {
			f, _, _, _ := loc.FileLocation()
			name := f.Name()
			if name == "" {
				continue
			}
			stack = append(stack, filepath.Clean(name))
		}
		fn(included, stack)
	})
}

// VisitAST performs a depth-first walk of the TU starting at root, calling
// fn(cursor, parent) for every node; fn's return value controls recursion
// exactly like clang's own child-visitor contract.
func (t TranslationUnit) VisitAST(fn func(cursor, parent Cursor) ChildVisitResult) {
	t.Root().raw.Visit(func(cursor, parent clang.Cursor) clang.ChildVisitResult {
		return fn(wrapCursor(cursor), wrapCursor(parent))
	})
}

// Index narrows clang.Index: the factory for parsing translation units.
type Index struct {
	raw clang.Index
}

// NewIndex creates a parser index. excludeDeclsFromPCH and displayDiagnostics
// mirror clang_createIndex's two int flags.
func NewIndex(excludeDeclsFromPCH, displayDiagnostics bool) *Index {
	return &Index{raw: clang.NewIndex(boolToInt(excludeDeclsFromPCH), boolToInt(displayDiagnostics))}
}

// Dispose releases the index.
func (idx *Index) Dispose() { idx.raw.Dispose() }

// ParseIncomplete parses path with args in "incomplete" mode (§4.F step 3:
// detailed preprocessing record, tolerant of unresolved includes), so PCH
// headers and missing files degrade to a null TU rather than a hard error.
func (idx *Index) ParseIncomplete(path string, args []string) TranslationUnit {
	tu := idx.raw.ParseTranslationUnit(
		path, args, nil,
		clang.TranslationUnit_DetailedPreprocessingRecord|clang.TranslationUnit_Incomplete,
	)
	return TranslationUnit{raw: tu}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
