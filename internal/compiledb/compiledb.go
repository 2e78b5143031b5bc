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

// Package compiledb ingests compile_commands.json files and recovers, per
// translation unit, the argument vector the indexer should parse it with.
package compiledb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Entry is one record of a compile_commands.json file.
type Entry struct {
	Directory string `json:"directory"`
	Command   string `json:"command"`
	File      string `json:"file"`
}

// DB maps a translation-unit path to the argument vector it should be
// parsed with, recovered from one or more compile_commands.json files.
type DB struct {
	args map[string][]string
}

// Load reads compile_commands.json from each directory in dirs and builds
// a DB keyed by the cleaned file path from each entry. A directory without
// the file is skipped, not an error; a malformed file is.
func Load(dirs []string) (*DB, error) {
	db := &DB{args: map[string][]string{}}

	for _, dir := range dirs {
		path := filepath.Join(dir, "compile_commands.json")
		f, err := os.Open(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("compiledb: opening %s: %w", path, err)
		}

		var entries []Entry
		decodeErr := json.NewDecoder(f).Decode(&entries)
		f.Close()
		if decodeErr != nil {
			return nil, fmt.Errorf("compiledb: decoding %s: %w", path, decodeErr)
		}

		fixPaths(entries, dir)
		for _, e := range entries {
			db.args[e.File] = extractFlags(e.Command, dir)
		}
	}

	return db, nil
}

// Args returns the argument vector recorded for file, or (nil, false) if
// file was never seen in any compile_commands.json.
func (db *DB) Args(file string) ([]string, bool) {
	args, ok := db.args[file]
	return args, ok
}

// Files returns every (file, args) pair recorded, in no particular order;
// used to seed the initial index pass.
func (db *DB) Files() map[string][]string {
	out := make(map[string][]string, len(db.args))
	for f, a := range db.args {
		out[f] = a
	}
	return out
}

// fixPaths rewrites each entry's File to match the relative-or-absolute
// convention of the input directory, the same normalization the original
// parser.Parser applied so lookups by path agree between the compile
// database and the filesystem walk.
func fixPaths(entries []Entry, dir string) {
	if filepath.IsAbs(dir) {
		for i := range entries {
			entries[i].File = filepath.Clean(entries[i].File)
		}
		return
	}

	wd, err := os.Getwd()
	if err != nil {
		return
	}
	for i := range entries {
		rel, err := filepath.Rel(wd, entries[i].File)
		if err != nil {
			continue
		}
		entries[i].File = filepath.Clean(rel)
	}
}

// fixIncludeDir rewrites an -I argument's directory so it matches the
// relative-or-absolute convention of base.
func fixIncludeDir(argDir, base string) string {
	if filepath.IsAbs(base) {
		if filepath.IsAbs(argDir) {
			return argDir
		}
		if abs, err := filepath.Abs(argDir); err == nil {
			return filepath.Clean(abs)
		}
		return argDir
	}

	if filepath.IsAbs(argDir) {
		wd, err := os.Getwd()
		if err != nil {
			return filepath.Clean(argDir)
		}
		if rel, err := filepath.Rel(wd, argDir); err == nil {
			return filepath.Clean(rel)
		}
		return filepath.Clean(argDir)
	}

	return filepath.Clean(filepath.Join(base, argDir))
}

// extractFlags pulls the -D and -I flags out of a shell-style command
// string, the only flags the parser needs (everything else in a compile
// invocation - the compiler name, -c, -o, and so on - is irrelevant to
// semantic parsing).
func extractFlags(command, dir string) []string {
	var args []string
	fields := strings.Fields(command)

	for i := 0; i < len(fields); i++ {
		arg := fields[i]
		switch {
		case arg == "-D" && i+1 < len(fields):
			args = append(args, arg, fields[i+1])
			i++
		case strings.HasPrefix(arg, "-D"):
			args = append(args, arg)
		case arg == "-I" && i+1 < len(fields):
			args = append(args, "-I", fixIncludeDir(fields[i+1], dir))
			i++
		case strings.HasPrefix(arg, "-I"):
			args = append(args, "-I", fixIncludeDir(strings.TrimPrefix(arg, "-I"), dir))
		}
	}

	return args
}
