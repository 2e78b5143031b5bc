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

import "strings"

// NamePermutations walks a chain of semantic-parent display names, innermost
// first (e.g. ["bar(int)", "Foo"] for "Foo::bar(int)"), and returns every
// qualified-name prefix obtained by prepending enclosing scopes, in both
// paren-included and paren-stripped form. The same spelling is never
// returned twice.
func NamePermutations(chain []string) []string {
	if len(chain) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	var withParam, noParam string
	for _, name := range chain {
		if name == "" {
			break
		}
		if withParam == "" {
			withParam = name
			noParam = stripParams(name)
		} else {
			withParam = name + "::" + withParam
			noParam = name + "::" + noParam
		}
		add(withParam)
		if withParam != noParam {
			add(noParam)
		}
	}

	return out
}

func stripParams(name string) string {
	if idx := strings.IndexByte(name, '('); idx != -1 {
		return name[:idx]
	}
	return name
}
