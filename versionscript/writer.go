// Copyright 2024 Google Inc. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package versionscript emits linker version scripts: a single anonymous
// version that exports exactly a given symbol set and hides everything
// else. The output is deterministic for a given input so relinked
// libraries are reproducible, mirroring cc/library.go's stub version
// scripts.
package versionscript

import (
	"strings"

	"android/relinker/internal/atomicfile"
	"android/relinker/symbolset"
)

// Render returns the version script text exporting exactly the union of
// exported and mandatoryLocal, with every other symbol hidden. Mandatory
// symbols are added to the exported set before emission so they are never
// hidden even if no dependent demands them.
func Render(exported, mandatoryLocal *symbolset.Set) []byte {
	all := exported.Union(mandatoryLocal)

	var b strings.Builder
	b.WriteString("{\n")
	b.WriteString("  global:\n")
	for _, name := range all.Sorted() {
		b.WriteString("    ")
		b.WriteString(name)
		b.WriteString(";\n")
	}
	b.WriteString("  local:\n")
	b.WriteString("    *;\n")
	b.WriteString("};\n")
	return []byte(b.String())
}

// Write renders and writes the version script to path using the
// temp-write-then-rename discipline.
func Write(path string, exported, mandatoryLocal *symbolset.Set) error {
	return atomicfile.Write(path, Render(exported, mandatoryLocal))
}
