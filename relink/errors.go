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

package relink

import "fmt"

// EmptyInputError reports that Planner.Plan was called with no libraries
// at all. The check runs at the start of Plan; building a Planner value
// performs no validation of its own.
type EmptyInputError struct{}

func (e *EmptyInputError) Error() string {
	return "no libraries supplied to relink planner"
}

// CyclicLibraryGraphError reports that the induced owned-library
// dependency graph contains a cycle, detected while the dependency
// analyzer walks dependents. Cycle holds the build-graph nodes on the
// cycle, in traversal order, ending with the repeated first node.
type CyclicLibraryGraphError struct {
	Cycle []Node
}

func (e *CyclicLibraryGraphError) Error() string {
	return fmt.Sprintf("cyclic library dependency graph: %v", e.Cycle)
}

// UnknownCpuError reports that an input library names a Cpu with no
// registered toolchain.
type UnknownCpuError struct {
	Key LibraryKey
}

func (e *UnknownCpuError) Error() string {
	return fmt.Sprintf("no toolchain registered for cpu %q (library %q)", e.Key.Cpu, e.Key.Name)
}

// MissingSymbolArtifactError reports that an upstream "symbols needed"
// file was absent when a RelinkAction started. This should never happen
// if the scheduler honors the declared dependency edges; when it does,
// the action fails rather than guessing.
type MissingSymbolArtifactError struct {
	Path string
}

func (e *MissingSymbolArtifactError) Error() string {
	return fmt.Sprintf("missing upstream symbols-needed artifact: %s", e.Path)
}

// ToolchainError reports that the symbol dumper or linker exited non-zero.
type ToolchainError struct {
	Tool string
	Err  error
}

func (e *ToolchainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Tool, e.Err)
}

func (e *ToolchainError) Unwrap() error { return e.Err }

// LinkError reports that the linker ran to completion but produced a
// malformed result: a required symbol is missing, the defined set doesn't
// match what was requested, or the soname changed.
type LinkError struct {
	LibraryPath string
	Reason      string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("relink of %s failed: %s", e.LibraryPath, e.Reason)
}

// IoError reports a read or write failure unrelated to a missing symbol
// artifact (permission, disk, truncated file, and so on).
type IoError struct {
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("i/o error on %s: %s", e.Path, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }
