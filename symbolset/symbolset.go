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

// Package symbolset represents a set of linker symbol names and their
// canonical on-disk serialization: one name per line, sorted, LF
// terminated. The serialized form is the set's canonical form — two Sets
// are equal iff their serialized bytes are identical.
package symbolset

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"android/relinker/internal/atomicfile"
)

// Set is an unordered collection of linker symbol names, including any
// @VERSION or @@VERSION suffix verbatim.
type Set struct {
	m map[string]struct{}
}

// Empty returns a new, empty Set.
func Empty() *Set {
	return &Set{m: make(map[string]struct{})}
}

// New returns a Set containing names.
func New(names ...string) *Set {
	s := Empty()
	for _, n := range names {
		s.Insert(n)
	}
	return s
}

// Insert adds name to the set. A no-op if already present.
func (s *Set) Insert(name string) {
	s.m[name] = struct{}{}
}

// Contains reports whether name is a member of the set.
func (s *Set) Contains(name string) bool {
	_, ok := s.m[name]
	return ok
}

// Len returns the number of members.
func (s *Set) Len() int {
	return len(s.m)
}

// Sorted returns the set's members in sorted order.
func (s *Set) Sorted() []string {
	out := make([]string, 0, len(s.m))
	for n := range s.m {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Union returns a new Set containing every member of s and other.
func (s *Set) Union(other *Set) *Set {
	out := Empty()
	for n := range s.m {
		out.Insert(n)
	}
	for n := range other.m {
		out.Insert(n)
	}
	return out
}

// Intersect returns a new Set containing members present in both s and
// other.
func (s *Set) Intersect(other *Set) *Set {
	out := Empty()
	small, big := s, other
	if len(big.m) < len(small.m) {
		small, big = big, small
	}
	for n := range small.m {
		if big.Contains(n) {
			out.Insert(n)
		}
	}
	return out
}

// Equal reports whether s and other have identical membership, i.e.
// whether their canonical serialized forms would be byte-identical.
func (s *Set) Equal(other *Set) bool {
	if len(s.m) != len(other.m) {
		return false
	}
	for n := range s.m {
		if !other.Contains(n) {
			return false
		}
	}
	return true
}

// Serialize returns the canonical on-disk form: members sorted
// lexicographically, one per line, LF terminated, no trailing blank line,
// no comments.
func (s *Set) Serialize() []byte {
	names := s.Sorted()
	var b strings.Builder
	for _, n := range names {
		b.WriteString(n)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// Write serializes s to path using the temp-write-then-rename discipline.
func (s *Set) Write(path string) error {
	return atomicfile.Write(path, s.Serialize())
}

// MissingArtifactError reports that Read was asked to load a symbols file
// that does not exist.
type MissingArtifactError struct {
	Path string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("missing symbol artifact: %s", e.Path)
}

// Read loads a Set previously written by Write. Reading a file that does
// not exist fails with *MissingArtifactError.
func Read(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &MissingArtifactError{Path: path}
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defer f.Close()

	s := Empty()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		s.Insert(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return s, nil
}

// UnionAll unions every Set in sets, returning Empty() if sets is empty.
func UnionAll(sets []*Set) *Set {
	out := Empty()
	for _, s := range sets {
		out = out.Union(s)
	}
	return out
}
