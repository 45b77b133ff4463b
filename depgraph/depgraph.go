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

// Package depgraph computes, for each owned input library's producer
// node, the set of other owned input libraries that transitively depend
// on it, by walking the host build graph's incoming-edge (dependents)
// relation.
package depgraph

import "android/relinker/relink"

// Oracle exposes the host build graph's reverse-dependency query: the
// nodes that directly depend on (are dependents of) n.
type Oracle interface {
	IncomingEdges(n relink.Node) []relink.Node
}

// NodeSet is an unordered collection of build-graph nodes.
type NodeSet map[relink.Node]struct{}

// Add inserts n into the set.
func (s NodeSet) Add(n relink.Node) {
	s[n] = struct{}{}
}

// Contains reports whether n is a member.
func (s NodeSet) Contains(n relink.Node) bool {
	_, ok := s[n]
	return ok
}

// Union returns a new NodeSet containing every member of s and other.
func (s NodeSet) Union(other NodeSet) NodeSet {
	out := make(NodeSet, len(s)+len(other))
	for n := range s {
		out.Add(n)
	}
	for n := range other {
		out.Add(n)
	}
	return out
}

// analysisState carries the memoization and cycle-detection bookkeeping
// for one Analyze call.
type analysisState struct {
	oracle  Oracle
	owned   NodeSet
	memo    map[relink.Node]NodeSet
	onStack map[relink.Node]bool
	stack   []relink.Node
}

// Analyze computes dependentsOf(p) for every p in ownedProducers: the set
// of other owned producer nodes reachable along dependent-edges from p.
// Copied libraries have no producer node and never appear here.
//
// It walks the graph by memoized recursion over Oracle.IncomingEdges
// rather than an explicit topological sort followed by a reverse pass —
// the two are equivalent (a node's dependents can only be computed once
// every node reachable through its incoming edges has been), and the
// recursion stack doubles as cycle detection.
func Analyze(ownedProducers []relink.Node, oracle Oracle) (map[relink.Node]NodeSet, error) {
	owned := make(NodeSet, len(ownedProducers))
	for _, p := range ownedProducers {
		owned.Add(p)
	}

	st := &analysisState{
		oracle:  oracle,
		owned:   owned,
		memo:    make(map[relink.Node]NodeSet),
		onStack: make(map[relink.Node]bool),
	}

	result := make(map[relink.Node]NodeSet, len(ownedProducers))
	for _, p := range ownedProducers {
		deps, err := st.allDependents(p)
		if err != nil {
			return nil, err
		}
		result[p] = deps
	}
	return result, nil
}

func (st *analysisState) allDependents(n relink.Node) (NodeSet, error) {
	if cached, ok := st.memo[n]; ok {
		return cached, nil
	}
	if st.onStack[n] {
		start := 0
		for i, m := range st.stack {
			if m == n {
				start = i
				break
			}
		}
		cycle := make([]relink.Node, len(st.stack)-start)
		copy(cycle, st.stack[start:])
		return nil, &relink.CyclicLibraryGraphError{Cycle: append(cycle, n)}
	}

	st.onStack[n] = true
	st.stack = append(st.stack, n)

	result := make(NodeSet)
	for _, m := range st.oracle.IncomingEdges(n) {
		sub, err := st.allDependents(m)
		if err != nil {
			return nil, err
		}
		result = result.Union(sub)
		if st.owned.Contains(m) {
			result.Add(m)
		}
	}

	st.stack = st.stack[:len(st.stack)-1]
	st.onStack[n] = false
	st.memo[n] = result
	return result, nil
}
