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

// Package relink holds the data model shared by the relinker's
// dependency analyzer, action executor and planner: library identity,
// the owned/copied handle distinction, the planned relink DAG, and the
// rewrite map published to the enclosing build system.
package relink

import "android/relinker/toolchain"

// Node identifies a node in the host build graph. It is opaque to this
// package — callers supply whatever comparable identity their build graph
// uses (a module pointer, an interned string, a small struct) — and must
// be usable as a map key.
type Node interface{}

// LibraryKey uniquely identifies one library within the package being
// relinked.
type LibraryKey struct {
	Cpu  toolchain.Cpu
	Name string
}

// HandleKind distinguishes a LibraryHandle whose producer is known from
// one whose provenance is opaque.
type HandleKind int

const (
	// Owned libraries have a known producer node in the host build graph
	// and can be queried for dependents.
	Owned HandleKind = iota
	// Copied libraries have unknown provenance: a sealed input with no
	// resolvable dependents, conservatively treated as a potential caller
	// of everything.
	Copied
)

// LibraryHandle is the source-of-truth pointer to a library file, tagged
// by whether its producer is known.
type LibraryHandle struct {
	Path     string
	Kind     HandleKind
	producer Node // valid only when Kind == Owned
}

// OwnedHandle returns a LibraryHandle for a library produced by a known
// build-graph node.
func OwnedHandle(path string, producer Node) LibraryHandle {
	return LibraryHandle{Path: path, Kind: Owned, producer: producer}
}

// CopiedHandle returns a LibraryHandle for a library of unknown
// provenance.
func CopiedHandle(path string) LibraryHandle {
	return LibraryHandle{Path: path, Kind: Copied}
}

// Producer returns the handle's producer node and true if it is Owned;
// otherwise it returns (nil, false).
func (h LibraryHandle) Producer() (Node, bool) {
	if h.Kind != Owned {
		return nil, false
	}
	return h.producer, true
}

// RelinkNode is one planned relink.
type RelinkNode struct {
	Key   LibraryKey
	Input LibraryHandle

	// UpstreamDeps are the nodes whose symbol demands constrain this
	// relink. Every element targets the same Cpu as this node, or is a
	// Copied node (copied nodes are upstream of every owned node of
	// matching Cpu; see the planner's rationale in relinkplan's planCpu).
	UpstreamDeps []*RelinkNode

	// Output is the path the relinked library will occupy.
	Output string

	// SymbolsNeededOutput is the path of this node's "symbols needed"
	// artifact, written once this node's action has run.
	SymbolsNeededOutput string
}

// IsCopied reports whether this node relinks a copied (unknown
// provenance) library.
func (n *RelinkNode) IsCopied() bool {
	return n.Input.Kind == Copied
}

// RewriteMap maps each input library to its relinked output path,
// partitioned the way the input set was partitioned between owned
// libraries and copied (asset) libraries.
type RewriteMap struct {
	RelinkedLibs       map[LibraryKey]string
	RelinkedLibsAssets map[LibraryKey]string
}

// NewRewriteMap returns an empty RewriteMap ready for population.
func NewRewriteMap() RewriteMap {
	return RewriteMap{
		RelinkedLibs:       make(map[LibraryKey]string),
		RelinkedLibsAssets: make(map[LibraryKey]string),
	}
}

// Lookup returns the relinked output path for key, searching both
// partitions, and whether it was found.
func (m RewriteMap) Lookup(key LibraryKey) (string, bool) {
	if p, ok := m.RelinkedLibs[key]; ok {
		return p, true
	}
	p, ok := m.RelinkedLibsAssets[key]
	return p, ok
}
