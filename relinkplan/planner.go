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

// Package relinkplan orchestrates the relinker: partitions inputs by
// Cpu, runs the dependency analyzer, and emits an ordered list of
// RelinkNodes together with the rewrite map the enclosing build system
// publishes to its packaging step.
package relinkplan

import (
	"context"
	"path/filepath"
	"sort"

	"android/relinker/depgraph"
	"android/relinker/internal/atomicfile"
	"android/relinker/relink"
	"android/relinker/symbolfile"
	"android/relinker/symbolset"
	"android/relinker/toolchain"
)

// Planner holds everything needed to plan a relink of one package's worth
// of libraries.
type Planner struct {
	// OwnedLibraries are libraries with a known producer in the host
	// build graph.
	OwnedLibraries map[relink.LibraryKey]relink.LibraryHandle
	// CopiedLibraries are libraries of unknown provenance.
	CopiedLibraries map[relink.LibraryKey]relink.LibraryHandle
	// Toolchains resolves a Toolchain for each Cpu present in the input.
	Toolchains toolchain.Provider
	// Oracle is the host build graph's dependents-of query.
	Oracle depgraph.Oracle
	// OutputDir is the root directory under which relinked libraries and
	// symbols-needed files are written, one subdirectory per Cpu.
	OutputDir string
}

// Plan is the output of planning: the ordered RelinkNode list (suitable
// for a downstream scheduler) and the rewrite map.
type Plan struct {
	Nodes              []*relink.RelinkNode
	GlobalKnownSymbols map[toolchain.Cpu]*symbolset.Set
	RewriteMap         relink.RewriteMap
}

// Plan computes the relink schedule. Library extraction for the
// global-known-symbols pool is the only I/O the planner itself performs;
// it is safe to parallelize per input library since each is read-only,
// though this implementation does it sequentially for determinism of
// error ordering.
func (p *Planner) Plan(ctx context.Context) (*Plan, error) {
	if len(p.OwnedLibraries)+len(p.CopiedLibraries) == 0 {
		return nil, &relink.EmptyInputError{}
	}

	cpus, ownedByCpu, copiedByCpu := partitionByCpu(p.OwnedLibraries, p.CopiedLibraries)

	for _, cpu := range cpus {
		if _, ok := p.Toolchains.ForCpu(cpu); !ok {
			keys := append(append([]relink.LibraryKey{}, ownedByCpu[cpu]...), copiedByCpu[cpu]...)
			sort.Slice(keys, func(i, j int) bool { return keys[i].Name < keys[j].Name })
			return nil, &relink.UnknownCpuError{Key: keys[0]}
		}
	}

	plan := &Plan{
		GlobalKnownSymbols: make(map[toolchain.Cpu]*symbolset.Set, len(cpus)),
		RewriteMap:         relink.NewRewriteMap(),
	}

	for _, cpu := range cpus {
		tc, _ := p.Toolchains.ForCpu(cpu)

		globalKnown, err := p.globalKnownSymbols(ctx, tc, ownedByCpu[cpu], copiedByCpu[cpu])
		if err != nil {
			return nil, err
		}
		plan.GlobalKnownSymbols[cpu] = globalKnown

		nodes, err := p.planCpu(cpu, ownedByCpu[cpu], copiedByCpu[cpu], plan.RewriteMap)
		if err != nil {
			return nil, err
		}
		plan.Nodes = append(plan.Nodes, nodes...)
	}

	return plan, nil
}

func partitionByCpu(
	owned, copied map[relink.LibraryKey]relink.LibraryHandle,
) (cpus []toolchain.Cpu, ownedByCpu, copiedByCpu map[toolchain.Cpu][]relink.LibraryKey) {
	ownedByCpu = make(map[toolchain.Cpu][]relink.LibraryKey)
	copiedByCpu = make(map[toolchain.Cpu][]relink.LibraryKey)
	seen := make(map[toolchain.Cpu]bool)

	for key := range owned {
		ownedByCpu[key.Cpu] = append(ownedByCpu[key.Cpu], key)
		if !seen[key.Cpu] {
			seen[key.Cpu] = true
			cpus = append(cpus, key.Cpu)
		}
	}
	for key := range copied {
		copiedByCpu[key.Cpu] = append(copiedByCpu[key.Cpu], key)
		if !seen[key.Cpu] {
			seen[key.Cpu] = true
			cpus = append(cpus, key.Cpu)
		}
	}

	sort.Slice(cpus, func(i, j int) bool { return cpus[i] < cpus[j] })
	for _, keys := range ownedByCpu {
		sort.Slice(keys, func(i, j int) bool { return keys[i].Name < keys[j].Name })
	}
	for _, keys := range copiedByCpu {
		sort.Slice(keys, func(i, j int) bool { return keys[i].Name < keys[j].Name })
	}
	return cpus, ownedByCpu, copiedByCpu
}

// globalKnownSymbols extracts the defined-symbol set of every input
// library of one Cpu and unions them: the static, plan-scoped pool each
// RelinkAction restricts its own undefined references against.
func (p *Planner) globalKnownSymbols(
	ctx context.Context, tc toolchain.Toolchain, ownedKeys, copiedKeys []relink.LibraryKey,
) (*symbolset.Set, error) {
	known := symbolset.Empty()
	extract := func(key relink.LibraryKey, handle relink.LibraryHandle) error {
		defined, _, err := symbolfile.Extract(ctx, handle.Path, tc)
		if err != nil {
			return &relink.ToolchainError{Tool: tc.SymbolDumper, Err: err}
		}
		known = known.Union(defined)
		return nil
	}
	for _, key := range ownedKeys {
		if err := extract(key, p.OwnedLibraries[key]); err != nil {
			return nil, err
		}
	}
	for _, key := range copiedKeys {
		if err := extract(key, p.CopiedLibraries[key]); err != nil {
			return nil, err
		}
	}
	return known, nil
}

// planCpu builds the RelinkNode DAG for one Cpu's libraries and records
// their rewrite entries.
func (p *Planner) planCpu(
	cpu toolchain.Cpu, ownedKeys, copiedKeys []relink.LibraryKey, rewrite relink.RewriteMap,
) ([]*relink.RelinkNode, error) {
	// nodeToKey lets us translate the dependency analyzer's build-graph
	// nodes back into the LibraryKeys the planner deals in.
	nodeToKey := make(map[relink.Node]relink.LibraryKey, len(ownedKeys))
	var ownedProducers []relink.Node
	for _, key := range ownedKeys {
		producer, ok := p.OwnedLibraries[key].Producer()
		if !ok {
			continue
		}
		nodeToKey[producer] = key
		ownedProducers = append(ownedProducers, producer)
	}

	dependentsOf, err := depgraph.Analyze(ownedProducers, p.Oracle)
	if err != nil {
		return nil, err
	}

	var ordered []*relink.RelinkNode

	// Copied nodes have no upstream and are emitted first; they are
	// conservatively prepended to every owned node's upstreamDeps below,
	// since we don't know what symbols a copied library will demand.
	copiedNodes := make([]*relink.RelinkNode, 0, len(copiedKeys))
	for _, key := range copiedKeys {
		handle := p.CopiedLibraries[key]
		node := &relink.RelinkNode{
			Key:                 key,
			Input:               handle,
			Output:              p.outputPath(key),
			SymbolsNeededOutput: p.symbolsNeededPath(key),
		}
		copiedNodes = append(copiedNodes, node)
		ordered = append(ordered, node)
		rewrite.RelinkedLibsAssets[key] = node.Output
	}

	ownedNodes := make(map[relink.LibraryKey]*relink.RelinkNode, len(ownedKeys))
	var build func(key relink.LibraryKey) *relink.RelinkNode
	build = func(key relink.LibraryKey) *relink.RelinkNode {
		if node, ok := ownedNodes[key]; ok {
			return node
		}
		handle := p.OwnedLibraries[key]

		upstream := make([]*relink.RelinkNode, 0, len(copiedNodes))
		upstream = append(upstream, copiedNodes...)

		if producer, ok := handle.Producer(); ok {
			var dependentKeys []relink.LibraryKey
			for node := range dependentsOf[producer] {
				if dependentKey, ok := nodeToKey[node]; ok {
					dependentKeys = append(dependentKeys, dependentKey)
				}
			}
			sort.Slice(dependentKeys, func(i, j int) bool { return dependentKeys[i].Name < dependentKeys[j].Name })
			for _, dependentKey := range dependentKeys {
				upstream = append(upstream, build(dependentKey))
			}
		}

		node := &relink.RelinkNode{
			Key:                 key,
			Input:               handle,
			UpstreamDeps:        upstream,
			Output:              p.outputPath(key),
			SymbolsNeededOutput: p.symbolsNeededPath(key),
		}
		ownedNodes[key] = node
		ordered = append(ordered, node)
		rewrite.RelinkedLibs[key] = node.Output
		return node
	}

	for _, key := range ownedKeys {
		build(key)
	}

	return ordered, nil
}

func (p *Planner) outputPath(key relink.LibraryKey) string {
	return filepath.Join(p.OutputDir, string(key.Cpu), key.Name)
}

func (p *Planner) symbolsNeededPath(key relink.LibraryKey) string {
	return atomicfile.ReplaceExt(p.outputPath(key), "symbols-needed")
}
