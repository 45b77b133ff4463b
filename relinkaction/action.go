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

// Package relinkaction executes one planned relink: read the symbol
// demand of already-relinked dependents, filter it to the symbols this
// library actually defines, emit a version script, invoke the linker,
// and publish this library's own symbol demand for its upstream
// dependencies to consume in turn.
package relinkaction

import (
	"context"
	"debug/elf"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"android/relinker/internal/atomicfile"
	"android/relinker/internal/toolexec"
	"android/relinker/relink"
	"android/relinker/symbolfile"
	"android/relinker/symbolset"
	"android/relinker/toolchain"
	"android/relinker/versionscript"
)

// ForNode derives the Action that executes node: its source is node's
// input library, its upstream artifacts are the symbols-needed outputs
// of node's already-planned upstream dependencies, and its outputs are
// node's declared output paths.
func ForNode(node *relink.RelinkNode, tc toolchain.Toolchain, globalKnownSymbols *symbolset.Set) *Action {
	upstream := make([]string, len(node.UpstreamDeps))
	for i, dep := range node.UpstreamDeps {
		upstream[i] = dep.SymbolsNeededOutput
	}
	return &Action{
		SourceLibrary:           node.Input.Path,
		Copied:                  node.IsCopied(),
		UpstreamSymbolArtifacts: upstream,
		Output:                  node.Output,
		SymbolsNeededOutput:     node.SymbolsNeededOutput,
		Toolchain:               tc,
		GlobalKnownSymbols:      globalKnownSymbols,
	}
}

// Action is one relink: one source library plus the symbol-need files of
// its already-relinked dependents.
type Action struct {
	// SourceLibrary is the input .so to relink.
	SourceLibrary string
	// Copied marks a library of unknown provenance; see the copied-library
	// fast path in Execute.
	Copied bool
	// UpstreamSymbolArtifacts are the symbols-needed outputs of upstream
	// actions, each guaranteed complete before Execute is called.
	UpstreamSymbolArtifacts []string
	// Output is the path the relinked library will be written to.
	Output string
	// SymbolsNeededOutput is the path this action's own symbols-needed
	// file will be written to.
	SymbolsNeededOutput string
	// Toolchain provides the linker and symbol dumper for this library's
	// Cpu.
	Toolchain toolchain.Toolchain
	// GlobalKnownSymbols is the union of defined symbols across every
	// input library of this Cpu, computed once at plan time.
	GlobalKnownSymbols *symbolset.Set
}

// Execute runs the relink, producing Output and SymbolsNeededOutput
// atomically on success. It is synchronous and blocking; callers that
// want concurrency run multiple Actions from goroutines themselves, one
// whose UpstreamSymbolArtifacts are all satisfied.
func (a *Action) Execute(ctx context.Context) error {
	definedOld, undefinedOld, err := symbolfile.Extract(ctx, a.SourceLibrary, a.Toolchain)
	if err != nil {
		return &relink.ToolchainError{Tool: a.Toolchain.SymbolDumper, Err: err}
	}

	if len(a.UpstreamSymbolArtifacts) == 0 && a.Copied {
		return a.copyAndStripNone(undefinedOld)
	}

	demanded, err := a.readUpstreamDemand()
	if err != nil {
		return err
	}

	exports := demanded.Intersect(definedOld)

	scriptPath := a.Output + ".version-script"
	if err := versionscript.Write(scriptPath, exports, symbolset.New(a.Toolchain.MandatoryLocals...)); err != nil {
		return &relink.IoError{Path: scriptPath, Err: err}
	}

	if err := a.invokeLinker(ctx, scriptPath); err != nil {
		return err
	}

	if err := a.verifySoname(); err != nil {
		return err
	}

	return a.emitSymbolsNeeded(ctx)
}

// readUpstreamDemand unions every upstream symbols-needed artifact. A
// missing artifact is reported as MissingSymbolArtifactError, not a bare
// I/O error, since the scheduler is responsible for guaranteeing these
// files exist before Execute runs.
func (a *Action) readUpstreamDemand() (*symbolset.Set, error) {
	sets := make([]*symbolset.Set, 0, len(a.UpstreamSymbolArtifacts))
	for _, path := range a.UpstreamSymbolArtifacts {
		s, err := symbolset.Read(path)
		if err != nil {
			if _, ok := err.(*symbolset.MissingArtifactError); ok {
				return nil, &relink.MissingSymbolArtifactError{Path: path}
			}
			return nil, &relink.IoError{Path: path, Err: err}
		}
		sets = append(sets, s)
	}
	return symbolset.UnionAll(sets), nil
}

// copyAndStripNone handles the copied-library fast path: when a copied
// library has no upstream demand recorded yet, we cannot know what a
// later-discovered caller might need from it, so the library is copied
// verbatim with no export reduction.
func (a *Action) copyAndStripNone(undefinedOld *symbolset.Set) error {
	if err := copyFile(a.SourceLibrary, a.Output); err != nil {
		return &relink.IoError{Path: a.Output, Err: err}
	}
	symbolsNeeded := undefinedOld.Intersect(a.GlobalKnownSymbols)
	if err := symbolsNeeded.Write(a.SymbolsNeededOutput); err != nil {
		return &relink.IoError{Path: a.SymbolsNeededOutput, Err: err}
	}
	return nil
}

// invokeLinker re-links SourceLibrary against the version script at
// scriptPath, producing Output. This implements the copy-and-strip path
// of §4.4: the linker reads the existing shared object and re-emits it
// with a restricted export set, rather than re-running the full compile
// graph against original object inputs (the enclosing build system's
// responsibility when original objects are available).
func (a *Action) invokeLinker(ctx context.Context, scriptPath string) error {
	if err := os.MkdirAll(filepath.Dir(a.Output), 0777); err != nil {
		return &relink.IoError{Path: a.Output, Err: err}
	}

	args := append([]string{}, a.Toolchain.LinkFlags...)
	if a.Toolchain.Sysroot != "" {
		args = append(args, "--sysroot="+a.Toolchain.Sysroot)
	}
	args = append(args,
		"-Wl,--version-script,"+scriptPath,
		"-shared",
		"-o", a.Output,
		a.SourceLibrary,
	)

	_, err := toolexec.Run(ctx, a.Toolchain.Linker, args...)
	if err != nil {
		return &relink.ToolchainError{Tool: a.Toolchain.Linker, Err: err}
	}
	return nil
}

// verifySoname enforces §6's "soname must be preserved bit-exact"
// contract by reading DT_SONAME back out of both the original and the
// relinked object.
func (a *Action) verifySoname() error {
	oldSoname, err := readSoname(a.SourceLibrary)
	if err != nil {
		return &relink.IoError{Path: a.SourceLibrary, Err: err}
	}
	newSoname, err := readSoname(a.Output)
	if err != nil {
		return &relink.IoError{Path: a.Output, Err: err}
	}
	if oldSoname != newSoname {
		return &relink.LinkError{
			LibraryPath: a.Output,
			Reason:      fmt.Sprintf("soname changed: %q -> %q", oldSoname, newSoname),
		}
	}
	return nil
}

// emitSymbolsNeeded extracts the relinked library's own undefined
// references, restricts them to symbols known to exist somewhere in the
// package, and writes the result.
func (a *Action) emitSymbolsNeeded(ctx context.Context) error {
	definedNew, undefinedNew, err := symbolfile.Extract(ctx, a.Output, a.Toolchain)
	if err != nil {
		return &relink.ToolchainError{Tool: a.Toolchain.SymbolDumper, Err: err}
	}
	_ = definedNew // not needed for the symbols-needed computation

	symbolsNeeded := undefinedNew.Intersect(a.GlobalKnownSymbols)
	if err := symbolsNeeded.Write(a.SymbolsNeededOutput); err != nil {
		return &relink.IoError{Path: a.SymbolsNeededOutput, Err: err}
	}
	return nil
}

func readSoname(path string) (string, error) {
	f, err := elf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sonames, err := f.DynString(elf.DT_SONAME)
	if err != nil {
		return "", err
	}
	if len(sonames) == 0 {
		return "", nil
	}
	return sonames[0], nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0777); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	return atomicfile.Write(dst, data)
}
