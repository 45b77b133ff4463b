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

// Package toolchain describes the per-CPU linker and symbol-dumper
// configuration the relinker needs. It mirrors the shape of cc/config's
// per-arch toolchain tables, reduced to the handful of fields a relink
// actually touches.
package toolchain

import "fmt"

// Cpu identifies a target CPU architecture. It is an opaque selector used
// only to pick a Toolchain; the relinker never inspects its value.
type Cpu string

const (
	Arm    Cpu = "arm"
	Arm64  Cpu = "arm64"
	X86    Cpu = "x86"
	X86_64 Cpu = "x86_64"
)

// Toolchain bundles everything a RelinkAction needs to invoke the external
// linker and symbol dumper for one Cpu.
type Toolchain struct {
	Cpu Cpu

	// Linker is the path to the linker binary used for the copy-and-strip
	// relink step. It is invoked as a compiler driver (e.g. clang): the
	// version script is passed as -Wl,--version-script,<path>.
	Linker string

	// LinkFlags are flags always passed to Linker, before the
	// version-script flag and positional arguments.
	LinkFlags []string

	// SymbolDumper is the path to the binary used to list an object's
	// dynamic symbol table (an nm -D / objdump -T equivalent).
	SymbolDumper string

	// SymbolDumperFlags are flags always passed to SymbolDumper before the
	// object path.
	SymbolDumperFlags []string

	// Sysroot is passed to Linker so it can resolve libc/libm stubs.
	Sysroot string

	// MandatoryLocals are symbols that must always be exported regardless
	// of dependent demand (e.g. __bss_start, _edata, _end). Sourced from
	// the toolchain, never hard-coded by the relinker, per the platform's
	// own reserved-symbol list.
	MandatoryLocals []string
}

func (t Toolchain) validate() error {
	if t.Linker == "" {
		return fmt.Errorf("toolchain %s: Linker is required", t.Cpu)
	}
	if t.SymbolDumper == "" {
		return fmt.Errorf("toolchain %s: SymbolDumper is required", t.Cpu)
	}
	return nil
}

// Provider resolves a Toolchain for each Cpu present in a relink's input
// set. A Cpu with no registered Toolchain is reported as UnknownCpu by
// the caller.
type Provider interface {
	ForCpu(cpu Cpu) (Toolchain, bool)
}

// Map is the simplest Provider: a static table built up front, the way
// cc/config assembles its per-arch toolchain tables.
type Map map[Cpu]Toolchain

// NewMap validates every entry and returns a Provider backed by the given
// table. It is the expected way to construct a Provider from static
// configuration.
func NewMap(table map[Cpu]Toolchain) (Map, error) {
	m := make(Map, len(table))
	for cpu, tc := range table {
		tc.Cpu = cpu
		if err := tc.validate(); err != nil {
			return nil, err
		}
		m[cpu] = tc
	}
	return m, nil
}

func (m Map) ForCpu(cpu Cpu) (Toolchain, bool) {
	tc, ok := m[cpu]
	return tc, ok
}
