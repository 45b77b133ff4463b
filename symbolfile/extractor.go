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

// Package symbolfile extracts a shared library's defined and undefined
// dynamic symbols by invoking the toolchain's symbol dumper (an
// `nm -D`/`llvm-nm -D` equivalent) and parsing its output, the same way
// cmd/symbols_map walks a binary's own tables rather than re-implementing
// the platform's symbol-visibility rules from scratch.
package symbolfile

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"android/relinker/internal/toolexec"
	"android/relinker/symbolset"
	"android/relinker/toolchain"
)

// ToolchainError reports that the symbol dumper failed to run or exited
// non-zero.
type ToolchainError struct {
	LibraryPath string
	Err         error
}

func (e *ToolchainError) Error() string {
	return fmt.Sprintf("extracting symbols from %s: %s", e.LibraryPath, e.Err)
}

func (e *ToolchainError) Unwrap() error { return e.Err }

// Extract lists the symbols path defines (exported with non-local binding)
// and the symbols it references but does not define (SHN_UNDEF). Weak
// symbols are classified by their defined/undefined state like any other
// binding. Versioned names keep their @VERSION/@@VERSION suffix verbatim.
func Extract(ctx context.Context, path string, tc toolchain.Toolchain) (defined, undefined *symbolset.Set, err error) {
	args := append(append([]string{}, tc.SymbolDumperFlags...), path)
	res, err := toolexec.Run(ctx, tc.SymbolDumper, args...)
	if err != nil {
		return nil, nil, &ToolchainError{LibraryPath: path, Err: err}
	}

	defined, undefined = parseDynamicSymbolTable(res.Stdout)
	return defined, undefined, nil
}

// parseDynamicSymbolTable parses the output of an `nm -D` style symbol
// dumper: each line is either
//
//	<hex addr> <type letter> <name>
//
// for a symbol with a value, or
//
//	<type letter> <name>
//
// for one without (the common form for undefined symbols). An uppercase
// type letter other than 'U' means a non-local defined symbol; 'U' and the
// lowercase weak-undefined form 'w' mean undefined; any other lowercase
// letter is a local defined symbol and is excluded from both sets, per
// SymbolExtractor's contract.
func parseDynamicSymbolTable(output []byte) (defined, undefined *symbolset.Set) {
	defined, undefined = symbolset.Empty(), symbolset.Empty()

	scanner := bufio.NewScanner(strings.NewReader(string(output)))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		var typ, name string
		switch len(fields) {
		case 2:
			typ, name = fields[0], fields[1]
		case 3:
			typ, name = fields[1], fields[2]
		default:
			continue
		}
		if len(typ) != 1 {
			continue
		}
		classifySymbol(typ[0], name, defined, undefined)
	}
	return defined, undefined
}

func classifySymbol(typ byte, name string, defined, undefined *symbolset.Set) {
	switch {
	case typ == 'U' || typ == 'w':
		undefined.Insert(name)
	case typ >= 'A' && typ <= 'Z':
		// Uppercase: global or weak-defined binding.
		defined.Insert(name)
	default:
		// Lowercase, not 'w': local binding. Neither defined nor
		// undefined from the relinker's point of view.
	}
}
