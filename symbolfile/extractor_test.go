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

package symbolfile

import "testing"

func TestParseDynamicSymbolTable(t *testing.T) {
	// Representative of `llvm-nm -D` output: global defined, local
	// defined (excluded), weak defined, undefined, and weak undefined.
	input := `0000000000001149 T foo
0000000000001200 t hidden_helper
0000000000002000 W weak_foo@LIBFOO_2
                 U bar@LIBBAR_1
                 w maybe_bar
`
	defined, undefined := parseDynamicSymbolTable([]byte(input))

	for _, want := range []string{"foo", "weak_foo@LIBFOO_2"} {
		if !defined.Contains(want) {
			t.Errorf("defined missing %q; got %v", want, defined.Sorted())
		}
	}
	if defined.Contains("hidden_helper") {
		t.Errorf("defined should not contain local symbol hidden_helper")
	}
	if defined.Len() != 2 {
		t.Errorf("defined.Len() = %d, want 2: %v", defined.Len(), defined.Sorted())
	}

	for _, want := range []string{"bar@LIBBAR_1", "maybe_bar"} {
		if !undefined.Contains(want) {
			t.Errorf("undefined missing %q; got %v", want, undefined.Sorted())
		}
	}
	if undefined.Len() != 2 {
		t.Errorf("undefined.Len() = %d, want 2: %v", undefined.Len(), undefined.Sorted())
	}
}

func TestParseDynamicSymbolTableIgnoresMalformedLines(t *testing.T) {
	input := "\nnm: no symbols\nT\n"
	defined, undefined := parseDynamicSymbolTable([]byte(input))
	if defined.Len() != 0 || undefined.Len() != 0 {
		t.Errorf("expected empty sets, got defined=%v undefined=%v", defined.Sorted(), undefined.Sorted())
	}
}
