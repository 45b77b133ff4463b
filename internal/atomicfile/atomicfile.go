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

// Package atomicfile writes build artifacts the way android/paths.go and
// android/makevars.go do: through pathtools.WriteFileIfChanged, so an
// unchanged artifact keeps its old mtime and a changed one is written to a
// temporary file and renamed into place, never left half-written.
package atomicfile

import (
	"os"
	"path/filepath"

	"github.com/google/blueprint/pathtools"
)

// Write writes data to path, creating parent directories as needed, using
// the temp-file-then-rename discipline. If the file already holds exactly
// data, the write is skipped and mtime is preserved.
func Write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return err
	}
	return pathtools.WriteFileIfChanged(path, data, 0666)
}

// ReplaceExt returns path with its extension replaced by ext, using the
// same helper android/paths.go uses for OutputPath.ReplaceExtension.
func ReplaceExt(path, ext string) string {
	return pathtools.ReplaceExtension(path, ext)
}
