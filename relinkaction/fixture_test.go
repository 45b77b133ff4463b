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

package relinkaction

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

// buildMinimalSharedObject hand-assembles the bytes of the smallest ELF64
// shared object debug/elf will parse a DT_SONAME out of: an ELF header, no
// program headers, and three sections (.shstrtab, .dynstr, .dynamic) with
// the dynamic table holding exactly DT_SONAME and DT_NULL. It exists so
// verifySoname's debug/elf.Open/DynString path has a real file to read in
// tests, the same way a fake nm/ld binary stands in for the rest of the
// toolchain — this module doesn't carry a real linker to produce one.
func buildMinimalSharedObject(soname string) []byte {
	const ehdrSize = 64
	const shdrSize = 64

	dynstr := append([]byte{0}, append([]byte(soname), 0)...)
	const sonameOff = 1

	var dyn bytes.Buffer
	appendDyn(&dyn, int64(elf.DT_SONAME), sonameOff)
	appendDyn(&dyn, int64(elf.DT_NULL), 0)

	shstrtab := []byte{0}
	shstrtabNameOff := len(shstrtab)
	shstrtab = append(shstrtab, []byte(".shstrtab\x00")...)
	dynstrNameOff := len(shstrtab)
	shstrtab = append(shstrtab, []byte(".dynstr\x00")...)
	dynamicNameOff := len(shstrtab)
	shstrtab = append(shstrtab, []byte(".dynamic\x00")...)

	dynstrFileOff := uint64(ehdrSize)
	dynamicFileOff := dynstrFileOff + uint64(len(dynstr))
	shstrtabFileOff := dynamicFileOff + uint64(dyn.Len())
	shoff := align8(shstrtabFileOff + uint64(len(shstrtab)))

	var buf bytes.Buffer

	buf.Write([]byte{
		0x7f, 'E', 'L', 'F',
		byte(elf.ELFCLASS64), byte(elf.ELFDATA2LSB), byte(elf.EV_CURRENT), byte(elf.ELFOSABI_NONE),
	})
	buf.Write(make([]byte, 8)) // ABI version + e_ident padding

	w16(&buf, uint16(elf.ET_DYN))
	w16(&buf, uint16(elf.EM_X86_64))
	w32(&buf, uint32(elf.EV_CURRENT))
	w64(&buf, 0) // e_entry
	w64(&buf, 0) // e_phoff: no program headers
	w64(&buf, shoff)
	w32(&buf, 0) // e_flags
	w16(&buf, ehdrSize)
	w16(&buf, 56) // e_phentsize, unused since e_phnum is 0
	w16(&buf, 0)  // e_phnum
	w16(&buf, shdrSize)
	w16(&buf, 4) // e_shnum: null, .shstrtab, .dynstr, .dynamic
	w16(&buf, 1) // e_shstrndx: .shstrtab

	buf.Write(dynstr)
	buf.Write(dyn.Bytes())
	buf.Write(shstrtab)
	for uint64(buf.Len()) < shoff {
		buf.WriteByte(0)
	}

	writeShdr(&buf, 0, uint32(elf.SHT_NULL), 0, 0, 0, 0, 0)
	writeShdr(&buf, uint32(shstrtabNameOff), uint32(elf.SHT_STRTAB), shstrtabFileOff, uint64(len(shstrtab)), 0, 1, 0)
	writeShdr(&buf, uint32(dynstrNameOff), uint32(elf.SHT_STRTAB), dynstrFileOff, uint64(len(dynstr)), 0, 1, 0)
	writeShdr(&buf, uint32(dynamicNameOff), uint32(elf.SHT_DYNAMIC), dynamicFileOff, uint64(dyn.Len()), 2, 8, 16)

	return buf.Bytes()
}

func appendDyn(buf *bytes.Buffer, tag int64, val uint64) {
	w64(buf, uint64(tag))
	w64(buf, val)
}

func writeShdr(buf *bytes.Buffer, name, typ uint32, offset, size uint64, link uint32, addralign, entsize uint64) {
	w32(buf, name)
	w32(buf, typ)
	w64(buf, 0) // sh_flags
	w64(buf, 0) // sh_addr
	w64(buf, offset)
	w64(buf, size)
	w32(buf, link)
	w32(buf, 0) // sh_info
	w64(buf, addralign)
	w64(buf, entsize)
}

func align8(v uint64) uint64 {
	if rem := v % 8; rem != 0 {
		return v + (8 - rem)
	}
	return v
}

func w16(buf *bytes.Buffer, v uint16) { binary.Write(buf, binary.LittleEndian, v) }
func w32(buf *bytes.Buffer, v uint32) { binary.Write(buf, binary.LittleEndian, v) }
func w64(buf *bytes.Buffer, v uint64) { binary.Write(buf, binary.LittleEndian, v) }
