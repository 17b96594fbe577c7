// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

package filesystem

// NameType is the type recorded in a directory entry.
type NameType uint8

// Name types.
const (
	NameUndef NameType = iota
	NameFIFO
	NameChr
	NameDir
	NameBlk
	NameReg
	NameLnk
	NameSock
	NameShad
	NameWht
	NameVirt
)

var nameCodes = map[NameType]string{
	NameUndef: "-",
	NameFIFO:  "p",
	NameChr:   "c",
	NameDir:   "d",
	NameBlk:   "b",
	NameReg:   "r",
	NameLnk:   "l",
	NameSock:  "h",
	NameShad:  "s",
	NameWht:   "w",
	NameVirt:  "v",
}

// Code returns the single character code of the name type, "-" if unknown.
func (t NameType) Code() string {
	if code, ok := nameCodes[t]; ok {
		return code
	}
	return "-"
}

// MetaType is the type recorded in a metadata record.
type MetaType uint8

// Meta types.
const (
	MetaUndef MetaType = iota
	MetaReg
	MetaDir
	MetaFIFO
	MetaChr
	MetaBlk
	MetaLnk
	MetaShad
	MetaSock
	MetaWht
	MetaVirt
)

// Links and sockets share codes with other types here, existing case
// databases depend on it.
var metaCodes = map[MetaType]string{
	MetaReg:  "r",
	MetaDir:  "d",
	MetaFIFO: "p",
	MetaChr:  "c",
	MetaBlk:  "b",
	MetaLnk:  "h",
	MetaShad: "s",
	MetaSock: "s",
	MetaWht:  "w",
	MetaVirt: "v",
}

// Code returns the single character code of the meta type, "-" if unknown.
func (t MetaType) Code() string {
	if code, ok := metaCodes[t]; ok {
		return code
	}
	return "-"
}

// MetaFlags are the allocation flags of a metadata record.
type MetaFlags uint16

// Meta flags.
const (
	MetaAllocated   MetaFlags = 0x01
	MetaUnallocated MetaFlags = 0x02
	MetaUsed        MetaFlags = 0x04
	MetaUnused      MetaFlags = 0x08
	MetaCompressed  MetaFlags = 0x10
	MetaOrphan      MetaFlags = 0x20
)

// AttrType is the type of an attribute.
type AttrType uint32

// Attribute types.
const (
	AttrNotFound           AttrType = 0x00
	AttrDefault            AttrType = 0x01
	AttrStandardInfo       AttrType = 0x10
	AttrAttributeList      AttrType = 0x20
	AttrFileName           AttrType = 0x30
	AttrObjectID           AttrType = 0x40
	AttrSecurity           AttrType = 0x50
	AttrVolumeName         AttrType = 0x60
	AttrVolumeInfo         AttrType = 0x70
	AttrData               AttrType = 0x80
	AttrIndexRoot          AttrType = 0x90
	AttrIndexAllocation    AttrType = 0xA0
	AttrBitmap             AttrType = 0xB0
	AttrReparsePoint       AttrType = 0xC0
	AttrExtendedAttributes AttrType = 0xE0
	AttrLoggedUtility      AttrType = 0x100
)
