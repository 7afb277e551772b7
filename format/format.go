// Package format enumerates the archive container formats the engine understands and carries the static signature
// and extension tables used to recognise them.
package format

import (
	"fmt"
	"strings"
)

// Format is an archive container format.
type Format int

const (
	Unknown Format = iota
	SevenZip
	Arj
	BZip2
	Cab
	Chm
	Compound
	Cpio
	Deb
	GZip
	Iso
	Lzh
	Lzma
	Nsis
	Rar
	Rar4
	Rpm
	Split
	Tar
	Wim
	Lzw
	Zip
	Udf
	Xar
	Mub
	Hfs
	Dmg
	XZ
	Mslz
	Flv
	Swf
	PE
	Elf
	Msi
	Vhd
	Zstd
	Lz4
	Ntfs
	Fat
	Mbr
	MachO
	SquashFS
	CramFS
)

var names = map[Format]string{
	Unknown:  "Unknown",
	SevenZip: "7z",
	Arj:      "Arj",
	BZip2:    "BZip2",
	Cab:      "Cab",
	Chm:      "Chm",
	Compound: "Compound",
	Cpio:     "Cpio",
	Deb:      "Deb",
	GZip:     "GZip",
	Iso:      "Iso",
	Lzh:      "Lzh",
	Lzma:     "Lzma",
	Nsis:     "Nsis",
	Rar:      "Rar",
	Rar4:     "Rar4",
	Rpm:      "Rpm",
	Split:    "Split",
	Tar:      "Tar",
	Wim:      "Wim",
	Lzw:      "Z",
	Zip:      "Zip",
	Udf:      "Udf",
	Xar:      "Xar",
	Mub:      "Mub",
	Hfs:      "Hfs",
	Dmg:      "Dmg",
	XZ:       "XZ",
	Mslz:     "MsLZ",
	Flv:      "Flv",
	Swf:      "Swf",
	PE:       "PE",
	Elf:      "Elf",
	Msi:      "Msi",
	Vhd:      "Vhd",
	Zstd:     "Zstd",
	Lz4:      "Lz4",
	Ntfs:     "Ntfs",
	Fat:      "Fat",
	Mbr:      "Mbr",
	MachO:    "MachO",
	SquashFS: "SquashFS",
	CramFS:   "CramFS",
}

func (f Format) String() string {
	if name, ok := names[f]; ok {
		return name
	}

	return fmt.Sprintf("Format(%d)", int(f))
}

// Parse returns the Format with the given name (as returned by String), case-insensitively.
func Parse(name string) (Format, bool) {
	for f, n := range names {
		if f != Unknown && strings.EqualFold(n, name) {
			return f, true
		}
	}

	return Unknown, false
}

// Ext returns the canonical file name extension of archives in this format, including the leading dot.
func (f Format) Ext() string {
	switch f {
	case SevenZip:
		return ".7z"
	case GZip:
		return ".gz"
	case BZip2:
		return ".bz2"
	case XZ:
		return ".xz"
	case Zstd:
		return ".zst"
	case Lz4:
		return ".lz4"
	case Lzw:
		return ".z"
	case Split:
		return ".001"
	case PE:
		return ".exe"
	case Unknown:
		return ""
	default:
		return "." + strings.ToLower(f.String())
	}
}

// ContentType returns the MIME type of archives in this format.
func (f Format) ContentType() string {
	switch f {
	case SevenZip:
		return "application/x-7z-compressed"
	case Zip:
		return "application/zip"
	case GZip:
		return "application/gzip"
	case BZip2:
		return "application/x-bzip2"
	case XZ:
		return "application/x-xz"
	case Zstd:
		return "application/zstd"
	case Lz4:
		return "application/x-lz4"
	case Tar:
		return "application/x-tar"
	case Rar, Rar4:
		return "application/vnd.rar"
	case Iso:
		return "application/x-iso9660-image"
	case Cab:
		return "application/vnd.ms-cab-compressed"
	case Deb:
		return "application/vnd.debian.binary-package"
	case Rpm:
		return "application/x-rpm"
	case Cpio:
		return "application/x-cpio"
	case Lzh:
		return "application/x-lzh-compressed"
	case Arj:
		return "application/x-arj"
	case PE:
		return "application/vnd.microsoft.portable-executable"
	default:
		return "application/octet-stream"
	}
}
