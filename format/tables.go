package format

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"iter"
	"strings"
)

// Signature is one entry of the forward signature table.
type Signature struct {
	// Hex is the signature as written in the table, e.g. "50-4B-03-04".
	Hex string
	// Format is the format identified by the signature.
	Format Format

	magic []byte
}

// Len returns the number of bytes in the signature.
func (s Signature) Len() int {
	return len(s.magic)
}

// MatchAt returns true if b contains the signature starting at byte offset off.
func (s Signature) MatchAt(b []byte, off int) bool {
	return off >= 0 && off <= len(b) && bytes.HasPrefix(b[off:], s.magic)
}

// Index returns the offset of the first occurrence of the signature in b, or -1.
func (s Signature) Index(b []byte) int {
	return bytes.Index(b, s.magic)
}

// forward is the ordered signature table; the first entry to match wins.
var forward = []struct {
	hex    string
	format Format
}{
	{"37-7A-BC-AF-27-1C", SevenZip},
	{"1F-8B-08", GZip},
	{"75-73-74-61-72", Tar},
	{"52-61-72-21-1A-07-01-00", Rar},
	{"52-61-72-21-1A-07-00", Rar4},
	{"50-4B-03-04", Zip},
	{"50-4B-05-06", Zip},
	{"50-4B-07-08", Zip},
	{"5D-00-00-40-00", Lzma},
	{"2D-6C-68", Lzh},
	{"1F-9D-90", Lzw},
	{"60-EA", Arj},
	{"42-5A-68", BZip2},
	{"4D-53-43-46", Cab},
	{"49-54-53-46", Chm},
	{"21-3C-61-72-63-68-3E-0A-64-65-62-69-61-6E-2D-62", Deb},
	{"43-44-30-30-31", Iso},
	{"ED-AB-EE-DB", Rpm},
	{"4D-53-57-49-4D-00-00-00", Wim},
	{"78-61-72-21", Xar},
	{"48-2B-00-04", Hfs},
	{"FD-37-7A-58-5A-00", XZ},
	{"28-B5-2F-FD", Zstd},
	{"04-22-4D-18", Lz4},
	{"53-5A-44-44-88-F0-27-33", Mslz},
	{"46-4C-56", Flv},
	{"46-57-53", Swf},
	{"D0-CF-11-E0-A1-B1-1A-E1", Compound},
	{"30-37-30-37-30-31", Cpio},
	{"30-37-30-37-30-37", Cpio},
	{"C7-71", Cpio},
	{"4D-5A", PE},
	{"7F-45-4C-46", Elf},
	{"78-01-73-0D-62-62-60", Dmg},
	{"63-6F-6E-65-63-74-69-78", Vhd},
	{"EB-52-90-4E-54-46-53", Ntfs},
	{"CF-FA-ED-FE", MachO},
	{"CE-FA-ED-FE", MachO},
	{"68-73-71-73", SquashFS},
	{"45-3D-CD-28", CramFS},
}

// extensions maps lowercase file name extensions to formats for name-based fallback.
var extensions = map[string]Format{
	".7z":       SevenZip,
	".arj":      Arj,
	".bz2":      BZip2,
	".bzip2":    BZip2,
	".tbz":      BZip2,
	".tbz2":     BZip2,
	".cab":      Cab,
	".chm":      Chm,
	".chi":      Chm,
	".doc":      Compound,
	".xls":      Compound,
	".ppt":      Compound,
	".msi":      Msi,
	".cpio":     Cpio,
	".deb":      Deb,
	".gz":       GZip,
	".gzip":     GZip,
	".tgz":      GZip,
	".iso":      Iso,
	".lzh":      Lzh,
	".lha":      Lzh,
	".lzma":     Lzma,
	".rar":      Rar,
	".rpm":      Rpm,
	".001":      Split,
	".tar":      Tar,
	".wim":      Wim,
	".swm":      Wim,
	".z":        Lzw,
	".taz":      Lzw,
	".zip":      Zip,
	".jar":      Zip,
	".xpi":      Zip,
	".odt":      Zip,
	".docx":     Zip,
	".xlsx":     Zip,
	".epub":     Zip,
	".udf":      Udf,
	".xar":      Xar,
	".pkg":      Xar,
	".mub":      Mub,
	".hfs":      Hfs,
	".dmg":      Dmg,
	".xz":       XZ,
	".txz":      XZ,
	".zst":      Zstd,
	".tzst":     Zstd,
	".lz4":      Lz4,
	".flv":      Flv,
	".swf":      Swf,
	".exe":      PE,
	".dll":      PE,
	".sys":      PE,
	".elf":      Elf,
	".vhd":      Vhd,
	".ntfs":     Ntfs,
	".fat":      Fat,
	".mbr":      Mbr,
	".macho":    MachO,
	".squashfs": SquashFS,
	".cramfs":   CramFS,
}

var (
	signatures []Signature
	reverse    map[Format]string
)

func init() {
	signatures = make([]Signature, 0, len(forward))
	reverse = make(map[Format]string, len(forward))

	for _, e := range forward {
		magic, err := hex.DecodeString(strings.ReplaceAll(e.hex, "-", ""))
		if err != nil {
			panic(fmt.Sprintf("invalid signature %q for %s: %v", e.hex, e.format, err))
		}

		signatures = append(signatures, Signature{Hex: e.hex, Format: e.format, magic: magic})

		// the first signature listed for a format is its canonical one.
		if _, ok := reverse[e.format]; !ok {
			reverse[e.format] = e.hex
		}
	}
}

// Signatures iterates the forward signature table in precedence order.
func Signatures() iter.Seq[Signature] {
	return func(yield func(Signature) bool) {
		for _, s := range signatures {
			if !yield(s) {
				return
			}
		}
	}
}

// SignatureOf returns the canonical signature of the format.
func SignatureOf(f Format) (Signature, bool) {
	h, ok := reverse[f]
	if !ok {
		return Signature{}, false
	}

	for _, s := range signatures {
		if s.Hex == h {
			return s, true
		}
	}

	return Signature{}, false
}

// FromExtension returns the format registered for the file name extension (with leading dot), case-insensitively.
func FromExtension(ext string) (Format, bool) {
	f, ok := extensions[strings.ToLower(ext)]
	return f, ok
}
