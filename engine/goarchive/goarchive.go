// Package goarchive is a pure-Go engine.Library.
//
// It reads Zip, Tar, 7z, Rar, split volumes and the single-stream compressors (GZip, Zstd, XZ, BZip2, Lz4), and writes
// Zip, Tar and the single-stream compressors. Every operation goes through the same callback protocol a native engine
// uses, so it can stand in for one wherever an engine.Library is expected.
//
// Single-stream compressors present exactly one item named after the archive without its last extension.
package goarchive

import (
	"fmt"
	"io/fs"
	"time"

	"github.com/nguyengg/xy7z/engine"
	"github.com/nguyengg/xy7z/format"
	"github.com/nguyengg/xy7z/variant"
)

// Library implements engine.Library.
//
// The zero value is ready for use. Properties are returned as Go values so Release has nothing to free.
type Library struct {
}

var _ engine.Library = Library{}

// New returns a Library.
func New() Library {
	return Library{}
}

func (l Library) Release(_ *variant.Variant) error {
	return nil
}

func (l Library) NewInArchive(f format.Format) (engine.InArchive, error) {
	switch f {
	case format.Zip, format.Tar, format.SevenZip, format.Rar, format.Rar4, format.Split:
	case format.GZip, format.Zstd, format.XZ, format.BZip2, format.Lz4:
	default:
		return nil, fmt.Errorf("goarchive cannot read %s: %w", f, engine.ErrEngineUnavailable)
	}

	return &InArchive{format: f}, nil
}

func (l Library) NewOutArchive(f format.Format) (engine.OutArchive, error) {
	switch f {
	case format.Zip, format.Tar:
	case format.GZip, format.Zstd, format.XZ, format.BZip2, format.Lz4:
	default:
		return nil, fmt.Errorf("goarchive cannot write %s: %w", f, engine.ErrEngineUnavailable)
	}

	return &OutArchive{format: f}, nil
}

const (
	attribReadOnly      uint32 = 0x1
	attribDirectory     uint32 = 0x10
	attribArchive       uint32 = 0x20
	attribUnixExtension uint32 = 0x8000
)

// Entry is the metadata of one item as parsed from the container.
type Entry struct {
	Name       string
	IsDir      bool
	Size       uint64
	HasSize    bool
	PackedSize uint64
	CRC        uint32
	HasCRC     bool
	Mode       fs.FileMode
	Encrypted  bool
	Method     string
	Comment    string
	Created    time.Time
	Accessed   time.Time
	Modified   time.Time
}

// attributes encodes the entry's mode as Windows attributes with the Unix extension in the high 16 bits.
func (e *Entry) attributes() uint32 {
	attrib := attribUnixExtension | uint32(unixMode(e.Mode, e.IsDir))<<16
	if e.IsDir {
		attrib |= attribDirectory
	} else {
		attrib |= attribArchive
	}
	if e.Mode.Perm()&0o200 == 0 {
		attrib |= attribReadOnly
	}

	return attrib
}

// modeOf decodes attributes sent by the host back into an fs.FileMode.
func modeOf(attrib uint32, isDir bool) fs.FileMode {
	var perm fs.FileMode = 0o644
	if isDir {
		perm = 0o755
	}

	if attrib&attribUnixExtension != 0 {
		if p := fs.FileMode(attrib>>16) & fs.ModePerm; p != 0 {
			perm = p
		}
	} else if attrib&attribReadOnly != 0 {
		perm &^= 0o222
	}

	if isDir {
		return perm | fs.ModeDir
	}

	return perm
}

// unixMode returns the st_mode bits of mode.
func unixMode(mode fs.FileMode, isDir bool) uint32 {
	m := uint32(mode.Perm())
	switch {
	case isDir:
		m |= 0o040000
	case mode&fs.ModeSymlink != 0:
		m |= 0o120000
	default:
		m |= 0o100000
	}

	return m
}

// property answers propID for e.
func (e *Entry) property(propID engine.PropID) (v variant.Variant) {
	switch propID {
	case engine.KpidPath:
		v = variant.FromString(e.Name)
	case engine.KpidIsDir:
		v = variant.FromBool(e.IsDir)
	case engine.KpidSize:
		if e.HasSize {
			v = variant.FromUint64(e.Size)
		}
	case engine.KpidPackSize:
		if e.PackedSize > 0 {
			v = variant.FromUint64(e.PackedSize)
		}
	case engine.KpidAttrib:
		v = variant.FromUint32(e.attributes())
	case engine.KpidCTime:
		v = timeVariant(e.Created)
	case engine.KpidATime:
		v = timeVariant(e.Accessed)
	case engine.KpidMTime:
		v = timeVariant(e.Modified)
	case engine.KpidCRC:
		if e.HasCRC {
			v = variant.FromUint32(e.CRC)
		}
	case engine.KpidEncrypted:
		v = variant.FromBool(e.Encrypted)
	case engine.KpidMethod:
		if e.Method != "" {
			v = variant.FromString(e.Method)
		}
	case engine.KpidComment:
		if e.Comment != "" {
			v = variant.FromString(e.Comment)
		}
	}

	return v
}

func timeVariant(t time.Time) variant.Variant {
	if t.IsZero() {
		return variant.Variant{}
	}

	return variant.FromTime(t)
}
