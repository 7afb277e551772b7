package variant

import (
	"fmt"
)

// Kind is the type tag of a Variant.
//
// The numeric values are the PROPVARIANT VT_* constants so that a Kind can be passed to and received from the engine
// without translation.
type Kind uint16

const (
	Empty    Kind = 0  // VT_EMPTY
	Null     Kind = 1  // VT_NULL
	Int32    Kind = 3  // VT_I4
	String   Kind = 8  // VT_BSTR
	Bool     Kind = 11 // VT_BOOL
	Byte     Kind = 17 // VT_UI1
	Uint16   Kind = 18 // VT_UI2
	Uint32   Kind = 19 // VT_UI4
	Int64    Kind = 20 // VT_I8
	Uint64   Kind = 21 // VT_UI8
	Pointer  Kind = 26 // VT_PTR
	FileTime Kind = 64 // VT_FILETIME
)

// podKinds lists the kinds whose payload lives entirely inside the 8-byte payload.
//
// Clearing a POD kind only resets the tag. Every kind not in this table owns its payload and must be released through
// a Releaser.
var podKinds = map[Kind]bool{
	Empty:    true,
	Null:     true,
	Int32:    true,
	Bool:     true,
	Byte:     true,
	Uint16:   true,
	Uint32:   true,
	Int64:    true,
	Uint64:   true,
	FileTime: true,
}

// IsPOD returns true if clearing a variant of this kind does not need the engine's release routine.
func (k Kind) IsPOD() bool {
	return podKinds[k]
}

func (k Kind) String() string {
	switch k {
	case Empty:
		return "VT_EMPTY"
	case Null:
		return "VT_NULL"
	case Int32:
		return "VT_I4"
	case String:
		return "VT_BSTR"
	case Bool:
		return "VT_BOOL"
	case Byte:
		return "VT_UI1"
	case Uint16:
		return "VT_UI2"
	case Uint32:
		return "VT_UI4"
	case Int64:
		return "VT_I8"
	case Uint64:
		return "VT_UI8"
	case Pointer:
		return "VT_PTR"
	case FileTime:
		return "VT_FILETIME"
	default:
		return fmt.Sprintf("VT_%d", uint16(k))
	}
}
