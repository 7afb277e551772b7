// Package variant implements the tagged value used for every property that crosses the engine boundary.
//
// A Variant is a type tag plus an 8-byte payload. Numeric, boolean and time kinds ("POD" kinds) live entirely in the
// payload. A String variant owns its text; ownership may have been handed to the engine's allocator, which is why
// clearing such a variant must go through a Releaser.
package variant

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrTypeMismatch is returned when a variant is read through an accessor that does not match its kind.
	ErrTypeMismatch = errors.New("variant type mismatch")

	// ErrNotCleared is returned by Variant.Set if the variant still owns a payload that has not been released.
	ErrNotCleared = errors.New("variant owns a payload that must be cleared first")
)

// TypeMismatchError is returned by accessors when the requested kind is not the variant's kind.
type TypeMismatchError struct {
	Want, Got Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("variant type mismatch: want %s, got %s", e.Want, e.Got)
}

func (e *TypeMismatchError) Unwrap() error {
	return ErrTypeMismatch
}

// Releaser is the external routine that frees an owned payload.
//
// The engine supplies its own Releaser because a string handed back by the engine was allocated by the engine.
type Releaser interface {
	Release(v *Variant) error
}

// ReleaserFunc adapts a function to Releaser.
type ReleaserFunc func(v *Variant) error

func (fn ReleaserFunc) Release(v *Variant) error {
	return fn(v)
}

// Discard is the Releaser for payloads owned by the Go runtime; it only drops the reference.
var Discard Releaser = ReleaserFunc(func(*Variant) error { return nil })

// Variant is a tagged union of the PROPVARIANT kinds understood by the engine.
//
// The zero value is an Empty variant.
type Variant struct {
	kind Kind
	bits uint64
	str  string
}

// Ticks is a FILETIME payload: the number of 100-nanosecond intervals since January 1, 1601 (UTC).
type Ticks uint64

// ticksToUnixEpoch is the number of 100ns intervals between 1601-01-01 and 1970-01-01.
const ticksToUnixEpoch = 116444736000000000

// TicksOf converts t to FILETIME ticks. The zero time.Time converts to zero ticks.
func TicksOf(t time.Time) Ticks {
	if t.IsZero() {
		return 0
	}

	return Ticks(t.UnixNano()/100 + ticksToUnixEpoch)
}

// Time converts the ticks back to a UTC time.Time. Zero ticks converts to the zero time.Time.
func (t Ticks) Time() time.Time {
	if t == 0 {
		return time.Time{}
	}

	return time.Unix(0, (int64(t)-ticksToUnixEpoch)*100).UTC()
}

// variantTrue is VARIANT_TRUE.
const variantTrue = 0xFFFF

func NullValue() Variant            { return Variant{kind: Null} }
func FromInt32(i int32) Variant     { return Variant{kind: Int32, bits: uint64(uint32(i))} }
func FromByte(b byte) Variant       { return Variant{kind: Byte, bits: uint64(b)} }
func FromUint16(u uint16) Variant   { return Variant{kind: Uint16, bits: uint64(u)} }
func FromUint32(u uint32) Variant   { return Variant{kind: Uint32, bits: uint64(u)} }
func FromUint64(u uint64) Variant   { return Variant{kind: Uint64, bits: u} }
func FromInt64(i int64) Variant     { return Variant{kind: Int64, bits: uint64(i)} }
func FromTicks(t Ticks) Variant     { return Variant{kind: FileTime, bits: uint64(t)} }
func FromTime(t time.Time) Variant  { return FromTicks(TicksOf(t)) }
func FromPointer(p uintptr) Variant { return Variant{kind: Pointer, bits: uint64(p)} }
func FromString(s string) Variant   { return Variant{kind: String, str: s} }
func FromBool(b bool) Variant {
	if b {
		return Variant{kind: Bool, bits: variantTrue}
	}
	return Variant{kind: Bool}
}

// Kind returns the type tag.
func (v Variant) Kind() Kind {
	return v.kind
}

// IsEmpty returns true for both Empty and Null variants.
func (v Variant) IsEmpty() bool {
	return v.kind == Empty || v.kind == Null
}

// Set replaces the variant's kind and payload.
//
// The payload's Go type must match the kind: bool, byte, uint16, uint32, uint64, int32, int64, string, Ticks, uintptr,
// or nil for Empty and Null. Set refuses to overwrite a variant that still owns a payload; Clear it first.
func (v *Variant) Set(kind Kind, payload any) error {
	if !v.kind.IsPOD() {
		return fmt.Errorf("set %s over %s: %w", kind, v.kind, ErrNotCleared)
	}

	var nv Variant
	ok := false
	switch kind {
	case Empty, Null:
		nv, ok = Variant{kind: kind}, payload == nil
	case Bool:
		var b bool
		if b, ok = payload.(bool); ok {
			nv = FromBool(b)
		}
	case Byte:
		var b byte
		if b, ok = payload.(byte); ok {
			nv = FromByte(b)
		}
	case Uint16:
		var u uint16
		if u, ok = payload.(uint16); ok {
			nv = FromUint16(u)
		}
	case Uint32:
		var u uint32
		if u, ok = payload.(uint32); ok {
			nv = FromUint32(u)
		}
	case Uint64:
		var u uint64
		if u, ok = payload.(uint64); ok {
			nv = FromUint64(u)
		}
	case Int32:
		var i int32
		if i, ok = payload.(int32); ok {
			nv = FromInt32(i)
		}
	case Int64:
		var i int64
		if i, ok = payload.(int64); ok {
			nv = FromInt64(i)
		}
	case FileTime:
		var t Ticks
		if t, ok = payload.(Ticks); ok {
			nv = FromTicks(t)
		}
	case Pointer:
		var p uintptr
		if p, ok = payload.(uintptr); ok {
			nv = FromPointer(p)
		}
	case String:
		var s string
		if s, ok = payload.(string); ok {
			nv = FromString(s)
		}
	default:
		return fmt.Errorf("unsupported kind %s", kind)
	}

	if !ok {
		return fmt.Errorf("invalid payload %T for %s: %w", payload, kind, ErrTypeMismatch)
	}

	*v = nv
	return nil
}

// Get returns the payload as the Go type listed in Set, failing with ErrTypeMismatch if kind is not the variant's kind.
func (v Variant) Get(kind Kind) (any, error) {
	if kind != v.kind {
		return nil, &TypeMismatchError{Want: kind, Got: v.kind}
	}

	switch kind {
	case Empty, Null:
		return nil, nil
	case Bool:
		return v.bits != 0, nil
	case Byte:
		return byte(v.bits), nil
	case Uint16:
		return uint16(v.bits), nil
	case Uint32:
		return uint32(v.bits), nil
	case Uint64:
		return v.bits, nil
	case Int32:
		return int32(uint32(v.bits)), nil
	case Int64:
		return int64(v.bits), nil
	case FileTime:
		return Ticks(v.bits), nil
	case Pointer:
		return uintptr(v.bits), nil
	case String:
		return v.str, nil
	default:
		return nil, fmt.Errorf("unsupported kind %s", kind)
	}
}

func (v Variant) expect(kind Kind) error {
	if v.kind != kind {
		return &TypeMismatchError{Want: kind, Got: v.kind}
	}
	return nil
}

func (v Variant) Bool() (bool, error)       { return v.bits != 0, v.expect(Bool) }
func (v Variant) Byte() (byte, error)       { return byte(v.bits), v.expect(Byte) }
func (v Variant) Uint16() (uint16, error)   { return uint16(v.bits), v.expect(Uint16) }
func (v Variant) Uint32() (uint32, error)   { return uint32(v.bits), v.expect(Uint32) }
func (v Variant) Uint64() (uint64, error)   { return v.bits, v.expect(Uint64) }
func (v Variant) Int32() (int32, error)     { return int32(uint32(v.bits)), v.expect(Int32) }
func (v Variant) Int64() (int64, error)     { return int64(v.bits), v.expect(Int64) }
func (v Variant) FileTime() (Ticks, error)  { return Ticks(v.bits), v.expect(FileTime) }
func (v Variant) Pointer() (uintptr, error) { return uintptr(v.bits), v.expect(Pointer) }
func (v Variant) Text() (string, error)     { return v.str, v.expect(String) }

// Time returns the FILETIME payload as a time.Time.
func (v Variant) Time() (time.Time, error) {
	t, err := v.FileTime()
	return t.Time(), err
}

// AsUint64 widens any unsigned or non-negative signed integer kind to uint64.
//
// Engines are free to report sizes and attributes as either VT_UI4 or VT_UI8 so readers should use AsUint64 instead of
// the exact accessors.
func (v Variant) AsUint64() (uint64, bool) {
	switch v.kind {
	case Byte, Uint16, Uint32, Uint64:
		return v.bits, true
	case Int32:
		if i := int32(uint32(v.bits)); i >= 0 {
			return uint64(i), true
		}
	case Int64:
		if i := int64(v.bits); i >= 0 {
			return uint64(i), true
		}
	}

	return 0, false
}

// Raw returns the 8-byte payload in little-endian order. Owned kinds have no inline payload and return zeroes.
func (v Variant) Raw() (raw [8]byte) {
	binary.LittleEndian.PutUint64(raw[:], v.bits)
	return
}

// Clear releases the payload if the kind owns one and resets the variant to Empty.
//
// POD kinds never call r. A nil r is treated as Discard.
func (v *Variant) Clear(r Releaser) error {
	if !v.kind.IsPOD() {
		if r == nil {
			r = Discard
		}

		if err := r.Release(v); err != nil {
			return fmt.Errorf("release %s payload error: %w", v.kind, err)
		}
	}

	*v = Variant{}
	return nil
}

// Equal returns true if both variants have the same kind and the same value.
//
// Strings compare by text; every other kind compares the raw 8-byte payload.
func (v Variant) Equal(o Variant) bool {
	if v.kind != o.kind {
		return false
	}

	if v.kind == String {
		return v.str == o.str
	}

	return v.bits == o.bits
}

func (v Variant) String() string {
	switch v.kind {
	case Empty, Null:
		return v.kind.String()
	case Bool:
		return v.kind.String() + "(" + strconv.FormatBool(v.bits != 0) + ")"
	case Int32:
		return v.kind.String() + "(" + strconv.FormatInt(int64(int32(uint32(v.bits))), 10) + ")"
	case Int64:
		return v.kind.String() + "(" + strconv.FormatInt(int64(v.bits), 10) + ")"
	case String:
		return v.kind.String() + "(" + strconv.Quote(v.str) + ")"
	case FileTime:
		return v.kind.String() + "(" + Ticks(v.bits).Time().Format(time.RFC3339Nano) + ")"
	case Pointer:
		return fmt.Sprintf("%s(0x%x)", v.kind, v.bits)
	default:
		return v.kind.String() + "(" + strconv.FormatUint(v.bits, 10) + ")"
	}
}
