package variant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// countingReleaser counts how many times the release routine was invoked.
type countingReleaser struct {
	n int
}

func (r *countingReleaser) Release(*Variant) error {
	r.n++
	return nil
}

func TestVariant_PODRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		payload any
	}{
		{name: "empty", kind: Empty, payload: nil},
		{name: "null", kind: Null, payload: nil},
		{name: "bool true", kind: Bool, payload: true},
		{name: "bool false", kind: Bool, payload: false},
		{name: "byte", kind: Byte, payload: byte(0xAB)},
		{name: "uint16", kind: Uint16, payload: uint16(0xBEEF)},
		{name: "uint32", kind: Uint32, payload: uint32(0xDEADBEEF)},
		{name: "uint64", kind: Uint64, payload: uint64(1) << 63},
		{name: "int32", kind: Int32, payload: int32(-42)},
		{name: "int64", kind: Int64, payload: int64(-1) << 40},
		{name: "filetime", kind: FileTime, payload: TicksOf(time.Date(2020, 2, 29, 12, 30, 0, 100, time.UTC))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v Variant
			assert.NoError(t, v.Set(tt.kind, tt.payload))
			assert.Equal(t, tt.kind, v.Kind())

			got, err := v.Get(tt.kind)
			assert.NoError(t, err)
			assert.Equalf(t, tt.payload, got, "Get(%s) = %v, want %v", tt.kind, got, tt.payload)

			r := &countingReleaser{}
			assert.NoError(t, v.Clear(r))
			assert.Equal(t, Empty, v.Kind())
			assert.Equalf(t, 0, r.n, "Clear() of POD kind %s must not call the releaser", tt.kind)
		})
	}
}

func TestVariant_ClearOwned(t *testing.T) {
	r := &countingReleaser{}

	v := FromString("secret")
	assert.NoError(t, v.Clear(r))
	assert.Equal(t, 1, r.n)
	assert.Equal(t, Empty, v.Kind())

	v = FromPointer(0x1000)
	assert.NoError(t, v.Clear(r))
	assert.Equal(t, 2, r.n)
}

func TestVariant_SetRequiresClear(t *testing.T) {
	v := FromString("owned")
	assert.ErrorIs(t, v.Set(Uint32, uint32(1)), ErrNotCleared)

	assert.NoError(t, v.Clear(nil))
	assert.NoError(t, v.Set(Uint32, uint32(1)))

	// POD kinds can be overwritten freely.
	assert.NoError(t, v.Set(String, "text"))
}

func TestVariant_TypeMismatch(t *testing.T) {
	v := FromUint32(7)

	_, err := v.Get(Uint64)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	var tme *TypeMismatchError
	assert.ErrorAs(t, err, &tme)
	assert.Equal(t, Uint64, tme.Want)
	assert.Equal(t, Uint32, tme.Got)

	_, err = v.Text()
	assert.ErrorIs(t, err, ErrTypeMismatch)

	assert.ErrorIs(t, v.Set(Uint32, 7), ErrTypeMismatch, "int payload is not uint32")
}

func TestVariant_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b Variant
		want bool
	}{
		{name: "same uint32", a: FromUint32(5), b: FromUint32(5), want: true},
		{name: "different uint32", a: FromUint32(5), b: FromUint32(6), want: false},
		{name: "same raw bytes, different kind", a: FromUint32(5), b: FromUint64(5), want: false},
		{name: "int64 vs filetime", a: FromInt64(1000), b: FromTicks(1000), want: false},
		{name: "same string", a: FromString("a.txt"), b: FromString("a.txt"), want: true},
		{name: "different string", a: FromString("a.txt"), b: FromString("A.txt"), want: false},
		{name: "bools", a: FromBool(true), b: FromBool(true), want: true},
		{name: "empty", a: Variant{}, b: Variant{}, want: true},
		{name: "empty vs null", a: Variant{}, b: NullValue(), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equalf(t, tt.want, tt.a.Equal(tt.b), "%v.Equal(%v)", tt.a, tt.b)
			assert.Equalf(t, tt.want, tt.b.Equal(tt.a), "%v.Equal(%v)", tt.b, tt.a)
		})
	}
}

func TestTicks(t *testing.T) {
	now := time.Date(2024, 7, 1, 8, 0, 0, 123456700, time.UTC)
	assert.True(t, now.Equal(TicksOf(now).Time()))

	// 1601-01-01 is the FILETIME epoch.
	unix := time.Unix(0, 0).UTC()
	assert.Equal(t, Ticks(ticksToUnixEpoch), TicksOf(unix))

	assert.Equal(t, Ticks(0), TicksOf(time.Time{}))
	assert.True(t, Ticks(0).Time().IsZero())
}

func TestVariant_AsUint64(t *testing.T) {
	for _, v := range []Variant{FromByte(9), FromUint16(9), FromUint32(9), FromUint64(9), FromInt32(9), FromInt64(9)} {
		u, ok := v.AsUint64()
		assert.Truef(t, ok, "%v.AsUint64()", v)
		assert.Equal(t, uint64(9), u)
	}

	_, ok := FromInt64(-1).AsUint64()
	assert.False(t, ok)
	_, ok = FromString("9").AsUint64()
	assert.False(t, ok)
}

func TestVariant_String(t *testing.T) {
	assert.Equal(t, "VT_UI4(5)", FromUint32(5).String())
	assert.Equal(t, `VT_BSTR("a")`, FromString("a").String())
	assert.Equal(t, "VT_BOOL(true)", FromBool(true).String())
	assert.Equal(t, "VT_EMPTY", Variant{}.String())
	assert.Equal(t, "VT_I8(-3)", FromInt64(-3).String())
}
