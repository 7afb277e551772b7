package variant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPropertyList_Order(t *testing.T) {
	var l PropertyList
	assert.NoError(t, l.Add("x", FromUint32(9)))
	assert.NoError(t, l.Add("m", FromString("LZMA2")))
	assert.NoError(t, l.Add("he", FromBool(true)))
	assert.NoError(t, l.Add("x", FromUint32(5)))
	assert.ErrorIs(t, l.Add("", Variant{}), ErrEmptyPropertyName)

	names, values := l.Arrays()
	assert.Equal(t, []string{"x", "m", "he"}, names)
	assert.True(t, values[0].Equal(FromUint32(5)), "replacing keeps the original position")
	assert.True(t, values[1].Equal(FromString("LZMA2")))
	assert.True(t, values[2].Equal(FromBool(true)))

	_, ok := l.Get("X")
	assert.False(t, ok, "names are case-sensitive")
}

func TestParsePropertyList(t *testing.T) {
	l, err := ParsePropertyList([]string{"x=9", "m=Deflate", "he=on", "mt=off", "em"})
	assert.NoError(t, err)

	tests := []struct {
		name string
		want Variant
	}{
		{name: "x", want: FromUint32(9)},
		{name: "m", want: FromString("Deflate")},
		{name: "he", want: FromBool(true)},
		{name: "mt", want: FromBool(false)},
		{name: "em", want: Variant{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := l.Get(tt.name)
			assert.True(t, ok)
			assert.Truef(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
		})
	}

	_, err = ParsePropertyList([]string{"=1"})
	assert.ErrorIs(t, err, ErrEmptyPropertyName)
}
