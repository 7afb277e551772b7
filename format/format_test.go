package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignatureOf(t *testing.T) {
	tests := []struct {
		format Format
		hex    string
	}{
		{format: Zip, hex: "50-4B-03-04"},
		{format: SevenZip, hex: "37-7A-BC-AF-27-1C"},
		{format: Iso, hex: "43-44-30-30-31"},
		{format: Tar, hex: "75-73-74-61-72"},
		{format: Cpio, hex: "30-37-30-37-30-31"},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			s, ok := SignatureOf(tt.format)
			assert.True(t, ok)
			assert.Equal(t, tt.hex, s.Hex)
			assert.Equal(t, tt.format, s.Format)
		})
	}

	_, ok := SignatureOf(Msi)
	assert.False(t, ok, "Msi is recognised by extension only")
}

func TestSignature_MatchAt(t *testing.T) {
	s, _ := SignatureOf(Lzh)
	b := []byte{0x1A, 0x00, '-', 'l', 'h', '5', '-'}

	assert.False(t, s.MatchAt(b, 0))
	assert.True(t, s.MatchAt(b, 2))
	assert.False(t, s.MatchAt(b, 100))
	assert.Equal(t, 2, s.Index(b))
	assert.Equal(t, 3, s.Len())
}

func TestSignatures_Order(t *testing.T) {
	var got []Format
	for s := range Signatures() {
		got = append(got, s.Format)
		if len(got) == 3 {
			break
		}
	}

	assert.Equal(t, []Format{SevenZip, GZip, Tar}, got)
}

func TestFromExtension(t *testing.T) {
	f, ok := FromExtension(".ZIP")
	assert.True(t, ok)
	assert.Equal(t, Zip, f)

	f, ok = FromExtension(".tgz")
	assert.True(t, ok)
	assert.Equal(t, GZip, f)

	_, ok = FromExtension(".txt")
	assert.False(t, ok)
}

func TestFormat_Names(t *testing.T) {
	assert.Equal(t, "7z", SevenZip.String())
	assert.Equal(t, ".7z", SevenZip.Ext())
	assert.Equal(t, ".zip", Zip.Ext())
	assert.Equal(t, ".tar", Tar.Ext())
	assert.Equal(t, "application/zip", Zip.ContentType())

	f, ok := Parse("zip")
	assert.True(t, ok)
	assert.Equal(t, Zip, f)

	f, ok = Parse("7Z")
	assert.True(t, ok)
	assert.Equal(t, SevenZip, f)

	_, ok = Parse("unknown")
	assert.False(t, ok)
}
