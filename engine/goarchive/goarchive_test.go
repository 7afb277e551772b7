package goarchive_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nguyengg/xy7z"
	"github.com/nguyengg/xy7z/engine"
	"github.com/nguyengg/xy7z/engine/goarchive"
	"github.com/nguyengg/xy7z/format"
	"github.com/nguyengg/xy7z/variant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

// writeTree creates dir/src with two files and returns the items to compress it.
func writeTree(t *testing.T, dir string) []*xy7z.ArchiveItem {
	t.Helper()

	for name, content := range map[string]string{
		"a.txt":     "hello, world",
		"sub/b.txt": "the quick brown fox jumps over the lazy dog",
	} {
		path := filepath.Join(dir, "src", filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		require.NoError(t, os.Chtimes(path, testTime, testTime))
	}

	items, err := xy7z.WalkItems(context.Background(), filepath.Join(dir, "src"))
	require.NoErrorf(t, err, "WalkItems() error = %v", err)
	return items
}

func paths(t *testing.T, r *xy7z.Reader) (got []string) {
	t.Helper()

	for e, err := range r.Entries() {
		require.NoError(t, err)
		got = append(got, e.Path)
	}

	return
}

func TestLibrary_Containers(t *testing.T) {
	tests := []struct {
		name string
		f    format.Format
	}{
		{name: "test.zip", f: format.Zip},
		{name: "test.tar", f: format.Tar},
	}
	for _, tt := range tests {
		t.Run(tt.f.String(), func(t *testing.T) {
			dir, err := os.MkdirTemp("", "*")
			require.NoError(t, err)
			defer os.RemoveAll(dir)

			ctx, lib := context.Background(), goarchive.New()
			name := filepath.Join(dir, tt.name)
			require.NoError(t, xy7z.Create(ctx, lib, tt.f, name, writeTree(t, dir)))

			r, err := xy7z.OpenFile(ctx, lib, name)
			require.NoErrorf(t, err, "OpenFile() error = %v", err)
			defer r.Close()

			assert.Equal(t, tt.f, r.Format())
			assert.Equal(t, []string{"src", "src/a.txt", "src/sub", "src/sub/b.txt"}, paths(t, r))

			entry, err := r.Entry(1)
			require.NoError(t, err)
			assert.Equal(t, uint64(12), entry.Size)
			assert.False(t, entry.IsDir)
			assert.Equal(t, os.FileMode(0644), entry.Perm())
			assert.True(t, testTime.Equal(entry.Modified), "Modified = %v", entry.Modified)

			out := filepath.Join(dir, "out")
			require.NoError(t, os.Mkdir(out, 0755))
			assert.NoError(t, r.Extract(ctx, out, nil))

			data, err := os.ReadFile(filepath.Join(out, "src", "sub", "b.txt"))
			assert.NoError(t, err)
			assert.Equal(t, "the quick brown fox jumps over the lazy dog", string(data))

			buf := &bytes.Buffer{}
			assert.NoError(t, r.ExtractTo(ctx, 1, buf))
			assert.Equal(t, "hello, world", buf.String())

			assert.NoError(t, r.Test(ctx, nil))
		})
	}
}

func TestLibrary_SingleStream(t *testing.T) {
	tests := []struct {
		f      format.Format
		method string
	}{
		{f: format.GZip, method: "Deflate"},
		{f: format.Zstd, method: "ZSTD"},
		{f: format.XZ, method: "LZMA2"},
		{f: format.BZip2, method: "BZip2"},
		{f: format.Lz4, method: "LZ4"},
	}
	for _, tt := range tests {
		t.Run(tt.f.String(), func(t *testing.T) {
			dir, err := os.MkdirTemp("", "*")
			require.NoError(t, err)
			defer os.RemoveAll(dir)

			content := bytes.Repeat([]byte("xy7z "), 1000)
			ctx, lib := context.Background(), goarchive.New()
			name := filepath.Join(dir, "data.bin"+tt.f.Ext())
			item := xy7z.StreamItem("data.bin", bytes.NewReader(content), int64(len(content)), testTime)
			require.NoError(t, xy7z.Create(ctx, lib, tt.f, name, []*xy7z.ArchiveItem{item}))

			r, err := xy7z.OpenFile(ctx, lib, name)
			require.NoErrorf(t, err, "OpenFile() error = %v", err)
			defer r.Close()

			assert.Equal(t, tt.f, r.Format())
			assert.Equal(t, []string{"data.bin"}, paths(t, r))

			entry, err := r.Entry(0)
			require.NoError(t, err)
			assert.Equal(t, tt.method, entry.Method)

			buf := &bytes.Buffer{}
			assert.NoError(t, r.ExtractTo(ctx, 0, buf))
			assert.Equal(t, content, buf.Bytes())
		})
	}
}

func TestLibrary_SingleStreamRejectsSecondItem(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	err = xy7z.Create(context.Background(), goarchive.New(), format.GZip, filepath.Join(dir, "two.gz"), []*xy7z.ArchiveItem{
		xy7z.StreamItem("a", bytes.NewReader([]byte("a")), 1, testTime),
		xy7z.StreamItem("b", bytes.NewReader([]byte("b")), 1, testTime),
	})
	assert.ErrorIs(t, err, engine.ErrEngineFailure)
	assert.NoFileExists(t, filepath.Join(dir, "two.gz"))
}

func TestLibrary_AppendAndModify(t *testing.T) {
	tests := []struct {
		name string
		f    format.Format
	}{
		{name: "test.zip", f: format.Zip},
		{name: "test.tar", f: format.Tar},
	}
	for _, tt := range tests {
		t.Run(tt.f.String(), func(t *testing.T) {
			dir, err := os.MkdirTemp("", "*")
			require.NoError(t, err)
			defer os.RemoveAll(dir)

			ctx, lib := context.Background(), goarchive.New()
			name := filepath.Join(dir, tt.name)
			require.NoError(t, xy7z.Create(ctx, lib, tt.f, name, writeTree(t, dir)))

			src, err := xy7z.OpenFile(ctx, lib, name)
			require.NoError(t, err)
			defer src.Close()

			appended := filepath.Join(dir, "appended"+tt.f.Ext())
			err = xy7z.Create(ctx, lib, tt.f, appended, []*xy7z.ArchiveItem{
				xy7z.StreamItem("src/c.txt", bytes.NewReader([]byte("new")), 3, testTime),
			}, xy7z.AppendTo(src))
			require.NoErrorf(t, err, "Create(AppendTo) error = %v", err)

			r, err := xy7z.OpenFile(ctx, lib, appended)
			require.NoError(t, err)
			defer r.Close()
			assert.Equal(t, []string{"src", "src/a.txt", "src/sub", "src/sub/b.txt", "src/c.txt"}, paths(t, r))

			modified := filepath.Join(dir, "modified"+tt.f.Ext())
			err = xy7z.Create(ctx, lib, tt.f, modified, []*xy7z.ArchiveItem{
				xy7z.RenameItem(1, "src/renamed.txt"),
				xy7z.DeleteItem(4),
			}, xy7z.ModifyFrom(r))
			require.NoErrorf(t, err, "Create(ModifyFrom) error = %v", err)

			m, err := xy7z.OpenFile(ctx, lib, modified)
			require.NoError(t, err)
			defer m.Close()
			assert.Equal(t, []string{"src", "src/renamed.txt", "src/sub", "src/sub/b.txt"}, paths(t, m))

			buf := &bytes.Buffer{}
			assert.NoError(t, m.ExtractTo(ctx, 1, buf))
			assert.Equal(t, "hello, world", buf.String())
		})
	}
}

func TestLibrary_SplitVolumes(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	ctx, lib := context.Background(), goarchive.New()
	name := filepath.Join(dir, "split.zip")
	require.NoError(t, xy7z.Create(ctx, lib, format.Zip, name, writeTree(t, dir), func(opts *xy7z.UpdateOptions) {
		opts.VolumeSize = 100
	}))

	volumes, err := filepath.Glob(name + ".*")
	require.NoError(t, err)
	require.Greater(t, len(volumes), 1)

	r, err := xy7z.OpenFile(ctx, lib, volumes[0], func(opts *xy7z.OpenOptions) {
		opts.Format = format.Split
	})
	require.NoErrorf(t, err, "OpenFile() error = %v", err)
	defer r.Close()

	assert.Equal(t, []string{"split.zip"}, paths(t, r))

	v, err := r.ArchiveProperty(engine.KpidNumVolumes)
	assert.NoError(t, err)
	n, _ := v.AsUint64()
	assert.Equal(t, uint64(len(volumes)), n)

	buf := &bytes.Buffer{}
	require.NoError(t, r.ExtractTo(ctx, 0, buf))

	joined, err := xy7z.Open(ctx, lib, bytes.NewReader(buf.Bytes()))
	require.NoErrorf(t, err, "Open() error = %v", err)
	defer joined.Close()
	assert.Equal(t, []string{"src", "src/a.txt", "src/sub", "src/sub/b.txt"}, paths(t, joined))
}

func TestLibrary_CRCError(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	ctx, lib := context.Background(), goarchive.New()
	name := filepath.Join(dir, "stored.zip")
	require.NoError(t, xy7z.Create(ctx, lib, format.Zip, name, writeTree(t, dir), func(opts *xy7z.UpdateOptions) {
		opts.Properties = xy7z.CompressionProperties(xy7z.CompressionOptions{Level: 0})
	}))

	data, err := os.ReadFile(name)
	require.NoError(t, err)
	i := bytes.Index(data, []byte("quick brown"))
	require.Positive(t, i, "stored data must be found verbatim")
	data[i] = 'Q'
	require.NoError(t, os.WriteFile(name, data, 0644))

	r, err := xy7z.OpenFile(ctx, lib, name)
	require.NoError(t, err)
	defer r.Close()

	err = r.Test(ctx, nil)
	var itemErrs *xy7z.ItemErrors
	require.ErrorAs(t, err, &itemErrs)
	assert.Equal(t, map[uint32]engine.OperationResult{3: engine.OpCRCError}, itemErrs.Results())
}

func TestOutArchive_SetProperties(t *testing.T) {
	tests := []struct {
		name  string
		props variant.PropertyList
		want  engine.Result
	}{
		{
			name:  "level and method",
			props: variant.PropertyList{{Name: "x", Value: variant.FromUint32(9)}, {Name: "m", Value: variant.FromString("Deflate")}},
			want:  engine.S_OK,
		},
		{
			name:  "threads",
			props: variant.PropertyList{{Name: "mt", Value: variant.FromUint32(4)}},
			want:  engine.S_OK,
		},
		{
			name:  "solid is not supported",
			props: variant.PropertyList{{Name: "s", Value: variant.FromBool(true)}},
			want:  engine.E_INVALIDARG,
		},
		{
			name:  "method must be a string",
			props: variant.PropertyList{{Name: "m", Value: variant.FromUint32(1)}},
			want:  engine.E_INVALIDARG,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := goarchive.New().NewOutArchive(format.Zip)
			require.NoError(t, err)

			names, values := tt.props.Arrays()
			assert.Equal(t, tt.want, out.SetProperties(names, values))
		})
	}
}

func TestLibrary_Unavailable(t *testing.T) {
	lib := goarchive.New()

	_, err := lib.NewInArchive(format.Iso)
	assert.ErrorIs(t, err, engine.ErrEngineUnavailable)

	_, err = lib.NewOutArchive(format.SevenZip)
	assert.ErrorIs(t, err, engine.ErrEngineUnavailable)

	_, err = lib.NewInArchive(format.SevenZip)
	assert.NoError(t, err)
}

func TestOpen_UnrecognizedContent(t *testing.T) {
	_, err := xy7z.Open(context.Background(), goarchive.New(), bytes.NewReader(bytes.Repeat([]byte("not a zip "), 10)), func(opts *xy7z.OpenOptions) {
		opts.Format = format.Zip
	})
	assert.ErrorIs(t, err, xy7z.ErrUnrecognizedFormat)
}

func TestOpenFile_SFX(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	ctx, lib := context.Background(), goarchive.New()
	name := filepath.Join(dir, "test.zip")
	require.NoError(t, xy7z.Create(ctx, lib, format.Zip, name, writeTree(t, dir)))
	zipData, err := os.ReadFile(name)
	require.NoError(t, err)

	// a stub executable of 1000 bytes followed by the zip archive.
	data := append(append([]byte("MZ"), make([]byte, 998)...), zipData...)
	sfx := filepath.Join(dir, "test.exe")
	require.NoError(t, os.WriteFile(sfx, data, 0644))

	r, err := xy7z.OpenFile(ctx, lib, sfx)
	require.NoErrorf(t, err, "OpenFile() error = %v", err)
	defer r.Close()

	assert.Equal(t, format.Zip, r.Format())
	assert.Equal(t, int64(1000), r.Offset())
	assert.Equal(t, []string{"src", "src/a.txt", "src/sub", "src/sub/b.txt"}, paths(t, r))

	var buf bytes.Buffer
	require.NoError(t, r.ExtractTo(ctx, 1, &buf))
	assert.Equal(t, "hello, world", buf.String())
}
