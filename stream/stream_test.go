package stream

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stingyReader returns (0, nil) on every other call and never more than 3 bytes otherwise.
type stingyReader struct {
	*bytes.Reader
	calls int
}

func (r *stingyReader) Read(p []byte) (int, error) {
	r.calls++
	if r.calls%2 == 1 {
		return 0, nil
	}

	return r.Reader.Read(p[:min(len(p), 3)])
}

// stingyWriter never writes more than 3 bytes per call.
type stingyWriter struct {
	*os.File
}

func (w stingyWriter) Write(p []byte) (int, error) {
	if len(p) <= 3 {
		return w.File.Write(p)
	}

	n, err := w.File.Write(p[:3])
	if err == nil {
		err = io.ErrShortWrite
	}
	return n, err
}

func TestInStream_PartialReads(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")

	var reported int
	s := NewIn(&stingyReader{Reader: bytes.NewReader(data)}, func(opts *Options) {
		opts.OnRead = func(n int) { reported += n }
	})

	var got []byte
	buf := make([]byte, 16)
	for {
		n, err := s.Read(buf)
		if err == io.EOF {
			break
		}
		require.NoErrorf(t, err, "Read() error = %v", err)
		require.Positive(t, n, "Read() must not return 0 bytes before EOF")
		got = append(got, buf[:n]...)
	}

	assert.Equal(t, data, got)
	assert.Equal(t, len(data), reported)
}

type seekOnlyReader struct {
	io.ReadSeeker
}

type emptyReader struct {
	io.ReadSeeker
}

func (emptyReader) Read([]byte) (int, error) {
	return 0, nil
}

func TestInStream_NoProgress(t *testing.T) {
	_, err := NewIn(emptyReader{bytes.NewReader(nil)}).Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.ErrNoProgress)
}

func TestInStream_ReadAtAndSize(t *testing.T) {
	data := []byte("0123456789")
	tests := []struct {
		name string
		r    io.ReadSeeker
	}{
		{name: "reader at", r: bytes.NewReader(data)},
		{name: "seek only", r: seekOnlyReader{bytes.NewReader(data)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _ = tt.r.Seek(2, io.SeekStart)
			s := NewIn(tt.r)

			size, err := s.Size()
			assert.NoError(t, err)
			assert.Equal(t, int64(len(data)), size)

			p := make([]byte, 4)
			n, err := s.ReadAt(p, 5)
			assert.NoError(t, err)
			assert.Equal(t, 4, n)
			assert.Equal(t, "5678", string(p))

			// a short read at the tail is io.EOF like any io.ReaderAt.
			n, err = s.ReadAt(p, 8)
			assert.Equal(t, io.EOF, err)
			assert.Equal(t, 2, n)
			assert.Equal(t, "89", string(p[:n]))

			n, err = s.ReadAt(p, 12)
			assert.Equal(t, io.EOF, err)
			assert.Equal(t, 0, n)

			pos, _ := s.Seek(0, io.SeekCurrent)
			assert.Equal(t, int64(2), pos)
		})
	}
}

func TestOutStream_PartialWrites(t *testing.T) {
	f, err := os.CreateTemp("", "*")
	require.NoError(t, err)
	defer os.Remove(f.Name())

	var reported int
	s := NewOut(stingyWriter{f}, func(opts *Options) {
		opts.OnWrite = func(n int) { reported += n }
		opts.Owned = true
	})

	data := []byte("hello, world!")
	for p := data; len(p) > 0; {
		n, err := s.Write(p)
		if err != nil && !errors.Is(err, io.ErrShortWrite) {
			require.NoErrorf(t, err, "Write() error = %v", err)
		}
		p = p[n:]
	}

	assert.Equal(t, len(data), reported)

	require.NoError(t, s.SetSize(5))
	size, err := s.Size()
	assert.NoError(t, err)
	assert.Equal(t, int64(5), size)

	require.NoError(t, s.Close())

	got, err := os.ReadFile(f.Name())
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

type seekOnlyWriter struct {
	io.WriteSeeker
}

func TestOutStream_SetSizeUnsupported(t *testing.T) {
	assert.ErrorIs(t, NewOut(seekOnlyWriter{}).SetSize(0), ErrNotTruncatable)
}

func TestOutStream_CloseAppliesFileTimes(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	modified := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)
	name := filepath.Join(dir, "item.txt")

	s, err := CreateFile(name, 0666, func(opts *Options) {
		opts.FileTimes = FileTimes{Accessed: modified, Modified: modified}
	})
	require.NoError(t, err)

	_, err = s.Write([]byte("contents"))
	assert.NoError(t, err)
	require.NoError(t, s.Close())

	fi, err := os.Stat(name)
	require.NoError(t, err)
	assert.True(t, modified.Equal(fi.ModTime()), "ModTime() = %v, want %v", fi.ModTime(), modified)
}

func TestInStream_CloseOwnership(t *testing.T) {
	f, err := os.CreateTemp("", "*")
	require.NoError(t, err)
	defer os.Remove(f.Name())

	// not owned: the file must still be usable afterwards.
	assert.NoError(t, NewIn(f).Close())
	_, err = f.Write([]byte("x"))
	assert.NoError(t, err)

	assert.NoError(t, NewIn(f, func(opts *Options) { opts.Owned = true }).Close())
	_, err = f.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed)
}
