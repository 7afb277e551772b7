package goarchive

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
)

// zipReader reads ZIP archives with random access.
type zipReader struct {
	zr *zip.Reader
}

func (z *zipReader) list(src *source) ([]*Entry, error) {
	zr, err := zip.NewReader(src.r, src.size)
	if err != nil {
		return nil, fmt.Errorf("open zip error: %w", err)
	}
	zr.RegisterDecompressor(zip.Deflate, flate.NewReader)
	z.zr = zr

	entries := make([]*Entry, len(zr.File))
	for i, f := range zr.File {
		isDir := strings.HasSuffix(f.Name, "/")
		entries[i] = &Entry{
			Name:       strings.TrimSuffix(f.Name, "/"),
			IsDir:      isDir,
			Size:       f.UncompressedSize64,
			HasSize:    true,
			PackedSize: f.CompressedSize64,
			CRC:        f.CRC32,
			HasCRC:     !isDir,
			Mode:       f.Mode(),
			Encrypted:  f.Flags&0x1 != 0,
			Method:     zipMethodName(f.Method),
			Comment:    f.Comment,
			Modified:   f.Modified,
		}
	}

	return entries, nil
}

func (z *zipReader) archiveComment() string {
	return z.zr.Comment
}

func (z *zipReader) walk(want func(index int) bool, fn func(index int, r io.Reader) error) error {
	for i, f := range z.zr.File {
		if !want(i) {
			continue
		}

		if err := z.walkFile(i, f, fn); err != nil {
			return err
		}
	}

	return nil
}

func (z *zipReader) walkFile(i int, f *zip.File, fn func(index int, r io.Reader) error) error {
	if f.Flags&0x1 != 0 {
		return fn(i, errReader{fmt.Errorf(`zip entry "%s" is encrypted: %w`, f.Name, errUnsupportedMethod)})
	}

	rc, err := f.Open()
	if err != nil {
		return fn(i, errReader{err})
	}
	defer rc.Close()

	return fn(i, rc)
}

func zipMethodName(method uint16) string {
	switch method {
	case zip.Store:
		return "Copy"
	case zip.Deflate:
		return "Deflate"
	case 12:
		return "BZip2"
	case 14:
		return "LZMA"
	case 93:
		return "ZSTD"
	case 95:
		return "XZ"
	case 99:
		return "AES"
	default:
		return fmt.Sprintf("%d", method)
	}
}

// zipWriter writes ZIP archives, copying unchanged entries of the source without recompressing them.
type zipWriter struct {
	*zip.Writer
	method uint16
}

func newZipWriter(dst io.Writer, s settings) (*zipWriter, error) {
	w := &zipWriter{Writer: zip.NewWriter(dst), method: zip.Deflate}

	switch strings.ToLower(s.method) {
	case "", "deflate":
	case "copy", "store":
		w.method = zip.Store
	default:
		return nil, fmt.Errorf(`zip method "%s": %w`, s.method, errUnsupportedMethod)
	}

	level := flate.BestCompression
	switch {
	case s.level == 0:
		w.method = zip.Store
	case s.level > 0:
		level = min(s.level, flate.BestCompression)
	}

	w.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, level)
	})

	return w, nil
}

func (w *zipWriter) add(e *Entry, r io.Reader) error {
	fh := &zip.FileHeader{
		Name:     e.Name,
		Method:   w.method,
		Modified: e.Modified,
	}
	fh.SetMode(e.Mode)
	if e.IsDir {
		fh.Name += "/"
		fh.Method = zip.Store
	}

	fw, err := w.CreateHeader(fh)
	if err != nil {
		return fmt.Errorf(`create zip entry "%s" error: %w`, fh.Name, err)
	}

	if e.IsDir || r == nil {
		return nil
	}

	_, err = io.Copy(fw, r)
	return err
}

func (w *zipWriter) copy(src reader, index int, e *Entry) error {
	z, ok := src.(*zipReader)
	if !ok {
		return fmt.Errorf("cannot copy entries of %T into zip", src)
	}

	f := z.zr.File[index]
	name := e.Name
	if e.IsDir {
		name += "/"
	}
	if name == f.Name {
		return w.Copy(f)
	}

	// the old header keeps its timestamps; a zero Modified stops the writer from appending a second one.
	fh := f.FileHeader
	fh.Name = name
	fh.Modified = time.Time{}

	fw, err := w.CreateRaw(&fh)
	if err != nil {
		return fmt.Errorf(`create zip entry "%s" error: %w`, fh.Name, err)
	}

	rc, err := f.OpenRaw()
	if err != nil {
		return fmt.Errorf(`open zip entry "%s" error: %w`, f.Name, err)
	}

	_, err = io.Copy(fw, rc)
	return err
}

func (w *zipWriter) close() error {
	return w.Close()
}
