package goarchive

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// tarReader reads tar archives sequentially, rewinding when an earlier entry is asked for.
type tarReader struct {
	src     *source
	tr      *tar.Reader
	next    int
	headers []*tar.Header
}

func (t *tarReader) rewind() {
	t.tr = tar.NewReader(t.src.section())
	t.next = 0
}

// nextHeader returns the next entry, skipping global PAX headers which are not items.
func (t *tarReader) nextHeader() (*tar.Header, error) {
	for {
		hdr, err := t.tr.Next()
		if err != nil {
			return nil, err
		}

		if hdr.Typeflag != tar.TypeXGlobalHeader {
			return hdr, nil
		}
	}
}

func (t *tarReader) list(src *source) ([]*Entry, error) {
	t.src = src
	t.rewind()

	var entries []*Entry
	for {
		hdr, err := t.nextHeader()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar header error: %w", err)
		}

		fi := hdr.FileInfo()
		isDir := hdr.Typeflag == tar.TypeDir
		entries = append(entries, &Entry{
			Name:     strings.TrimSuffix(hdr.Name, "/"),
			IsDir:    isDir,
			Size:     uint64(max(hdr.Size, 0)),
			HasSize:  true,
			Mode:     fi.Mode(),
			Accessed: hdr.AccessTime,
			Modified: hdr.ModTime,
		})
		t.headers = append(t.headers, hdr)
	}

	if len(entries) == 0 {
		return nil, errors.New("tar archive has no entries")
	}

	t.rewind()
	return entries, nil
}

// seek positions the reader at the data of the entry at index.
func (t *tarReader) seek(index int) (io.Reader, error) {
	if index < t.next {
		t.rewind()
	}

	for {
		if _, err := t.nextHeader(); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("seek tar entry %d error: %w", index, err)
		}

		i := t.next
		t.next++
		if i == index {
			return t.tr, nil
		}
	}
}

func (t *tarReader) walk(want func(index int) bool, fn func(index int, r io.Reader) error) error {
	for i := range t.headers {
		if !want(i) {
			continue
		}

		r, err := t.seek(i)
		if err != nil {
			return err
		}

		if err = fn(i, r); err != nil {
			return err
		}
	}

	return nil
}

// tarWriter writes tar archives.
type tarWriter struct {
	*tar.Writer
}

func newTarWriter(dst io.Writer) *tarWriter {
	return &tarWriter{Writer: tar.NewWriter(dst)}
}

func (w *tarWriter) add(e *Entry, r io.Reader) error {
	hdr := &tar.Header{
		Typeflag:   tar.TypeReg,
		Name:       e.Name,
		Mode:       int64(e.Mode.Perm()),
		ModTime:    e.Modified,
		AccessTime: e.Accessed,
	}
	if e.IsDir {
		hdr.Typeflag = tar.TypeDir
		hdr.Name += "/"
		return w.WriteHeader(hdr)
	}

	if r == nil {
		r = bytes.NewReader(nil)
		e.Size, e.HasSize = 0, true
	}

	// the header carries the size so data of unknown size is buffered first.
	if !e.HasSize {
		buf := &bytes.Buffer{}
		if _, err := io.Copy(buf, r); err != nil {
			return err
		}
		r, e.Size = buf, uint64(buf.Len())
	}
	hdr.Size = int64(e.Size)

	if err := w.WriteHeader(hdr); err != nil {
		return fmt.Errorf(`write tar header "%s" error: %w`, hdr.Name, err)
	}

	n, err := io.Copy(w, r)
	if err == nil && n != hdr.Size {
		err = fmt.Errorf(`tar entry "%s" has %d bytes, header says %d: %w`, hdr.Name, n, hdr.Size, io.ErrUnexpectedEOF)
	}

	return err
}

func (w *tarWriter) copy(src reader, index int, e *Entry) error {
	t, ok := src.(*tarReader)
	if !ok {
		return fmt.Errorf("cannot copy entries of %T into tar", src)
	}

	hdr := *t.headers[index]
	hdr.Name = e.Name
	if e.IsDir {
		hdr.Name += "/"
	}

	r, err := t.seek(index)
	if err != nil {
		return err
	}

	if err = w.WriteHeader(&hdr); err != nil {
		return fmt.Errorf(`write tar header "%s" error: %w`, hdr.Name, err)
	}

	_, err = io.Copy(w, r)
	return err
}

func (w *tarWriter) close() error {
	return w.Close()
}
