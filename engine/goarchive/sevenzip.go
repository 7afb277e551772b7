package goarchive

import (
	"errors"
	"fmt"
	"io"

	"github.com/bodgit/sevenzip"
)

// sevenZipReader reads 7z archives, including those with encrypted headers or data.
type sevenZipReader struct {
	src *source
	zr  *sevenzip.Reader
}

func isEncrypted(err error) bool {
	var re *sevenzip.ReadError
	return errors.As(err, &re) && re.Encrypted
}

func (s *sevenZipReader) list(src *source) ([]*Entry, error) {
	s.src = src

	zr, err := sevenzip.NewReader(src.r, src.size)
	if isEncrypted(err) {
		password, ok := src.passwordFor()
		if !ok {
			return nil, fmt.Errorf("open 7z error: %w", errNeedPassword)
		}

		if zr, err = sevenzip.NewReaderWithPassword(src.r, src.size, password); isEncrypted(err) {
			return nil, fmt.Errorf("open 7z error: %w", errWrongPassword)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open 7z error: %w", err)
	}
	s.zr = zr

	entries := make([]*Entry, len(zr.File))
	for i, f := range zr.File {
		fi := f.FileInfo()
		entries[i] = &Entry{
			Name:     f.Name,
			IsDir:    fi.IsDir(),
			Size:     f.UncompressedSize,
			HasSize:  true,
			CRC:      f.CRC32,
			HasCRC:   !fi.IsDir() && f.CRC32 != 0,
			Mode:     f.Mode(),
			Created:  f.Created,
			Accessed: f.Accessed,
			Modified: f.Modified,
		}
	}

	return entries, nil
}

// reopen parses the archive again with password so that encrypted data can be read.
func (s *sevenZipReader) reopen(password string) error {
	zr, err := sevenzip.NewReaderWithPassword(s.src.r, s.src.size, password)
	if err != nil {
		return err
	}

	s.zr = zr
	return nil
}

func (s *sevenZipReader) walk(want func(index int) bool, fn func(index int, r io.Reader) error) error {
	for i := range s.zr.File {
		if !want(i) {
			continue
		}

		if err := s.walkFile(i, fn); err != nil {
			return err
		}
	}

	return nil
}

func (s *sevenZipReader) walkFile(i int, fn func(index int, r io.Reader) error) error {
	rc, err := s.zr.File[i].Open()
	if isEncrypted(err) && !s.src.hasPassword {
		if password, ok := s.src.passwordFor(); ok {
			if err = s.reopen(password); err == nil {
				rc, err = s.zr.File[i].Open()
			}
		}
	}
	if isEncrypted(err) {
		err = fmt.Errorf("%w: %w", errWrongPassword, err)
	}
	if err != nil {
		return fn(i, errReader{err})
	}
	defer rc.Close()

	return fn(i, &sevenZipData{rc})
}

// sevenZipData marks read errors from encrypted folders as password errors.
type sevenZipData struct {
	io.Reader
}

func (d *sevenZipData) Read(p []byte) (n int, err error) {
	n, err = d.Reader.Read(p)
	if isEncrypted(err) {
		err = fmt.Errorf("%w: %w", errWrongPassword, err)
	}

	return
}
