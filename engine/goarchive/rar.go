package goarchive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mholt/archives"
	"github.com/nwaples/rardecode/v2"
)

// rarReader reads RAR archives. Entries can only be visited in order, so every walk decodes from the start.
type rarReader struct {
	src     *source
	entries []*Entry
}

var errStopWalk = errors.New("stop walk")

func (r *rarReader) format() archives.Rar {
	return archives.Rar{Password: r.src.password}
}

func (r *rarReader) list(src *source) ([]*Entry, error) {
	r.src = src

	err := r.scan()
	if errors.Is(err, rardecode.ErrArchiveEncrypted) {
		if _, ok := src.passwordFor(); !ok {
			return nil, fmt.Errorf("open rar error: %w", errNeedPassword)
		}

		if err = r.scan(); errors.Is(err, rardecode.ErrBadPassword) {
			return nil, fmt.Errorf("open rar error: %w", errWrongPassword)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open rar error: %w", err)
	}

	if len(r.entries) == 0 {
		return nil, errors.New("rar archive has no entries")
	}

	return r.entries, nil
}

func (r *rarReader) scan() error {
	r.entries = nil

	return r.format().Extract(context.Background(), r.src.section(), func(_ context.Context, info archives.FileInfo) error {
		e := &Entry{
			Name:     strings.TrimSuffix(info.NameInArchive, "/"),
			IsDir:    info.IsDir(),
			Size:     uint64(max(info.Size(), 0)),
			HasSize:  true,
			Mode:     info.Mode(),
			Modified: info.ModTime(),
		}
		if hdr, ok := info.Header.(*rardecode.FileHeader); ok {
			e.Encrypted = hdr.Encrypted
			e.PackedSize = uint64(max(hdr.PackedSize, 0))
			e.Created = hdr.CreationTime
			e.Accessed = hdr.AccessTime
			e.HasSize = !hdr.UnKnownSize
		}

		r.entries = append(r.entries, e)
		return nil
	})
}

func (r *rarReader) walk(want func(index int) bool, fn func(index int, r io.Reader) error) error {
	last := -1
	for i, e := range r.entries {
		if !want(i) {
			continue
		}

		last = i
		if e.Encrypted {
			r.src.passwordFor()
		}
	}
	if last < 0 {
		return nil
	}

	i := 0
	err := r.format().Extract(context.Background(), r.src.section(), func(_ context.Context, info archives.FileInfo) error {
		index := i
		i++

		switch {
		case index > last:
			return errStopWalk
		case !want(index):
			return nil
		}

		f, err := info.Open()
		if err != nil {
			return fn(index, errReader{err})
		}
		defer f.Close()

		return fn(index, f)
	})
	if errors.Is(err, errStopWalk) {
		return nil
	}

	return err
}
