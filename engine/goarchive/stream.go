package goarchive

import (
	"bufio"
	"fmt"
	"io"
	"path"
	"strings"
)

// streamReader presents a single compressed stream as one item.
type streamReader struct {
	codec codec
	src   *source
}

// streamItemName derives the name of the decompressed item from the archive's name.
func streamItemName(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" || base == "" {
		return "data"
	}

	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	switch strings.ToLower(ext) {
	case ".tgz", ".tbz", ".tbz2", ".txz", ".tzst":
		return stem + ".tar"
	case "":
		return base + "~"
	}

	if stem == "" {
		return "data"
	}

	return stem
}

func (s *streamReader) list(src *source) ([]*Entry, error) {
	s.src = src

	dec, err := s.codec.NewDecoder(bufio.NewReader(src.section()))
	if err != nil {
		return nil, fmt.Errorf("open %s stream error: %w", s.codec.Method(), err)
	}
	_ = dec.Close()

	return []*Entry{{
		Name:       streamItemName(src.name),
		PackedSize: uint64(src.size),
		Mode:       0o644,
		Method:     s.codec.Method(),
	}}, nil
}

func (s *streamReader) walk(want func(index int) bool, fn func(index int, r io.Reader) error) error {
	if !want(0) {
		return nil
	}

	dec, err := s.codec.NewDecoder(bufio.NewReader(s.src.section()))
	if err != nil {
		return fn(0, errReader{err})
	}
	defer dec.Close()

	return fn(0, dec)
}
