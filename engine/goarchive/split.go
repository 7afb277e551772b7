package goarchive

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nguyengg/xy7z/engine"
)

// splitName splits a volume name such as "a.zip.001" into "a.zip." and 1.
func splitName(name string) (prefix string, n, width int, ok bool) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return "", 0, 0, false
	}

	digits := name[i+1:]
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return "", 0, 0, false
	}

	return name[:i+1], n, len(digits), true
}

// openVolumes asks for the volumes following src.name until the callback reports there are no more.
func openVolumes(src *source, vc engine.VolumeCallback) engine.Result {
	prefix, n, width, ok := splitName(src.name)
	if !ok {
		return engine.S_OK
	}

	for {
		n++
		name := fmt.Sprintf("%s%0*d", prefix, width, n)

		in, res := vc.VolumeStream(name)
		switch {
		case res == engine.S_FALSE || (res.Succeeded() && in == nil):
			return engine.S_OK
		case !res.Succeeded():
			return res
		}

		size, err := in.Seek(0, io.SeekEnd)
		if err != nil {
			return engine.E_FAIL
		}

		src.volumes = append(src.volumes, io.NewSectionReader(readerAt(in), 0, size))
	}
}

// splitReader presents the concatenation of all volumes as one item.
type splitReader struct {
	src *source
}

func (s *splitReader) list(src *source) ([]*Entry, error) {
	s.src = src

	name := "data"
	if prefix, _, _, ok := splitName(src.name); ok {
		name = strings.TrimSuffix(prefix, ".")
	}

	size := uint64(src.size)
	for _, v := range src.volumes {
		size += uint64(v.Size())
	}

	return []*Entry{{
		Name:       name,
		Size:       size,
		HasSize:    true,
		PackedSize: size,
		Mode:       0o644,
		Method:     "Copy",
	}}, nil
}

func (s *splitReader) walk(want func(index int) bool, fn func(index int, r io.Reader) error) error {
	if !want(0) {
		return nil
	}

	readers := []io.Reader{s.src.section()}
	for _, v := range s.src.volumes {
		readers = append(readers, io.NewSectionReader(v, 0, v.Size()))
	}

	return fn(0, io.MultiReader(readers...))
}
