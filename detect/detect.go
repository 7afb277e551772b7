// Package detect classifies a byte stream into an archive format by looking at its contents instead of its name.
package detect

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nguyengg/xy7z/format"
	"github.com/nguyengg/xy7z/util"
)

const (
	// MinSize is the signature window: streams shorter than this are rejected with ErrInvalidInput.
	MinSize = 16

	// SFXScanSize is the number of leading bytes of an executable searched for an embedded archive.
	SFXScanSize = 256 * 1024

	// trailerSize is the number of trailing bytes inspected by the trailing-zero tar heuristic.
	trailerSize = 1024

	// lzhOffset is where the "-lh" method id of an LZH header sits, after the header size and checksum bytes.
	lzhOffset = 2

	tarProbeOffset = 257
	hfsProbeOffset = 0x400
)

var (
	// ErrInvalidInput is returned if the stream is too short or cannot be read.
	ErrInvalidInput = errors.New("invalid input stream")

	// ErrUnrecognizedFormat is returned if every probe was exhausted without a match.
	ErrUnrecognizedFormat = errors.New("unrecognized archive format")
)

// isoProbeOffsets are the offsets of the "CD001" standard identifier in the first three volume descriptors.
var isoProbeOffsets = []int64{0x8001, 0x8801, 0x9001}

// sfxFormats are the formats searched for inside a self-extracting executable.
var sfxFormats = []format.Format{format.Zip, format.SevenZip, format.Rar4, format.Cab, format.Arj}

// Result is the outcome of a successful detection.
type Result struct {
	// Format is the detected format.
	Format format.Format
	// Offset is the start of the archive within the stream; non-zero only for self-extracting executables.
	Offset int64
}

func (r Result) String() string {
	if r.Offset == 0 {
		return r.Format.String()
	}

	return fmt.Sprintf("%s@0x%x", r.Format, r.Offset)
}

// Options customises Detect.
type Options struct {
	// TrailingZeroTar enables the last-resort heuristic that classifies a stream ending with 1024 zero bytes as tar.
	//
	// The heuristic is low-confidence: other zero-padded formats (raw disk images for example) are misclassified as
	// tar. It runs after all the fixed-offset probes so ISO and HFS images are never affected. Default to true.
	TrailingZeroTar bool
}

// Detect classifies the contents of r.
//
// The checks run in a fixed order and the first one to match wins:
//
//  1. the first MinSize bytes are compared against the signature table of package format, in table order. An LZH
//     signature is also accepted at byte offset 2. A PE ("MZ") match is remembered and checked last.
//  2. fixed-offset probes: ISO at 0x8001, 0x8801, 0x9001; HFS at 0x400; tar at 257 (best-effort).
//  3. if Options.TrailingZeroTar, a stream whose last 1024 bytes are all zero is tar.
//  4. a PE match searches the first SFXScanSize bytes for an embedded archive; the lowest offset wins, otherwise the
//     result is a plain PE at offset 0.
//
// ErrUnrecognizedFormat is returned if nothing matched. The read offset of r is restored before returning, so Detect
// can be called repeatedly on the same stream with identical results.
func Detect(r io.ReadSeeker, optFns ...func(*Options)) (res Result, err error) {
	opts := &Options{
		TrailingZeroTar: true,
	}
	for _, fn := range optFns {
		fn(opts)
	}

	rs := util.ResetOnCloseReadSeeker(r)
	defer func() {
		if cerr := rs.Close(); cerr != nil && err == nil {
			res, err = Result{}, fmt.Errorf("restore read offset error: %v: %w", cerr, ErrInvalidInput)
		}
	}()

	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return res, fmt.Errorf("determine stream size error: %v: %w", err, ErrInvalidInput)
	}
	if size < MinSize {
		return res, fmt.Errorf("stream has %d bytes, need at least %d: %w", size, MinSize, ErrInvalidInput)
	}

	head := make([]byte, MinSize)
	if err = readAt(rs, head, 0); err != nil {
		return res, fmt.Errorf("read signature window error: %v: %w", err, ErrInvalidInput)
	}

	executable := false
	for s := range format.Signatures() {
		if !s.MatchAt(head, 0) && !(s.Format == format.Lzh && s.MatchAt(head, lzhOffset)) {
			continue
		}

		if s.Format == format.PE {
			executable = true
			continue
		}

		return Result{Format: s.Format}, nil
	}

	iso, _ := format.SignatureOf(format.Iso)
	for _, off := range isoProbeOffsets {
		switch ok, err := probe(rs, size, off, iso); {
		case err != nil:
			return res, fmt.Errorf("probe ISO at 0x%x error: %v: %w", off, err, ErrInvalidInput)
		case ok:
			return Result{Format: format.Iso}, nil
		}
	}

	hfs, _ := format.SignatureOf(format.Hfs)
	switch ok, err := probe(rs, size, hfsProbeOffset, hfs); {
	case err != nil:
		return res, fmt.Errorf("probe HFS at 0x%x error: %v: %w", hfsProbeOffset, err, ErrInvalidInput)
	case ok:
		return Result{Format: format.Hfs}, nil
	}

	tar, _ := format.SignatureOf(format.Tar)
	if ok, _ := probe(rs, size, tarProbeOffset, tar); ok {
		return Result{Format: format.Tar}, nil
	}

	if opts.TrailingZeroTar && size >= trailerSize {
		trailer := make([]byte, trailerSize)
		if err = readAt(rs, trailer, size-trailerSize); err != nil {
			return res, fmt.Errorf("read trailer error: %v: %w", err, ErrInvalidInput)
		}

		if allZero(trailer) {
			return Result{Format: format.Tar}, nil
		}
	}

	if executable {
		return detectSFX(rs, size)
	}

	return res, ErrUnrecognizedFormat
}

// detectSFX searches the start of an executable for the earliest embedded archive signature.
func detectSFX(r io.ReadSeeker, size int64) (Result, error) {
	buf := make([]byte, min(size, SFXScanSize))
	if err := readAt(r, buf, 0); err != nil {
		return Result{}, fmt.Errorf("read executable error: %v: %w", err, ErrInvalidInput)
	}

	res := Result{Format: format.PE}
	best := -1
	for _, f := range sfxFormats {
		s, ok := format.SignatureOf(f)
		if !ok {
			continue
		}

		if i := s.Index(buf); i >= 0 && (best == -1 || i < best) {
			best = i
			res = Result{Format: f, Offset: int64(i)}
		}
	}

	return res, nil
}

// probe checks for the signature at the given offset. A stream too short to contain it is not an error.
func probe(r io.ReadSeeker, size, off int64, s format.Signature) (bool, error) {
	if size < off+int64(s.Len()) {
		return false, nil
	}

	buf := make([]byte, s.Len())
	if err := readAt(r, buf, off); err != nil {
		return false, err
	}

	return s.MatchAt(buf, 0), nil
}

func readAt(r io.ReadSeeker, p []byte, off int64) error {
	if _, err := r.Seek(off, io.SeekStart); err != nil {
		return err
	}

	_, err := io.ReadFull(r, p)
	return err
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}

	return true
}

// DetectFile detects the format of the named file.
//
// If byte detection fails with ErrInvalidInput or ErrUnrecognizedFormat, the file name extension is looked up in the
// extension table of package format instead. ErrUnrecognizedFormat is returned if that fails as well.
func DetectFile(name string, optFns ...func(*Options)) (Result, error) {
	f, err := os.Open(name)
	if err != nil {
		return Result{}, fmt.Errorf(`open file "%s" error: %w`, name, err)
	}
	defer f.Close()

	res, err := Detect(f, optFns...)
	if err == nil || !(errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrUnrecognizedFormat)) {
		return res, err
	}

	if ff, ok := FromName(name); ok {
		return Result{Format: ff}, nil
	}

	return Result{}, fmt.Errorf(`detect "%s" error: %v: %w`, name, err, ErrUnrecognizedFormat)
}

// FromName maps the extension of the file name to a format.
func FromName(name string) (format.Format, bool) {
	return format.FromExtension(filepath.Ext(name))
}
