// Package stream adapts host byte streams to the narrow read, write and seek contracts the engine calls into.
//
// An InStream is handed to the engine whenever it needs to pull bytes (the archive being opened, the contents of a
// new item during an update); an OutStream whenever it pushes bytes (the archive being written, an extracted item).
// Both report every transferred byte to an optional hook so that progress can be observed without the engine's
// cooperation.
package stream

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// maxEmptyReads is the number of consecutive (0, nil) reads tolerated before Read gives up with io.ErrNoProgress.
const maxEmptyReads = 100

// ErrNotTruncatable is returned by OutStream.SetSize if the target does not implement Truncater.
var ErrNotTruncatable = errors.New("stream does not support setting its size")

// Truncater is implemented by targets whose size can be changed, such as *os.File.
type Truncater interface {
	Truncate(size int64) error
}

// FileTimes are the timestamps rewritten onto a produced file after its handle is closed.
//
// Zero values are left unchanged. Created is only honoured on Windows; other platforms have no portable way to set a
// file's creation time.
type FileTimes struct {
	Name     string
	Created  time.Time
	Accessed time.Time
	Modified time.Time
}

// IsZero returns true if there is nothing to rewrite.
func (ft FileTimes) IsZero() bool {
	return ft.Name == "" || (ft.Created.IsZero() && ft.Accessed.IsZero() && ft.Modified.IsZero())
}

// Apply rewrites the timestamps onto the named file.
func (ft FileTimes) Apply() error {
	if ft.IsZero() {
		return nil
	}

	if err := setFileTimes(ft); err != nil {
		return fmt.Errorf(`set file times of "%s" error: %w`, ft.Name, err)
	}

	return nil
}

// Options customises the stream constructors.
type Options struct {
	// OnRead is called after every successful read with the number of bytes read.
	OnRead func(n int)
	// OnWrite is called after every write with the number of bytes actually written.
	OnWrite func(n int)

	// Owned causes Close to also close the wrapped stream if it implements io.Closer.
	Owned bool

	// FileTimes, if not zero, is applied by OutStream.Close after the wrapped stream has been closed.
	FileTimes FileTimes
}

// InStream is the engine-facing read side.
type InStream struct {
	r    io.ReadSeeker
	opts Options
}

// NewIn wraps r. The stream is not owned unless Options.Owned is set.
func NewIn(r io.ReadSeeker, optFns ...func(*Options)) *InStream {
	s := &InStream{r: r}
	for _, fn := range optFns {
		fn(&s.opts)
	}

	return s
}

// OpenFile opens the named file as an owned InStream.
func OpenFile(name string, optFns ...func(*Options)) (*InStream, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	return NewIn(f, append(optFns, func(opts *Options) { opts.Owned = true })...), nil
}

// Read reads up to len(p) bytes.
//
// Unlike a plain io.Reader, Read never returns (0, nil) for a non-empty p: zero-byte reads from the wrapped stream
// are retried until at least one byte is available, the stream ends, or the wrapped stream stops making progress.
func (s *InStream) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}

	for i := 0; i < maxEmptyReads; i++ {
		if n, err = s.r.Read(p); n > 0 || err != nil {
			if n > 0 && s.opts.OnRead != nil {
				s.opts.OnRead(n)
			}

			return n, err
		}
	}

	return 0, io.ErrNoProgress
}

// ReadAt reads len(p) bytes starting at off without moving the read offset.
//
// If the wrapped stream implements io.ReaderAt it is used directly; otherwise the offset is saved, moved and restored
// around the read.
func (s *InStream) ReadAt(p []byte, off int64) (n int, err error) {
	if ra, ok := s.r.(io.ReaderAt); ok {
		n, err = ra.ReadAt(p, off)
	} else {
		n, err = s.readAt(p, off)
	}

	if n > 0 && s.opts.OnRead != nil {
		s.opts.OnRead(n)
	}

	return n, err
}

func (s *InStream) readAt(p []byte, off int64) (n int, err error) {
	cur, err := s.r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}

	defer func() {
		if _, serr := s.r.Seek(cur, io.SeekStart); serr != nil && err == nil {
			err = serr
		}
	}()

	if _, err = s.r.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}

	n, err = io.ReadFull(s.r, p)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}

	return n, err
}

// Seek implements io.Seeker.
func (s *InStream) Seek(offset int64, whence int) (int64, error) {
	return s.r.Seek(offset, whence)
}

// Size returns the length of the stream, leaving the read offset where it was.
func (s *InStream) Size() (int64, error) {
	return size(s.r)
}

// Close closes the wrapped stream if owned.
func (s *InStream) Close() error {
	if c, ok := s.r.(io.Closer); ok && s.opts.Owned {
		return c.Close()
	}

	return nil
}

// OutStream is the engine-facing write side.
type OutStream struct {
	w    io.WriteSeeker
	opts Options
}

// NewOut wraps w. The stream is not owned unless Options.Owned is set.
func NewOut(w io.WriteSeeker, optFns ...func(*Options)) *OutStream {
	s := &OutStream{w: w}
	for _, fn := range optFns {
		fn(&s.opts)
	}

	return s
}

// CreateFile creates or truncates the named file as an owned OutStream.
//
// If Options.FileTimes has no name, the timestamps are applied to the created file.
func CreateFile(name string, perm os.FileMode, optFns ...func(*Options)) (*OutStream, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return nil, err
	}

	return NewOut(f, append(optFns, func(opts *Options) {
		opts.Owned = true
		if opts.FileTimes.Name == "" {
			opts.FileTimes.Name = name
		}
	})...), nil
}

// Write writes p to the wrapped stream.
//
// Partial writes are passed through unchanged; OnWrite only ever sees the number of bytes actually written.
func (s *OutStream) Write(p []byte) (n int, err error) {
	n, err = s.w.Write(p)
	if n > 0 && s.opts.OnWrite != nil {
		s.opts.OnWrite(n)
	}

	return n, err
}

// Seek implements io.Seeker.
func (s *OutStream) Seek(offset int64, whence int) (int64, error) {
	return s.w.Seek(offset, whence)
}

// SetSize truncates or extends the wrapped stream.
func (s *OutStream) SetSize(n int64) error {
	t, ok := s.w.(Truncater)
	if !ok {
		return ErrNotTruncatable
	}

	return t.Truncate(n)
}

// Size returns the length of the stream, leaving the write offset where it was.
func (s *OutStream) Size() (int64, error) {
	return size(s.w)
}

// Close closes the wrapped stream if owned, then rewrites FileTimes if any.
func (s *OutStream) Close() error {
	if c, ok := s.w.(io.Closer); ok && s.opts.Owned {
		if err := c.Close(); err != nil {
			return err
		}
	}

	return s.opts.FileTimes.Apply()
}

func size(s io.Seeker) (int64, error) {
	cur, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}

	n, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}

	_, err = s.Seek(cur, io.SeekStart)
	return n, err
}
