package xy7z

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/nguyengg/xy7z/detect"
	"github.com/nguyengg/xy7z/engine"
	"github.com/nguyengg/xy7z/format"
	"github.com/nguyengg/xy7z/stream"
	"github.com/nguyengg/xy7z/util"
	"github.com/nguyengg/xy7z/variant"
)

// DefaultMaxCheckStartPosition is how far into the stream the engine may look for the start of the archive.
const DefaultMaxCheckStartPosition = 4 << 20

// Entry is the metadata of one item of an opened archive.
type Entry struct {
	Index      uint32
	Path       string
	IsDir      bool
	Size       uint64
	PackedSize uint64
	// CRC is only meaningful if HasCRC is true.
	CRC        uint32
	HasCRC     bool
	Attributes uint32
	Encrypted  bool
	Method     string
	Comment    string

	Created, Accessed, Modified time.Time
}

// Perm returns the permission bits to create the extracted file with.
func (e Entry) Perm() os.FileMode {
	if e.Attributes&AttributeUnixExtension != 0 {
		if perm := os.FileMode(e.Attributes>>16) & os.ModePerm; perm != 0 {
			return perm
		}
	}

	if e.Attributes&AttributeReadOnly != 0 {
		return 0444
	}

	return 0666
}

// OpenOptions customises Open and OpenFile.
type OpenOptions struct {
	// Format skips detection if not format.Unknown.
	Format format.Format
	// Offset is the start of the archive within the stream. Only used if Format is set.
	Offset int64
	// DetectOptions are passed to detect.Detect when Format is format.Unknown.
	DetectOptions []func(*detect.Options)

	// Name is the name of the first volume, answered when the engine asks for KpidName. OpenFile sets it.
	Name string
	// VolumeOpener resolves sibling volumes. OpenFile defaults to FileVolumeOpener of the archive's directory.
	VolumeOpener VolumeOpener

	// Password is given to the engine whenever it asks. Ignored unless HasPassword is true.
	Password    string
	HasPassword bool

	// MaxCheckStartPosition is passed to InArchive.Open. Default to DefaultMaxCheckStartPosition.
	MaxCheckStartPosition uint64

	ProgressReporter ProgressReporter
}

// WithPassword sets the password used to open and extract the archive.
func WithPassword(password string) func(*OpenOptions) {
	return func(opts *OpenOptions) {
		opts.Password = password
		opts.HasPassword = true
	}
}

// Reader is an opened archive session.
//
// Reader serialises every operation with a mutex because the engine runs one operation per handle at a time.
type Reader struct {
	mu     sync.Mutex
	lib    engine.Library
	arc    engine.InArchive
	cb     *OpenCallback
	format format.Format
	offset int64
	opts   OpenOptions
	closer func() error
	closed bool
}

// Open opens the archive in r.
//
// If the format is not given, it is detected from the contents of r. A self-extracting executable is opened at the
// offset of its embedded archive. r must remain valid until Reader.Close.
func Open(ctx context.Context, lib engine.Library, r io.ReadSeeker, optFns ...func(*OpenOptions)) (*Reader, error) {
	opts := OpenOptions{MaxCheckStartPosition: DefaultMaxCheckStartPosition}
	for _, fn := range optFns {
		fn(&opts)
	}

	return open(ctx, lib, r, opts)
}

// OpenFile opens the named archive. Sibling volumes are looked up in the same directory.
func OpenFile(ctx context.Context, lib engine.Library, name string, optFns ...func(*OpenOptions)) (*Reader, error) {
	opts := OpenOptions{
		Name:                  name,
		VolumeOpener:          FileVolumeOpener(filepath.Dir(name)),
		MaxCheckStartPosition: DefaultMaxCheckStartPosition,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Format == format.Unknown {
		res, err := detect.DetectFile(name, opts.DetectOptions...)
		if err != nil {
			return nil, err
		}
		opts.Format, opts.Offset = res.Format, res.Offset
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf(`open file "%s" error: %w`, name, err)
	}

	a, err := open(ctx, lib, f, opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	a.closer = util.ChainCloser(a.closer, f.Close)
	return a, nil
}

func open(ctx context.Context, lib engine.Library, r io.ReadSeeker, opts OpenOptions) (*Reader, error) {
	offset := opts.Offset
	if opts.Format == format.Unknown {
		res, err := detect.Detect(r, opts.DetectOptions...)
		if err != nil {
			return nil, err
		}

		opts.Format, offset = res.Format, res.Offset
	}

	in := stream.NewIn(r)
	if offset > 0 {
		size, err := in.Size()
		if err != nil {
			return nil, fmt.Errorf("determine stream size error: %v: %w", err, ErrInvalidInput)
		}

		in = stream.NewIn(io.NewSectionReader(in, offset, size-offset))
	}

	arc, err := lib.NewInArchive(opts.Format)
	if err != nil {
		return nil, fmt.Errorf("create %s handle error: %w", opts.Format, err)
	}

	cb := NewOpenCallback(ctx, opts.Name, func(o *OpenCallbackOptions) {
		o.Password = opts.Password
		o.HasPassword = opts.HasPassword
		o.VolumeOpener = opts.VolumeOpener
		o.ProgressReporter = opts.ProgressReporter
	})

	res := arc.Open(in, opts.MaxCheckStartPosition, cb)
	if err = cb.finish(res); err == nil && res == engine.S_FALSE {
		err = fmt.Errorf("engine cannot open stream as %s: %w", opts.Format, ErrUnrecognizedFormat)
	}
	if err != nil {
		_ = arc.Close()
		_ = cb.Close()
		return nil, err
	}

	return &Reader{
		lib:    lib,
		arc:    arc,
		cb:     cb,
		format: opts.Format,
		offset: offset,
		opts:   opts,
		closer: util.ChainCloser(func() error { return arc.Close().Err("Close") }, cb.Close),
	}, nil
}

// Format returns the format the archive was opened as.
func (a *Reader) Format() format.Format {
	return a.format
}

// Offset returns the start of the archive within the stream; non-zero for self-extracting executables.
func (a *Reader) Offset() int64 {
	return a.offset
}

// Len returns the number of items.
func (a *Reader) Len() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return 0, ErrClosed
	}

	n, res := a.arc.NumberOfItems()
	return int(n), res.Err("NumberOfItems")
}

// Entry returns the metadata of the item at index.
func (a *Reader) Entry(index uint32) (Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return Entry{}, ErrClosed
	}

	return a.entry(index)
}

// Entries iterates the metadata of every item in index order.
//
// Iteration stops after the first error.
func (a *Reader) Entries() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		n, err := a.Len()
		if err != nil {
			yield(Entry{}, err)
			return
		}

		for i := 0; i < n; i++ {
			e, err := a.Entry(uint32(i))
			if !yield(e, err) || err != nil {
				return
			}
		}
	}
}

// entryProps are the item properties read into an Entry.
var entryProps = []engine.PropID{
	engine.KpidPath,
	engine.KpidIsDir,
	engine.KpidSize,
	engine.KpidPackSize,
	engine.KpidCRC,
	engine.KpidAttrib,
	engine.KpidEncrypted,
	engine.KpidMethod,
	engine.KpidComment,
	engine.KpidCTime,
	engine.KpidATime,
	engine.KpidMTime,
}

func (a *Reader) entry(index uint32) (e Entry, err error) {
	e.Index = index

	for _, propID := range entryProps {
		v, res := a.arc.Property(index, propID)
		if err = res.Err("Property"); err != nil {
			return e, fmt.Errorf("get %s of item %d error: %w", propID, index, err)
		}

		setEntryProperty(&e, propID, v)

		if err = v.Clear(a.lib); err != nil {
			return e, fmt.Errorf("release %s of item %d error: %w", propID, index, err)
		}
	}

	return e, nil
}

// setEntryProperty assigns v to the field of e identified by propID. Empty variants and unexpected kinds are ignored.
func setEntryProperty(e *Entry, propID engine.PropID, v variant.Variant) {
	switch propID {
	case engine.KpidPath:
		e.Path, _ = v.Text()
	case engine.KpidIsDir:
		e.IsDir, _ = v.Bool()
	case engine.KpidSize:
		e.Size, _ = v.AsUint64()
	case engine.KpidPackSize:
		e.PackedSize, _ = v.AsUint64()
	case engine.KpidCRC:
		var crc uint64
		crc, e.HasCRC = v.AsUint64()
		e.CRC = uint32(crc)
	case engine.KpidAttrib:
		attrib, _ := v.AsUint64()
		e.Attributes = uint32(attrib)
	case engine.KpidEncrypted:
		e.Encrypted, _ = v.Bool()
	case engine.KpidMethod:
		e.Method, _ = v.Text()
	case engine.KpidComment:
		e.Comment, _ = v.Text()
	case engine.KpidCTime:
		e.Created = timeOf(v)
	case engine.KpidATime:
		e.Accessed = timeOf(v)
	case engine.KpidMTime:
		e.Modified = timeOf(v)
	}
}

func timeOf(v variant.Variant) time.Time {
	if t, err := v.Time(); err == nil {
		return t
	}

	return time.Time{}
}

// ArchiveProperty returns an archive-level property such as engine.KpidComment or engine.KpidSolid.
//
// The returned variant is a Go-owned copy; the engine's original has already been released.
func (a *Reader) ArchiveProperty(propID engine.PropID) (variant.Variant, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return variant.Variant{}, ErrClosed
	}

	v, res := a.arc.ArchiveProperty(propID)
	if err := res.Err("ArchiveProperty"); err != nil {
		return variant.Variant{}, err
	}

	cp := v
	if err := v.Clear(a.lib); err != nil {
		return variant.Variant{}, fmt.Errorf("release %s error: %w", propID, err)
	}

	return cp, nil
}

// ExtractOptions customises Reader.Extract, Reader.ExtractTo and Reader.Test.
type ExtractOptions struct {
	ProgressReporter ProgressReporter
	ItemReporter     ItemReporter
}

// Extract extracts the items at indexes into dir, or every item if indexes is empty.
//
// Failed items do not stop the extraction; they are returned together as *ItemErrors afterwards.
func (a *Reader) Extract(ctx context.Context, dir string, indexes []uint32, optFns ...func(*ExtractOptions)) error {
	return a.extract(ctx, indexes, false, optFns, func(opts *ExtractCallbackOptions) {
		opts.Dir = dir
	})
}

// ExtractTo writes the data of the item at index to w.
func (a *Reader) ExtractTo(ctx context.Context, index uint32, w io.Writer, optFns ...func(*ExtractOptions)) error {
	return a.extract(ctx, []uint32{index}, false, optFns, func(opts *ExtractCallbackOptions) {
		opts.Writer = w
	})
}

// Test decodes the items at indexes, or every item if indexes is empty, verifying their integrity without writing them.
func (a *Reader) Test(ctx context.Context, indexes []uint32, optFns ...func(*ExtractOptions)) error {
	return a.extract(ctx, indexes, true, optFns, nil)
}

func (a *Reader) extract(ctx context.Context, indexes []uint32, testMode bool, optFns []func(*ExtractOptions), target func(*ExtractCallbackOptions)) (err error) {
	opts := ExtractOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}

	indexes, numItems := sortedIndexes(indexes)
	total := numItems
	if numItems == engine.AllItems {
		var res engine.Result
		if total, res = a.arc.NumberOfItems(); !res.Succeeded() {
			return res.Err("NumberOfItems")
		}
	}

	cb := NewExtractCallback(ctx, total, a.entry, func(o *ExtractCallbackOptions) {
		o.Password = a.opts.Password
		o.HasPassword = a.opts.HasPassword
		o.ProgressReporter = opts.ProgressReporter
		o.ItemReporter = opts.ItemReporter
		if target != nil {
			target(o)
		}
	})
	defer func() {
		if cerr := cb.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	res := a.arc.Extract(indexes, numItems, testMode, cb)
	if err = cb.fault.outcome("Extract", res); err != nil {
		return err
	}

	return cb.ItemErrors()
}

// sortedIndexes returns a sorted copy of indexes without duplicates, or (nil, engine.AllItems) if indexes is empty.
func sortedIndexes(indexes []uint32) ([]uint32, uint32) {
	if len(indexes) == 0 {
		return nil, engine.AllItems
	}

	indexes = slices.Clone(indexes)
	slices.Sort(indexes)
	indexes = slices.Compact(indexes)
	return indexes, uint32(len(indexes))
}

// Close closes the archive handle, then the volumes the engine opened, then the file if opened with OpenFile.
func (a *Reader) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}

	a.closed = true
	return a.closer()
}
