package goarchive

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/nguyengg/xy7z/engine"
	"github.com/nguyengg/xy7z/format"
	"github.com/nguyengg/xy7z/variant"
)

// source is the opened archive stream.
type source struct {
	r    io.ReaderAt
	size int64
	// name is the volume name reported by the open callback, if any.
	name string
	// volumes are the volumes of a split archive after the first one.
	volumes []*io.SectionReader

	password    string
	hasPassword bool
	// ask is the provider of the operation in progress, asked at most once.
	ask engine.PasswordProvider
}

// passwordFor returns the password, asking the current provider the first time.
func (s *source) passwordFor() (string, bool) {
	if s.hasPassword {
		return s.password, true
	}

	if s.ask != nil {
		password, defined, res := s.ask.Password()
		s.ask = nil
		if res.Succeeded() && defined {
			s.password, s.hasPassword = password, true
		}
	}

	return s.password, s.hasPassword
}

func (s *source) section() *io.SectionReader {
	return io.NewSectionReader(s.r, 0, s.size)
}

// reader parses one container format.
type reader interface {
	// list parses the container and returns its entries in index order.
	list(src *source) ([]*Entry, error)
	// walk calls fn with the data of each entry for which want returns true, in index order.
	//
	// Decoding errors of an entry are returned by the io.Reader passed to fn. An error returned by fn stops the walk and
	// is returned as is.
	walk(want func(index int) bool, fn func(index int, r io.Reader) error) error
}

func newReader(f format.Format) reader {
	switch f {
	case format.Zip:
		return &zipReader{}
	case format.Tar:
		return &tarReader{}
	case format.SevenZip:
		return &sevenZipReader{}
	case format.Rar, format.Rar4:
		return &rarReader{}
	case format.Split:
		return &splitReader{}
	default:
		return &streamReader{codec: codecOf(f)}
	}
}

var (
	errNeedPassword      = errors.New("password required")
	errWrongPassword     = errors.New("wrong password")
	errUnsupportedMethod = errors.New("unsupported method")
)

// abortError stops an Extract or UpdateItems call with res.
type abortError struct {
	res engine.Result
	err error
}

func (e *abortError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("abort with %s: %v", e.res, e.err)
	}

	return fmt.Sprintf("abort with %s", e.res)
}

func (e *abortError) Unwrap() error {
	return e.err
}

// errReader returns err on every read.
type errReader struct {
	err error
}

func (r errReader) Read([]byte) (int, error) {
	return 0, r.err
}

// readerAt returns in as an io.ReaderAt.
func readerAt(in engine.InStream) io.ReaderAt {
	if ra, ok := in.(io.ReaderAt); ok {
		return ra
	}

	return &seekReaderAt{in}
}

type seekReaderAt struct {
	in engine.InStream
}

func (r *seekReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if _, err := r.in.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}

	n, err := io.ReadFull(r.in, p)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}

	return n, err
}

// InArchive implements engine.InArchive.
type InArchive struct {
	format  format.Format
	src     *source
	r       reader
	entries []*Entry
	comment string
}

var _ engine.InArchive = (*InArchive)(nil)

// Open parses the archive.
//
// Archives that do not start at offset 0 must be passed as a section starting at the archive; maxCheckStartPosition
// is not used.
func (a *InArchive) Open(in engine.InStream, _ uint64, cb engine.OpenCallback) engine.Result {
	a.Close()

	size, err := in.Seek(0, io.SeekEnd)
	if err != nil {
		return engine.E_FAIL
	}

	src := &source{r: readerAt(in), size: size}
	if pp, ok := cb.(engine.PasswordProvider); ok {
		src.ask = pp
	}

	vc, _ := cb.(engine.VolumeCallback)
	if vc != nil {
		if v, res := vc.VolumeProperty(engine.KpidName); !res.Succeeded() {
			return res
		} else if name, err := v.Text(); err == nil {
			src.name = name
		}
	}

	if res := cb.SetTotal(uint64(size)); !res.Succeeded() {
		return res
	}

	if a.format == format.Split && vc != nil {
		if res := openVolumes(src, vc); !res.Succeeded() {
			return res
		}
	}

	r := newReader(a.format)
	entries, err := r.list(src)
	switch {
	case errors.Is(err, errNeedPassword):
		return engine.E_ABORT
	case errors.Is(err, errWrongPassword):
		return engine.E_FAIL
	case err != nil:
		return engine.S_FALSE
	}
	src.ask = nil

	if res := cb.SetCompleted(uint64(size)); !res.Succeeded() {
		return res
	}

	a.src, a.r, a.entries = src, r, entries
	if c, ok := r.(interface{ archiveComment() string }); ok {
		a.comment = c.archiveComment()
	}

	return engine.S_OK
}

func (a *InArchive) Close() engine.Result {
	a.src, a.r, a.entries, a.comment = nil, nil, nil, ""
	return engine.S_OK
}

func (a *InArchive) NumberOfItems() (uint32, engine.Result) {
	if a.r == nil {
		return 0, engine.E_FAIL
	}

	return uint32(len(a.entries)), engine.S_OK
}

func (a *InArchive) Property(index uint32, propID engine.PropID) (v variant.Variant, res engine.Result) {
	if a.r == nil || index >= uint32(len(a.entries)) {
		return v, engine.E_INVALIDARG
	}

	return a.entries[index].property(propID), engine.S_OK
}

func (a *InArchive) ArchiveProperty(propID engine.PropID) (v variant.Variant, res engine.Result) {
	if a.r == nil {
		return v, engine.E_FAIL
	}

	switch propID {
	case engine.KpidComment:
		if a.comment != "" {
			v = variant.FromString(a.comment)
		}
	case engine.KpidEncrypted:
		v = variant.FromBool(slices.ContainsFunc(a.entries, func(e *Entry) bool { return e.Encrypted }))
	case engine.KpidNumVolumes:
		v = variant.FromUint32(uint32(len(a.src.volumes) + 1))
	case engine.KpidIsVolume:
		v = variant.FromBool(a.format == format.Split)
	}

	return v, engine.S_OK
}

func (a *InArchive) Extract(indexes []uint32, numItems uint32, testMode bool, cb engine.ExtractCallback) engine.Result {
	if a.r == nil {
		return engine.E_FAIL
	}

	want := make([]bool, len(a.entries))
	if numItems == engine.AllItems {
		for i := range want {
			want[i] = true
		}
	} else {
		if uint32(len(indexes)) != numItems || !slices.IsSorted(indexes) {
			return engine.E_INVALIDARG
		}

		for _, i := range indexes {
			if i >= uint32(len(a.entries)) {
				return engine.E_INVALIDARG
			}
			want[i] = true
		}
	}

	var total uint64
	for i, e := range a.entries {
		if want[i] {
			total += e.Size
		}
	}
	if res := cb.SetTotal(total); !res.Succeeded() {
		return res
	}

	if pp, ok := cb.(engine.PasswordProvider); ok {
		a.src.ask = pp
		defer func() { a.src.ask = nil }()
	}

	mode := engine.AskExtract
	if testMode {
		mode = engine.AskTest
	}

	p := &progressWriter{cb: cb}
	err := a.r.walk(func(i int) bool { return want[i] }, func(i int, r io.Reader) error {
		return a.extractItem(uint32(i), r, mode, cb, p)
	})

	var ae *abortError
	switch {
	case errors.As(err, &ae):
		return ae.res
	case err != nil:
		return engine.E_FAIL
	}

	return engine.S_OK
}

func (a *InArchive) extractItem(index uint32, r io.Reader, mode engine.AskMode, cb engine.ExtractCallback, p *progressWriter) error {
	w, res := cb.Stream(index, mode)
	if !res.Succeeded() {
		return &abortError{res: res}
	}
	if res = cb.PrepareOperation(mode); !res.Succeeded() {
		return &abortError{res: res}
	}

	var err error
	if !a.entries[index].IsDir {
		p.w = io.Discard
		if w != nil {
			p.w = &hostWriter{w}
		}

		_, err = io.Copy(p, r)
	}

	var ae *abortError
	if errors.As(err, &ae) {
		return ae
	}

	if res = cb.SetOperationResult(operationResult(err)); !res.Succeeded() {
		return &abortError{res: res}
	}

	return nil
}

// progressWriter reports every byte written to w as completed.
type progressWriter struct {
	w         io.Writer
	cb        engine.Progress
	completed uint64
}

func (p *progressWriter) Write(b []byte) (n int, err error) {
	n, err = p.w.Write(b)
	p.completed += uint64(n)

	if res := p.cb.SetCompleted(p.completed); !res.Succeeded() && err == nil {
		err = &abortError{res: res}
	}

	return
}

// hostWriter turns a failure of the host's stream into an abort.
type hostWriter struct {
	w io.Writer
}

func (h *hostWriter) Write(b []byte) (int, error) {
	n, err := h.w.Write(b)
	if err != nil {
		err = &abortError{res: engine.E_FAIL, err: err}
	}

	return n, err
}

// operationResult classifies a decoding error.
func operationResult(err error) engine.OperationResult {
	switch {
	case err == nil:
		return engine.OpOK
	case errors.Is(err, errWrongPassword), errors.Is(err, errNeedPassword):
		return engine.OpWrongPassword
	case errors.Is(err, errUnsupportedMethod):
		return engine.OpUnsupportedMethod
	case errors.Is(err, io.ErrUnexpectedEOF):
		return engine.OpUnexpectedEnd
	default:
		return classify(err)
	}
}
