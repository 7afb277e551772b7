package goarchive

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nguyengg/xy7z/engine"
	"github.com/nguyengg/xy7z/format"
	"github.com/nguyengg/xy7z/variant"
)

// settings are the properties accepted by SetProperties.
type settings struct {
	// level is "x", from 0 (store) to 9, or -1 for the default.
	level int
	// method is "m".
	method string
	// threads is "mt", or 0 for the default.
	threads int
}

// OutArchive implements engine.OutArchive and engine.UpdateSource.
type OutArchive struct {
	format   format.Format
	settings settings
	src      *InArchive
}

var (
	_ engine.OutArchive   = (*OutArchive)(nil)
	_ engine.UpdateSource = (*OutArchive)(nil)
)

// SetProperties accepts "x", "m" and "mt". Any other name is E_INVALIDARG.
func (a *OutArchive) SetProperties(names []string, values []variant.Variant) engine.Result {
	if len(names) != len(values) {
		return engine.E_INVALIDARG
	}

	s := settings{level: -1}
	for i, name := range names {
		v := values[i]

		switch strings.ToLower(name) {
		case "x":
			if v.IsEmpty() {
				s.level = 5
				break
			}

			n, ok := v.AsUint64()
			if !ok {
				return engine.E_INVALIDARG
			}
			s.level = int(min(n, 9))

		case "m":
			method, err := v.Text()
			if err != nil {
				return engine.E_INVALIDARG
			}
			s.method = method

		case "mt":
			if b, err := v.Bool(); err == nil {
				if !b {
					s.threads = 1
				}
			} else if n, ok := v.AsUint64(); ok {
				s.threads = int(n)
			} else if !v.IsEmpty() {
				return engine.E_INVALIDARG
			}

		default:
			return engine.E_INVALIDARG
		}
	}

	a.settings = s
	return engine.S_OK
}

// SetSource accepts an opened InArchive of the same format. Single-stream formats cannot be updated.
func (a *OutArchive) SetSource(in engine.InArchive) engine.Result {
	src, ok := in.(*InArchive)
	if !ok || src.r == nil {
		return engine.E_INVALIDARG
	}

	switch {
	case a.format == format.Zip && src.format == format.Zip:
	case a.format == format.Tar && src.format == format.Tar:
	default:
		return engine.E_NOTIMPL
	}

	a.src = src
	return engine.S_OK
}

// writer adds entries to the archive being written.
type writer interface {
	// add writes a new entry whose data is read from r, which is nil for entries without data.
	add(e *Entry, r io.Reader) error
	// copy writes the entry at index of src with e's name.
	copy(src reader, index int, e *Entry) error
	close() error
}

func (a *OutArchive) newWriter(dst io.Writer) (writer, error) {
	switch a.format {
	case format.Zip:
		return newZipWriter(dst, a.settings)
	case format.Tar:
		return newTarWriter(dst), nil
	default:
		enc, err := codecOf(a.format).NewEncoder(dst, a.settings)
		if err != nil {
			return nil, err
		}

		return &streamWriter{enc: enc}, nil
	}
}

// updateItem is one output item as described by the callback.
type updateItem struct {
	index   uint32
	newData bool
	// old is the index in the source archive, or -1 for a new item.
	old   int
	anti  bool
	entry Entry
}

func (a *OutArchive) UpdateItems(out engine.OutStream, numItems uint32, cb engine.UpdateCallback) engine.Result {
	if pp, ok := cb.(engine.NewPasswordProvider); ok {
		if _, defined, res := pp.NewPassword(); !res.Succeeded() {
			return res
		} else if defined {
			return engine.E_NOTIMPL
		}
	}

	items := make([]updateItem, 0, numItems)
	var total uint64
	for i := uint32(0); i < numItems; i++ {
		item, res := a.describe(i, cb)
		if !res.Succeeded() {
			return res
		}

		if !item.anti {
			total += item.entry.Size
		}
		items = append(items, item)
	}

	if res := cb.SetTotal(total); !res.Succeeded() {
		return res
	}

	w, err := a.newWriter(a.output(out, cb))
	if err != nil {
		return engine.E_INVALIDARG
	}

	var completed uint64
	for _, item := range items {
		if item.anti {
			continue
		}

		if res := a.write(w, item, cb, &completed); !res.Succeeded() {
			return res
		}
	}

	if err = w.close(); err != nil {
		return resultOf(err)
	}

	return engine.S_OK
}

// describe asks the callback about the item at index.
func (a *OutArchive) describe(index uint32, cb engine.UpdateCallback) (item updateItem, res engine.Result) {
	newData, newProps, indexInArchive, res := cb.UpdateItemInfo(index)
	if !res.Succeeded() {
		return item, res
	}

	item = updateItem{index: index, newData: newData, old: -1}
	if !newData || !newProps {
		if a.src == nil || indexInArchive >= uint32(len(a.src.entries)) {
			return item, engine.E_INVALIDARG
		}

		item.entry = *a.src.entries[indexInArchive]
		if !newData {
			item.old = int(indexInArchive)
		}
	}
	if !newProps {
		return item, engine.S_OK
	}

	props := make(map[engine.PropID]variant.Variant)
	for _, propID := range []engine.PropID{
		engine.KpidIsAnti, engine.KpidPath, engine.KpidIsDir, engine.KpidSize, engine.KpidAttrib,
		engine.KpidCTime, engine.KpidATime, engine.KpidMTime,
	} {
		v, res := cb.Property(index, propID)
		if !res.Succeeded() {
			return item, res
		}
		props[propID] = v
	}

	if anti, err := props[engine.KpidIsAnti].Bool(); err == nil && anti {
		item.anti = true
		return item, engine.S_OK
	}

	e := &item.entry
	if p, err := props[engine.KpidPath].Text(); err == nil {
		e.Name = strings.Trim(strings.ReplaceAll(p, `\`, "/"), "/")
	}
	if isDir, err := props[engine.KpidIsDir].Bool(); err == nil {
		e.IsDir = isDir
	}
	if newData {
		e.Size, e.HasSize = props[engine.KpidSize].AsUint64()
	}
	if attrib, ok := props[engine.KpidAttrib].AsUint64(); ok {
		e.Mode = modeOf(uint32(attrib), e.IsDir)
	} else if newData {
		e.Mode = modeOf(0, e.IsDir)
	}
	for propID, t := range map[engine.PropID]*time.Time{engine.KpidCTime: &e.Created, engine.KpidATime: &e.Accessed, engine.KpidMTime: &e.Modified} {
		if v, err := props[propID].Time(); err == nil {
			*t = v
		}
	}

	if e.Name == "" {
		return item, engine.E_INVALIDARG
	}

	return item, engine.S_OK
}

// write adds item to w and reports its result.
func (a *OutArchive) write(w writer, item updateItem, cb engine.UpdateCallback, completed *uint64) engine.Result {
	var err error
	if item.newData {
		r, res := cb.Stream(item.index)
		if !res.Succeeded() {
			return res
		}

		var data io.Reader
		if r != nil {
			data = &progressReader{r: r, cb: cb, completed: completed}
		}
		err = w.add(&item.entry, data)
	} else {
		err = w.copy(a.src.r, item.old, &item.entry)
		if err == nil {
			*completed += item.entry.Size
			if res := cb.SetCompleted(*completed); !res.Succeeded() {
				return res
			}
		}
	}

	if err != nil {
		return resultOf(err)
	}

	return cb.SetOperationResult(engine.OpOK)
}

func resultOf(err error) engine.Result {
	var ae *abortError
	if errors.As(err, &ae) {
		return ae.res
	}

	return engine.E_FAIL
}

// output returns out, or a writer that splits the output into volumes if the callback asks for it.
func (a *OutArchive) output(out engine.OutStream, cb engine.UpdateCallback) io.Writer {
	if vc, ok := cb.(engine.VolumeOutCallback); ok {
		if size, res := vc.VolumeSize(0); res == engine.S_OK && size > 0 {
			return &volumeWriter{vc: vc, size: size}
		}
	}

	return out
}

// volumeWriter spreads its output over volumes created by the callback.
type volumeWriter struct {
	vc      engine.VolumeOutCallback
	size    uint64
	index   uint32
	cur     engine.OutStream
	written uint64
}

func (v *volumeWriter) Write(p []byte) (n int, err error) {
	for len(p) > 0 {
		if v.cur == nil || v.written >= v.size {
			if v.cur != nil {
				v.index++
				if size, res := v.vc.VolumeSize(v.index); res == engine.S_OK && size > 0 {
					v.size = size
				}
			}

			out, res := v.vc.VolumeStream(v.index)
			if !res.Succeeded() {
				return n, &abortError{res: res}
			}
			v.cur, v.written = out, 0
		}

		m, err := v.cur.Write(p[:min(uint64(len(p)), v.size-v.written)])
		n += m
		v.written += uint64(m)
		p = p[m:]
		if err != nil {
			return n, &abortError{res: engine.E_FAIL, err: err}
		}
	}

	return n, nil
}

// progressReader reports every byte read from the callback's stream as completed.
type progressReader struct {
	r         io.Reader
	cb        engine.Progress
	completed *uint64
}

func (p *progressReader) Read(b []byte) (n int, err error) {
	n, err = p.r.Read(b)
	if err != nil && err != io.EOF {
		err = &abortError{res: engine.E_FAIL, err: err}
	}

	*p.completed += uint64(n)
	if res := p.cb.SetCompleted(*p.completed); !res.Succeeded() {
		return n, &abortError{res: res}
	}

	return
}

// streamWriter compresses exactly one item with a single-stream codec.
type streamWriter struct {
	enc     io.WriteCloser
	written bool
}

func (w *streamWriter) add(e *Entry, r io.Reader) error {
	if e.IsDir {
		return nil
	}
	if w.written {
		return fmt.Errorf(`cannot add "%s": a single-stream archive holds exactly one item`, e.Name)
	}
	w.written = true

	if r == nil {
		return nil
	}

	_, err := io.Copy(w.enc, r)
	return err
}

func (w *streamWriter) copy(_ reader, _ int, e *Entry) error {
	return fmt.Errorf(`cannot copy "%s" into a single-stream archive`, e.Name)
}

func (w *streamWriter) close() error {
	return w.enc.Close()
}
