// Package enginetest provides a scripted in-memory engine for testing code that drives the engine ABI.
//
// Archives written by the fake engine are JSON documents; they are only meant to be read back by the same fake. Every
// callback invocation is appended to Engine.Calls so tests can assert the exact sequence the host answered.
package enginetest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/nguyengg/xy7z/engine"
	"github.com/nguyengg/xy7z/format"
	"github.com/nguyengg/xy7z/variant"
)

// Item is one entry of a fake archive.
type Item struct {
	Path     string    `json:"path"`
	Data     []byte    `json:"data,omitempty"`
	IsDir    bool      `json:"dir,omitempty"`
	Attrib   uint32    `json:"attrib,omitempty"`
	Modified time.Time `json:"mtime,omitempty"`
}

// Archive is the document written by UpdateItems and parsed by Open.
type Archive struct {
	Password   string            `json:"password,omitempty"`
	Comment    string            `json:"comment,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	Items      []Item            `json:"items"`
}

// Marshal encodes the archive the way UpdateItems does.
func (a Archive) Marshal() []byte {
	data, err := json.Marshal(a)
	if err != nil {
		panic(err)
	}

	return data
}

// Engine is a scripted engine.Library.
//
// The zero value is ready for use and supports every format.
type Engine struct {
	// Unavailable lists the formats for which NewInArchive and NewOutArchive return engine.ErrEngineUnavailable.
	Unavailable []format.Format

	// Volumes are requested, in order, through engine.VolumeCallback during Open and appended to the first volume.
	Volumes []string

	// ItemResults forces the operation result reported for the given item indexes during Extract and UpdateItems.
	ItemResults map[uint32]engine.OperationResult

	// KeepGoing makes Extract and UpdateItems keep calling back after a callback returned a failure.
	KeepGoing bool

	// OpenResult, if not zero, is returned by Open instead of parsing the stream.
	OpenResult engine.Result

	mu       sync.Mutex
	calls    []string
	released int
}

var _ engine.Library = (*Engine)(nil)

func (e *Engine) log(msg string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, fmt.Sprintf(msg, args...))
}

// Calls returns the callback trace recorded so far.
func (e *Engine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.calls)
}

// Released returns the number of variants released through Release.
func (e *Engine) Released() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.released
}

func (e *Engine) Release(v *variant.Variant) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.released++
	return nil
}

func (e *Engine) NewInArchive(f format.Format) (engine.InArchive, error) {
	if slices.Contains(e.Unavailable, f) {
		return nil, fmt.Errorf("no %s handler: %w", f, engine.ErrEngineUnavailable)
	}

	return &InArchive{e: e}, nil
}

func (e *Engine) NewOutArchive(f format.Format) (engine.OutArchive, error) {
	if slices.Contains(e.Unavailable, f) {
		return nil, fmt.Errorf("no %s handler: %w", f, engine.ErrEngineUnavailable)
	}

	return &OutArchive{e: e}, nil
}

// InArchive is the fake engine.InArchive.
type InArchive struct {
	e         *Engine
	arc       *Archive
	decrypted bool
}

var _ engine.InArchive = (*InArchive)(nil)

func (a *InArchive) Open(in engine.InStream, _ uint64, cb engine.OpenCallback) engine.Result {
	if a.e.OpenResult != engine.S_OK {
		return a.e.OpenResult
	}

	if _, err := in.Seek(0, io.SeekStart); err != nil {
		return engine.E_FAIL
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return engine.E_FAIL
	}

	if res := cb.SetTotal(uint64(len(data))); !res.Succeeded() {
		return res
	}

	if len(a.e.Volumes) > 0 {
		vc, ok := cb.(engine.VolumeCallback)
		if !ok {
			return engine.E_NOTIMPL
		}

		v, res := vc.VolumeProperty(engine.KpidName)
		if !res.Succeeded() {
			return res
		}
		name, _ := v.Text()
		a.e.log("VolumeProperty(Name)=%s", name)

		for _, name := range a.e.Volumes {
			s, res := vc.VolumeStream(name)
			a.e.log("VolumeStream(%s)=%s", name, res)
			if !res.Succeeded() {
				return res
			}
			if s == nil {
				break
			}

			more, err := io.ReadAll(s)
			if err != nil {
				return engine.E_FAIL
			}
			data = append(data, more...)
		}
	}

	if res := cb.SetCompleted(uint64(len(data))); !res.Succeeded() {
		return res
	}

	arc := &Archive{}
	if err = json.Unmarshal(data, arc); err != nil {
		return engine.S_FALSE
	}

	a.arc, a.decrypted = arc, arc.Password == ""
	if !a.decrypted {
		pp, ok := cb.(engine.PasswordProvider)
		if !ok {
			return engine.E_NOTIMPL
		}

		password, defined, res := pp.Password()
		a.e.log("Password()=%t", defined)
		switch {
		case !res.Succeeded():
			return res
		case !defined:
			return engine.E_ABORT
		}

		a.decrypted = password == arc.Password
	}

	return engine.S_OK
}

func (a *InArchive) Close() engine.Result {
	a.arc = nil
	return engine.S_OK
}

func (a *InArchive) NumberOfItems() (uint32, engine.Result) {
	if a.arc == nil {
		return 0, engine.E_FAIL
	}

	return uint32(len(a.arc.Items)), engine.S_OK
}

func (a *InArchive) Property(index uint32, propID engine.PropID) (v variant.Variant, res engine.Result) {
	if a.arc == nil || index >= uint32(len(a.arc.Items)) {
		return v, engine.E_INVALIDARG
	}

	item := a.arc.Items[index]
	switch propID {
	case engine.KpidPath:
		v = variant.FromString(item.Path)
	case engine.KpidIsDir:
		v = variant.FromBool(item.IsDir)
	case engine.KpidSize:
		v = variant.FromUint64(uint64(len(item.Data)))
	case engine.KpidAttrib:
		if item.Attrib != 0 {
			v = variant.FromUint32(item.Attrib)
		}
	case engine.KpidEncrypted:
		v = variant.FromBool(a.arc.Password != "")
	case engine.KpidMethod:
		v = variant.FromString("Copy")
	case engine.KpidMTime:
		if !item.Modified.IsZero() {
			v = variant.FromTime(item.Modified)
		}
	}

	return v, engine.S_OK
}

func (a *InArchive) ArchiveProperty(propID engine.PropID) (v variant.Variant, res engine.Result) {
	if a.arc == nil {
		return v, engine.E_FAIL
	}

	switch propID {
	case engine.KpidComment:
		if a.arc.Comment != "" {
			v = variant.FromString(a.arc.Comment)
		}
	case engine.KpidEncrypted:
		v = variant.FromBool(a.arc.Password != "")
	case engine.KpidNumVolumes:
		v = variant.FromUint32(uint32(len(a.e.Volumes) + 1))
	}

	return v, engine.S_OK
}

func (a *InArchive) Extract(indexes []uint32, numItems uint32, testMode bool, cb engine.ExtractCallback) engine.Result {
	if a.arc == nil {
		return engine.E_FAIL
	}

	if numItems == engine.AllItems {
		indexes = make([]uint32, len(a.arc.Items))
		for i := range indexes {
			indexes[i] = uint32(i)
		}
	} else if !slices.IsSorted(indexes) || uint32(len(indexes)) != numItems {
		return engine.E_INVALIDARG
	}

	var total, completed uint64
	for _, i := range indexes {
		if i >= uint32(len(a.arc.Items)) {
			return engine.E_INVALIDARG
		}
		total += uint64(len(a.arc.Items[i].Data))
	}
	if res := cb.SetTotal(total); !res.Succeeded() {
		return res
	}

	mode := engine.AskExtract
	if testMode {
		mode = engine.AskTest
	}

	var failed engine.Result
	for _, i := range indexes {
		item := a.arc.Items[i]

		w, res := cb.Stream(i, mode)
		a.e.log("Stream(%d,%s)=%s", i, mode, res)
		if !res.Succeeded() {
			if !a.e.KeepGoing {
				return res
			}
			failed = res
			continue
		}

		if res = cb.PrepareOperation(mode); !res.Succeeded() && !a.e.KeepGoing {
			return res
		}

		opRes := engine.OpOK
		switch forced, ok := a.e.ItemResults[i]; {
		case ok:
			opRes = forced
		case !a.decrypted:
			opRes = engine.OpWrongPassword
		case w != nil:
			if _, err := w.Write(item.Data); err != nil {
				opRes = engine.OpDataError
			}
		}

		completed += uint64(len(item.Data))
		if res = cb.SetCompleted(completed); !res.Succeeded() && !a.e.KeepGoing {
			return res
		}

		res = cb.SetOperationResult(opRes)
		a.e.log("SetOperationResult(%d)=%s", i, opRes)
		if !res.Succeeded() && !a.e.KeepGoing {
			return res
		}
	}

	if failed != engine.S_OK {
		return failed
	}

	return engine.S_OK
}

// OutArchive is the fake engine.OutArchive.
type OutArchive struct {
	e     *Engine
	src   *InArchive
	props map[string]string
}

var (
	_ engine.OutArchive   = (*OutArchive)(nil)
	_ engine.UpdateSource = (*OutArchive)(nil)
)

func (a *OutArchive) SetProperties(names []string, values []variant.Variant) engine.Result {
	if len(names) != len(values) {
		return engine.E_INVALIDARG
	}

	a.props = make(map[string]string, len(names))
	for i, name := range names {
		a.props[name] = values[i].String()
	}

	return engine.S_OK
}

func (a *OutArchive) SetSource(in engine.InArchive) engine.Result {
	src, ok := in.(*InArchive)
	if !ok || src.arc == nil {
		return engine.E_INVALIDARG
	}

	a.src = src
	return engine.S_OK
}

func (a *OutArchive) UpdateItems(out engine.OutStream, numItems uint32, cb engine.UpdateCallback) engine.Result {
	arc := Archive{Properties: a.props}
	if a.src != nil {
		arc.Password = a.src.arc.Password
		arc.Comment = a.src.arc.Comment
	}

	if pp, ok := cb.(engine.NewPasswordProvider); ok {
		password, defined, res := pp.NewPassword()
		if !res.Succeeded() {
			return res
		}
		if defined {
			arc.Password = password
		}
	}

	var failed engine.Result
	for i := uint32(0); i < numItems; i++ {
		item, res := a.update(i, cb)
		if !res.Succeeded() {
			if !a.e.KeepGoing {
				return res
			}
			failed = res
			continue
		}

		if item != nil {
			arc.Items = append(arc.Items, *item)
		}
	}
	if failed != engine.S_OK {
		return failed
	}

	return a.write(arc.Marshal(), out, cb)
}

// update produces the item at index, or nil if the item is deleted.
func (a *OutArchive) update(index uint32, cb engine.UpdateCallback) (*Item, engine.Result) {
	newData, newProps, indexInArchive, res := cb.UpdateItemInfo(index)
	a.e.log("UpdateItemInfo(%d)=%t,%t,%d", index, newData, newProps, indexInArchive)
	if !res.Succeeded() {
		return nil, res
	}

	item := &Item{}
	if !newData || !newProps {
		if a.src == nil || indexInArchive >= uint32(len(a.src.arc.Items)) {
			return nil, engine.E_INVALIDARG
		}

		*item = a.src.arc.Items[indexInArchive]
	}

	if newProps {
		anti, res := cb.Property(index, engine.KpidIsAnti)
		if !res.Succeeded() {
			return nil, res
		}
		if isAnti, _ := anti.Bool(); isAnti {
			a.e.log("delete(%d)", index)
			return nil, engine.S_OK
		}

		if v, res := cb.Property(index, engine.KpidPath); !res.Succeeded() {
			return nil, res
		} else if p, err := v.Text(); err == nil {
			item.Path = p
		}

		if v, res := cb.Property(index, engine.KpidIsDir); !res.Succeeded() {
			return nil, res
		} else if b, err := v.Bool(); err == nil {
			item.IsDir = b
		}

		if v, res := cb.Property(index, engine.KpidAttrib); !res.Succeeded() {
			return nil, res
		} else if attrib, ok := v.AsUint64(); ok {
			item.Attrib = uint32(attrib)
		}

		if v, res := cb.Property(index, engine.KpidMTime); !res.Succeeded() {
			return nil, res
		} else if t, err := v.Time(); err == nil {
			item.Modified = t.UTC()
		}
	}

	opRes := engine.OpOK
	if newData {
		r, res := cb.Stream(index)
		a.e.log("Stream(%d)=%s", index, res)
		if !res.Succeeded() {
			return nil, res
		}

		if r != nil {
			data, err := io.ReadAll(r)
			if err != nil {
				opRes = engine.OpDataError
			}
			item.Data = data
		}
	}

	if forced, ok := a.e.ItemResults[index]; ok {
		opRes = forced
	}

	res = cb.SetOperationResult(opRes)
	a.e.log("SetOperationResult(%d)=%s", index, opRes)
	return item, res
}

// write writes data to out, or splits it into volumes if the callback asks for it.
func (a *OutArchive) write(data []byte, out engine.OutStream, cb engine.UpdateCallback) engine.Result {
	if vc, ok := cb.(engine.VolumeOutCallback); ok {
		if size, res := vc.VolumeSize(0); res == engine.S_OK && size > 0 {
			for i := uint32(0); len(data) > 0; i++ {
				vol, res := vc.VolumeStream(i)
				a.e.log("VolumeStream(%d)=%s", i, res)
				if !res.Succeeded() {
					return res
				}

				n := min(uint64(len(data)), size)
				if _, err := vol.Write(data[:n]); err != nil {
					return engine.E_FAIL
				}
				data = data[n:]
			}

			return engine.S_OK
		}
	}

	if _, err := io.Copy(out, bytes.NewReader(data)); err != nil {
		return engine.E_FAIL
	}

	return cb.SetCompleted(uint64(len(data)))
}
