package xy7z

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/nguyengg/xy7z/engine"
	"github.com/nguyengg/xy7z/format"
	"github.com/nguyengg/xy7z/stream"
	"github.com/nguyengg/xy7z/variant"
)

// UpdateOptions customises Update.
type UpdateOptions struct {
	// Mode is ModeCreate unless Source is set by AppendTo or ModifyFrom.
	Mode UpdateMode
	// Source is the archive being appended to or modified.
	Source *Reader

	// Properties configure the engine, e.g. {"x", 9} for the compression level. See CompressionProperties.
	Properties variant.PropertyList

	// Password, if not empty, encrypts the new archive.
	Password string

	// VolumeSize, if not zero, splits the output into volumes named after VolumeName.
	VolumeSize uint64
	// VolumeName defaults to the name of dst if dst is an *os.File.
	VolumeName string

	ProgressReporter ProgressReporter
	ItemReporter     ItemReporter
}

// AppendTo adds the items after the existing items of src.
func AppendTo(src *Reader) func(*UpdateOptions) {
	return func(opts *UpdateOptions) {
		opts.Mode = ModeAppend
		opts.Source = src
	}
}

// ModifyFrom applies DeleteItem and RenameItem changes to src.
func ModifyFrom(src *Reader) func(*UpdateOptions) {
	return func(opts *UpdateOptions) {
		opts.Mode = ModeModify
		opts.Source = src
	}
}

// Update writes an archive of format f to dst.
//
// Without AppendTo or ModifyFrom, a new archive is created from items. dst must not be the stream src was opened from.
// Callback faults take precedence over the engine's own result; failed items are returned as *ItemErrors.
func Update(ctx context.Context, lib engine.Library, f format.Format, dst io.WriteSeeker, items []*ArchiveItem, optFns ...func(*UpdateOptions)) (err error) {
	opts := UpdateOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Mode != ModeCreate && opts.Source == nil {
		return fmt.Errorf("%s mode requires a source archive: %w", opts.Mode, ErrInvalidItem)
	}
	if opts.VolumeSize > 0 && opts.VolumeName == "" {
		if file, ok := dst.(*os.File); ok {
			opts.VolumeName = file.Name()
		}
	}

	out, err := lib.NewOutArchive(f)
	if err != nil {
		return fmt.Errorf("create %s handle error: %w", f, err)
	}

	var oldCount uint32
	if src := opts.Source; src != nil {
		src.mu.Lock()
		defer src.mu.Unlock()

		if src.closed {
			return ErrClosed
		}

		us, ok := out.(engine.UpdateSource)
		if !ok {
			return fmt.Errorf("%s handle cannot update existing archives: %w", f, ErrEngineUnavailable)
		}
		if err = us.SetSource(src.arc).Err("SetSource"); err != nil {
			return err
		}

		var res engine.Result
		if oldCount, res = src.arc.NumberOfItems(); !res.Succeeded() {
			return res.Err("NumberOfItems")
		}
	}

	if len(opts.Properties) > 0 {
		names, values := opts.Properties.Arrays()
		if err = out.SetProperties(names, values).Err("SetProperties"); err != nil {
			return err
		}
	}

	cb, err := NewUpdateCallback(ctx, opts.Mode, oldCount, items, func(o *UpdateCallbackOptions) {
		o.Password = opts.Password
		o.VolumeSize = opts.VolumeSize
		o.VolumeName = opts.VolumeName
		o.ProgressReporter = opts.ProgressReporter
		o.ItemReporter = opts.ItemReporter
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cb.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	res := out.UpdateItems(stream.NewOut(dst), cb.NumItems(), cb)
	if err = cb.fault.outcome("UpdateItems", res); err != nil {
		return err
	}

	return cb.ItemErrors()
}

// Create is Update in ModeCreate writing to the named file, which must not exist.
func Create(ctx context.Context, lib engine.Library, f format.Format, name string, items []*ArchiveItem, optFns ...func(*UpdateOptions)) (err error) {
	file, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0666)
	if err != nil {
		return fmt.Errorf(`create file "%s" error: %w`, name, err)
	}

	if err = Update(ctx, lib, f, file, items, optFns...); err != nil {
		_ = file.Close()
		_ = os.Remove(name)
		return err
	}

	return file.Close()
}

// CompressionOptions are the common engine settings, converted to properties by CompressionProperties.
type CompressionOptions struct {
	// Level is 0 (store) to 9 (ultra). Negative means the engine's default.
	Level int
	// Method is the compression method, e.g. "LZMA2", "Deflate". Empty means the engine's default.
	Method string
	// Solid enables solid compression for formats that support it.
	Solid bool
	// Threads is the number of threads the engine may use. Zero means the engine's default.
	Threads int
	// EncryptHeaders hides the item names of an encrypted archive.
	EncryptHeaders bool
	// EncryptionMethod is e.g. "AES256" or "ZipCrypto". Empty means the engine's default.
	EncryptionMethod string
}

// CompressionProperties converts opts into the short property names understood by the engine.
func CompressionProperties(opts CompressionOptions) (l variant.PropertyList) {
	if opts.Level >= 0 {
		_ = l.Add("x", variant.FromUint32(uint32(min(opts.Level, 9))))
	}
	if opts.Method != "" {
		_ = l.Add("m", variant.FromString(opts.Method))
	}
	if opts.Solid {
		_ = l.Add("s", variant.FromBool(true))
	}
	if opts.Threads > 0 {
		_ = l.Add("mt", variant.FromUint32(uint32(opts.Threads)))
	}
	if opts.EncryptHeaders {
		_ = l.Add("he", variant.FromBool(true))
	}
	if opts.EncryptionMethod != "" {
		_ = l.Add("em", variant.FromString(opts.EncryptionMethod))
	}

	return l
}
