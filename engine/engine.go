// Package engine declares the narrow ABI between the host and an archive codec engine.
//
// The engine is an opaque collaborator: the host obtains InArchive and OutArchive handles from a Library, hands them
// host streams and a callback, and makes one blocking call. While that call is in flight the engine calls back into
// the callback synchronously, on the same goroutine. Callback methods report failure through their Result and must
// never panic; the host side captures any fault and re-raises it once the engine call returns.
//
// A handle runs one operation at a time. Callers that share a handle must serialise access themselves.
package engine

import (
	"io"

	"github.com/nguyengg/xy7z/format"
	"github.com/nguyengg/xy7z/variant"
)

// InStream is what the engine reads from.
type InStream interface {
	io.Reader
	io.Seeker
}

// OutStream is what the engine writes to.
type OutStream interface {
	io.Writer
	io.Seeker
	SetSize(n int64) error
}

// Progress receives the engine's progress hints, in bytes when available.
type Progress interface {
	SetTotal(total uint64) Result
	SetCompleted(completed uint64) Result
}

// PasswordProvider is the CryptoGetTextPassword interface.
//
// defined is false when the host has no password at all, which the engine must distinguish from an incorrect one.
type PasswordProvider interface {
	Password() (password string, defined bool, res Result)
}

// NewPasswordProvider is the CryptoGetTextPassword2 interface used when creating an encrypted archive.
type NewPasswordProvider interface {
	NewPassword() (password string, defined bool, res Result)
}

// VolumeCallback lets the engine open further volumes of a multi-volume archive.
type VolumeCallback interface {
	// VolumeProperty answers properties of the current volume, at least KpidName.
	VolumeProperty(propID PropID) (variant.Variant, Result)
	// VolumeStream opens the named sibling volume. S_FALSE with a nil stream means the volume does not exist.
	VolumeStream(name string) (InStream, Result)
}

// OpenCallback is passed to InArchive.Open.
//
// Besides Progress, it optionally implements PasswordProvider and VolumeCallback.
type OpenCallback interface {
	Progress
}

// ExtractCallback is passed to InArchive.Extract.
//
// It optionally implements PasswordProvider.
type ExtractCallback interface {
	Progress

	// Stream returns the destination of the item, or nil if mode is not AskExtract or the item is to be skipped.
	Stream(index uint32, mode AskMode) (io.Writer, Result)
	// PrepareOperation is called right before the engine starts processing the item last passed to Stream.
	PrepareOperation(mode AskMode) Result
	// SetOperationResult is called after the item last passed to Stream has been processed.
	SetOperationResult(res OperationResult) Result
}

// UpdateCallback is passed to OutArchive.UpdateItems.
//
// It optionally implements NewPasswordProvider and VolumeOutCallback.
type UpdateCallback interface {
	Progress

	// UpdateItemInfo reports whether the item at index carries new data or new properties, and for items that exist in
	// the archive being updated, their index in it.
	UpdateItemInfo(index uint32) (newData, newProps bool, indexInArchive uint32, res Result)
	// Property answers a property of the item at index.
	Property(index uint32, propID PropID) (variant.Variant, Result)
	// Stream opens the data of the item at index. A nil stream with S_OK means the item has no data.
	Stream(index uint32) (io.Reader, Result)
	// SetOperationResult is called after the item last passed to Stream has been processed.
	SetOperationResult(res OperationResult) Result
}

// VolumeOutCallback lets the engine split its output into volumes.
type VolumeOutCallback interface {
	// VolumeSize returns the maximum size of the volume at index, or S_FALSE if output is not split.
	VolumeSize(index uint32) (uint64, Result)
	// VolumeStream creates the volume at index.
	VolumeStream(index uint32) (OutStream, Result)
}

// InArchive is a handle for reading an archive.
type InArchive interface {
	// Open parses the archive, reading at most maxCheckStartPosition bytes when searching for its start.
	Open(in InStream, maxCheckStartPosition uint64, cb OpenCallback) Result
	// Close releases the opened archive. The handle may be opened again afterwards.
	Close() Result
	NumberOfItems() (uint32, Result)
	Property(index uint32, propID PropID) (variant.Variant, Result)
	ArchiveProperty(propID PropID) (variant.Variant, Result)
	// Extract processes the items at the given ascending indexes, or every item if numItems is AllItems. If testMode
	// is true, data is decoded and verified without being written anywhere.
	Extract(indexes []uint32, numItems uint32, testMode bool, cb ExtractCallback) Result
}

// OutArchive is a handle for creating or updating an archive.
type OutArchive interface {
	// SetProperties configures the next UpdateItems call. names and values are index-correlated.
	SetProperties(names []string, values []variant.Variant) Result
	// UpdateItems writes numItems items to out.
	UpdateItems(out OutStream, numItems uint32, cb UpdateCallback) Result
}

// Library creates engine handles.
//
// Library also releases engine-owned variant payloads such as strings returned by Property.
type Library interface {
	variant.Releaser

	// NewInArchive returns a handle able to read archives of the given format, or ErrEngineUnavailable.
	NewInArchive(f format.Format) (InArchive, error)
	// NewOutArchive returns a handle able to write archives of the given format, or ErrEngineUnavailable.
	NewOutArchive(f format.Format) (OutArchive, error)
}

// UpdateSource is optionally implemented by an OutArchive that can update an existing archive.
//
// The items of the existing archive are addressed by UpdateCallback.UpdateItemInfo's indexInArchive.
type UpdateSource interface {
	SetSource(in InArchive) Result
}
