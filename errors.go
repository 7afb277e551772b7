package xy7z

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nguyengg/xy7z/detect"
	"github.com/nguyengg/xy7z/engine"
	"github.com/nguyengg/xy7z/variant"
)

var (
	// ErrInvalidInput is returned if a stream is too short or unreadable.
	ErrInvalidInput = detect.ErrInvalidInput
	// ErrUnrecognizedFormat is returned if an archive format cannot be determined or the engine cannot open it.
	ErrUnrecognizedFormat = detect.ErrUnrecognizedFormat
	// ErrTypeMismatch is returned if a variant is read with the wrong accessor.
	ErrTypeMismatch = variant.ErrTypeMismatch
	// ErrEngineFailure is wrapped by every *engine.Error.
	ErrEngineFailure = engine.ErrEngineFailure
	// ErrEngineUnavailable is returned if the engine cannot handle the requested format.
	ErrEngineUnavailable = engine.ErrEngineUnavailable

	// ErrCallbackFailure is wrapped by every *CallbackError.
	ErrCallbackFailure = errors.New("callback failure")

	// ErrStreamAlreadyOpened is the cause of a CallbackError if the engine asks for the same item's stream twice.
	ErrStreamAlreadyOpened = errors.New("item stream already opened")

	// ErrNoOperationResult is the cause of an ItemError if the engine asks for the next item's stream before reporting
	// the result of the current one.
	ErrNoOperationResult = errors.New("no operation result reported")

	// ErrInvalidItem is returned if an ArchiveItem cannot be used with the requested update mode.
	ErrInvalidItem = errors.New("invalid archive item")

	// ErrUnsafePath is the cause of an ItemError if an item's path would escape the extraction directory.
	ErrUnsafePath = errors.New("unsafe item path")

	// ErrClosed is returned by Reader methods after Close.
	ErrClosed = errors.New("archive already closed")
)

// CallbackError is a fault captured inside a callback while the engine was running.
//
// The engine only ever saw a failure Result; the CallbackError is what the host gets once the engine call returns. Only
// the first fault of an operation is kept.
type CallbackError struct {
	// Op is the callback method that failed, e.g. "Stream".
	Op string
	// Index is the item index the method was called with, or -1 if the method has no index.
	Index int64
	// Err is the original cause.
	Err error
}

func (e *CallbackError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("callback %s error: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("callback %s(%d) error: %v", e.Op, e.Index, e.Err)
}

func (e *CallbackError) Unwrap() []error {
	return []error{ErrCallbackFailure, e.Err}
}

// ItemError is a non-OK operation result for one item.
type ItemError struct {
	Index  uint32
	Path   string
	Result engine.OperationResult
	// Err is set if the host rather than the engine failed the item.
	Err error
}

func (e ItemError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(`item %d "%s" error: %v`, e.Index, e.Path, e.Err)
	}

	return fmt.Sprintf(`item %d "%s" error: %s`, e.Index, e.Path, e.Result)
}

func (e ItemError) Unwrap() error {
	return e.Err
}

// ItemErrors is returned by an operation that completed but failed some of its items.
type ItemErrors struct {
	Items []ItemError
}

func (e *ItemErrors) Error() string {
	if len(e.Items) == 1 {
		return e.Items[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d items failed: ", len(e.Items))
	for i, item := range e.Items {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(item.Error())
	}

	return sb.String()
}

func (e *ItemErrors) Unwrap() []error {
	errs := make([]error, 0, len(e.Items))
	for _, item := range e.Items {
		errs = append(errs, item)
	}

	return errs
}

// Results returns the per-item result code by index.
func (e *ItemErrors) Results() map[uint32]engine.OperationResult {
	m := make(map[uint32]engine.OperationResult, len(e.Items))
	for _, item := range e.Items {
		m[item.Index] = item.Result
	}

	return m
}

// errOrNil returns e as an error, or nil if there were no item errors.
func (e *ItemErrors) errOrNil() error {
	if e == nil || len(e.Items) == 0 {
		return nil
	}

	return e
}
