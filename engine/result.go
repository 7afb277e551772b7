package engine

import (
	"errors"
	"fmt"
)

// Result is the HRESULT-style status every engine entry point and callback returns.
//
// Zero and positive values are successes; negative values are failures.
type Result int32

const (
	S_OK    Result = 0
	S_FALSE Result = 1

	E_NOTIMPL     Result = -0x7fffbfff // 0x80004001
	E_ABORT       Result = -0x7fffbffc // 0x80004004
	E_FAIL        Result = -0x7fffbffb // 0x80004005
	E_OUTOFMEMORY Result = -0x7ff8fff2 // 0x8007000E
	E_INVALIDARG  Result = -0x7ff8ffa9 // 0x80070057
)

var resultNames = map[Result]string{
	S_OK:          "S_OK",
	S_FALSE:       "S_FALSE",
	E_NOTIMPL:     "E_NOTIMPL",
	E_ABORT:       "E_ABORT",
	E_FAIL:        "E_FAIL",
	E_OUTOFMEMORY: "E_OUTOFMEMORY",
	E_INVALIDARG:  "E_INVALIDARG",
}

var (
	// ErrEngineFailure is wrapped by every *Error.
	ErrEngineFailure = errors.New("engine failure")

	// ErrUnknownResult is additionally wrapped by an *Error whose code is not in the known set. Such errors are fatal.
	ErrUnknownResult = errors.New("unknown engine result code")

	// ErrEngineUnavailable is returned if the engine cannot be located or does not support the requested format.
	ErrEngineUnavailable = errors.New("engine unavailable")
)

// Succeeded returns true for S_OK, S_FALSE and any other non-negative code.
func (r Result) Succeeded() bool {
	return r >= 0
}

// Known returns true if r is one of the result codes declared by this package.
func (r Result) Known() bool {
	_, ok := resultNames[r]
	return ok
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}

	return fmt.Sprintf("0x%08X", uint32(r))
}

// Err returns nil for a success, otherwise an *Error naming the failed operation.
func (r Result) Err(op string) error {
	if r.Succeeded() {
		return nil
	}

	return &Error{Op: op, Code: r}
}

// Error is a failed engine call.
type Error struct {
	// Op is the engine entry point that failed, e.g. "Open".
	Op string
	// Code is the failure code returned by the engine.
	Code Result
}

func (e *Error) Error() string {
	if e.Code.Known() {
		return fmt.Sprintf("engine %s error: %s", e.Op, e.Code)
	}

	return fmt.Sprintf("engine %s error: unknown result %s", e.Op, e.Code)
}

// Unwrap returns ErrEngineFailure, plus ErrUnknownResult if the code is not known.
func (e *Error) Unwrap() []error {
	if e.Code.Known() {
		return []error{ErrEngineFailure}
	}

	return []error{ErrEngineFailure, ErrUnknownResult}
}

// Fatal returns true if the error cannot be recovered from by retrying or skipping items.
func (e *Error) Fatal() bool {
	return !e.Code.Known()
}
