package xy7z

import (
	"context"
	"errors"
	"fmt"

	"github.com/nguyengg/xy7z/engine"
)

// fault keeps the first failure raised inside any callback of one engine operation.
//
// Callbacks must never panic into the engine, so every callback method defers guard, which turns a panic into a
// recorded fault and an E_FAIL result.
type fault struct {
	ctx context.Context
	err *CallbackError
}

func newFault(ctx context.Context) *fault {
	if ctx == nil {
		ctx = context.Background()
	}

	return &fault{ctx: ctx}
}

// record keeps err if it is the first fault, and returns the Result the engine should receive.
//
// A cancelled context yields E_ABORT, everything else E_FAIL.
func (f *fault) record(op string, index int64, err error) engine.Result {
	if f.err == nil {
		f.err = &CallbackError{Op: op, Index: index, Err: err}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return engine.E_ABORT
	}

	return engine.E_FAIL
}

// guard must be deferred directly by each callback method.
func (f *fault) guard(op string, index int64, res *engine.Result) {
	if r := recover(); r != nil {
		*res = f.record(op, index, fmt.Errorf("panic: %v", r))
	}
}

// checkAbort returns E_ABORT and records the context's error if the operation has been cancelled.
func (f *fault) checkAbort(op string, index int64) engine.Result {
	if err := f.ctx.Err(); err != nil {
		return f.record(op, index, err)
	}

	return engine.S_OK
}

// Err returns the captured fault, or nil.
func (f *fault) Err() error {
	if f.err == nil {
		return nil
	}

	return f.err
}

// outcome combines the engine's Result with the captured fault; the captured fault wins.
func (f *fault) outcome(op string, res engine.Result) error {
	if err := f.Err(); err != nil {
		return err
	}

	return res.Err(op)
}
