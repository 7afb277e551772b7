package xy7z

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nguyengg/xy7z/engine"
	"github.com/nguyengg/xy7z/engine/enginetest"
	"github.com/nguyengg/xy7z/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFault_FirstOnly(t *testing.T) {
	f := newFault(context.Background())
	first := errors.New("first")

	assert.Equal(t, engine.E_FAIL, f.record("Stream", 1, first))
	assert.Equal(t, engine.E_FAIL, f.record("Stream", 2, errors.New("second")))

	err := f.outcome("UpdateItems", engine.E_FAIL)
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, ErrCallbackFailure)
	assert.NotErrorIs(t, err, ErrEngineFailure)
	assert.EqualError(t, err, "callback Stream(1) error: first")
}

func TestFault_Guard(t *testing.T) {
	f := newFault(context.Background())

	res := func() (res engine.Result) {
		defer f.guard("SetOperationResult", -1, &res)
		panic("boom")
	}()

	assert.Equal(t, engine.E_FAIL, res)
	assert.EqualError(t, f.Err(), "callback SetOperationResult error: panic: boom")
}

func TestFault_Abort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newFault(ctx)
	assert.Equal(t, engine.E_ABORT, f.checkAbort("SetCompleted", -1))
	assert.ErrorIs(t, f.Err(), context.Canceled)
}

// TestUpdate_CallbackErrorIsolation has two items whose files disappear before the engine asks for them. The engine
// keeps calling back after the first failure; only the first fault must come back to the caller.
func TestUpdate_CallbackErrorIsolation(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	var items []*ArchiveItem
	for _, name := range []string{"a.txt", "b.txt"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(name), 0644))

		item, err := FileItem(path, name)
		require.NoError(t, err)
		require.NoError(t, os.Remove(path))
		items = append(items, item)
	}

	e := &enginetest.Engine{KeepGoing: true}
	f, err := os.CreateTemp(dir, "*.zip")
	require.NoError(t, err)
	defer f.Close()

	err = Update(context.Background(), e, format.Zip, f, items)

	var cbErr *CallbackError
	require.ErrorAs(t, err, &cbErr)
	assert.Equal(t, "Stream", cbErr.Op)
	assert.Equal(t, int64(0), cbErr.Index)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.ErrorIs(t, err, ErrCallbackFailure)

	// both items were attempted.
	assert.Equal(t, []string{
		"UpdateItemInfo(0)=true,true,4294967295",
		"Stream(0)=E_FAIL",
		"UpdateItemInfo(1)=true,true,4294967295",
		"Stream(1)=E_FAIL",
	}, e.Calls())
}

func TestUpdate_PanickingReporter(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	f, err := os.CreateTemp(dir, "*.zip")
	require.NoError(t, err)
	defer f.Close()

	err = Update(context.Background(), &enginetest.Engine{}, format.Zip, f, []*ArchiveItem{DirItem("a", testTime)},
		func(opts *UpdateOptions) {
			opts.ItemReporter = func(ItemEvent) { panic("reporter") }
		})

	var cbErr *CallbackError
	require.ErrorAs(t, err, &cbErr)
	assert.Equal(t, "SetOperationResult", cbErr.Op)
	assert.EqualError(t, cbErr.Err, "panic: reporter")
}
