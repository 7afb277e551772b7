package xy7z

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/nguyengg/xy7z/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupOf(entries ...Entry) EntryLookup {
	return func(index uint32) (Entry, error) {
		if int(index) >= len(entries) {
			return Entry{}, fmt.Errorf("no item at index %d", index)
		}

		return entries[index], nil
	}
}

func TestExtractCallback_Dir(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	var events []ItemEvent
	c := NewExtractCallback(context.Background(), 3, lookupOf(
		Entry{Index: 0, Path: "sub", IsDir: true},
		Entry{Index: 1, Path: "sub/a.txt", Modified: testTime},
		Entry{Index: 2, Path: "../evil.txt"},
	), func(opts *ExtractCallbackOptions) {
		opts.Dir = dir
		opts.ItemReporter = func(e ItemEvent) { events = append(events, e) }
	})

	w, res := c.Stream(0, engine.AskExtract)
	assert.Equal(t, engine.S_OK, res)
	assert.Nil(t, w)
	assert.Equal(t, engine.S_OK, c.SetOperationResult(engine.OpOK))
	assert.DirExists(t, filepath.Join(dir, "sub"))

	w, res = c.Stream(1, engine.AskExtract)
	require.Equal(t, engine.S_OK, res)
	require.NotNil(t, w)
	_, err = io.WriteString(w, "hello")
	assert.NoError(t, err)
	assert.Equal(t, engine.S_OK, c.SetOperationResult(engine.OpOK))

	data, err := os.ReadFile(filepath.Join(dir, "sub", "a.txt"))
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	fi, err := os.Stat(filepath.Join(dir, "sub", "a.txt"))
	require.NoError(t, err)
	assert.True(t, testTime.Equal(fi.ModTime()), "ModTime() = %v, want %v", fi.ModTime(), testTime)

	w, res = c.Stream(2, engine.AskExtract)
	assert.Equal(t, engine.S_OK, res)
	assert.Nil(t, w)
	assert.Equal(t, engine.S_OK, c.SetOperationResult(engine.OpOK))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dir), "evil.txt"))

	err = c.ItemErrors()
	assert.ErrorIs(t, err, ErrUnsafePath)
	assert.Len(t, events, 3)
	assert.Equal(t, int64(2), c.State().Current)
	assert.Equal(t, uint64(5), c.State().Bytes)
	assert.NoError(t, c.Err())
	assert.NoError(t, c.Close())
}

func TestExtractCallback_StreamClosesUnfinishedItem(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	c := NewExtractCallback(context.Background(), 2, lookupOf(
		Entry{Index: 0, Path: "a.txt", Modified: testTime},
		Entry{Index: 1, Path: "b.txt"},
	), func(opts *ExtractCallbackOptions) {
		opts.Dir = dir
	})

	w0, res := c.Stream(0, engine.AskExtract)
	require.Equal(t, engine.S_OK, res)
	_, err = io.WriteString(w0, "hello")
	assert.NoError(t, err)

	// the engine moves on to the next item without reporting the result of the first.
	w1, res := c.Stream(1, engine.AskExtract)
	require.Equal(t, engine.S_OK, res)
	_, err = io.WriteString(w1, "world")
	assert.NoError(t, err)
	assert.Equal(t, engine.S_OK, c.SetOperationResult(engine.OpOK))

	_, err = io.WriteString(w0, "late")
	assert.Error(t, err)

	fi, err := os.Stat(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), fi.Size())
	assert.True(t, testTime.Equal(fi.ModTime()), "ModTime() = %v, want %v", fi.ModTime(), testTime)

	var itemErrs *ItemErrors
	require.ErrorAs(t, c.ItemErrors(), &itemErrs)
	require.Len(t, itemErrs.Items, 1)
	assert.Equal(t, uint32(0), itemErrs.Items[0].Index)
	assert.ErrorIs(t, itemErrs.Items[0].Err, ErrNoOperationResult)
	assert.NoError(t, c.Close())
}

func TestExtractCallback_DirTimes(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	c := NewExtractCallback(context.Background(), 2, lookupOf(
		Entry{Index: 0, Path: "sub", IsDir: true, Modified: testTime},
		Entry{Index: 1, Path: "sub/a.txt"},
	), func(opts *ExtractCallbackOptions) {
		opts.Dir = dir
	})

	for i := uint32(0); i < 2; i++ {
		w, res := c.Stream(i, engine.AskExtract)
		require.Equal(t, engine.S_OK, res)
		if w != nil {
			_, err = io.WriteString(w, "hello")
			assert.NoError(t, err)
		}
		assert.Equal(t, engine.S_OK, c.SetOperationResult(engine.OpOK))
	}
	assert.NoError(t, c.ItemErrors())
	assert.NoError(t, c.Close())

	fi, err := os.Stat(filepath.Join(dir, "sub"))
	require.NoError(t, err)
	assert.True(t, testTime.Equal(fi.ModTime()), "ModTime() = %v, want %v", fi.ModTime(), testTime)
}

func TestExtractCallback_TestModeSkipsOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	c := NewExtractCallback(context.Background(), 1, lookupOf(Entry{Path: "a.txt"}), func(opts *ExtractCallbackOptions) {
		opts.Writer = buf
	})

	for _, mode := range []engine.AskMode{engine.AskTest, engine.AskSkip} {
		w, res := c.Stream(0, mode)
		assert.Equal(t, engine.S_OK, res)
		assert.Nilf(t, w, "Stream(0, %s) returned a writer", mode)
		assert.Equal(t, engine.S_OK, c.SetOperationResult(engine.OpOK))
	}

	w, res := c.Stream(0, engine.AskExtract)
	require.Equal(t, engine.S_OK, res)
	_, _ = io.WriteString(w, "data")
	assert.Equal(t, engine.S_OK, c.SetOperationResult(engine.OpCRCError))
	assert.Equal(t, "data", buf.String())

	var itemErrs *ItemErrors
	require.ErrorAs(t, c.ItemErrors(), &itemErrs)
	assert.Equal(t, map[uint32]engine.OperationResult{0: engine.OpCRCError}, itemErrs.Results())
}

func TestExtractCallback_LookupFailure(t *testing.T) {
	c := NewExtractCallback(context.Background(), 1, lookupOf())

	_, res := c.Stream(7, engine.AskExtract)
	assert.Equal(t, engine.E_FAIL, res)

	var cbErr *CallbackError
	require.ErrorAs(t, c.Err(), &cbErr)
	assert.Equal(t, int64(7), cbErr.Index)
}
