package xy7z

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nguyengg/xy7z/engine"
	"github.com/nguyengg/xy7z/stream"
)

// EntryLookup returns the metadata of the item at index of the archive being extracted.
type EntryLookup func(index uint32) (Entry, error)

// ExtractCallbackOptions customises NewExtractCallback.
//
// At most one of Dir and Writer should be set. If neither is, every item is decoded and discarded, which is what the
// engine does in test mode anyway.
type ExtractCallbackOptions struct {
	// Dir is the directory into which items are extracted, keeping their relative paths.
	Dir string
	// Writer receives the data of every extracted file item, concatenated.
	Writer io.Writer

	// Password is returned to the engine if it asks for one. Ignored unless HasPassword is true.
	Password    string
	HasPassword bool

	ProgressReporter ProgressReporter
	ItemReporter     ItemReporter
}

// ExtractCallback answers the engine's questions during InArchive.Extract.
type ExtractCallback struct {
	progressCallback

	lookup  EntryLookup
	opts    ExtractCallbackOptions
	state   *OperationState
	current *currentExtract
	errs    ItemErrors

	// dirs are the extracted directories whose times are applied by Close.
	dirs []stream.FileTimes
}

type currentExtract struct {
	index uint32
	path  string
	mode  engine.AskMode
	out   *stream.OutStream
	err   error
}

var (
	_ engine.ExtractCallback  = (*ExtractCallback)(nil)
	_ engine.PasswordProvider = (*ExtractCallback)(nil)
)

// NewExtractCallback creates an ExtractCallback for numItems items.
func NewExtractCallback(ctx context.Context, numItems uint32, lookup EntryLookup, optFns ...func(*ExtractCallbackOptions)) *ExtractCallback {
	opts := ExtractCallbackOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &ExtractCallback{
		progressCallback: progressCallback{
			progress: &progressTracker{reporter: opts.ProgressReporter},
			fault:    newFault(ctx),
		},
		lookup: lookup,
		opts:   opts,
		state:  newOperationState(numItems, 0),
	}
}

// State returns the bookkeeping of the operation.
func (c *ExtractCallback) State() *OperationState {
	return c.state
}

// Stream returns the destination of the item at index, or nil if the item is skipped or only tested.
func (c *ExtractCallback) Stream(index uint32, mode engine.AskMode) (w io.Writer, res engine.Result) {
	defer c.fault.guard("Stream", int64(index), &res)

	if res = c.fault.checkAbort("Stream", int64(index)); res != engine.S_OK {
		return nil, res
	}

	entry, err := c.lookup(index)
	if err != nil {
		return nil, c.fault.record("Stream", int64(index), err)
	}

	c.abandon()
	c.state.advance(index)
	c.current = &currentExtract{index: index, path: entry.Path, mode: mode}
	if mode != engine.AskExtract {
		return nil, engine.S_OK
	}

	switch {
	case c.opts.Writer != nil:
		if entry.IsDir {
			return nil, engine.S_OK
		}

		return &countingWriter{w: c.opts.Writer, state: c.state}, engine.S_OK

	case c.opts.Dir != "":
		out, err := c.create(entry)
		if err != nil {
			return nil, c.fault.record("Stream", int64(index), err)
		}
		if out == nil {
			return nil, engine.S_OK
		}

		c.current.out = out
		return &countingWriter{w: out, state: c.state}, engine.S_OK

	default:
		return nil, engine.S_OK
	}
}

// create prepares the destination of entry under Dir. It returns a nil stream for directories and unsafe paths.
func (c *ExtractCallback) create(entry Entry) (*stream.OutStream, error) {
	name := filepath.FromSlash(entry.Path)
	if !filepath.IsLocal(name) {
		c.current.err = fmt.Errorf(`path "%s" escapes "%s": %w`, entry.Path, c.opts.Dir, ErrUnsafePath)
		return nil, nil
	}

	dst := filepath.Join(c.opts.Dir, name)
	if entry.IsDir {
		if err := os.MkdirAll(dst, 0755); err != nil {
			return nil, fmt.Errorf(`create directory "%s" error: %w`, dst, err)
		}

		c.dirs = append(c.dirs, stream.FileTimes{
			Name:     dst,
			Created:  entry.Created,
			Accessed: entry.Accessed,
			Modified: entry.Modified,
		})
		return nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return nil, fmt.Errorf(`create directory "%s" error: %w`, filepath.Dir(dst), err)
	}

	out, err := stream.CreateFile(dst, entry.Perm(), func(opts *stream.Options) {
		opts.FileTimes = stream.FileTimes{
			Created:  entry.Created,
			Accessed: entry.Accessed,
			Modified: entry.Modified,
		}
	})
	if err != nil {
		return nil, fmt.Errorf(`create file "%s" error: %w`, dst, err)
	}

	return out, nil
}

// PrepareOperation records the final ask mode of the current item.
func (c *ExtractCallback) PrepareOperation(mode engine.AskMode) (res engine.Result) {
	defer c.fault.guard("PrepareOperation", -1, &res)

	if c.current != nil {
		c.current.mode = mode
	}

	return c.fault.checkAbort("PrepareOperation", -1)
}

// abandon closes the output of an item whose result the engine never reported.
func (c *ExtractCallback) abandon() {
	cur := c.current
	c.current = nil
	if cur == nil || cur.out == nil {
		return
	}

	err := ErrNoOperationResult
	if cerr := cur.out.Close(); cerr != nil {
		err = fmt.Errorf("%w; close error: %w", err, cerr)
	}

	c.errs.Items = append(c.errs.Items, ItemError{Index: cur.index, Path: cur.path, Err: err})
	if c.opts.ItemReporter != nil {
		c.opts.ItemReporter(ItemEvent{Index: cur.index, Path: cur.path, Err: err})
	}
}

// SetOperationResult closes the current item's output and records its outcome.
func (c *ExtractCallback) SetOperationResult(opRes engine.OperationResult) (res engine.Result) {
	defer c.fault.guard("SetOperationResult", -1, &res)

	cur := c.current
	c.current = nil
	c.state.finish(opRes)
	if cur == nil {
		return engine.S_OK
	}

	err := cur.err
	if cur.out != nil {
		if cerr := cur.out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}

	if opRes != engine.OpOK || err != nil {
		c.errs.Items = append(c.errs.Items, ItemError{Index: cur.index, Path: cur.path, Result: opRes, Err: err})
	}
	if c.opts.ItemReporter != nil {
		c.opts.ItemReporter(ItemEvent{Index: cur.index, Path: cur.path, Result: opRes, Err: err})
	}

	return engine.S_OK
}

// Password returns the supplied password, or defined as false if none was supplied.
func (c *ExtractCallback) Password() (password string, defined bool, res engine.Result) {
	if !c.opts.HasPassword {
		return "", false, engine.S_OK
	}

	return c.opts.Password, true, engine.S_OK
}

// Err returns the first fault captured during the operation, if any.
func (c *ExtractCallback) Err() error {
	return c.fault.Err()
}

// ItemErrors returns the items that failed, or nil.
func (c *ExtractCallback) ItemErrors() error {
	return c.errs.errOrNil()
}

// Close closes the output of an item the engine never finished, then applies the times of the extracted directories.
//
// Directory times are applied after every item is written, in reverse order of extraction.
func (c *ExtractCallback) Close() (err error) {
	if c.current != nil && c.current.out != nil {
		err = c.current.out.Close()
	}
	c.current = nil

	for i := len(c.dirs) - 1; i >= 0; i-- {
		if aerr := c.dirs[i].Apply(); aerr != nil && err == nil {
			err = aerr
		}
	}
	c.dirs = nil

	return err
}

// countingWriter adds every byte written to the operation's byte count.
type countingWriter struct {
	w     io.Writer
	state *OperationState
}

func (w *countingWriter) Write(p []byte) (n int, err error) {
	n, err = w.w.Write(p)
	w.state.addBytes(n)
	return
}
