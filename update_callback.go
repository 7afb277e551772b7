package xy7z

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/nguyengg/xy7z/engine"
	"github.com/nguyengg/xy7z/stream"
	"github.com/nguyengg/xy7z/variant"
)

// UpdateMode controls how UpdateCallback maps item indexes to the archive being updated.
type UpdateMode int

const (
	// ModeCreate writes a new archive; every item is new.
	ModeCreate UpdateMode = iota
	// ModeAppend adds new items after the existing ones, which are copied unchanged.
	ModeAppend
	// ModeModify renames or deletes existing items without touching their data.
	ModeModify
)

func (m UpdateMode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeAppend:
		return "append"
	case ModeModify:
		return "modify"
	default:
		return fmt.Sprintf("UpdateMode(%d)", int(m))
	}
}

// ItemEvent is passed to ItemReporter once per processed item.
type ItemEvent struct {
	Index  uint32
	Path   string
	Result engine.OperationResult
	// Err is set if the host rather than the engine failed the item.
	Err error
}

// ItemReporter is called after each item has been processed, whether it succeeded or not.
type ItemReporter func(e ItemEvent)

// UpdateCallbackOptions customises NewUpdateCallback.
type UpdateCallbackOptions struct {
	// Password, if not empty, is handed to the engine to encrypt the archive.
	Password string

	// VolumeSize, if not zero, splits the output into volumes of at most this many bytes each.
	VolumeSize uint64
	// VolumeName is the path prefix of the volumes. Volume i is named fmt.Sprintf("%s.%03d", VolumeName, i+1).
	VolumeName string

	ProgressReporter ProgressReporter
	ItemReporter     ItemReporter
}

// UpdateCallback answers the engine's questions during OutArchive.UpdateItems.
//
// The item index space seen by the engine depends on the mode:
//   - ModeCreate: [0, len(items)), every item is new.
//   - ModeAppend: [0, oldCount) are the existing items, mapped to themselves and not new; [oldCount, oldCount+len(items))
//     are the new items.
//   - ModeModify: [0, oldCount), every index maps to itself with no new data; items renamed or deleted have new
//     properties, and deleted ones report KpidIsAnti as true.
type UpdateCallback struct {
	progressCallback

	mode     UpdateMode
	oldCount uint32
	items    []*ArchiveItem
	changes  map[uint32]*ArchiveItem
	opts     UpdateCallbackOptions

	state   *OperationState
	opened  map[uint32]bool
	current *currentUpdate
	volumes []*stream.OutStream
	errs    ItemErrors
}

type currentUpdate struct {
	index uint32
	path  string
	close func() error
}

var (
	_ engine.UpdateCallback      = (*UpdateCallback)(nil)
	_ engine.NewPasswordProvider = (*UpdateCallback)(nil)
	_ engine.VolumeOutCallback   = (*UpdateCallback)(nil)
)

// NewUpdateCallback validates items against the mode and creates the callback.
//
// oldCount is the number of items of the archive being updated; it must be zero for ModeCreate.
func NewUpdateCallback(ctx context.Context, mode UpdateMode, oldCount uint32, items []*ArchiveItem, optFns ...func(*UpdateCallbackOptions)) (*UpdateCallback, error) {
	opts := UpdateCallbackOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if mode == ModeCreate && oldCount != 0 {
		return nil, fmt.Errorf("create mode with %d existing items: %w", oldCount, ErrInvalidItem)
	}

	c := &UpdateCallback{
		progressCallback: progressCallback{
			progress: &progressTracker{reporter: opts.ProgressReporter},
			fault:    newFault(ctx),
		},
		mode:     mode,
		oldCount: oldCount,
		opts:     opts,
		opened:   make(map[uint32]bool),
	}

	for _, item := range items {
		if err := item.validate(mode, oldCount); err != nil {
			return nil, err
		}
	}

	if mode == ModeModify {
		c.changes = make(map[uint32]*ArchiveItem, len(items))
		for _, item := range items {
			if _, ok := c.changes[item.index]; ok {
				return nil, fmt.Errorf("item %d changed more than once: %w", item.index, ErrInvalidItem)
			}
			c.changes[item.index] = item
		}
	} else {
		c.items = items
	}

	c.state = newOperationState(c.NumItems(), oldCount)
	return c, nil
}

// NumItems is the item count to pass to OutArchive.UpdateItems.
func (c *UpdateCallback) NumItems() uint32 {
	switch c.mode {
	case ModeModify:
		return c.oldCount
	case ModeAppend:
		return c.oldCount + uint32(len(c.items))
	default:
		return uint32(len(c.items))
	}
}

// State returns the bookkeeping of the operation.
func (c *UpdateCallback) State() *OperationState {
	return c.state
}

// lookup returns the item at the engine's index, or nil if the index refers to an unchanged existing item.
func (c *UpdateCallback) lookup(index uint32) (*ArchiveItem, error) {
	if index >= c.NumItems() {
		return nil, fmt.Errorf("index %d out of range [0, %d)", index, c.NumItems())
	}

	switch c.mode {
	case ModeModify:
		return c.changes[index], nil
	case ModeAppend:
		if index < c.oldCount {
			return nil, nil
		}
		return c.items[index-c.oldCount], nil
	default:
		return c.items[index], nil
	}
}

// UpdateItemInfo tells the engine whether the item at index has new data or new properties.
func (c *UpdateCallback) UpdateItemInfo(index uint32) (newData, newProps bool, indexInArchive uint32, res engine.Result) {
	defer c.fault.guard("UpdateItemInfo", int64(index), &res)

	if res = c.fault.checkAbort("UpdateItemInfo", int64(index)); res != engine.S_OK {
		return
	}

	item, err := c.lookup(index)
	if err != nil {
		return false, false, 0, engine.E_INVALIDARG
	}

	c.state.advance(index)

	switch c.mode {
	case ModeModify:
		return false, item != nil, index, engine.S_OK
	case ModeAppend:
		if item == nil {
			return false, false, index, engine.S_OK
		}
	}

	// indexInArchive is ignored by the engine for new items.
	return true, true, engine.AllItems, engine.S_OK
}

// Property returns one property of the item at index.
func (c *UpdateCallback) Property(index uint32, propID engine.PropID) (v variant.Variant, res engine.Result) {
	defer c.fault.guard("Property", int64(index), &res)

	item, err := c.lookup(index)
	if err != nil {
		return v, engine.E_INVALIDARG
	}
	if item == nil {
		// unchanged existing items keep their properties.
		return v, engine.S_OK
	}
	if item.source == sourceDelete || item.source == sourceRename {
		return changedProperty(item, propID), engine.S_OK
	}

	switch propID {
	case engine.KpidPath:
		if item.Name != "" {
			v = variant.FromString(item.Name)
		}
	case engine.KpidName:
		if item.Name != "" {
			v = variant.FromString(path.Base(item.Name))
		}
	case engine.KpidIsDir:
		v = variant.FromBool(item.IsDir)
	case engine.KpidIsAnti:
		v = variant.FromBool(item.IsAnti())
	case engine.KpidSize:
		if item.Size >= 0 {
			v = variant.FromUint64(uint64(item.Size))
		}
	case engine.KpidAttrib:
		if item.Attributes != 0 {
			v = variant.FromUint32(item.Attributes)
		}
	case engine.KpidCTime:
		v = timeVariant(item.Created)
	case engine.KpidATime:
		v = timeVariant(item.Accessed)
	case engine.KpidMTime:
		v = timeVariant(item.Modified)
	}

	return v, engine.S_OK
}

// changedProperty answers for DeleteItem and RenameItem, which only know their new name and whether they are deleted.
// Everything else is left Empty so the engine keeps the existing value.
func changedProperty(item *ArchiveItem, propID engine.PropID) variant.Variant {
	switch propID {
	case engine.KpidIsAnti:
		return variant.FromBool(item.IsAnti())
	case engine.KpidPath:
		if item.Name != "" {
			return variant.FromString(item.Name)
		}
	case engine.KpidName:
		if item.Name != "" {
			return variant.FromString(path.Base(item.Name))
		}
	}

	return variant.Variant{}
}

func timeVariant(t time.Time) variant.Variant {
	if t.IsZero() {
		return variant.Variant{}
	}

	return variant.FromTime(t)
}

// Stream opens the data of the item at index. Items without new data get a nil reader.
func (c *UpdateCallback) Stream(index uint32) (r io.Reader, res engine.Result) {
	defer c.fault.guard("Stream", int64(index), &res)

	if res = c.fault.checkAbort("Stream", int64(index)); res != engine.S_OK {
		return
	}

	item, err := c.lookup(index)
	if err != nil {
		return nil, engine.E_INVALIDARG
	}

	c.abandon()
	c.state.advance(index)
	c.current = &currentUpdate{index: index}
	if item == nil {
		return nil, engine.S_OK
	}

	c.current.path = item.Name
	if !item.hasData() {
		return nil, engine.S_OK
	}
	if c.opened[index] {
		return nil, c.fault.record("Stream", int64(index), ErrStreamAlreadyOpened)
	}

	src, closeFn, err := item.open()
	if err != nil {
		return nil, c.fault.record("Stream", int64(index), err)
	}

	c.opened[index] = true
	c.current.close = closeFn

	return &countingReader{r: src, state: c.state}, engine.S_OK
}

// abandon releases the source of an item whose result the engine never reported.
func (c *UpdateCallback) abandon() {
	cur := c.current
	c.current = nil
	if cur == nil || cur.close == nil {
		return
	}

	err := ErrNoOperationResult
	if cerr := cur.close(); cerr != nil {
		err = fmt.Errorf("%w; close error: %w", err, cerr)
	}

	c.errs.Items = append(c.errs.Items, ItemError{Index: cur.index, Path: cur.path, Err: err})
	if c.opts.ItemReporter != nil {
		c.opts.ItemReporter(ItemEvent{Index: cur.index, Path: cur.path, Err: err})
	}
}

// SetOperationResult closes the current item's source and records its outcome.
func (c *UpdateCallback) SetOperationResult(opRes engine.OperationResult) (res engine.Result) {
	defer c.fault.guard("SetOperationResult", -1, &res)

	cur := c.current
	c.current = nil
	if cur == nil {
		c.state.finish(opRes)
		return engine.S_OK
	}

	var err error
	if cur.close != nil {
		err = cur.close()
	}

	c.state.finish(opRes)
	if opRes != engine.OpOK || err != nil {
		c.errs.Items = append(c.errs.Items, ItemError{Index: cur.index, Path: cur.path, Result: opRes, Err: err})
	}
	if c.opts.ItemReporter != nil {
		c.opts.ItemReporter(ItemEvent{Index: cur.index, Path: cur.path, Result: opRes, Err: err})
	}

	return engine.S_OK
}

// NewPassword returns the password to encrypt the new archive with, if any.
func (c *UpdateCallback) NewPassword() (password string, defined bool, res engine.Result) {
	return c.opts.Password, c.opts.Password != "", engine.S_OK
}

// VolumeSize returns the size of every volume, or S_FALSE if the output is not split.
func (c *UpdateCallback) VolumeSize(index uint32) (uint64, engine.Result) {
	if c.opts.VolumeSize == 0 {
		return 0, engine.S_FALSE
	}

	return c.opts.VolumeSize, engine.S_OK
}

// VolumeStream creates the file of the volume at index.
func (c *UpdateCallback) VolumeStream(index uint32) (out engine.OutStream, res engine.Result) {
	defer c.fault.guard("VolumeStream", int64(index), &res)

	if c.opts.VolumeName == "" {
		return nil, c.fault.record("VolumeStream", int64(index), fmt.Errorf("split output requires a volume name"))
	}

	s, err := stream.CreateFile(VolumeName(c.opts.VolumeName, index), 0666)
	if err != nil {
		return nil, c.fault.record("VolumeStream", int64(index), err)
	}

	c.volumes = append(c.volumes, s)
	return s, engine.S_OK
}

// Reset allows every item's stream to be opened once more, for example to retry the operation.
func (c *UpdateCallback) Reset() {
	clear(c.opened)
	if c.current != nil && c.current.close != nil {
		_ = c.current.close()
	}
	c.current = nil
	c.state = newOperationState(c.NumItems(), c.oldCount)
	c.progress = &progressTracker{reporter: c.opts.ProgressReporter}
}

// Err returns the first fault captured during the operation, if any.
func (c *UpdateCallback) Err() error {
	return c.fault.Err()
}

// ItemErrors returns the items that failed, or nil.
func (c *UpdateCallback) ItemErrors() error {
	return c.errs.errOrNil()
}

// Close closes any stream the engine left open, then the volumes in reverse order of creation.
func (c *UpdateCallback) Close() (err error) {
	if c.current != nil && c.current.close != nil {
		err = c.current.close()
	}
	c.current = nil

	for i := len(c.volumes) - 1; i >= 0; i-- {
		if cerr := c.volumes[i].Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	c.volumes = nil

	return err
}

// VolumeName returns the name of the volume at zero-based index, e.g. "archive.7z.001" for index 0.
func VolumeName(prefix string, index uint32) string {
	return fmt.Sprintf("%s.%03d", prefix, index+1)
}

// countingReader adds every byte read to the operation's byte count.
type countingReader struct {
	r     io.Reader
	state *OperationState
}

func (r *countingReader) Read(p []byte) (n int, err error) {
	n, err = r.r.Read(p)
	r.state.addBytes(n)
	return
}
