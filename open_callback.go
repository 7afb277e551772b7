package xy7z

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nguyengg/xy7z/engine"
	"github.com/nguyengg/xy7z/stream"
	"github.com/nguyengg/xy7z/variant"
)

// OpenState is the state of an OpenCallback.
type OpenState int

const (
	// OpenIdle is the state before the engine has asked for any volume.
	OpenIdle OpenState = iota
	// OpenAwaitingVolume is the state once the engine has started asking for further volumes.
	OpenAwaitingVolume
	// OpenDone is terminal; it is entered when InArchive.Open returns.
	OpenDone
)

func (s OpenState) String() string {
	switch s {
	case OpenIdle:
		return "idle"
	case OpenAwaitingVolume:
		return "awaiting volume"
	case OpenDone:
		return "done"
	default:
		return fmt.Sprintf("OpenState(%d)", int(s))
	}
}

// VolumeOpener opens a sibling volume by name. It must return an error wrapping fs.ErrNotExist if there is no such
// volume.
type VolumeOpener func(name string) (io.ReadSeekCloser, error)

// FileVolumeOpener opens volumes that are files in dir.
func FileVolumeOpener(dir string) VolumeOpener {
	return func(name string) (io.ReadSeekCloser, error) {
		return os.Open(filepath.Join(dir, name))
	}
}

// OpenCallbackOptions customises NewOpenCallback.
type OpenCallbackOptions struct {
	// Password is returned to the engine if it asks for one. Ignored unless HasPassword is true.
	Password    string
	HasPassword bool

	// VolumeOpener resolves further volumes of a multi-volume archive. If nil, the engine is told none exist.
	VolumeOpener VolumeOpener

	ProgressReporter ProgressReporter
}

// OpenCallback answers the engine's questions during InArchive.Open.
//
// Total and completed hints are only recorded. Volumes opened on behalf of the engine stay open until Close, which
// must be called after the archive itself has been closed.
type OpenCallback struct {
	progressCallback

	opts    OpenCallbackOptions
	state   OpenState
	name    string
	volumes []*stream.InStream
}

var (
	_ engine.OpenCallback     = (*OpenCallback)(nil)
	_ engine.PasswordProvider = (*OpenCallback)(nil)
	_ engine.VolumeCallback   = (*OpenCallback)(nil)
)

// NewOpenCallback creates an OpenCallback for the archive whose first volume is named name.
func NewOpenCallback(ctx context.Context, name string, optFns ...func(*OpenCallbackOptions)) *OpenCallback {
	opts := OpenCallbackOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &OpenCallback{
		progressCallback: progressCallback{
			progress: &progressTracker{reporter: opts.ProgressReporter},
			fault:    newFault(ctx),
		},
		opts: opts,
		name: name,
	}
}

// State returns the current state.
func (c *OpenCallback) State() OpenState {
	return c.state
}

// Volumes returns the number of additional volumes opened so far.
func (c *OpenCallback) Volumes() int {
	return len(c.volumes)
}

// VolumeProperty answers KpidName with the name of the volume being opened.
func (c *OpenCallback) VolumeProperty(propID engine.PropID) (v variant.Variant, res engine.Result) {
	defer c.fault.guard("VolumeProperty", -1, &res)

	if c.state == OpenDone {
		return v, engine.E_FAIL
	}

	if propID == engine.KpidName && c.name != "" {
		v = variant.FromString(filepath.Base(c.name))
	}

	return v, engine.S_OK
}

// VolumeStream opens the sibling volume name, or returns S_FALSE if it does not exist.
func (c *OpenCallback) VolumeStream(name string) (in engine.InStream, res engine.Result) {
	defer c.fault.guard("VolumeStream", -1, &res)

	if c.state == OpenDone {
		return nil, engine.E_FAIL
	}
	if res = c.fault.checkAbort("VolumeStream", -1); res != engine.S_OK {
		return nil, res
	}

	c.state = OpenAwaitingVolume
	if c.opts.VolumeOpener == nil {
		return nil, engine.S_FALSE
	}

	f, err := c.opts.VolumeOpener(name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, engine.S_FALSE
	case err != nil:
		return nil, c.fault.record("VolumeStream", -1, fmt.Errorf(`open volume "%s" error: %w`, name, err))
	}

	s := stream.NewIn(f, func(opts *stream.Options) { opts.Owned = true })
	c.volumes = append(c.volumes, s)
	c.name = name

	return s, engine.S_OK
}

// Password returns the supplied password. defined is false if none was supplied, which the engine reports differently
// from a wrong password.
func (c *OpenCallback) Password() (password string, defined bool, res engine.Result) {
	if !c.opts.HasPassword {
		return "", false, engine.S_OK
	}

	return c.opts.Password, true, engine.S_OK
}

// finish moves to OpenDone and returns the outcome of the open.
func (c *OpenCallback) finish(res engine.Result) error {
	c.state = OpenDone
	return c.fault.outcome("Open", res)
}

// Close releases the opened volumes in reverse order.
func (c *OpenCallback) Close() (err error) {
	c.state = OpenDone

	for i := len(c.volumes) - 1; i >= 0; i-- {
		if cerr := c.volumes[i].Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	c.volumes = nil

	return err
}
