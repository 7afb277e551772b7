package xy7z

import (
	"log"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nguyengg/xy7z/engine"
	"github.com/nguyengg/xy7z/util"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"
)

// Progress is one progress notification of an engine operation.
type Progress struct {
	// Total is the engine's latest estimate of the amount of work, usually in bytes. Zero if unknown.
	Total uint64
	// Completed is the amount of work done so far as reported by the engine.
	Completed uint64
	// Percent is in [0, 100] and never decreases within one operation.
	Percent int
	// Delta is the increase of Percent since the previous notification.
	Delta int
}

// ProgressReporter is called every time the engine reports progress.
type ProgressReporter func(p Progress)

// DefaultProgressReporter logs with log.Printf every 5 seconds, and once more upon completion.
func DefaultProgressReporter(verb string) ProgressReporter {
	return NewProgressLogger(log.Default(), verb, 5*time.Second)
}

// NewProgressLogger creates a ProgressReporter that logs `{verb} X / Y (Z%) so far` at most once per interval.
func NewProgressLogger(logger *log.Logger, verb string, interval time.Duration) ProgressReporter {
	sometimes := &rate.Sometimes{Interval: interval}
	done := false

	return func(p Progress) {
		if p.Percent == 100 {
			if !done {
				done = true
				logger.Printf("%s %s in total", verb, humanize.IBytes(p.Completed))
			}
			return
		}

		sometimes.Do(func() {
			logger.Printf("%s %s / %s (%d%%) so far", verb, humanize.IBytes(p.Completed), humanize.IBytes(p.Total), p.Percent)
		})
	}
}

// NewProgressBarReporter creates a ProgressReporter that drives the given progressbar.ProgressBar.
//
// If the given progress bar is nil, it will be created with util.DefaultBytes.
func NewProgressBarReporter(bar *progressbar.ProgressBar, description string) ProgressReporter {
	if bar == nil {
		bar = util.DefaultBytes(-1, description)
	}

	var total uint64
	return func(p Progress) {
		if p.Total != total && p.Total > 0 {
			total = p.Total
			bar.ChangeMax64(int64(total))
		}

		// ignore all errors from progress bar.
		_ = bar.Set64(int64(p.Completed))
		if p.Percent == 100 {
			_ = bar.Finish()
		}
	}
}

// progressTracker converts the engine's SetTotal/SetCompleted pairs into Progress notifications.
type progressTracker struct {
	total, completed uint64
	percent          int
	reporter         ProgressReporter
}

func (t *progressTracker) setTotal(total uint64) {
	t.total = total
}

func (t *progressTracker) setCompleted(completed uint64) {
	t.completed = completed

	p := t.percent
	if t.total > 0 {
		p = int(float64(min(completed, t.total)) / float64(t.total) * 100)
	}
	p = max(t.percent, min(100, max(0, p)))

	delta := p - t.percent
	t.percent = p

	if t.reporter != nil {
		t.reporter(Progress{Total: t.total, Completed: completed, Percent: p, Delta: delta})
	}
}

// progressCallback implements engine.Progress for all three callbacks.
type progressCallback struct {
	progress *progressTracker
	fault    *fault
}

// SetTotal records the total number of bytes the engine expects to process.
func (c *progressCallback) SetTotal(total uint64) (res engine.Result) {
	defer c.fault.guard("SetTotal", -1, &res)

	c.progress.setTotal(total)
	return c.fault.checkAbort("SetTotal", -1)
}

// SetCompleted reports progress. The reported percentage never goes down.
func (c *progressCallback) SetCompleted(completed uint64) (res engine.Result) {
	defer c.fault.guard("SetCompleted", -1, &res)

	c.progress.setCompleted(completed)
	return c.fault.checkAbort("SetCompleted", -1)
}
