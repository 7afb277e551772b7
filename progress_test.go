package xy7z

import (
	"bytes"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker(t *testing.T) {
	var got []Progress
	tracker := &progressTracker{reporter: func(p Progress) { got = append(got, p) }}

	tracker.setTotal(200)
	tracker.setCompleted(50)
	// engines may report a smaller value after a larger one; the percentage must not go backwards.
	tracker.setCompleted(20)
	tracker.setCompleted(150)
	// or overshoot the total.
	tracker.setCompleted(500)
	tracker.setCompleted(600)

	assert.Equal(t, []Progress{
		{Total: 200, Completed: 50, Percent: 25, Delta: 25},
		{Total: 200, Completed: 20, Percent: 25, Delta: 0},
		{Total: 200, Completed: 150, Percent: 75, Delta: 50},
		{Total: 200, Completed: 500, Percent: 100, Delta: 25},
		{Total: 200, Completed: 600, Percent: 100, Delta: 0},
	}, got)
}

func TestProgressTracker_UnknownTotal(t *testing.T) {
	var got []Progress
	tracker := &progressTracker{reporter: func(p Progress) { got = append(got, p) }}

	tracker.setCompleted(1 << 20)

	assert.Equal(t, []Progress{{Completed: 1 << 20}}, got)
}

func TestNewProgressLogger(t *testing.T) {
	var buf bytes.Buffer
	report := NewProgressLogger(log.New(&buf, "", 0), "extracted", time.Hour)

	report(Progress{Total: 2048, Completed: 1024, Percent: 50, Delta: 50})
	// throttled.
	report(Progress{Total: 2048, Completed: 1536, Percent: 75, Delta: 25})
	report(Progress{Total: 2048, Completed: 2048, Percent: 100, Delta: 25})
	// only logged once.
	report(Progress{Total: 2048, Completed: 2048, Percent: 100})

	assert.Equal(t, "extracted 1.0 KiB / 2.0 KiB (50%) so far\nextracted 2.0 KiB in total\n", buf.String())
}
