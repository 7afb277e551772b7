package cmd

import (
	"log"
	"os"
	"time"

	"github.com/nguyengg/xy7z"
	"github.com/nguyengg/xy7z/engine"
	"golang.org/x/term"
)

// progressReporter draws a progress bar on an interactive terminal, and logs with logger otherwise.
func progressReporter(logger *log.Logger, verb string) xy7z.ProgressReporter {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return xy7z.NewProgressBarReporter(nil, verb)
	}

	return xy7z.NewProgressLogger(logger, verb, 5*time.Second)
}

// itemReporter logs every item that did not succeed.
func itemReporter(logger *log.Logger) xy7z.ItemReporter {
	return func(e xy7z.ItemEvent) {
		switch {
		case e.Err != nil:
			logger.Printf(`item %d "%s" error: %v`, e.Index, e.Path, e.Err)
		case e.Result != engine.OpOK:
			logger.Printf(`item %d "%s" error: %s`, e.Index, e.Path, e.Result)
		}
	}
}
