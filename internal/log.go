package internal

import (
	"fmt"
	"log"
	"os"
	"path"

	"github.com/nguyengg/xy7z/util"
)

// Prefix creates a consistent prefix for all file-based commands to use.
//
// i and n are the zero-based ordinal and expected count.
func Prefix(i, n int, name string) string {
	return fmt.Sprintf(`[%d/%d] "%s" - `, i+1, n, util.TruncateRightWithSuffix(path.Base(name), 30, "..."))
}

// NewLogger creates a logger to stderr whose lines start with Prefix.
func NewLogger(i, n int, name string) *log.Logger {
	return log.New(os.Stderr, Prefix(i, n, name), 0)
}
