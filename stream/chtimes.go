//go:build !windows

package stream

import "os"

func setFileTimes(ft FileTimes) error {
	return os.Chtimes(ft.Name, ft.Accessed, ft.Modified)
}
