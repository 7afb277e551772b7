package stream

import (
	"time"

	"golang.org/x/sys/windows"
)

func setFileTimes(ft FileTimes) error {
	name, err := windows.UTF16PtrFromString(ft.Name)
	if err != nil {
		return err
	}

	h, err := windows.CreateFile(name,
		windows.FILE_WRITE_ATTRIBUTES,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS,
		0)
	if err != nil {
		return err
	}
	defer windows.CloseHandle(h)

	return windows.SetFileTime(h, filetime(ft.Created), filetime(ft.Accessed), filetime(ft.Modified))
}

// filetime returns nil for the zero time so SetFileTime leaves that timestamp alone.
func filetime(t time.Time) *windows.Filetime {
	if t.IsZero() {
		return nil
	}

	ft := windows.NsecToFiletime(t.UnixNano())
	return &ft
}
