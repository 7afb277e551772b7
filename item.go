package xy7z

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"
)

// Windows file attributes, plus the extension that carries Unix permission bits in the high 16 bits.
const (
	AttributeReadOnly      uint32 = 0x1
	AttributeDirectory     uint32 = 0x10
	AttributeArchive       uint32 = 0x20
	AttributeUnixExtension uint32 = 0x8000
)

type itemSource int

const (
	sourceNone itemSource = iota
	sourceFile
	sourceReader
	sourceDelete
	sourceRename
)

func (s itemSource) String() string {
	switch s {
	case sourceNone:
		return "directory"
	case sourceFile:
		return "file"
	case sourceReader:
		return "stream"
	case sourceDelete:
		return "delete"
	case sourceRename:
		return "rename"
	default:
		return fmt.Sprintf("itemSource(%d)", int(s))
	}
}

// ArchiveItem is one entry submitted to Update.
//
// Use FileItem, StreamItem, DirItem for Create and Append; DeleteItem and RenameItem for Modify. The source of an item
// (file path, stream, delete marker or rename marker) is fixed by its constructor.
type ArchiveItem struct {
	// Name is the slash-separated path of the item inside the archive.
	Name string
	// IsDir is true for directory entries, which have no data.
	IsDir bool
	// Attributes are Windows file attributes, optionally with Unix permission bits (see AttributeUnixExtension).
	Attributes uint32
	// Size is the number of bytes of data, or -1 if unknown.
	Size int64

	Created, Accessed, Modified time.Time

	source itemSource
	path   string
	reader io.Reader
	index  uint32
}

// FileItem creates an item whose data and metadata come from the named file or directory.
func FileItem(name, nameInArchive string) (*ArchiveItem, error) {
	fi, err := os.Stat(name)
	if err != nil {
		return nil, fmt.Errorf(`stat file "%s" error: %w`, name, err)
	}

	item := &ArchiveItem{
		Name:       filepath.ToSlash(nameInArchive),
		IsDir:      fi.IsDir(),
		Attributes: attributesOf(fi),
		Size:       fi.Size(),
		Modified:   fi.ModTime(),
		source:     sourceFile,
		path:       name,
	}
	if item.IsDir {
		item.Size = 0
	}

	return item, nil
}

// StreamItem creates an item whose data is read from r. size may be -1 if unknown.
func StreamItem(nameInArchive string, r io.Reader, size int64, modified time.Time) *ArchiveItem {
	return &ArchiveItem{
		Name:       nameInArchive,
		Attributes: AttributeArchive,
		Size:       size,
		Modified:   modified,
		source:     sourceReader,
		reader:     r,
	}
}

// DirItem creates a directory entry without a backing file.
func DirItem(nameInArchive string, modified time.Time) *ArchiveItem {
	return &ArchiveItem{
		Name:       nameInArchive,
		IsDir:      true,
		Attributes: AttributeDirectory,
		Modified:   modified,
		source:     sourceNone,
	}
}

// DeleteItem marks the item at index of the archive being modified for deletion.
func DeleteItem(index uint32) *ArchiveItem {
	return &ArchiveItem{index: index, source: sourceDelete, Size: -1}
}

// RenameItem renames the item at index of the archive being modified.
func RenameItem(index uint32, newName string) *ArchiveItem {
	return &ArchiveItem{Name: newName, index: index, source: sourceRename, Size: -1}
}

// IsAnti returns true for delete markers.
func (item *ArchiveItem) IsAnti() bool {
	return item.source == sourceDelete
}

// Index returns the index in the archive being modified targeted by DeleteItem and RenameItem.
func (item *ArchiveItem) Index() uint32 {
	return item.index
}

// hasData returns true if the engine should ask for the item's stream.
func (item *ArchiveItem) hasData() bool {
	return !item.IsDir && (item.source == sourceFile || item.source == sourceReader)
}

// open returns the item's data, and a close function if the item owns what it opened.
func (item *ArchiveItem) open() (io.Reader, func() error, error) {
	switch {
	case !item.hasData():
		return nil, nil, nil
	case item.source == sourceReader:
		return item.reader, nil, nil
	}

	f, err := os.Open(item.path)
	if err != nil {
		return nil, nil, fmt.Errorf(`open file "%s" error: %w`, item.path, err)
	}

	return f, f.Close, nil
}

func (item *ArchiveItem) validate(mode UpdateMode, oldCount uint32) error {
	switch mode {
	case ModeCreate, ModeAppend:
		if item.source == sourceDelete || item.source == sourceRename {
			return fmt.Errorf("%s item not allowed in %s mode: %w", item.source, mode, ErrInvalidItem)
		}
		if item.Name == "" || path.IsAbs(item.Name) {
			return fmt.Errorf(`invalid name "%s": %w`, item.Name, ErrInvalidItem)
		}
	case ModeModify:
		if item.source != sourceDelete && item.source != sourceRename {
			return fmt.Errorf("%s item not allowed in %s mode: %w", item.source, mode, ErrInvalidItem)
		}
		if item.index >= oldCount {
			return fmt.Errorf("index %d out of range [0, %d): %w", item.index, oldCount, ErrInvalidItem)
		}
		if item.source == sourceRename && item.Name == "" {
			return fmt.Errorf("rename of item %d has no new name: %w", item.index, ErrInvalidItem)
		}
	}

	return nil
}

func attributesOf(fi fs.FileInfo) uint32 {
	attrib := AttributeUnixExtension | uint32(fi.Mode().Perm())<<16
	if fi.IsDir() {
		attrib |= AttributeDirectory | uint32(0o040000)<<16
	} else {
		attrib |= AttributeArchive | uint32(0o100000)<<16
	}
	if fi.Mode().Perm()&0o200 == 0 {
		attrib |= AttributeReadOnly
	}

	return attrib
}

// WalkItems recursively creates FileItem for root and everything under it.
//
// Names in the archive start with the base name of root, so that compressing "path/to/dir" produces "dir/a.txt" and so
// on. Anything that is neither a regular file nor a directory is skipped.
func WalkItems(ctx context.Context, root string) (items []*ArchiveItem, err error) {
	base := filepath.Base(root)

	err = filepath.WalkDir(root, func(srcPath string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return fmt.Errorf("walk dir error: %w", err)
		}
		if !d.IsDir() && !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, srcPath)
		if err != nil {
			return fmt.Errorf(`compute name in archive of "%s" error: %w`, srcPath, err)
		}

		item, err := FileItem(srcPath, filepath.Join(base, rel))
		if err != nil {
			return err
		}

		items = append(items, item)
		return nil
	})

	return
}
