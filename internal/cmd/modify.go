package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/xy7z"
	"github.com/nguyengg/xy7z/internal"
)

type Delete struct {
	ArchiveOptions
	Args struct {
		Archive flags.Filename `positional-arg-name:"archive" description:"the local archive to modify" required:"yes"`
		Paths   []string       `positional-arg-name:"path" description:"paths of the items to delete; deleting a directory deletes its contents" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Delete) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	name := string(c.Args.Archive)
	logger := internal.NewLogger(0, 1, name)

	n, err := modify(ctx, name, c.ArchiveOptions, logger, func(e xy7z.Entry) *xy7z.ArchiveItem {
		for _, p := range c.Args.Paths {
			if matches(e.Path, p) {
				return xy7z.DeleteItem(e.Index)
			}
		}

		return nil
	})
	if err != nil {
		logger.Printf("delete error: %v", err)
		return err
	}

	log.Printf("successfully deleted %d items", n)
	return nil
}

type Rename struct {
	ArchiveOptions
	Args struct {
		Archive flags.Filename `positional-arg-name:"archive" description:"the local archive to modify" required:"yes"`
		From    string         `positional-arg-name:"from" description:"path of the item to rename; renaming a directory moves its contents" required:"yes"`
		To      string         `positional-arg-name:"to" description:"the new path" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Rename) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	name := string(c.Args.Archive)
	logger := internal.NewLogger(0, 1, name)

	from, to := cleanPath(c.Args.From), cleanPath(c.Args.To)
	if from == "" || to == "" {
		return fmt.Errorf("both paths must not be empty")
	}

	n, err := modify(ctx, name, c.ArchiveOptions, logger, func(e xy7z.Entry) *xy7z.ArchiveItem {
		if !matches(e.Path, from) {
			return nil
		}

		return xy7z.RenameItem(e.Index, to+strings.TrimPrefix(cleanPath(e.Path), from))
	})
	if err != nil {
		logger.Printf("rename error: %v", err)
		return err
	}

	log.Printf("successfully renamed %d items", n)
	return nil
}

func cleanPath(p string) string {
	return strings.Trim(strings.ReplaceAll(p, `\`, "/"), "/")
}

// matches returns true if entry is p or is under directory p.
func matches(entry, p string) bool {
	entry, p = cleanPath(entry), cleanPath(p)
	return entry == p || strings.HasPrefix(entry, p+"/")
}

// modify rewrites the named archive with the items returned by fn, which returns nil for entries to keep as is.
//
// The number of modified items is returned.
func modify(ctx context.Context, name string, ao ArchiveOptions, logger *log.Logger, fn func(e xy7z.Entry) *xy7z.ArchiveItem) (n int, err error) {
	err = rewrite(ctx, name, ao, func(r *xy7z.Reader, dst *os.File) error {
		var items []*xy7z.ArchiveItem
		for e, err := range r.Entries() {
			if err != nil {
				return err
			}

			if item := fn(e); item != nil {
				items = append(items, item)
			}
		}

		if n = len(items); n == 0 {
			return errNoMatch
		}

		return xy7z.Update(ctx, library, r.Format(), dst, items, xy7z.ModifyFrom(r), func(opts *xy7z.UpdateOptions) {
			opts.ProgressReporter = progressReporter(logger, "rewritten")
			opts.ItemReporter = itemReporter(logger)
		})
	})

	return
}

var errNoMatch = errors.New("no matching items")

// rewrite opens the named archive, calls fn to write its replacement into a temporary file in the same directory, then
// replaces the archive with the temporary file.
func rewrite(ctx context.Context, name string, ao ArchiveOptions, fn func(r *xy7z.Reader, dst *os.File) error) error {
	dst, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+"-*")
	if err != nil {
		return fmt.Errorf("create temporary archive error: %w", err)
	}
	defer func() {
		_, _ = dst.Close(), os.Remove(dst.Name())
	}()

	if err = forEachArchive(ctx, name, ao.openOptions(), func(r *xy7z.Reader) error {
		return fn(r, dst)
	}); err != nil {
		return err
	}

	if err = dst.Close(); err != nil {
		return fmt.Errorf("complete temporary archive error: %w", err)
	}

	if err = os.Rename(dst.Name(), name); err != nil {
		return fmt.Errorf(`replace "%s" error: %w`, name, err)
	}

	return nil
}
