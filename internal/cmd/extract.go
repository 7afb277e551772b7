package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/xy7z"
	"github.com/nguyengg/xy7z/internal"
	"github.com/nguyengg/xy7z/util"
)

type Extract struct {
	ArchiveOptions
	Output string `short:"o" long:"output" description:"directory to extract into; default to a new directory named after each archive"`
	Args   struct {
		Files []flags.Filename `positional-arg-name:"file" description:"local files or s3://bucket/key URIs" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Extract) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	if c.Output != "" {
		if err := os.MkdirAll(c.Output, 0755); err != nil {
			return fmt.Errorf(`create output directory "%s" error: %w`, c.Output, err)
		}
	}

	success := 0
	n := len(c.Args.Files)
	for i, file := range c.Args.Files {
		logger := internal.NewLogger(i, n, string(file))
		logger.Printf("start extracting")

		err := forEachArchive(ctx, string(file), c.openOptions(), func(r *xy7z.Reader) error {
			dir, err := c.outputDir(string(file))
			if err != nil {
				return err
			}

			logger.Printf(`extracting to "%s"`, dir)
			return r.Extract(ctx, dir, nil, func(opts *xy7z.ExtractOptions) {
				opts.ProgressReporter = progressReporter(logger, "extracted")
				opts.ItemReporter = itemReporter(logger)
			})
		})
		if err == nil {
			logger.Printf("done extracting")
			success++
			continue
		}

		if errors.Is(err, context.Canceled) {
			break
		}

		logger.Printf("extract error: %v", err)
	}

	log.Printf("successfully extracted %d/%d files", success, n)
	return nil
}

// outputDir returns c.Output, or creates a new directory named after the archive in the working directory.
func (c *Extract) outputDir(name string) (string, error) {
	if c.Output != "" {
		return c.Output, nil
	}

	stem, _ := util.StemAndExt(path.Base(filepath.ToSlash(name)))
	return util.MkExclDir(".", stem, 0755)
}

type Test struct {
	ArchiveOptions
	Args struct {
		Files []flags.Filename `positional-arg-name:"file" description:"local files or s3://bucket/key URIs" required:"yes"`
	} `positional-args:"yes"`
}

func (c *Test) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	success := 0
	n := len(c.Args.Files)
	for i, file := range c.Args.Files {
		logger := internal.NewLogger(i, n, string(file))

		err := forEachArchive(ctx, string(file), c.openOptions(), func(r *xy7z.Reader) error {
			return r.Test(ctx, nil, func(opts *xy7z.ExtractOptions) {
				opts.ProgressReporter = progressReporter(logger, "tested")
				opts.ItemReporter = itemReporter(logger)
			})
		})
		if err == nil {
			logger.Printf("everything is ok")
			success++
			continue
		}

		if errors.Is(err, context.Canceled) {
			break
		}

		logger.Printf("test error: %v", err)
	}

	log.Printf("successfully tested %d/%d files", success, n)
	return nil
}

// forEachArchive opens the named archive, calls fn, then closes the archive.
func forEachArchive(ctx context.Context, name string, optFns []func(*xy7z.OpenOptions), fn func(r *xy7z.Reader) error) (err error) {
	r, closer, err := openArchive(ctx, name, optFns...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closer(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(r)
}
