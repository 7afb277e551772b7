package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/xy7z"
	"github.com/nguyengg/xy7z/detect"
	"github.com/nguyengg/xy7z/format"
	"github.com/nguyengg/xy7z/internal"
	"github.com/nguyengg/xy7z/internal/config"
	"github.com/nguyengg/xy7z/internal/s3stream"
	"github.com/nguyengg/xy7z/util"
	"github.com/nguyengg/xy7z/variant"
)

type Compress struct {
	Format     string   `short:"f" long:"format" description:"archive format; default to the [compress] config, then the extension of --output, then zip"`
	Level      int      `short:"l" long:"level" description:"compression level from 0 (store) to 9" default:"-1" default-mask:"-"`
	Method     string   `short:"m" long:"method" description:"compression method, e.g. Deflate"`
	Threads    int      `long:"threads" description:"number of threads the engine may use"`
	Set        []string `short:"s" long:"set" description:"extra engine property in name=value form, e.g. mt=off; can be repeated"`
	Password   string   `long:"password" description:"encrypt the archive with this password"`
	VolumeSize string   `short:"v" long:"volume-size" description:"split the archive into volumes of this size, e.g. 100MiB"`
	Output     string   `short:"o" long:"output" description:"the archive to create, or an s3://bucket/key URI; a key ending with / is a prefix"`
	Append     bool     `long:"append" description:"add the files to the existing local archive given by --output"`
	Args       struct {
		Files []flags.Filename `positional-arg-name:"file" description:"the files/directories to be compressed" required:"yes"`
	} `positional-args:"yes"`

	logger *log.Logger
}

func (c *Compress) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	c.logger = internal.NewLogger(0, 1, string(c.Args.Files[0]))
	c.logger.Printf("start compressing %d files", len(c.Args.Files))

	name, err := c.compress(ctx)
	if err != nil {
		c.logger.Printf("compress error: %v", err)
		return err
	}

	c.logger.Printf(`done compressing to "%s"`, name)
	return nil
}

func (c *Compress) compress(ctx context.Context) (string, error) {
	f, err := c.format()
	if err != nil {
		return "", err
	}

	items, err := c.items(ctx)
	if err != nil {
		return "", err
	}

	optFns, err := c.updateOptions()
	if err != nil {
		return "", err
	}

	switch {
	case s3stream.IsURI(c.Output):
		return c.compressToS3(ctx, f, items, optFns)
	case c.Append:
		return c.Output, c.appendTo(ctx, f, items, optFns)
	}

	stem, _ := util.StemAndExt(string(c.Args.Files[0]))
	var dst *os.File
	if c.Output != "" {
		dst, err = os.OpenFile(c.Output, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0666)
	} else {
		dst, err = util.OpenExclFile(".", stem, f.Ext(), 0666)
	}
	if err != nil {
		return "", fmt.Errorf("create archive error: %w", err)
	}

	if err = xy7z.Update(ctx, library, f, dst, items, optFns...); err != nil {
		_, _ = dst.Close(), os.Remove(dst.Name())
		return "", err
	}

	// split archives are written to name.001, name.002, etc. leaving dst empty.
	if c.VolumeSize != "" {
		_, _ = dst.Close(), os.Remove(dst.Name())
		return dst.Name() + ".001", nil
	}

	return dst.Name(), dst.Close()
}

// format returns the archive format from the flag, the config, or the output name in that order.
func (c *Compress) format() (format.Format, error) {
	if c.Format != "" {
		f, ok := format.Parse(c.Format)
		if !ok {
			return format.Unknown, fmt.Errorf(`unknown format "%s"`, c.Format)
		}

		return f, nil
	}

	if f := config.ForCompress().Format; f != format.Unknown {
		return f, nil
	}

	if f, ok := detect.FromName(c.Output); ok {
		return f, nil
	}

	return format.Zip, nil
}

// items walks every file and directory given on the command line.
func (c *Compress) items(ctx context.Context) (items []*xy7z.ArchiveItem, err error) {
	for _, file := range c.Args.Files {
		name := string(file)

		fi, err := os.Stat(name)
		if err != nil {
			return nil, fmt.Errorf(`stat file "%s" error: %w`, name, err)
		}

		if fi.IsDir() {
			children, err := xy7z.WalkItems(ctx, name)
			if err != nil {
				return nil, err
			}

			items = append(items, children...)
			continue
		}

		item, err := xy7z.FileItem(name, filepath.Base(name))
		if err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	return
}

func (c *Compress) updateOptions() ([]func(*xy7z.UpdateOptions), error) {
	cfg := config.ForCompress()

	co := xy7z.CompressionOptions{Level: c.Level, Method: c.Method, Threads: c.Threads}
	if co.Level < 0 {
		co.Level = cfg.Level
	}
	if co.Method == "" {
		co.Method = cfg.Method
	}

	properties := xy7z.CompressionProperties(co)
	extra, err := variant.ParsePropertyList(c.Set)
	if err != nil {
		return nil, err
	}
	for _, p := range extra {
		if err = properties.Add(p.Name, p.Value); err != nil {
			return nil, err
		}
	}

	var volumeSize uint64
	if c.VolumeSize != "" {
		n, err := humanize.ParseBytes(c.VolumeSize)
		if err != nil {
			return nil, fmt.Errorf(`invalid volume size "%s": %w`, c.VolumeSize, err)
		}
		if s3stream.IsURI(c.Output) {
			return nil, fmt.Errorf("cannot split an archive uploaded to S3")
		}

		volumeSize = n
	}

	return []func(*xy7z.UpdateOptions){
		func(opts *xy7z.UpdateOptions) {
			opts.Properties = properties
			opts.Password = c.Password
			opts.VolumeSize = volumeSize
			opts.ProgressReporter = progressReporter(c.logger, "compressed")
			opts.ItemReporter = itemReporter(c.logger)
		},
	}, nil
}

// appendTo rewrites the archive at c.Output with the new items added after the existing ones.
func (c *Compress) appendTo(ctx context.Context, f format.Format, items []*xy7z.ArchiveItem, optFns []func(*xy7z.UpdateOptions)) error {
	if c.Output == "" {
		return fmt.Errorf("--append requires --output")
	}

	return rewrite(ctx, c.Output, ArchiveOptions{Password: c.Password}, func(r *xy7z.Reader, dst *os.File) error {
		if r.Format() != f {
			return fmt.Errorf(`cannot append %s items to "%s" which is %s`, f, c.Output, r.Format())
		}

		return xy7z.Update(ctx, library, f, dst, items, append(optFns, xy7z.AppendTo(r))...)
	})
}

// compressToS3 creates the archive in a temporary file then uploads it.
func (c *Compress) compressToS3(ctx context.Context, f format.Format, items []*xy7z.ArchiveItem, optFns []func(*xy7z.UpdateOptions)) (string, error) {
	if c.Append {
		return "", fmt.Errorf("cannot append to an archive in S3")
	}

	bucket, key, err := s3stream.ParseURI(c.Output)
	if err != nil {
		return "", err
	}

	client, err := config.NewS3ClientForBucket(ctx, bucket)
	if err != nil {
		return "", fmt.Errorf(`create S3 client for bucket "%s" error: %w`, bucket, err)
	}

	if strings.HasSuffix(key, "/") {
		stem, _ := util.StemAndExt(string(c.Args.Files[0]))
		owner := config.ForBucket(bucket).ExpectedBucketOwner
		if key, err = util.FindUnusedS3Key(ctx, client, bucket, key, stem, f.Ext(), func(input *s3.HeadObjectInput) {
			if owner != "" {
				input.ExpectedBucketOwner = &owner
			}
		}); err != nil {
			return "", err
		}
	}

	dst, err := os.CreateTemp("", "*"+path.Ext(key))
	if err != nil {
		return "", fmt.Errorf("create temporary archive error: %w", err)
	}
	defer func() {
		_, _ = dst.Close(), os.Remove(dst.Name())
	}()

	if err = xy7z.Update(ctx, library, f, dst, items, optFns...); err != nil {
		return "", err
	}
	if err = dst.Close(); err != nil {
		return "", fmt.Errorf("complete temporary archive error: %w", err)
	}

	if err = s3stream.Upload(ctx, client, dst.Name(), bucket, key, c.logger, func(u *manager.Uploader) {
		u.Concurrency = max(c.Threads, manager.DefaultUploadConcurrency)
	}); err != nil {
		return "", err
	}

	return fmt.Sprintf("s3://%s/%s", bucket, key), nil
}
