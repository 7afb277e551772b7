package cmd

import (
	"context"
	"fmt"
	"path"

	"github.com/nguyengg/xy7z"
	"github.com/nguyengg/xy7z/detect"
	"github.com/nguyengg/xy7z/engine"
	"github.com/nguyengg/xy7z/engine/goarchive"
	"github.com/nguyengg/xy7z/internal/config"
	"github.com/nguyengg/xy7z/internal/s3stream"
	"github.com/nguyengg/xy7z/util"
)

// library is the engine used by every command.
var library engine.Library = goarchive.New()

// ArchiveOptions are the options shared by every command that opens an archive.
type ArchiveOptions struct {
	Password string `long:"password" description:"password of encrypted archives"`
}

func (o ArchiveOptions) openOptions() []func(*xy7z.OpenOptions) {
	optFns := []func(*xy7z.OpenOptions){
		func(opts *xy7z.OpenOptions) {
			opts.DetectOptions = append(opts.DetectOptions, detectOptions)
		},
	}
	if o.Password != "" {
		optFns = append(optFns, xy7z.WithPassword(o.Password))
	}

	return optFns
}

// detectOptions applies the [detect] section of the configuration file.
func detectOptions(opts *detect.Options) {
	opts.TrailingZeroTar = config.ForDetect().TrailingZeroTar
}

// openArchive opens a local file or an s3://bucket/key URI.
//
// The returned Reader must be closed with the returned function rather than Reader.Close.
func openArchive(ctx context.Context, name string, optFns ...func(*xy7z.OpenOptions)) (*xy7z.Reader, func() error, error) {
	if !s3stream.IsURI(name) {
		r, err := xy7z.OpenFile(ctx, library, name, optFns...)
		if err != nil {
			return nil, nil, err
		}

		return r, r.Close, nil
	}

	src, err := openS3(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	r, err := xy7z.Open(ctx, library, src, append([]func(*xy7z.OpenOptions){func(opts *xy7z.OpenOptions) {
		opts.Name = path.Base(name)
	}}, optFns...)...)
	if err != nil {
		_ = src.Close()
		return nil, nil, err
	}

	return r, util.ChainCloser(r.Close, src.Close), nil
}

// openS3 opens the S3 object with the client and settings of its bucket.
func openS3(ctx context.Context, uri string) (*s3stream.ReadSeeker, error) {
	bucket, key, err := s3stream.ParseURI(uri)
	if err != nil {
		return nil, err
	}

	client, err := config.NewS3ClientForBucket(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf(`create S3 client for bucket "%s" error: %w`, bucket, err)
	}

	return s3stream.Open(ctx, client, bucket, key, func(opts *s3stream.Options) {
		opts.ExpectedBucketOwner = config.ForBucket(bucket).ExpectedBucketOwner
	})
}
