// Package s3stream opens S3 objects as seekable streams and uploads finished archives.
package s3stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ParseURI parses S3 URIs in format s3://bucket/key.
func ParseURI(text string) (bucket, key string, err error) {
	if !IsURI(text) {
		return "", "", fmt.Errorf(`"%s" does not start with s3://`, text)
	}

	bucket, key, _ = strings.Cut(strings.TrimPrefix(text, "s3://"), "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf(`"%s" must have both bucket and key`, text)
	}

	return
}

// IsURI returns true if text starts with s3://.
func IsURI(text string) bool {
	return strings.HasPrefix(text, "s3://")
}

// Client abstracts the S3 APIs that are needed by ReadSeeker.
type Client interface {
	GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// DefaultBufferSize is the default value for Options.BufferSize.
const DefaultBufferSize = 64 * 1024

// Options customises Open.
type Options struct {
	// BufferSize is the minimum size of every ranged GetObject made by Read.
	//
	// Pass zero or a negative value to only fetch what each Read asks for.
	BufferSize int

	// ExpectedBucketOwner is added to every request if not empty.
	ExpectedBucketOwner string
}

var (
	// ErrSeekBeforeFirstByte is returned by Seek when the new offset would be negative.
	ErrSeekBeforeFirstByte = errors.New("seek ends up before first byte")
	// ErrInvalidWhence is returned by Seek for an unknown whence.
	ErrInvalidWhence = errors.New("invalid whence")
)

// ReadSeeker uses ranged GetObject to implement io.ReadSeekCloser and io.ReaderAt.
//
// The size of the object is determined once by Open. ReadSeeker is not safe for concurrent use.
type ReadSeeker struct {
	ctx         context.Context
	client      Client
	bucket, key string
	owner       *string
	off, size   int64
	buf         bytes.Buffer
	bufferSize  int
}

// Open returns a ReadSeeker for the given bucket and key.
//
// ctx is used for every request, including those made by later Read and ReadAt calls.
func Open(ctx context.Context, client Client, bucket, key string, optFns ...func(*Options)) (*ReadSeeker, error) {
	opts := &Options{BufferSize: DefaultBufferSize}
	for _, fn := range optFns {
		fn(opts)
	}

	r := &ReadSeeker{
		ctx:        ctx,
		client:     client,
		bucket:     bucket,
		key:        key,
		bufferSize: opts.BufferSize,
	}
	if opts.ExpectedBucketOwner != "" {
		r.owner = aws.String(opts.ExpectedBucketOwner)
	}

	headObjectOutput, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket:              aws.String(bucket),
		Key:                 aws.String(key),
		ExpectedBucketOwner: r.owner,
	})
	if err != nil {
		return nil, fmt.Errorf(`determine size of "s3://%s/%s" error: %w`, bucket, key, err)
	}
	r.size = aws.ToInt64(headObjectOutput.ContentLength)

	return r, nil
}

// Name returns the S3 URI of the object.
func (r *ReadSeeker) Name() string {
	return fmt.Sprintf("s3://%s/%s", r.bucket, r.key)
}

// Size returns the size of the S3 object.
func (r *ReadSeeker) Size() int64 {
	return r.size
}

// get returns the bytes [start, end] of the object.
func (r *ReadSeeker) get(start, end int64) (io.ReadCloser, error) {
	getObjectOutput, err := r.client.GetObject(r.ctx, &s3.GetObjectInput{
		Bucket:              aws.String(r.bucket),
		Key:                 aws.String(r.key),
		Range:               aws.String(fmt.Sprintf("bytes=%d-%d", start, end)),
		ExpectedBucketOwner: r.owner,
	})
	if err != nil {
		return nil, fmt.Errorf(`get "%s" range %d-%d error: %w`, r.Name(), start, end, err)
	}

	return getObjectOutput.Body, nil
}

func (r *ReadSeeker) Read(p []byte) (n int, err error) {
	m := len(p)
	if m == 0 {
		return 0, nil
	}

	// always uses from buffer if possible.
	if r.buf.Len() >= m {
		n, err = r.buf.Read(p)
		r.off += int64(n)
		return
	}

	rangeStart := r.off + int64(r.buf.Len())
	if rangeStart >= r.size {
		if r.buf.Len() == 0 {
			return 0, io.EOF
		}

		n, err = r.buf.Read(p)
		r.off += int64(n)
		return
	}

	rangeEnd := min(r.size-1, rangeStart+int64(max(m, r.bufferSize))-1)
	body, err := r.get(rangeStart, rangeEnd)
	if err != nil {
		return 0, err
	}

	_, err = r.buf.ReadFrom(body)
	if _ = body.Close(); err != nil {
		return 0, err
	}

	n, err = r.buf.Read(p)
	r.off += int64(n)
	return
}

func (r *ReadSeeker) ReadAt(p []byte, off int64) (n int, err error) {
	if off >= r.size {
		return 0, io.EOF
	}

	m := min(int64(len(p)), r.size-off)
	if m == 0 {
		return 0, nil
	}

	body, err := r.get(off, off+m-1)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	n, err = io.ReadFull(body, p[:m])
	if err == nil && int64(n) < int64(len(p)) {
		err = io.EOF
	}

	return
}

func (r *ReadSeeker) Seek(offset int64, whence int) (int64, error) {
	var off int64
	switch whence {
	case io.SeekStart:
		off = offset
	case io.SeekCurrent:
		off = r.off + offset
	case io.SeekEnd:
		off = r.size + offset
	default:
		return r.off, ErrInvalidWhence
	}

	if off < 0 {
		return r.off, ErrSeekBeforeFirstByte
	}

	if off > r.off && off-r.off <= int64(r.buf.Len()) {
		r.buf.Next(int(off - r.off))
	} else if off != r.off {
		r.buf.Reset()
	}

	r.off = off
	return off, nil
}

// Close releases the read-ahead buffer.
func (r *ReadSeeker) Close() error {
	r.buf = bytes.Buffer{}
	return nil
}
