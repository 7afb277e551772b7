package s3stream

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
)

// testClient implements Client by slicing into its in-memory data.
//
// calls keeps track of GetObject input parameters for asserting.
type testClient struct {
	data  []byte
	calls []s3.GetObjectInput
	owner []string
}

func randomTestClient(n int) *testClient {
	data := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, data); err != nil {
		panic(err)
	}

	return &testClient{data: data}
}

func (c *testClient) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	c.calls = append(c.calls, *input)
	c.owner = append(c.owner, aws.ToString(input.ExpectedBucketOwner))

	rangeBytes := aws.ToString(input.Range)
	values := strings.SplitN(strings.TrimPrefix(rangeBytes, "bytes="), "-", 2)
	if len(values) != 2 {
		return nil, fmt.Errorf("invalid range: %s", rangeBytes)
	}

	i, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid start byte in range `%s`: %w", rangeBytes, err)
	}
	j, err := strconv.ParseInt(values[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid end byte in range `%s`: %w", rangeBytes, err)
	}

	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(c.data[i : j+1])),
	}, nil
}

func (c *testClient) HeadObject(_ context.Context, _ *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(c.data))),
	}, nil
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{name: "ok", text: "s3://bucket/path/to/a.7z", wantBucket: "bucket", wantKey: "path/to/a.7z"},
		{name: "no key", text: "s3://bucket", wantErr: true},
		{name: "empty key", text: "s3://bucket/", wantErr: true},
		{name: "no bucket", text: "s3:///key", wantErr: true},
		{name: "local path", text: "/tmp/a.7z", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, key, err := ParseURI(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestReadSeeker_Read(t *testing.T) {
	tc := randomTestClient(1024)
	r, err := Open(context.Background(), tc, "bucket", "key", func(opts *Options) {
		opts.BufferSize = 200
	})
	assert.NoErrorf(t, err, "Open(...) error = %v", err)
	assert.Equal(t, int64(1024), r.Size())
	assert.Equal(t, "s3://bucket/key", r.Name())

	// the first 100 bytes fetch 200 so the second read is served from the buffer.
	buf := make([]byte, 100)
	assertReadEqual(t, r, buf, tc.data[:100])
	assertReadEqual(t, r, buf, tc.data[100:200])
	assert.Len(t, tc.calls, 1)
	assert.Equal(t, "bytes=0-199", aws.ToString(tc.calls[0].Range))

	// read to the end.
	rest, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, tc.data[200:], rest)

	n, err := r.Read(buf)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 0, n)
}

func TestReadSeeker_Seek(t *testing.T) {
	tc := randomTestClient(1024)
	r, err := Open(context.Background(), tc, "bucket", "key")
	assert.NoError(t, err)

	off, err := r.Seek(-24, io.SeekEnd)
	assert.NoError(t, err)
	assert.Equal(t, int64(1000), off)

	buf := make([]byte, 10)
	assertReadEqual(t, r, buf, tc.data[1000:1010])

	// seeking forward within the buffer does not make another request.
	off, err = r.Seek(4, io.SeekCurrent)
	assert.NoError(t, err)
	assert.Equal(t, int64(1014), off)
	assertReadEqual(t, r, buf, tc.data[1014:1024])
	assert.Len(t, tc.calls, 1)

	// seeking to the end is fine, reading from there is EOF.
	off, err = r.Seek(0, io.SeekEnd)
	assert.NoError(t, err)
	assert.Equal(t, int64(1024), off)
	_, err = r.Read(buf)
	assert.Equal(t, io.EOF, err)

	_, err = r.Seek(-1, io.SeekStart)
	assert.ErrorIs(t, err, ErrSeekBeforeFirstByte)
	_, err = r.Seek(0, 42)
	assert.ErrorIs(t, err, ErrInvalidWhence)

	off, err = r.Seek(0, io.SeekStart)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), off)
	assertReadEqual(t, r, buf, tc.data[:10])
	assert.NoError(t, r.Close())
}

func TestReadSeeker_ReadAt(t *testing.T) {
	tc := randomTestClient(1024)
	r, err := Open(context.Background(), tc, "bucket", "key", func(opts *Options) {
		opts.ExpectedBucketOwner = "123456789012"
	})
	assert.NoError(t, err)

	tests := []struct {
		name    string
		size    int
		off     int64
		wantN   int
		wantErr error
	}{
		{name: "middle", size: 100, off: 42, wantN: 100},
		{name: "tail", size: 100, off: 1000, wantN: 24, wantErr: io.EOF},
		{name: "past end", size: 10, off: 1024, wantN: 0, wantErr: io.EOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, tt.size)
			n, err := r.ReadAt(buf, tt.off)
			assert.Equal(t, tt.wantErr, err)
			assert.Equal(t, tt.wantN, n)
			if n > 0 {
				assert.Equal(t, tc.data[tt.off:tt.off+int64(n)], buf[:n])
			}
		})
	}

	for _, owner := range tc.owner {
		assert.Equal(t, "123456789012", owner)
	}
}

func assertReadEqual(t *testing.T, r io.Reader, buf, expected []byte) {
	n, err := r.Read(buf)
	assert.NoErrorf(t, err, "Read(buf) error = %v", err)
	assert.Equalf(t, len(expected), n, "Read(buf) returned %d bytes; expected %d", n, len(expected))
	assert.Equalf(t, expected, buf[:n], "Read(buf) returned mismatched data")
}
