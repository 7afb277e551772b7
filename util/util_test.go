package util

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
)

func TestStemAndExt(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		wantStem string
		wantExt  string
	}{
		{
			name:     "test.txt",
			path:     "C:\\Users\\test.txt",
			wantStem: "test",
			wantExt:  ".txt",
		},
		{
			name:     "test.tar.gz",
			path:     "/path/to/test.tar.gz",
			wantStem: "test",
			wantExt:  ".tar.gz",
		},
		{
			name:     "split volume",
			path:     "/path/to/backup.7z.001",
			wantStem: "backup",
			wantExt:  ".7z.001",
		},
		{
			name:     "test.jfif-tbnl",
			path:     "/path/to/test.jfif-tbnl",
			wantStem: "test.jfif-tbnl",
			wantExt:  "",
		},
		{
			name:     "ab via filepath.Base",
			path:     "ab",
			wantStem: "ab",
			wantExt:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotStem, gotExt := StemAndExt(tt.path)
			assert.Equalf(t, tt.wantStem, gotStem, "StemAndExt() gotStem = %v, want %v", gotStem, tt.wantStem)
			assert.Equalf(t, tt.wantExt, gotExt, "StemAndExt() gotExt = %v, want %v", gotExt, tt.wantExt)
		})
	}
}

func TestResetOnCloseReadSeeker(t *testing.T) {
	src := bytes.NewReader([]byte("hello, world!"))
	_, _ = src.Seek(7, io.SeekStart)

	r := ResetOnCloseReadSeeker(src)
	data, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, "world!", string(data))

	assert.NoError(t, r.Close())

	pos, _ := src.Seek(0, io.SeekCurrent)
	assert.Equal(t, int64(7), pos)
}

func TestChainCloser(t *testing.T) {
	var calls []int
	first := errors.New("first")
	fn := ChainCloser(
		func() error { calls = append(calls, 1); return nil },
		func() error { calls = append(calls, 2); return first },
		func() error { calls = append(calls, 3); return errors.New("third") })

	assert.ErrorIs(t, fn(), first)
	assert.Equal(t, []int{1, 2, 3}, calls)
}

func TestOpenExclFile(t *testing.T) {
	dir, err := os.MkdirTemp("", "*")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	var names []string
	for range 3 {
		f, err := OpenExclFile(dir, "archive", ".tar.gz", 0666)
		assert.NoErrorf(t, err, "OpenExclFile() error = %v", err)
		names = append(names, filepath.Base(f.Name()))
		_ = f.Close()
	}

	assert.Equal(t, []string{"archive.tar.gz", "archive-1.tar.gz", "archive-2.tar.gz"}, names)

	name, err := MkExclDir(dir, "archive", 0755)
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "archive"), name)
}

func TestTruncateRightWithSuffix(t *testing.T) {
	assert.Equal(t, "hello", TruncateRightWithSuffix("hello", 10, "..."))
	assert.Equal(t, "hel...", TruncateRightWithSuffix("hello", 3, "..."))
	assert.Equal(t, "...", TruncateRightWithSuffix("hello", 0, "..."))
}

// headObjectClient reports every key in keys as existing.
type headObjectClient struct {
	keys map[string]bool
}

func (c headObjectClient) HeadObject(_ context.Context, input *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if c.keys[aws.ToString(input.Key)] {
		return &s3.HeadObjectOutput{}, nil
	}

	return nil, &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusNotFound}},
			Err:      errors.New("not found"),
		},
	}
}

func TestFindUnusedS3Key(t *testing.T) {
	client := headObjectClient{keys: map[string]bool{
		"backups/data.7z":   true,
		"backups/data-1.7z": true,
	}}

	got, err := FindUnusedS3Key(context.Background(), client, "bucket", "backups/", "data", ".7z")
	assert.NoErrorf(t, err, "FindUnusedS3Key() error = %v", err)
	assert.Equal(t, "backups/data-2.7z", got)
}
