package s3stream

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
)

// Upload uploads the named file to bucket and key with manager.Uploader.
//
// Every successfully uploaded part of a multipart upload is logged with logger.
func Upload(ctx context.Context, client manager.UploadAPIClient, name, bucket, key string, logger *log.Logger, optFns ...func(*manager.Uploader)) error {
	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf(`open file "%s" error: %w`, name, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf(`stat file "%s" error: %w`, name, err)
	}

	uploader := manager.NewUploader(client, optFns...)
	partCount := int32(max(1, (fi.Size()+uploader.PartSize-1)/uploader.PartSize))
	uploader.S3 = &partLoggingClient{UploadAPIClient: uploader.S3, logger: logger, partCount: partCount}

	logger.Printf(`uploading %s to "s3://%s/%s"`, humanize.IBytes(uint64(fi.Size())), bucket, key)

	if _, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	}); err != nil {
		return fmt.Errorf(`upload to "s3://%s/%s" error: %w`, bucket, key, err)
	}

	return nil
}

// partLoggingClient logs a running tally of the successfully uploaded parts.
//
// UploadPart may be called from any of the goroutines that upload parts in parallel.
type partLoggingClient struct {
	manager.UploadAPIClient
	logger    *log.Logger
	partCount int32
	n         atomic.Int32
}

func (c *partLoggingClient) UploadPart(ctx context.Context, input *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	output, err := c.UploadAPIClient.UploadPart(ctx, input, optFns...)
	if err == nil {
		if v := c.n.Add(1); v >= c.partCount {
			c.logger.Printf("uploaded %d/%d parts", v, c.partCount)
		} else {
			c.logger.Printf("uploaded %d/%d parts so far", v, c.partCount)
		}
	}

	return output, err
}
