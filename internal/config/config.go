package config

import (
	"github.com/nguyengg/xy7z/format"
)

// DetectConfig contains format detection settings from the [detect] section.
type DetectConfig struct {
	// TrailingZeroTar defaults to true.
	TrailingZeroTar bool
}

// ForDetect returns configuration for format detection.
func (l *Loader) ForDetect() DetectConfig {
	c := DetectConfig{TrailingZeroTar: true}

	sec, err := l.file().GetSection("detect")
	if err != nil {
		return c
	}

	if sec.HasKey("trailing-zero-tar") {
		c.TrailingZeroTar = sec.Key("trailing-zero-tar").MustBool(true)
	}

	return c
}

// ForDetect calls Loader.ForDetect on the DefaultLoader instance.
func ForDetect() DetectConfig {
	return DefaultLoader.ForDetect()
}

// CompressConfig contains archive creation settings from the [compress] section.
type CompressConfig struct {
	// Format is format.Unknown if not specified.
	Format format.Format
	// Level is -1 if not specified.
	Level  int
	Method string
}

// ForCompress returns configuration for archive creation.
func (l *Loader) ForCompress() CompressConfig {
	c := CompressConfig{Level: -1}

	sec, err := l.file().GetSection("compress")
	if err != nil {
		return c
	}

	if f, ok := format.Parse(sec.Key("format").String()); ok {
		c.Format = f
	}
	if sec.HasKey("level") {
		c.Level = sec.Key("level").RangeInt(-1, 0, 9)
	}
	c.Method = sec.Key("method").String()

	return c
}

// ForCompress calls Loader.ForCompress on the DefaultLoader instance.
func ForCompress() CompressConfig {
	return DefaultLoader.ForCompress()
}

// BucketConfig contains configuration settings for a specific bucket.
type BucketConfig struct {
	Bucket              string
	AWSProfile          string
	ExpectedBucketOwner string
}

// ForBucket returns configuration for a specific bucket from its [s3://bucket] section.
func (l *Loader) ForBucket(bucket string) (c BucketConfig) {
	c.Bucket = bucket

	sec, err := l.file().GetSection("s3://" + bucket)
	if err != nil {
		return c
	}

	c.AWSProfile = sec.Key("aws-profile").String()
	c.ExpectedBucketOwner = sec.Key("expected-bucket-owner").String()

	return
}

// ForBucket calls Loader.ForBucket on the DefaultLoader instance.
func ForBucket(bucket string) (c BucketConfig) {
	return DefaultLoader.ForBucket(bucket)
}
