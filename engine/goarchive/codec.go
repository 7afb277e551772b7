package goarchive

import (
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/mholt/archives"
	"github.com/nguyengg/xy7z/format"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// codec compresses and decompresses a single stream.
type codec interface {
	// NewDecoder creates a decoder to decompress contents from the given io.Reader.
	NewDecoder(src io.Reader) (io.ReadCloser, error)
	// NewEncoder creates an encoder to compress contents to the given io.Writer.
	NewEncoder(dst io.Writer, s settings) (io.WriteCloser, error)
	// Method is the name reported as the item's method.
	Method() string
}

func codecOf(f format.Format) codec {
	switch f {
	case format.GZip:
		return gzipCodec{}
	case format.Zstd:
		return zstdCodec{}
	case format.XZ:
		return xzCodec{}
	case format.BZip2:
		return bz2Codec{}
	case format.Lz4:
		return lz4Codec{}
	default:
		return nil
	}
}

type gzipCodec struct{}

func (gzipCodec) NewDecoder(src io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(src)
}

func (gzipCodec) NewEncoder(dst io.Writer, s settings) (io.WriteCloser, error) {
	level := gzip.BestCompression
	if s.level >= 0 {
		level = min(s.level, gzip.BestCompression)
	}

	return gzip.NewWriterLevel(dst, level)
}

func (gzipCodec) Method() string {
	return "Deflate"
}

type zstdCodec struct{}

func (zstdCodec) NewDecoder(src io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(src)
	if err != nil {
		return nil, err
	}

	return &zstdDecoder{dec}, nil
}

type zstdDecoder struct {
	*zstd.Decoder
}

func (d *zstdDecoder) Close() error {
	d.Decoder.Close()
	return nil
}

func (zstdCodec) NewEncoder(dst io.Writer, s settings) (io.WriteCloser, error) {
	opts := []zstd.EOption{zstd.WithEncoderLevel(zstd.SpeedBestCompression)}
	if s.level >= 0 {
		// 7-Zip levels go up to 9, zstd levels up to 22.
		opts[0] = zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(max(1, s.level*22/9)))
	}
	if s.threads > 0 {
		opts = append(opts, zstd.WithEncoderConcurrency(s.threads))
	}

	return zstd.NewWriter(dst, opts...)
}

func (zstdCodec) Method() string {
	return "ZSTD"
}

type xzCodec struct{}

func (xzCodec) NewDecoder(src io.Reader) (io.ReadCloser, error) {
	r, err := xz.NewReader(src)
	if err != nil {
		return nil, err
	}

	return io.NopCloser(r), nil
}

func (xzCodec) NewEncoder(dst io.Writer, _ settings) (io.WriteCloser, error) {
	return xz.NewWriter(dst)
}

func (xzCodec) Method() string {
	return "LZMA2"
}

type bz2Codec struct{}

func (bz2Codec) NewDecoder(src io.Reader) (io.ReadCloser, error) {
	return archives.Bz2{}.OpenReader(src)
}

func (bz2Codec) NewEncoder(dst io.Writer, s settings) (io.WriteCloser, error) {
	bz := archives.Bz2{CompressionLevel: 9}
	if s.level > 0 {
		bz.CompressionLevel = min(s.level, 9)
	}

	return bz.OpenWriter(dst)
}

func (bz2Codec) Method() string {
	return "BZip2"
}

type lz4Codec struct{}

var lz4Levels = []lz4.CompressionLevel{
	lz4.Fast, lz4.Fast, lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4, lz4.Level5, lz4.Level6, lz4.Level7, lz4.Level9,
}

func (lz4Codec) NewDecoder(src io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(src)), nil
}

func (lz4Codec) NewEncoder(dst io.Writer, s settings) (io.WriteCloser, error) {
	level := lz4.Level9
	if s.level >= 0 {
		level = lz4Levels[min(s.level, 9)]
	}

	opts := []lz4.Option{lz4.CompressionLevelOption(level)}
	if s.threads > 0 {
		opts = append(opts, lz4.ConcurrencyOption(s.threads))
	}

	w := lz4.NewWriter(dst)
	if err := w.Apply(opts...); err != nil {
		return nil, err
	}

	return w, nil
}

func (lz4Codec) Method() string {
	return "LZ4"
}
