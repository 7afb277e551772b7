package goarchive

import (
	"archive/zip"
	"errors"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/nguyengg/xy7z/engine"
	"github.com/nwaples/rardecode/v2"
	"github.com/pierrec/lz4/v4"
)

// classify maps the decoding errors of the underlying libraries to an operation result.
func classify(err error) engine.OperationResult {
	switch {
	case errors.Is(err, zip.ErrChecksum),
		errors.Is(err, gzip.ErrChecksum),
		errors.Is(err, zstd.ErrCRCMismatch),
		errors.Is(err, lz4.ErrInvalidFrameChecksum),
		errors.Is(err, lz4.ErrInvalidBlockChecksum),
		errors.Is(err, rardecode.ErrBadFileChecksum):
		return engine.OpCRCError

	case errors.Is(err, zip.ErrAlgorithm):
		return engine.OpUnsupportedMethod

	case errors.Is(err, rardecode.ErrBadPassword),
		errors.Is(err, rardecode.ErrArchivedFileEncrypted):
		return engine.OpWrongPassword

	default:
		return engine.OpDataError
	}
}
