package archive

import "errors"

var (
	// ErrBadMagic means the file does not start with the archive
	// signature.
	ErrBadMagic = errors.New("bad archive magic")

	// ErrUnsupportedVersion means the signature matched but the format
	// version is not one this reader understands.
	ErrUnsupportedVersion = errors.New("unsupported archive version")

	// ErrTruncatedArchive means the file ends before the bytes that the
	// header, tables, index, or a block descriptor promise.
	ErrTruncatedArchive = errors.New("truncated archive")

	// ErrCorruptArchive means the structural metadata (tables or index)
	// is internally inconsistent.
	ErrCorruptArchive = errors.New("corrupt archive metadata")

	// ErrCorruptBlock means one block's framing or payload structure is
	// damaged. Other blocks stay readable.
	ErrCorruptBlock = errors.New("corrupt block")

	// ErrDanglingReference means a game references a dedup id outside
	// its table.
	ErrDanglingReference = errors.New("dangling dedup reference")

	// ErrOutOfRange means a game or block index beyond the archive's
	// counts.
	ErrOutOfRange = errors.New("index out of range")

	// ErrBuilderFinished means Add or Finish was called on a builder
	// that already produced its archive.
	ErrBuilderFinished = errors.New("builder already finished")

	// ErrReaderClosed means the reader's mapping was already released.
	ErrReaderClosed = errors.New("reader closed")
)
