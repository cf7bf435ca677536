package decoder

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

var (
	// ErrUnsupportedFormat is returned when neither the file contents nor its
	// extension identify a container/codec this package can decode.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrCorruptStream is returned when decoding produces invalid data.
	ErrCorruptStream = errors.New("corrupt stream")
	// ErrIoFailure is returned when reading the underlying file fails.
	ErrIoFailure = errors.New("i/o failure")
)

func tagged(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrCorruptStream) ||
		errors.Is(err, ErrIoFailure)
}

// classify wraps err with one of the package sentinels. ioErr is the first
// read error observed on the underlying file, if any.
func classify(err, ioErr error, fallback error) error {
	if err == nil || tagged(err) {
		return err
	}
	if ioErr != nil {
		return fmt.Errorf("%w: %w", ErrIoFailure, ioErr)
	}
	var pe *fs.PathError
	var errno syscall.Errno
	if errors.As(err, &pe) || errors.As(err, &errno) {
		return fmt.Errorf("%w: %w", ErrIoFailure, err)
	}
	return fmt.Errorf("%w: %w", fallback, err)
}
