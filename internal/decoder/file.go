package decoder

import (
	"errors"
	"io"
	"os"
)

// file wraps an *os.File and remembers the first non-EOF error, so that a
// failure surfacing through a codec library can still be reported as an I/O
// failure rather than a corrupt stream.
type file struct {
	f      *os.File
	err    error
	closed bool
}

func openFile(path string) (*file, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &file{f: f}, nil
}

func (t *file) note(err error) {
	if err != nil && t.err == nil && !errors.Is(err, io.EOF) {
		t.err = err
	}
}

func (t *file) Read(p []byte) (int, error) {
	n, err := t.f.Read(p)
	t.note(err)
	return n, err
}

func (t *file) ReadAt(p []byte, off int64) (int, error) {
	n, err := t.f.ReadAt(p, off)
	t.note(err)
	return n, err
}

func (t *file) Seek(offset int64, whence int) (int64, error) {
	n, err := t.f.Seek(offset, whence)
	t.note(err)
	return n, err
}

func (t *file) Size() (int64, error) {
	st, err := t.f.Stat()
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

// Close is idempotent; codec libraries close the reader they were given and
// the Decoder closes it again.
func (t *file) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.f.Close()
}

// section exposes the part of a file after a prefix (an ID3v2 tag in front
// of a FLAC stream) as a seekable reader that still closes the file.
type section struct {
	*io.SectionReader
	io.Closer
}

func newSection(f *file, offset int64) (*section, error) {
	size, err := f.Size()
	if err != nil {
		return nil, err
	}
	return &section{
		SectionReader: io.NewSectionReader(f, offset, size-offset),
		Closer:        f,
	}, nil
}
