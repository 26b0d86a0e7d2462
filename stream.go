package macho

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

// A Stream is the byte source a Container reads from. Several containers may
// share one Stream, each looking at a different window of it, so every read a
// container makes leaves the stream's cursor where it found it.
type Stream interface {
	io.Reader
	io.Seeker
}

// A sharedStream is a Stream with reference counted ownership. Containers
// Retain it on open and Close it when they let go.
type sharedStream interface {
	Stream
	Retain()
	Close() error
}

// SharedFile is a reference counted *os.File. The file is closed when the last
// reference is released.
type SharedFile struct {
	f    *os.File
	refs atomic.Int32
}

// OpenSharedFile opens the named file for reading with a single reference.
func OpenSharedFile(name string) (*SharedFile, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return NewSharedFile(f), nil
}

// NewSharedFile takes ownership of f with a single reference.
func NewSharedFile(f *os.File) *SharedFile {
	s := &SharedFile{f: f}
	s.refs.Store(1)
	return s
}

func (s *SharedFile) Read(p []byte) (int, error) { return s.f.Read(p) }

func (s *SharedFile) Seek(offset int64, whence int) (int64, error) {
	return s.f.Seek(offset, whence)
}

// Name returns the name of the underlying file.
func (s *SharedFile) Name() string { return s.f.Name() }

// Size returns the size of the underlying file.
func (s *SharedFile) Size() (int64, error) {
	fi, err := s.f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Refs returns the number of live references.
func (s *SharedFile) Refs() int32 { return s.refs.Load() }

// Retain adds a reference.
func (s *SharedFile) Retain() { s.refs.Add(1) }

// Close drops a reference and closes the file once none remain.
func (s *SharedFile) Close() error {
	switch n := s.refs.Add(-1); {
	case n == 0:
		return s.f.Close()
	case n < 0:
		s.refs.Store(0)
		return os.ErrClosed
	}
	return nil
}

func position(s Stream) (int64, error) {
	return s.Seek(0, io.SeekCurrent)
}

// readAt fills p from absolute offset off and puts the cursor back where it was.
func readAt(s Stream, off int64, p []byte) error {
	pos, err := position(s)
	if err != nil {
		return fmt.Errorf("%w: failed to get position: %w", ErrStreamSeek, err)
	}
	if _, err := s.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("%w: failed to seek to %#x: %w", ErrStreamSeek, off, err)
	}
	if _, err := io.ReadFull(s, p); err != nil {
		s.Seek(pos, io.SeekStart)
		return fmt.Errorf("%w: failed to read %d bytes at %#x: %w", ErrStreamRead, len(p), off, err)
	}
	if _, err := s.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("%w: failed to restore position %#x: %w", ErrStreamSeek, pos, err)
	}
	return nil
}
