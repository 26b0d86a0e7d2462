// Package macho opens a single Mach-O image inside a shared byte stream,
// validates its header and load command table, and answers lookups from a
// lazily built cache of the raw load command bytes.
//
// Multi-architecture (fat) files are not unpacked; open the slice window
// directly instead.
package macho

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/appsworld/tbd-macho/internal/cache"
	"github.com/appsworld/tbd-macho/types"
)

// DefaultMaxCacheSize bounds a single cache allocation when Container.MaxCacheSize is zero.
const DefaultMaxCacheSize = 256 << 20

// A ValidationMode selects what an image must be for an open to succeed.
type ValidationMode uint8

const (
	// ValidateImage accepts any single-architecture Mach-O image.
	ValidateImage ValidationMode = iota
	// ValidateLibrary additionally requires an LC_ID_DYLIB command.
	ValidateLibrary
	// ValidateDynamicLibrary additionally requires the MH_DYLIB file type.
	ValidateDynamicLibrary
)

func (m ValidationMode) String() string {
	switch m {
	case ValidateImage:
		return "image"
	case ValidateLibrary:
		return "library"
	case ValidateDynamicLibrary:
		return "dylib"
	}
	return fmt.Sprintf("ValidationMode(%d)", uint8(m))
}

// ParseValidationMode parses the names returned by ValidationMode.String.
// "dynamic-library" is accepted as an alias for "dylib".
func ParseValidationMode(s string) (ValidationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "image":
		return ValidateImage, nil
	case "library", "lib":
		return ValidateLibrary, nil
	case "dylib", "dynamic-library":
		return ValidateDynamicLibrary, nil
	}
	return 0, fmt.Errorf("unknown validation mode %q", s)
}

// A Container is a validated view of one Mach-O image living in the window
// [base, base+size) of a Stream.
//
// A Container is not safe for concurrent use. Containers sharing a Stream
// must not be used from different goroutines without external locking.
//
// The zero value is an empty container; bind it with one of the Open methods.
type Container struct {
	// MaxCacheSize caps every cache allocation. Zero means DefaultMaxCacheSize.
	MaxCacheSize uint64

	stream Stream
	owned  bool
	base   int64
	size   int64
	header types.RawHeader
	open   bool

	loadCommands cache.Buffer
	symbolTable  cache.Buffer
	stringTable  cache.Buffer

	logger *log.Logger
}

// Open binds c to the window of s and validates it as a Mach-O image.
func (c *Container) Open(s Stream, base, size int64) error {
	return c.OpenWithMode(s, base, size, ValidateImage)
}

// OpenFromLibrary is like Open but also requires the image to identify itself as a library.
func (c *Container) OpenFromLibrary(s Stream, base, size int64) error {
	return c.OpenWithMode(s, base, size, ValidateLibrary)
}

// OpenFromDynamicLibrary is like OpenFromLibrary but also requires the MH_DYLIB file type.
func (c *Container) OpenFromDynamicLibrary(s Stream, base, size int64) error {
	return c.OpenWithMode(s, base, size, ValidateDynamicLibrary)
}

// OpenCopy binds c to the same window as other and validates it from scratch.
// Nothing other has already validated or cached is trusted or shared.
func (c *Container) OpenCopy(other *Container) error {
	if other == nil || other.stream == nil {
		return ErrNotOpen
	}
	s, base, size := other.stream, other.base, other.size
	return c.OpenWithMode(s, base, size, ValidateImage)
}

// OpenWithMode binds c to the window of s and validates it according to mode.
//
// On failure c is left bound but not open: every query returns ErrNotOpen and
// the caller should Close and discard it.
func (c *Container) OpenWithMode(s Stream, base, size int64, mode ValidationMode) error {
	if s != nil {
		if ss, ok := s.(sharedStream); ok {
			// retain before releasing, s may be the stream c already holds
			ss.Retain()
			defer ss.Close()
		}
	}
	c.unbind()
	c.bind(s, base, size)

	if err := c.validateAndLoad(mode); err != nil {
		c.releaseCaches()
		c.log().Debug("open failed", "base", base, "size", size, "mode", mode, "err", err)
		return err
	}
	c.open = true
	c.log().Debug("opened image", "base", base, "size", size, "mode", mode, "type", c.Header().Type)
	return nil
}

func (c *Container) bind(s Stream, base, size int64) {
	c.stream, c.base, c.size = s, base, size
	if ss, ok := s.(sharedStream); ok {
		ss.Retain()
		c.owned = true
	}
}

// unbind releases every cache and the stream reference.
func (c *Container) unbind() error {
	c.releaseCaches()
	var err error
	if c.owned {
		err = c.stream.(sharedStream).Close()
	}
	c.stream, c.owned, c.open = nil, false, false
	c.base, c.size = 0, 0
	c.header = types.RawHeader{}
	return err
}

func (c *Container) releaseCaches() {
	released := c.loadCommands.Release()
	released = c.symbolTable.Release() || released
	released = c.stringTable.Release() || released
	if released {
		c.log().Debug("released caches", "base", c.base)
	}
}

func (c *Container) validateAndLoad(mode ValidationMode) error {
	if c.stream == nil {
		return fmt.Errorf("%w: nil stream", ErrInvalidWindow)
	}
	if c.base < 0 || c.size < 0 {
		return fmt.Errorf("%w: base=%d size=%d", ErrInvalidWindow, c.base, c.size)
	}
	if c.size < 4 {
		return formatError(ErrTruncatedHeader, c.base, "window too small for magic", c.size)
	}
	if err := c.readHeader(c.header[:4]); err != nil {
		return err
	}
	if !c.header.IsMachO() {
		if m := types.Magic(binary.BigEndian.Uint32(c.header[:4])); m.IsFat() {
			return formatError(ErrInvalidMagic, c.base, "fat archive, expected a single architecture slice", m)
		}
		return formatError(ErrInvalidMagic, c.base, "invalid magic number", fmt.Sprintf("%#08x", c.header.Magic()))
	}

	hdrSize := int64(c.header.Size())
	if c.size < hdrSize {
		return formatError(ErrTruncatedHeader, c.base, "window too small for header", c.size)
	}
	if err := c.readHeader(c.header[:hdrSize]); err != nil {
		return err
	}

	h := c.header.Normalize()
	if hdrSize+int64(h.SizeCommands) > c.size {
		return formatError(ErrLoadCommandsOutOfBounds, c.base+hdrSize, "sizeofcmds exceeds image size", h.SizeCommands)
	}

	switch mode {
	case ValidateDynamicLibrary:
		if h.Type != types.MH_DYLIB {
			return formatError(ErrNotDynamicLibrary, c.base+12, "unexpected file type", h.Type)
		}
		fallthrough
	case ValidateLibrary:
		return c.checkLibrary()
	case ValidateImage:
		return nil
	}
	return fmt.Errorf("unknown validation mode %d", mode)
}

func (c *Container) readHeader(p []byte) error {
	if err := readAt(c.stream, c.base, p); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: %w", ErrTruncatedHeader, err)
		}
		return err
	}
	return nil
}

// Clone returns a container bound to the same window with the same header.
// The clone starts without caches and rebuilds them from the stream on demand.
func (c *Container) Clone() *Container {
	n := &Container{MaxCacheSize: c.MaxCacheSize, logger: c.logger}
	n.CopyFrom(c)
	return n
}

// CopyFrom makes c a copy of other's window and header. c's caches are
// released and other's are not shared.
func (c *Container) CopyFrom(other *Container) {
	if c == other {
		return
	}
	if ss, ok := other.stream.(sharedStream); ok {
		ss.Retain()
		defer ss.Close()
	}
	c.unbind()
	c.bind(other.stream, other.base, other.size)
	c.header = other.header
	c.open = other.open
}

// MoveFrom transfers other's window, header and caches to c, leaving other
// empty. c's previous caches and stream reference are released first.
func (c *Container) MoveFrom(other *Container) {
	if c == other {
		return
	}
	c.unbind()

	c.stream, c.owned, c.base, c.size = other.stream, other.owned, other.base, other.size
	c.header, c.open = other.header, other.open
	c.loadCommands.Take(&other.loadCommands)
	c.symbolTable.Take(&other.symbolTable)
	c.stringTable.Take(&other.stringTable)

	other.stream, other.owned, other.open = nil, false, false
	other.base, other.size = 0, 0
	other.header = types.RawHeader{}
}

// Close releases c's caches and its reference to the stream. It is safe to
// call Close more than once.
func (c *Container) Close() error {
	return c.unbind()
}

// IsOpen reports whether the last Open call succeeded.
func (c *Container) IsOpen() bool { return c.open }

// Base returns the absolute offset of the image header within the stream.
func (c *Container) Base() int64 { return c.base }

// Size returns the length of the image window.
func (c *Container) Size() int64 { return c.size }

// Stream returns the stream c is bound to.
func (c *Container) Stream() Stream { return c.stream }

// RawHeader returns the header bytes as stored in the image.
func (c *Container) RawHeader() types.RawHeader { return c.header }

// Header returns the header decoded into host byte order.
func (c *Container) Header() types.FileHeader { return c.header.Normalize() }

// IsBigEndian reports whether the image stores its fields big endian.
func (c *Container) IsBigEndian() bool { return c.header.IsBigEndian() }

// Is64Bit reports whether the image uses the 64-bit header layout.
func (c *Container) Is64Bit() bool { return c.header.Is64Bit() }

// ByteOrder returns the byte order of the image's fields.
func (c *Container) ByteOrder() binary.ByteOrder { return c.header.ByteOrder() }

// LoadCommandsOffset returns the absolute stream offset of the first load command.
func (c *Container) LoadCommandsOffset() int64 {
	return c.base + int64(c.header.Size())
}

func (c *Container) maxCacheSize() uint64 {
	if c.MaxCacheSize == 0 {
		return DefaultMaxCacheSize
	}
	return c.MaxCacheSize
}
