package macho

import (
	"errors"
	"fmt"
)

var (
	ErrNotOpen                 = errors.New("container is not open")
	ErrInvalidWindow           = errors.New("invalid image window")
	ErrInvalidMagic            = errors.New("invalid magic number")
	ErrTruncatedHeader         = errors.New("truncated header")
	ErrLoadCommandsOutOfBounds = errors.New("load commands extend past the image")
	ErrNotLibrary              = errors.New("image is not a library")
	ErrNotDynamicLibrary       = errors.New("image is not a dynamic library")

	ErrNoLoadCommands           = errors.New("image has no load commands")
	ErrLoadCommandsAreaTooSmall = errors.New("load commands area is too small")
	ErrLoadCommandTooSmall      = errors.New("load command is too small")
	ErrLoadCommandTooLarge      = errors.New("load command is too large")
	ErrLoadCommandsTrailingData = errors.New("load commands do not fill sizeofcmds")
	ErrStreamSeek               = errors.New("stream seek error")
	ErrStreamRead               = errors.New("stream read error")
	ErrAllocation               = errors.New("failed to allocate memory")

	ErrStaleLoadCommand       = errors.New("load command view outlived its cache")
	ErrNoSymbolTable          = errors.New("image has no symbol table")
	ErrSymbolTableOutOfBounds = errors.New("symbol table extends past the image")
)

// FormatError is returned by some operations if the data does
// not have the correct format for a Mach-O image.
type FormatError struct {
	Off int64
	Msg string
	Val interface{}
	Err error
}

func (e *FormatError) Error() string {
	msg := e.Msg
	if e.Val != nil {
		msg += fmt.Sprintf(" '%v'", e.Val)
	}
	msg += fmt.Sprintf(" in record at byte %#x", e.Off)
	if e.Err != nil {
		msg = e.Err.Error() + ": " + msg
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

func formatError(err error, off int64, msg string, val interface{}) error {
	return &FormatError{Off: off, Msg: msg, Val: val, Err: err}
}
