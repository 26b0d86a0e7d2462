package macho

import (
	"encoding/binary"
	"fmt"

	"github.com/appsworld/tbd-macho/internal/buf"
	"github.com/appsworld/tbd-macho/internal/cache"
	"github.com/appsworld/tbd-macho/types"
)

// A LoadCommand is a borrowed view of one load command in a container's cache.
// The embedded header is already in host byte order.
//
// A view is only good while the cache it was taken from lives: Close, MoveFrom,
// CopyFrom or a new Open on the container invalidate it, after which Raw
// returns ErrStaleLoadCommand.
type LoadCommand struct {
	types.LoadCmdHeader
	// Offset is the offset of the command from the start of the load command region.
	Offset uint32

	c   *Container
	gen uint64
}

// Size returns the normalized cmdsize.
func (l LoadCommand) Size() uint32 { return l.Len }

// FileOffset returns the absolute stream offset of the command.
func (l LoadCommand) FileOffset() int64 {
	if l.c == nil {
		return 0
	}
	return l.c.LoadCommandsOffset() + int64(l.Offset)
}

// Valid reports whether the cache the view points into is still alive.
func (l LoadCommand) Valid() bool {
	return l.c != nil && l.c.loadCommands.Present() && l.c.loadCommands.Generation() == l.gen
}

// Raw returns the command's bytes, still in the image's byte order. The slice
// aliases the container's cache and must not be modified.
func (l LoadCommand) Raw() ([]byte, error) {
	if !l.Valid() {
		return nil, ErrStaleLoadCommand
	}
	b, ok := buf.Slice(l.c.loadCommands.Bytes(), l.Offset, l.Len)
	if !ok {
		return nil, ErrStaleLoadCommand
	}
	return b[:len(b):len(b)], nil
}

func (l LoadCommand) String() string {
	return fmt.Sprintf("%s size=%d off=%#x", l.LoadCmd, l.Len, l.Offset)
}

// FindFirstOfLoadCommand returns the first load command whose cmd equals kind.
//
// The three outcomes are: a structural or stream error (err != nil), no such
// command (ok == false), or the command (ok == true). The first call reads
// and validates the whole load command region; later calls only walk the
// cached bytes.
func (c *Container) FindFirstOfLoadCommand(kind types.LoadCmd) (lc LoadCommand, ok bool, err error) {
	if !c.open {
		return LoadCommand{}, false, ErrNotOpen
	}
	return c.findFirst(kind)
}

// FindAllOfLoadCommand returns every load command whose cmd equals kind, in table order.
func (c *Container) FindAllOfLoadCommand(kind types.LoadCmd) ([]LoadCommand, error) {
	if !c.open {
		return nil, ErrNotOpen
	}
	var lcs []LoadCommand
	err := c.walk(func(lc LoadCommand) bool {
		if lc.LoadCmd == kind {
			lcs = append(lcs, lc)
		}
		return true
	})
	return lcs, err
}

// LoadCommands returns every load command in table order.
func (c *Container) LoadCommands() ([]LoadCommand, error) {
	if !c.open {
		return nil, ErrNotOpen
	}
	lcs := make([]LoadCommand, 0, c.Header().NCommands)
	err := c.walk(func(lc LoadCommand) bool {
		lcs = append(lcs, lc)
		return true
	})
	if err != nil {
		return nil, err
	}
	return lcs, nil
}

func (c *Container) findFirst(kind types.LoadCmd) (lc LoadCommand, ok bool, err error) {
	err = c.walk(func(l LoadCommand) bool {
		if l.LoadCmd == kind {
			lc, ok = l, true
			return false
		}
		return true
	})
	if err != nil {
		return LoadCommand{}, false, err
	}
	return lc, ok, nil
}

// walk calls fn for each load command in table order until fn returns false.
func (c *Container) walk(fn func(LoadCommand) bool) error {
	data, err := c.loadCommandRegion()
	if err != nil {
		return err
	}
	o := c.ByteOrder()
	gen := c.loadCommands.Generation()
	ncmds := c.Header().NCommands

	var off uint32
	for i := uint32(0); i < ncmds; i++ {
		hdr := types.ReadLoadCmdHeader(data[off:], o)
		if !fn(LoadCommand{LoadCmdHeader: hdr, Offset: off, c: c, gen: gen}) {
			return nil
		}
		off += hdr.Len
	}
	return nil
}

// loadCommandRegion returns the cached load command bytes, reading and
// validating them first if there is no cache yet. A failed build leaves no cache.
func (c *Container) loadCommandRegion() ([]byte, error) {
	h := c.Header()
	if h.NCommands == 0 || h.SizeCommands < types.LoadCmdHeaderSize {
		return nil, fmt.Errorf("%w: ncmds=%d sizeofcmds=%d", ErrNoLoadCommands, h.NCommands, h.SizeCommands)
	}
	if uint64(h.SizeCommands) < buf.MulUint32(h.NCommands, types.LoadCmdHeaderSize) {
		return nil, formatError(ErrLoadCommandsAreaTooSmall, c.LoadCommandsOffset(),
			fmt.Sprintf("sizeofcmds cannot hold %d load commands", h.NCommands), h.SizeCommands)
	}
	if c.loadCommands.Present() {
		return c.loadCommands.Bytes(), nil
	}

	data, err := cache.Allocate(uint64(h.SizeCommands), c.maxCacheSize())
	if err != nil {
		return nil, fmt.Errorf("%w: load commands: %w", ErrAllocation, err)
	}
	if err := readAt(c.stream, c.LoadCommandsOffset(), data); err != nil {
		return nil, err
	}
	if err := validateLoadCommands(data, h.NCommands, c.ByteOrder()); err != nil {
		if fe, ok := err.(*FormatError); ok {
			fe.Off += c.LoadCommandsOffset()
		}
		c.log().Debug("load commands failed validation", "base", c.base, "err", err)
		return nil, err
	}

	c.loadCommands.Set(data)
	c.log().Debug("cached load commands", "base", c.base, "ncmds", h.NCommands, "sizeofcmds", h.SizeCommands)
	return data, nil
}

// validateLoadCommands checks that ncmds commands tile data exactly: every
// cmdsize is at least a load command header, and the running total reaches
// len(data) at the last command and no earlier. Offsets in returned errors
// are relative to the start of data.
func validateLoadCommands(data []byte, ncmds uint32, o binary.ByteOrder) error {
	total := uint64(len(data))
	var used uint64
	for i := uint32(0); i < ncmds; i++ {
		off := int64(used)
		if used+types.LoadCmdHeaderSize > total {
			return formatError(ErrLoadCommandTooLarge, off, fmt.Sprintf("load command %d header extends past sizeofcmds", i), total)
		}
		hdr := types.ReadLoadCmdHeader(data[used:], o)
		if hdr.Len < types.LoadCmdHeaderSize {
			return formatError(ErrLoadCommandTooSmall, off, fmt.Sprintf("%s (load command %d) size", hdr.LoadCmd, i), hdr.Len)
		}
		used += uint64(hdr.Len)
		if used > total {
			return formatError(ErrLoadCommandTooLarge, off, fmt.Sprintf("%s (load command %d) size", hdr.LoadCmd, i), hdr.Len)
		}
		if i != ncmds-1 && used == total {
			return formatError(ErrLoadCommandTooLarge, off, fmt.Sprintf("%s (load command %d) leaves no room for %d more", hdr.LoadCmd, i, ncmds-1-i), hdr.Len)
		}
	}
	if used != total {
		return formatError(ErrLoadCommandsTrailingData, int64(used), "load commands end before sizeofcmds", total-used)
	}
	return nil
}
