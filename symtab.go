package macho

import (
	"fmt"

	"github.com/appsworld/tbd-macho/internal/buf"
	"github.com/appsworld/tbd-macho/internal/cache"
	"github.com/appsworld/tbd-macho/types"
)

// SymbolTableCache returns the cached raw nlist entries, or nil. The slice is
// owned by c and must not be kept past the next change to the cache.
func (c *Container) SymbolTableCache() []byte { return c.symbolTable.Bytes() }

// StringTableCache returns the cached raw string table, or nil. The slice is
// owned by c and must not be kept past the next change to the cache.
func (c *Container) StringTableCache() []byte { return c.stringTable.Bytes() }

// SetSymbolTableCache releases the current symbol table cache and takes ownership of b.
func (c *Container) SetSymbolTableCache(b []byte) { c.symbolTable.Set(b) }

// SetStringTableCache releases the current string table cache and takes ownership of b.
func (c *Container) SetStringTableCache(b []byte) { c.stringTable.Set(b) }

// LoadSymbolTables reads the regions named by LC_SYMTAB into the symbol and
// string table caches. Entries are not decoded. Either both caches are
// replaced or neither is.
func (c *Container) LoadSymbolTables() error {
	if !c.open {
		return ErrNotOpen
	}
	lc, ok, err := c.findFirst(types.LC_SYMTAB)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoSymbolTable
	}
	if lc.Len < types.SymtabCmdSize {
		return formatError(ErrLoadCommandTooSmall, lc.FileOffset(), "LC_SYMTAB size", lc.Len)
	}
	raw, err := lc.Raw()
	if err != nil {
		return err
	}
	st := types.ReadSymtabCmd(raw, c.ByteOrder())

	entSize := uint32(types.Nlist32Size)
	if c.Is64Bit() {
		entSize = types.Nlist64Size
	}
	symSize := buf.MulUint32(st.Nsyms, entSize)

	syms, err := c.readTable("symbol table", int64(st.Symoff), symSize)
	if err != nil {
		return err
	}
	strs, err := c.readTable("string table", int64(st.Stroff), uint64(st.Strsize))
	if err != nil {
		return err
	}

	c.symbolTable.Set(syms)
	c.stringTable.Set(strs)
	c.log().Debug("cached symbol tables", "base", c.base, "nsyms", st.Nsyms, "strsize", st.Strsize)
	return nil
}

// readTable reads n bytes at offset off of the image window.
func (c *Container) readTable(what string, off int64, n uint64) ([]byte, error) {
	if _, err := buf.CheckRange(c.size, off, int64(n)); err != nil {
		return nil, formatError(ErrSymbolTableOutOfBounds, c.base+off, what+" "+err.Error(), n)
	}
	data, err := cache.Allocate(n, c.maxCacheSize())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAllocation, what, err)
	}
	if err := readAt(c.stream, c.base+off, data); err != nil {
		return nil, err
	}
	return data, nil
}
