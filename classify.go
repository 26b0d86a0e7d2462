package macho

import (
	"bytes"
	"fmt"

	"github.com/appsworld/tbd-macho/types"
)

// IsLibrary reports whether the image carries an LC_ID_DYLIB command large
// enough to hold a dylib_command. Lookup errors read as false.
func (c *Container) IsLibrary() bool {
	if !c.open {
		return false
	}
	lc, ok, err := c.findFirst(types.LC_ID_DYLIB)
	if err != nil || !ok {
		return false
	}
	return lc.Len >= types.DylibCmdSize
}

// IsDynamicLibrary reports whether the image has the MH_DYLIB file type and
// also passes IsLibrary.
func (c *Container) IsDynamicLibrary() bool {
	if !c.open || c.Header().Type != types.MH_DYLIB {
		return false
	}
	return c.IsLibrary()
}

func (c *Container) checkLibrary() error {
	lc, ok, err := c.findFirst(types.LC_ID_DYLIB)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: no %s command", ErrNotLibrary, types.LC_ID_DYLIB)
	}
	if lc.Len < types.DylibCmdSize {
		return formatError(ErrNotLibrary, lc.FileOffset(), "LC_ID_DYLIB too small", lc.Len)
	}
	return nil
}

// A Dylib is the identification of a dynamic library.
type Dylib struct {
	types.DylibCmd
	Name string
}

func (d *Dylib) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, d.CurrentVersion)
}

// DylibID decodes the image's LC_ID_DYLIB command. It returns ErrNotLibrary
// when the image does not identify itself as a library.
func (c *Container) DylibID() (*Dylib, error) {
	if !c.open {
		return nil, ErrNotOpen
	}
	if err := c.checkLibrary(); err != nil {
		return nil, err
	}
	lc, _, _ := c.findFirst(types.LC_ID_DYLIB)
	raw, err := lc.Raw()
	if err != nil {
		return nil, err
	}

	d := &Dylib{DylibCmd: types.ReadDylibCmd(raw, c.ByteOrder())}
	if d.DylibCmd.Name < types.DylibCmdSize || d.DylibCmd.Name >= lc.Len {
		return nil, formatError(ErrNotLibrary, lc.FileOffset()+8, "install name offset out of range", d.DylibCmd.Name)
	}
	d.Name = cstring(raw[d.DylibCmd.Name:])
	return d, nil
}

func cstring(b []byte) string {
	i := bytes.IndexByte(b, 0)
	if i == -1 {
		i = len(b)
	}
	return string(b[0:i])
}
