package macho

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appsworld/tbd-macho/types"
)

func TestClassifyMinimalDylib(t *testing.T) {
	tests := []struct {
		name        string
		ftype       types.HeaderFileType
		wantLibrary bool
		wantDylib   bool
	}{
		{"dylib", types.MH_DYLIB, true, true},
		{"executable", types.MH_EXECUTE, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := newImage(le, true, tt.ftype, rawCmd(le, types.LC_ID_DYLIB, types.DylibCmdSize)).Bytes()
			c, _ := openCounting(t, img)

			assert.Equal(t, tt.wantLibrary, c.IsLibrary())
			assert.Equal(t, tt.wantDylib, c.IsDynamicLibrary())
		})
	}
}

func TestClassifyShortIdentification(t *testing.T) {
	img := newImage(be, true, types.MH_DYLIB, rawCmd(be, types.LC_ID_DYLIB, types.DylibCmdSize-8)).Bytes()
	c, _ := openCounting(t, img)

	_, ok, err := c.FindFirstOfLoadCommand(types.LC_ID_DYLIB)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, c.IsLibrary(), "a bare header does not carry dylib identification")
	assert.False(t, c.IsDynamicLibrary())
}

func TestClassifyBrokenTable(t *testing.T) {
	img := newImage(le, true, types.MH_DYLIB,
		rawCmd(le, types.LC_ID_DYLIB, types.DylibCmdSize),
		rawCmd(le, types.LC_UUID, 2),
	).withCounts(2, types.DylibCmdSize+8).Bytes()
	c, _ := openCounting(t, img)

	assert.False(t, c.IsLibrary(), "structural errors read as not a library")
	assert.False(t, c.IsDynamicLibrary())
}

func TestDylibID(t *testing.T) {
	for _, o := range []struct {
		name string
		img  []byte
	}{
		{"little endian", dylibImage(le, true, types.MH_DYLIB)},
		{"big endian", dylibImage(be, false, types.MH_DYLIB)},
	} {
		t.Run(o.name, func(t *testing.T) {
			c, _ := openCounting(t, o.img)

			d, err := c.DylibID()
			require.NoError(t, err)
			assert.Equal(t, "/usr/lib/libfoo.dylib", d.Name)
			assert.Equal(t, types.LC_ID_DYLIB, d.LoadCmd)
			assert.Equal(t, "1.2.3", d.CurrentVersion.String())
			assert.Equal(t, "1.0.0", d.CompatVersion.String())
			assert.Equal(t, "/usr/lib/libfoo.dylib (1.2.3)", d.String())
		})
	}
}

func TestDylibIDErrors(t *testing.T) {
	var closed Container
	_, err := closed.DylibID()
	assert.ErrorIs(t, err, ErrNotOpen)

	exe := newImage(le, true, types.MH_EXECUTE, rawCmd(le, types.LC_SEGMENT_64, 72)).Bytes()
	c, _ := openCounting(t, exe)
	_, err = c.DylibID()
	assert.ErrorIs(t, err, ErrNotLibrary)

	// name offset pointing outside the command
	cmd := dylibCmd(le, types.LC_ID_DYLIB, "/x", 0x10000)
	le.PutUint32(cmd[8:], uint32(len(cmd)))
	bad := newImage(le, true, types.MH_DYLIB, cmd).Bytes()
	c, _ = openCounting(t, bad)
	assert.True(t, c.IsLibrary())
	_, err = c.DylibID()
	assert.ErrorIs(t, err, ErrNotLibrary)
}
