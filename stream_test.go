package macho

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appsworld/tbd-macho/types"
)

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "image")
	require.NoError(t, os.WriteFile(name, data, 0o644))
	return name
}

func TestSharedFile(t *testing.T) {
	img := dylibImage(le, true, types.MH_DYLIB)
	f, err := OpenSharedFile(writeTemp(t, img))
	require.NoError(t, err)

	size, err := f.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(len(img)), size)
	assert.Equal(t, int32(1), f.Refs())

	var a Container
	require.NoError(t, a.OpenFromDynamicLibrary(f, 0, size))
	b := a.Clone()
	assert.Equal(t, int32(3), f.Refs())

	// the creator lets go; the containers keep the file alive
	require.NoError(t, f.Close())
	assert.True(t, b.IsDynamicLibrary())

	require.NoError(t, a.Close())
	assert.Equal(t, int32(1), f.Refs())
	d, err := b.DylibID()
	require.NoError(t, err)
	assert.Equal(t, "/usr/lib/libfoo.dylib", d.Name)

	require.NoError(t, b.Close())
	assert.Equal(t, int32(0), f.Refs())
	_, err = f.Seek(0, io.SeekStart)
	assert.Error(t, err, "the file is closed with its last reference")
	assert.ErrorIs(t, f.Close(), os.ErrClosed)
}

func TestSiblingContainersShareStream(t *testing.T) {
	lib := dylibImage(le, true, types.MH_DYLIB)
	exe := newImage(be, false, types.MH_EXECUTE,
		rawCmd(be, types.LC_SEGMENT, 56),
		rawCmd(be, types.LC_LOAD_DYLIB, 32),
	).Bytes()
	data := append(append([]byte{}, lib...), exe...)

	f, err := OpenSharedFile(writeTemp(t, data))
	require.NoError(t, err)
	defer f.Close()

	var first, second Container
	require.NoError(t, first.Open(f, 0, int64(len(lib))))
	require.NoError(t, second.Open(f, int64(len(lib)), int64(len(exe))))

	_, err = f.Seek(3, io.SeekStart)
	require.NoError(t, err)

	// interleave lookups; neither container may move the shared cursor
	assert.True(t, first.IsDynamicLibrary())
	lc, ok, err := second.FindFirstOfLoadCommand(types.LC_LOAD_DYLIB)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(len(lib)+types.FileHeaderSize32+56), lc.FileOffset())
	assert.False(t, second.IsLibrary())

	pos, err := f.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pos)

	require.NoError(t, first.Close())
	require.NoError(t, second.Close())
}

func TestOpenSharedFileMissing(t *testing.T) {
	_, err := OpenSharedFile(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
