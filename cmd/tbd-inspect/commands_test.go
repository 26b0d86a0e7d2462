package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeDylib writes a little-endian 64-bit MH_DYLIB with a single LC_ID_DYLIB,
// preceded by pad bytes of filler.
func writeDylib(t *testing.T, pad int, ftype uint32) string {
	t.Helper()
	le := binary.LittleEndian
	name := "/usr/lib/libx.dylib"

	cmd := make([]byte, 48)
	le.PutUint32(cmd[0:], 0xd)
	le.PutUint32(cmd[4:], uint32(len(cmd)))
	le.PutUint32(cmd[8:], 24)
	le.PutUint32(cmd[12:], 2)
	le.PutUint32(cmd[16:], 0x10203)
	le.PutUint32(cmd[20:], 0x10000)
	copy(cmd[24:], name)

	hdr := make([]byte, 32)
	le.PutUint32(hdr[0:], 0xfeedfacf)
	le.PutUint32(hdr[4:], 0x0100000c)
	le.PutUint32(hdr[12:], ftype)
	le.PutUint32(hdr[16:], 1)
	le.PutUint32(hdr[20:], uint32(len(cmd)))

	var b bytes.Buffer
	b.Write(bytes.Repeat([]byte{0xee}, pad))
	b.Write(hdr)
	b.Write(cmd)

	file := filepath.Join(t.TempDir(), "libx.dylib")
	require.NoError(t, os.WriteFile(file, b.Bytes(), 0o644))
	return file
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestHeader(t *testing.T) {
	out, err := run(t, "header", writeDylib(t, 0, 6))
	require.NoError(t, err)
	assert.Contains(t, out, "64-bit MachO")
	assert.Contains(t, out, "DYLIB")
	assert.Contains(t, out, "Commands      = 1 (Size: 48)")
	assert.Contains(t, out, "Endian        = little")
}

func TestWindowFlags(t *testing.T) {
	file := writeDylib(t, 64, 6)

	_, err := run(t, "header", file)
	assert.Error(t, err, "filler is not a Mach-O magic")

	out, err := run(t, "--base", "64", "find", file, "LC_ID_DYLIB")
	require.NoError(t, err)
	assert.Equal(t, "LC_ID_DYLIB size=48 off=0x0 file_off=0x60\n", out)

	t.Setenv("TBD_WINDOW_BASE", "64")
	out, err = run(t, "find", file, "0xd")
	require.NoError(t, err)
	assert.Contains(t, out, "file_off=0x60")
}

func TestValidate(t *testing.T) {
	dylib := writeDylib(t, 0, 6)
	bundle := writeDylib(t, 0, 8)

	out, err := run(t, "validate", dylib, "--mode", "dylib")
	require.NoError(t, err)
	assert.Equal(t, dylib+": ok (dylib)\n", out)

	_, err = run(t, "validate", bundle, "--mode", "dylib")
	assert.ErrorContains(t, err, "not a dynamic library")

	out, err = run(t, "validate", bundle, "--mode", "library")
	require.NoError(t, err)
	assert.Contains(t, out, "ok (library)")

	_, err = run(t, "validate", dylib, "--mode", "fat")
	assert.Error(t, err)
}

func TestFindNotFound(t *testing.T) {
	out, err := run(t, "find", writeDylib(t, 0, 6), "LC_SYMTAB")
	require.NoError(t, err)
	assert.Equal(t, "LC_SYMTAB: not found\n", out)

	_, err = run(t, "find", writeDylib(t, 0, 6), "LC_BOGUS")
	assert.Error(t, err)
}

func TestListAndClassify(t *testing.T) {
	file := writeDylib(t, 0, 6)

	out, err := run(t, "list", file)
	require.NoError(t, err)
	assert.Equal(t, "  0 LC_ID_DYLIB size=48 off=0x0\n", out)

	out, err = run(t, "classify", file)
	require.NoError(t, err)
	assert.Contains(t, out, "library:         true")
	assert.Contains(t, out, "dynamic library: true")
	assert.Contains(t, out, "id:              /usr/lib/libx.dylib (1.2.3)")
}

func TestMaxCacheSize(t *testing.T) {
	_, err := run(t, "--max-cache-size", "16", "list", writeDylib(t, 0, 6))
	assert.ErrorContains(t, err, "allocat")
}
