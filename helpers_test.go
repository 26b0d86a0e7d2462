package macho

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/appsworld/tbd-macho/types"
)

// testImage builds a Mach-O image in memory.
type testImage struct {
	order binary.ByteOrder
	is64  bool
	ftype types.HeaderFileType
	cmds  [][]byte

	// overrides for malformed headers
	ncmds      *uint32
	sizeofcmds *uint32
	// bytes appended after the load commands
	trailer []byte
}

func newImage(order binary.ByteOrder, is64 bool, ftype types.HeaderFileType, cmds ...[]byte) *testImage {
	return &testImage{order: order, is64: is64, ftype: ftype, cmds: cmds}
}

func (im *testImage) withCounts(ncmds, sizeofcmds uint32) *testImage {
	im.ncmds, im.sizeofcmds = &ncmds, &sizeofcmds
	return im
}

func (im *testImage) Bytes() []byte {
	var lc bytes.Buffer
	for _, c := range im.cmds {
		lc.Write(c)
	}
	h := types.FileHeader{
		Magic:        types.Magic32,
		CPU:          types.CPU386,
		Type:         im.ftype,
		NCommands:    uint32(len(im.cmds)),
		SizeCommands: uint32(lc.Len()),
	}
	if im.is64 {
		h.Magic, h.CPU = types.Magic64, types.CPUArm64
	}
	if im.ncmds != nil {
		h.NCommands = *im.ncmds
	}
	if im.sizeofcmds != nil {
		h.SizeCommands = *im.sizeofcmds
	}
	hdr := make([]byte, types.FileHeaderSize64)
	n := h.Put(hdr, im.order)

	out := append(hdr[:n:n], lc.Bytes()...)
	return append(out, im.trailer...)
}

// rawCmd encodes a load command of the given declared size. The payload is
// zero filled; a declared size under 8 still writes the 8 byte header.
func rawCmd(o binary.ByteOrder, cmd types.LoadCmd, size uint32) []byte {
	n := size
	if n < types.LoadCmdHeaderSize {
		n = types.LoadCmdHeaderSize
	}
	b := make([]byte, n)
	types.PutLoadCmdHeader(b, o, types.LoadCmdHeader{LoadCmd: cmd, Len: size})
	return b
}

// dylibCmd encodes a dylib_command followed by name, padded to 8 bytes.
func dylibCmd(o binary.ByteOrder, cmd types.LoadCmd, name string, current types.Version) []byte {
	size := uint32(types.DylibCmdSize + len(name) + 1)
	size = (size + 7) &^ 7
	b := make([]byte, size)
	d := types.DylibCmd{LoadCmd: cmd, Len: size, Name: types.DylibCmdSize, Time: 2, CurrentVersion: current, CompatVersion: 0x10000}
	d.Put(b, o)
	copy(b[types.DylibCmdSize:], name)
	return b
}

func symtabCmd(o binary.ByteOrder, symoff, nsyms, stroff, strsize uint32) []byte {
	b := make([]byte, types.SymtabCmdSize)
	s := types.SymtabCmd{LoadCmd: types.LC_SYMTAB, Len: types.SymtabCmdSize, Symoff: symoff, Nsyms: nsyms, Stroff: stroff, Strsize: strsize}
	s.Put(b, o)
	return b
}

var errInjected = errors.New("injected failure")

// countingStream is a Stream that records every Read and Seek and can be told to fail.
type countingStream struct {
	r *bytes.Reader

	reads, seeks int
	failRead     bool
	failSeek     bool
}

func newCountingStream(b []byte) *countingStream {
	return &countingStream{r: bytes.NewReader(b)}
}

func (s *countingStream) Read(p []byte) (int, error) {
	s.reads++
	if s.failRead {
		return 0, errInjected
	}
	return s.r.Read(p)
}

func (s *countingStream) Seek(offset int64, whence int) (int64, error) {
	s.seeks++
	if s.failSeek {
		return 0, errInjected
	}
	return s.r.Seek(offset, whence)
}

func (s *countingStream) reset() { s.reads, s.seeks = 0, 0 }

func (s *countingStream) pos() int64 {
	p, _ := s.r.Seek(0, io.SeekCurrent)
	return p
}

// sharedCounter is a sharedStream over a bytes.Reader that tracks its references.
type sharedCounter struct {
	*bytes.Reader
	refs   int
	closed bool
}

func (s *sharedCounter) Retain() { s.refs++ }

func (s *sharedCounter) Close() error {
	s.refs--
	if s.refs == 0 {
		s.closed = true
	}
	return nil
}
