package types

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// A FileHeader represents a Mach-O file header with every field in host order.
type FileHeader struct {
	Magic        Magic
	CPU          CPU
	SubCPU       CPUSubtype
	Type         HeaderFileType
	NCommands    uint32
	SizeCommands uint32
	Flags        HeaderFlag
	Reserved     uint32
}

const (
	FileHeaderSize32 = 7 * 4
	FileHeaderSize64 = 8 * 4
)

// RawHeader holds the header exactly as it is stored in the image.
// A 32-bit header only uses the first FileHeaderSize32 bytes.
type RawHeader [FileHeaderSize64]byte

// Magic returns the raw magic as it would be read on a little endian host.
// Use ByteOrder to interpret the remaining fields.
func (r *RawHeader) Magic() Magic {
	return Magic(binary.LittleEndian.Uint32(r[0:4]))
}

// IsBigEndian reports whether the image stores its fields in big endian order.
func (r *RawHeader) IsBigEndian() bool {
	m := Magic(binary.BigEndian.Uint32(r[0:4]))
	return m == Magic32 || m == Magic64
}

// Is64Bit reports whether the image uses the 64-bit header layout.
func (r *RawHeader) Is64Bit() bool {
	return r.Magic() == Magic64 || r.Magic() == Cigam64
}

// IsMachO reports whether the raw magic is one of the four single-architecture values.
func (r *RawHeader) IsMachO() bool {
	switch r.Magic() {
	case Magic32, Magic64, Cigam32, Cigam64:
		return true
	}
	return false
}

// ByteOrder returns the byte order the image's fields are stored in.
func (r *RawHeader) ByteOrder() binary.ByteOrder {
	if r.IsBigEndian() {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Size returns the on-disk size of the header for this bit width.
func (r *RawHeader) Size() uint32 {
	if r.Is64Bit() {
		return FileHeaderSize64
	}
	return FileHeaderSize32
}

// Normalize decodes the raw header into host order. The receiver is left untouched.
func (r *RawHeader) Normalize() FileHeader {
	o := r.ByteOrder()
	h := FileHeader{
		Magic:        Magic(o.Uint32(r[0:])),
		CPU:          CPU(o.Uint32(r[4:])),
		SubCPU:       CPUSubtype(o.Uint32(r[8:])),
		Type:         HeaderFileType(o.Uint32(r[12:])),
		NCommands:    o.Uint32(r[16:]),
		SizeCommands: o.Uint32(r[20:]),
		Flags:        HeaderFlag(o.Uint32(r[24:])),
	}
	if r.Is64Bit() {
		h.Reserved = o.Uint32(r[28:])
	}
	return h
}

// Put writes the header to b using byte order o and returns the number of bytes written.
func (h *FileHeader) Put(b []byte, o binary.ByteOrder) int {
	o.PutUint32(b[0:], uint32(h.Magic))
	o.PutUint32(b[4:], uint32(h.CPU))
	o.PutUint32(b[8:], uint32(h.SubCPU))
	o.PutUint32(b[12:], uint32(h.Type))
	o.PutUint32(b[16:], h.NCommands)
	o.PutUint32(b[20:], h.SizeCommands)
	o.PutUint32(b[24:], uint32(h.Flags))
	if h.Magic == Magic32 {
		return FileHeaderSize32
	}
	o.PutUint32(b[28:], h.Reserved)
	return FileHeaderSize64
}

type Magic uint32

const (
	Magic32  Magic = 0xfeedface
	Magic64  Magic = 0xfeedfacf
	Cigam32  Magic = 0xcefaedfe
	Cigam64  Magic = 0xcffaedfe
	MagicFat Magic = 0xcafebabe
	CigamFat Magic = 0xbebafeca
)

var magicStrings = []intName{
	{uint32(Magic32), "32-bit MachO"},
	{uint32(Magic64), "64-bit MachO"},
	{uint32(Cigam32), "32-bit MachO (swapped)"},
	{uint32(Cigam64), "64-bit MachO (swapped)"},
	{uint32(MagicFat), "Fat MachO"},
	{uint32(CigamFat), "Fat MachO (swapped)"},
}

func (i Magic) Int() uint32      { return uint32(i) }
func (i Magic) String() string   { return stringName(uint32(i), magicStrings, false) }
func (i Magic) GoString() string { return stringName(uint32(i), magicStrings, true) }

// IsFat reports whether the magic belongs to a universal archive rather than a single image.
func (i Magic) IsFat() bool { return i == MagicFat || i == CigamFat }

// A HeaderFileType is the Mach-O file type, e.g. an object file, executable, or dynamic library.
type HeaderFileType uint32

const (
	MH_OBJECT      HeaderFileType = 0x1 /* relocatable object file */
	MH_EXECUTE     HeaderFileType = 0x2 /* demand paged executable file */
	MH_FVMLIB      HeaderFileType = 0x3 /* fixed VM shared library file */
	MH_CORE        HeaderFileType = 0x4 /* core file */
	MH_PRELOAD     HeaderFileType = 0x5 /* preloaded executable file */
	MH_DYLIB       HeaderFileType = 0x6 /* dynamically bound shared library */
	MH_DYLINKER    HeaderFileType = 0x7 /* dynamic link editor */
	MH_BUNDLE      HeaderFileType = 0x8 /* dynamically bound bundle file */
	MH_DYLIB_STUB  HeaderFileType = 0x9 /* shared library stub for static linking only, no section contents */
	MH_DSYM        HeaderFileType = 0xa /* companion file with only debug sections */
	MH_KEXT_BUNDLE HeaderFileType = 0xb /* x86_64 kexts */
	MH_FILESET     HeaderFileType = 0xc /* a file composed of other Mach-Os to be run in the same userspace sharing a single linkedit. */
)

var fileTypeStrings = []intName{
	{uint32(MH_OBJECT), "OBJECT"},
	{uint32(MH_EXECUTE), "EXECUTE"},
	{uint32(MH_FVMLIB), "FVMLIB"},
	{uint32(MH_CORE), "CORE"},
	{uint32(MH_PRELOAD), "PRELOAD"},
	{uint32(MH_DYLIB), "DYLIB"},
	{uint32(MH_DYLINKER), "DYLINKER"},
	{uint32(MH_BUNDLE), "BUNDLE"},
	{uint32(MH_DYLIB_STUB), "DYLIB_STUB"},
	{uint32(MH_DSYM), "DSYM"},
	{uint32(MH_KEXT_BUNDLE), "KEXT_BUNDLE"},
	{uint32(MH_FILESET), "FILESET"},
}

func (t HeaderFileType) String() string   { return stringName(uint32(t), fileTypeStrings, false) }
func (t HeaderFileType) GoString() string { return stringName(uint32(t), fileTypeStrings, true) }

type HeaderFlag uint32

const (
	None                  HeaderFlag = 0x0
	NoUndefs              HeaderFlag = 0x1
	IncrLink              HeaderFlag = 0x2
	DyldLink              HeaderFlag = 0x4
	BindAtLoad            HeaderFlag = 0x8
	Prebound              HeaderFlag = 0x10
	SplitSegs             HeaderFlag = 0x20
	TwoLevel              HeaderFlag = 0x80
	ForceFlat             HeaderFlag = 0x100
	SubsectionsViaSymbols HeaderFlag = 0x2000
	WeakDefines           HeaderFlag = 0x8000
	BindsToWeak           HeaderFlag = 0x10000
	NoReexportedDylibs    HeaderFlag = 0x100000
	PIE                   HeaderFlag = 0x200000
	AppExtensionSafe      HeaderFlag = 0x2000000
	DylibInCache          HeaderFlag = 0x80000000
)

var flagStrings = []intName{
	{uint32(NoUndefs), "NoUndefs"},
	{uint32(IncrLink), "IncrLink"},
	{uint32(DyldLink), "DyldLink"},
	{uint32(BindAtLoad), "BindAtLoad"},
	{uint32(Prebound), "Prebound"},
	{uint32(SplitSegs), "SplitSegs"},
	{uint32(TwoLevel), "TwoLevel"},
	{uint32(ForceFlat), "ForceFlat"},
	{uint32(SubsectionsViaSymbols), "SubsectionsViaSymbols"},
	{uint32(WeakDefines), "WeakDefines"},
	{uint32(BindsToWeak), "BindsToWeak"},
	{uint32(NoReexportedDylibs), "NoReexportedDylibs"},
	{uint32(PIE), "PIE"},
	{uint32(AppExtensionSafe), "AppExtensionSafe"},
	{uint32(DylibInCache), "DylibInCache"},
}

// List returns the names of the known flags that are set. Unknown bits are
// reported as a single hex value.
func (f HeaderFlag) List() []string {
	if f == None {
		return []string{"None"}
	}
	var flags []string
	rest := f
	for _, n := range flagStrings {
		if uint32(f)&n.i != 0 {
			flags = append(flags, n.s)
			rest &^= HeaderFlag(n.i)
		}
	}
	if rest != 0 {
		flags = append(flags, fmt.Sprintf("%#x", uint32(rest)))
	}
	return flags
}

func (f HeaderFlag) Flags() string {
	return strings.Join(f.List(), ", ")
}

func (h FileHeader) String() string {
	return fmt.Sprintf(
		"Magic         = %s\n"+
			"Type          = %s\n"+
			"CPU           = %s, %#x\n"+
			"Commands      = %d (Size: %d)\n"+
			"Flags         = %s\n",
		h.Magic,
		h.Type,
		h.CPU, uint32(h.SubCPU),
		h.NCommands,
		h.SizeCommands,
		h.Flags.Flags(),
	)
}
