package types

// A CPU is a Mach-O cpu type.
type CPU uint32

const (
	cpuArchMask = 0xff000000 //  mask for architecture bits
	cpuArch64   = 0x01000000 // 64 bit ABI
	cpuArch6432 = 0x02000000 // ABI for 64-bit hardware with 32-bit types; LP32
)

const (
	CPU386     CPU = 7
	CPUAmd64   CPU = CPU386 | cpuArch64
	CPUArm     CPU = 12
	CPUArm64   CPU = CPUArm | cpuArch64
	CPUArm6432 CPU = CPUArm | cpuArch6432
	CPUPpc     CPU = 18
	CPUPpc64   CPU = CPUPpc | cpuArch64
)

var cpuStrings = []intName{
	{uint32(CPU386), "i386"},
	{uint32(CPUAmd64), "x86_64"},
	{uint32(CPUArm), "arm"},
	{uint32(CPUArm64), "arm64"},
	{uint32(CPUArm6432), "arm64_32"},
	{uint32(CPUPpc), "ppc"},
	{uint32(CPUPpc64), "ppc64"},
}

func (i CPU) String() string   { return stringName(uint32(i), cpuStrings, false) }
func (i CPU) GoString() string { return stringName(uint32(i), cpuStrings, true) }

// Is64Bit reports whether the cpu type carries the 64-bit ABI bit.
func (i CPU) Is64Bit() bool { return i&cpuArchMask == cpuArch64 }

// A CPUSubtype is a Mach-O cpu subtype. Its meaning depends on the CPU.
type CPUSubtype uint32

const (
	CPUSubtypeX8664All CPUSubtype = 3
	CPUSubtypeArm64All CPUSubtype = 0
	CPUSubtypeArm64E   CPUSubtype = 2

	CpuSubtypeFeatureMask CPUSubtype = 0xff000000 /* mask for feature flags */
	CpuSubtypeMask                   = CPUSubtype(^CpuSubtypeFeatureMask)
)
