// Package image defines the narrow, read-only view of a Mach-O binary that
// the objc parser needs: named sections, named segments, and the handful of
// address-space facts (image base, memory base, slice selection) required to
// turn a tagged pointer into bytes. It deliberately says nothing about load
// commands, symbol tables or code signatures; those belong to whatever
// concrete loader backs the interface.
package image

import "fmt"

// CPUType selects a slice out of a fat (universal) binary. Values match the
// Mach-O CPU_TYPE_* constants that matter for Objective-C metadata.
type CPUType uint32

const (
	CPUTypeAny   CPUType = 0
	CPUTypeArm64 CPUType = 0x0100000c
	CPUTypeX8664 CPUType = 0x01000007
)

// Section is a named section within a segment.
type Section interface {
	Name() string
	Segment() string
	VirtualAddress() uint64
	Content() ([]byte, error)
}

// Segment is a named, contiguous region of address space.
type Segment interface {
	Name() string
	VirtualAddress() uint64
	Size() uint64
	Content() ([]byte, error)
}

// BinaryImage is the external collaborator the parser depends on to read
// bytes out of a Mach-O image. Implementations are expected to already have
// picked a single 64-bit architecture slice; BinaryImage never deals with
// fat-binary framing itself except through Open.
type BinaryImage interface {
	// Sections returns the sections for a named segment, in on-disk order.
	Sections(segment string) []Section
	// Section looks up one section by segment and name, following the
	// classic __DATA -> __DATA_CONST -> __DATA_DIRTY fallback order when
	// segment is empty.
	Section(segment, name string) (Section, bool)
	// SegmentFromVirtualAddress returns the segment containing vaddr, if
	// any.
	SegmentFromVirtualAddress(vaddr uint64) (Segment, bool)

	// Imagebase is the Mach-O header's preferred load address.
	Imagebase() uint64
	// MemoryBaseAddress is nonzero only for images extracted from a dyld
	// shared cache, where virtual addresses are relative to the cache's
	// own base rather than this image's.
	MemoryBaseAddress() uint64
}

// ErrNoSuchSlice is returned by Open when the requested architecture isn't
// present in a fat binary.
type ErrNoSuchSlice struct {
	Want CPUType
}

func (e *ErrNoSuchSlice) Error() string {
	return fmt.Sprintf("image: no slice for cpu type %#x", uint32(e.Want))
}
