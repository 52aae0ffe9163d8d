package objc

// This file defines the bit-exact, 64-bit-only on-disk layouts the parser
// reads directly with encoding/binary. Field names follow the runtime's own
// naming (objc_class_t, class_ro_t, ...) rather than Go convention, since
// that's what lets the parser code be checked against the ABI at a glance.

const (
	// FastDataMask strips the low tag bits out of class_data_bits_t.bits
	// to recover the class_ro_t/class_rw_t pointer.
	FastDataMask uint64 = 0x00007ffffffffff8

	// PtrTagMask is applied to a raw pointer field before deciding whether
	// to rebase it against the image's base address.
	PtrTagMask uint64 = (1 << 51) - 1

	// methodListIsSmall marks a method_list_t whose entries are
	// self-relative int32 triples instead of absolute pointers.
	methodListIsSmall    uint32 = 0x80000000
	methodListFlagsMask  uint32 = 0xffff0003
	methodListEntsizeMask uint32 = ^methodListFlagsMask
)

// ClassT is objc_class_t, always exactly 0x28 bytes: a superclass pointer,
// an inline method cache, and the tagged class_data_bits_t pointer.
type ClassT struct {
	SuperClass uint64
	Cache      CacheT
	Bits       uint64
}

// CacheT is the inline method cache header (cache_t), 24 bytes. Its contents
// are opaque to metadata extraction; it's only read to keep ClassT's layout
// correct.
type CacheT struct {
	BucketsAndMaybeMask uint64
	MaybeMask           uint32
	Flags               uint16
	Occupied            uint16
	OriginalPreoptCache uint64
}

// ClassRWHeader is the leading fields of class_rw_t, read only far enough to
// recover RoOrRwExt, the tagged pointer distinguishing a direct class_ro_t*
// from a class_rw_ext_t* indirection.
type ClassRWHeader struct {
	Flags      uint32
	Witness    uint32
	RoOrRwExt  uint64
}

// ClassRWExtT is class_rw_ext_t: just the class_ro_t pointer, stored behind
// one more level of indirection than the common case.
type ClassRWExtT struct {
	Ro uint64
}

// ClassRO64 is class_ro_t.
type ClassRO64 struct {
	Flags         uint32
	InstanceStart uint32
	InstanceSize  uint32
	Reserved      uint32
	IvarLayout    uint64
	Name          uint64
	BaseMethodList uint64
	BaseProtocols  uint64
	Ivars          uint64
	WeakIvarLayout uint64
	BaseProperties uint64
}

// MethodListHeader is the common header of method_list_t, property_list_t
// and protocol's method arrays. EntsizeAndFlags packs the per-entry stride
// in its low bits and the small/uniqued/sorted flags in the high bits.
type MethodListHeader struct {
	EntsizeAndFlags uint32
	Count           uint32
}

// IsSmall reports whether entries are self-relative int32 triples.
func (h MethodListHeader) IsSmall() bool { return h.EntsizeAndFlags&methodListIsSmall != 0 }

// EntrySize returns the byte stride between entries, independent of the
// small/big encoding.
func (h MethodListHeader) EntrySize() uint32 { return h.EntsizeAndFlags & methodListEntsizeMask }

// SmallMethodT is one entry of a small (self-relative) method list: each
// field is a signed 32-bit offset from its own address to the referenced
// datum, except name, which is an offset to a pointer-to-selector rather
// than to the string directly.
type SmallMethodT struct {
	NameOffset  int32
	TypesOffset int32
	ImpOffset   int32
}

// BigMethodT is one entry of a big (absolute-pointer) method list.
type BigMethodT struct {
	Name  uint64
	Types uint64
	Imp   uint64
}

// IvarT is ivar_t. The list's per-entry stride is sizeof(IvarT), not the
// entsize field of the list's header.
type IvarT struct {
	Offset        uint64 // pointer to a uint32 holding the actual ivar offset
	Name          uint64
	Type          uint64
	AlignmentRaw  uint32
	Size          uint32
}

// PropertyT is property_t.
type PropertyT struct {
	Name       uint64
	Attributes uint64
}

// ProtocolTBase is the fixed, always-present prefix of protocol_t.
type ProtocolTBase struct {
	Isa                     uint64
	MangledName             uint64
	Protocols               uint64
	InstanceMethods         uint64
	ClassMethods            uint64
	OptionalInstanceMethods uint64
	OptionalClassMethods    uint64
	InstanceProperties      uint64
	Size                    uint32
	Flags                   uint32
}

// ProtocolTBaseSize is the on-disk size of ProtocolTBase; protocol_t structs
// with Size no larger than this carry none of the extended fields below.
const ProtocolTBaseSize = 8*8 + 4 + 4

// ProtocolTExt is the optional suffix of protocol_t, present only when
// ProtocolTBase.Size indicates the compiler emitted it.
type ProtocolTExt struct {
	ExtendedMethodTypes uint64
	DemangledName       uint64
	ClassProperties     uint64
}

// ProtocolListHeader is protocol_list_t's header: a count followed by that
// many pointers (read separately, since the pointer count isn't a fixed Go
// struct field).
type ProtocolListHeader struct {
	Count uint64
}

// ImageInfoT is objc_image_info_t, found in __DATA,__objc_imageinfo.
type ImageInfoT struct {
	Version uint32
	Flags   uint32
}
