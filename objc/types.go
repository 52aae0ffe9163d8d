// Package objc models the Objective-C runtime metadata embedded in a Mach-O
// image: classes, protocols, methods, ivars and properties, plus the
// type-encoding grammar used to describe their signatures.
//
// Everything in this package is a plain value built once by
// github.com/coredump-labs/objcmeta/parser and read many times afterwards;
// nothing here mutates after a Catalog is returned from Parse.
package objc

import "fmt"

// ClassFlags mirrors the bitfield stored in class_ro_t.flags.
type ClassFlags uint32

const (
	// FlagMeta marks the class record as a metaclass rather than an
	// instance-side class.
	FlagMeta ClassFlags = 1 << 0
	// FlagRoot marks a class with no superclass (e.g. NSObject itself).
	FlagRoot ClassFlags = 1 << 1
	// FlagHasCxxStructors marks C++ constructors/destructors for ivars.
	// Bit 3 is unused by the runtime and intentionally has no name here.
	FlagHasCxxStructors ClassFlags = 1 << 2
	FlagHidden          ClassFlags = 1 << 4
	FlagException       ClassFlags = 1 << 5
	// FlagHasSwiftInitializer marks a class with a Swift-generated initializer.
	FlagHasSwiftInitializer     ClassFlags = 1 << 6
	FlagIsARC                   ClassFlags = 1 << 7
	FlagHasCxxDtorOnly          ClassFlags = 1 << 8
	FlagHasWeakWithoutARC       ClassFlags = 1 << 9
	FlagForbidsAssociatedObjects ClassFlags = 1 << 10
	FlagFromBundle              ClassFlags = 1 << 29
	FlagFuture                  ClassFlags = 1 << 30
	FlagRealized                ClassFlags = 1 << 31
)

// IsMeta reports whether the class record describes a metaclass.
func (f ClassFlags) IsMeta() bool { return f&FlagMeta != 0 }

// IsRoot reports whether the class has no superclass.
func (f ClassFlags) IsRoot() bool { return f&FlagRoot != 0 }

func (f ClassFlags) String() string {
	names := []struct {
		bit  ClassFlags
		name string
	}{
		{FlagMeta, "meta"},
		{FlagRoot, "root"},
		{FlagHasCxxStructors, "cxx_structors"},
		{FlagHidden, "hidden"},
		{FlagException, "exception"},
		{FlagHasSwiftInitializer, "swift_init"},
		{FlagIsARC, "arc"},
		{FlagHasCxxDtorOnly, "cxx_dtor_only"},
		{FlagHasWeakWithoutARC, "weak_no_arc"},
		{FlagForbidsAssociatedObjects, "forbids_assoc"},
		{FlagFromBundle, "from_bundle"},
		{FlagFuture, "future"},
		{FlagRealized, "realized"},
	}
	out := ""
	for _, n := range names {
		if f&n.bit == 0 {
			continue
		}
		if out != "" {
			out += "|"
		}
		out += n.name
	}
	if out == "" {
		return "none"
	}
	return out
}

// Method is a single Objective-C method entry, whether it originates from a
// class's own method list, an inherited one, or a protocol's method list.
type Method struct {
	Name string
	// Types is the raw, still-encoded type-signature string (e.g. "v16@0:8").
	Types string
	// Address is the virtual address of the implementation, or 0 when it
	// could not be resolved (e.g. a protocol method, which has no IMP).
	Address uint64
	// IsInstance is false for class-side (metaclass) methods.
	IsInstance bool
}

// Prototype decodes Types and splits the result into a return type and the
// ordered parameter types. An error is returned when the encoding could not
// be decoded at all; a partially-decoded signature is split the same way
// (its first recognized type as the return type, the rest of the recognized
// prefix as parameters) and returns a nil error.
func (m Method) Prototype() (ret *Type, params []*Type, err error) {
	decoded, decErr := DecodeType(m.Types)
	if len(decoded) == 0 {
		return nil, nil, fmt.Errorf("objc: decoding method type %q: %w", m.Types, decErr)
	}
	return decoded[0], decoded[1:], nil
}

// IVar is a single instance variable.
type IVar struct {
	Name   string
	Type   string // raw encoded type, e.g. "i" or "@\"NSString\""
	Offset uint64
	Size   uint32
	Align  uint32
}

// DecodedType decodes Type and returns it only when the encoding resolves to
// exactly one top-level type, matching the rest of the runtime's convention
// that an ivar has a single, non-compound type.
func (iv IVar) DecodedType() (*Type, bool) {
	decoded, err := DecodeType(iv.Type)
	if err != nil || len(decoded) != 1 {
		return nil, false
	}
	return decoded[0], true
}

// Property is a declared @property, stored as name plus its raw attribute
// string (e.g. "T@\"NSString\",C,N").
type Property struct {
	Name       string
	Attributes string
}

// Class is a fully resolved Objective-C class, built from class_t/class_ro_t
// and the method/ivar/protocol lists it references.
type Class struct {
	Name  string
	Flags ClassFlags

	InstanceStart uint32
	InstanceSize  uint32

	// Superclass is nil for root classes and for any class whose
	// superclass pointer could not be resolved or that would otherwise
	// recurse back into this class (a cycle guard, see parser.buildClass).
	Superclass *Class

	// InstanceMethods and ClassMethods are kept separate even though both
	// ultimately come from a class_ro_t.base_method_list: a class's own
	// method list entries are split by IsInstance, and any method
	// inherited from the superclass is re-homed here as a class method
	// regardless of how it was originally declared. See the comment in
	// parser.buildClass for why that happens.
	InstanceMethods []Method
	ClassMethods    []Method

	IVars      []IVar
	Properties []Property
	Protocols  []*Protocol

	// Offset is the virtual address of this class's objc_class_t, used as the
	// parser's dedup key (not Name: two distinct classes may share a name
	// across images, and within a single image the same offset is always
	// the same class).
	Offset uint64
}

// IsMeta reports whether this Class record is itself a metaclass.
func (c *Class) IsMeta() bool { return c.Flags.IsMeta() }

// Protocol is a fully resolved @protocol declaration.
type Protocol struct {
	Name string

	// RequiredMethods holds both instance and class methods declared
	// without @optional, distinguished by Method.IsInstance. Optional
	// methods land in OptionalMethods using the same split. This mirrors
	// how the runtime lays the four method lists (instance/class x
	// required/optional) into two buckets.
	RequiredMethods []Method
	OptionalMethods []Method

	Properties []Property

	// Protocols holds the protocols this protocol itself conforms to.
	Protocols []*Protocol

	// Offset is the virtual address of this protocol's protocol_t, used as
	// the parser's dedup key.
	Offset uint64
}
