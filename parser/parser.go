// Package parser implements MetadataParser: it walks the Objective-C
// sections of a Mach-O image and builds an *objc.Catalog from them.
//
// The algorithm is protocols-first, then classes, mirroring the order the
// runtime itself needs them resolved in (a class's protocol list references
// protocols that must already exist). A single cursor.Cursor is shared for
// every entity read (the section pointer lists are walked with a cursor of
// their own); recursive descents (into a superclass or a cross-referenced
// protocol) are wrapped in cursor.ScopedSeek so the caller's
// place in whatever flat list it was walking is preserved across the call.
package parser

import (
	"fmt"

	"github.com/apex/log"

	"github.com/coredump-labs/objcmeta/cursor"
	"github.com/coredump-labs/objcmeta/image"
	"github.com/coredump-labs/objcmeta/objc"
)

// ParsePath is the top-level convenience entry point: it opens the Mach-O
// file at path, selects an architecture slice according to pref (pass
// image.CPUTypeAny for the ARM64-then-x86_64 default), and parses its
// Objective-C metadata. Most callers that don't already have a BinaryImage
// open for some other reason should use this instead of composing
// image.Open and Parse by hand.
func ParsePath(path string, pref image.CPUType) (*objc.Catalog, error) {
	img, err := image.Open(path, pref)
	if err != nil {
		return nil, fmt.Errorf("parser: %w", err)
	}
	defer img.Close()
	return Parse(img)
}

// Parser holds the state needed across a single Parse call. It is not
// reused between images.
type Parser struct {
	img       image.BinaryImage
	cur       *cursor.Cursor
	imagebase uint64
	catalog   *objc.Catalog

	// classesByOffset and protosByOffset dedup entities by the virtual
	// address of their on-disk struct and double as cycle guards: an
	// offset present here (even with a not-yet-fully-populated value)
	// is never rebuilt, which turns any reference cycle into a shared
	// pointer to a single, eventually-consistent object instead of
	// infinite recursion.
	classesByOffset map[uint64]*objc.Class
	protosByOffset  map[uint64]*objc.Protocol
}

// Parse builds a Catalog from img. It never returns a nil Catalog, even on
// LoadError: an image with no Objective-C metadata yields a valid, empty
// one.
func Parse(img image.BinaryImage) (*objc.Catalog, error) {
	p := &Parser{
		img:             img,
		cur:             cursor.New(img, 0),
		imagebase:       img.Imagebase(),
		catalog:         objc.NewCatalog(),
		classesByOffset: make(map[uint64]*objc.Class),
		protosByOffset:  make(map[uint64]*objc.Protocol),
	}

	_, hasProtoList := img.Section("", "__objc_protolist")
	_, hasClassList := img.Section("", "__objc_classlist")

	p.processProtocols()
	p.processClasses()

	if !hasProtoList && !hasClassList {
		return p.catalog, &LoadError{Path: "<image>"}
	}
	return p.catalog, nil
}

// decodePtr untags a raw pointer field the way the runtime's tagged
// pointers require: the low 51 bits are the real address, and if that
// address falls below the image's own base it's rebased forward by it (the
// case of a dyld shared-cache pointer pointing back into the image itself).
func (p *Parser) decodePtr(raw uint64) uint64 {
	decoded := raw & objc.PtrTagMask
	if p.imagebase > 0 && decoded < p.imagebase {
		decoded += p.imagebase
	}
	return decoded
}

func (p *Parser) section(name string) (image.Section, bool) {
	return p.img.Section("", name)
}

// walkPointerList reads a section's content as a flat array of uintptr
// values, decodes each, and invokes visit(decoded) for it. Used for both
// __objc_classlist and __objc_protolist.
func (p *Parser) walkPointerList(sectionName string, visit func(decoded uint64)) {
	sec, ok := p.section(sectionName)
	if !ok {
		return
	}
	content, err := sec.Content()
	if err != nil {
		log.WithError(err).Warnf("parser: reading section %s", sectionName)
		return
	}
	count := len(content) / 8
	base := sec.VirtualAddress()
	listCur := cursor.New(p.img, base)
	for i := 0; i < count; i++ {
		raw, err := listCur.ReadUint64()
		if err != nil {
			log.WithError(err).Warnf("parser: reading %s[%d]", sectionName, i)
			break
		}
		visit(p.decodePtr(raw))
	}
}

func (p *Parser) processProtocols() {
	p.walkPointerList("__objc_protolist", func(offset uint64) {
		if _, err := p.getOrCreateProtocol(offset); err != nil {
			log.WithError(err).Warnf("parser: protocol at %#x", offset)
		}
	})
}

func (p *Parser) processClasses() {
	p.walkPointerList("__objc_classlist", func(offset uint64) {
		cl, err := p.getOrCreateClass(offset)
		if err != nil {
			log.WithError(err).Warnf("parser: class at %#x", offset)
			return
		}
		if _, exists := p.catalog.ClassAtOffset(cl.Offset); !exists {
			p.catalog.AddClass(cl)
		}
	})
}

// getOrCreateProtocol returns the Protocol already built for offset, or
// builds and registers a new one. The placeholder is registered in
// protosByOffset before its fields are filled in, so a protocol that
// conforms to itself (directly or through a cycle) gets a pointer to the
// same, eventually fully-populated struct rather than recursing forever.
func (p *Parser) getOrCreateProtocol(offset uint64) (*objc.Protocol, error) {
	if proto, ok := p.protosByOffset[offset]; ok {
		return proto, nil
	}
	proto := &objc.Protocol{Offset: offset}
	p.protosByOffset[offset] = proto

	if err := p.cur.ScopedSeek(offset, func() error { return p.buildProtocol(proto) }); err != nil {
		return nil, err
	}
	p.catalog.AddProtocol(proto)
	return proto, nil
}

func (p *Parser) buildProtocol(proto *objc.Protocol) error {
	var base objc.ProtocolTBase
	if err := p.cur.ReadStruct(&base); err != nil {
		return &ReadError{Entity: "protocol_t", Addr: p.cur.Pos(), Cause: err}
	}

	name, err := p.cur.PeekCString(p.decodePtr(base.MangledName))
	if err != nil {
		log.WithError(err).Warnf("parser: protocol name at %#x", p.decodePtr(base.MangledName))
	}
	proto.Name = name

	if base.Protocols != 0 {
		proto.Protocols = p.readProtocolRefList(p.decodePtr(base.Protocols))
	}

	if base.InstanceMethods != 0 {
		methods := p.readMethodList(p.decodePtr(base.InstanceMethods), true)
		proto.RequiredMethods = append(proto.RequiredMethods, methods...)
	}
	if base.ClassMethods != 0 {
		methods := p.readMethodList(p.decodePtr(base.ClassMethods), false)
		proto.RequiredMethods = append(proto.RequiredMethods, methods...)
	}
	if base.OptionalInstanceMethods != 0 {
		methods := p.readMethodList(p.decodePtr(base.OptionalInstanceMethods), true)
		proto.OptionalMethods = append(proto.OptionalMethods, methods...)
	}
	if base.OptionalClassMethods != 0 {
		methods := p.readMethodList(p.decodePtr(base.OptionalClassMethods), false)
		proto.OptionalMethods = append(proto.OptionalMethods, methods...)
	}
	if base.InstanceProperties != 0 {
		proto.Properties = p.readPropertyList(p.decodePtr(base.InstanceProperties))
	}
	return nil
}

// readProtocolRefList reads a protocol_list_t: a uint64 count followed by
// that many tagged pointers, each resolved via getOrCreateProtocol.
func (p *Parser) readProtocolRefList(addr uint64) []*objc.Protocol {
	var out []*objc.Protocol
	p.cur.ScopedSeek(addr, func() error {
		count, err := p.cur.ReadUint64()
		if err != nil {
			log.WithError(err).Warnf("parser: protocol_list_t count at %#x", addr)
			return nil
		}
		for i := uint64(0); i < count; i++ {
			raw, err := p.cur.ReadUint64()
			if err != nil {
				log.WithError(err).Warnf("parser: protocol_list_t[%d] at %#x", i, p.cur.Pos())
				break
			}
			proto, err := p.getOrCreateProtocol(p.decodePtr(raw))
			if err != nil {
				log.WithError(err).Warnf("parser: referenced protocol at %#x", p.decodePtr(raw))
				continue
			}
			out = append(out, proto)
		}
		return nil
	})
	return out
}

// getOrCreateClass builds (or reuses) the class whose objc_class_t begins at
// offset.
func (p *Parser) getOrCreateClass(offset uint64) (*objc.Class, error) {
	if cl, ok := p.classesByOffset[offset]; ok {
		return cl, nil
	}
	cl := &objc.Class{Offset: offset}
	p.classesByOffset[offset] = cl

	if err := p.cur.ScopedSeek(offset, func() error { return p.buildClass(cl, offset) }); err != nil {
		delete(p.classesByOffset, offset)
		return nil, err
	}
	return cl, nil
}

func (p *Parser) buildClass(cl *objc.Class, selfOffset uint64) error {
	var raw objc.ClassT
	if err := p.cur.ReadStruct(&raw); err != nil {
		return &ReadError{Entity: "objc_class_t", Addr: selfOffset, Cause: err}
	}

	ro, err := p.resolveClassRO(raw.Bits)
	if err != nil {
		return &ReadError{Entity: "class_ro_t", Addr: raw.Bits & objc.FastDataMask, Cause: err}
	}

	name, err := p.cur.PeekCString(p.decodePtr(ro.Name))
	if err != nil {
		log.WithError(err).Warnf("parser: class name at %#x", p.decodePtr(ro.Name))
	}
	cl.Name = name
	cl.Flags = objc.ClassFlags(ro.Flags)
	cl.InstanceStart = ro.InstanceStart
	cl.InstanceSize = ro.InstanceSize

	// Superclass recursion is guarded twice: against an immediate
	// self-reference (a class whose super_class pointer is its own
	// address, decoded relative to where we started this build) and,
	// more generally, against anything already mid-construction via
	// classesByOffset. Either guard alone would catch the documented
	// case; together they catch any cycle length.
	if raw.SuperClass != 0 {
		superOffset := p.decodePtr(raw.SuperClass)
		if superOffset != selfOffset {
			if super, ok := p.classesByOffset[superOffset]; ok {
				cl.Superclass = super
			} else if super, err := p.getOrCreateClass(superOffset); err == nil {
				cl.Superclass = super
			} else {
				log.WithError(err).Warnf("parser: superclass at %#x", superOffset)
			}
		}
	}
	// A superclass whose own chain already leads back to this class
	// would close a loop; such a class is left without a superclass.
	for s := cl.Superclass; s != nil; s = s.Superclass {
		if s == cl {
			cl.Superclass = nil
			break
		}
	}

	// A superclass's own methods are re-homed onto the subclass as
	// class-side methods ahead of the subclass's own method list. This
	// reproduces the output of the original iCDump implementation, not
	// anything in the runtime's metadata layout; see DESIGN.md.
	if cl.Superclass != nil {
		for _, m := range cl.Superclass.InstanceMethods {
			m.IsInstance = false
			cl.ClassMethods = append(cl.ClassMethods, m)
		}
		for _, m := range cl.Superclass.ClassMethods {
			m.IsInstance = false
			cl.ClassMethods = append(cl.ClassMethods, m)
		}
	}

	isMeta := cl.Flags.IsMeta()
	if ro.BaseMethodList != 0 {
		own := p.readMethodList(p.decodePtr(ro.BaseMethodList), !isMeta)
		if isMeta {
			cl.ClassMethods = append(cl.ClassMethods, own...)
		} else {
			cl.InstanceMethods = append(cl.InstanceMethods, own...)
		}
	}

	if ro.BaseProtocols != 0 {
		cl.Protocols = p.readProtocolRefList(p.decodePtr(ro.BaseProtocols))
	}
	if ro.Ivars != 0 {
		cl.IVars = p.readIvarList(p.decodePtr(ro.Ivars))
	}
	if ro.BaseProperties != 0 {
		cl.Properties = p.readPropertyList(p.decodePtr(ro.BaseProperties))
	}

	return nil
}

// resolveClassRO resolves class_data_bits_t.bits to a class_ro_t, trying the
// direct form first (bits & FastDataMask is itself a class_ro_t*) and
// falling back to the rw_ext indirection (the same address holds a
// class_rw_t header whose ro_or_rw_ext field is a tagged pointer union: tag
// 0 is a class_ro_t* directly, tag 1 is a class_rw_ext_t* whose own Ro field
// is the class_ro_t*).
func (p *Parser) resolveClassRO(bits uint64) (*objc.ClassRO64, error) {
	addr := bits & objc.FastDataMask

	var ro objc.ClassRO64
	if err := p.cur.PeekStruct(addr, &ro); err == nil {
		return &ro, nil
	}

	var rw objc.ClassRWHeader
	if err := p.cur.PeekStruct(addr, &rw); err != nil {
		return nil, err
	}
	tag := rw.RoOrRwExt & 1
	pointer := rw.RoOrRwExt &^ 1
	if tag == 0 {
		if err := p.cur.PeekStruct(pointer, &ro); err != nil {
			return nil, err
		}
		return &ro, nil
	}

	var ext objc.ClassRWExtT
	if err := p.cur.PeekStruct(pointer, &ext); err != nil {
		return nil, err
	}
	if err := p.cur.PeekStruct(ext.Ro, &ro); err != nil {
		return nil, err
	}
	return &ro, nil
}

// readMethodList reads a method_list_t and every entry it describes,
// dispatching to the small or big entry layout according to its flags.
// isInstance applies to every entry: method-list membership (instance vs
// class) is a property of which list a method came from, not of the entry
// itself.
func (p *Parser) readMethodList(addr uint64, isInstance bool) []objc.Method {
	var out []objc.Method
	p.cur.ScopedSeek(addr, func() error {
		var header objc.MethodListHeader
		if err := p.cur.ReadStruct(&header); err != nil {
			log.WithError(err).Warnf("parser: method_list_t at %#x", addr)
			return nil
		}
		if header.IsSmall() {
			out = p.readSmallMethods(header, isInstance)
		} else {
			out = p.readBigMethods(header, isInstance)
		}
		return nil
	})
	return out
}

func (p *Parser) readSmallMethods(header objc.MethodListHeader, isInstance bool) []objc.Method {
	out := make([]objc.Method, 0, header.Count)
	for i := uint32(0); i < header.Count; i++ {
		entryAddr := p.cur.Pos()
		var entry objc.SmallMethodT
		if err := p.cur.ReadStruct(&entry); err != nil {
			log.WithError(err).Warnf("parser: small method_t[%d] at %#x", i, entryAddr)
			break
		}

		namePtrAddr := uint64(int64(entryAddr) + int64(entry.NameOffset))
		namePtr, err := p.cur.PeekUint64(namePtrAddr)
		var name string
		if err != nil {
			log.WithError(err).Warnf("parser: small method name pointer at %#x", namePtrAddr)
		} else {
			name, err = p.cur.PeekCString(p.decodePtr(namePtr))
			if err != nil {
				log.WithError(err).Warnf("parser: small method name at %#x", p.decodePtr(namePtr))
			}
		}

		typesAddr := uint64(int64(entryAddr+4) + int64(entry.TypesOffset))
		types, err := p.cur.PeekCString(typesAddr)
		if err != nil {
			log.WithError(err).Warnf("parser: small method types at %#x", typesAddr)
		}

		var impAddr uint64
		if entry.ImpOffset != 0 {
			impAddr = uint64(int64(entryAddr+8) + int64(entry.ImpOffset))
		}

		out = append(out, objc.Method{Name: name, Types: types, Address: impAddr, IsInstance: isInstance})
	}
	return out
}

func (p *Parser) readBigMethods(header objc.MethodListHeader, isInstance bool) []objc.Method {
	out := make([]objc.Method, 0, header.Count)
	for i := uint32(0); i < header.Count; i++ {
		entryAddr := p.cur.Pos()
		var entry objc.BigMethodT
		if err := p.cur.ReadStruct(&entry); err != nil {
			log.WithError(err).Warnf("parser: big method_t[%d] at %#x", i, entryAddr)
			break
		}
		name, err := p.cur.PeekCString(p.decodePtr(entry.Name))
		if err != nil {
			log.WithError(err).Warnf("parser: big method name at %#x", p.decodePtr(entry.Name))
		}
		types, err := p.cur.PeekCString(p.decodePtr(entry.Types))
		if err != nil {
			log.WithError(err).Warnf("parser: big method types at %#x", p.decodePtr(entry.Types))
		}
		var addr uint64
		if entry.Imp != 0 {
			addr = p.decodePtr(entry.Imp)
		}
		out = append(out, objc.Method{Name: name, Types: types, Address: addr, IsInstance: isInstance})
	}
	return out
}

// readIvarList reads an ivars_list_t. Entries are read at a stride of
// sizeof(ivar_t); the entsize field in the list header is not consulted.
func (p *Parser) readIvarList(addr uint64) []objc.IVar {
	var out []objc.IVar
	p.cur.ScopedSeek(addr, func() error {
		var header objc.MethodListHeader // count-only header shape is shared
		if err := p.cur.ReadStruct(&header); err != nil {
			log.WithError(err).Warnf("parser: ivar_list_t at %#x", addr)
			return nil
		}
		for i := uint32(0); i < header.Count; i++ {
			var raw objc.IvarT
			entryAddr := p.cur.Pos()
			if err := p.cur.ReadStruct(&raw); err != nil {
				log.WithError(err).Warnf("parser: ivar_t[%d] at %#x", i, entryAddr)
				break
			}
			name, err := p.cur.PeekCString(p.decodePtr(raw.Name))
			if err != nil {
				log.WithError(err).Warnf("parser: ivar name at %#x", p.decodePtr(raw.Name))
			}
			typ, err := p.cur.PeekCString(p.decodePtr(raw.Type))
			if err != nil {
				log.WithError(err).Warnf("parser: ivar type at %#x", p.decodePtr(raw.Type))
			}
			var offset uint64
			if raw.Offset != 0 {
				// The ivar offset slot is an int32_t in the real Apple ABI
				// (class_addIvar and friends never widen it), not a pointer-
				// sized field.
				if v, err := p.cur.PeekUint32(p.decodePtr(raw.Offset)); err == nil {
					offset = uint64(v)
				}
			}
			out = append(out, objc.IVar{
				Name:   name,
				Type:   typ,
				Offset: offset,
				Size:   raw.Size,
				Align:  raw.AlignmentRaw,
			})
		}
		return nil
	})
	return out
}

func (p *Parser) readPropertyList(addr uint64) []objc.Property {
	var out []objc.Property
	p.cur.ScopedSeek(addr, func() error {
		var header objc.MethodListHeader
		if err := p.cur.ReadStruct(&header); err != nil {
			log.WithError(err).Warnf("parser: property_list_t at %#x", addr)
			return nil
		}
		for i := uint32(0); i < header.Count; i++ {
			var raw objc.PropertyT
			entryAddr := p.cur.Pos()
			if err := p.cur.ReadStruct(&raw); err != nil {
				log.WithError(err).Warnf("parser: property_t[%d] at %#x", i, entryAddr)
				break
			}
			name, err := p.cur.PeekCString(p.decodePtr(raw.Name))
			if err != nil {
				log.WithError(err).Warnf("parser: property name at %#x", p.decodePtr(raw.Name))
			}
			attrs, err := p.cur.PeekCString(p.decodePtr(raw.Attributes))
			if err != nil {
				log.WithError(err).Warnf("parser: property attributes at %#x", p.decodePtr(raw.Attributes))
			}
			out = append(out, objc.Property{Name: name, Attributes: attrs})
		}
		return nil
	})
	return out
}
