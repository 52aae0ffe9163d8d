package objc

// Catalog owns every Class and Protocol a parse produced. Classes and
// protocols are deduplicated by their offset (the virtual address of their
// on-disk struct), not by name: two classes with identical names at
// different offsets are distinct entities, both kept. A Class's references
// to Protocol values are borrowed; Catalog is the sole owner.
//
// A Catalog is immutable once parser.Parse returns it. Nothing in this
// package mutates a Class or Protocol after insertion, so concurrent readers
// need no locking.
type Catalog struct {
	classes    []*Class
	protocols  []*Protocol
	classByOff map[uint64]*Class
	protoByOff map[uint64]*Protocol

	// classByName and protoByName hold the last-inserted entity for a
	// given name: duplicate names across offsets are expected (the same
	// class compiled into more than one translation unit, or present in
	// a fat slice union), and the index simply remembers whichever was
	// seen most recently.
	classByName map[string]*Class
	protoByName map[string]*Protocol
}

// NewCatalog returns an empty Catalog ready for the parser to populate.
func NewCatalog() *Catalog {
	return &Catalog{
		classByOff:  make(map[uint64]*Class),
		protoByOff:  make(map[uint64]*Protocol),
		classByName: make(map[string]*Class),
		protoByName: make(map[string]*Protocol),
	}
}

// Classes returns every class in the order they were discovered
// (__objc_classlist order).
func (c *Catalog) Classes() []*Class { return c.classes }

// Protocols returns every protocol in the order they were discovered
// (__objc_protolist order, followed by any protocol first referenced from a
// class or another protocol).
func (c *Catalog) Protocols() []*Protocol { return c.protocols }

// ClassByName returns the most recently inserted class with the given name,
// or nil if none exists.
func (c *Catalog) ClassByName(name string) *Class { return c.classByName[name] }

// ProtocolByName returns the most recently inserted protocol with the given
// name, or nil if none exists.
func (c *Catalog) ProtocolByName(name string) *Protocol { return c.protoByName[name] }

// ClassAtOffset returns the class already built for the on-disk struct at
// offset, or nil if none has been built yet.
func (c *Catalog) ClassAtOffset(offset uint64) (*Class, bool) {
	cl, ok := c.classByOff[offset]
	return cl, ok
}

// ProtocolAtOffset returns the protocol already built for the on-disk struct
// at offset, or nil if none has been built yet.
func (c *Catalog) ProtocolAtOffset(offset uint64) (*Protocol, bool) {
	p, ok := c.protoByOff[offset]
	return p, ok
}

// AddClass registers a fully built class. Offset must be unique per class;
// AddClass panics if called twice for the same offset, since that indicates
// a parser bug (the parser is expected to consult ClassAtOffset first).
func (c *Catalog) AddClass(cl *Class) {
	if _, exists := c.classByOff[cl.Offset]; exists {
		panic("objc: duplicate class offset registered in Catalog")
	}
	c.classes = append(c.classes, cl)
	c.classByOff[cl.Offset] = cl
	c.classByName[cl.Name] = cl
}

// AddProtocol registers a fully built protocol, subject to the same
// uniqueness rule as AddClass.
func (c *Catalog) AddProtocol(p *Protocol) {
	if _, exists := c.protoByOff[p.Offset]; exists {
		panic("objc: duplicate protocol offset registered in Catalog")
	}
	c.protocols = append(c.protocols, p)
	c.protoByOff[p.Offset] = p
	c.protoByName[p.Name] = p
}
