package objc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apex/log"
)

// Kind discriminates the variants of Type.
type Kind int

const (
	KindPrimitive Kind = iota
	KindObject
	KindClass
	KindSelector
	KindBlock
	KindPointer
	KindArray
	KindStruct
	KindUnion
	KindBitfield
	KindUnknown
)

// Primitive enumerates the scalar C types the grammar can produce.
type Primitive int

const (
	Char Primitive = iota
	Int
	Short
	Long
	LongLong
	UnsignedChar
	UnsignedInt
	UnsignedShort
	UnsignedLong
	UnsignedLongLong
	Float
	Double
	Bool
	Void
	CString
)

func (p Primitive) String() string {
	switch p {
	case Char:
		return "char"
	case Int:
		return "int"
	case Short:
		return "short"
	case Long:
		return "long"
	case LongLong:
		return "long long"
	case UnsignedChar:
		return "unsigned char"
	case UnsignedInt:
		return "unsigned int"
	case UnsignedShort:
		return "unsigned short"
	case UnsignedLong:
		return "unsigned long"
	case UnsignedLongLong:
		return "unsigned long long"
	case Float:
		return "float"
	case Double:
		return "double"
	case Bool:
		return "bool"
	case Void:
		return "void"
	case CString:
		return "char *"
	default:
		return "?"
	}
}

// Qualifiers is a bitset of the specifier characters (r, n, N, o, O, R, V, A,
// j) that may precede any type in the encoding.
type Qualifiers uint16

const (
	QualConst Qualifiers = 1 << iota
	QualIn
	QualInOut
	QualOut
	QualByCopy
	QualByRef
	QualOneWay
	QualAtomic
	QualComplex
)

// Has reports whether q includes the given qualifier bit.
func (q Qualifiers) Has(bit Qualifiers) bool { return q&bit != 0 }

// Field is one member of a Struct or Union type.
type Field struct {
	// Name is empty when the field had no quoted name in the encoding.
	Name string
	Type *Type
}

// Type is a node in the decoded type-encoding AST. Which fields are
// meaningful depends on Kind:
//
//	KindPrimitive  Primitive
//	KindObject     Name (class name, empty if untyped "id")
//	KindPointer    Elem
//	KindArray      ArrayLen, Elem
//	KindStruct     Name (empty if anonymous), Fields (nil if forward-declared)
//	KindUnion      Name, Fields (same conventions as KindStruct)
//	KindBitfield   BitSize
//
// KindClass, KindSelector, KindBlock and KindUnknown carry no payload beyond
// Qualifiers.
type Type struct {
	Kind       Kind
	Qualifiers Qualifiers

	Primitive Primitive
	Name      string
	Elem      *Type
	ArrayLen  int
	Fields    []Field
	BitSize   int
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindPrimitive:
		return t.Primitive.String()
	case KindObject:
		if t.Name == "" {
			return "id"
		}
		return t.Name + " *"
	case KindClass:
		return "Class"
	case KindSelector:
		return "SEL"
	case KindBlock:
		return "id /* block */"
	case KindPointer:
		return t.Elem.String() + " *"
	case KindArray:
		return fmt.Sprintf("%s[%d]", t.Elem.String(), t.ArrayLen)
	case KindStruct:
		return structString("struct", t.Name, t.Fields)
	case KindUnion:
		return structString("union", t.Name, t.Fields)
	case KindBitfield:
		return fmt.Sprintf("bitfield:%d", t.BitSize)
	default:
		return "?"
	}
}

// decoder is a recursive-descent parser over a type-encoding string. It
// mirrors the grammar 1:1: a top-level encoding is a sequence of
// (qualifiers* type digits*) units, and every aggregate member is parsed by
// re-entering the same "read one type" routine.
type decoder struct {
	s string
	i int
}

func (d *decoder) atEnd() bool { return d.i >= len(d.s) }

func (d *decoder) peek() byte {
	if d.atEnd() {
		return 0
	}
	return d.s[d.i]
}

func (d *decoder) advance() byte {
	c := d.s[d.i]
	d.i++
	return c
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (d *decoder) skipDigits() {
	for !d.atEnd() && isDigit(d.peek()) {
		d.i++
	}
}

func (d *decoder) readNumber() (int, bool) {
	start := d.i
	d.skipDigits()
	if d.i == start {
		return 0, false
	}
	n, err := strconv.Atoi(d.s[start:d.i])
	return n, err == nil
}

// readQualifiers consumes zero or more specifier characters, returning their
// union. A specifier that doesn't match any known letter stops the loop
// without consuming it.
func (d *decoder) readQualifiers() Qualifiers {
	var q Qualifiers
	for !d.atEnd() {
		var bit Qualifiers
		switch d.peek() {
		case 'r':
			bit = QualConst
		case 'n':
			bit = QualIn
		case 'N':
			bit = QualInOut
		case 'o':
			bit = QualOut
		case 'O':
			bit = QualByCopy
		case 'R':
			bit = QualByRef
		case 'V':
			bit = QualOneWay
		case 'A':
			bit = QualAtomic
		case 'j':
			bit = QualComplex
		default:
			return q
		}
		q |= bit
		d.i++
	}
	return q
}

// readOptName reads an optional "quoted name", used for struct/union tags,
// field names and @"ClassName" object types. It returns "" without
// consuming anything if the next byte isn't a quote.
func (d *decoder) readOptName() string {
	if d.atEnd() || d.peek() != '"' {
		return ""
	}
	d.i++ // opening quote
	start := d.i
	for !d.atEnd() && d.peek() != '"' {
		d.i++
	}
	name := d.s[start:d.i]
	if !d.atEnd() {
		d.i++ // closing quote
	}
	return name
}

// parseOne reads exactly one (qualifiers* type) unit, the same routine used
// both at the top level and for every nested member. It's responsible for
// skipping any leading digits, which in a method encoding are the frame
// offset left behind by the previous unit.
func (d *decoder) parseOne() (*Type, bool) {
	d.skipDigits()
	quals := d.readQualifiers()
	d.skipDigits()
	if d.atEnd() {
		return nil, false
	}
	c := d.advance()
	var t *Type
	switch c {
	case 'c':
		t = &Type{Kind: KindPrimitive, Primitive: Char}
	case 'i':
		t = &Type{Kind: KindPrimitive, Primitive: Int}
	case 's':
		t = &Type{Kind: KindPrimitive, Primitive: Short}
	case 'l':
		t = &Type{Kind: KindPrimitive, Primitive: Long}
	case 'q':
		t = &Type{Kind: KindPrimitive, Primitive: LongLong}
	case 'C':
		t = &Type{Kind: KindPrimitive, Primitive: UnsignedChar}
	case 'I':
		t = &Type{Kind: KindPrimitive, Primitive: UnsignedInt}
	case 'S':
		t = &Type{Kind: KindPrimitive, Primitive: UnsignedShort}
	case 'L':
		t = &Type{Kind: KindPrimitive, Primitive: UnsignedLong}
	case 'Q':
		t = &Type{Kind: KindPrimitive, Primitive: UnsignedLongLong}
	case 'f':
		t = &Type{Kind: KindPrimitive, Primitive: Float}
	case 'd':
		t = &Type{Kind: KindPrimitive, Primitive: Double}
	case 'B':
		t = &Type{Kind: KindPrimitive, Primitive: Bool}
	case 'v':
		t = &Type{Kind: KindPrimitive, Primitive: Void}
	case '*':
		t = &Type{Kind: KindPrimitive, Primitive: CString}
	case '#':
		t = &Type{Kind: KindClass}
	case ':':
		t = &Type{Kind: KindSelector}
	case '?':
		t = &Type{Kind: KindUnknown}
	case '@':
		if d.peek() == '?' {
			d.i++
			t = &Type{Kind: KindBlock}
		} else {
			t = &Type{Kind: KindObject, Name: d.readOptName()}
		}
	case '^':
		if d.peek() == '?' {
			d.i++
			t = &Type{Kind: KindPointer, Elem: &Type{Kind: KindPrimitive, Primitive: Void}}
		} else {
			sub, ok := d.parseOne()
			if !ok {
				log.Warnf("objc: malformed pointer encoding %q at offset %d", d.s, d.i)
				return nil, false
			}
			t = &Type{Kind: KindPointer, Elem: sub}
		}
	case '[':
		t = d.parseArray()
		if t == nil {
			return nil, false
		}
	case '{':
		t = d.parseAggregate(KindStruct, '}')
		if t == nil {
			return nil, false
		}
	case '(':
		t = d.parseAggregate(KindUnion, ')')
		if t == nil {
			return nil, false
		}
	case 'b':
		n, ok := d.readNumber()
		if !ok {
			log.Warnf("objc: malformed bitfield encoding %q at offset %d", d.s, d.i)
			return nil, false
		}
		t = &Type{Kind: KindBitfield, BitSize: n}
	default:
		log.Warnf("objc: unrecognized type specifier %q in encoding %q at offset %d", c, d.s, d.i-1)
		return nil, false
	}
	t.Qualifiers = quals
	return t, true
}

func (d *decoder) parseArray() *Type {
	n, ok := d.readNumber()
	if !ok {
		log.Warnf("objc: malformed array length in %q at offset %d", d.s, d.i)
		return nil
	}
	elem, ok := d.parseOne()
	if !ok {
		log.Warnf("objc: malformed array element type in %q at offset %d", d.s, d.i)
		return nil
	}
	if d.atEnd() || d.peek() != ']' {
		log.Warnf("objc: unterminated array in %q at offset %d", d.s, d.i)
		return nil
	}
	d.i++
	return &Type{Kind: KindArray, ArrayLen: n, Elem: elem}
}

// parseAggregate reads a struct or union body: {Name=fields} or {Name}
// (forward declaration, no fields) or {?=fields} (anonymous).
func (d *decoder) parseAggregate(kind Kind, closer byte) *Type {
	name := d.readTagName()
	if !d.atEnd() && d.peek() == '=' {
		d.i++
		var fields []Field
		for !d.atEnd() && d.peek() != closer {
			fieldName := d.readOptName()
			ft, ok := d.parseOne()
			if !ok {
				log.Warnf("objc: malformed aggregate field in %q at offset %d", d.s, d.i)
				return nil
			}
			fields = append(fields, Field{Name: fieldName, Type: ft})
		}
		if d.atEnd() {
			log.Warnf("objc: unterminated aggregate %q at offset %d", d.s, d.i)
			return nil
		}
		d.i++ // closer
		return &Type{Kind: kind, Name: name, Fields: fields}
	}
	if d.atEnd() || d.peek() != closer {
		log.Warnf("objc: unterminated aggregate %q at offset %d", d.s, d.i)
		return nil
	}
	d.i++
	return &Type{Kind: kind, Name: name}
}

// readTagName reads the name portion of a struct/union tag: an optional
// leading '?' (anonymous marker, discarded) followed by any run of
// characters up to '=' or the closing delimiter.
func (d *decoder) readTagName() string {
	if !d.atEnd() && d.peek() == '?' {
		d.i++
		return ""
	}
	start := d.i
	for !d.atEnd() && d.peek() != '=' && d.peek() != '}' && d.peek() != ')' {
		d.i++
	}
	return d.s[start:d.i]
}

// DecodeType decodes a raw Objective-C type-encoding string into an ordered
// sequence of top-level types. For an ivar or property encoding this
// sequence normally has exactly one element; for a method encoding it's the
// return type followed by each parameter type, self and _cmd included.
//
// Decoding stops at the first unrecognized specifier and returns whatever
// prefix was already decoded, along with the error describing the failure.
// A completely empty or fully-decoded input returns a nil error.
func DecodeType(encoded string) ([]*Type, error) {
	d := &decoder{s: encoded}
	var out []*Type
	for {
		// Trailing digits after the last real unit are a frame offset
		// with nothing left to attach to, not a parse failure; skip them
		// before deciding whether any input remains.
		d.skipDigits()
		if d.atEnd() {
			return out, nil
		}
		t, ok := d.parseOne()
		if !ok {
			if len(out) == 0 {
				return out, fmt.Errorf("objc: could not decode type encoding %q", encoded)
			}
			return out, fmt.Errorf("objc: decoding %q stopped at offset %d", encoded, d.i)
		}
		out = append(out, t)
	}
}

// FormatFields renders a struct/union's field list the way a C declaration
// would, used by Type.String for struct and union types. It's a thin
// convenience, not a general pretty-printer.
func FormatFields(fields []Field) string {
	parts := make([]string, 0, len(fields))
	for i, f := range fields {
		name := f.Name
		if name == "" {
			name = fmt.Sprintf("x%d", i)
		}
		parts = append(parts, fmt.Sprintf("%s %s", f.Type.String(), name))
	}
	return strings.Join(parts, "; ")
}

func structString(keyword, name string, fields []Field) string {
	if fields == nil {
		if name == "" {
			return keyword
		}
		return keyword + " " + name
	}
	body := keyword
	if name != "" {
		body += " " + name
	}
	return body + " {" + FormatFields(fields) + "}"
}
