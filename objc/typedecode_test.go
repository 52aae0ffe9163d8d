package objc

import "testing"

func TestDecodeTypeMethodSignature(t *testing.T) {
	got, err := DecodeType("v16@0:8")
	if err != nil {
		t.Fatalf("DecodeType returned error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 top-level types, got %d: %v", len(got), got)
	}
	if got[0].Kind != KindPrimitive || got[0].Primitive != Void {
		t.Errorf("types[0] = %+v, want Void", got[0])
	}
	if got[1].Kind != KindObject || got[1].Name != "" {
		t.Errorf("types[1] = %+v, want untyped Object", got[1])
	}
	if got[2].Kind != KindSelector {
		t.Errorf("types[2] = %+v, want Selector", got[2])
	}
}

func TestDecodeTypePrimitives(t *testing.T) {
	cases := map[string]Primitive{
		"c": Char, "i": Int, "s": Short, "l": Long, "q": LongLong,
		"C": UnsignedChar, "I": UnsignedInt, "S": UnsignedShort,
		"L": UnsignedLong, "Q": UnsignedLongLong,
		"f": Float, "d": Double, "B": Bool, "v": Void, "*": CString,
	}
	for enc, want := range cases {
		got, err := DecodeType(enc)
		if err != nil || len(got) != 1 {
			t.Fatalf("DecodeType(%q) = %v, %v", enc, got, err)
		}
		if got[0].Primitive != want {
			t.Errorf("DecodeType(%q) = %v, want %v", enc, got[0].Primitive, want)
		}
	}
}

func TestDecodeTypeObjectWithName(t *testing.T) {
	got, err := DecodeType(`@"NSString"`)
	if err != nil || len(got) != 1 {
		t.Fatalf("DecodeType = %v, %v", got, err)
	}
	if got[0].Kind != KindObject || got[0].Name != "NSString" {
		t.Errorf("got %+v, want Object{NSString}", got[0])
	}
}

func TestDecodeTypeBlock(t *testing.T) {
	got, err := DecodeType("@?")
	if err != nil || len(got) != 1 || got[0].Kind != KindBlock {
		t.Fatalf("DecodeType(@?) = %v, %v", got, err)
	}
}

func TestDecodeTypeVoidPointerShorthand(t *testing.T) {
	got, err := DecodeType("^?")
	if err != nil || len(got) != 1 {
		t.Fatalf("DecodeType(^?) = %v, %v", got, err)
	}
	if got[0].Kind != KindPointer || got[0].Elem.Primitive != Void {
		t.Errorf("got %+v, want Pointer(Void)", got[0])
	}
}

func TestDecodeTypePointerToPrimitive(t *testing.T) {
	got, err := DecodeType("^i")
	if err != nil || len(got) != 1 {
		t.Fatalf("DecodeType(^i) = %v, %v", got, err)
	}
	if got[0].Kind != KindPointer || got[0].Elem.Primitive != Int {
		t.Errorf("got %+v, want Pointer(Int)", got[0])
	}
}

func TestDecodeTypeArray(t *testing.T) {
	got, err := DecodeType("[12^v]")
	if err != nil || len(got) != 1 {
		t.Fatalf("DecodeType = %v, %v", got, err)
	}
	arr := got[0]
	if arr.Kind != KindArray || arr.ArrayLen != 12 {
		t.Fatalf("got %+v, want Array(12, ...)", arr)
	}
	if arr.Elem.Kind != KindPointer || arr.Elem.Elem.Primitive != Void {
		t.Errorf("array element = %+v, want Pointer(Void)", arr.Elem)
	}
}

func TestDecodeTypeNamedStruct(t *testing.T) {
	got, err := DecodeType(`{test=@*i}`)
	if err != nil || len(got) != 1 {
		t.Fatalf("DecodeType = %v, %v", got, err)
	}
	s := got[0]
	if s.Kind != KindStruct || s.Name != "test" {
		t.Fatalf("got %+v, want Struct{test}", s)
	}
	if len(s.Fields) != 3 {
		t.Fatalf("got %d fields, want 3: %+v", len(s.Fields), s.Fields)
	}
	if s.Fields[0].Type.Kind != KindObject {
		t.Errorf("field 0 = %+v, want Object", s.Fields[0])
	}
	if s.Fields[1].Type.Primitive != CString {
		t.Errorf("field 1 = %+v, want CString", s.Fields[1])
	}
	if s.Fields[2].Type.Primitive != Int {
		t.Errorf("field 2 = %+v, want Int", s.Fields[2])
	}
}

func TestDecodeTypeAnonymousStructWithNamedFields(t *testing.T) {
	got, err := DecodeType(`{?="val"[8I]}`)
	if err != nil || len(got) != 1 {
		t.Fatalf("DecodeType = %v, %v", got, err)
	}
	s := got[0]
	if s.Kind != KindStruct || s.Name != "" {
		t.Fatalf("got %+v, want anonymous Struct", s)
	}
	if len(s.Fields) != 1 || s.Fields[0].Name != "val" {
		t.Fatalf("got %+v, want one field named val", s.Fields)
	}
	if s.Fields[0].Type.Kind != KindArray || s.Fields[0].Type.ArrayLen != 8 {
		t.Errorf("field type = %+v, want Array(8, UnsignedInt)", s.Fields[0].Type)
	}
}

func TestDecodeTypeForwardDeclaredStruct(t *testing.T) {
	got, err := DecodeType(`{__xar_t=}`)
	if err != nil || len(got) != 1 {
		t.Fatalf("DecodeType = %v, %v", got, err)
	}
	s := got[0]
	if s.Kind != KindStruct || s.Name != "__xar_t" || len(s.Fields) != 0 {
		t.Fatalf("got %+v, want empty-bodied struct __xar_t", s)
	}
}

func TestDecodeTypeForwardDeclaredStructNoEquals(t *testing.T) {
	got, err := DecodeType(`{Foo}`)
	if err != nil || len(got) != 1 {
		t.Fatalf("DecodeType = %v, %v", got, err)
	}
	s := got[0]
	if s.Kind != KindStruct || s.Name != "Foo" || s.Fields != nil {
		t.Fatalf("got %+v, want forward-declared struct Foo with nil fields", s)
	}
}

func TestDecodeTypeUnion(t *testing.T) {
	got, err := DecodeType(`(?="fat"^S"thin"*)`)
	if err != nil || len(got) != 1 {
		t.Fatalf("DecodeType = %v, %v", got, err)
	}
	u := got[0]
	if u.Kind != KindUnion || len(u.Fields) != 2 {
		t.Fatalf("got %+v, want 2-field union", u)
	}
	if u.Fields[0].Name != "fat" || u.Fields[1].Name != "thin" {
		t.Errorf("got field names %q, %q", u.Fields[0].Name, u.Fields[1].Name)
	}
}

func TestDecodeTypeBitfield(t *testing.T) {
	got, err := DecodeType("b13")
	if err != nil || len(got) != 1 {
		t.Fatalf("DecodeType = %v, %v", got, err)
	}
	if got[0].Kind != KindBitfield || got[0].BitSize != 13 {
		t.Errorf("got %+v, want Bitfield(13)", got[0])
	}
}

func TestDecodeTypeQualifiers(t *testing.T) {
	got, err := DecodeType("rNi")
	if err != nil || len(got) != 1 {
		t.Fatalf("DecodeType = %v, %v", got, err)
	}
	q := got[0].Qualifiers
	if !q.Has(QualConst) || !q.Has(QualInOut) {
		t.Errorf("qualifiers = %v, want Const|InOut", q)
	}
	if got[0].Primitive != Int {
		t.Errorf("got %+v, want Int underneath the qualifiers", got[0])
	}
}

func TestDecodeTypeUnknownSpecifierStopsAndReturnsPrefix(t *testing.T) {
	got, err := DecodeType("i~i")
	if err == nil {
		t.Fatal("expected an error for the unrecognized '~' specifier")
	}
	if len(got) != 1 || got[0].Primitive != Int {
		t.Fatalf("got %+v, want the Int prefix preserved", got)
	}
}

func TestDecodeTypeEmptyEncoding(t *testing.T) {
	got, err := DecodeType("")
	if err != nil {
		t.Fatalf("unexpected error for empty encoding: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want no types", got)
	}
}

func TestIVarDecodedTypeRequiresExactlyOneType(t *testing.T) {
	iv := IVar{Type: "i"}
	typ, ok := iv.DecodedType()
	if !ok || typ.Primitive != Int {
		t.Fatalf("got %v, %v, want Int", typ, ok)
	}

	multi := IVar{Type: "v16@0:8"}
	if _, ok := multi.DecodedType(); ok {
		t.Errorf("expected DecodedType to refuse a multi-type encoding")
	}
}

func TestMethodPrototypeSplitsReturnAndParams(t *testing.T) {
	m := Method{Name: "bar:", Types: "i24@0:8@16"}
	ret, params, err := m.Prototype()
	if err != nil {
		t.Fatalf("Prototype() error: %v", err)
	}
	if ret.Primitive != Int {
		t.Errorf("ret = %+v, want Int", ret)
	}
	if len(params) != 3 || params[0].Kind != KindObject || params[1].Kind != KindSelector || params[2].Kind != KindObject {
		t.Errorf("params = %+v, want [self, _cmd, arg]", params)
	}
}
