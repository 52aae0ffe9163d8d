package objc

import "testing"

func TestCatalogClassLookup(t *testing.T) {
	cat := NewCatalog()
	foo := &Class{Name: "Foo", Offset: 0x1000}
	cat.AddClass(foo)

	if got, _ := cat.ClassAtOffset(0x1000); got != foo {
		t.Errorf("ClassAtOffset = %v, want %v", got, foo)
	}
	if got := cat.ClassByName("Foo"); got != foo {
		t.Errorf("ClassByName = %v, want %v", got, foo)
	}
	if got := cat.ClassByName("Bar"); got != nil {
		t.Errorf("ClassByName(Bar) = %v, want nil", got)
	}
	if len(cat.Classes()) != 1 {
		t.Errorf("Classes() = %v, want one entry", cat.Classes())
	}
}

func TestCatalogDuplicateNameLastWins(t *testing.T) {
	cat := NewCatalog()
	first := &Class{Name: "Dup", Offset: 0x100}
	second := &Class{Name: "Dup", Offset: 0x200}
	cat.AddClass(first)
	cat.AddClass(second)

	if got := cat.ClassByName("Dup"); got != second {
		t.Errorf("ClassByName(Dup) = %v, want the most recently added entry", got)
	}
	if len(cat.Classes()) != 2 {
		t.Errorf("Classes() = %d entries, want both kept distinct by offset", len(cat.Classes()))
	}
}

func TestCatalogAddClassPanicsOnDuplicateOffset(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected a panic for duplicate offset registration")
		}
	}()
	cat := NewCatalog()
	cat.AddClass(&Class{Name: "A", Offset: 0x1000})
	cat.AddClass(&Class{Name: "B", Offset: 0x1000})
}

func TestCatalogProtocolLookup(t *testing.T) {
	cat := NewCatalog()
	p := &Protocol{Name: "NSCopying", Offset: 0x500}
	cat.AddProtocol(p)

	if got, ok := cat.ProtocolAtOffset(0x500); !ok || got != p {
		t.Errorf("ProtocolAtOffset = %v, %v, want %v, true", got, ok, p)
	}
	if got := cat.ProtocolByName("NSCopying"); got != p {
		t.Errorf("ProtocolByName = %v, want %v", got, p)
	}
}
