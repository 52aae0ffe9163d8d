package cursor_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/coredump-labs/objcmeta/cursor"
	"github.com/coredump-labs/objcmeta/image"
)

// fakeSegment and fakeImage give the cursor tests a minimal, in-memory
// BinaryImage without depending on a real Mach-O file.
type fakeSegment struct {
	name string
	addr uint64
	data []byte
}

func (s *fakeSegment) Name() string            { return s.name }
func (s *fakeSegment) VirtualAddress() uint64   { return s.addr }
func (s *fakeSegment) Size() uint64             { return uint64(len(s.data)) }
func (s *fakeSegment) Content() ([]byte, error) { return s.data, nil }

type fakeImage struct {
	segments []*fakeSegment
}

func (f *fakeImage) Sections(segment string) []image.Section { return nil }
func (f *fakeImage) Section(segment, name string) (image.Section, bool) { return nil, false }
func (f *fakeImage) SegmentFromVirtualAddress(vaddr uint64) (image.Segment, bool) {
	for _, s := range f.segments {
		if vaddr >= s.addr && vaddr < s.addr+uint64(len(s.data)) {
			return s, true
		}
	}
	return nil, false
}
func (f *fakeImage) Imagebase() uint64         { return 0 }
func (f *fakeImage) MemoryBaseAddress() uint64 { return 0 }

func newFakeImage() *fakeImage {
	data := make([]byte, 0x100)
	binary.LittleEndian.PutUint64(data[0x10:], 0xdeadbeefcafebabe)
	copy(data[0x20:], "hello\x00world")
	return &fakeImage{segments: []*fakeSegment{{name: "__DATA", addr: 0x1000, data: data}}}
}

func TestPeekUint64(t *testing.T) {
	img := newFakeImage()
	c := cursor.New(img, 0x1000)
	v, err := c.PeekUint64(0x1010)
	if err != nil {
		t.Fatalf("PeekUint64: %v", err)
	}
	if v != 0xdeadbeefcafebabe {
		t.Errorf("got %#x, want 0xdeadbeefcafebabe", v)
	}
	if c.Pos() != 0x1000 {
		t.Errorf("PeekUint64 moved the cursor to %#x", c.Pos())
	}
}

func TestReadUint64Advances(t *testing.T) {
	img := newFakeImage()
	c := cursor.New(img, 0x1010)
	v, err := c.ReadUint64()
	if err != nil {
		t.Fatalf("ReadUint64: %v", err)
	}
	if v != 0xdeadbeefcafebabe {
		t.Errorf("got %#x", v)
	}
	if c.Pos() != 0x1018 {
		t.Errorf("Pos() = %#x, want 0x1018", c.Pos())
	}
}

func TestPeekCString(t *testing.T) {
	img := newFakeImage()
	c := cursor.New(img, 0x1000)
	s, err := c.PeekCString(0x1020)
	if err != nil {
		t.Fatalf("PeekCString: %v", err)
	}
	if s != "hello" {
		t.Errorf("got %q, want %q", s, "hello")
	}
}

func TestPeekUint64OutOfRange(t *testing.T) {
	img := newFakeImage()
	c := cursor.New(img, 0x1000)
	_, err := c.PeekUint64(0x9000)
	if err == nil {
		t.Fatal("expected an out-of-range error")
	}
	var cerr *cursor.Error
	if !errors.As(err, &cerr) || cerr.Kind != cursor.ErrOutOfRange {
		t.Errorf("got %v, want ErrOutOfRange", err)
	}
}

func TestScopedSeekRestoresPositionOnSuccess(t *testing.T) {
	img := newFakeImage()
	c := cursor.New(img, 0x1000)
	err := c.ScopedSeek(0x1020, func() error {
		if c.Pos() != 0x1020 {
			t.Errorf("inside ScopedSeek, Pos() = %#x, want 0x1020", c.Pos())
		}
		_, _ = c.ReadUint64()
		return nil
	})
	if err != nil {
		t.Fatalf("ScopedSeek returned error: %v", err)
	}
	if c.Pos() != 0x1000 {
		t.Errorf("Pos() after ScopedSeek = %#x, want 0x1000 restored", c.Pos())
	}
}

func TestScopedSeekRestoresPositionOnError(t *testing.T) {
	img := newFakeImage()
	c := cursor.New(img, 0x1000)
	wantErr := errors.New("boom")
	err := c.ScopedSeek(0x1020, func() error {
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
	if c.Pos() != 0x1000 {
		t.Errorf("Pos() after failing ScopedSeek = %#x, want 0x1000 restored", c.Pos())
	}
}

func TestScopedSeekRestoresPositionOnPanic(t *testing.T) {
	img := newFakeImage()
	c := cursor.New(img, 0x1000)
	func() {
		defer func() { recover() }()
		c.ScopedSeek(0x1020, func() error {
			panic("boom")
		})
	}()
	if c.Pos() != 0x1000 {
		t.Errorf("Pos() after panicking ScopedSeek = %#x, want 0x1000 restored", c.Pos())
	}
}
