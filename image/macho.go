package image

import (
	"fmt"
	"os"

	gomacho "github.com/blacktop/go-macho"
	"github.com/edsrzf/mmap-go"
)

// MachoImage adapts a real github.com/blacktop/go-macho file, opened from a
// memory-mapped file, to the BinaryImage interface. It never reaches for
// that library's own Objective-C metadata support (types/objc); only the
// low-level segment/section/header surface is used, so the parser package
// remains the sole place that understands the runtime's on-disk layout.
type MachoImage struct {
	file   *gomacho.File
	region mmap.MMap
	closer *os.File
}

// Open opens path, memory-maps it, and selects a 64-bit architecture slice
// according to pref: pref == CPUTypeAny tries ARM64 first, then x86_64, the
// same order an iOS-focused toolchain would prefer; any other value demands
// that exact slice.
func Open(path string, pref CPUType) (*MachoImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("image: opening %s: %w", path, err)
	}
	region, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("image: mmapping %s: %w", path, err)
	}

	mf, err := selectSlice(region, pref)
	if err != nil {
		region.Unmap()
		f.Close()
		return nil, err
	}

	return &MachoImage{file: mf, region: region, closer: f}, nil
}

func selectSlice(region mmap.MMap, pref CPUType) (*gomacho.File, error) {
	fat, ferr := gomacho.NewFatFile(newReaderAt(region))
	if ferr != nil {
		// Not a fat binary: parse it directly as a single-slice image.
		f, err := gomacho.NewFile(newReaderAt(region))
		if err != nil {
			return nil, fmt.Errorf("image: parsing mach-o: %w", err)
		}
		return f, nil
	}
	defer fat.Close()

	order := []CPUType{pref}
	if pref == CPUTypeAny {
		order = []CPUType{CPUTypeArm64, CPUTypeX8664}
	}
	for _, want := range order {
		for _, arch := range fat.Arches {
			if CPUType(arch.CPU) == want {
				return arch.File, nil
			}
		}
	}
	return nil, &ErrNoSuchSlice{Want: pref}
}

// Close releases the memory mapping and the underlying file descriptor.
func (m *MachoImage) Close() error {
	m.region.Unmap()
	return m.closer.Close()
}

func (m *MachoImage) Sections(segment string) []Section {
	var out []Section
	for _, s := range m.file.Sections {
		if s.Seg == segment {
			out = append(out, &machoSection{s})
		}
	}
	return out
}

// Section follows the classic fallback order used to locate Objective-C
// metadata sections: __DATA, then __DATA_CONST, then __DATA_DIRTY, tried in
// that order whenever segment is left empty.
func (m *MachoImage) Section(segment, name string) (Section, bool) {
	segs := []string{segment}
	if segment == "" {
		segs = []string{"__DATA", "__DATA_CONST", "__DATA_DIRTY"}
	}
	for _, seg := range segs {
		if s := m.file.Section(seg, name); s != nil {
			return &machoSection{s}, true
		}
	}
	return nil, false
}

func (m *MachoImage) SegmentFromVirtualAddress(vaddr uint64) (Segment, bool) {
	seg := m.file.FindSegmentForVMAddr(vaddr)
	if seg == nil {
		return nil, false
	}
	return &machoSegment{seg}, true
}

func (m *MachoImage) Imagebase() uint64 { return m.file.GetBaseAddress() }

// MemoryBaseAddress is 0 for a plain on-disk Mach-O; it's only meaningful
// for images sliced out of a dyld shared cache, which this adapter doesn't
// yet support extracting. A shared-cache-aware adapter would populate this
// from the cache's mapping info instead.
func (m *MachoImage) MemoryBaseAddress() uint64 { return 0 }

type machoSection struct{ s *gomacho.Section }

func (s *machoSection) Name() string             { return s.s.Name }
func (s *machoSection) Segment() string          { return s.s.Seg }
func (s *machoSection) VirtualAddress() uint64   { return s.s.Addr }
func (s *machoSection) Content() ([]byte, error) { return s.s.Data() }

type machoSegment struct{ s *gomacho.Segment }

func (s *machoSegment) Name() string             { return s.s.Name }
func (s *machoSegment) VirtualAddress() uint64   { return s.s.Addr }
func (s *machoSegment) Size() uint64             { return s.s.Memsz }
func (s *machoSegment) Content() ([]byte, error) { return s.s.Data() }

// readerAt adapts an in-memory mmap region to io.ReaderAt without copying.
type readerAt struct{ b []byte }

func newReaderAt(b []byte) *readerAt { return &readerAt{b} }

func (r *readerAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(r.b)) {
		return 0, fmt.Errorf("image: read offset %d out of range", off)
	}
	n := copy(p, r.b[off:])
	if n < len(p) {
		return n, fmt.Errorf("image: short read at offset %d", off)
	}
	return n, nil
}
