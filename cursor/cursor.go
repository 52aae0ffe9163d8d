// Package cursor provides a positioned reader over a virtual address space
// backed by an image.BinaryImage. It centralizes the address-to-bytes
// resolution the parser otherwise would have to repeat at every read: find
// the segment containing a virtual address, translate that address to an
// offset into the segment's own content, and fail cleanly when the address
// isn't mapped at all.
package cursor

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/coredump-labs/objcmeta/image"
)

// Error classifies why a read failed, matching the taxonomy the parser uses
// to decide whether to skip an entity and keep going or abort entirely.
type Error struct {
	Op   string
	Addr uint64
	Kind ErrorKind
}

type ErrorKind int

const (
	// ErrOutOfRange means the address doesn't fall within any segment.
	ErrOutOfRange ErrorKind = iota
	// ErrUnmapped means the address falls within a segment's virtual size
	// but past the portion backed by file content (e.g. zero-fill BSS).
	ErrUnmapped
	// ErrShortRead means a segment's content was shorter than the bytes
	// requested, i.e. the binary is truncated or corrupt at that point.
	ErrShortRead
)

func (e *Error) Error() string {
	var what string
	switch e.Kind {
	case ErrOutOfRange:
		what = "address not mapped by any segment"
	case ErrUnmapped:
		what = "address outside segment's file-backed content"
	case ErrShortRead:
		what = "short read"
	}
	return fmt.Sprintf("cursor: %s at %#x: %s", e.Op, e.Addr, what)
}

// Cursor is a positioned reader over img's virtual address space. Its
// current position (Pos) is always a virtual address, never a raw file
// offset: every read resolves that address through img at the moment of the
// read, so a Cursor stays valid even if the caller jumps between segments.
type Cursor struct {
	img image.BinaryImage
	pos uint64

	// segCache avoids re-resolving the same segment's content on every
	// read; it's invalidated whenever pos moves outside the cached range.
	segStart uint64
	segEnd   uint64
	segData  []byte
}

// New returns a Cursor positioned at addr.
func New(img image.BinaryImage, addr uint64) *Cursor {
	return &Cursor{img: img, pos: addr}
}

// Pos returns the cursor's current virtual address.
func (c *Cursor) Pos() uint64 { return c.pos }

// SetPos moves the cursor to addr without reading anything.
func (c *Cursor) SetPos(addr uint64) { c.pos = addr }

func (c *Cursor) resolve(addr uint64, size int) ([]byte, error) {
	if addr < c.segStart || addr+uint64(size) > c.segEnd || c.segData == nil {
		seg, ok := c.img.SegmentFromVirtualAddress(addr)
		if !ok {
			return nil, &Error{Op: "resolve", Addr: addr, Kind: ErrOutOfRange}
		}
		data, err := seg.Content()
		if err != nil {
			return nil, &Error{Op: "resolve", Addr: addr, Kind: ErrUnmapped}
		}
		c.segStart = seg.VirtualAddress()
		c.segEnd = c.segStart + uint64(len(data))
		c.segData = data
		if addr >= c.segEnd {
			return nil, &Error{Op: "resolve", Addr: addr, Kind: ErrUnmapped}
		}
	}
	off := addr - c.segStart
	if off+uint64(size) > uint64(len(c.segData)) {
		return nil, &Error{Op: "resolve", Addr: addr, Kind: ErrShortRead}
	}
	return c.segData[off : off+uint64(size)], nil
}

// PeekBytes reads n bytes at addr without moving the cursor.
func (c *Cursor) PeekBytes(addr uint64, n int) ([]byte, error) {
	b, err := c.resolve(addr, n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// PeekStruct decodes a fixed-layout little-endian struct at addr into out,
// which must be a pointer, without moving the cursor.
func (c *Cursor) PeekStruct(addr uint64, out interface{}) error {
	n := binary.Size(out)
	if n < 0 {
		return fmt.Errorf("cursor: %T is not a fixed-size struct", out)
	}
	b, err := c.resolve(addr, n)
	if err != nil {
		return err
	}
	return binary.Read(bytes.NewReader(b), binary.LittleEndian, out)
}

// ReadStruct decodes a struct at the current position and advances the
// cursor past it.
func (c *Cursor) ReadStruct(out interface{}) error {
	n := binary.Size(out)
	if n < 0 {
		return fmt.Errorf("cursor: %T is not a fixed-size struct", out)
	}
	if err := c.PeekStruct(c.pos, out); err != nil {
		return err
	}
	c.pos += uint64(n)
	return nil
}

// PeekUint64 reads a little-endian uint64 at addr without moving the cursor.
func (c *Cursor) PeekUint64(addr uint64) (uint64, error) {
	b, err := c.resolve(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// PeekUint32 reads a little-endian uint32 at addr without moving the cursor.
func (c *Cursor) PeekUint32(addr uint64) (uint32, error) {
	b, err := c.resolve(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadUint64 reads a little-endian uint64 at the current position and
// advances the cursor by 8 bytes.
func (c *Cursor) ReadUint64() (uint64, error) {
	v, err := c.PeekUint64(c.pos)
	if err != nil {
		return 0, err
	}
	c.pos += 8
	return v, nil
}

// PeekCString reads a NUL-terminated string at addr without moving the
// cursor. It reads in small chunks rather than assuming the whole string
// fits in whatever segment content was already resolved.
func (c *Cursor) PeekCString(addr uint64) (string, error) {
	const chunk = 64
	var out []byte
	for {
		b, err := c.resolve(addr+uint64(len(out)), chunk)
		if err != nil {
			// Near the tail of a segment a full chunk may not fit; a
			// string that ends there is still fine, so fall back to a
			// single byte and fail only when even that can't be read.
			b, err = c.resolve(addr+uint64(len(out)), 1)
			if err != nil {
				return "", err
			}
		}
		if idx := bytes.IndexByte(b, 0); idx >= 0 {
			out = append(out, b[:idx]...)
			return string(out), nil
		}
		out = append(out, b...)
		if len(out) > 1<<20 {
			return "", fmt.Errorf("cursor: string at %#x exceeds 1MiB without a terminator", addr)
		}
	}
}

// ScopedSeek moves the cursor to addr, runs fn, and restores the original
// position on every exit path, including a panic or an error returned by
// fn. This is what lets the parser recurse into a superclass or a protocol
// reference and then keep walking the caller's own method/ivar/property
// lists from wherever they left off.
func (c *Cursor) ScopedSeek(addr uint64, fn func() error) (err error) {
	saved := c.pos
	defer func() { c.pos = saved }()
	c.pos = addr
	return fn()
}
