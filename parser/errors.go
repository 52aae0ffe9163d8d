package parser

import "fmt"

// LoadError is returned by Parse when an image has neither an
// __objc_classlist nor an __objc_protolist section. The Catalog Parse
// returns alongside it is still valid (simply empty); LoadError exists so a
// caller can distinguish "nothing to extract" from a successful parse of an
// object that happens to declare no classes.
type LoadError struct {
	Path string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("parser: %s has no Objective-C class or protocol list", e.Path)
}

// ReadError reports a failed attempt to read one entity's fixed-layout
// struct out of the image. Cause is normally a *cursor.Error, which already
// classifies the failure as out-of-range, unmapped, or a short read. Every
// ReadError reaching the top-level build functions is non-fatal there: the
// caller logs it and moves on to the entity's siblings.
type ReadError struct {
	Entity string
	Addr   uint64
	Cause  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("parser: reading %s at %#x: %v", e.Entity, e.Addr, e.Cause)
}

func (e *ReadError) Unwrap() error { return e.Cause }
