package capnp

import "errors"

// Bounds and format errors. The message is assumed corrupt.
var (
	// ErrInvalidPointerType indicates a pointer of an unexpected kind.
	ErrInvalidPointerType = errors.New("capnp: invalid pointer type")

	// ErrPointerOutOfRange indicates a pointer or its content lies outside its segment.
	ErrPointerOutOfRange = errors.New("capnp: pointer out of segment bounds")

	// ErrFarToFar indicates a far pointer whose landing pad is itself a far pointer.
	ErrFarToFar = errors.New("capnp: far pointer lands on a far pointer")

	// ErrDataOutOfBounds indicates a data section access past the struct's size.
	ErrDataOutOfBounds = errors.New("capnp: data section access out of bounds")

	// ErrPointerOutOfBounds indicates a pointer section index past the struct's size.
	ErrPointerOutOfBounds = errors.New("capnp: pointer section index out of bounds")

	// ErrListIndexOutOfBounds indicates a list index past the list's length.
	ErrListIndexOutOfBounds = errors.New("capnp: list index out of bounds")

	// ErrInvalidElementSize indicates a list element size that does not match the request.
	ErrInvalidElementSize = errors.New("capnp: invalid list element size")

	// ErrInvalidFrame indicates a malformed stream frame header.
	ErrInvalidFrame = errors.New("capnp: invalid stream frame")

	// ErrNotWordAligned indicates a buffer whose length is not a multiple of 8.
	ErrNotWordAligned = errors.New("capnp: buffer not word aligned")

	// ErrSegmentOutOfBounds indicates a segment id outside the message.
	ErrSegmentOutOfBounds = errors.New("capnp: segment id out of bounds")

	// ErrSegmentShrink indicates an attempt to replace a segment buffer with a smaller one.
	ErrSegmentShrink = errors.New("capnp: replacement buffer smaller than segment")

	// ErrSegmentTooLarge indicates an allocation beyond the addressable segment size.
	ErrSegmentTooLarge = errors.New("capnp: segment too large")

	// ErrArenaShortAllocation indicates an arena returned a buffer too small for the request.
	ErrArenaShortAllocation = errors.New("capnp: arena allocation too small")

	// ErrObjectTooLarge indicates a struct size or list count that does not fit a pointer.
	ErrObjectTooLarge = errors.New("capnp: object too large for pointer encoding")
)

// Resource limit errors. Processing of the message must stop.
var (
	// ErrTraverseLimit indicates the message's traversal budget is exhausted.
	ErrTraverseLimit = errors.New("capnp: traversal limit exceeded")

	// ErrDepthLimit indicates pointers nested deeper than the depth limit.
	ErrDepthLimit = errors.New("capnp: depth limit exceeded")
)

// Protocol usage errors. These are programmer errors.
var (
	// ErrOrphanConsumed indicates an orphan that was already adopted or disposed.
	ErrOrphanConsumed = errors.New("capnp: orphan already consumed")

	// ErrAdoptWrongMessage indicates an orphan adopted into a different message.
	ErrAdoptWrongMessage = errors.New("capnp: orphan belongs to a different message")

	// ErrInitCompositeElement indicates an attempt to re-initialize a composite list element.
	ErrInitCompositeElement = errors.New("capnp: cannot initialize a composite list element")

	// ErrReadOnly indicates a write to a read-only message.
	ErrReadOnly = errors.New("capnp: message is read-only")

	// ErrNullStruct indicates a write through a struct view with no content.
	ErrNullStruct = errors.New("capnp: write to null struct")
)
