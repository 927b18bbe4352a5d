// Package capnp implements the Cap'n Proto wire format.
//
// # Overview
//
// Messages are built and read in place: typed accessors read and write
// directly against segment buffers, with no intermediate decode pass. The
// package covers the memory and pointer engine (arenas, segments, struct,
// list, far and capability pointers), the orphan/adopt ownership transfer
// protocol, stream framing, and the typed struct/list accessor layer with
// default-value masking and schema-evolution resizing.
//
// # Key Types
//
//   - Message: owns an Arena and its Segments, the root pointer and the
//     traversal budget
//   - Arena: decides how segment buffers grow (SingleSegmentArena,
//     MultiSegmentArena)
//   - Segment: one word-aligned buffer with a bump allocator
//   - Pointer: a view of one 8-byte pointer word
//   - Struct, List: views of object content, resolved once
//   - Orphan: content detached from its parent slot, pending adoption
//
// # Building a Message
//
//	msg := capnp.NewMessage()
//	root, err := msg.InitRoot(capnp.ObjectSize{DataByteLength: 8, PointerLength: 1})
//	if err != nil {
//	    return err
//	}
//	_ = root.SetUint32(0, 42)
//	_ = root.SetText(0, "hi")
//	wire, err := msg.MarshalPacked()
//
// # Reading a Message
//
//	msg, err := capnp.UnmarshalPacked(wire)
//	root, err := msg.Root(capnp.ObjectSize{DataByteLength: 8, PointerLength: 1})
//	n := root.Uint32(0)
//	s, err := root.Text(0, "")
//
// # Pointer Encoding
//
// The low two bits of a pointer word select its kind:
//
//	00 struct   30-bit word offset, 16-bit data words, 16-bit pointer count
//	01 list     30-bit word offset, 3-bit element size, 29-bit count
//	10 far      double-far flag, 29-bit landing pad offset, 32-bit segment id
//	11 other    32-bit capability index
//
// An all-zero word is a null pointer. Content that lands in a different
// segment than its pointer is reached through a far pointer and a landing
// pad; when the content segment has no room for a pad, a two-word pad is
// placed in the pointer's own segment (double far).
//
// # Safety Limits
//
// Every Pointer construction charges 8 bytes against the message's traversal
// budget (64 MiB by default) and every nested dereference consumes one unit
// of depth (64 by default). Exceeding either returns ErrTraverseLimit or
// ErrDepthLimit. Malformed input never panics.
//
// # Schema Evolution
//
// Getters that return a struct (Message.Root, Struct.Struct) grow content
// written by an older schema to the requested ObjectSize: the data section
// is copied, pointers are re-targeted into the new location, the old words
// are zeroed. Content is never truncated. Composite lists are grown the same
// way element by element.
//
// Data getters reading past the data section return the field default;
// setters past the data section return ErrDataOutOfBounds.
//
// # Thread Safety
//
// A Message and everything derived from it (Segments, Pointers, Structs,
// Lists, Orphans) is not safe for concurrent mutation. Hand off ownership
// between goroutines, or share only the marshaled bytes.
//
// # Related Packages
//
//   - github.com/joshuapare/capnkit/capnp/packed: Packing compression
//   - github.com/joshuapare/capnkit/capnp/stream: Message streams over io.Reader/io.Writer
//   - github.com/joshuapare/capnkit/capnp/walker: Schema-less traversal and statistics
package capnp
