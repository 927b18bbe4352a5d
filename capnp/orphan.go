package capnp

import (
	"fmt"

	"github.com/joshuapare/capnkit/internal/format"
)

// Orphan is content detached from its parent slot. It keeps the content's
// type and size so it can be attached to another slot of the same message
// with Adopt, or zeroed with Dispose. Either call consumes the orphan; any
// later use returns ErrOrphanConsumed.
type Orphan struct {
	msg      *Message
	word     uint64 // struct, list or capability word; offset bits are zero
	seg      *Segment
	off      int // content start; the tag word for composite lists
	consumed bool
}

// Disown detaches the content of p and zeroes p (and any far landing pads).
// The content itself is left in place.
func (p Pointer) Disown() (*Orphan, error) {
	if err := p.writable(); err != nil {
		return nil, err
	}
	t, err := p.resolve()
	if err != nil {
		return nil, err
	}

	o := &Orphan{msg: p.seg.msg, seg: t.seg, off: t.off}
	switch {
	case t.isNull():
	case t.kind() == format.PointerOther:
		o.word = t.word
		o.seg = nil
	default:
		o.word = canonical(t.word)
	}

	t.clearPads()
	p.seg.setWordZero(p.off)
	return o, nil
}

// Adopt erases the current content of p and attaches o in its place.
func (p Pointer) Adopt(o *Orphan) error {
	if err := p.writable(); err != nil {
		return err
	}
	if o == nil || o.consumed {
		return ErrOrphanConsumed
	}
	if o.msg != p.seg.msg {
		return ErrAdoptWrongMessage
	}
	if err := eraseSlot(p); err != nil {
		return err
	}
	if err := writeContent(p.seg, p.off, o.word, o.seg, o.off); err != nil {
		return fmt.Errorf("adopt: %w", err)
	}
	o.consumed = true
	return nil
}

// Dispose zeroes the orphaned content.
func (o *Orphan) Dispose() error {
	if o == nil || o.consumed {
		return ErrOrphanConsumed
	}
	if o.msg.readOnly {
		return ErrReadOnly
	}
	if err := o.target().eraseContent(); err != nil {
		return err
	}
	o.consumed = true
	return nil
}

func (o *Orphan) target() target {
	return target{word: o.word, seg: o.seg, off: o.off, depth: o.msg.depthLimit - 1}
}

// Consumed reports whether the orphan was adopted or disposed.
func (o *Orphan) Consumed() bool { return o.consumed }

// IsNull reports whether the orphan was disowned from a null pointer.
func (o *Orphan) IsNull() bool { return o.word == 0 }

// Type returns the kind of the orphaned content.
func (o *Orphan) Type() PointerType { return PointerType(format.Kind(o.word)) }

// StructSize returns the size of an orphaned struct.
func (o *Orphan) StructSize() ObjectSize {
	if o.word == 0 || format.Kind(o.word) != format.PointerStruct {
		return ObjectSize{}
	}
	return structSizeOf(o.word)
}

// ElementSize returns the element size of an orphaned list.
func (o *Orphan) ElementSize() ListElementSize {
	return ListElementSize(format.ListElementSize(o.word))
}

// Len returns the element count of an orphaned list.
func (o *Orphan) Len() int {
	if format.Kind(o.word) != format.PointerList {
		return 0
	}
	if o.ElementSize() == ElementComposite {
		return int(format.Offset(o.seg.word(o.off)))
	}
	return int(format.ListCount(o.word))
}

// CapabilityID returns the index of an orphaned capability pointer.
func (o *Orphan) CapabilityID() CapabilityID {
	return CapabilityID(format.CapabilityID(o.word))
}

// Struct returns a view of an orphaned struct.
func (o *Orphan) Struct() (Struct, error) {
	if o.consumed {
		return Struct{}, ErrOrphanConsumed
	}
	if o.word == 0 {
		return Struct{}, nil
	}
	if format.Kind(o.word) != format.PointerStruct {
		return Struct{}, fmt.Errorf("%w: orphan is %s", ErrInvalidPointerType, o.Type())
	}
	return structView(o.target(), Pointer{}), nil
}

// List returns a view of an orphaned list.
func (o *Orphan) List() (List, error) {
	if o.consumed {
		return List{}, ErrOrphanConsumed
	}
	if o.word == 0 {
		return List{}, nil
	}
	if format.Kind(o.word) != format.PointerList {
		return List{}, fmt.Errorf("%w: orphan is %s", ErrInvalidPointerType, o.Type())
	}
	return listView(o.target()), nil
}
