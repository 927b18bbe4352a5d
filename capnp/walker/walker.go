// Package walker traverses the pointer graph of a Cap'n Proto message.
//
// Traversal is an iterative depth-first walk over an explicit stack, so deep
// messages cannot overflow the goroutine stack. Every pointer is resolved
// through the message, which means the message's traversal and depth limits
// apply to a walk exactly as they do to ordinary reads.
//
// Visits are reported in pre-order. Within a struct, pointer fields are
// visited in slot order; within a list, elements are visited in index order.
// Composite list elements are not pointers and are not visited themselves,
// but their pointer fields are, with paths such as "root.1[3].0".
//
// Example:
//
//	w := walker.NewWalker(msg)
//	err := w.WalkRoot(ctx, func(v walker.Visit) error {
//	    fmt.Println(v.Path, v.Kind)
//	    return nil
//	})
package walker

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/joshuapare/capnkit/capnp"
)

const (
	// initialStackCapacity covers the nesting of most messages without growing.
	initialStackCapacity = 256

	// ctxCheckInterval is how many visits pass between context checks.
	ctxCheckInterval = 1024

	// RootPath names the root pointer in Visit.Path.
	RootPath = "root"
)

// ErrStop may be returned by a visit function to end a walk early. Walk
// then returns nil.
var ErrStop = errors.New("walker: stop")

// ErrForeignPointer is returned when the starting pointer belongs to a
// different message than the walker.
var ErrForeignPointer = errors.New("walker: pointer belongs to another message")

// Kind classifies the content of a visited pointer.
type Kind uint8

const (
	KindNull Kind = iota
	KindStruct
	KindList
	KindCapability
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindStruct:
		return "struct"
	case KindList:
		return "list"
	case KindCapability:
		return "capability"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Visit describes one pointer reached during a walk.
type Visit struct {
	Path    string // "root", "root.2", "root.2[5].0", ...
	Depth   int    // 0 for the starting pointer
	Kind    Kind
	Pointer capnp.Pointer
	Content capnp.Content

	// StructSize is the struct size for KindStruct and the element size of
	// composite lists.
	StructSize  capnp.ObjectSize
	ElementSize capnp.ListElementSize
	Len         int

	CapID capnp.CapabilityID

	s capnp.Struct
	l capnp.List
}

// IsText reports whether the visit is a byte list ending in a NUL byte.
func (v Visit) IsText() bool {
	if v.Kind != KindList || v.ElementSize != capnp.ElementByte || v.Len == 0 {
		return false
	}
	return v.Content.Segment.Uint8(v.Content.Offset+v.Len-1) == 0
}

// Option configures a Walker.
type Option func(*Walker)

// WithNulls reports null pointers as KindNull visits. They are skipped by
// default.
func WithNulls() Option {
	return func(w *Walker) { w.nulls = true }
}

// WithMaxDepth stops descending below depth n. Pointers at depth n are
// still visited. A value < 0 means no limit, which is the default; the
// message depth limit still applies.
func WithMaxDepth(n int) Option {
	return func(w *Walker) { w.maxDepth = n }
}

type stackEntry struct {
	p     capnp.Pointer
	path  string
	depth int
}

// Walker walks the pointers of one message. A Walker is not safe for
// concurrent use but may be reused for several walks.
type Walker struct {
	msg      *capnp.Message
	stack    []stackEntry
	visits   int
	nulls    bool
	maxDepth int
}

// NewWalker returns a Walker for msg.
func NewWalker(msg *capnp.Message, opts ...Option) *Walker {
	w := &Walker{
		msg:      msg,
		stack:    make([]stackEntry, 0, initialStackCapacity),
		maxDepth: -1,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Visits returns the number of visits made by the last walk.
func (w *Walker) Visits() int { return w.visits }

// WalkRoot walks from the message's root pointer.
func (w *Walker) WalkRoot(ctx context.Context, fn func(Visit) error) error {
	root, err := w.msg.RootPointer()
	if err != nil {
		return fmt.Errorf("root pointer: %w", err)
	}
	return w.Walk(ctx, root, fn)
}

// Walk calls fn for root and every pointer reachable from it. The walk stops
// at the first error from fn, from resolving a pointer or from ctx.
func (w *Walker) Walk(ctx context.Context, root capnp.Pointer, fn func(Visit) error) error {
	if root.IsValid() && root.Message() != w.msg {
		return ErrForeignPointer
	}
	w.stack = w.stack[:0]
	w.visits = 0
	if !root.IsValid() {
		return nil
	}
	w.stack = append(w.stack, stackEntry{p: root, path: RootPath})

	for len(w.stack) > 0 {
		if w.visits%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		e := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]

		v, err := w.visit(e)
		if err != nil {
			return fmt.Errorf("%s: %w", e.path, err)
		}
		if v.Kind == KindNull && !w.nulls {
			continue
		}
		w.visits++
		if err := fn(v); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
		if w.maxDepth >= 0 && e.depth >= w.maxDepth {
			continue
		}
		if err := w.pushChildren(v); err != nil {
			return fmt.Errorf("%s: %w", e.path, err)
		}
	}
	return nil
}

func (w *Walker) visit(e stackEntry) (Visit, error) {
	v := Visit{Path: e.path, Depth: e.depth, Pointer: e.p}
	c, err := e.p.Content()
	if err != nil {
		return v, err
	}
	v.Content = c
	if c.Null {
		return v, nil
	}

	switch c.Type {
	case capnp.StructPointer:
		s, err := e.p.Struct()
		if err != nil {
			return v, err
		}
		v.Kind = KindStruct
		v.StructSize = s.Size()
		v.s = s

	case capnp.ListPointer:
		l, err := e.p.List()
		if err != nil {
			return v, err
		}
		v.Kind = KindList
		v.l = l
		v.ElementSize = l.ElementSize()
		v.Len = l.Len()
		if v.ElementSize == capnp.ElementComposite {
			v.StructSize = l.StructSize()
		}

	case capnp.OtherPointer:
		id, _, err := e.p.Interface()
		if err != nil {
			return v, err
		}
		v.Kind = KindCapability
		v.CapID = id
	}
	return v, nil
}

// pushChildren pushes the pointers inside v's content in reverse so they
// pop in order.
func (w *Walker) pushChildren(v Visit) error {
	depth := v.Depth + 1
	switch v.Kind {
	case KindStruct:
		return w.pushFields(v.s, v.Path, depth)

	case KindList:
		switch v.ElementSize {
		case capnp.ElementPointer:
			l := v.l
			for i := l.Len() - 1; i >= 0; i-- {
				p, err := l.Pointer(i)
				if err != nil {
					return err
				}
				w.stack = append(w.stack, stackEntry{p: p, path: indexPath(v.Path, i), depth: depth})
			}

		case capnp.ElementComposite:
			if v.StructSize.PointerLength == 0 {
				return nil
			}
			l := v.l
			for i := l.Len() - 1; i >= 0; i-- {
				s, err := l.Struct(i)
				if err != nil {
					return err
				}
				if err := w.pushFields(s, indexPath(v.Path, i), depth); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (w *Walker) pushFields(s capnp.Struct, path string, depth int) error {
	for i := int(s.Size().PointerLength) - 1; i >= 0; i-- {
		p, err := s.Pointer(i)
		if err != nil {
			return err
		}
		w.stack = append(w.stack, stackEntry{p: p, path: path + "." + strconv.Itoa(i), depth: depth})
	}
	return nil
}

func indexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
