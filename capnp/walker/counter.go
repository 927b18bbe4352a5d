package walker

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/joshuapare/capnkit/capnp"
	"github.com/joshuapare/capnkit/internal/format"
)

// Stats summarizes the pointers reachable from a message's root.
type Stats struct {
	Structs        uint64
	Lists          uint64
	CompositeLists uint64
	FarPointers    uint64 // includes double-far pointers
	DoubleFars     uint64
	Capabilities   uint64
	Texts          uint64

	// ReachableWords counts each word reachable from the root once: the root
	// pointer, object content and landing pads. Content shared by several
	// pointers is counted once.
	ReachableWords uint64
	AllocatedWords uint64
	MaxDepth       int
}

// UnreachableWords returns allocated words that no pointer reaches, such as
// holes left by erased or resized objects.
func (s *Stats) UnreachableWords() uint64 {
	if s.ReachableWords > s.AllocatedWords {
		return 0
	}
	return s.AllocatedWords - s.ReachableWords
}

// String returns a human-readable summary of the statistics.
func (s *Stats) String() string {
	return fmt.Sprintf(
		"Pointers:\n"+
			"  Structs: %d, Lists: %d (composite: %d), Texts: %d\n"+
			"  Far: %d (double: %d), Capabilities: %d\n"+
			"Words:\n"+
			"  Reachable: %d, Allocated: %d, Unreachable: %d\n"+
			"Max depth: %d",
		s.Structs, s.Lists, s.CompositeLists, s.Texts,
		s.FarPointers, s.DoubleFars, s.Capabilities,
		s.ReachableWords, s.AllocatedWords, s.UnreachableWords(),
		s.MaxDepth,
	)
}

// Counter counts reachable pointers and words.
type Counter struct {
	*Walker

	stats     Stats
	reachable map[capnp.SegmentID]*roaring.Bitmap
}

// NewCounter returns a Counter for msg.
func NewCounter(msg *capnp.Message, opts ...Option) *Counter {
	return &Counter{Walker: NewWalker(msg, opts...)}
}

// Count walks the message from its root and returns the statistics.
//
// Example:
//
//	stats, err := walker.NewCounter(msg).Count(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(stats.ReachableWords, stats.AllocatedWords)
func (c *Counter) Count(ctx context.Context) (*Stats, error) {
	root, err := c.msg.RootPointer()
	if err != nil {
		return nil, fmt.Errorf("root pointer: %w", err)
	}
	c.stats = Stats{AllocatedWords: uint64(c.msg.TotalSize() / format.WordSize)}
	c.reachable = make(map[capnp.SegmentID]*roaring.Bitmap)
	c.mark(root.Segment(), root.Offset(), 1)

	if err := c.Walk(ctx, root, c.count); err != nil {
		return nil, err
	}

	for _, rb := range c.reachable {
		c.stats.ReachableWords += rb.GetCardinality()
	}
	return &c.stats, nil
}

// Reachable returns the reachable word indexes of segment id from the last
// Count, or nil if none were reached.
func (c *Counter) Reachable(id capnp.SegmentID) *roaring.Bitmap {
	return c.reachable[id]
}

func (c *Counter) count(v Visit) error {
	c.stats.MaxDepth = max(c.stats.MaxDepth, v.Depth)

	switch v.Kind {
	case KindStruct:
		c.stats.Structs++
	case KindList:
		c.stats.Lists++
		if v.ElementSize == capnp.ElementComposite {
			c.stats.CompositeLists++
		}
		if v.IsText() {
			c.stats.Texts++
		}
	case KindCapability:
		c.stats.Capabilities++
	case KindNull:
	}

	if v.Content.Far {
		c.stats.FarPointers++
		if v.Content.DoubleFar {
			c.stats.DoubleFars++
		}
		c.mark(v.Content.PadSegment, v.Content.PadOffset, v.Content.PadWords)
	}
	c.mark(v.Content.Segment, v.Content.Offset, v.Content.Words)
	return nil
}

func (c *Counter) mark(seg *capnp.Segment, off, words int) {
	if seg == nil || words <= 0 {
		return
	}
	rb, ok := c.reachable[seg.ID()]
	if !ok {
		rb = roaring.New()
		c.reachable[seg.ID()] = rb
	}
	start := uint64(off / format.WordSize)
	rb.AddRange(start, start+uint64(words))
}
