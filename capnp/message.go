package capnp

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/joshuapare/capnkit/internal/format"
	"github.com/joshuapare/capnkit/internal/mmfile"
)

// Message is a Cap'n Proto message: an arena, the segments carved from it and
// the read budget shared by every Pointer built against it.
//
// A Message is not safe for concurrent use.
type Message struct {
	arena    Arena
	segments []*Segment

	traverseLimit int64
	depthLimit    int
	readOnly      bool

	logger *slog.Logger
}

// Option configures a Message.
type Option func(*options)

type options struct {
	traverseLimit int64
	depthLimit    int
	singleSegment bool
	multiSegment  bool
	readOnly      bool
	arena         Arena
	logger        *slog.Logger
}

func defaultOptions() options {
	return options{
		traverseLimit: format.DefaultTraverseLimit,
		depthLimit:    format.DefaultDepthLimit,
	}
}

// WithTraverseLimit sets the traversal budget in bytes. Every Pointer
// construction charges 8 bytes. A value <= 0 disables the limit.
func WithTraverseLimit(n int64) Option {
	return func(o *options) {
		if n <= 0 {
			n = math.MaxInt64
		}
		o.traverseLimit = n
	}
}

// WithDepthLimit sets the maximum pointer nesting depth.
func WithDepthLimit(n int) Option {
	return func(o *options) { o.depthLimit = n }
}

// WithSingleSegment keeps the message in one contiguous buffer. When
// unmarshaling, only one-segment frames are accepted.
func WithSingleSegment() Option {
	return func(o *options) {
		o.singleSegment = true
		o.multiSegment = false
	}
}

// WithMultiSegment makes the message grow by appending segments instead of
// copying into larger buffers.
func WithMultiSegment() Option {
	return func(o *options) {
		o.multiSegment = true
		o.singleSegment = false
	}
}

// WithArena builds a new message over a caller-supplied arena. Existing
// buffers in the arena are treated as empty scratch space.
func WithArena(a Arena) Option {
	return func(o *options) { o.arena = a }
}

// WithReadOnly rejects every write to the message with ErrReadOnly.
// Getters never lazily initialize or resize content of a read-only message.
func WithReadOnly() Option {
	return func(o *options) { o.readOnly = true }
}

// WithLogger sets the logger used for debug output. Defaults to a discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// NewMessage returns an empty message. Segment 0 and the root pointer are
// allocated on first use.
func NewMessage(opts ...Option) *Message {
	o := buildOptions(opts)
	arena := o.arena
	if arena == nil {
		if o.multiSegment {
			arena, _ = NewMultiSegmentArena(nil)
		} else {
			arena, _ = NewSingleSegmentArena(nil)
		}
	}
	return newMessage(arena, o)
}

func newMessage(arena Arena, o options) *Message {
	return &Message{
		arena:         arena,
		traverseLimit: o.traverseLimit,
		depthLimit:    o.depthLimit,
		readOnly:      o.readOnly,
		logger:        o.logger,
	}
}

// Reset drops all content and starts over with a fresh arena of the same kind.
func (m *Message) Reset() {
	switch m.arena.(type) {
	case *MultiSegmentArena:
		m.arena, _ = NewMultiSegmentArena(nil)
	default:
		m.arena, _ = NewSingleSegmentArena(nil)
	}
	m.segments = nil
	m.readOnly = false
}

// ReadOnly reports whether writes are rejected.
func (m *Message) ReadOnly() bool { return m.readOnly }

// NumSegments returns the number of segments created so far.
func (m *Message) NumSegments() int { return len(m.segments) }

// TotalSize returns the number of allocated bytes across all segments,
// excluding the frame header.
func (m *Message) TotalSize() int {
	n := 0
	for _, s := range m.segments {
		n += s.used
	}
	return n
}

// ResetReadLimit restores the traversal budget to n bytes.
func (m *Message) ResetReadLimit(n int64) {
	if n <= 0 {
		n = math.MaxInt64
	}
	m.traverseLimit = n
}

// TraverseLimit returns the remaining traversal budget in bytes.
func (m *Message) TraverseLimit() int64 { return m.traverseLimit }

// DepthLimit returns the nesting depth given to the root pointer.
func (m *Message) DepthLimit() int { return m.depthLimit }

// charge consumes one pointer's worth of traversal budget.
func (m *Message) charge() error {
	if m.traverseLimit == math.MaxInt64 {
		return nil
	}
	m.traverseLimit -= format.PointerSize
	if m.traverseLimit <= 0 {
		return ErrTraverseLimit
	}
	return nil
}

// chargeElements charges one pointer's worth of budget for each of n
// zero-sized composite elements. Such lists occupy no words, so their
// element count is bounded only by the budget.
func (m *Message) chargeElements(n int) error {
	if m.traverseLimit == math.MaxInt64 || n <= 0 {
		return nil
	}
	m.traverseLimit -= int64(n) * format.PointerSize
	if m.traverseLimit <= 0 {
		return ErrTraverseLimit
	}
	return nil
}

// Segment returns segment id. Segment 0 is created on first use, with its
// first word reserved for the root pointer.
func (m *Message) Segment(id SegmentID) (*Segment, error) {
	if int64(id) < int64(len(m.segments)) {
		return m.segments[id], nil
	}
	if id != 0 {
		return nil, fmt.Errorf("segment %d: %w (segments=%d)", id, ErrSegmentOutOfBounds, len(m.segments))
	}
	if m.readOnly {
		return nil, fmt.Errorf("segment 0: %w", ErrReadOnly)
	}
	return m.initFirstSegment()
}

func (m *Message) initFirstSegment() (*Segment, error) {
	var b []byte
	if m.arena.NumSegments() > 0 {
		buf, err := m.arena.Buffer(0)
		if err != nil {
			return nil, err
		}
		b = buf
	}
	if len(b) < format.PointerSize {
		a, err := m.arena.Allocate(format.PointerSize, nil)
		if err != nil {
			return nil, fmt.Errorf("allocate segment 0: %w", err)
		}
		if a.ID != 0 {
			return nil, fmt.Errorf("allocate segment 0: %w (got id %d)", ErrSegmentOutOfBounds, a.ID)
		}
		b = a.Buffer
	}
	if len(b) < format.PointerSize {
		return nil, fmt.Errorf("allocate segment 0: %w", ErrArenaShortAllocation)
	}

	seg := &Segment{msg: m, id: 0, buf: b, used: format.PointerSize}
	m.segments = append(m.segments, seg)
	m.logger.Debug("capnp: segment 0 created", "capacity", len(b))
	return seg, nil
}

// allocateSegment asks the arena for room for n more bytes. The result is
// either an existing segment whose buffer grew, or a brand-new segment.
func (m *Message) allocateSegment(n int) (*Segment, error) {
	if m.readOnly {
		return nil, ErrReadOnly
	}
	if len(m.segments) == 0 {
		if _, err := m.Segment(0); err != nil {
			return nil, err
		}
	}

	a, err := m.arena.Allocate(n, m.segments)
	if err != nil {
		return nil, fmt.Errorf("arena allocate %d bytes: %w", n, err)
	}

	if int64(a.ID) < int64(len(m.segments)) {
		seg := m.segments[a.ID]
		if err := seg.replaceBuffer(a.Buffer); err != nil {
			return nil, err
		}
		if !seg.hasCapacity(n) {
			return nil, fmt.Errorf("segment %d: %w (need=%d, free=%d)", a.ID, ErrArenaShortAllocation, n, len(seg.buf)-seg.used)
		}
		m.logger.Debug("capnp: segment grown", "id", a.ID, "capacity", len(a.Buffer))
		return seg, nil
	}

	if int(a.ID) != len(m.segments) {
		return nil, fmt.Errorf("new segment %d: %w (segments=%d)", a.ID, ErrSegmentOutOfBounds, len(m.segments))
	}
	if len(a.Buffer) < n {
		return nil, fmt.Errorf("new segment %d: %w (need=%d, got=%d)", a.ID, ErrArenaShortAllocation, n, len(a.Buffer))
	}
	if !format.IsWordAligned(len(a.Buffer)) {
		return nil, fmt.Errorf("new segment %d: %w", a.ID, ErrNotWordAligned)
	}

	seg := &Segment{msg: m, id: a.ID, buf: a.Buffer}
	m.segments = append(m.segments, seg)
	m.logger.Debug("capnp: segment created", "id", a.ID, "capacity", len(a.Buffer))
	return seg, nil
}

// RootPointer returns the pointer stored in the first word of segment 0.
func (m *Message) RootPointer() (Pointer, error) {
	seg, err := m.Segment(0)
	if err != nil {
		return Pointer{}, err
	}
	return newPointer(seg, 0, m.depthLimit)
}

// Root returns the root struct. A null root is initialized with size (unless
// the message is read-only); a root written with a smaller size is grown to
// size.
func (m *Message) Root(size ObjectSize) (Struct, error) {
	p, err := m.RootPointer()
	if err != nil {
		return Struct{}, fmt.Errorf("root: %w", err)
	}
	return p.structValue(size, Pointer{})
}

// InitRoot replaces the root with a new zeroed struct of the given size.
func (m *Message) InitRoot(size ObjectSize) (Struct, error) {
	p, err := m.RootPointer()
	if err != nil {
		return Struct{}, fmt.Errorf("init root: %w", err)
	}
	return p.InitStruct(size)
}

// SetRoot deep-copies src into the root slot. src may belong to another message.
func (m *Message) SetRoot(src Pointer) error {
	p, err := m.RootPointer()
	if err != nil {
		return fmt.Errorf("set root: %w", err)
	}
	return p.Set(src)
}

// NewStructOrphan allocates a detached struct that can later be adopted into
// any pointer slot of m.
func (m *Message) NewStructOrphan(size ObjectSize) (*Orphan, error) {
	if err := size.validate(); err != nil {
		return nil, err
	}
	seg, err := m.Segment(0)
	if err != nil {
		return nil, err
	}
	size = size.Padded()
	cseg, coff, err := seg.allocate(size.ByteLength())
	if err != nil {
		return nil, err
	}
	return &Orphan{
		msg:  m,
		word: structWord(size),
		seg:  cseg,
		off:  coff,
	}, nil
}

// MappedMessage is a read-only message backed by a memory-mapped file.
type MappedMessage struct {
	*Message
	unmap func() error
}

// Close releases the mapping. The message must not be used afterwards.
func (mm *MappedMessage) Close() error {
	if mm.unmap == nil {
		return nil
	}
	err := mm.unmap()
	mm.unmap = nil
	mm.segments = nil
	return err
}

// ReadFile maps a framed, unpacked message file read-only and decodes it in
// place.
func ReadFile(path string, opts ...Option) (*MappedMessage, error) {
	data, unmap, err := mmfile.Map(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	opts = append(opts[:len(opts):len(opts)], WithReadOnly())
	msg, err := Unmarshal(data, opts...)
	if err != nil {
		_ = unmap()
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &MappedMessage{Message: msg, unmap: unmap}, nil
}
