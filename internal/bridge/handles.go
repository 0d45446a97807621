package bridge

import (
	"errors"
	"fmt"
	"sync"
)

// Handle is an opaque reference crossing the call boundary. The zero Handle
// is the nil handle.
//
// A handle packs a slot index, a generation counter, and a kind tag:
//
//	bits 63..32  slot index
//	bits 31..8   generation (24 bits, wraps)
//	bits  7..0   kind
//
// The generation is bumped every time a slot is released, so a stale handle
// - one released earlier, or forged - fails the generation check instead of
// silently aliasing a new resource. Kind confusion (passing a transaction
// handle where a buffer is expected) fails the kind check the same way.
type Handle uint64

// Kind tags the resource category a handle refers to. Each category has one
// constructor and one matching destructor.
type Kind uint8

const (
	kindInvalid Kind = iota
	kindConnection
	kindCredentials
	kindConnOptions
	kindTxnOptions
	kindQueryOptions
	kindTransaction
	kindPending
	kindBuffer
	kindString
)

func (k Kind) String() string {
	switch k {
	case kindConnection:
		return "connection"
	case kindCredentials:
		return "credentials"
	case kindConnOptions:
		return "connection-options"
	case kindTxnOptions:
		return "transaction-options"
	case kindQueryOptions:
		return "query-options"
	case kindTransaction:
		return "transaction"
	case kindPending:
		return "pending-operation"
	case kindBuffer:
		return "buffer"
	case kindString:
		return "string"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

const genMask = 0xFFFFFF

// Resource-misuse conditions. These indicate caller programming errors, not
// recoverable runtime failures; they are surfaced as detectable errors
// rather than corrupting unrelated resources.
var (
	// ErrNilHandle marks use of the zero handle where a resource is required.
	ErrNilHandle = errors.New("bridge: nil handle")
	// ErrStaleHandle marks use of a handle that was already released
	// (or never issued).
	ErrStaleHandle = errors.New("bridge: stale or released handle")
	// ErrWrongKind marks a handle of one category passed where another
	// category is required.
	ErrWrongKind = errors.New("bridge: handle kind mismatch")
	// ErrLengthMismatch marks a buffer release whose length differs from
	// the length returned at creation.
	ErrLengthMismatch = errors.New("bridge: buffer length mismatch")
)

func makeHandle(index uint32, gen uint32, kind Kind) Handle {
	return Handle(uint64(index)<<32 | uint64(gen&genMask)<<8 | uint64(kind))
}

func (h Handle) index() uint32 { return uint32(uint64(h) >> 32) }
func (h Handle) gen() uint32   { return uint32(uint64(h)>>8) & genMask }
func (h Handle) kind() Kind    { return Kind(uint64(h) & 0xFF) }

type slot struct {
	gen  uint32
	kind Kind
	val  any
	live bool
}

// handleTable is the arena behind every handle category.
type handleTable struct {
	mu    sync.Mutex
	slots []slot
	free  []uint32
}

// put stores a value and issues its handle.
func (t *handleTable) put(kind Kind, val any) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.free); n > 0 {
		idx := t.free[n-1]
		t.free = t.free[:n-1]
		s := &t.slots[idx]
		s.kind = kind
		s.val = val
		s.live = true
		return makeHandle(idx, s.gen, kind)
	}

	// Generation starts at 1 so no live handle is ever all-zero.
	t.slots = append(t.slots, slot{gen: 1, kind: kind, val: val, live: true})
	return makeHandle(uint32(len(t.slots)-1), 1, kind)
}

// get resolves a handle, verifying kind and generation.
func (t *handleTable) get(h Handle, kind Kind) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.lookup(h, kind)
	if err != nil {
		return nil, err
	}
	return s.val, nil
}

// take resolves a handle and releases its slot. Exactly one take per handle
// can succeed; the generation bump makes later uses detectable.
func (t *handleTable) take(h Handle, kind Kind) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.lookup(h, kind)
	if err != nil {
		return nil, err
	}
	val := s.val
	s.val = nil
	s.live = false
	s.gen = (s.gen + 1) & genMask
	if s.gen == 0 {
		s.gen = 1
	}
	t.free = append(t.free, h.index())
	return val, nil
}

// update replaces the value behind a live handle.
func (t *handleTable) update(h Handle, kind Kind, val any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.lookup(h, kind)
	if err != nil {
		return err
	}
	s.val = val
	return nil
}

// lookup must be called with the mutex held.
func (t *handleTable) lookup(h Handle, kind Kind) (*slot, error) {
	if h == 0 {
		return nil, ErrNilHandle
	}
	if h.kind() != kind {
		return nil, fmt.Errorf("%w: have %s, want %s", ErrWrongKind, h.kind(), kind)
	}
	idx := h.index()
	if int(idx) >= len(t.slots) {
		return nil, ErrStaleHandle
	}
	s := &t.slots[idx]
	if !s.live || s.gen != h.gen() || s.kind != kind {
		return nil, ErrStaleHandle
	}
	return s, nil
}
