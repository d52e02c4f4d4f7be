// Package gc implements the tracing, stop-the-world mark-sweep
// collector spec.md §3/§9 calls for: explicit roots via a Handle type,
// and a per-cell borrow discipline (reader count + single-writer flag)
// guarding against unsound re-entrant mutation.
//
// Grounded on the teacher's internal/registry.Registry for the overall
// "mutex-guarded collection the rest of the program reaches into by
// handle" shape, generalized here from a lookup table to a reachability
// graph.
package gc

import (
	"errors"
	"sync"
)

// ErrBorrowViolation is raised when a cell is written to while a read or
// write borrow is outstanding, or read while a write is outstanding —
// the "borrow violation error" spec.md §9 calls for.
var ErrBorrowViolation = errors.New("gc: borrow violation: re-entrant access to a cell already borrowed incompatibly")

// ErrOutOfMemory is fatal to the owning context (spec.md §7): it is not
// a catchable language-level error.
var ErrOutOfMemory = errors.New("gc: memory budget exceeded")

// Tracer is implemented by any payload a Cell holds. Trace must call
// visit.Mark on every Cell the payload directly references, the way an
// object traces its property values and prototype.
type Tracer interface {
	Trace(visit *Visitor)
}

// Cell is one heap-allocated, GC-traced unit. internal/object.Object
// embeds a *Cell (or is itself wrapped by one) to participate in
// collection.
type Cell struct {
	payload Tracer
	size    uintptr
	marked  bool

	mu      sync.Mutex
	readers int32
	writing bool
}

func (c *Cell) Payload() Tracer { return c.payload }

// BeginRead/EndRead/BeginWrite/EndWrite implement the reentrant-borrow
// discipline: a getter that re-enters and mutates its own container
// trips BeginWrite while a read is outstanding, and vice versa.
func (c *Cell) BeginRead() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writing {
		return ErrBorrowViolation
	}
	c.readers++
	return nil
}

func (c *Cell) EndRead() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readers > 0 {
		c.readers--
	}
}

func (c *Cell) BeginWrite() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writing || c.readers > 0 {
		return ErrBorrowViolation
	}
	c.writing = true
	return nil
}

func (c *Cell) EndWrite() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writing = false
}

// Visitor is threaded through Trace calls during the mark phase.
type Visitor struct {
	heap *Heap
}

// Mark records child as reachable and, the first time it is seen,
// recurses into its own Trace so the whole subgraph is walked.
func (v *Visitor) Mark(child *Cell) {
	if child == nil || child.marked {
		return
	}
	child.marked = true
	if child.payload != nil {
		child.payload.Trace(v)
	}
}

// Handle is an embedder- or native-callback-held rooted reference: the
// collector never reclaims a Cell with a live Handle, replacing what a
// refcounting scheme would do but without the cycle leak (spec.md §9).
type Handle struct {
	heap *Heap
	cell *Cell
}

func (h *Handle) Cell() *Cell { return h.cell }

// Release unroots the handle. The collector may reclaim the cell on its
// next Collect if nothing else roots it.
func (h *Handle) Release() {
	h.heap.removeRoot(h.cell)
}

// Heap owns every Cell allocated for one context/realm; code blocks and
// values never migrate between heaps (spec.md §5).
type Heap struct {
	mu     sync.Mutex
	cells  map[*Cell]struct{}
	roots  map[*Cell]int // refcounted root set (multiple Handles to one cell)
	used   uintptr
	budget uintptr // 0 means unbounded
}

// NewHeap creates a Heap with the given memory budget in bytes; 0 means
// no budget enforcement (the embedder relies on process limits instead).
func NewHeap(budget uintptr) *Heap {
	return &Heap{
		cells:  make(map[*Cell]struct{}),
		roots:  make(map[*Cell]int),
		budget: budget,
	}
}

// Alloc registers payload as a new Cell of the given approximate size,
// failing with ErrOutOfMemory if the budget would be exceeded.
func (h *Heap) Alloc(payload Tracer, size uintptr) (*Cell, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.budget != 0 && h.used+size > h.budget {
		return nil, ErrOutOfMemory
	}
	c := &Cell{payload: payload, size: size}
	h.cells[c] = struct{}{}
	h.used += size
	return c, nil
}

// Root creates a Handle rooting cell, preventing its collection until
// the Handle (and every other Handle to the same cell) is released.
func (h *Heap) Root(c *Cell) *Handle {
	h.mu.Lock()
	h.roots[c]++
	h.mu.Unlock()
	return &Handle{heap: h, cell: c}
}

func (h *Heap) removeRoot(c *Cell) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n, ok := h.roots[c]; ok {
		if n <= 1 {
			delete(h.roots, c)
		} else {
			h.roots[c] = n - 1
		}
	}
}

// Used reports current accounted heap usage, for diagnostics and for
// the embedder's bounded-run memory checks (spec.md §5).
func (h *Heap) Used() uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.used
}

func (h *Heap) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.cells)
}

// Collect runs one stop-the-world mark-sweep pass: mark from every
// rooted cell (transitively, via Tracer.Trace), then sweep every
// unmarked cell out of the heap. Single-threaded by design (spec.md
// §5): callers must not mutate the heap concurrently with Collect.
func (h *Heap) Collect() (collected int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.cells {
		c.marked = false
	}

	v := &Visitor{heap: h}
	for root := range h.roots {
		v.Mark(root)
	}

	var freed uintptr
	for c := range h.cells {
		if !c.marked {
			delete(h.cells, c)
			freed += c.size
			collected++
		}
	}
	h.used -= freed
	return collected
}
