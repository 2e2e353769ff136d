// Package mapping implements C2: a process-local allocation covering a
// required slice, together with the Layout capability used to translate
// global indices to local byte offsets and to pack/unpack non-contiguous
// regions (spec §3, §4.2).
package mapping

import (
	"github.com/valyala/bytebufferpool"

	"github.com/partimesh/parti/cmn"
	"github.com/partimesh/parti/cmn/debug"
	"github.com/partimesh/parti/index"
)

// Mapping owns a contiguous byte buffer covering Required, a superset of
// what the process will read/write for the active partitioning. Base is
// allocated lazily (first real use) per spec §4.2's ensure_allocated.
type Mapping struct {
	Required index.Slice
	Dims     int
	ElemSize int
	Count    int64 // elements covered by Required
	Layout   Layout
	Base     []byte // nil until EnsureAllocated
}

// Allocate builds a Mapping descriptor without touching memory; the
// backing buffer is deferred to the first EnsureAllocated call, mirroring
// the teacher's memsys.Slab lazy-allocation-on-first-touch idiom.
func Allocate(required index.Slice, elemsize int) *Mapping {
	dims := required.Dims()
	count := index.Size(dims, required)
	var l Layout
	if dims == 1 {
		l = ContiguousLayout{}
	} else {
		l = GenericLayout{Dims: dims}
	}
	return &Mapping{
		Required: required,
		Dims:     dims,
		ElemSize: elemsize,
		Count:    count,
		Layout:   l,
	}
}

// EnsureAllocated materializes Base on first use. spec §9 notes the
// source has the allocation-success check inverted ("ok only if malloc
// fails"); here allocation failure (an OOM panic from make) is always
// fatal and success always proceeds — there is no inversion to reproduce.
func (m *Mapping) EnsureAllocated() {
	if m.Base != nil {
		return
	}
	n := m.Count * int64(m.ElemSize)
	debug.Assert(n >= 0, "mapping: negative buffer size")
	buf := make([]byte, n)
	debug.AssertNoErr(allocOK(buf, n))
	m.Base = buf
}

func allocOK(buf []byte, want int64) error {
	if int64(len(buf)) != want {
		return cmn.NewErrInvariant("mapping: allocation size mismatch")
	}
	return nil
}

// Free releases the backing buffer. Safe to call on an unallocated mapping.
func (m *Mapping) Free() { m.Base = nil }

// ElemOffset returns the byte offset of idx within Base, validating idx
// lies inside Required per the mapping invariant of spec §3.
func (m *Mapping) ElemOffset(idx index.Index) int64 {
	debug.Assert(index.Contains(m.Dims, m.Required, idx), "mapping: index outside required slice")
	return m.Layout.Offset(m.Required, idx) * int64(m.ElemSize)
}

// RawPointer returns base+offset for the 1-D contiguous fast path of
// spec §4.5: the executor sends/receives directly from this address
// without going through Pack/Unpack.
func (m *Mapping) RawPointer(from index.Index) []byte {
	debug.Assert(m.Layout.Contiguous(), "mapping: RawPointer requires a contiguous layout")
	off := m.ElemOffset(from)
	return m.Base[off:]
}

// ---- process-owned pack/unpack scratch pool ----
//
// spec §9 calls out the source's 10MB pack buffer being process-wide and
// asks for it to move into an owned field. Pool is that field: one per
// Executor instance, backed by bytebufferpool so repeated
// pack/send and recv/unpack cycles reuse allocations instead of
// thrashing the GC.
type Pool struct {
	bp bytebufferpool.Pool
}

func NewPool() *Pool { return &Pool{} }

// Get returns a scratch buffer sized at least n bytes, taken from the pool.
func (p *Pool) Get(n int) *bytebufferpool.ByteBuffer {
	b := p.bp.Get()
	if cap(b.B) < n {
		b.B = make([]byte, n)
	} else {
		b.B = b.B[:n]
	}
	return b
}

// Put returns buf to the pool for reuse.
func (p *Pool) Put(buf *bytebufferpool.ByteBuffer) { p.bp.Put(buf) }
