package container_test

import (
	"github.com/partimesh/parti/exec"
	"github.com/partimesh/parti/group"
	"github.com/partimesh/parti/index"
	"github.com/partimesh/parti/mapping"
	"github.com/partimesh/parti/plan"
	"github.com/partimesh/parti/reduce"
	"github.com/partimesh/parti/transition"
	"github.com/partimesh/parti/transport"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// chanTransport is a minimal two-rank transport.Transport driving a
// pair of executors over channels, with no slice-aware fast path —
// exactly the shape that forces the generic pack/unpack loop in S4.
type chanTransport struct {
	g    *group.Group
	self group.LocationID
	chs  map[group.LocationID]chan []byte
}

func (c *chanTransport) Send(buf []byte, count int, dt transport.Datatype, to group.LocationID, _ int) error {
	cp := make([]byte, count*dt.ElemSize)
	copy(cp, buf[:count*dt.ElemSize])
	c.chs[to] <- cp
	return nil
}

func (c *chanTransport) Recv(buf []byte, count int, dt transport.Datatype, _ group.LocationID, _ int) (int, error) {
	data := <-c.chs[c.self]
	n := copy(buf, data)
	return n / dt.ElemSize, nil
}

func (c *chanTransport) AllReduce([]byte, []byte, int, transport.Datatype, transition.ReduceOp) error {
	panic("not exercised by S4")
}
func (c *chanTransport) Reduce([]byte, []byte, int, transport.Datatype, transition.ReduceOp, group.TaskID) error {
	panic("not exercised by S4")
}
func (c *chanTransport) Exec(*plan.Plan) error          { return nil }
func (c *chanTransport) UpdateGroup(*group.Group) error { return nil }

var _ = Describe("2-D slice pack (S4)", func() {
	It("delivers a[i,j] at the sent sub-region and leaves the rest untouched", func() {
		space := index.NewSpace("board", 2, index.NewIndex2(4, 4))
		full := index.NewSlice(space, index.NewIndex2(0, 0), index.NewIndex2(4, 4))
		sub := index.NewSlice(space, index.NewIndex2(1, 1), index.NewIndex2(3, 3))

		src := mapping.Allocate(full, 8)
		src.EnsureAllocated()
		idx := full.From
		for {
			off := src.ElemOffset(idx)
			v := idx.I[0]*4 + idx.I[1]
			for b := 0; b < 8; b++ {
				src.Base[off+int64(b)] = byte(v >> (8 * b))
			}
			if !index.NextLex(2, full, &idx) {
				break
			}
		}

		chs := map[group.LocationID]chan []byte{0: make(chan []byte, 1), 1: make(chan []byte, 1)}
		lids := []group.LocationID{0, 1}

		senderTr := &transition.Transition{Dims: 2, Send: []transition.Send{{Slice: sub, ToTask: 1, MapNo: 0}}}
		recvTr := &transition.Transition{Dims: 2, Recv: []transition.Recv{{Slice: sub, FromTask: 0, MapNo: 0}}}

		errs := make(chan error, 2)
		var dst *mapping.Mapping

		go func() {
			g := group.New(0, lids)
			t := &chanTransport{g: g, self: 0, chs: chs}
			e := exec.New(t, g)
			errs <- e.Exec(senderTr, reduce.Int64Type, []*mapping.Mapping{src}, nil, plan.Prepare())
		}()
		go func() {
			g := group.New(1, lids)
			t := &chanTransport{g: g, self: 1, chs: chs}
			e := exec.New(t, g)
			dst = mapping.Allocate(full, 8)
			errs <- e.Exec(recvTr, reduce.Int64Type, nil, []*mapping.Mapping{dst}, plan.Prepare())
		}()

		Expect(<-errs).To(Succeed())
		Expect(<-errs).To(Succeed())

		readCell := func(m *mapping.Mapping, i, j int64) int64 {
			off := m.ElemOffset(index.NewIndex2(i, j))
			var v int64
			for b := 0; b < 8; b++ {
				v |= int64(m.Base[off+int64(b)]) << (8 * b)
			}
			return v
		}

		Expect(readCell(dst, 1, 1)).To(BeEquivalentTo(1*4 + 1))
		Expect(readCell(dst, 1, 2)).To(BeEquivalentTo(1*4 + 2))
		Expect(readCell(dst, 2, 1)).To(BeEquivalentTo(2*4 + 1))
		Expect(readCell(dst, 2, 2)).To(BeEquivalentTo(2*4 + 2))
		Expect(readCell(dst, 0, 0)).To(BeEquivalentTo(0))
		Expect(readCell(dst, 3, 3)).To(BeEquivalentTo(0))
	})
})
