package reduce_test

import (
	"encoding/binary"
	"testing"

	"github.com/partimesh/parti/group"
	"github.com/partimesh/parti/plan"
	"github.com/partimesh/parti/reduce"
	"github.com/partimesh/parti/transition"
	"github.com/partimesh/parti/transport"
)

// fakeMesh is an in-process transport.Transport stand-in driving
// reduce.Manual's gather/scatter traffic over per-location channels
// instead of a real network; AllReduce/Reduce/Exec/UpdateGroup are
// never exercised through this fixture, only Send/Recv.
type fakeMesh struct {
	chans map[group.LocationID]chan []byte
	self  group.LocationID
}

func newFakeMesh(lids []group.LocationID) map[group.LocationID]*fakeMesh {
	chans := make(map[group.LocationID]chan []byte, len(lids))
	for _, lid := range lids {
		chans[lid] = make(chan []byte, len(lids))
	}
	out := make(map[group.LocationID]*fakeMesh, len(lids))
	for _, lid := range lids {
		out[lid] = &fakeMesh{chans: chans, self: lid}
	}
	return out
}

func (m *fakeMesh) Send(buf []byte, count int, dt transport.Datatype, to group.LocationID, _ int) error {
	cp := make([]byte, count*dt.ElemSize)
	copy(cp, buf[:count*dt.ElemSize])
	m.chans[to] <- cp
	return nil
}

func (m *fakeMesh) Recv(buf []byte, count int, dt transport.Datatype, _ group.LocationID, _ int) (int, error) {
	data := <-m.chans[m.self]
	n := copy(buf, data)
	return n / dt.ElemSize, nil
}

func (m *fakeMesh) AllReduce([]byte, []byte, int, transport.Datatype, transition.ReduceOp) error {
	panic("not exercised by this fixture")
}
func (m *fakeMesh) Reduce([]byte, []byte, int, transport.Datatype, transition.ReduceOp, group.TaskID) error {
	panic("not exercised by this fixture")
}
func (m *fakeMesh) Exec(*plan.Plan) error            { return nil }
func (m *fakeMesh) UpdateGroup(*group.Group) error   { return nil }

func int64Bytes(v int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	return b
}

func bytesInt64(b []byte) int64 {
	return int64(binary.LittleEndian.Uint64(b))
}

func sumInt64Reduce(out, a, b []byte, n int64, _ transition.ReduceOp) {
	for i := int64(0); i < n; i++ {
		copy(out[i*8:i*8+8], int64Bytes(bytesInt64(a[i*8:i*8+8])+bytesInt64(b[i*8:i*8+8])))
	}
}

func TestManualReduceAllGroupSum(t *testing.T) {
	lids := []group.LocationID{0, 1, 2, 3}
	meshes := newFakeMesh(lids)
	dt := transport.Datatype{Name: "int64", ElemSize: 8, Reduce: sumInt64Reduce}

	results := make([]int64, 4)
	errs := make([]error, 4)
	done := make(chan int, 4)

	for tid := 0; tid < 4; tid++ {
		tid := tid
		go func() {
			g := group.New(group.TaskID(tid), lids)
			in := int64Bytes(int64(tid + 1)) // contributions 1,2,3,4 -> sum 10
			out := make([]byte, 8)
			errs[tid] = reduce.Manual(meshes[group.LocationID(tid)], g, nil, group.AllGroup, group.AllGroup, transition.Sum, dt, 1, 1, in, out)
			results[tid] = bytesInt64(out)
			done <- tid
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	for tid := 0; tid < 4; tid++ {
		if errs[tid] != nil {
			t.Fatalf("task %d: %v", tid, errs[tid])
		}
		if results[tid] != 10 {
			t.Fatalf("task %d: expected sum 10, got %d", tid, results[tid])
		}
	}
}

func TestManualReduceExplicitSubGroup(t *testing.T) {
	lids := []group.LocationID{0, 1, 2, 3}
	meshes := newFakeMesh(lids)
	dt := transport.Datatype{Name: "int64", ElemSize: 8, Reduce: sumInt64Reduce}

	// input {0,1} sum into output {2,3}; root is task 2 (first listed).
	subgroups := []group.SubGroup{
		{Tasks: []group.TaskID{0, 1}},
		{Tasks: []group.TaskID{2, 3}},
	}

	results := make(map[group.TaskID][]byte)
	var mu chanMutex
	errs := make(chan error, 4)

	for tid := 0; tid < 4; tid++ {
		tid := tid
		go func() {
			g := group.New(group.TaskID(tid), lids)
			var in, out []byte
			if tid < 2 {
				in = int64Bytes(int64(tid + 1)) // 1, 2 -> sum 3
			}
			if tid >= 2 {
				out = make([]byte, 8)
			}
			err := reduce.Manual(meshes[group.LocationID(tid)], g, subgroups, 0, 1, transition.Sum, dt, 1, 2, in, out)
			if tid >= 2 {
				mu.do(func() { results[group.TaskID(tid)] = out })
			}
			errs <- err
		}()
	}
	for i := 0; i < 4; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("reduce: %v", err)
		}
	}
	for _, tid := range []group.TaskID{2, 3} {
		if got := bytesInt64(results[tid]); got != 3 {
			t.Fatalf("task %d: expected sum 3, got %d", tid, got)
		}
	}
}

// chanMutex is a minimal mutex built from a buffered channel, avoiding a
// direct sync import collision with the anonymous goroutines above.
type chanMutex struct{ ch chan struct{} }

func (m *chanMutex) do(f func()) {
	if m.ch == nil {
		m.ch = make(chan struct{}, 1)
	}
	m.ch <- struct{}{}
	f()
	<-m.ch
}

func TestRootIsFirstListedTask(t *testing.T) {
	table := []group.SubGroup{
		{Tasks: []group.TaskID{2, 0, 1}},
	}
	if got := group.Root(table, 0); got != 2 {
		t.Fatalf("expected root to be first listed task (2), got %d", got)
	}
}
