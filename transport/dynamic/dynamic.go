package dynamic

import (
	"net"
	"strconv"
	"sync"

	"github.com/pierrec/lz4/v3"

	"github.com/partimesh/parti/cmn"
	"github.com/partimesh/parti/cmn/nlog"
	"github.com/partimesh/parti/group"
	"github.com/partimesh/parti/index"
	"github.com/partimesh/parti/mapping"
	"github.com/partimesh/parti/plan"
	"github.com/partimesh/parti/reduce"
	"github.com/partimesh/parti/transition"
	"github.com/partimesh/parti/transport"
)

// tagReduce is the internal message tag Dynamic uses for its own
// gather/scatter traffic inside AllReduce/Reduce, kept out of the
// range an executor would pick for ordinary Send/Recv actions.
const tagReduce = -100

// OnControl is invoked for every non-data, non-allowsend frame a peer
// sends (register/id/myid/phase/help/status/quit/kill): the bootstrap
// handshake and any interactive diagnostics live above this package,
// this is just the hook they attach to.
type OnControl func(lid group.LocationID, f Frame)

// Dynamic is the text-framed, credit-based transport of spec §4.7,
// grounded wholesale on original_source/src/backend-tcp2.c: per-peer
// stream sockets, an ASCII command protocol, and a single cooperative
// dispatch loop any blocking public call re-enters instead of spinning
// its own socket read.
type Dynamic struct {
	mu    sync.Mutex
	g     *group.Group
	peers map[group.LocationID]*Peer
	inbox chan inboundFrame

	OnControl OnControl
}

var _ transport.Transport = (*Dynamic)(nil)

// New creates a Dynamic transport bound to g; peers are attached with
// AddPeer as the bootstrap handshake discovers them.
func New(g *group.Group) *Dynamic {
	return &Dynamic{
		g:     g,
		peers: make(map[group.LocationID]*Peer),
		inbox: make(chan inboundFrame, 64),
	}
}

// AddPeer registers an established connection under lid and starts its
// reader goroutine. Safe to call concurrently with dispatch (e.g. from
// an Accept loop) — only the peers map mutation is locked; Peer field
// mutation still happens exclusively from the dispatch goroutine.
func (d *Dynamic) AddPeer(lid group.LocationID, conn net.Conn) {
	p := newPeer(lid, conn)
	d.mu.Lock()
	d.peers[lid] = p
	d.mu.Unlock()
	startReader(lid, conn, d.inbox)
}

// SendControl writes a raw control line (id/myid/phase/etc.) to an
// already-registered peer; bootstrap uses this to drive the handshake
// without reaching into Peer internals.
func (d *Dynamic) SendControl(lid group.LocationID, line string) error {
	peer, err := d.mustPeer(lid)
	if err != nil {
		return err
	}
	return peer.writeLine(line)
}

func (d *Dynamic) peer(lid group.LocationID) (*Peer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.peers[lid]
	return p, ok
}

func (d *Dynamic) mustPeer(lid group.LocationID) (*Peer, error) {
	p, ok := d.peer(lid)
	if !ok {
		return nil, cmn.NewErrIO("dynamic: no connection for peer "+lidString(lid), nil)
	}
	return p, nil
}

func lidString(lid group.LocationID) string {
	return strconv.Itoa(int(lid))
}

// dispatch applies one parsed frame from lid to the transport's state.
// Called only from runUntil, never concurrently.
func (d *Dynamic) dispatch(lid group.LocationID, f Frame) error {
	peer, ok := d.peer(lid)
	if !ok {
		if f.Kind == CmdUnknown {
			return nil
		}
		nlog.Warningf("dynamic: frame from unregistered peer %d: %v\n", lid, f.Kind)
		return nil
	}

	switch f.Kind {
	case CmdUnknown:
		return nil
	case CmdAllowSend:
		return d.handleAllowSend(peer, f.Args)
	case CmdData:
		return d.handleData(peer, f.Args, false)
	case CmdDataZ:
		return d.handleData(peer, f.Args, true)
	default:
		if d.OnControl != nil {
			d.OnControl(lid, f)
		}
		return nil
	}
}

func (d *Dynamic) handleAllowSend(peer *Peer, args []string) error {
	count, elemsize, err := parseTwoInts(args)
	if err != nil {
		return cmn.NewErrProtocol("dynamic: bad allowsend", err)
	}
	peer.scount = count
	peer.selemsize = elemsize
	return nil
}

func (d *Dynamic) handleData(peer *Peer, args []string, compressed bool) error {
	n, _, payload, err := ParseData(args)
	if err != nil {
		return cmn.NewErrProtocol("dynamic: bad data frame", err)
	}

	cfg := cmn.GCO.Get()
	if peer.rmap == nil && peer.rflat == nil {
		nlog.Warningf("dynamic: unexpected data frame from %d, no credit posted\n", peer.LID)
		return nil
	}

	if compressed {
		raw := make([]byte, n)
		if _, err := lz4.UncompressBlock(payload, raw); err != nil {
			return cmn.NewErrProtocol("dynamic: lz4 decompress", err)
		}
		payload = raw
	}

	elemsize := peer.relemsize
	if elemsize == 0 {
		return cmn.NewErrInvariant("dynamic: data frame with no active recv element size")
	}
	count := len(payload) / elemsize

	if cfg.DropSmallMessages && count < cfg.DropSmallMessagesUnder {
		nlog.Warningf("dynamic: dropping %d-element message under debug threshold\n", count)
		return nil
	}

	if peer.rflat != nil {
		off := peer.roff * elemsize
		copy(peer.rflat[off:off+len(payload)], payload)
		peer.roff += count
		return nil
	}

	// mapping-targeted recv: RecvSlice only ever targets a non-contiguous
	// layout (the executor routes contiguous recvs through Recv/rflat
	// instead, see executor.go), so Unpack is always safe to call here.
	unpacked := peer.rmap.Layout.Unpack(peer.rmap.Dims, peer.rmap.Required, peer.rslc, &peer.ridx, peer.rmap.Base, elemsize, payload)
	peer.roff += unpacked
	return nil
}

// SendSlice sends every element of slc from m, position-annotated, once
// the peer has granted matching credit (spec §4.7's "transport's public
// calls (send_slice, recv_slice)").
func (d *Dynamic) SendSlice(m *mapping.Mapping, slc index.Slice, to group.LocationID) error {
	peer, err := d.mustPeer(to)
	if err != nil {
		return err
	}
	size := int(index.Size(m.Dims, slc))
	if err := d.runUntil(func() bool { return peer.scount == size && peer.selemsize == m.ElemSize }); err != nil {
		return err
	}

	cursor := slc.From
	for i := 0; i < size; i++ {
		off := m.Layout.Offset(m.Required, cursor) * int64(m.ElemSize)
		elem := m.Base[off : off+int64(m.ElemSize)]
		pos := FormatPos(m.Dims, cursor.I[0], cursor.I[1], cursor.I[2])
		if err := peer.writeLine(FormatData(elem, pos)); err != nil {
			return cmn.NewErrIO("dynamic: write data frame", err)
		}
		if i < size-1 {
			index.NextLex(m.Dims, slc, &cursor)
		}
	}
	peer.scount = 0
	return nil
}

// RecvSlice posts credit for slc's full element count, then blocks in
// the event loop until every element has landed in m via dispatch.
func (d *Dynamic) RecvSlice(m *mapping.Mapping, slc index.Slice, from group.LocationID) error {
	peer, err := d.mustPeer(from)
	if err != nil {
		return err
	}
	size := int(index.Size(m.Dims, slc))
	peer.rmap = m
	peer.rslc = slc
	peer.ridx = slc.From
	peer.relemsize = m.ElemSize
	peer.rcount = size
	peer.roff = 0

	if err := peer.writeLine(FormatAllowSend(size, m.ElemSize)); err != nil {
		return cmn.NewErrIO("dynamic: write allowsend", err)
	}
	if err := d.runUntil(func() bool { return peer.recvDone() }); err != nil {
		return err
	}
	peer.resetRecv()
	return nil
}

// Send implements transport.Transport over a flat element buffer
// (used by the manual reduction protocol's gather/scatter, spec §4.6).
func (d *Dynamic) Send(buf []byte, count int, dt transport.Datatype, to group.LocationID, tag int) error {
	peer, err := d.mustPeer(to)
	if err != nil {
		return err
	}
	if err := d.runUntil(func() bool { return peer.scount == count && peer.selemsize == dt.ElemSize }); err != nil {
		return err
	}

	total := count * dt.ElemSize
	cfg := cmn.GCO.Get()
	if cfg.Compression && total >= cfg.CompressionThreshold {
		bound := lz4.CompressBlockBound(total)
		dst := make([]byte, bound)
		var ht [1 << 16]int
		n, cerr := lz4.CompressBlock(buf[:total], dst, ht[:])
		if cerr != nil {
			return cmn.NewErrIO("dynamic: lz4 compress", cerr)
		}
		if n == 0 {
			// incompressible: lz4 reports 0 when output wouldn't shrink
			if err := d.sendPlain(peer, buf[:total], dt.ElemSize); err != nil {
				return err
			}
		} else if err := peer.writeLine(FormatDataZ(total, dst[:n])); err != nil {
			return cmn.NewErrIO("dynamic: write dataz frame", err)
		}
	} else if err := d.sendPlain(peer, buf[:total], dt.ElemSize); err != nil {
		return err
	}

	peer.scount = 0
	return nil
}

func (d *Dynamic) sendPlain(peer *Peer, buf []byte, elemsize int) error {
	for off := 0; off < len(buf); off += elemsize {
		if err := peer.writeLine(FormatData(buf[off:off+elemsize], "")); err != nil {
			return cmn.NewErrIO("dynamic: write data frame", err)
		}
	}
	return nil
}

func (d *Dynamic) Recv(buf []byte, count int, dt transport.Datatype, from group.LocationID, tag int) (int, error) {
	peer, err := d.mustPeer(from)
	if err != nil {
		return 0, err
	}
	// Dispatch frames that arrived before this credit is posted while no
	// receive target is set, so handleData drops any stray data frame.
	for queued := true; queued; {
		select {
		case fr := <-d.inbox:
			if fr.err != nil {
				d.handleDisconnect(fr.lid, fr.err)
			} else if err := d.dispatch(fr.lid, fr.frame); err != nil {
				nlog.Warningf("dynamic: dispatch from %d: %v\n", fr.lid, err)
			}
		default:
			queued = false
		}
	}
	peer.rflat = buf[:count*dt.ElemSize]
	peer.relemsize = dt.ElemSize
	peer.rcount = count
	peer.roff = 0

	if err := peer.writeLine(FormatAllowSend(count, dt.ElemSize)); err != nil {
		return 0, cmn.NewErrIO("dynamic: write allowsend", err)
	}
	if err := d.runUntil(func() bool { return peer.recvDone() }); err != nil {
		return 0, err
	}
	n := peer.roff
	peer.rflat = nil
	peer.resetRecv()
	return n, nil
}

// AllReduce has no native collective to delegate to, so it runs the
// manual gather/fold/scatter protocol over the full group (spec §4.7).
func (d *Dynamic) AllReduce(in, out []byte, count int, dt transport.Datatype, op transition.ReduceOp) error {
	if dt.Reduce == nil {
		return cmn.NewErrConfig("dynamic: allreduce needs a reduce function for "+dt.Name, nil)
	}
	return reduce.Manual(d, d.g, nil, group.AllGroup, group.AllGroup, op, dt, int64(count), tagReduce, in, out)
}

// Reduce folds into root only, via the same manual protocol with a
// single-task output sub-group.
func (d *Dynamic) Reduce(in, out []byte, count int, dt transport.Datatype, op transition.ReduceOp, root group.TaskID) error {
	if dt.Reduce == nil {
		return cmn.NewErrConfig("dynamic: reduce needs a reduce function for "+dt.Name, nil)
	}
	sg := []group.SubGroup{{Tasks: []group.TaskID{root}}}
	return reduce.Manual(d, d.g, sg, group.AllGroup, 0, op, dt, int64(count), tagReduce, in, out)
}

// Sync stands in for backend-tcp2.c's partial key-value sync path
// (`tcp2_sync` / `sync <id>` / `object ...` lines); spec.md §9 calls that
// path out as unspecified rather than something to reproduce, so this
// returns an explicit unsupported error instead of a partial stub.
func (d *Dynamic) Sync(id string) error {
	return cmn.NewErrUnsupported("kv-sync")
}

// Exec is unused: the executor drives Dynamic through Send/Recv/
// SendSlice/RecvSlice directly rather than replaying a compiled plan.
func (d *Dynamic) Exec(p *plan.Plan) error {
	if len(p.Actions()) == 0 {
		return nil
	}
	return cmn.NewErrInvariant("dynamic transport: Exec fast path requires an Executor-driven replay")
}

// UpdateGroup drops connections to peers no longer in g; it keeps
// everyone else's socket open since Dynamic addresses peers directly
// rather than through a rebuildable communicator handle.
func (d *Dynamic) UpdateGroup(g *group.Group) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	keep := make(map[group.LocationID]bool, len(g.Tasks()))
	for _, lid := range g.Tasks() {
		keep[lid] = true
	}
	for lid, p := range d.peers {
		if !keep[lid] {
			p.conn.Close()
			delete(d.peers, lid)
		}
	}
	d.g = g
	return nil
}

func parseTwoInts(args []string) (a, b int, err error) {
	if len(args) < 2 {
		return 0, 0, cmn.NewErrProtocol("dynamic: expected 2 args", nil)
	}
	a, err = atoi(args[0])
	if err != nil {
		return 0, 0, err
	}
	b, err = atoi(args[1])
	return a, b, err
}

func atoi(s string) (int, error) {
	n := 0
	neg := false
	for i, c := range s {
		if i == 0 && c == '-' {
			neg = true
			continue
		}
		if c < '0' || c > '9' {
			return 0, cmn.NewErrProtocol("dynamic: bad integer "+s, nil)
		}
		n = n*10 + int(c-'0')
	}
	if neg {
		n = -n
	}
	return n, nil
}
