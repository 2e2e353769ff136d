package dynamic

import (
	"bufio"
	"net"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/partimesh/parti/group"
	"github.com/partimesh/parti/index"
	"github.com/partimesh/parti/mapping"
	"github.com/partimesh/parti/transition"
)

// Peer is one connection's mutable state, grounded on backend-tcp2.c's
// `struct _Peer` fields (rcount/relemsize/roff/rmap/rslc/ridx/rro for the
// receive side, scount/selemsize for the credit this process currently
// holds to send to that peer). Every field here is touched only from
// the event loop goroutine (eventloop.go) — the per-connection reader
// goroutine only ever pushes parsed frames onto Dynamic.inbox, never
// mutates a Peer directly — so no additional locking protects them.
type Peer struct {
	LID  group.LocationID
	conn net.Conn
	w    *bufio.Writer

	// Receive-side bookkeeping for the slice currently being unpacked.
	rcount    int // total elements expected for the active recv (roff counts those received)
	relemsize int
	roff      int
	rmap      *mapping.Mapping
	rslc      index.Slice
	ridx      index.Index
	rro       transition.ReduceOp // set only when recv folds in place
	rflat     []byte              // active target for a flat (non-mapping) Recv

	// Send-side: credit this process currently holds to push data to LID.
	scount    int
	selemsize int

	sendMu sync.Mutex // serializes writes to conn across SendSlice/control frames
}

func newPeer(lid group.LocationID, conn net.Conn) *Peer {
	tuneSocket(conn)
	return &Peer{LID: lid, conn: conn, w: bufio.NewWriter(conn)}
}

// tuneSocket sets TCP_NODELAY on conn's underlying fd so single-element
// data frames aren't held back by Nagle coalescing; best-effort, since
// conn may not be a TCP socket (net.Pipe in tests) or may not expose a
// syscall.Conn.
func tuneSocket(conn net.Conn) {
	sc, ok := conn.(interface {
		SyscallConn() (syscall.RawConn, error)
	})
	if !ok {
		return
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return
	}
	_ = raw.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	})
}

func (p *Peer) writeLine(s string) error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	if _, err := p.w.WriteString(s); err != nil {
		return err
	}
	return p.w.Flush()
}

// resetRecv clears the receive-side state once a slice transfer completes.
func (p *Peer) resetRecv() {
	p.rcount = 0
	p.relemsize = 0
	p.roff = 0
	p.rmap = nil
	p.rflat = nil
}

// recvDone reports whether the active recv has consumed every expected element.
func (p *Peer) recvDone() bool { return p.rcount > 0 && p.roff >= p.rcount }
