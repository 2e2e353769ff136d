package dynamic

import (
	"bufio"
	"io"
	"net"

	"github.com/partimesh/parti/cmn/nlog"
	"github.com/partimesh/parti/group"
)

// inboundFrame is one item flowing through the loop's inbox: a parsed
// wire frame from a known peer, or a connection-level error (read
// failure / EOF) standing in for the source's "connection dropped"
// event. Reader goroutines only ever produce these; only the dispatch
// goroutine (runUntil) ever consumes them and mutates Peer state —
// the cooperative single-threaded-dispatch model of spec §4.7, done
// with channels instead of select() over raw fds.
type inboundFrame struct {
	lid   group.LocationID
	frame Frame
	err   error
}

// startReader pumps lines off conn into inbox until it errors or EOF.
// It never touches Peer or Dynamic state directly.
func startReader(lid group.LocationID, conn net.Conn, inbox chan<- inboundFrame) {
	go func() {
		sc := bufio.NewScanner(conn)
		sc.Buffer(make([]byte, 4096), 1<<20)
		for sc.Scan() {
			inbox <- inboundFrame{lid: lid, frame: ParseLine(sc.Text())}
		}
		err := sc.Err()
		if err == nil {
			err = io.EOF
		}
		inbox <- inboundFrame{lid: lid, err: err}
	}()
}

// runUntil drains inbox, dispatching each frame, until cond reports
// true. It is the replacement for backend-tcp2.c's run_loop: every
// blocking public call (SendSlice, RecvSlice, bootstrap handshake
// steps) re-enters here rather than spinning its own socket read.
func (d *Dynamic) runUntil(cond func() bool) error {
	for !cond() {
		fr := <-d.inbox
		if fr.err != nil {
			d.handleDisconnect(fr.lid, fr.err)
			continue
		}
		if err := d.dispatch(fr.lid, fr.frame); err != nil {
			nlog.Warningf("dynamic: dispatch from %d: %v\n", fr.lid, err)
		}
	}
	return nil
}

func (d *Dynamic) handleDisconnect(lid group.LocationID, err error) {
	d.mu.Lock()
	delete(d.peers, lid)
	d.mu.Unlock()
	nlog.Infof("dynamic: peer %d disconnected: %v\n", lid, err)
}
