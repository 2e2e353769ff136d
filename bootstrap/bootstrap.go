// Package bootstrap implements the register/id/myid handshake spec §6
// describes for the Dynamic transport: a home process (location 0)
// acquires LAIK_TCP2_HOST:LAIK_TCP2_PORT and waits for LAIK_SIZE-1
// registrations; every other process dials home, learns the full
// roster, then mesh-connects directly to every higher-location peer
// (the master already holds a direct connection to everyone from
// accepting their registration). Grounded wholesale on
// original_source/src/backend-tcp2.c's bootstrap section.
package bootstrap

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/partimesh/parti/cmn"
	"github.com/partimesh/parti/cmn/nlog"
	"github.com/partimesh/parti/group"
	"github.com/partimesh/parti/transport/dynamic"
)

type peerInfo struct {
	LID  group.LocationID
	Name string
	Ep   group.Endpoint
}

// Join bootstraps a Dynamic transport, its Group, and the peer directory
// (SPEC_FULL.md §3's buntdb-backed endpoint table) recording every
// location's endpoint as the handshake discovers it. myHost/myPort is
// this process's own listen address (used for mesh dials from lower-id
// peers); myName is the free-form "location" label the register/id
// frames carry.
func Join(cfg *cmn.Config, myHost string, myPort int, myName string) (*group.Group, *dynamic.Dynamic, *group.Directory, error) {
	dir := group.NewDirectory()
	if cfg.Size <= 1 {
		dir.Put(0, group.Endpoint{Host: myHost, Port: myPort})
		g := group.New(0, []group.LocationID{0})
		return g, dynamic.New(g), dir, nil
	}

	addr := fmt.Sprintf("%s:%d", cfg.TCPHost, cfg.TCPPort)
	ln, err := net.Listen("tcp", addr)
	if err == nil {
		g, d, err := joinAsMaster(cfg, ln, myName, dir)
		return g, d, dir, err
	}
	g, d, err := joinAsWorker(cfg, addr, myHost, myPort, myName, dir)
	return g, d, dir, err
}

// readLine blocks for one line and parses it as a wire frame; used for
// the pre-identity phase of an inbound connection (the master's register
// read, the mesh acceptor's myid read), before the connection is handed
// to Dynamic.AddPeer.
func readLine(conn net.Conn) (dynamic.Frame, error) {
	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	if err != nil {
		return dynamic.Frame{}, err
	}
	return dynamic.ParseLine(strings.TrimRight(line, "\r\n")), nil
}

func joinAsMaster(cfg *cmn.Config, ln net.Listener, myName string, dir *group.Directory) (*group.Group, *dynamic.Dynamic, error) {
	placeholder := group.New(0, []group.LocationID{0})
	d := dynamic.New(placeholder)

	dir.Put(0, group.Endpoint{Host: cfg.TCPHost, Port: cfg.TCPPort})
	var mu sync.Mutex
	roster := map[group.LocationID]peerInfo{
		0: {LID: 0, Name: myName, Ep: group.Endpoint{Host: cfg.TCPHost, Port: cfg.TCPPort}},
	}
	nextID := group.LocationID(1)
	ready := make(chan struct{})

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				f, err := readLine(conn)
				if err != nil || f.Kind != dynamic.CmdRegister {
					nlog.Warningf("bootstrap: expected register, got err=%v frame=%v\n", err, f.Kind)
					conn.Close()
					return
				}
				loc, host, port, err := dynamic.ParseRegister(f.Args)
				if err != nil {
					nlog.Warningf("bootstrap: bad register args: %v\n", err)
					conn.Close()
					return
				}

				mu.Lock()
				lid := nextID
				nextID++
				known := make([]peerInfo, 0, len(roster))
				for _, p := range roster {
					known = append(known, p)
				}
				roster[lid] = peerInfo{LID: lid, Name: loc, Ep: group.Endpoint{Host: host, Port: port}}
				done := len(roster) == cfg.Size
				mu.Unlock()

				dir.Put(lid, group.Endpoint{Host: host, Port: port})
				d.AddPeer(lid, conn)
				for _, p := range known {
					_ = d.SendControl(lid, dynamic.FormatID(int32(p.LID), p.Name, p.Ep.Host, p.Ep.Port))
				}
				mu.Lock()
				for _, p := range roster {
					if p.LID == lid || p.LID == 0 {
						continue
					}
					_ = d.SendControl(p.LID, dynamic.FormatID(int32(lid), loc, host, port))
				}
				mu.Unlock()

				if done {
					close(ready)
				}
			}(conn)
		}
	}()

	<-ready
	mu.Lock()
	lids := make([]group.LocationID, 0, len(roster))
	for lid := range roster {
		lids = append(lids, lid)
	}
	mu.Unlock()
	g := buildGroup(0, lids, cfg.Size)
	if err := d.UpdateGroup(g); err != nil {
		return nil, nil, err
	}
	// Master already holds a direct connection to every peer from
	// accepting their registration; no mesh dialing needed on this side.
	return g, d, nil
}

func joinAsWorker(cfg *cmn.Config, masterAddr, myHost string, myPort int, myName string, dir *group.Directory) (*group.Group, *dynamic.Dynamic, error) {
	conn, err := net.Dial("tcp", masterAddr)
	if err != nil {
		return nil, nil, cmn.NewErrIO("bootstrap: dial master "+masterAddr, err)
	}

	placeholder := group.New(-1, []group.LocationID{0})
	d := dynamic.New(placeholder)

	var mu sync.Mutex
	roster := make(map[group.LocationID]peerInfo)
	var myLID group.LocationID = -1
	ready := make(chan struct{})
	var once sync.Once

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", myHost, myPort))
	if err != nil {
		return nil, nil, cmn.NewErrIO("bootstrap: listen for mesh dials", err)
	}
	go acceptMesh(d, ln)

	d.OnControl = func(_ group.LocationID, f dynamic.Frame) {
		if f.Kind != dynamic.CmdID {
			return
		}
		lid32, loc, host, port, err := dynamic.ParseID(f.Args)
		if err != nil {
			nlog.Warningf("bootstrap: bad id frame: %v\n", err)
			return
		}
		lid := group.LocationID(lid32)
		dir.Put(lid, group.Endpoint{Host: host, Port: port})
		mu.Lock()
		roster[lid] = peerInfo{LID: lid, Name: loc, Ep: group.Endpoint{Host: host, Port: port}}
		if loc == myName && host == myHost && port == myPort {
			myLID = lid
		}
		done := len(roster) == cfg.Size-1 && myLID >= 0
		mu.Unlock()
		if done {
			once.Do(func() { close(ready) })
		}
	}

	d.AddPeer(0, conn)
	if err := d.SendControl(0, dynamic.FormatRegister(myName, myHost, myPort)); err != nil {
		return nil, nil, err
	}

	<-ready
	dir.Put(0, group.Endpoint{Host: cfg.TCPHost, Port: cfg.TCPPort})
	dir.Put(myLID, group.Endpoint{Host: myHost, Port: myPort})
	mu.Lock()
	roster[0] = peerInfo{LID: 0, Name: "home", Ep: group.Endpoint{Host: cfg.TCPHost, Port: cfg.TCPPort}}
	roster[myLID] = peerInfo{LID: myLID, Name: myName, Ep: group.Endpoint{Host: myHost, Port: myPort}}
	lids := make([]group.LocationID, 0, len(roster))
	for lid := range roster {
		lids = append(lids, lid)
	}
	mu.Unlock()

	g := buildGroup(myLID, lids, cfg.Size)
	if err := d.UpdateGroup(g); err != nil {
		return nil, nil, err
	}
	if err := meshDialHigher(cfg, myLID, lids, dir, d); err != nil {
		return nil, nil, err
	}
	return g, d, nil
}

// acceptMesh accepts direct peer-to-peer dials from lower-location
// peers, each announced with a single "myid <lid>" line.
func acceptMesh(d *dynamic.Dynamic, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go func(conn net.Conn) {
			f, err := readLine(conn)
			if err != nil || f.Kind != dynamic.CmdMyID {
				nlog.Warningf("bootstrap: expected myid, got err=%v frame=%v\n", err, f.Kind)
				conn.Close()
				return
			}
			lid32, err := dynamic.ParseMyID(f.Args)
			if err != nil {
				nlog.Warningf("bootstrap: bad myid: %v\n", err)
				conn.Close()
				return
			}
			d.AddPeer(group.LocationID(lid32), conn)
		}(conn)
	}
}

// meshDialHigher connects myLID to every peer with a strictly higher
// location id (spec §4.10): pairs with a lower id already hold a direct
// connection to everyone lower via this same rule, so every pair ends
// up connected exactly once. Endpoints are resolved through dir, the
// authoritative peer directory populated as the handshake progressed.
func meshDialHigher(cfg *cmn.Config, myLID group.LocationID, lids []group.LocationID, dir *group.Directory, d *dynamic.Dynamic) error {
	var eg errgroup.Group
	eg.SetLimit(cfg.BootstrapConcurrency)
	for _, lid := range lids {
		if lid <= myLID {
			continue
		}
		lid := lid
		eg.Go(func() error {
			ep, ok := dir.Lookup(lid)
			if !ok {
				return cmn.NewErrInvariant(fmt.Sprintf("bootstrap: no directory entry for T%d", lid))
			}
			conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", ep.Host, ep.Port))
			if err != nil {
				return cmn.NewErrIO(fmt.Sprintf("bootstrap: mesh dial T%d", lid), err)
			}
			if err := writeLine(conn, dynamic.FormatMyID(int32(myLID))); err != nil {
				return err
			}
			d.AddPeer(lid, conn)
			return nil
		})
	}
	return eg.Wait()
}

func writeLine(conn net.Conn, s string) error {
	_, err := conn.Write([]byte(s))
	return err
}

// buildGroup assumes the bootstrap convention that location ids are
// assigned sequentially from 0, so a location id doubles as its task
// index in the resulting root Group.
func buildGroup(myLID group.LocationID, lids []group.LocationID, size int) *group.Group {
	tasks := make([]group.LocationID, size)
	for _, lid := range lids {
		tasks[lid] = lid
	}
	return group.New(group.TaskID(myLID), tasks)
}
