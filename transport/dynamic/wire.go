// Package dynamic implements C7's Dynamic transport: a text-framed,
// credit-based transport over stream sockets, grounded wholesale on
// original_source/src/backend-tcp2.c. Every line is ASCII, newline
// terminated, and the core commands accept a first-letter abbreviation;
// a leading '#' marks a comment line.
package dynamic

import (
	"fmt"
	"strconv"
	"strings"
)

// CmdKind identifies a parsed wire command (spec §6).
type CmdKind int

const (
	CmdUnknown CmdKind = iota
	CmdRegister
	CmdID
	CmdMyID
	CmdPhase
	CmdAllowSend
	CmdData
	CmdDataZ // compressed variant, SPEC_FULL.md §4.10
	CmdHelp
	CmdStatus
	CmdQuit
	CmdKill
)

// words are the full command spellings; each maps to a distinct first
// letter among the spec §6 core set (register/id/myid/phase/allowsend/
// data/help/status/quit/kill), so first-letter abbreviation is
// unambiguous for them. "dataz" shares 'd' with "data" and so is
// matched by full word only, never by abbreviation.
var words = map[string]CmdKind{
	"register":   CmdRegister,
	"id":         CmdID,
	"myid":       CmdMyID,
	"phase":      CmdPhase,
	"allowsend":  CmdAllowSend,
	"data":       CmdData,
	"dataz":      CmdDataZ,
	"help":       CmdHelp,
	"status":     CmdStatus,
	"quit":       CmdQuit,
	"kill":       CmdKill,
}

var letters = map[byte]CmdKind{
	'r': CmdRegister,
	'i': CmdID,
	'm': CmdMyID,
	'p': CmdPhase,
	'a': CmdAllowSend,
	'd': CmdData,
	'h': CmdHelp,
	's': CmdStatus,
	'q': CmdQuit,
	'k': CmdKill,
}

// Frame is one parsed wire line.
type Frame struct {
	Kind CmdKind
	Args []string
}

// ParseLine decodes one wire line (spec §6). Blank lines and lines
// starting with '#' parse to CmdUnknown with no args, signalling "skip".
func ParseLine(line string) Frame {
	line = strings.ReplaceAll(line, "\r", " ")
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Frame{Kind: CmdUnknown}
	}
	fields := strings.Fields(line)
	word := strings.ToLower(fields[0])

	if k, ok := words[word]; ok {
		return Frame{Kind: k, Args: fields[1:]}
	}
	if len(word) == 1 {
		if k, ok := letters[word[0]]; ok {
			return Frame{Kind: k, Args: fields[1:]}
		}
	}
	return Frame{Kind: CmdUnknown, Args: fields}
}

// FormatRegister encodes "register <location> <host> <port>", the
// handshake a joining process sends to the home (master) process.
func FormatRegister(location, host string, port int) string {
	return fmt.Sprintf("register %s %s %d\n", location, host, port)
}

// ParseRegister decodes a register frame's args.
func ParseRegister(args []string) (location, host string, port int, err error) {
	if len(args) < 3 {
		return "", "", 0, fmt.Errorf("dynamic: register needs 3 args, got %d", len(args))
	}
	port, err = strconv.Atoi(args[2])
	return args[0], args[1], port, err
}

// FormatID encodes "id <lid> <location> <host> <port>": the master's
// announcement of a peer's identity, sent both to the newcomer (for
// everyone already known) and to everyone already known (for the
// newcomer).
func FormatID(lid int32, location, host string, port int) string {
	return fmt.Sprintf("id %d %s %s %d\n", lid, location, host, port)
}

// ParseID decodes an id frame's args.
func ParseID(args []string) (lid int32, location, host string, port int, err error) {
	if len(args) < 4 {
		return 0, "", "", 0, fmt.Errorf("dynamic: id needs 4 args, got %d", len(args))
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, "", "", 0, err
	}
	port, err = strconv.Atoi(args[3])
	return int32(n), args[1], args[2], port, err
}

// FormatMyID encodes "myid <lid>": what a process sends immediately
// after dialing a peer directly (mesh connect), since the peer already
// knows the dialer's identity from the master's roster broadcast.
func FormatMyID(lid int32) string { return fmt.Sprintf("myid %d\n", lid) }

// ParseMyID decodes a myid frame's args.
func ParseMyID(args []string) (lid int32, err error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("dynamic: myid needs 1 arg")
	}
	n, err := strconv.Atoi(args[0])
	return int32(n), err
}

// FormatPhase encodes "phase <n>".
func FormatPhase(n int) string { return fmt.Sprintf("phase %d\n", n) }

// FormatAllowSend encodes "allowsend <count> <elemsize>": the credit a
// receiver grants its sender for one whole slice transfer (spec §6).
func FormatAllowSend(count, elemsize int) string {
	return fmt.Sprintf("allowsend %d %d\n", count, elemsize)
}

// FormatData encodes one payload element: "data <nbytes> [(pos)] <hex>...".
// pos is empty to omit the optional position annotation.
func FormatData(elem []byte, pos string) string {
	var b strings.Builder
	b.WriteString("data ")
	b.WriteString(strconv.Itoa(len(elem)))
	b.WriteByte(' ')
	if pos != "" {
		b.WriteByte('(')
		b.WriteString(pos)
		b.WriteString(") ")
	}
	for i, by := range elem {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02x", by)
	}
	b.WriteByte('\n')
	return b.String()
}

// FormatDataZ is FormatData's compressed-frame counterpart: payload is a
// single hex blob of an lz4-compressed run of elements rather than one
// element's hex bytes (SPEC_FULL.md §4.10).
func FormatDataZ(rawLen int, compressed []byte) string {
	var b strings.Builder
	b.WriteString("dataz ")
	b.WriteString(strconv.Itoa(rawLen))
	b.WriteByte(' ')
	for i, by := range compressed {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02x", by)
	}
	b.WriteByte('\n')
	return b.String()
}

// ParseData extracts the byte count, optional position string, and
// decoded element bytes from a CmdData/CmdDataZ frame's Args.
func ParseData(args []string) (n int, pos string, payload []byte, err error) {
	if len(args) < 1 {
		return 0, "", nil, fmt.Errorf("dynamic: data frame missing length")
	}
	n, err = strconv.Atoi(args[0])
	if err != nil {
		return 0, "", nil, fmt.Errorf("dynamic: bad data length %q: %w", args[0], err)
	}
	rest := args[1:]
	if len(rest) > 0 && strings.HasPrefix(rest[0], "(") {
		pos = strings.Trim(rest[0], "()")
		rest = rest[1:]
	}
	payload = make([]byte, len(rest))
	for i, tok := range rest {
		var v int64
		v, err = strconv.ParseInt(tok, 16, 16)
		if err != nil {
			return 0, "", nil, fmt.Errorf("dynamic: bad hex byte %q: %w", tok, err)
		}
		payload[i] = byte(v)
	}
	return n, pos, payload, nil
}

// FormatPos renders an index position per dims for the "(pos)" annotation.
func FormatPos(dims int, i0, i1, i2 int64) string {
	switch dims {
	case 1:
		return fmt.Sprintf("%d", i0)
	case 2:
		return fmt.Sprintf("%d/%d", i0, i1)
	default:
		return fmt.Sprintf("%d/%d/%d", i0, i1, i2)
	}
}
