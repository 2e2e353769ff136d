// Package nlog is a small leveled logger used throughout the runtime in
// place of ad-hoc fmt.Printf calls. It wraps the standard library logger;
// the point is a consistent call shape (Infof/Infoln/Warningf/Errorln),
// not a sophisticated backend.
package nlog

import (
	"log"
	"os"
	"sync/atomic"
)

var (
	std   = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)
	level int32 = 1 // verbosity threshold for V-gated calls
)

// SetLevel adjusts the verbosity threshold used by FastV-gated call sites.
func SetLevel(v int) { atomic.StoreInt32(&level, int32(v)) }

func FastV(v int) bool { return int32(v) <= atomic.LoadInt32(&level) }

func Infof(format string, args ...any)    { std.Printf("I "+format, args...) }
func Infoln(args ...any)                  { std.Println(append([]any{"I"}, args...)...) }
func Warningf(format string, args ...any) { std.Printf("W "+format, args...) }
func Warningln(args ...any)               { std.Println(append([]any{"W"}, args...)...) }
func Errorf(format string, args ...any)   { std.Printf("E "+format, args...) }
func Errorln(args ...any)                 { std.Println(append([]any{"E"}, args...)...) }

// Flush is a no-op placeholder kept for call-site symmetry with buffered
// logging backends; the standard-library logger is unbuffered.
func Flush() {}
