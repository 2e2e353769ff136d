// Package debug provides assertions that cost nearly nothing unless
// enabled. Enable by setting PARTI_DEBUG (any non-empty value) at init
// time or by calling SetEnabled; otherwise Assert/AssertMsg are near
// no-ops (the condition is still evaluated, matching the teacher's own
// cmn/debug behavior, but no panic is raised). AssertNoErr always panics
// on a non-nil error.
package debug

import (
	"fmt"
	"os"
)

var enabled = os.Getenv("PARTI_DEBUG") != ""

// Enabled reports whether assertions panic on violation.
func Enabled() bool { return enabled }

// SetEnabled overrides the PARTI_DEBUG env default; used by tests that
// want assertion failures to surface as panics regardless of environment.
func SetEnabled(v bool) { enabled = v }

// Assert panics with msg if cond is false and assertions are enabled.
func Assert(cond bool, msg string) {
	if enabled && !cond {
		panic("assertion failed: " + msg)
	}
}

// AssertMsg is Assert with a lazily-formatted message.
func AssertMsg(cond bool, format string, args ...any) {
	if enabled && !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

// AssertNoErr panics on a non-nil error, regardless of the enabled flag:
// an unexpected internal error is always a bug, not a tunable check.
func AssertNoErr(err error) {
	if err != nil {
		panic("unexpected error: " + err.Error())
	}
}

// Func runs f only when assertions are enabled; used to guard expensive
// consistency checks that would otherwise run on every call.
func Func(f func()) {
	if enabled {
		f()
	}
}
