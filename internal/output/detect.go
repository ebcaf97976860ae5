package output

import (
	"os"
)

// isattyFn allows overriding terminal detection in tests.
var isattyFn = isTerminal

// IsTerminal reports whether f is connected to an interactive terminal,
// for callers deciding between a pretty-printed and a compact rendering
// of status/metadata (the opaque result batches themselves are never
// reformatted, see Raw).
func IsTerminal(f *os.File) bool { return isattyFn(f) }

// NoColor reports whether ANSI color output should be suppressed.
// Returns true when the NO_COLOR environment variable is set (any value).
func NoColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

// isTerminal reports whether f is connected to a terminal character device.
func isTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&os.ModeDevice != 0 && mode&os.ModeCharDevice != 0
}
