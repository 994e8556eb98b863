// Package debug provides env-gated diagnostic logging to stderr.
package debug

import (
	"fmt"
	"os"
	"sync"
)

var (
	enabled     = os.Getenv("DCAT_DEBUG") != ""
	verboseMode = false
	mu          sync.Mutex
)

// Enabled reports whether debug output is active.
func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose output regardless of the environment.
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// Logf writes a formatted line to stderr when debug output is active.
func Logf(format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(os.Stderr, format, args...)
	if len(format) == 0 || format[len(format)-1] != '\n' {
		fmt.Fprintln(os.Stderr)
	}
}

// Warnf writes a formatted warning to stderr unconditionally.
func Warnf(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(os.Stderr, "warning: "+format, args...)
	if len(format) == 0 || format[len(format)-1] != '\n' {
		fmt.Fprintln(os.Stderr)
	}
}
