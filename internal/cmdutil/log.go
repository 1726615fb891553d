package cmdutil

import (
	"flag"
	"strconv"
)

// LogToStderr is set once InitLogging has routed glog to stderr.
var LogToStderr bool

// InitLogging ensures the glog library has been initialized with the given
// settings. glog reads them from the standard flag set while cobra owns the
// command line, so the set is marked parsed and the values poked directly.
func InitLogging(logToStderr bool, verbose int) {
	if !flag.Parsed() {
		_ = flag.CommandLine.Parse(nil)
	}
	if logToStderr {
		LogToStderr = true
		_ = flag.Set("logtostderr", "true")
	}
	if verbose > 0 {
		_ = flag.Set("v", strconv.Itoa(verbose))
	}
}
