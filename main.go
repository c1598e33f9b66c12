// host-pulse watches CPU, memory, GPU, disk and temperature on the local
// host and raises desktop alerts when a reading stays over its threshold.
//
// Usage:
//
//	host-pulse [command]
//
// Commands:
//
//	run       Sample headlessly, mirroring state to the cache directory
//	tui       Launch the interactive dashboard
//	sample    Print one snapshot as JSON
//	status    Report the state recorded by a running daemon
//	config    Show, validate or create the configuration file
//	version   Print version information
//	man       Print the man page
package main

import (
	"fmt"
	"os"

	"emperror.dev/errors"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := Execute(); err != nil {
		if !errors.Is(err, errUnhealthy) {
			fmt.Fprintln(os.Stderr, "host-pulse:", err)
		}
		os.Exit(1)
	}
}
