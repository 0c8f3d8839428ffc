// Command mstransform transforms visibility archives: data selection,
// channel averaging, window combination and splitting, regridding, time
// averaging, polarization averaging and the optional calibration layers.
//
// Usage:
//
//	mstransform run --config params.yaml --vis in.db --outputvis out.db
//	mstransform plan --vis in.db --set chanaverage=true --set chanbin=4
//	mstransform inspect out.db
//
// Options come from the parameter file, MSTRANSFORM_<KEY> environment
// variables, flags and --set key=value overrides, in increasing precedence.
package main

import (
	"fmt"
	"os"

	"github.com/cwbudde/algo-mstransform/fault"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mstransform:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps the failure kind to the process status.
func exitCode(err error) int {
	switch fault.KindOf(err) {
	case fault.KindConfiguration:
		return 2
	case fault.KindSelection:
		return 3
	case fault.KindStructural, fault.KindNumerical:
		return 4
	case fault.KindIO:
		return 5
	default:
		return 1
	}
}
