// Package main runs the hyparm command line tool from the module root.
//
// The same commands are available from ./cmd/hyparm.
package main

import (
	"os"

	"github.com/sarchlab/hyparm/cmd/hyparm/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
