// Package main provides the hyparm command line tool.
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
