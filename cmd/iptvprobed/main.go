// Package main is the entry point for the iptvprobed application.
package main

import (
	"os"

	"github.com/jmylchreest/iptvprobe/cmd/iptvprobed/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
