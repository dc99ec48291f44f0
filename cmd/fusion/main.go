// Package main runs the fusion command line.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/fusion/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fusion: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
