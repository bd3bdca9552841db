// Package main provides the aedesmap command-line tool.
package main

import (
	"fmt"
	"os"

	"github.com/geovector-labs/aedesmap/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
