// Command anvil is a CLI front end for the anvil build engine: it
// loads a declarative rule graph, attaches a persistent build
// database, and builds the key requested on the command line.
package main

import (
	"os"

	"github.com/anvil-build/anvil/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
