// Command shade runs, records, inspects and replays concreteness-tracking
// scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/shade/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
