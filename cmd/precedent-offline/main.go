// Command precedent-offline runs the offline caching and sync edge for
// Planning Precedent AI.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/precedent-offline/internal/cli"
)

func main() {
	err := cli.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(cli.GetExitCode(err))
}
