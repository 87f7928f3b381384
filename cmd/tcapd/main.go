// Command tcapd runs a single capability-runtime node.
package main

import (
	"fmt"
	"os"

	"github.com/capnode/tcapd/cmd/tcapd/commands"
	"github.com/capnode/tcapd/internal/buildinfo"
)

func main() {
	commands.Commit = buildinfo.GitHash

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
