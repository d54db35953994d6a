// Command treasury runs the end-to-end encrypted personal file storage
// server: the request gateway, the catalog, and the upload/download
// coordinators, plus a line-oriented admin console on stdin.
package main

import (
	"fmt"
	"os"

	"github.com/pineappleswan/treasury/cmd/treasury/commands"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	commands.Version = version
	commands.Commit = commit

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
