// Command pcli2-rig is a terminal chat client for local language models
// with confirmed tool execution and MCP tool servers.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
