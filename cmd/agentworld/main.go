// Command agentworld manages shared multi-agent conversations from the
// terminal: create worlds and agents, chat with them interactively,
// answer tool approval requests and inspect message history.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
