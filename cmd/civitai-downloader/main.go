package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes
const (
	ExitSuccess     = 0
	ExitFailures    = 1
	ExitInvalidArgs = 2
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		switch {
		case errors.Is(err, errDownloadsFailed):
			os.Exit(ExitFailures)
		case errors.Is(err, errUsage):
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(ExitInvalidArgs)
		default:
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(ExitFailures)
		}
	}
	os.Exit(ExitSuccess)
}
