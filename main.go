package main

import (
	"github.com/williamzujkowski/dependency-risk-profiler/cmd"
)

// main is the entry point for the dependency risk profiler CLI.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
