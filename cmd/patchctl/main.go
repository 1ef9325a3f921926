// Command patchctl is the CLI surface over the patcher: patch, login,
// and play subcommands replacing the original launcher's numeric menu
// and the teacher's single main.go.
package main

import "os"

func main() {
	os.Exit(Execute())
}

// Execute builds and runs the root command, returning a process exit
// code (grounded on baaaaaaaka-codex-helper's internal/cli.Execute).
func Execute() int {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}
