// Command forgen runs YAML-declared recipes: rendering templates,
// running shell commands, patching config files, and delegating to an
// LLM through the two-pass AI template protocol.
package main

import "github.com/forgen-run/forgen/cmd"

func main() {
	cmd.Execute()
}
