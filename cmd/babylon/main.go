// Command babylon runs the agent-orchestration workflow against a working
// directory from the command line.
//
// Grounded on the teacher's cmd/cobra_cli.go (root command construction,
// persistent flags) and cmd/alex/main.go (top-level error handling,
// deferred cleanup), collapsed from a multi-mode interactive/TUI/batch
// CLI to the spec's single `run` subcommand. Config-file/env resolution
// goes through internal/config.Resolve, not the teacher's viper binding.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, DeepCodingError(err.Error()))
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "babylon",
		Short: "Recursive LLM agent orchestration for coding tasks",
		Long: bold("babylon") + ` routes a task description through analyze, plan,
execute/review, and (for decomposed tasks) coordinate/steward/oracle
roles against a working directory.`,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCommand())
	return root
}
