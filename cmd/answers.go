package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// answersCmd is a thin convenience wrapper around `process --answers`:
// the stdout AI transport's two-pass protocol prints an assembled
// prompt and defers the run (RecipeExecution.Deferred), expecting the
// operator to paste the model's reply into an answers file and resume
// with this command.
var answersCmd = &cobra.Command{
	Use:   "answers <recipe.yaml> --answers <file>",
	Short: "Resume a recipe that deferred awaiting AI answers",
	Long: `Re-run a recipe that previously deferred (the stdout AI transport
printed an assembled prompt and stopped) using a file of resolved answers.

The answers file is either a JSON object of {key: answer} or, for
hand-edited sessions, plain KEY=VALUE lines.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if answersPath == "" {
			return fmt.Errorf("--answers is required")
		}
		return processCmd.RunE(cmd, args)
	},
}

func init() {
	answersCmd.Flags().StringVar(&answersPath, "answers", "", "path to a resolved-answers file (required)")
	answersCmd.Flags().StringArrayVar(&varFlags, "var", nil, "set a recipe variable as key=value (repeatable)")
	answersCmd.Flags().StringVar(&workingDir, "working-dir", "", "project directory the recipe runs against")
	answersCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what the recipe would do without writing files")
	answersCmd.Flags().BoolVar(&force, "force", false, "overwrite existing files instead of skipping them")
	rootCmd.AddCommand(answersCmd)
}
