package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/forgen-run/forgen/utils/config"
	"github.com/spf13/cobra"
)

// version is a placeholder for the version string, set at build time
// via -ldflags.
var version string

var verbose bool
var debug bool

// envConfig holds the loaded environment configuration, available to
// every subcommand once PersistentPreRunE has run.
var envConfig *config.EnvConfig

var rootCmd = &cobra.Command{
	Use:   "forgen",
	Short: "A recipe-driven code generation engine",
	Long: `forgen runs YAML-declared recipes that scaffold and modify code:
rendering templates, running shell commands, patching config files, and
asking an LLM to fill in the parts only it can decide.

Getting Started:
  1. forgen configure          Set up your provider API keys
  2. forgen process <recipe>   Run a recipe against a project

Configuration is stored in ~/.forgen/config.yaml`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.SetFlags(0)
		config.SetDebug(debug)

		cfg, err := config.Load(config.GetConfigPath())
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		envConfig = cfg
		if verbose {
			log.Printf("[DEBUG] loaded configuration from %s\n", config.GetConfigPath())
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		log.Printf("forgen version: %s\n", getVersion())
	},
}

func getVersion() string {
	if version != "" {
		return version
	}
	return "unknown (build with: go build -ldflags \"-X 'github.com/forgen-run/forgen/cmd.version=vX.Y.Z'\")"
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command, translating a few common cobra
// errors into friendlier messages before exiting non-zero.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		errMsg := err.Error()
		if strings.HasPrefix(errMsg, "unknown command") {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr, "\nTo run a recipe, use the 'process' command:\n\n   forgen process <recipe.yaml>")
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
