package cmd

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/forgen-run/forgen/utils/config"
	"github.com/spf13/cobra"
)

var (
	listFlag    bool
	removeFlag  string
	serverFlag  bool
)

// greenCheckmark decorates a successfully completed configuration step.
const greenCheckmark = "✅"

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Set up provider API keys, the default AI transport, and server settings",
	Long: `configure walks through setting up ~/.forgen/config.yaml:
provider API keys (OpenAI, Anthropic, Google), the Ollama base URL,
the default AI transport used by
the two-pass template protocol, and (with --server) the forgen serve
bearer token and port.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if listFlag {
			return listConfiguration()
		}
		if removeFlag != "" {
			return removeProvider(removeFlag)
		}
		if serverFlag {
			return configureServer()
		}
		return runConfigureWizard()
	},
}

func init() {
	configureCmd.Flags().BoolVarP(&listFlag, "list", "l", false, "list the current configuration")
	configureCmd.Flags().StringVar(&removeFlag, "remove", "", "remove a configured provider's API key")
	configureCmd.Flags().BoolVar(&serverFlag, "server", false, "configure the forgen serve HTTP server")
	rootCmd.AddCommand(configureCmd)
}

func listConfiguration() error {
	cfg, err := config.Load(config.GetConfigPath())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	fmt.Printf("Configuration file: %s\n\n", config.GetConfigPath())

	fmt.Println("Providers:")
	if len(cfg.Providers) == 0 {
		fmt.Println("  (none configured)")
	}
	for name, p := range cfg.Providers {
		masked := "(not set)"
		if p.APIKey != "" {
			masked = maskKey(p.APIKey)
		}
		fmt.Printf("  %-10s api_key=%s", name, masked)
		if p.BaseURL != "" {
			fmt.Printf(" base_url=%s", p.BaseURL)
		}
		fmt.Println()
	}

	fmt.Printf("\nTransport: kind=%s", cfg.Transport.Kind)
	if cfg.Transport.Command != "" {
		fmt.Printf(" command=%q", cfg.Transport.Command)
	}
	if cfg.Transport.Model != "" {
		fmt.Printf(" model=%s", cfg.Transport.Model)
	}
	fmt.Println()

	fmt.Printf("Cache dir: %s\n", cfg.CacheDirOrDefault())

	sc := cfg.GetServerConfig()
	fmt.Printf("Server: enabled=%v port=%d data_dir=%s\n", sc.Enabled, sc.Port, sc.DataDir)
	return nil
}

func removeProvider(name string) error {
	cfg, err := config.Load(config.GetConfigPath())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if cfg.Providers == nil {
		return fmt.Errorf("no providers configured")
	}
	if _, ok := cfg.Providers[name]; !ok {
		return fmt.Errorf("provider %q is not configured", name)
	}
	delete(cfg.Providers, name)
	if err := config.Save(config.GetConfigPath(), cfg); err != nil {
		return fmt.Errorf("saving configuration: %w", err)
	}
	log.Printf("%s Removed provider %q\n", greenCheckmark, name)
	return nil
}

// runConfigureWizard is the interactive path: prompt for each provider's
// API key, then the default transport, then save.
func runConfigureWizard() error {
	cfg, err := config.Load(config.GetConfigPath())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if cfg.Providers == nil {
		cfg.Providers = map[string]config.ProviderConfig{}
	}

	reader := bufio.NewReader(os.Stdin)

	for _, name := range []string{"openai", "anthropic", "google"} {
		existing := cfg.Providers[name]
		prompt := fmt.Sprintf("Enter %s API key", name)
		if existing.APIKey != "" {
			prompt += fmt.Sprintf(" (currently %s, leave blank to keep)", maskKey(existing.APIKey))
		} else {
			prompt += " (leave blank to skip)"
		}
		log.Print(prompt + ": ")
		key, _ := reader.ReadString('\n')
		key = strings.TrimSpace(key)
		if key != "" {
			existing.APIKey = key
			cfg.Providers[name] = existing
		}
	}

	log.Print("Ollama base URL (default: http://localhost:11434): ")
	ollamaURL, _ := reader.ReadString('\n')
	ollamaURL = strings.TrimSpace(ollamaURL)
	if ollamaURL != "" {
		cfg.Providers["ollama"] = config.ProviderConfig{BaseURL: ollamaURL}
	}

	log.Print("Default AI transport, stdout/command/api (default: stdout): ")
	kind, _ := reader.ReadString('\n')
	kind = strings.TrimSpace(kind)
	if kind == "" {
		kind = "stdout"
	}
	cfg.Transport.Kind = kind

	if kind == "command" {
		log.Print("Command to run for each AI block (e.g. 'claude -p'): ")
		command, _ := reader.ReadString('\n')
		cfg.Transport.Command = strings.TrimSpace(command)
	}
	if kind == "api" {
		log.Print("Default model for the api transport (e.g. gpt-4o, claude-sonnet-4-20250514): ")
		model, _ := reader.ReadString('\n')
		cfg.Transport.Model = strings.TrimSpace(model)
	}

	if err := config.Save(config.GetConfigPath(), cfg); err != nil {
		return fmt.Errorf("saving configuration: %w", err)
	}
	log.Printf("%s Configuration saved to %s\n", greenCheckmark, config.GetConfigPath())
	return nil
}

// configureServer is the --server path, kept separate from the
// provider wizard since it's only relevant to `forgen serve`.
func configureServer() error {
	cfg, err := config.Load(config.GetConfigPath())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	sc := cfg.GetServerConfig()
	reader := bufio.NewReader(os.Stdin)

	log.Print("Enable bearer token authentication? (y/N): ")
	enabledStr, _ := reader.ReadString('\n')
	sc.Enabled = strings.EqualFold(strings.TrimSpace(enabledStr), "y")

	if sc.Enabled {
		log.Print("Bearer token: ")
		token, _ := reader.ReadString('\n')
		sc.BearerToken = strings.TrimSpace(token)
	}

	log.Printf("Port (default: %d): ", defaultOrFallback(sc.Port, 8080))
	portStr, _ := reader.ReadString('\n')
	portStr = strings.TrimSpace(portStr)
	if portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", portStr, err)
		}
		sc.Port = port
	} else if sc.Port == 0 {
		sc.Port = 8080
	}

	log.Print("Data directory holding servable recipes (default: .): ")
	dataDir, _ := reader.ReadString('\n')
	dataDir = strings.TrimSpace(dataDir)
	if dataDir != "" {
		sc.DataDir = dataDir
	} else if sc.DataDir == "" {
		sc.DataDir = "."
	}

	cfg.Server = sc
	if err := config.Save(config.GetConfigPath(), cfg); err != nil {
		return fmt.Errorf("saving configuration: %w", err)
	}
	log.Printf("%s Server configuration saved to %s\n", greenCheckmark, config.GetConfigPath())
	return nil
}

func defaultOrFallback(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

// maskKey shows only the last four characters of a secret, the rest
// replaced with asterisks, for display in --list output.
func maskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
