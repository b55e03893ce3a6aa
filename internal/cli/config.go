package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/reqtrace/internal/llm"
	"github.com/ppiankov/reqtrace/internal/model"
	"github.com/ppiankov/reqtrace/internal/prompt"
	"github.com/ppiankov/reqtrace/internal/regulation"
	"github.com/ppiankov/reqtrace/internal/vectorstore"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage reqtrace configuration",
	Long: `Manage reqtrace configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (REQTRACE_*, plus OPENAI_API_KEY, ANTHROPIC_API_KEY,
   GEMINI_API_KEY / GOOGLE_API_KEY, OLLAMA_BASE_URL)
3. Config file (~/.reqtrace/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after defaults, config file, env vars and flags are applied. API keys are never printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper(), os.Getenv)
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		yamlData, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Print(string(yamlData))

		fmt.Fprintln(os.Stderr)
		fmt.Fprintf(os.Stderr, "  LLM API key:       %s\n", keyStatus(cfg.LLM.APIKey))
		fmt.Fprintf(os.Stderr, "  Embedding API key: %s\n", keyStatus(cfg.Embedding.APIKey))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.reqtrace/config.yaml with all available options.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		configPath := filepath.Join(home, ".reqtrace", "config.yaml")
		if err := writeDefaultConfig(configPath); err != nil {
			return err
		}

		fmt.Printf("✓ Created default configuration: %s\n", configPath)
		fmt.Printf("\nTo view the configuration:\n")
		fmt.Printf("  reqtrace config show\n")
		fmt.Printf("\nTo customize, edit the file with your preferred editor:\n")
		fmt.Printf("  $EDITOR %s\n\n", configPath)
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration",
	Long:  `Load prompts and the regulation catalog and construct the configured providers without calling them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper(), os.Getenv)
		if err != nil {
			return err
		}

		ctx, cancel := commandContext()
		defer cancel()

		failed := 0
		for _, c := range configChecks(ctx, cfg) {
			if c.err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "✗ %s: %v\n", c.name, c.err)
				continue
			}
			fmt.Fprintf(os.Stderr, "✓ %s\n", c.name)
		}

		if failed > 0 {
			return fmt.Errorf("%d configuration check(s) failed", failed)
		}
		return nil
	},
}

type configCheck struct {
	name string
	err  error
}

func configChecks(ctx context.Context, cfg *model.Config) []configCheck {
	var checks []configCheck
	add := func(name string, err error) {
		checks = append(checks, configCheck{name: name, err: err})
	}

	_, err := prompt.NewSet(cfg.Prompts)
	add("prompt templates", err)

	if cfg.Enrichment.RegulationsFile != "" {
		c, err := regulation.Load(cfg.Enrichment.RegulationsFile)
		if err == nil {
			add(fmt.Sprintf("regulation catalog (%d regulations)", c.Len()), nil)
		} else {
			add("regulation catalog", err)
		}
	} else {
		add(fmt.Sprintf("built-in regulation catalog (%d regulations)", regulation.Default().Len()), nil)
	}

	_, err = regulation.ParseMatchMode(cfg.Enrichment.MatchMode)
	add("match mode", err)

	_, err = vectorstore.ParseMetric(cfg.VectorStore.Metric)
	add("vector store metric", err)

	if cfg.LLM.Provider == "" {
		add("LLM provider", fmt.Errorf("not configured; model stages will fail"))
	} else {
		_, err = llm.NewProvider(ctx, llm.ConfigFromModel(*cfg))
		add("LLM provider "+cfg.LLM.Provider, err)
	}

	_, err = llm.NewEmbedder(ctx, llm.EmbeddingConfigFromModel(*cfg))
	add("embedding provider "+cfg.Embedding.Provider, err)

	return checks
}

// writeDefaultConfig writes the documented default configuration, refusing
// to overwrite an existing file
func writeDefaultConfig(configPath string) (err error) {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s\nUse 'reqtrace config show' to view it, or delete it first to recreate", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	yamlData, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	f, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close config file: %w", closeErr)
		}
	}()

	// Helper for writing with error checking
	printf := func(format string, a ...interface{}) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(f, format, a...)
	}

	printf("# reqtrace configuration file\n")
	printf("#\n")
	printf("# Configuration hierarchy (highest to lowest priority):\n")
	printf("#   1. CLI flags\n")
	printf("#   2. Environment variables (REQTRACE_*, e.g. REQTRACE_LLM_MODEL)\n")
	printf("#   3. This config file\n")
	printf("#   4. Built-in defaults\n\n")
	printf("%s", yamlData)
	printf("\n# API keys (recommended to use environment variables instead):\n")
	printf("#   export OPENAI_API_KEY=sk-...\n")
	printf("#   export ANTHROPIC_API_KEY=sk-ant-...\n")
	printf("#   export GEMINI_API_KEY=...\n")
	printf("#   export OLLAMA_BASE_URL=http://localhost:11434\n")

	return err
}

func keyStatus(key string) string {
	if key == "" {
		return "not set"
	}
	return "set"
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configCheckCmd)
}
