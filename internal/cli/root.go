package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
	noCache bool
	timeout time.Duration
)

// errPartial is returned when records were skipped or failed and
// output.fail_on_partial is set
var errPartial = errors.New("some records were skipped or failed")

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "reqtrace",
	Short: "reqtrace - requirements to traceable test cases",
	Long: `reqtrace turns regulatory requirement documents into traceable test cases.

Each stage reads a JSON artifact, calls a model or a vector store, and writes
the next JSON artifact:

  parse → structure → enrich → categorize → generate → validate → coverage

Run one stage with 'reqtrace run <stage>' or all of them with 'reqtrace pipeline'.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("reqtrace %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.reqtrace/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	flags.String("log-format", "console", "log format: console or json")
	flags.String("provider", "", "LLM provider (openai, anthropic, ollama, gemini, vertex)")
	flags.String("model", "", "LLM model name")
	flags.String("embedding-provider", "", "embedding provider (openai, ollama, gemini, vertex, hash)")
	flags.Int("workers", 4, "concurrent model calls per stage")
	flags.String("regulations", "", "regulation catalog file (YAML, JSON or HCL)")
	flags.String("match-mode", "word", "regulation keyword matching: substring, word or stem")
	flags.Bool("fail-on-partial", false, "exit nonzero when any record is skipped or failed")
	flags.BoolVar(&noCache, "no-cache", false, "disable the model response cache")
	flags.DurationVar(&timeout, "timeout", 0, "overall timeout (0 = none)")

	// Bind flags to viper
	for key, flag := range map[string]string{
		"output.verbose":              "verbose",
		"output.log_format":           "log-format",
		"output.fail_on_partial":      "fail-on-partial",
		"llm.provider":                "provider",
		"llm.model":                   "model",
		"embedding.provider":          "embedding-provider",
		"concurrency.workers":         "workers",
		"enrichment.regulations_file": "regulations",
		"enrichment.match_mode":       "match-mode",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(filepath.Join(home, ".reqtrace"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	bindEnv(viper.GetViper())

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	} else if err != nil && cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", cfgFile, err)
	}
}

// commandContext is cancelled on SIGINT/SIGTERM and after --timeout
func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// bindEnv reads environment variables that match REQTRACE_*, with dots in
// keys replaced: llm.model → REQTRACE_LLM_MODEL
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("REQTRACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}
