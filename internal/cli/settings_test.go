package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/reqtrace/internal/model"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(viper.New(), env(nil))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	def := model.DefaultConfig()
	if cfg.Concurrency.Workers != def.Concurrency.Workers {
		t.Errorf("Workers = %d, want %d", cfg.Concurrency.Workers, def.Concurrency.Workers)
	}
	if cfg.Retry.MaxDelay != def.Retry.MaxDelay {
		t.Errorf("Retry.MaxDelay = %v, want %v", cfg.Retry.MaxDelay, def.Retry.MaxDelay)
	}
	if cfg.Enrichment.MatchMode != "word" {
		t.Errorf("MatchMode = %q, want word", cfg.Enrichment.MatchMode)
	}
	if len(cfg.Enrichment.ActorVocabulary["administrator"]) == 0 {
		t.Error("expected default actor vocabulary")
	}
}

func TestLoadConfig_FileEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
llm:
  provider: openai
  model: gpt-4o-mini
concurrency:
  workers: 8
retry:
  base_delay: 250ms
generation:
  max_attempts: 3
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("REQTRACE_CONCURRENCY_WORKERS", "2")
	t.Setenv("REQTRACE_LLM_MODEL", "gpt-4.1")

	v := viper.New()
	v.SetConfigFile(path)
	bindEnv(v)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}

	cfg, err := loadConfig(v, env(map[string]string{"OPENAI_API_KEY": "sk-test"}))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.LLM.Provider != "openai" {
		t.Errorf("Provider = %q, want openai", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "gpt-4.1" {
		t.Errorf("Model = %q, want env override gpt-4.1", cfg.LLM.Model)
	}
	if cfg.Concurrency.Workers != 2 {
		t.Errorf("Workers = %d, want env override 2", cfg.Concurrency.Workers)
	}
	if cfg.Retry.BaseDelay != 250*time.Millisecond {
		t.Errorf("BaseDelay = %v, want 250ms", cfg.Retry.BaseDelay)
	}
	if cfg.Generation.MaxAttempts != 3 {
		t.Errorf("Generation.MaxAttempts = %d, want 3", cfg.Generation.MaxAttempts)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("APIKey = %q, want value from OPENAI_API_KEY", cfg.LLM.APIKey)
	}
}

func TestApplyVendorEnv(t *testing.T) {
	tests := []struct {
		provider string
		vars     map[string]string
		wantKey  string
		wantURL  string
		wantProj string
	}{
		{"anthropic", map[string]string{"ANTHROPIC_API_KEY": "a"}, "a", "", ""},
		{"gemini", map[string]string{"GOOGLE_API_KEY": "g"}, "g", "", ""},
		{"gemini", map[string]string{"GEMINI_API_KEY": "first", "GOOGLE_API_KEY": "second"}, "first", "", ""},
		{"ollama", map[string]string{"OLLAMA_BASE_URL": "http://ollama:11434"}, "", "http://ollama:11434", ""},
		{"vertex", map[string]string{"GOOGLE_CLOUD_PROJECT": "proj"}, "", "", "proj"},
		{"hash", map[string]string{"OPENAI_API_KEY": "x"}, "", "", ""},
	}

	for _, tt := range tests {
		var key, url, proj string
		applyVendorEnv(&key, &url, &proj, tt.provider, env(tt.vars))
		if key != tt.wantKey || url != tt.wantURL || proj != tt.wantProj {
			t.Errorf("%s: got (%q, %q, %q), want (%q, %q, %q)", tt.provider, key, url, proj, tt.wantKey, tt.wantURL, tt.wantProj)
		}
	}

	key := "configured"
	applyVendorEnv(&key, new(string), new(string), "openai", env(map[string]string{"OPENAI_API_KEY": "env"}))
	if key != "configured" {
		t.Errorf("configured key was replaced by %q", key)
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"", "console", "json"} {
		logger, err := newLogger(model.OutputConfig{LogFormat: format, Verbose: true})
		if err != nil {
			t.Errorf("newLogger(%q) error = %v", format, err)
			continue
		}
		if !logger.Core().Enabled(-1) {
			t.Errorf("newLogger(%q): debug level not enabled with verbose", format)
		}
	}

	if _, err := newLogger(model.OutputConfig{LogFormat: "xml"}); err == nil {
		t.Error("expected error for unknown log format")
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".reqtrace", "config.yaml")
	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# reqtrace configuration file") {
		t.Error("expected header comment")
	}

	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not valid YAML: %v", err)
	}
	if cfg.Concurrency.Workers != model.DefaultConfig().Concurrency.Workers {
		t.Errorf("Workers = %d after round trip", cfg.Concurrency.Workers)
	}

	if err := writeDefaultConfig(path); err == nil {
		t.Error("expected error when config already exists")
	}
}

func TestConfigChecks(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Enrichment.MatchMode = "fuzzy"

	failed := map[string]bool{}
	for _, c := range configChecks(t.Context(), cfg) {
		if c.err != nil {
			failed[c.name] = true
		}
	}

	if !failed["match mode"] {
		t.Error("expected match mode check to fail")
	}
	if !failed["LLM provider"] {
		t.Error("expected LLM provider check to fail when unset")
	}
	if failed["prompt templates"] || failed["vector store metric"] {
		t.Errorf("unexpected failures: %v", failed)
	}
}
