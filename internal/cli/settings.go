package cli

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ppiankov/reqtrace/internal/model"
)

// loadConfig resolves defaults < config file < env < flags into one Config
func loadConfig(v *viper.Viper, getenv func(string) string) (*model.Config, error) {
	cfg := model.DefaultConfig()
	registerDefaults(v, "", reflect.ValueOf(cfg).Elem())

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	applyVendorEnv(&cfg.LLM.APIKey, &cfg.LLM.BaseURL, &cfg.LLM.Project, cfg.LLM.Provider, getenv)
	applyVendorEnv(&cfg.Embedding.APIKey, &cfg.Embedding.BaseURL, &cfg.Embedding.Project, cfg.Embedding.Provider, getenv)

	if noCache {
		cfg.Cache.Enabled = false
	}
	return cfg, nil
}

// registerDefaults makes every config key known to viper so AutomaticEnv can
// override nested keys during Unmarshal
func registerDefaults(v *viper.Viper, prefix string, val reflect.Value) {
	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		field := val.Field(i)
		if field.Kind() == reflect.Struct {
			registerDefaults(v, key, field)
			continue
		}
		v.SetDefault(key, field.Interface())
	}
}

// applyVendorEnv fills credentials from the vendor's usual environment
// variables when the config does not set them
func applyVendorEnv(apiKey, baseURL, project *string, provider string, getenv func(string) string) {
	first := func(names ...string) string {
		for _, n := range names {
			if v := getenv(n); v != "" {
				return v
			}
		}
		return ""
	}

	switch strings.ToLower(provider) {
	case "openai":
		if *apiKey == "" {
			*apiKey = first("OPENAI_API_KEY")
		}
	case "anthropic", "claude":
		if *apiKey == "" {
			*apiKey = first("ANTHROPIC_API_KEY")
		}
	case "gemini", "google":
		if *apiKey == "" {
			*apiKey = first("GEMINI_API_KEY", "GOOGLE_API_KEY")
		}
	case "vertex", "vertexai":
		if *project == "" {
			*project = first("GOOGLE_CLOUD_PROJECT")
		}
	case "ollama":
		if *baseURL == "" {
			*baseURL = first("OLLAMA_BASE_URL")
		}
	}
}

// newLogger builds the process logger from the output section
func newLogger(out model.OutputConfig) (*zap.Logger, error) {
	var zc zap.Config
	switch strings.ToLower(out.LogFormat) {
	case "", "console":
		zc = zap.NewProductionConfig()
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	case "json":
		zc = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q (want console or json)", out.LogFormat)
	}

	zc.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	if out.Verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.DisableStacktrace = !out.Verbose

	return zc.Build()
}

// settings loads the config and logger for a command
func settings() (*model.Config, *zap.Logger, error) {
	cfg, err := loadConfig(viper.GetViper(), os.Getenv)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.Output)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
