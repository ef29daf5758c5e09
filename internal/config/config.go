// Package config loads the run configuration with viper and materializes
// the default configuration file and prompt templates.
package config

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/logtriage/internal/llm"
	"github.com/mesh-intelligence/logtriage/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	// FileName is the configuration file inside the config directory.
	FileName = "config.yaml"

	// EnvPrefix prefixes every environment override, e.g. LOGTRIAGE_CREDENTIAL.
	EnvPrefix = "LOGTRIAGE"
)

// Template file names inside the config directory.
const (
	PromptFile            = "prompt.tmpl"
	SuccessExamplesFile   = "success_examples.txt"
	FailedExamplesFile    = "failed_examples.txt"
	ExceptionExamplesFile = "exception_examples.txt"
)

// Config keys that are not mapped straight onto types.Config fields.
const (
	keyTimeoutSeconds = "timeout_seconds"
	keyCacheEnabled   = "cache.enabled"
)

//go:embed templates
var templateFS embed.FS

// Defaults returns the configuration used when no file or environment
// override sets a key.
func Defaults() types.Config {
	return types.Config{
		EndpointURL:        "https://api.siliconflow.cn/v1/chat/completions",
		Model:              "Qwen/Qwen3-235B-A22B",
		MaxTokens:          8192,
		Temperature:        0.6,
		TopP:               0.7,
		Timeout:            120 * time.Second,
		DirInclude:         []string{"*"},
		DirExclude:         []string{},
		FileInclude:        []string{"*.log", "*.txt"},
		FileExclude:        []string{},
		SuccessPatterns:    []string{},
		FailurePatterns:    []string{},
		Workers:            8,
		CheckpointInterval: 10,
		ExcerptBytes:       4000,
		ExcerptFrom:        types.ExcerptHead,
		LogLevel:           "info",
	}
}

// fileConfig is the on-disk shape of config.yaml.
type fileConfig struct {
	types.Config   `yaml:",inline"`
	TimeoutSeconds int         `yaml:"timeout_seconds"`
	Cache          cacheConfig `yaml:"cache"`
}

type cacheConfig struct {
	Enabled bool `yaml:"enabled"`
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("endpoint_url", d.EndpointURL)
	v.SetDefault("credential", "")
	v.SetDefault("model", d.Model)
	v.SetDefault("max_tokens", d.MaxTokens)
	v.SetDefault("temperature", d.Temperature)
	v.SetDefault("top_p", d.TopP)
	v.SetDefault(keyTimeoutSeconds, int(d.Timeout/time.Second))
	v.SetDefault("directory_include", d.DirInclude)
	v.SetDefault("directory_exclude", d.DirExclude)
	v.SetDefault("file_include", d.FileInclude)
	v.SetDefault("file_exclude", d.FileExclude)
	v.SetDefault("success_patterns", d.SuccessPatterns)
	v.SetDefault("failure_patterns", d.FailurePatterns)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("checkpoint_interval", d.CheckpointInterval)
	v.SetDefault("excerpt_bytes", d.ExcerptBytes)
	v.SetDefault("excerpt_from", d.ExcerptFrom)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault(keyCacheEnabled, false)
	v.SetDefault("data_dir", "")
	v.SetDefault("trace_file", "")
}

// Load reads config.yaml from configDir, applies LOGTRIAGE_* environment
// overrides, and validates the result. A missing config.yaml is not an
// error; defaults apply.
func Load(configDir string) (types.Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Timeout = time.Duration(v.GetInt(keyTimeoutSeconds)) * time.Second
	cfg.CacheEnabled = v.GetBool(keyCacheEnabled)

	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("config %s: %w", filepath.Join(configDir, FileName), err)
	}
	return cfg, nil
}

// WriteDefaults creates configDir, a default config.yaml, and the four
// template files, skipping any file that already exists. It returns the
// paths it wrote.
func WriteDefaults(configDir string) ([]string, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	var written []string
	cfgPath := filepath.Join(configDir, FileName)
	ok, err := writeIfMissing(cfgPath, renderDefaults)
	if err != nil {
		return written, err
	}
	if ok {
		written = append(written, cfgPath)
	}

	tmpl, err := writeTemplates(configDir)
	return append(written, tmpl...), err
}

func writeTemplates(configDir string) ([]string, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}
	var written []string
	for _, name := range templateFiles() {
		path := filepath.Join(configDir, name)
		ok, err := writeIfMissing(path, func() ([]byte, error) { return defaultTemplate(name) })
		if err != nil {
			return written, err
		}
		if ok {
			written = append(written, path)
		}
	}
	return written, nil
}

func templateFiles() []string {
	return []string{PromptFile, SuccessExamplesFile, FailedExamplesFile, ExceptionExamplesFile}
}

func renderDefaults() ([]byte, error) {
	d := Defaults()
	fc := fileConfig{Config: d, TimeoutSeconds: int(d.Timeout / time.Second)}
	data, err := yaml.Marshal(&fc)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	header := "# logtriage configuration\n# The credential may instead be set with LOGTRIAGE_CREDENTIAL.\n"
	return append([]byte(header), data...), nil
}

// writeIfMissing writes the output of render to path unless path exists.
func writeIfMissing(path string, render func() ([]byte, error)) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	data, err := render()
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

func defaultTemplate(name string) ([]byte, error) {
	data, err := fs.ReadFile(templateFS, "templates/"+name)
	if err != nil {
		return nil, fmt.Errorf("embedded template %s: %w", name, err)
	}
	return data, nil
}

// LoadTemplates reads the prompt template and example files from configDir.
// A missing file is written from the embedded default first.
func LoadTemplates(configDir string) (llm.Templates, error) {
	if _, err := writeTemplates(configDir); err != nil {
		return llm.Templates{}, err
	}
	read := func(name string) (string, error) {
		data, err := os.ReadFile(filepath.Join(configDir, name))
		if err != nil {
			return "", fmt.Errorf("read template: %w", err)
		}
		return string(data), nil
	}

	var t llm.Templates
	var err error
	if t.Prompt, err = read(PromptFile); err != nil {
		return llm.Templates{}, err
	}
	if t.SuccessExamples, err = read(SuccessExamplesFile); err != nil {
		return llm.Templates{}, err
	}
	if t.FailedExamples, err = read(FailedExamplesFile); err != nil {
		return llm.Templates{}, err
	}
	if t.ExceptionExamples, err = read(ExceptionExamplesFile); err != nil {
		return llm.Templates{}, err
	}
	return t, nil
}
