package types

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"time"
)

// Excerpt sources.
const (
	ExcerptHead = "head"
	ExcerptTail = "tail"
)

// Config is the immutable run configuration loaded once at startup and
// passed to every component.
type Config struct {
	EndpointURL string        `mapstructure:"endpoint_url" yaml:"endpoint_url"`
	Credential  string        `mapstructure:"credential" yaml:"credential"`
	Model       string        `mapstructure:"model" yaml:"model"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	TopP        float64       `mapstructure:"top_p" yaml:"top_p"`
	Timeout     time.Duration `mapstructure:"-" yaml:"-"`

	DirInclude  []string `mapstructure:"directory_include" yaml:"directory_include"`
	DirExclude  []string `mapstructure:"directory_exclude" yaml:"directory_exclude"`
	FileInclude []string `mapstructure:"file_include" yaml:"file_include"`
	FileExclude []string `mapstructure:"file_exclude" yaml:"file_exclude"`

	SuccessPatterns []string `mapstructure:"success_patterns" yaml:"success_patterns"`
	FailurePatterns []string `mapstructure:"failure_patterns" yaml:"failure_patterns"`

	Workers            int    `mapstructure:"workers" yaml:"workers"`
	CheckpointInterval int    `mapstructure:"checkpoint_interval" yaml:"checkpoint_interval"`
	ExcerptBytes       int    `mapstructure:"excerpt_bytes" yaml:"excerpt_bytes"`
	ExcerptFrom        string `mapstructure:"excerpt_from" yaml:"excerpt_from"`

	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`
	CacheEnabled bool   `mapstructure:"-" yaml:"-"`
	DataDir      string `mapstructure:"data_dir" yaml:"data_dir,omitempty"`
	TraceFile    string `mapstructure:"trace_file" yaml:"trace_file,omitempty"`
}

// Config validation errors.
var (
	ErrEndpointEmpty      = errors.New("endpoint_url must not be empty")
	ErrModelEmpty         = errors.New("model must not be empty")
	ErrCredentialEmpty    = errors.New("credential must be set")
	ErrWorkersInvalid     = errors.New("workers must be positive")
	ErrCheckpointInvalid  = errors.New("checkpoint_interval must be positive")
	ErrExcerptInvalid     = errors.New("excerpt_bytes must be positive")
	ErrExcerptFromUnknown = errors.New("excerpt_from must be head or tail")
	ErrMaxTokensInvalid   = errors.New("max_tokens must be positive")
	ErrTimeoutInvalid     = errors.New("timeout must be positive")
	ErrBadGlob            = errors.New("invalid glob pattern")
	ErrBadPattern         = errors.New("invalid regular expression")
)

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package, wrapped with the offending value where there is one.
// The credential is not checked here; only the classifier needs it.
func (c Config) Validate() error {
	if c.EndpointURL == "" {
		return ErrEndpointEmpty
	}
	if c.Model == "" {
		return ErrModelEmpty
	}
	if c.MaxTokens <= 0 {
		return ErrMaxTokensInvalid
	}
	if c.Timeout <= 0 {
		return ErrTimeoutInvalid
	}
	if c.Workers <= 0 {
		return ErrWorkersInvalid
	}
	if c.CheckpointInterval <= 0 {
		return ErrCheckpointInvalid
	}
	if c.ExcerptBytes <= 0 {
		return ErrExcerptInvalid
	}
	if c.ExcerptFrom != ExcerptHead && c.ExcerptFrom != ExcerptTail {
		return ErrExcerptFromUnknown
	}
	for _, list := range [][]string{c.DirInclude, c.DirExclude, c.FileInclude, c.FileExclude} {
		for _, g := range list {
			if _, err := filepath.Match(g, ""); err != nil {
				return fmt.Errorf("%w: %q", ErrBadGlob, g)
			}
		}
	}
	for _, list := range [][]string{c.SuccessPatterns, c.FailurePatterns} {
		for _, p := range list {
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("%w: %q: %v", ErrBadPattern, p, err)
			}
		}
	}
	return nil
}
