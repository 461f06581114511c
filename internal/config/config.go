// Package config loads the postbuilder YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	perrors "git.home.luguber.info/inful/postbuilder/internal/errors"
)

// Config represents the application configuration.
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Paths   PathsConfig   `yaml:"paths"`
	Build   BuildConfig   `yaml:"build"`
	Diagram DiagramConfig `yaml:"diagram"`
	Cache   CacheConfig   `yaml:"cache"`
	Metrics MetricsConfig `yaml:"metrics"`
	Notify  NotifyConfig  `yaml:"notify"`

	// SourcePath is the file the configuration was read from, empty for defaults.
	SourcePath string `yaml:"-"`
}

// SiteConfig describes the published site.
type SiteConfig struct {
	Title       string `yaml:"title"`
	BaseURL     string `yaml:"base_url"`
	Description string `yaml:"description"`
	Author      string `yaml:"author"`
	Email       string `yaml:"email,omitempty"`
	Language    string `yaml:"language"`
	Timezone    string `yaml:"timezone"`
	// SlugCutoffYear: posts dated in or after this year must carry an explicit slug.
	SlugCutoffYear int `yaml:"slug_cutoff_year"`
}

// PathsConfig locates inputs and outputs.
type PathsConfig struct {
	Content        string `yaml:"content"`
	Output         string `yaml:"output"`
	SeriesRegistry string `yaml:"series_registry"`
	Templates      string `yaml:"templates,omitempty"`
}

// BuildConfig tunes the per-post phase.
type BuildConfig struct {
	Workers           int      `yaml:"workers"`
	TrackExecutable   bool     `yaml:"track_executable"`
	ExtraDependencies []string `yaml:"extra_dependencies,omitempty"`
}

// DiagramConfig configures the external Mermaid renderer.
type DiagramConfig struct {
	Command    string        `yaml:"command"`
	Args       []string      `yaml:"args,omitempty"`
	Stylesheet string        `yaml:"stylesheet"`
	Background string        `yaml:"background"`
	Timeout    time.Duration `yaml:"timeout"`
	Retry      RetryConfig   `yaml:"retry"`
}

// RetryConfig is the raw form of retry.Policy.
type RetryConfig struct {
	Mode       RetryBackoffMode `yaml:"mode"`
	Initial    time.Duration    `yaml:"initial"`
	Max        time.Duration    `yaml:"max"`
	MaxRetries int              `yaml:"max_retries"`
}

// CacheConfig enables the persistent markup cache when Path is set.
type CacheConfig struct {
	Path string `yaml:"path,omitempty"`
}

// MetricsConfig enables Prometheus textfile output when Textfile is set.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// NotifyConfig enables the build-completed NATS event when NATSURL is set.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject"`
}

// Load reads configPath on top of Default(). An empty configPath yields the
// validated defaults.
func Load(configPath string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, perrors.WrapError(err, perrors.CategoryConfig, "failed to load .env file").Fatal().Build()
	}

	cfg := Default()
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, perrors.ConfigError("configuration file not found").WithContext("path", configPath).Build()
			}
			return nil, perrors.WrapError(err, perrors.CategoryConfig, "failed to read config file").Fatal().WithContext("path", configPath).Build()
		}

		// Expand environment variables in the YAML content
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, perrors.WrapError(err, perrors.CategoryConfig, "failed to parse config file").Fatal().WithContext("path", configPath).Build()
		}
		cfg.SourcePath = configPath
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, perrors.WrapError(err, perrors.CategoryValidation, "invalid configuration").Fatal().UserAction().Build()
	}
	return cfg, nil
}

// loadEnvFiles loads .env and .env.local when present. Existing process
// environment variables are not overwritten.
func loadEnvFiles() error {
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
