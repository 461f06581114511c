package config

import (
	"runtime"
	"strings"
	"time"
)

// DefaultSlugCutoffYear is the first publication year that requires an explicit slug.
const DefaultSlugCutoffYear = 2024

// Default returns the configuration used when no file is given. Values
// present in a config file are decoded on top of it.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			Title:          "Blog",
			BaseURL:        "http://localhost:8000/",
			Description:    "Blog",
			Language:       "en",
			Timezone:       "UTC",
			SlugCutoffYear: DefaultSlugCutoffYear,
		},
		Paths: PathsConfig{
			Content:        "blog/raw",
			Output:         "blog/html",
			SeriesRegistry: "blog/series.yaml",
		},
		Build: BuildConfig{
			Workers:         runtime.NumCPU(),
			TrackExecutable: true,
		},
		Diagram: DiagramConfig{
			Command:    "mmdc",
			Background: "transparent",
			Timeout:    60 * time.Second,
			Retry: RetryConfig{
				Mode:       RetryBackoffLinear,
				Initial:    time.Second,
				Max:        10 * time.Second,
				MaxRetries: 1,
			},
		},
		Notify: NotifyConfig{
			Subject: "postbuilder.build.completed",
		},
	}
}

// applyDefaults fills zero values a config file may have blanked out.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Site.Language == "" {
		cfg.Site.Language = def.Site.Language
	}
	if cfg.Site.Timezone == "" {
		cfg.Site.Timezone = def.Site.Timezone
	}
	if cfg.Site.BaseURL != "" && !strings.HasSuffix(cfg.Site.BaseURL, "/") {
		cfg.Site.BaseURL += "/"
	}
	if cfg.Build.Workers <= 0 {
		cfg.Build.Workers = def.Build.Workers
	}
	if cfg.Diagram.Command == "" {
		cfg.Diagram.Command = def.Diagram.Command
	}
	if cfg.Diagram.Timeout <= 0 {
		cfg.Diagram.Timeout = def.Diagram.Timeout
	}
	if cfg.Diagram.Retry.Mode == "" {
		cfg.Diagram.Retry.Mode = def.Diagram.Retry.Mode
	} else if m := NormalizeRetryBackoff(string(cfg.Diagram.Retry.Mode)); m != "" {
		cfg.Diagram.Retry.Mode = m
	}
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = def.Notify.Subject
	}
}
