package config

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Site.Validate(); err != nil {
		return fmt.Errorf("site: %w", err)
	}
	if err := c.Paths.Validate(); err != nil {
		return fmt.Errorf("paths: %w", err)
	}
	if err := c.Build.Validate(); err != nil {
		return fmt.Errorf("build: %w", err)
	}
	if err := c.Diagram.Validate(); err != nil {
		return fmt.Errorf("diagram: %w", err)
	}
	if err := c.Notify.Validate(); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

// Validate validates the site configuration.
func (c *SiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Title, validation.Required),
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Email, is.EmailFormat),
		validation.Field(&c.SlugCutoffYear, validation.Required, validation.Min(1970)),
		validation.Field(&c.Timezone, validation.By(func(any) error {
			_, err := time.LoadLocation(c.Timezone)
			return err
		})),
	)
}

// Validate validates the paths configuration.
func (c *PathsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Content, validation.Required),
		validation.Field(&c.Output, validation.Required),
		validation.Field(&c.Output, validation.By(func(any) error {
			if c.Output == c.Content {
				return fmt.Errorf("must differ from content directory")
			}
			return nil
		})),
	)
}

// Validate validates the build configuration.
func (c *BuildConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Min(1)),
	)
}

// Validate validates the diagram configuration.
func (c *DiagramConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Command, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Millisecond)),
		validation.Field(&c.Retry),
	)
}

// Validate validates the retry configuration.
func (c RetryConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Mode, validation.In(RetryBackoffFixed, RetryBackoffLinear, RetryBackoffExponential)),
		validation.Field(&c.MaxRetries, validation.Min(0), validation.Max(10)),
	)
}

// Validate validates the notify configuration.
func (c *NotifyConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Subject, validation.When(c.NATSURL != "", validation.Required)),
	)
}
