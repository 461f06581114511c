// Package post holds the typed front matter of a post and the identity derived from it.
package post

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	perrors "git.home.luguber.info/inful/postbuilder/internal/errors"
	"git.home.luguber.info/inful/postbuilder/internal/frontmatter"
)

// DateLayout is the only accepted publication date format.
const DateLayout = "2006-01-02"

// DraftPrefix marks incomplete posts in rendered titles.
const DraftPrefix = "[DRAFT] "

var (
	// ErrMalformedMetadata is returned when a required front-matter field is missing or invalid.
	ErrMalformedMetadata = errors.New("malformed metadata")
	// ErrSlugRequired is returned when a post dated at or after the cutoff year has no explicit slug.
	ErrSlugRequired = errors.New("explicit slug required")
)

var invalidSlugChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// Metadata is the parsed front matter of one post. Values are shared through
// Cache and must not be mutated after Parse returns.
type Metadata struct {
	RawTitle     string
	Tags         []string
	Description  string
	Date         time.Time
	ExplicitSlug string
	Incomplete   bool
	Series       string

	// Body is the Markdown following the front matter.
	Body string
	// Fingerprint identifies the source text this value was parsed from.
	Fingerprint string
}

type rawMetadata struct {
	Title       string  `yaml:"title"`
	Tags        tagList `yaml:"tags"`
	Description string  `yaml:"description"`
	Date        string  `yaml:"date"`
	Slug        string  `yaml:"slug"`
	Incomplete  bool    `yaml:"incomplete"`
	Series      string  `yaml:"series"`
}

// tagList accepts both the canonical comma separated string and a YAML sequence.
type tagList []string

func (t *tagList) UnmarshalYAML(node *yaml.Node) error {
	var parts []string
	switch node.Kind {
	case yaml.ScalarNode:
		parts = strings.Split(node.Value, ",")
	case yaml.SequenceNode:
		if err := node.Decode(&parts); err != nil {
			return err
		}
	default:
		return fmt.Errorf("tags: expected string or list, line %d", node.Line)
	}

	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	*t = out
	return nil
}

// Parse reads a full post source, front matter included.
func Parse(raw []byte) (*Metadata, error) {
	doc, err := frontmatter.Split(raw)
	if err != nil {
		return nil, malformed("%v", err)
	}
	return parseDocument(doc)
}

func parseDocument(doc frontmatter.Document) (*Metadata, error) {
	if !doc.Present {
		return nil, malformed("no front matter block")
	}

	var rm rawMetadata
	if err := doc.Decode(&rm); err != nil {
		return nil, malformed("%v", err)
	}

	var missing []string
	if strings.TrimSpace(rm.Title) == "" {
		missing = append(missing, "title")
	}
	if len(rm.Tags) == 0 {
		missing = append(missing, "tags")
	}
	if strings.TrimSpace(rm.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(rm.Date) == "" {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return nil, malformed("missing required field(s): %s", strings.Join(missing, ", "))
	}

	date, err := time.Parse(DateLayout, strings.TrimSpace(rm.Date))
	if err != nil {
		return nil, malformed("date %q is not YYYY-MM-DD", rm.Date)
	}

	return &Metadata{
		RawTitle:     strings.TrimSpace(rm.Title),
		Tags:         rm.Tags,
		Description:  strings.TrimSpace(rm.Description),
		Date:         date,
		ExplicitSlug: strings.TrimSpace(rm.Slug),
		Incomplete:   rm.Incomplete,
		Series:       strings.TrimSpace(rm.Series),
		Body:         string(doc.Body),
		Fingerprint:  doc.Fingerprint(),
	}, nil
}

func malformed(format string, args ...any) error {
	cause := fmt.Errorf("%w: %s", ErrMalformedMetadata, fmt.Sprintf(format, args...))
	return perrors.WrapError(cause, perrors.CategoryMetadata, "invalid front matter").Build()
}

// Title is the display title, prefixed with DraftPrefix for incomplete posts.
func (m *Metadata) Title() string {
	if m.Incomplete {
		return DraftPrefix + m.RawTitle
	}
	return m.RawTitle
}

// HasTag reports whether the post carries tag.
func (m *Metadata) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Slug returns the explicit slug, or derives one from the title for posts
// dated before cutoffYear.
func (m *Metadata) Slug(cutoffYear int) (string, error) {
	if m.ExplicitSlug != "" {
		return m.ExplicitSlug, nil
	}
	if m.Date.Year() >= cutoffYear {
		return "", perrors.WrapError(ErrSlugRequired, perrors.CategoryMetadata,
			fmt.Sprintf("post %q dated %s needs a slug", m.RawTitle, m.Date.Format(DateLayout))).
			Fatal().
			UserAction().
			WithContext("cutoff_year", cutoffYear).
			Build()
	}
	slug := SanitizeSlug(m.RawTitle)
	if slug == "" {
		return "", perrors.WrapError(ErrSlugRequired, perrors.CategoryMetadata,
			fmt.Sprintf("title %q yields an empty slug", m.RawTitle)).Fatal().UserAction().Build()
	}
	return slug, nil
}

// FullURL is baseURL joined with the slug, with a trailing slash.
func (m *Metadata) FullURL(baseURL string, cutoffYear int) (string, error) {
	slug, err := m.Slug(cutoffYear)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + slug + "/", nil
}

// SanitizeSlug lowercases title, turns spaces into hyphens and drops
// everything outside [a-zA-Z0-9._-].
func SanitizeSlug(title string) string {
	s := strings.Trim(strings.ToLower(strings.ReplaceAll(title, " ", "-")), "-")
	return strings.Trim(invalidSlugChars.ReplaceAllString(s, ""), "-")
}
