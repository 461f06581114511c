package config

import (
	"fmt"
	"strings"
)

// Mode selects between a development build (drafts visible, filterable) and a
// production build (drafts hidden, every post considered).
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// ParseMode accepts the long names and the "dev"/"prod" shorthands.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "dev", string(ModeDevelopment):
		return ModeDevelopment, nil
	case "", "prod", string(ModeProduction):
		return ModeProduction, nil
	default:
		return "", fmt.Errorf("unknown build mode %q", raw)
	}
}

// IncludeDrafts reports whether incomplete posts are part of aggregate output.
func (m Mode) IncludeDrafts() bool { return m == ModeDevelopment }

func (m Mode) String() string { return string(m) }
