package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyMode       = "mode"
	KeyPost       = "post"
	KeySlug       = "slug"
	KeyStage      = "stage"
	KeyPath       = "path"
	KeyOutput     = "output"
	KeyDependency = "dependency"
	KeyTag        = "tag"
	KeySeries     = "series"
	KeyAttempt    = "attempt"
	KeyDurationMS = "duration_ms"
	KeyReason     = "reason"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr       { return slog.String(KeyBuildID, id) }
func Mode(m string) slog.Attr           { return slog.String(KeyMode, m) }
func Post(dir string) slog.Attr         { return slog.String(KeyPost, dir) }
func Slug(s string) slog.Attr           { return slog.String(KeySlug, s) }
func Stage(name string) slog.Attr       { return slog.String(KeyStage, name) }
func Path(p string) slog.Attr           { return slog.String(KeyPath, p) }
func Output(p string) slog.Attr         { return slog.String(KeyOutput, p) }
func Dependency(p string) slog.Attr     { return slog.String(KeyDependency, p) }
func Tag(t string) slog.Attr            { return slog.String(KeyTag, t) }
func Series(s string) slog.Attr         { return slog.String(KeySeries, s) }
func Attempt(n int) slog.Attr           { return slog.Int(KeyAttempt, n) }
func Reason(r string) slog.Attr         { return slog.String(KeyReason, r) }
func DurationMS(ms float64) slog.Attr   { return slog.Float64(KeyDurationMS, ms) }
func Since(start time.Time) slog.Attr   { return DurationMS(float64(time.Since(start).Microseconds()) / 1000) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
