package build

import (
	"time"

	"git.home.luguber.info/inful/postbuilder/internal/config"
	"git.home.luguber.info/inful/postbuilder/internal/notify"
	"git.home.luguber.info/inful/postbuilder/internal/version"
)

// Status is the outcome of a build.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsSuccess reports whether every post and every aggregate was handled.
func (s Status) IsSuccess() bool { return s == StatusSuccess }

// PostFailure is a post that could not be built.
type PostFailure struct {
	Post string
	Err  error
}

// Report summarizes one build.
type Report struct {
	BuildID   string
	Mode      config.Mode
	Status    Status
	StartedAt time.Time
	Duration  time.Duration

	// Built and Skipped hold post directory names.
	Built   []string
	Skipped []string
	Failed  []PostFailure

	// Aggregates are the aggregate files written in phase 2.
	Aggregates        []string
	AggregatesSkipped int

	// MetadataCacheHits counts source parses served from the metadata cache.
	MetadataCacheHits int
}

// Event converts the report into the published notification payload.
func (r *Report) Event() notify.Event {
	ev := notify.Event{
		BuildID:    r.BuildID,
		Version:    version.String(),
		Mode:       r.Mode.String(),
		StartedAt:  r.StartedAt,
		Duration:   r.Duration,
		Built:      r.Built,
		Skipped:    len(r.Skipped),
		Aggregates: r.Aggregates,
	}
	for _, f := range r.Failed {
		ev.Failed = append(ev.Failed, notify.Failure{Post: f.Post, Error: f.Err.Error()})
	}
	return ev
}
