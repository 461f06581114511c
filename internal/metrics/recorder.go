package metrics

import "time"

// PostResult is the outcome of one post in phase 1.
type PostResult string

const (
	PostBuilt   PostResult = "built"
	PostSkipped PostResult = "skipped"
	PostFailed  PostResult = "failed"
)

// DiagramResult is the outcome of one diagram render request.
type DiagramResult string

const (
	DiagramRendered DiagramResult = "rendered"
	DiagramCached   DiagramResult = "cached"
	DiagramFailed   DiagramResult = "failed"
)

// Recorder defines the build observability hooks. Implementations must be
// safe for concurrent use.
type Recorder interface {
	IncPostResult(result PostResult)
	IncDiagramResult(result DiagramResult)
	IncAggregateWritten(kind string)
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncPostResult(PostResult)                   {}
func (NoopRecorder) IncDiagramResult(DiagramResult)             {}
func (NoopRecorder) IncAggregateWritten(string)                 {}
func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
