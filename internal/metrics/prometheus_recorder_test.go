package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Recorder = NoopRecorder{}
	_ Recorder = (*PrometheusRecorder)(nil)
)

func textfile(t *testing.T, pr *PrometheusRecorder) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "postbuilder.prom")
	require.NoError(t, pr.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestPrometheusRecorder_Counters(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.IncPostResult(PostBuilt)
	pr.IncPostResult(PostBuilt)
	pr.IncPostResult(PostSkipped)
	pr.IncDiagramResult(DiagramCached)
	pr.IncAggregateWritten("rss")
	pr.ObserveStageDuration("convert", 150*time.Millisecond)
	pr.ObserveBuildDuration(500 * time.Millisecond)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, mfs, 5)

	out := textfile(t, pr)
	assert.Contains(t, out, `postbuilder_posts_total{result="built"} 2`)
	assert.Contains(t, out, `postbuilder_posts_total{result="skipped"} 1`)
	assert.Contains(t, out, `postbuilder_diagram_renders_total{result="cached"} 1`)
	assert.Contains(t, out, `postbuilder_aggregates_written_total{kind="rss"} 1`)
	assert.Contains(t, out, `postbuilder_stage_duration_seconds_count{stage="convert"} 1`)
	assert.Contains(t, out, `postbuilder_build_duration_seconds_count 1`)
}

func TestPrometheusRecorder_NilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.IncPostResult(PostFailed)
	pr.IncDiagramResult(DiagramFailed)
	pr.ObserveBuildDuration(time.Second)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.IncPostResult(PostBuilt)
	r.IncAggregateWritten("index")
}
