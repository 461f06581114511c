package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	origVersion, origCommit := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = origVersion, origCommit })

	Version, GitCommit = "v1.2.0", "unknown"
	assert.Equal(t, "v1.2.0", String())

	GitCommit = "abc123"
	assert.Equal(t, "v1.2.0 (abc123)", String())
}

func TestString_Unset(t *testing.T) {
	assert.NotEmpty(t, String())
	assert.NotEmpty(t, BuildTime)
}
