package diagram

import (
	"context"
	"os/exec"
)

// Runner executes the external diagram tool.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs the tool as a subprocess. The process is killed when ctx is done.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	// #nosec G204 -- command and arguments come from the build configuration
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}
