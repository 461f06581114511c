// Package stale decides whether an output must be rebuilt from the
// modification times of its declared dependencies. It is the only place
// that decides to skip work.
package stale

import (
	"errors"
	"io/fs"
	"os"
	"time"
)

// Reason explains a Decision.
type Reason string

const (
	ReasonFresh         Reason = "fresh"
	ReasonMissingOutput Reason = "missing output"
	ReasonDependency    Reason = "dependency changed"
	ReasonForced        Reason = "forced"
	ReasonDiagram       Reason = "diagram out of date"
)

// Decision is the outcome of a staleness check.
type Decision struct {
	Output string
	Stale  bool
	Reason Reason
	// Dependency is the newest dependency at or after the output's mtime.
	Dependency string
	DepTime    time.Time
}

// IsStale reports whether output is missing or not strictly newer than
// every existing dependency. Dependencies that do not exist are ignored.
func IsStale(output string, deps []string) (bool, error) {
	d, err := check(output, deps)
	return d.Stale, err
}

func check(output string, deps []string) (Decision, error) {
	d := Decision{Output: output}
	out, err := os.Stat(output)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			d.Stale, d.Reason = true, ReasonMissingOutput
			return d, nil
		}
		return d, err
	}
	outTime := out.ModTime()

	for _, dep := range deps {
		st, err := os.Stat(dep)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return d, err
		}
		mt := st.ModTime()
		if !mt.Before(outTime) && (d.Dependency == "" || mt.After(d.DepTime)) {
			d.Dependency, d.DepTime = dep, mt
		}
	}
	if d.Dependency != "" {
		d.Stale, d.Reason = true, ReasonDependency
		return d, nil
	}
	d.Reason = ReasonFresh
	return d, nil
}
