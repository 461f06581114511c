package stale

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/postbuilder/internal/config"
	"git.home.luguber.info/inful/postbuilder/internal/fsutil"
)

// ModeStampName is the file in the output root recording the last build mode.
const ModeStampName = ".build-mode"

// StampMode records mode in outDir. The stamp is rewritten only when the mode
// differs, so its mtime marks the last mode switch. It returns the stamp path.
func StampMode(outDir string, mode config.Mode) (path string, changed bool, err error) {
	path = filepath.Join(outDir, ModeStampName)
	want := []byte(mode.String() + "\n")

	current, err := os.ReadFile(path)
	switch {
	case err == nil && bytes.Equal(current, want):
		return path, false, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return path, false, err
	}
	if err := fsutil.WriteFileAtomic(path, want, 0o644); err != nil {
		return path, false, err
	}
	return path, true, nil
}
