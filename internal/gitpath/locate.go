package gitpath

import (
	"errors"
	"path/filepath"

	"github.com/spf13/afero"
)

// ErrNoRepo is returned by FindRoot when neither start nor any of its
// parent directories contain a .git directory.
var ErrNoRepo = errors.New("not a git repository (or any of the parent directories)")

// FindRoot walks up from start looking for a directory containing
// .git, the way "git" itself locates the repository a subcommand is
// run from. Bare repositories (a .git directory instead of one
// containing a .git directory) are out of scope, so only the regular
// layout is recognized.
func FindRoot(fs afero.Fs, start string) (string, error) {
	dir := start
	for {
		exists, err := afero.DirExists(fs, filepath.Join(dir, DotGit))
		if err != nil {
			return "", err
		}
		if exists {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoRepo
		}
		dir = parent
	}
}
