// Package gitpath contains constants and helpers for paths inside a
// .git directory.
package gitpath

import "path/filepath"

// Well-known paths inside a .git directory.
const (
	DotGit      = ".git"
	HEAD        = "HEAD"
	Objects     = "objects"
	Refs        = "refs"
	RefsHeads   = "refs/heads"
	RefsTags    = "refs/tags"
	DefaultMain = "main"
)

// ObjectPath returns the fan-out path of a loose object, relative to
// .git/objects: "<sha[0:2]>/<sha[2:]>".
func ObjectPath(hexSHA string) string {
	return filepath.Join(hexSHA[:2], hexSHA[2:])
}

// LocalBranch returns the ref path for a local branch name.
func LocalBranch(name string) string {
	return filepath.Join(RefsHeads, name)
}

// LocalTag returns the ref path for a local tag name.
func LocalTag(name string) string {
	return filepath.Join(RefsTags, name)
}
