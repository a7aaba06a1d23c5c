// Package checkout materializes a commit's tree onto a working
// directory: files, their executable bit, symbolic links, and
// submodule placeholders.
package checkout

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/tambling/gitgo/githash"
	"github.com/tambling/gitgo/object"
	"github.com/tambling/gitgo/odb"
)

// ErrWouldOverwrite is returned when a checkout target already exists
// and is not empty.
var ErrWouldOverwrite = errors.New("refusing to overwrite existing non-empty file")

// Tree checks out the tree rooted at treeID into dir, recursively
// materializing every entry. dir must already exist.
func Tree(fs afero.Fs, store *odb.Store, treeID githash.Oid, dir string) error {
	typ, payload, err := store.Read(treeID)
	if err != nil {
		return xerrors.Errorf("could not read tree %s: %w", treeID, err)
	}
	if typ != object.TypeTree {
		return xerrors.Errorf("%s is a %s, not a tree", treeID, typ)
	}
	tree, err := object.ParseTree(payload)
	if err != nil {
		return xerrors.Errorf("could not parse tree %s: %w", treeID, err)
	}

	for _, entry := range tree.Entries() {
		target := filepath.Join(dir, entry.Name)
		if err := checkoutEntry(fs, store, entry, target); err != nil {
			return xerrors.Errorf("could not check out %s: %w", target, err)
		}
	}
	return nil
}

// Commit reads commitID's tree and checks it out into dir.
func Commit(fs afero.Fs, store *odb.Store, commitID githash.Oid, dir string) error {
	typ, payload, err := store.Read(commitID)
	if err != nil {
		return xerrors.Errorf("could not read commit %s: %w", commitID, err)
	}
	if typ != object.TypeCommit {
		return xerrors.Errorf("%s is a %s, not a commit", commitID, typ)
	}
	commit, err := object.ParseCommit(payload)
	if err != nil {
		return xerrors.Errorf("could not parse commit %s: %w", commitID, err)
	}
	return Tree(fs, store, commit.TreeID, dir)
}

func checkoutEntry(fs afero.Fs, store *odb.Store, entry object.TreeEntry, target string) error {
	switch entry.Mode {
	case object.ModeDirectory:
		if err := fs.MkdirAll(target, 0o755); err != nil {
			return err
		}
		return Tree(fs, store, entry.ID, target)

	case object.ModeGitlink:
		// Submodule fetching is out of scope; leave an empty placeholder.
		return fs.MkdirAll(target, 0o755)

	case object.ModeSymlink:
		typ, payload, err := store.Read(entry.ID)
		if err != nil {
			return err
		}
		if typ != object.TypeBlob {
			return xerrors.Errorf("symlink entry %s resolves to a %s, not a blob", entry.Name, typ)
		}
		if err := refuseNonEmptyExisting(fs, target); err != nil {
			return err
		}
		linker, ok := fs.(afero.Symlinker)
		if !ok {
			return xerrors.Errorf("filesystem does not support symlinks")
		}
		return linker.SymlinkIfPossible(string(payload), target)

	default: // ModeFile, ModeExecutable
		typ, payload, err := store.Read(entry.ID)
		if err != nil {
			return err
		}
		if typ != object.TypeBlob {
			return xerrors.Errorf("file entry %s resolves to a %s, not a blob", entry.Name, typ)
		}
		if err := refuseNonEmptyExisting(fs, target); err != nil {
			return err
		}
		perm := os.FileMode(0o644)
		if entry.Mode == object.ModeExecutable {
			perm = 0o755
		}
		return afero.WriteFile(fs, target, payload, perm)
	}
}

// refuseNonEmptyExisting returns ErrWouldOverwrite if target already
// exists and is not an empty file.
func refuseNonEmptyExisting(fs afero.Fs, target string) error {
	info, err := fs.Stat(target)
	if err != nil {
		return nil // doesn't exist, nothing to refuse
	}
	if info.Size() > 0 {
		return xerrors.Errorf("%s: %w", target, ErrWouldOverwrite)
	}
	return nil
}
